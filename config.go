package pipeline

import (
	"strconv"

	"github.com/rs/zerolog"
	"github.com/ygrebnov/errorc"

	"github.com/ygrebnov/pipeline/metrics"
)

// ErrorMode selects how a transform failure affects the run.
type ErrorMode int

const (
	// ErrorModeFailFast aborts the whole run on the first transform failure.
	ErrorModeFailFast ErrorMode = iota
	// ErrorModeCollect keeps the run going, leaves the zero value in the failed slot and
	// returns all item errors joined together with the full results slice.
	ErrorModeCollect
)

func (m ErrorMode) String() string {
	switch m {
	case ErrorModeFailFast:
		return "fail_fast"
	case ErrorModeCollect:
		return "collect"
	default:
		return "unknown(" + strconv.Itoa(int(m)) + ")"
	}
}

// config holds pipeline configuration.
type config struct {
	// Workers is the number of concurrent transformers.
	// Default: 4.
	Workers int

	// HighWater closes the flow gate once the observed work queue length reaches it.
	// Default: 6.
	HighWater int

	// LowWater reopens the flow gate once the observed work queue length drops to it.
	// Default: 2.
	LowWater int

	// CapacityMultiplier sizes both channels as CapacityMultiplier * HighWater unless
	// an explicit capacity is set.
	// Default: 2.
	CapacityMultiplier int

	// WorkCapacity overrides the work channel capacity. Zero means derived.
	// A non-zero value must be greater than HighWater.
	WorkCapacity int

	// ResultsCapacity overrides the results channel capacity. Zero means derived.
	ResultsCapacity int

	// ErrorMode selects fail-fast or collect behavior for transform failures.
	// Default: ErrorModeFailFast.
	ErrorMode ErrorMode

	// Metrics receives pipeline instruments.
	// Default: metrics.NoopProvider.
	Metrics metrics.Provider

	// Logger receives stage lifecycle and gate transition logs.
	// Default: zerolog.Nop().
	Logger zerolog.Logger

	// GateObserver, when set, is called for every gate transition while the gate lock is held.
	GateObserver func(GateEvent)
}

// defaultConfig centralizes default values for config.
func defaultConfig() config {
	return config{
		Workers:            4,
		HighWater:          6,
		LowWater:           2,
		CapacityMultiplier: 2,
		ErrorMode:          ErrorModeFailFast,
		Metrics:            metrics.NewNoopProvider(),
		Logger:             zerolog.Nop(),
	}
}

// validateConfig checks the invariants every run relies on.
func validateConfig(cfg *config) error {
	switch {
	case cfg.Workers < 1:
		return invalid("workers", "must be >= 1, got "+strconv.Itoa(cfg.Workers))
	case cfg.LowWater < 0:
		return invalid("low_water", "must be >= 0, got "+strconv.Itoa(cfg.LowWater))
	case cfg.HighWater < 0:
		return invalid("high_water", "must be >= 0, got "+strconv.Itoa(cfg.HighWater))
	case cfg.HighWater <= cfg.LowWater:
		return invalid("high_water", "must be greater than low_water ("+
			strconv.Itoa(cfg.HighWater)+" <= "+strconv.Itoa(cfg.LowWater)+")")
	case cfg.CapacityMultiplier < 1:
		return invalid("capacity_multiplier", "must be >= 1, got "+strconv.Itoa(cfg.CapacityMultiplier))
	case cfg.WorkCapacity < 0:
		return invalid("work_capacity", "must be >= 0, got "+strconv.Itoa(cfg.WorkCapacity))
	case cfg.WorkCapacity > 0 && cfg.WorkCapacity <= cfg.HighWater:
		// The gate samples the queue after a pull, so it only closes when the queue can
		// hold more than HighWater items.
		return invalid("work_capacity", "must be greater than high_water ("+
			strconv.Itoa(cfg.WorkCapacity)+" <= "+strconv.Itoa(cfg.HighWater)+")")
	case cfg.ResultsCapacity < 0:
		return invalid("results_capacity", "must be >= 0, got "+strconv.Itoa(cfg.ResultsCapacity))
	case cfg.ErrorMode != ErrorModeFailFast && cfg.ErrorMode != ErrorModeCollect:
		return invalid("error_mode", cfg.ErrorMode.String())
	case cfg.Metrics == nil:
		return invalid("metrics", "provider must not be nil")
	}
	return nil
}

func invalid(key, detail string) error {
	return errorc.With(ErrInvalidConfig, errorc.String(key, detail))
}

// workCapacity returns the work channel capacity; always above HighWater.
func (c *config) workCapacity() int {
	if c.WorkCapacity > 0 {
		return c.WorkCapacity
	}
	return max(c.HighWater+1, c.CapacityMultiplier*c.HighWater)
}

// resultsCapacity returns the results channel capacity; never below 1.
func (c *config) resultsCapacity() int {
	if c.ResultsCapacity > 0 {
		return c.ResultsCapacity
	}
	return max(1, c.CapacityMultiplier*c.HighWater)
}

// buildConfig applies opts over the defaults and validates the result.
func buildConfig(opts ...Option) (config, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return config{}, err
		}
	}
	if err := validateConfig(&cfg); err != nil {
		return config{}, err
	}
	return cfg, nil
}

// Option configures a pipeline run.
// An Option returns an error on invalid input instead of panicking.
type Option func(*config) error

// WithWorkers sets the number of concurrent transformers (must be >= 1).
func WithWorkers(n int) Option {
	return func(cfg *config) error {
		if n < 1 {
			return invalid("workers", "WithWorkers requires n >= 1")
		}
		cfg.Workers = n
		return nil
	}
}

// WithWatermarks sets the flow gate thresholds (requires high > low >= 0).
func WithWatermarks(high, low int) Option {
	return func(cfg *config) error {
		if low < 0 || high <= low {
			return invalid("watermarks", "WithWatermarks requires high > low >= 0")
		}
		cfg.HighWater, cfg.LowWater = high, low
		return nil
	}
}

// WithCapacityMultiplier sets the channel capacity as a multiple of the high watermark (default 2).
func WithCapacityMultiplier(m int) Option {
	return func(cfg *config) error {
		if m < 1 {
			return invalid("capacity_multiplier", "WithCapacityMultiplier requires m >= 1")
		}
		cfg.CapacityMultiplier = m
		return nil
	}
}

// WithWorkCapacity sets an explicit work channel capacity. It must exceed the high
// watermark, otherwise the flow gate could never close.
func WithWorkCapacity(size int) Option {
	return func(cfg *config) error {
		if size < 1 {
			return invalid("work_capacity", "WithWorkCapacity requires size >= 1")
		}
		cfg.WorkCapacity = size
		return nil
	}
}

// WithResultsCapacity sets an explicit results channel capacity.
func WithResultsCapacity(size int) Option {
	return func(cfg *config) error {
		if size < 1 {
			return invalid("results_capacity", "WithResultsCapacity requires size >= 1")
		}
		cfg.ResultsCapacity = size
		return nil
	}
}

// WithErrorMode selects how transform failures are handled.
func WithErrorMode(mode ErrorMode) Option {
	return func(cfg *config) error { cfg.ErrorMode = mode; return nil }
}

// WithCollectErrors keeps the run going on transform failures and reports them together.
func WithCollectErrors() Option {
	return WithErrorMode(ErrorModeCollect)
}

// WithMetrics records pipeline instruments on p.
func WithMetrics(p metrics.Provider) Option {
	return func(cfg *config) error {
		if p == nil {
			return invalid("metrics", "WithMetrics requires a non-nil provider")
		}
		cfg.Metrics = p
		return nil
	}
}

// WithLogger routes stage logs to l.
func WithLogger(l zerolog.Logger) Option {
	return func(cfg *config) error { cfg.Logger = l; return nil }
}

// WithGateObserver registers fn to receive every flow gate transition.
// fn runs while the gate lock is held and must not block.
func WithGateObserver(fn func(GateEvent)) Option {
	return func(cfg *config) error { cfg.GateObserver = fn; return nil }
}
