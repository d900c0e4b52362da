// Command pipeline-demo squares a range of integers through the pipeline with random
// per-item delays, checks that the output comes back in input order and prints the run
// statistics and the recorded OpenTelemetry metrics.
package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"

	"github.com/ygrebnov/pipeline"
	"github.com/ygrebnov/pipeline/config"
	"github.com/ygrebnov/pipeline/logging"
	"github.com/ygrebnov/pipeline/metrics"
)

const serviceName = "pipeline-demo"

type options struct {
	ConfigFile string
	EnvFile    string
	Items      int
	MinDelay   time.Duration
	MaxDelay   time.Duration
	Stream     bool

	fs *pflag.FlagSet
}

func (o *options) addFlags(fs *pflag.FlagSet) {
	o.fs = fs
	fs.StringVar(&o.ConfigFile, "config", "", "Path to a YAML config file.")
	fs.StringVar(&o.EnvFile, "env-file", "", "Path to a .env file loaded before reading the environment.")
	fs.IntVar(&o.Items, "items", 20, "Number of integers to square.")
	fs.DurationVar(&o.MinDelay, "min-delay", 5*time.Millisecond, "Minimum simulated transform time.")
	fs.DurationVar(&o.MaxDelay, "max-delay", 50*time.Millisecond, "Maximum simulated transform time.")
	fs.BoolVar(&o.Stream, "stream", false, "Feed items through a channel and print results as they arrive.")

	fs.Int("workers", 4, "Number of concurrent transformers.")
	fs.Int("high-water", 6, "Work queue length that pauses the producer.")
	fs.Int("low-water", 2, "Work queue length that resumes the producer.")
	fs.String("error-mode", "fail_fast", "fail_fast or collect.")
	fs.String("log-level", "info", "Log level.")
	fs.String("log-format", "console", "Log format: console or json.")
}

// bind maps flags onto config keys; only flags set on the command line override.
func (o *options) bind(v *viper.Viper) error {
	for key, flag := range map[string]string{
		"pipeline.workers":    "workers",
		"pipeline.high_water": "high-water",
		"pipeline.low_water":  "low-water",
		"pipeline.error_mode": "error-mode",
		"logging.level":       "log-level",
		"logging.format":      "log-format",
	} {
		if err := v.BindPFlag(key, o.fs.Lookup(flag)); err != nil {
			return err
		}
	}
	return nil
}

func (o *options) validate() error {
	if o.Items < 0 {
		return fmt.Errorf("invalid value %d for flag %q: must be >= 0", o.Items, "items")
	}
	if o.MinDelay < 0 || o.MaxDelay < o.MinDelay {
		return fmt.Errorf("invalid delays: need 0 <= min-delay (%s) <= max-delay (%s)", o.MinDelay, o.MaxDelay)
	}
	return nil
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "pipeline-demo:", err)
		os.Exit(1)
	}
}

func run() error {
	opts := &options{}
	opts.addFlags(pflag.CommandLine)
	pflag.Parse()
	if err := opts.validate(); err != nil {
		return err
	}

	v := viper.New()
	if err := opts.bind(v); err != nil {
		return err
	}
	cfg, err := config.Load(
		config.WithConfigFile(opts.ConfigFile),
		config.WithEnvFile(opts.EnvFile),
		config.WithViper(v),
	)
	if err != nil {
		return err
	}

	log, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	log = log.With().Str("service", serviceName).Logger()

	res := resource.NewSchemaless(attribute.String("service.name", serviceName))
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader), sdkmetric.WithResource(res))
	defer func() {
		if err := mp.Shutdown(context.Background()); err != nil {
			log.Warn().Err(err).Msg("meter provider shutdown failed")
		}
	}()

	pipelineOpts, err := cfg.Pipeline.Options()
	if err != nil {
		return err
	}
	pipelineOpts = append(pipelineOpts,
		pipeline.WithLogger(log),
		pipeline.WithMetrics(metrics.NewOTelProvider(mp.Meter("github.com/ygrebnov/pipeline"))),
		pipeline.WithGateObserver(func(ev pipeline.GateEvent) {
			log.Debug().
				Str("transition", ev.Transition.String()).
				Int("queue_len", ev.QueueLen).
				Msg("flow gate")
		}),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	square := pipeline.TransformFunc(func(ctx context.Context, n int) (int, error) {
		select {
		case <-time.After(randomDelay(opts.MinDelay, opts.MaxDelay)):
			return n * n, nil
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	})

	var (
		results []int
		stats   pipeline.Stats
	)
	if opts.Stream {
		results, stats, err = runStream(ctx, opts.Items, square, pipelineOpts)
	} else {
		items := make([]int, opts.Items)
		for i := range items {
			items[i] = i
		}
		results, stats, err = pipeline.Run(ctx, items, square, pipelineOpts...)
	}
	logStats(log, stats)
	if err != nil {
		return err
	}

	for i, r := range results {
		if r != i*i {
			return fmt.Errorf("result %d out of order: got %d, want %d", i, r, i*i)
		}
	}
	log.Info().Int("results", len(results)).Msg("all results in input order")

	return dumpMetrics(ctx, log, reader)
}

func runStream(
	ctx context.Context,
	n int,
	fn pipeline.Transform[int, int],
	opts []pipeline.Option,
) ([]int, pipeline.Stats, error) {
	in := make(chan int)
	sr, err := pipeline.Stream(ctx, in, fn, opts...)
	if err != nil {
		return nil, pipeline.Stats{}, err
	}

	go func() {
		defer close(in)
		for i := range n {
			select {
			case in <- i:
			case <-sr.Done():
				return
			}
		}
	}()

	results := make([]int, 0, n)
	for r := range sr.Results() {
		results = append(results, r)
	}
	stats, err := sr.Wait()
	return results, stats, err
}

func randomDelay(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + rand.N(hi-lo)
}

func logStats(log zerolog.Logger, s pipeline.Stats) {
	log.Info().
		Str("run_id", s.RunID).
		Int64("produced", s.Produced).
		Int64("transformed", s.Transformed).
		Int64("consumed", s.Consumed).
		Int64("backpressure_pauses", s.BackpressurePauses).
		Int64("failed", s.Failed).
		Msg("run statistics")
}

func dumpMetrics(ctx context.Context, log zerolog.Logger, reader *sdkmetric.ManualReader) error {
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		return fmt.Errorf("collect metrics: %w", err)
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			ev := log.Info().Str("metric", m.Name)
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				var total int64
				for _, dp := range data.DataPoints {
					total += dp.Value
				}
				ev = ev.Int64("value", total)
			case metricdata.Histogram[float64]:
				for _, dp := range data.DataPoints {
					ev = ev.Uint64("count", dp.Count).Float64("sum", dp.Sum)
				}
			}
			ev.Msg("metric")
		}
	}
	return nil
}
