package pipeline

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Run transforms every item with up to cfg.Workers concurrent transformers and returns
// the results in input order: results[i] is the transform of items[i].
//
// Semantics:
//   - Configuration errors are returned before any goroutine starts (ErrInvalidConfig).
//   - The producer pauses whenever the work queue reaches the high watermark and resumes
//     once transformers drain it to the low watermark.
//   - In the default fail-fast mode the first transform failure aborts the run; the error
//     carries the failing item's seq (see ExtractItemSeq) and no results are returned.
//   - With WithCollectErrors the run always completes; failed slots hold the zero value and
//     the returned error joins every item failure.
//   - Cancelling ctx aborts the run with ErrCancelled; no results are returned.
//
// Stats are returned in every case, including failures.
func Run[T, R any](ctx context.Context, items []T, transform Transform[T, R], opts ...Option) ([]R, Stats, error) {
	cfg, err := buildConfig(opts...)
	if err != nil {
		return nil, Stats{}, err
	}
	if transform == nil {
		return nil, Stats{}, invalid("transform", "must not be nil")
	}

	r := newRun(ctx, cfg, transform)
	snk := newBufferSink[R](len(items))
	itemErr, fatal := r.execute(newSliceSource(items), snk)
	stats := r.stats.snapshot()
	if fatal != nil {
		return nil, stats, fatal
	}
	return snk.results, stats, itemErr
}

// RunPipeline is Run with the pool size and watermarks passed explicitly.
// It requires numWorkers >= 1 and highWater > lowWater >= 0. The explicit sizing is
// applied after opts, so WithWorkers or WithWatermarks in opts cannot override it.
func RunPipeline[T, R any](
	ctx context.Context,
	items []T,
	numWorkers, highWater, lowWater int,
	transform Transform[T, R],
	opts ...Option,
) ([]R, Stats, error) {
	sizing := func(cfg *config) error {
		cfg.Workers, cfg.HighWater, cfg.LowWater = numWorkers, highWater, lowWater
		return nil
	}
	all := make([]Option, 0, len(opts)+1)
	all = append(all, opts...)
	return Run(ctx, items, transform, append(all, sizing)...)
}

// StreamRun is a pipeline run fed from a channel.
type StreamRun[R any] struct {
	results <-chan R
	done    chan struct{}
	stats   Stats
	err     error
}

// Results delivers transformed values in input order. It is closed when the run ends.
func (s *StreamRun[R]) Results() <-chan R { return s.results }

// Done is closed when the run has ended, including after a fatal error. The run stops
// reading the input channel once it ends, so senders should select on Done.
func (s *StreamRun[R]) Done() <-chan struct{} { return s.done }

// Wait blocks until the run has ended and returns its stats and error.
// Results must be drained (or ctx cancelled) for the run to end.
func (s *StreamRun[R]) Wait() (Stats, error) {
	<-s.done
	return s.stats, s.err
}

// Stream starts a run that reads items from in until it is closed and emits results in
// input order as soon as every earlier result has been emitted. Error semantics match Run;
// after a fatal error Results is closed early, Done is closed and Wait reports the error.
func Stream[T, R any](ctx context.Context, in <-chan T, transform Transform[T, R], opts ...Option) (*StreamRun[R], error) {
	cfg, err := buildConfig(opts...)
	if err != nil {
		return nil, err
	}
	if transform == nil {
		return nil, invalid("transform", "must not be nil")
	}
	if in == nil {
		return nil, invalid("input", "channel must not be nil")
	}

	out := make(chan R, cfg.resultsCapacity())
	sr := &StreamRun[R]{results: out, done: make(chan struct{})}
	r := newRun(ctx, cfg, transform)

	go func() {
		defer close(sr.done)
		itemErr, fatal := r.execute(newChanSource(in), newOrderedSink[R](out))
		close(out)
		sr.stats = r.stats.snapshot()
		sr.err = itemErr
		if fatal != nil {
			sr.err = fatal
		}
	}()
	return sr, nil
}

// run holds everything scoped to a single pipeline execution.
type run[T, R any] struct {
	cfg       config
	transform Transform[T, R]

	ctx    context.Context
	cancel context.CancelFunc

	work    *boundedChannel[message[T]]
	results *boundedChannel[message[R]]
	gate    *flowGate
	stats   *statsRecorder
	latch   *failureLatch
	stages  *stageGroup

	base zerolog.Logger
	log  zerolog.Logger
}

func newRun[T, R any](parent context.Context, cfg config, transform Transform[T, R]) *run[T, R] {
	runID := uuid.NewString()
	ctx, cancel := context.WithCancel(parent)
	base := cfg.Logger.With().Str("run_id", runID).Logger()
	stats := newStatsRecorder(runID, cfg.Metrics)
	latch := newFailureLatch(cancel)

	return &run[T, R]{
		cfg:       cfg,
		transform: transform,
		ctx:       ctx,
		cancel:    cancel,
		work:      newBoundedChannel[message[T]](cfg.workCapacity()),
		results:   newBoundedChannel[message[R]](cfg.resultsCapacity()),
		gate:      newFlowGate(cfg.HighWater, cfg.LowWater, stats.addPause, cfg.GateObserver),
		stats:     stats,
		latch:     latch,
		stages:    newStageGroup(latch, base),
		base:      base,
		log:       base.With().Str("component", "pipeline").Logger(),
	}
}

// execute wires the stages, drives the consumer on the calling goroutine and joins the
// rest. fatal is non-nil when the run was aborted; itemErr carries collected item
// failures of a completed run.
func (r *run[T, R]) execute(src source[T], snk sink[R]) (itemErr, fatal error) {
	defer r.cancel()
	start := time.Now()

	r.log.Debug().
		Int("workers", r.cfg.Workers).
		Int("high_water", r.cfg.HighWater).
		Int("low_water", r.cfg.LowWater).
		Int("work_capacity", r.work.Cap()).
		Int("results_capacity", r.results.Cap()).
		Str("error_mode", r.cfg.ErrorMode.String()).
		Msg("run started")

	p := &producer[T]{
		src:     src,
		work:    r.work,
		gate:    r.gate,
		workers: r.cfg.Workers,
		stats:   r.stats,
		log:     r.stageLogger("producer"),
	}
	r.stages.spawn("producer", func() error { return p.run(r.ctx) })

	for i := range r.cfg.Workers {
		t := &transformer[T, R]{
			id:        i,
			work:      r.work,
			results:   r.results,
			gate:      r.gate,
			transform: r.transform,
			mode:      r.cfg.ErrorMode,
			stats:     r.stats,
			log:       r.stageLogger("transformer").With().Int("worker", i).Logger(),
		}
		r.stages.spawn("transformer-"+strconv.Itoa(i), func() error { return t.run(r.ctx) })
	}

	c := &consumer[R]{
		results: r.results,
		workers: r.cfg.Workers,
		sink:    snk,
		stats:   r.stats,
		log:     r.stageLogger("consumer"),
	}
	if err := c.run(r.ctx); err != nil {
		r.latch.fail(err)
	}

	// Every stage has finished by causality once the consumer saw all sentinels;
	// joining still surfaces abnormal exits.
	r.stages.join()

	stats := r.stats.snapshot()
	elapsed := time.Since(start)
	if err := r.latch.Err(); err != nil {
		r.log.Error().Err(err).
			Int64("produced", stats.Produced).
			Int64("consumed", stats.Consumed).
			Dur("elapsed", elapsed).
			Msg("run aborted")
		return nil, err
	}

	r.log.Info().
		Int64("produced", stats.Produced).
		Int64("transformed", stats.Transformed).
		Int64("consumed", stats.Consumed).
		Int64("backpressure_pauses", stats.BackpressurePauses).
		Int64("failed", stats.Failed).
		Dur("elapsed", elapsed).
		Msg("run completed")
	return c.itemErrors(), nil
}

func (r *run[T, R]) stageLogger(component string) zerolog.Logger {
	return r.base.With().Str("component", component).Logger()
}
