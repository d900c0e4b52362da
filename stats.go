package pipeline

import (
	"sync/atomic"
	"time"

	"github.com/ygrebnov/pipeline/metrics"
)

// Stats is a snapshot of the counters of one pipeline run.
type Stats struct {
	// RunID identifies the run in logs and is unique per Run or Stream call.
	RunID string
	// Produced counts items the producer pushed into the work channel.
	Produced int64
	// Transformed counts items whose transform succeeded and whose result was forwarded.
	Transformed int64
	// Consumed counts results placed by the consumer.
	Consumed int64
	// BackpressurePauses counts open->closed flow gate transitions.
	BackpressurePauses int64
	// Failed counts items whose transform failed, in both error modes. In fail-fast mode it
	// covers the aborting failure plus any that completed concurrently with it.
	Failed int64
}

// Metric names recorded on the configured metrics.Provider.
const (
	MetricProduced           = "pipeline_items_produced_total"
	MetricTransformed        = "pipeline_items_transformed_total"
	MetricConsumed           = "pipeline_items_consumed_total"
	MetricBackpressurePauses = "pipeline_backpressure_pauses_total"
	MetricTransformErrors    = "pipeline_transform_errors_total"
	MetricInflight           = "pipeline_transforms_inflight"
	MetricTransformDuration  = "pipeline_transform_duration_seconds"
	MetricWorkQueueLength    = "pipeline_work_queue_length"
)

// statsRecorder owns the counters of one run. Each field has a single writer role
// (producer, transformers, consumer); atomics cover the N concurrent transformers.
type statsRecorder struct {
	runID string

	produced    atomic.Int64
	transformed atomic.Int64
	consumed    atomic.Int64
	pauses      atomic.Int64
	failed      atomic.Int64

	mProduced    metrics.Counter
	mTransformed metrics.Counter
	mConsumed    metrics.Counter
	mPauses      metrics.Counter
	mErrors      metrics.Counter
	mInflight    metrics.UpDownCounter
	mDuration    metrics.Histogram
	mQueueLen    metrics.Histogram
}

func newStatsRecorder(runID string, p metrics.Provider) *statsRecorder {
	return &statsRecorder{
		runID: runID,
		mProduced: p.Counter(MetricProduced,
			metrics.WithDescription("Items pushed into the work channel"), metrics.WithUnit("1")),
		mTransformed: p.Counter(MetricTransformed,
			metrics.WithDescription("Items transformed successfully"), metrics.WithUnit("1")),
		mConsumed: p.Counter(MetricConsumed,
			metrics.WithDescription("Results placed in output order"), metrics.WithUnit("1")),
		mPauses: p.Counter(MetricBackpressurePauses,
			metrics.WithDescription("Times the flow gate paused the producer"), metrics.WithUnit("1")),
		mErrors: p.Counter(MetricTransformErrors,
			metrics.WithDescription("Transform failures"), metrics.WithUnit("1")),
		mInflight: p.UpDownCounter(MetricInflight,
			metrics.WithDescription("Transforms currently executing"), metrics.WithUnit("1")),
		mDuration: p.Histogram(MetricTransformDuration,
			metrics.WithDescription("Transform execution time"), metrics.WithUnit("s")),
		mQueueLen: p.Histogram(MetricWorkQueueLength,
			metrics.WithDescription("Work queue length observed after each pull"), metrics.WithUnit("1")),
	}
}

func (s *statsRecorder) addProduced() {
	s.produced.Add(1)
	s.mProduced.Add(1)
}

func (s *statsRecorder) addTransformed() {
	s.transformed.Add(1)
	s.mTransformed.Add(1)
}

func (s *statsRecorder) addConsumed() {
	s.consumed.Add(1)
	s.mConsumed.Add(1)
}

func (s *statsRecorder) addPause() {
	s.pauses.Add(1)
	s.mPauses.Add(1)
}

func (s *statsRecorder) addFailed() {
	s.failed.Add(1)
	s.mErrors.Add(1)
}

func (s *statsRecorder) transformStarted() { s.mInflight.Add(1) }

func (s *statsRecorder) transformFinished(elapsed time.Duration) {
	s.mInflight.Add(-1)
	s.mDuration.Record(elapsed.Seconds())
}

func (s *statsRecorder) observeQueue(n int) { s.mQueueLen.Record(float64(n)) }

func (s *statsRecorder) snapshot() Stats {
	return Stats{
		RunID:              s.runID,
		Produced:           s.produced.Load(),
		Transformed:        s.transformed.Load(),
		Consumed:           s.consumed.Load(),
		BackpressurePauses: s.pauses.Load(),
		Failed:             s.failed.Load(),
	}
}
