// Package pipeline runs a bounded, order-preserving, backpressured concurrent pipeline:
// a single producer feeds items to a pool of transformers whose outputs a consumer puts
// back into the original input order.
//
//	items -> producer -> [work] -> transformer xN -> [results] -> consumer -> ordered results
//
// Entry points
//   - Run(ctx, items, transform, opts...): transform a slice; results[i] corresponds to items[i].
//   - RunPipeline(ctx, items, workers, high, low, transform): Run with explicit sizing.
//   - Stream(ctx, in, transform, opts...): read from a channel, emit results in input order.
//
// Ordering
// The producer tags every item with a sequence number (seq). Transformers run in parallel
// and finish in any order; the consumer places each result at index seq, so the output
// order never depends on completion order.
//
// Backpressure
// A flow gate with two thresholds sits in front of the producer. A transformer that pulls
// an item and observes the work queue at or above the high watermark closes the gate; the
// producer stays paused until a transformer observes the queue at or below the low
// watermark. The two thresholds keep the gate from flapping when the queue hovers around a
// single value. Both channels are also bounded (2 x high watermark by default) as a safety net.
//
// Shutdown
// After the last item the producer sends one done sentinel per transformer. Each
// transformer forwards one sentinel and exits; the consumer stops after counting one per
// transformer. No goroutine outlives a run.
//
// Defaults
//   - Workers: 4
//   - HighWater: 6, LowWater: 2
//   - CapacityMultiplier: 2 (channel capacity = 2 x HighWater)
//   - ErrorMode: ErrorModeFailFast
//   - Metrics: metrics.NoopProvider
//   - Logger: zerolog.Nop()
//
// Errors
//   - ErrInvalidConfig: returned before any goroutine starts.
//   - ErrTransformFailed / ErrTransformPanicked: a transform failure, tagged with the item seq.
//   - ErrProtocolViolation: a stage crashed or an output slot was written twice or never.
//   - ErrCancelled: the caller's context was cancelled.
package pipeline
