package pipeline

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// transformer is one of the N identical workers. It pulls tagged items, signals the
// drain side of the flow gate, applies the transform and forwards the tagged result.
// On the done sentinel it forwards exactly one sentinel downstream and exits.
type transformer[T, R any] struct {
	id        int
	work      *boundedChannel[message[T]]
	results   *boundedChannel[message[R]]
	gate      *flowGate
	transform Transform[T, R]
	mode      ErrorMode
	stats     *statsRecorder
	log       zerolog.Logger
}

func (t *transformer[T, R]) run(ctx context.Context) error {
	processed := 0
	for {
		msg, err := t.work.Get(ctx)
		if err != nil {
			return err
		}

		if msg.done {
			t.log.Debug().Int("processed", processed).Msg("sentinel received, exiting")
			return t.results.Put(ctx, doneMessage[R]())
		}

		switch t.gate.Observe(t.work.Len) {
		case GateClosed:
			t.log.Debug().Msg("work queue at high water, producer paused")
		case GateOpened:
			t.log.Debug().Msg("work queue drained to low water, producer resumed")
		}
		t.stats.observeQueue(t.work.Len())

		seq := msg.item.Seq
		result, err := t.execute(ctx, msg.item.Value)
		processed++
		if err != nil {
			// A transform that gave up because the run was aborted is not an item failure.
			if ctxErr := ctx.Err(); ctxErr != nil {
				return cancelled(ctxErr)
			}
			tagged := newItemTaggedError(err, seq)
			t.stats.addFailed()
			if t.mode == ErrorModeFailFast {
				return tagged
			}
			t.log.Warn().Err(err).Int("seq", seq).Msg("transform failed, continuing")
			if err := t.results.Put(ctx, failedMessage[R](seq, tagged)); err != nil {
				return err
			}
			continue
		}

		if err := t.results.Put(ctx, itemMessage(seq, result)); err != nil {
			return err
		}
		t.stats.addTransformed()
	}
}

func (t *transformer[T, R]) execute(ctx context.Context, v T) (R, error) {
	t.stats.transformStarted()
	start := time.Now()
	defer func() { t.stats.transformFinished(time.Since(start)) }()
	return execTransform(ctx, t.transform, v)
}
