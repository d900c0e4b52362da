package pipeline

import (
	"context"

	"github.com/rs/zerolog"
)

// producer tags every input value with its seq and feeds the work channel, waiting on
// the flow gate before each emit. After the input ends it sends one done sentinel per
// transformer so that every transformer observes exactly one.
type producer[T any] struct {
	src     source[T]
	work    *boundedChannel[message[T]]
	gate    *flowGate
	workers int
	stats   *statsRecorder
	log     zerolog.Logger
}

func (p *producer[T]) run(ctx context.Context) error {
	seq := 0
	for {
		v, ok, err := p.src.next(ctx)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		if err := p.gate.Wait(ctx); err != nil {
			return err
		}
		if err := p.work.Put(ctx, itemMessage(seq, v)); err != nil {
			return err
		}
		p.stats.addProduced()
		seq++
	}

	for range p.workers {
		if err := p.work.Put(ctx, doneMessage[T]()); err != nil {
			return err
		}
	}
	p.log.Debug().Int("produced", seq).Msg("input exhausted, sentinels sent")
	return nil
}
