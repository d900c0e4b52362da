package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// sink is where the consumer places finished items.
type sink[R any] interface {
	// place stores a successful result at its seq.
	place(ctx context.Context, item Item[R]) error
	// skip accounts for a seq whose transform failed in collect mode.
	skip(ctx context.Context, seq int) error
	// finish is called once every sentinel has arrived.
	finish(ctx context.Context) error
}

// consumer drains the results channel until it has seen one sentinel per transformer.
// Each transformer sends its sentinel only after forwarding all of its results, so the
// last sentinel implies that every result has been received.
type consumer[R any] struct {
	results *boundedChannel[message[R]]
	workers int
	sink    sink[R]
	stats   *statsRecorder
	log     zerolog.Logger

	errs []error
}

func (c *consumer[R]) run(ctx context.Context) error {
	sentinels := 0
	for sentinels < c.workers {
		msg, err := c.results.Get(ctx)
		if err != nil {
			return err
		}

		switch {
		case msg.done:
			sentinels++
		case msg.err != nil:
			c.errs = append(c.errs, msg.err)
			if err := c.sink.skip(ctx, msg.item.Seq); err != nil {
				return err
			}
		default:
			if err := c.sink.place(ctx, msg.item); err != nil {
				return err
			}
			c.stats.addConsumed()
		}
	}
	c.log.Debug().Int("sentinels", sentinels).Msg("all transformers finished")
	return c.sink.finish(ctx)
}

// itemErrors joins the per-item errors collected in collect mode.
func (c *consumer[R]) itemErrors() error { return errors.Join(c.errs...) }

// bufferSink places results into a pre-sized buffer indexed by seq.
type bufferSink[R any] struct {
	results []R
	written []bool
	count   int
}

func newBufferSink[R any](total int) *bufferSink[R] {
	return &bufferSink[R]{results: make([]R, total), written: make([]bool, total)}
}

func (s *bufferSink[R]) mark(seq int) error {
	if seq < 0 || seq >= len(s.results) {
		return fmt.Errorf("%w: seq %d outside output buffer of %d", ErrProtocolViolation, seq, len(s.results))
	}
	if s.written[seq] {
		return fmt.Errorf("%w: seq %d delivered twice", ErrProtocolViolation, seq)
	}
	s.written[seq] = true
	s.count++
	return nil
}

func (s *bufferSink[R]) place(_ context.Context, item Item[R]) error {
	if err := s.mark(item.Seq); err != nil {
		return err
	}
	s.results[item.Seq] = item.Value
	return nil
}

func (s *bufferSink[R]) skip(_ context.Context, seq int) error { return s.mark(seq) }

func (s *bufferSink[R]) finish(_ context.Context) error {
	if s.count != len(s.results) {
		return fmt.Errorf("%w: %d of %d output slots written", ErrProtocolViolation, s.count, len(s.results))
	}
	return nil
}

// orderedSink streams results in seq order through a reorderer.
type orderedSink[R any] struct {
	r *reorderer[R]
}

func newOrderedSink[R any](out chan<- R) *orderedSink[R] {
	return &orderedSink[R]{r: newReorderer[R](out)}
}

func (s *orderedSink[R]) place(ctx context.Context, item Item[R]) error {
	return s.r.push(ctx, completionEvent[R]{seq: item.Seq, val: item.Value, present: true})
}

func (s *orderedSink[R]) skip(ctx context.Context, seq int) error {
	return s.r.push(ctx, completionEvent[R]{seq: seq})
}

func (s *orderedSink[R]) finish(_ context.Context) error {
	if n := s.r.pending(); n > 0 {
		return fmt.Errorf("%w: %d results stuck behind seq %d", ErrProtocolViolation, n, s.r.next)
	}
	return nil
}
