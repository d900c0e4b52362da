package pipeline

import (
	"context"
	"fmt"
)

// completionEvent is one finished item as seen by the reorderer.
// present == false marks a seq that completed without a value (a collected failure);
// it still advances the cursor so later results can flow.
type completionEvent[R any] struct {
	seq     int
	val     R
	present bool
}

// reorderer emits results strictly in seq order for streaming runs, where the total is
// unknown and no output buffer can be pre-sized. Out-of-order completions are held until
// every earlier seq has been emitted or skipped. The memory it holds is bounded by the
// number of items in flight (both channel capacities plus the workers).
//
// It runs on the consumer goroutine and never closes out.
type reorderer[R any] struct {
	out     chan<- R
	next    int
	buf     map[int]R
	skipped map[int]struct{}
}

func newReorderer[R any](out chan<- R) *reorderer[R] {
	return &reorderer[R]{out: out, buf: make(map[int]R), skipped: make(map[int]struct{})}
}

func (r *reorderer[R]) push(ctx context.Context, ev completionEvent[R]) error {
	if ev.seq < r.next {
		return fmt.Errorf("%w: seq %d completed twice", ErrProtocolViolation, ev.seq)
	}
	if _, dup := r.buf[ev.seq]; dup {
		return fmt.Errorf("%w: seq %d completed twice", ErrProtocolViolation, ev.seq)
	}
	if _, dup := r.skipped[ev.seq]; dup {
		return fmt.Errorf("%w: seq %d completed twice", ErrProtocolViolation, ev.seq)
	}

	if ev.present {
		r.buf[ev.seq] = ev.val
	} else {
		r.skipped[ev.seq] = struct{}{}
	}
	return r.flushContiguous(ctx)
}

// flushContiguous emits consecutive results starting from the cursor.
func (r *reorderer[R]) flushContiguous(ctx context.Context) error {
	for {
		if v, ok := r.buf[r.next]; ok {
			select {
			case r.out <- v:
			case <-ctx.Done():
				return cancelled(ctx.Err())
			}
			delete(r.buf, r.next)
			r.next++
			continue
		}
		if _, ok := r.skipped[r.next]; ok {
			delete(r.skipped, r.next)
			r.next++
			continue
		}
		return nil
	}
}

// pending returns how many completions are still waiting behind a gap.
func (r *reorderer[R]) pending() int { return len(r.buf) + len(r.skipped) }
