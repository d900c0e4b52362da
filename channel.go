package pipeline

import (
	"context"
	"fmt"
)

// boundedChannel is a fixed-capacity FIFO conduit between two stages.
// Put and Get suspend while the channel is full or empty and give up when ctx is done.
// Any number of goroutines may Put and Get concurrently.
type boundedChannel[T any] struct {
	ch chan T
}

func newBoundedChannel[T any](capacity int) *boundedChannel[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &boundedChannel[T]{ch: make(chan T, capacity)}
}

// Put enqueues v, waiting for free space.
func (c *boundedChannel[T]) Put(ctx context.Context, v T) error {
	// Prefer a cancelled context over a free slot so aborted runs stop promptly.
	if err := ctx.Err(); err != nil {
		return cancelled(err)
	}
	select {
	case c.ch <- v:
		return nil
	case <-ctx.Done():
		return cancelled(ctx.Err())
	}
}

// Get dequeues the oldest value, waiting for one to arrive.
func (c *boundedChannel[T]) Get(ctx context.Context) (T, error) {
	select {
	case v := <-c.ch:
		return v, nil
	case <-ctx.Done():
		var zero T
		return zero, cancelled(ctx.Err())
	}
}

// Len returns the number of queued values.
func (c *boundedChannel[T]) Len() int { return len(c.ch) }

// Cap returns the fixed capacity.
func (c *boundedChannel[T]) Cap() int { return cap(c.ch) }

func cancelled(cause error) error {
	return fmt.Errorf("%w: %w", ErrCancelled, cause)
}
