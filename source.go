package pipeline

import "context"

// source yields the producer's input one value at a time.
// next returns (zero, false, nil) once the input is exhausted.
type source[T any] interface {
	next(ctx context.Context) (T, bool, error)
}

type sliceSource[T any] struct {
	items []T
	index int
}

func newSliceSource[T any](items []T) *sliceSource[T] {
	return &sliceSource[T]{items: items}
}

func (s *sliceSource[T]) next(_ context.Context) (T, bool, error) {
	if s.index >= len(s.items) {
		var zero T
		return zero, false, nil
	}
	v := s.items[s.index]
	s.index++
	return v, true, nil
}

// chanSource reads from a caller-owned channel; a closed channel ends the input.
type chanSource[T any] struct {
	in <-chan T
}

func newChanSource[T any](in <-chan T) *chanSource[T] {
	return &chanSource[T]{in: in}
}

func (s *chanSource[T]) next(ctx context.Context) (T, bool, error) {
	select {
	case v, ok := <-s.in:
		return v, ok, nil
	case <-ctx.Done():
		var zero T
		return zero, false, cancelled(ctx.Err())
	}
}
