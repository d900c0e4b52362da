package pipeline

import (
	"context"
	"fmt"
)

// Transform is the operation applied to every item. It may take arbitrarily long and
// must not touch pipeline state. The context is cancelled when the run is aborted.
type Transform[T, R any] func(context.Context, T) (R, error)

// TransformFunc adapts func(ctx, T) (R, error) to Transform[T, R].
func TransformFunc[T, R any](fn func(context.Context, T) (R, error)) Transform[T, R] {
	return Transform[T, R](fn)
}

// TransformValue adapts func(ctx, T) R to Transform[T, R].
func TransformValue[T, R any](fn func(context.Context, T) R) Transform[T, R] {
	return func(ctx context.Context, v T) (R, error) { return fn(ctx, v), nil }
}

// TransformPure adapts func(T) R to Transform[T, R].
func TransformPure[T, R any](fn func(T) R) Transform[T, R] {
	return func(_ context.Context, v T) (R, error) { return fn(v), nil }
}

// execTransform runs fn and converts a panic into ErrTransformPanicked.
func execTransform[T, R any](ctx context.Context, fn Transform[T, R], v T) (result R, err error) {
	defer func() {
		if ePanic := recover(); ePanic != nil {
			var zero R
			result = zero
			err = fmt.Errorf("%w: %v", ErrTransformPanicked, ePanic)
		}
	}()
	return fn(ctx, v)
}
