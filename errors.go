package pipeline

import "errors"

const Namespace = "pipeline"

var (
	ErrInvalidConfig     = errors.New(Namespace + ": invalid configuration")
	ErrTransformFailed   = errors.New(Namespace + ": item transformation failed")
	ErrTransformPanicked = errors.New(Namespace + ": item transformation panicked")
	ErrProtocolViolation = errors.New(Namespace + ": stage protocol violation")
	ErrCancelled         = errors.New(Namespace + ": run cancelled")
)
