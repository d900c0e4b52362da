package pipeline

import (
	"errors"
	"fmt"
)

// ItemMetaError exposes the sequence number of the item whose transformation failed.
type ItemMetaError interface {
	error
	Unwrap() error
	ItemSeq() int
}

type itemTaggedError struct {
	err error
	seq int
}

// newItemTaggedError wraps err so that both ErrTransformFailed and the original cause
// match errors.Is, and the failing item's seq can be recovered with ExtractItemSeq.
func newItemTaggedError(err error, seq int) error {
	if err == nil {
		return nil
	}
	var tagged *itemTaggedError
	if errors.As(err, &tagged) {
		return err
	}
	return &itemTaggedError{err: err, seq: seq}
}

func (e *itemTaggedError) Error() string {
	return fmt.Sprintf("%s (seq=%d): %s", ErrTransformFailed.Error(), e.seq, e.err.Error())
}

func (e *itemTaggedError) Unwrap() error { return e.err }

func (e *itemTaggedError) Is(target error) bool { return target == ErrTransformFailed }

func (e *itemTaggedError) ItemSeq() int { return e.seq }

func (e *itemTaggedError) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		if s.Flag('+') {
			_, _ = fmt.Fprintf(s, "item(seq=%d): %+v", e.seq, e.err)
			return
		}
		fallthrough
	case 's':
		_, _ = fmt.Fprint(s, e.Error())
	case 'q':
		_, _ = fmt.Fprintf(s, "%q", e.Error())
	}
}

// ExtractItemSeq returns the seq of the failed item carried by err, if present.
func ExtractItemSeq(err error) (int, bool) {
	var ime ItemMetaError
	if errors.As(err, &ime) {
		return ime.ItemSeq(), true
	}
	return 0, false
}
