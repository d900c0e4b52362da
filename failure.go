package pipeline

import (
	"context"
	"sync"
)

// failureLatch records the first fatal error of a run and cancels the run context so that
// every stage blocked on a channel or the gate returns promptly. Later errors are dropped;
// they are almost always the cancellation echo of the first one.
type failureLatch struct {
	once   sync.Once
	mu     sync.Mutex
	err    error
	cancel context.CancelFunc
}

func newFailureLatch(cancel context.CancelFunc) *failureLatch {
	return &failureLatch{cancel: cancel}
}

func (f *failureLatch) fail(err error) {
	if err == nil {
		return
	}
	f.once.Do(func() {
		f.mu.Lock()
		f.err = err
		f.mu.Unlock()
		f.cancel()
	})
}

func (f *failureLatch) Err() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}
