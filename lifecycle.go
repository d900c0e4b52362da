package pipeline

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// stageGroup runs the producer and transformer goroutines of one run.
// A stage that returns an error or panics trips the failure latch; a panic is reported as
// a protocol violation because the stage can no longer send its closing sentinel and the
// consumer would otherwise wait forever.
type stageGroup struct {
	wg    sync.WaitGroup
	latch *failureLatch
	log   zerolog.Logger
}

func newStageGroup(latch *failureLatch, log zerolog.Logger) *stageGroup {
	return &stageGroup{latch: latch, log: log}
}

func (g *stageGroup) spawn(name string, fn func() error) {
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		defer func() {
			if ePanic := recover(); ePanic != nil {
				g.log.Error().Str("stage", name).Interface("panic", ePanic).Msg("stage panicked")
				g.latch.fail(fmt.Errorf("%w: stage %s panicked: %v", ErrProtocolViolation, name, ePanic))
			}
		}()
		if err := fn(); err != nil {
			g.latch.fail(err)
		}
	}()
}

// join waits for every spawned stage to return.
func (g *stageGroup) join() { g.wg.Wait() }
