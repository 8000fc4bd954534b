/*
ticker.go - Dev block producer for the logical clock

PURPOSE:
  In production the host chain supplies the block height. In a standalone
  dev server nothing advances it, so expiries would never trigger. The
  ticker plays block producer: it advances the manual clock by one height at
  a fixed interval until stopped.

USAGE:
  ticker := api.NewClockTicker(engine.Clock, 2*time.Second, log)
  ticker.Start()
  defer ticker.Stop()

SEE ALSO:
  - generic/clock.go: The manual clock being advanced
*/
package api

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/caremesh/record-engine/generic"
)

// ClockTicker advances a manual clock at a fixed interval.
type ClockTicker struct {
	clock    *generic.Manual
	interval time.Duration
	log      *zap.Logger

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

// NewClockTicker creates a ticker over the given clock. Interval must be
// positive.
func NewClockTicker(clock *generic.Manual, interval time.Duration, log *zap.Logger) *ClockTicker {
	if log == nil {
		log = zap.NewNop()
	}
	return &ClockTicker{clock: clock, interval: interval, log: log}
}

// Start launches the ticking goroutine. Calling Start on a running ticker is
// a no-op.
func (t *ClockTicker) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stop != nil {
		return
	}
	t.stop = make(chan struct{})
	t.done = make(chan struct{})

	go func(stop, done chan struct{}) {
		defer close(done)
		ticker := time.NewTicker(t.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				h := t.clock.Advance(1)
				t.log.Debug("height advanced", zap.Uint64("height", uint64(h)))
			case <-stop:
				return
			}
		}
	}(t.stop, t.done)
}

// Stop halts the ticker and waits for the goroutine to exit.
func (t *ClockTicker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stop == nil {
		return
	}
	close(t.stop)
	<-t.done
	t.stop = nil
	t.done = nil
}
