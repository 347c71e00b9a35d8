// Package clock provides an injectable time abstraction so that
// timer-driven state machines can be tested deterministically.
// Production code injects Real(); tests inject a Fake and advance it
// explicitly.
package clock

import "time"

// Clock abstracts the subset of the time package the sync layer uses.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// AfterFunc waits for duration d, then calls f in its own
	// goroutine (Real) or synchronously during Advance (Fake).
	// The returned Timer cancels the pending call with Stop.
	AfterFunc(d time.Duration, f func()) Timer

	// NewTicker delivers ticks on its channel at the given interval.
	NewTicker(d time.Duration) Ticker
}

// Timer is a cancellable scheduled call.
type Timer interface {
	// Stop prevents the timer from firing. Returns false if it
	// already fired or was stopped.
	Stop() bool
}

// Ticker delivers periodic ticks until stopped.
type Ticker interface {
	Chan() <-chan time.Time
	Stop()
}

type realClock struct{}

// Real returns a Clock backed by the time package.
func Real() Clock { return realClock{} }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return realTimer{time.AfterFunc(d, f)}
}

func (realClock) NewTicker(d time.Duration) Ticker {
	return realTicker{time.NewTicker(d)}
}

type realTimer struct{ t *time.Timer }

func (r realTimer) Stop() bool { return r.t.Stop() }

type realTicker struct{ t *time.Ticker }

func (r realTicker) Chan() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()                  { r.t.Stop() }
