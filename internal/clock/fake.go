package clock

import (
	"sort"
	"sync"
	"time"
)

// Fake returns a deterministic Clock frozen at initial. Time moves only
// when Advance is called; pending AfterFunc callbacks fire synchronously
// inside Advance, in deadline order.
func Fake(initial time.Time) *FakeClock {
	return &FakeClock{current: initial}
}

// FakeClock is a Clock for tests. Safe for concurrent use.
type FakeClock struct {
	mu      sync.Mutex
	current time.Time
	waiters []*fakeWaiter
}

type fakeWaiter struct {
	deadline time.Time
	fire     func(now time.Time) // re-registers itself for tickers
	stopped  bool
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *FakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	w := &fakeWaiter{deadline: c.current.Add(d)}
	w.fire = func(time.Time) { f() }
	c.waiters = append(c.waiters, w)
	return &fakeTimer{clock: c, waiter: w}
}

func (c *FakeClock) NewTicker(d time.Duration) Ticker {
	if d <= 0 {
		panic("clock: non-positive ticker interval")
	}
	ch := make(chan time.Time, 1)
	t := &fakeTicker{clock: c, ch: ch}
	c.mu.Lock()
	defer c.mu.Unlock()
	t.register(c.current.Add(d), d)
	return t
}

// Advance moves the clock forward by d, firing every pending waiter
// whose deadline falls inside the window. Callbacks run synchronously
// with the clock set to their own deadline, so a callback observing
// Now() sees the time it was scheduled for.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.current.Add(d)
	for {
		var next *fakeWaiter
		for _, w := range c.waiters {
			if w.stopped || w.deadline.After(target) {
				continue
			}
			if next == nil || w.deadline.Before(next.deadline) {
				next = w
			}
		}
		if next == nil {
			break
		}
		next.stopped = true
		c.current = next.deadline
		c.compact()
		fire := next.fire
		now := c.current
		c.mu.Unlock()
		fire(now)
		c.mu.Lock()
	}
	c.current = target
	c.mu.Unlock()
}

// PendingTimers reports how many waiters are registered and not yet
// fired or stopped.
func (c *FakeClock) PendingTimers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, w := range c.waiters {
		if !w.stopped {
			n++
		}
	}
	return n
}

func (c *FakeClock) compact() {
	live := c.waiters[:0]
	for _, w := range c.waiters {
		if !w.stopped {
			live = append(live, w)
		}
	}
	sort.SliceStable(live, func(i, j int) bool {
		return live[i].deadline.Before(live[j].deadline)
	})
	c.waiters = live
}

type fakeTimer struct {
	clock  *FakeClock
	waiter *fakeWaiter
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.waiter.stopped {
		return false
	}
	t.waiter.stopped = true
	return true
}

type fakeTicker struct {
	clock   *FakeClock
	ch      chan time.Time
	stopped bool
}

func (t *fakeTicker) Chan() <-chan time.Time { return t.ch }

func (t *fakeTicker) Stop() {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	t.stopped = true
}

// register must be called with the clock lock held.
func (t *fakeTicker) register(deadline time.Time, interval time.Duration) {
	w := &fakeWaiter{deadline: deadline}
	w.fire = func(now time.Time) {
		t.clock.mu.Lock()
		stopped := t.stopped
		if !stopped {
			t.register(now.Add(interval), interval)
		}
		t.clock.mu.Unlock()
		if !stopped {
			select {
			case t.ch <- now:
			default:
			}
		}
	}
	t.clock.waiters = append(t.clock.waiters, w)
}
