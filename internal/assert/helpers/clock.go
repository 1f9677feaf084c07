package helpers

import (
	"sync"
	"time"

	"github.com/kode4food/flowrelay/internal/client"
)

type (
	// FakeClock builds timers that record their delay instead of sleeping.
	// Unless held, every timer fires immediately
	FakeClock struct {
		scheduled chan time.Duration
		timers    []*FakeTimer
		delays    []time.Duration
		mu        sync.Mutex
		hold      bool
	}

	// FakeTimer is a client.Timer controlled by a FakeClock
	FakeTimer struct {
		ch    chan time.Time
		mu    sync.Mutex
		delay time.Duration
		fired bool
		stop  bool
	}
)

var _ client.Timer = (*FakeTimer)(nil)

// NewFakeClock creates a clock whose timers fire as soon as they are built
func NewFakeClock() *FakeClock {
	return &FakeClock{scheduled: make(chan time.Duration, 100)}
}

// NewHeldClock creates a clock whose timers only fire through FireAll
func NewHeldClock() *FakeClock {
	c := NewFakeClock()
	c.hold = true
	return c
}

// NewTimer satisfies client.TimerConstructor
func (c *FakeClock) NewTimer(delay time.Duration) client.Timer {
	t := &FakeTimer{
		ch:    make(chan time.Time, 1),
		delay: delay,
	}

	c.mu.Lock()
	c.delays = append(c.delays, delay)
	c.timers = append(c.timers, t)
	hold := c.hold
	c.mu.Unlock()

	if !hold {
		t.fire()
	}
	select {
	case c.scheduled <- delay:
	default:
	}
	return t
}

// Delays returns every delay requested so far, in order
func (c *FakeClock) Delays() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.delays...)
}

// Scheduled receives each delay as its timer is built
func (c *FakeClock) Scheduled() <-chan time.Duration {
	return c.scheduled
}

// Timers returns every timer built so far
func (c *FakeClock) Timers() []*FakeTimer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*FakeTimer(nil), c.timers...)
}

// FireAll fires every pending timer
func (c *FakeClock) FireAll() {
	for _, t := range c.Timers() {
		t.fire()
	}
}

func (t *FakeTimer) Channel() <-chan time.Time {
	return t.ch
}

func (t *FakeTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	wasPending := !t.fired && !t.stop
	t.stop = true
	return wasPending
}

// Stopped reports whether Stop was called
func (t *FakeTimer) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stop
}

// Delay returns the delay the timer was built with
func (t *FakeTimer) Delay() time.Duration {
	return t.delay
}

func (t *FakeTimer) fire() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.fired || t.stop {
		return
	}
	t.fired = true
	t.ch <- time.Now()
}
