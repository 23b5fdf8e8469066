package scheduler

import (
	"sync"
	"time"
)

type (
	// Clock abstracts the subset of package time the scheduler needs, so
	// tests can control apparent time.
	Clock interface {
		Now() time.Time
		NewTicker(d time.Duration) Ticker
	}

	// Ticker abstracts the functionality of time.Ticker.
	Ticker interface {
		C() <-chan time.Time
		Stop()
	}

	realClock struct{}

	realTicker struct {
		*time.Ticker
	}
)

// RealClock is the Clock backed by package time.
var RealClock Clock = realClock{}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) NewTicker(d time.Duration) Ticker {
	return realTicker{Ticker: time.NewTicker(d)}
}

func (t realTicker) C() <-chan time.Time {
	return t.Ticker.C
}

// FakeClock is a manually advanced Clock. Tickers fire only from Advance,
// and each fire blocks until the receiver takes it, so every tick due
// within the advanced span has been delivered when Advance returns.
type FakeClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*fakeTicker
}

type fakeTicker struct {
	clock  *FakeClock
	c      chan time.Time
	period time.Duration
	next   time.Time
	quit   chan struct{}
	once   sync.Once
}

// NewFakeClock returns a FakeClock reading start.
func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

func (f *FakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *FakeClock) NewTicker(d time.Duration) Ticker {
	if d <= 0 {
		panic("scheduler: non-positive ticker period")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	t := &fakeTicker{
		clock:  f,
		c:      make(chan time.Time),
		period: d,
		next:   f.now.Add(d),
		quit:   make(chan struct{}),
	}
	f.tickers = append(f.tickers, t)

	return t
}

// Advance moves the clock forward by d, firing due tickers in time order.
func (f *FakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	target := f.now.Add(d)
	f.mu.Unlock()

	for {
		f.mu.Lock()
		var due *fakeTicker
		for _, t := range f.tickers {
			if t.next.After(target) {
				continue
			}
			if due == nil || t.next.Before(due.next) {
				due = t
			}
		}

		if due == nil {
			f.now = target
			f.mu.Unlock()
			return
		}

		at := due.next
		f.now = at
		due.next = at.Add(due.period)
		f.mu.Unlock()

		select {
		case due.c <- at:
		case <-due.quit:
		}
	}
}

// Tickers returns the number of running tickers.
func (f *FakeClock) Tickers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tickers)
}

func (t *fakeTicker) C() <-chan time.Time {
	return t.c
}

func (t *fakeTicker) Stop() {
	t.once.Do(func() {
		close(t.quit)

		f := t.clock
		f.mu.Lock()
		defer f.mu.Unlock()
		for i, other := range f.tickers {
			if other == t {
				f.tickers = append(f.tickers[:i], f.tickers[i+1:]...)
				break
			}
		}
	})
}
