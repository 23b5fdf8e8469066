// Package scheduler drives a tick handler on a fixed cadence with
// start, stop and live cadence changes.
package scheduler

import (
	"sync"
	"time"

	"codeberg.org/mutker/plantsim/internal/errors"
)

// State is the run state of a Scheduler.
type State int

const (
	Stopped State = iota
	Running
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Running:
		return "running"
	default:
		return "unknown"
	}
}

// Tick is one periodic invocation.
type Tick struct {
	// At is the time the tick fired.
	At time.Time
	// Cadence is the period of the loop that fired it.
	Cadence time.Duration
}

// Handler is called once per tick, never concurrently with itself. It must
// not call Start, Stop or Reconfigure on the Scheduler that invoked it.
type Handler func(Tick)

// Scheduler runs a Handler on one ticker goroutine.
type Scheduler struct {
	clock   Clock
	handler Handler

	mu      sync.Mutex
	state   State
	cadence time.Duration
	stop    chan struct{}
	done    chan struct{}
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock sets the clock used for tickers. Defaults to RealClock.
func WithClock(c Clock) Option {
	return func(s *Scheduler) {
		s.clock = c
	}
}

// New creates a stopped Scheduler with the given initial cadence.
func New(cadence time.Duration, handler Handler, opts ...Option) (*Scheduler, error) {
	if err := ValidateCadence(cadence); err != nil {
		return nil, err
	}

	s := &Scheduler{
		clock:   RealClock,
		handler: handler,
		cadence: cadence,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// ValidateCadence rejects non-positive cadences.
func ValidateCadence(cadence time.Duration) error {
	if cadence <= 0 {
		return errors.New().WithData(errors.ErrInvalidConfig, struct {
			Field   string
			Cadence string
		}{
			Field:   "cadence",
			Cadence: cadence.String(),
		})
	}

	return nil
}

// Start begins ticking at cadence, restarting the loop if already running.
func (s *Scheduler) Start(cadence time.Duration) error {
	if err := ValidateCadence(cadence); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()
	s.startLocked(cadence)

	return nil
}

// Stop cancels the pending tick and waits for an in-flight tick to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()
}

// Reconfigure changes the cadence. While running the loop is restarted
// and the next tick is one full cadence away; while stopped the cadence is
// only recorded for the next Start.
func (s *Scheduler) Reconfigure(cadence time.Duration) error {
	if err := ValidateCadence(cadence); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Stopped {
		s.cadence = cadence
		return nil
	}

	s.stopLocked()
	s.startLocked(cadence)

	return nil
}

func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Scheduler) Cadence() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cadence
}

func (s *Scheduler) startLocked(cadence time.Duration) {
	s.cadence = cadence
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	s.state = Running

	go s.loop(s.clock.NewTicker(cadence), cadence, s.stop, s.done)
}

func (s *Scheduler) stopLocked() {
	if s.state == Stopped {
		return
	}

	close(s.stop)
	<-s.done
	s.state = Stopped
}

func (s *Scheduler) loop(ticker Ticker, cadence time.Duration, stop, done chan struct{}) {
	defer close(done)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case at := <-ticker.C():
			s.handler(Tick{At: at, Cadence: cadence})
		}
	}
}
