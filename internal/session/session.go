// Package session runs one live dashboard page: a sampler driven by a
// scheduler, feeding a table buffer and per-field chart series.
package session

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

	"codeberg.org/mutker/plantsim/internal/alert"
	"codeberg.org/mutker/plantsim/internal/buffer"
	"codeberg.org/mutker/plantsim/internal/errors"
	"codeberg.org/mutker/plantsim/internal/logger"
	"codeberg.org/mutker/plantsim/internal/scheduler"
	"codeberg.org/mutker/plantsim/internal/telemetry"
	"github.com/google/uuid"
)

// Session owns the sampler, buffers and scheduler of one page.
//
// Control calls are serialized by ctl. mu guards the buffers and sampler
// state and is shared with the tick handler; it is never held while
// waiting on the scheduler.
type Session struct {
	id       string
	page     Page
	clock    scheduler.Clock
	sched    *scheduler.Scheduler
	sinks    []Sink
	detector *alert.Detector
	log      logger.Logger
	rng      *rand.Rand

	ctl    sync.Mutex
	opened bool
	closed bool

	mu      sync.Mutex
	ctx     context.Context
	sampler telemetry.Sampler
	running bool
	cadence time.Duration
	seq     uint64
	table   *buffer.Rolling[telemetry.Record]
	labels  *buffer.Rolling[time.Time]
	series  map[string]*buffer.Rolling[float64]
	alerts  []alert.Alert
}

// Option configures a Session.
type Option func(*Session)

// WithClock sets the clock for ticks and timestamps.
func WithClock(c scheduler.Clock) Option {
	return func(s *Session) {
		s.clock = c
	}
}

// WithSinks adds sinks that receive every snapshot.
func WithSinks(sinks ...Sink) Option {
	return func(s *Session) {
		s.sinks = append(s.sinks, sinks...)
	}
}

// WithDetector sets the alert detector. Without one no alerts are raised.
func WithDetector(d *alert.Detector) Option {
	return func(s *Session) {
		s.detector = d
	}
}

func WithLogger(l logger.Logger) Option {
	return func(s *Session) {
		s.log = l
	}
}

// WithSeed seeds the sampler's random source. Zero seeds from the clock.
func WithSeed(seed int64) Option {
	return func(s *Session) {
		s.rng = telemetry.NewRand(seed)
	}
}

// New creates a stopped session for page ticking at cadence.
func New(page Page, cadence time.Duration, opts ...Option) (*Session, error) {
	if err := scheduler.ValidateCadence(cadence); err != nil {
		return nil, err
	}

	s := &Session{
		id:      uuid.NewString(),
		page:    page,
		clock:   scheduler.RealClock,
		log:     logger.Default(),
		ctx:     context.Background(),
		cadence: cadence,
		table:   buffer.NewTable[telemetry.Record](page.TableCapacity),
		labels:  buffer.NewSeries[time.Time](page.SeriesCapacity),
		series:  make(map[string]*buffer.Rolling[float64], len(page.Series)),
	}
	for _, field := range page.Series {
		s.series[field] = buffer.NewSeries[float64](page.SeriesCapacity)
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.rng == nil {
		s.rng = telemetry.NewRand(0)
	}
	s.log = s.log.With("page", page.Name)

	sched, err := scheduler.New(cadence, s.tick, scheduler.WithClock(s.clock))
	if err != nil {
		return nil, err
	}
	s.sched = sched

	return s, nil
}

func (s *Session) ID() string { return s.id }

func (s *Session) Page() Page { return s.page }

// State reports whether the session is ticking.
func (s *Session) State() scheduler.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

// Cadence returns the current tick period.
func (s *Session) Cadence() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cadence
}

// Open produces one record immediately and then starts ticking. ctx is
// passed to sinks for every snapshot of this session.
func (s *Session) Open(ctx context.Context) error {
	s.ctl.Lock()
	defer s.ctl.Unlock()

	if s.closed {
		return errClosed(s.page.Name)
	}
	if s.opened {
		return errors.New().WithMessage(errors.ErrAlreadyRunning, "session already open: "+s.page.Name)
	}

	now := s.clock.Now()

	s.mu.Lock()
	s.ctx = ctx
	s.sampler = s.page.Factory(s.rng, now)
	s.running = true
	cadence := s.cadence
	s.mu.Unlock()

	s.produce(now, cadence)

	if err := s.sched.Start(cadence); err != nil {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return errors.New().Wrap(errors.ErrOpenSession, err)
	}
	s.opened = true

	s.log.Debug().Dur("cadence", cadence).Msg("Session opened")

	return nil
}

// Toggle pauses a running session or resumes a stopped one and returns
// the resulting state.
func (s *Session) Toggle() (scheduler.State, error) {
	s.ctl.Lock()
	defer s.ctl.Unlock()

	if err := s.checkOpen(); err != nil {
		return scheduler.Stopped, err
	}

	if s.State() == scheduler.Running {
		s.pauseLocked()
		return scheduler.Stopped, nil
	}

	if err := s.resumeLocked(); err != nil {
		return scheduler.Stopped, err
	}
	return scheduler.Running, nil
}

// Pause stops ticking. Buffers are kept. Pausing a stopped session does
// nothing.
func (s *Session) Pause() error {
	s.ctl.Lock()
	defer s.ctl.Unlock()

	if err := s.checkOpen(); err != nil {
		return err
	}
	if s.State() == scheduler.Stopped {
		return nil
	}

	s.pauseLocked()
	return nil
}

// Resume restarts ticking at the current cadence. The first tick is one
// cadence away. Resuming a running session does nothing.
func (s *Session) Resume() error {
	s.ctl.Lock()
	defer s.ctl.Unlock()

	if err := s.checkOpen(); err != nil {
		return err
	}
	if s.State() == scheduler.Running {
		return nil
	}

	return s.resumeLocked()
}

// SetCadence changes the tick period. A running session restarts its
// timer; a stopped one keeps the cadence for the next Resume.
func (s *Session) SetCadence(cadence time.Duration) error {
	s.ctl.Lock()
	defer s.ctl.Unlock()

	if s.closed {
		return errClosed(s.page.Name)
	}
	if err := s.sched.Reconfigure(cadence); err != nil {
		return err
	}

	s.mu.Lock()
	s.cadence = cadence
	snap := s.snapshotLocked(EventState, nil)
	s.mu.Unlock()

	s.publish(snap)
	s.log.Debug().Dur("cadence", cadence).Msg("Cadence changed")

	return nil
}

// Clear empties the table and every chart series. Ticking continues.
func (s *Session) Clear() {
	s.mu.Lock()
	s.table.Clear()
	s.labels.Clear()
	for _, b := range s.series {
		b.Clear()
	}
	s.alerts = nil
	snap := s.snapshotLocked(EventClear, nil)
	s.mu.Unlock()

	s.publish(snap)
}

// Snapshot returns a copy of the current state without publishing it.
func (s *Session) Snapshot() *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.buildLocked(EventState, nil)
	if latest, ok := s.table.Latest(); ok {
		snap.Record = latest
	}
	snap.Alerts = append([]alert.Alert(nil), s.alerts...)

	return snap
}

// Close stops ticking for good. Further control calls fail.
func (s *Session) Close() {
	s.ctl.Lock()
	defer s.ctl.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	s.sched.Stop()

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	s.log.Debug().Msg("Session closed")
}

func (s *Session) checkOpen() error {
	if s.closed {
		return errClosed(s.page.Name)
	}
	if !s.opened {
		return errors.New().WithMessage(errors.ErrUnavailable, "session not open: "+s.page.Name)
	}
	return nil
}

func (s *Session) pauseLocked() {
	s.sched.Stop()

	s.mu.Lock()
	s.running = false
	snap := s.snapshotLocked(EventState, nil)
	s.mu.Unlock()

	s.publish(snap)
	s.log.Debug().Msg("Session paused")
}

func (s *Session) resumeLocked() error {
	cadence := s.Cadence()
	if err := s.sched.Start(cadence); err != nil {
		return err
	}

	s.mu.Lock()
	s.running = true
	snap := s.snapshotLocked(EventState, nil)
	s.mu.Unlock()

	s.publish(snap)
	s.log.Debug().Dur("cadence", cadence).Msg("Session resumed")

	return nil
}

func (s *Session) tick(t scheduler.Tick) {
	s.produce(t.At, t.Cadence)
}

// produce samples one record, appends it to every buffer and publishes the
// resulting snapshot.
func (s *Session) produce(now time.Time, step time.Duration) {
	s.mu.Lock()

	rec := s.sampler.Sample(now, step)
	s.table.Append(rec)
	s.labels.Append(rec.Time())

	values := rec.Values()
	for field, b := range s.series {
		b.Append(values[field])
	}

	s.alerts = s.detector.Check(s.page.Name, rec)
	snap := s.snapshotLocked(EventTick, rec)
	s.mu.Unlock()

	for _, a := range snap.Alerts {
		s.log.Warn().
			Str("field", a.Field).
			Float64("value", a.Value).
			Str("severity", string(a.Severity)).
			Msg(a.Message)
	}

	s.publish(snap)
}

// snapshotLocked advances the sequence number and builds the snapshot for
// an event. The caller must hold mu.
func (s *Session) snapshotLocked(ev Event, rec telemetry.Record) *Snapshot {
	s.seq++

	snap := s.buildLocked(ev, rec)
	if ev == EventTick {
		snap.Alerts = append([]alert.Alert(nil), s.alerts...)
	}

	return snap
}

func (s *Session) buildLocked(ev Event, rec telemetry.Record) *Snapshot {
	snap := &Snapshot{
		SessionID: s.id,
		Page:      s.page.Name,
		Title:     s.page.Title,
		Event:     ev,
		Seq:       s.seq,
		State:     s.stateLocked().String(),
		CadenceMS: s.cadence.Milliseconds(),
		At:        s.clock.Now(),
		Record:    rec,
		Table:     s.table.Snapshot(),
		Labels:    s.labels.Snapshot(),
		Series:    make(map[string][]float64, len(s.series)),
		Stats:     make(map[string]Stats, len(s.series)),
	}

	for field, b := range s.series {
		values := b.Snapshot()
		snap.Series[field] = values
		snap.Stats[field] = calculateStats(values)
	}

	return snap
}

func (s *Session) stateLocked() scheduler.State {
	if s.running {
		return scheduler.Running
	}
	return scheduler.Stopped
}

func (s *Session) publish(snap *Snapshot) {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	for _, sink := range s.sinks {
		if err := sink.Publish(ctx, snap); err != nil {
			s.log.ErrorWithCode(errors.New().Wrap(errors.ErrPublish, err)).
				Uint64("seq", snap.Seq).
				Msg("Failed to publish snapshot")
		}
	}
}

func errClosed(page string) error {
	return errors.New().WithMessage(errors.ErrUnavailable, "session closed: "+page)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
