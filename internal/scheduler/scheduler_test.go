package scheduler_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"codeberg.org/mutker/plantsim/internal/errors"
	"codeberg.org/mutker/plantsim/internal/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type recorder struct {
	mu    sync.Mutex
	ticks []scheduler.Tick
}

func (r *recorder) handle(t scheduler.Tick) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ticks = append(r.ticks, t)
}

func (r *recorder) offsets() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]time.Duration, 0, len(r.ticks))
	for _, t := range r.ticks {
		out = append(out, t.At.Sub(epoch))
	}
	return out
}

func newFake(t *testing.T, cadence time.Duration) (*scheduler.Scheduler, *scheduler.FakeClock, *recorder) {
	t.Helper()
	clock := scheduler.NewFakeClock(epoch)
	rec := &recorder{}
	s, err := scheduler.New(cadence, rec.handle, scheduler.WithClock(clock))
	require.NoError(t, err)
	t.Cleanup(s.Stop)
	return s, clock, rec
}

func TestNewRejectsNonPositiveCadence(t *testing.T) {
	for _, cadence := range []time.Duration{0, -time.Second} {
		_, err := scheduler.New(cadence, func(scheduler.Tick) {})
		require.Error(t, err)
		assert.Equal(t, errors.ErrInvalidConfig, errors.CodeOf(err))
	}
}

func TestStartRejectsNonPositiveCadence(t *testing.T) {
	s, _, _ := newFake(t, time.Second)

	err := s.Start(0)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrInvalidConfig))
	assert.Equal(t, scheduler.Stopped, s.State())
}

func TestStartsStopped(t *testing.T) {
	s, clock, rec := newFake(t, time.Second)

	assert.Equal(t, scheduler.Stopped, s.State())
	assert.Equal(t, time.Second, s.Cadence())

	clock.Advance(5 * time.Second)
	assert.Empty(t, rec.offsets())
}

func TestTicksOncePerCadence(t *testing.T) {
	s, clock, rec := newFake(t, 1500*time.Millisecond)
	require.NoError(t, s.Start(1500*time.Millisecond))
	assert.Equal(t, scheduler.Running, s.State())

	clock.Advance(3200 * time.Millisecond)
	s.Stop()

	assert.Equal(t, []time.Duration{1500 * time.Millisecond, 3000 * time.Millisecond}, rec.offsets())
	assert.Equal(t, scheduler.Stopped, s.State())
}

func TestTickCarriesCadence(t *testing.T) {
	s, clock, rec := newFake(t, time.Second)
	require.NoError(t, s.Start(250*time.Millisecond))

	clock.Advance(250 * time.Millisecond)
	s.Stop()

	require.Len(t, rec.ticks, 1)
	assert.Equal(t, 250*time.Millisecond, rec.ticks[0].Cadence)
}

func TestStopCancelsPendingTicks(t *testing.T) {
	s, clock, rec := newFake(t, time.Second)
	require.NoError(t, s.Start(time.Second))

	clock.Advance(1500 * time.Millisecond)
	s.Stop()
	clock.Advance(10 * time.Second)

	assert.Len(t, rec.offsets(), 1)
	assert.Equal(t, 0, clock.Tickers())
}

func TestStopIsIdempotent(t *testing.T) {
	s, _, _ := newFake(t, time.Second)

	assert.NotPanics(t, func() {
		s.Stop()
		require.NoError(t, s.Start(time.Second))
		s.Stop()
		s.Stop()
	})
	assert.Equal(t, scheduler.Stopped, s.State())
}

func TestStopThenStartRestartsCadence(t *testing.T) {
	s, clock, rec := newFake(t, time.Second)
	require.NoError(t, s.Start(time.Second))

	clock.Advance(700 * time.Millisecond)
	s.Stop()
	require.NoError(t, s.Start(time.Second))

	clock.Advance(999 * time.Millisecond)
	assert.Empty(t, rec.offsets())

	clock.Advance(1 * time.Millisecond)
	clock.Advance(2 * time.Second)
	s.Stop()

	assert.Equal(t, []time.Duration{
		1700 * time.Millisecond,
		2700 * time.Millisecond,
		3700 * time.Millisecond,
	}, rec.offsets())
}

func TestStartWhileRunningRestarts(t *testing.T) {
	s, clock, _ := newFake(t, time.Second)
	require.NoError(t, s.Start(time.Second))
	require.NoError(t, s.Start(2*time.Second))

	assert.Equal(t, 1, clock.Tickers())
	assert.Equal(t, 2*time.Second, s.Cadence())
}

func TestReconfigureWhileRunning(t *testing.T) {
	s, clock, rec := newFake(t, time.Second)
	require.NoError(t, s.Start(time.Second))

	clock.Advance(1500 * time.Millisecond)
	require.NoError(t, s.Reconfigure(500*time.Millisecond))
	assert.Equal(t, scheduler.Running, s.State())

	clock.Advance(1000 * time.Millisecond)
	s.Stop()

	assert.Equal(t, []time.Duration{
		1000 * time.Millisecond,
		2000 * time.Millisecond,
		2500 * time.Millisecond,
	}, rec.offsets())
}

func TestReconfigureWhileStoppedOnlyRecords(t *testing.T) {
	s, clock, rec := newFake(t, time.Second)

	require.NoError(t, s.Reconfigure(300*time.Millisecond))
	assert.Equal(t, scheduler.Stopped, s.State())
	assert.Equal(t, 300*time.Millisecond, s.Cadence())

	clock.Advance(time.Second)
	assert.Empty(t, rec.offsets())

	require.NoError(t, s.Start(s.Cadence()))
	clock.Advance(600 * time.Millisecond)
	s.Stop()
	assert.Len(t, rec.offsets(), 2)
}

func TestReconfigureRejectsNonPositive(t *testing.T) {
	s, _, _ := newFake(t, time.Second)
	require.NoError(t, s.Start(time.Second))

	require.Error(t, s.Reconfigure(-time.Millisecond))
	assert.Equal(t, time.Second, s.Cadence())
	assert.Equal(t, scheduler.Running, s.State())
}

func TestTicksNeverOverlap(t *testing.T) {
	var inFlight, maxInFlight, count int32
	s, err := scheduler.New(time.Millisecond, func(scheduler.Tick) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			m := atomic.LoadInt32(&maxInFlight)
			if n <= m || atomic.CompareAndSwapInt32(&maxInFlight, m, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		atomic.AddInt32(&count, 1)
		atomic.AddInt32(&inFlight, -1)
	})
	require.NoError(t, err)

	require.NoError(t, s.Start(time.Millisecond))
	require.Eventually(t, func() bool { return atomic.LoadInt32(&count) >= 5 }, time.Second, time.Millisecond)
	s.Stop()

	assert.Equal(t, int32(1), atomic.LoadInt32(&maxInFlight))
	assert.Equal(t, int32(0), atomic.LoadInt32(&inFlight))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "running", scheduler.Running.String())
	assert.Equal(t, "stopped", scheduler.Stopped.String())
}
