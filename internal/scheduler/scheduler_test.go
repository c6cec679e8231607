package scheduler_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jarrekstar/open-protocol-device-simulator/internal/device"
	"github.com/Jarrekstar/open-protocol-device-simulator/internal/events"
	"github.com/Jarrekstar/open-protocol-device-simulator/internal/pset"
	"github.com/Jarrekstar/open-protocol-device-simulator/internal/scheduler"
)

func newTestScheduler(t *testing.T) (*scheduler.Scheduler, *device.Observable) {
	t.Helper()
	obs := device.NewObservable(device.New(), events.New(32))
	return scheduler.New(obs, pset.NewInMemoryRepository()), obs
}

func waitForEvent(t *testing.T, sub *events.Subscription, kind events.Kind, timeout time.Duration) events.Event {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case e := <-sub.Events():
			if e.Kind == kind {
				return e
			}
		case <-deadline:
			t.Fatalf("timed out waiting for event kind=%d", kind)
		}
	}
}

func TestScheduler_StartTwiceConflicts(t *testing.T) {
	s, _ := newTestScheduler(t)
	cfg := scheduler.Config{IntervalMS: 20, DurationMS: 5, FailureRate: 0}

	require.NoError(t, s.Start(cfg))
	defer s.Stop()

	err := s.Start(cfg)
	assert.ErrorIs(t, err, scheduler.ErrAlreadyRunning)
}

func TestScheduler_StopIsIdempotentAndClearsRunning(t *testing.T) {
	s, _ := newTestScheduler(t)
	cfg := scheduler.Config{IntervalMS: 20, DurationMS: 5, FailureRate: 0}

	require.NoError(t, s.Start(cfg))
	assert.True(t, s.IsRunning())

	s.Stop()
	s.Stop()

	assert.Eventually(t, func() bool { return !s.IsRunning() }, time.Second, 5*time.Millisecond)
}

func TestScheduler_SingleCyclePublishesExpectedSequence(t *testing.T) {
	s, obs := newTestScheduler(t)
	sub := obs.Subscribe()
	defer obs.Unsubscribe(sub)

	cfg := scheduler.Config{IntervalMS: 200, DurationMS: 5, FailureRate: 0}
	require.NoError(t, s.Start(cfg))
	defer s.Stop()

	waitForEvent(t, sub, events.KindTighteningCompleted, 2*time.Second)
	waitForEvent(t, sub, events.KindAutoTighteningProgress, 2*time.Second)
}

func TestScheduler_StopsWhenToolDisabled(t *testing.T) {
	s, obs := newTestScheduler(t)
	obs.DisableTool()

	cfg := scheduler.Config{IntervalMS: 10, DurationMS: 5, FailureRate: 0}
	require.NoError(t, s.Start(cfg))

	assert.Eventually(t, func() bool { return !s.IsRunning() }, time.Second, 5*time.Millisecond)
}

func TestScheduler_MultiSpindleCyclePublishesStatusAndResult(t *testing.T) {
	s, obs := newTestScheduler(t)
	require.NoError(t, obs.EnableMultiSpindle(2, 100))

	sub := obs.Subscribe()
	defer obs.Unsubscribe(sub)

	cfg := scheduler.Config{IntervalMS: 200, DurationMS: 5, FailureRate: 0}
	require.NoError(t, s.Start(cfg))
	defer s.Stop()

	waitForEvent(t, sub, events.KindMultiSpindleResultCompleted, 2*time.Second)
}

func TestScheduler_WaitsWhenBatchAwaitingConfig(t *testing.T) {
	s, obs := newTestScheduler(t)
	obs.Mutate(func(d *device.State) {
		d.Tracker.EnableBatch(1)
		d.Tracker.AddTightening(true)
	})
	require.True(t, device.Query(obs, func(d *device.State) bool { return d.Tracker.ShouldWaitForConfig() }))

	cfg := scheduler.Config{IntervalMS: 10, DurationMS: 5, FailureRate: 0}
	require.NoError(t, s.Start(cfg))
	defer s.Stop()

	time.Sleep(50 * time.Millisecond)
	status := s.Status()
	assert.Equal(t, uint32(1), status.Counter)
	assert.True(t, status.Running)
}

func TestScheduler_StatusReportsRemainingBolts(t *testing.T) {
	s, obs := newTestScheduler(t)
	obs.SetBatchSize(5)

	status := s.Status()
	require.NotNil(t, status.RemainingBolts)
	assert.Equal(t, uint32(5), *status.RemainingBolts)
	assert.False(t, status.Running)
}
