// Package scheduler implements the auto-tightening background loop: a
// cancellable task that drives the per-cycle FSM on a timer, derives
// params from the active PSET, and publishes the same event sequence a
// real controller would produce while running unattended.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Jarrekstar/open-protocol-device-simulator/internal/device"
	"github.com/Jarrekstar/open-protocol-device-simulator/internal/fsm"
	"github.com/Jarrekstar/open-protocol-device-simulator/internal/multispindle"
	"github.com/Jarrekstar/open-protocol-device-simulator/internal/pset"
	"github.com/Jarrekstar/open-protocol-device-simulator/internal/tracking"
)

// ErrAlreadyRunning is returned by Start when a scheduler is already active.
var ErrAlreadyRunning = errors.New("scheduler: already running")

// Config parameterizes one run of the loop.
type Config struct {
	IntervalMS  int64
	DurationMS  int64
	FailureRate float64
}

// DefaultConfig mirrors the HTTP surface's optional-field defaults.
func DefaultConfig() Config {
	return Config{IntervalMS: 1000, DurationMS: 500, FailureRate: 0.05}
}

// defaultParams is used when no PSET is currently selected, or the
// selected id is not in the repository.
var defaultParams = fsm.TighteningParams{
	TorqueTarget: 12.5,
	TorqueMin:    10.0,
	TorqueMax:    15.0,
	AngleTarget:  42.5,
	AngleMin:     35.0,
	AngleMax:     50.0,
	DurationMS:   500,
}

// Status reports the scheduler's current lifecycle state, the shape
// GET /auto-tightening/status returns.
type Status struct {
	Running        bool
	Counter        uint32
	TargetSize     uint32
	RemainingBolts *uint32
}

// Scheduler runs at most one auto-tightening loop at a time.
type Scheduler struct {
	obs   *device.Observable
	psets pset.Repository

	mu       sync.Mutex
	running  bool
	active   atomic.Bool
	cancel   context.CancelFunc
	done     chan struct{}
	resultID uint32
}

// New returns a scheduler bound to obs and psets. Neither is owned
// exclusively: the HTTP surface and TCP handlers read/write the same
// Observable concurrently.
func New(obs *device.Observable, psets pset.Repository) *Scheduler {
	return &Scheduler{obs: obs, psets: psets}
}

// Start launches the loop in its own goroutine. Returns ErrAlreadyRunning
// if a loop is already active.
func (s *Scheduler) Start(cfg Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.running = true
	s.active.Store(true)
	s.done = make(chan struct{})

	go s.run(ctx, cfg, s.done)
	return nil
}

// Stop clears the active flag. The loop observes it at the next check
// boundary; outstanding sleeps are not interrupted.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	wasRunning := s.running
	s.active.Store(false)
	s.mu.Unlock()

	if wasRunning {
		s.obs.PublishAutoTighteningProgress(device.AutoTighteningProgress{Running: false})
	}
}

// IsRunning reports whether a loop is currently active.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Status snapshots the tracker alongside the running flag.
func (s *Scheduler) Status() Status {
	st := device.Query(s.obs, func(d *device.State) Status {
		out := Status{Counter: d.Tracker.Counter(), TargetSize: d.Tracker.BatchSize()}
		if remaining, ok := d.Tracker.RemainingWork(); ok {
			r := remaining
			out.RemainingBolts = &r
		}
		return out
	})
	st.Running = s.IsRunning()
	return st
}

func (s *Scheduler) markStopped() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// run is the 9-step loop body, grounded on spec.md §4.P. It exits when
// the active flag clears, the context is cancelled, or the tool is
// disabled.
func (s *Scheduler) run(ctx context.Context, cfg Config, done chan struct{}) {
	defer close(done)
	defer s.markStopped()

	for s.active.Load() {
		select {
		case <-ctx.Done():
			return
		default:
		}

		// Step 1: self-terminate if the tool has been disabled.
		toolEnabled := device.Query(s.obs, func(d *device.State) bool { return d.ToolEnabled })
		if !toolEnabled {
			return
		}

		// Step 2: wait for fresh config, or for remaining batch work.
		waiting := device.Query(s.obs, func(d *device.State) bool {
			if d.Tracker.ShouldWaitForConfig() {
				return true
			}
			if d.Tracker.Mode() == tracking.ModeBatch {
				if remaining, ok := d.Tracker.RemainingWork(); ok && remaining == 0 {
					return true
				}
			}
			return false
		})
		if waiting {
			if !s.sleepOrStop(ctx, time.Duration(cfg.IntervalMS)*time.Millisecond) {
				return
			}
			continue
		}

		// Step 3: derive per-cycle params from the active PSET.
		params := s.currentParams(cfg)

		// Step 4: publish Tightening snapshot, then hold for the cycle.
		s.obs.SetFSMState(fsm.Snapshot{
			Kind:         fsm.KindTightening,
			Progress:     0,
			TargetTorque: params.TorqueTarget,
			TargetAngle:  params.AngleTarget,
		})
		if !s.sleepOrStop(ctx, time.Duration(params.DurationMS)*time.Millisecond) {
			return
		}

		// Step 5: run a fresh FSM to its natural outcome, then roll the
		// failure-rate draw against it.
		cycle := fsm.New()
		now := time.Now()
		_ = cycle.StartTightening(params, now)
		_ = cycle.Complete(now)
		outcome, _ := cycle.Result()

		r := float64(now.UnixMicro()%100) / 100.0
		finalOK := r >= cfg.FailureRate && outcome.OK

		// Step 6: publish Evaluating snapshot.
		s.obs.SetFSMState(fsm.Snapshot{
			Kind:         fsm.KindEvaluating,
			OK:           finalOK,
			TorqueOK:     outcome.TorqueOK,
			AngleOK:      outcome.AngleOK,
			ActualTorque: outcome.ActualTorque,
			ActualAngle:  outcome.ActualAngle,
		})

		// Step 7: record the cycle, branching on multi-spindle mode.
		multiCfg := device.Query(s.obs, func(d *device.State) multispindle.Config { return d.MultiSpindle })
		if multiCfg.Enabled {
			s.runMultiSpindleCycle(multiCfg, now)
		} else {
			s.runSingleCycle(params, outcome, finalOK, now)
		}

		// Step 8: progress event (BatchCompleted, if applicable, was
		// already published as part of recording the cycle above).
		s.publishProgress()

		// Step 9: back to Idle, then wait out the interval.
		s.obs.SetFSMState(fsm.Snapshot{Kind: fsm.KindIdle})
		if !s.sleepOrStop(ctx, time.Duration(cfg.IntervalMS)*time.Millisecond) {
			return
		}
	}
}

// sleepOrStop blocks for d, returning false early if the context is
// cancelled, or once d has elapsed if the active flag has cleared.
func (s *Scheduler) sleepOrStop(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return s.active.Load()
	case <-ctx.Done():
		return false
	}
}

func (s *Scheduler) currentParams(cfg Config) fsm.TighteningParams {
	psetID := device.Query(s.obs, func(d *device.State) *uint32 { return d.CurrentPsetID })
	if psetID == nil {
		p := defaultParams
		p.DurationMS = cfg.DurationMS
		return p
	}

	p, ok := s.psets.GetByID(*psetID)
	if !ok {
		p := defaultParams
		p.DurationMS = cfg.DurationMS
		return p
	}

	return fsm.TighteningParams{
		TorqueTarget: (p.TorqueMin + p.TorqueMax) / 2,
		TorqueMin:    p.TorqueMin,
		TorqueMax:    p.TorqueMax,
		AngleTarget:  (p.AngleMin + p.AngleMax) / 2,
		AngleMin:     p.AngleMin,
		AngleMax:     p.AngleMax,
		DurationMS:   cfg.DurationMS,
	}
}

// runSingleCycle records a TighteningResult for a non-multi-spindle cycle.
func (s *Scheduler) runSingleCycle(params fsm.TighteningParams, outcome fsm.TighteningOutcome, finalOK bool, now time.Time) {
	result := device.Query(s.obs, func(d *device.State) device.TighteningResult {
		r := device.TighteningResult{
			CellID:           d.CellID,
			ChannelID:        d.ChannelID,
			ControllerName:   d.ControllerName,
			VIN:              d.VehicleID,
			TighteningStatus: finalOK,
			TorqueStatus:     outcome.TorqueOK,
			AngleStatus:      outcome.AngleOK,
			TorqueMin:        params.TorqueMin,
			TorqueMax:        params.TorqueMax,
			TorqueTarget:     params.TorqueTarget,
			Torque:           outcome.ActualTorque,
			AngleMin:         params.AngleMin,
			AngleMax:         params.AngleMax,
			AngleTarget:      params.AngleTarget,
			Angle:            outcome.ActualAngle,
			Timestamp:        now.Format("2006-01-02 15:04:05"),
		}
		if d.CurrentPsetID != nil {
			r.PsetID = *d.CurrentPsetID
		}
		if d.CurrentJobID != nil {
			r.JobID = *d.CurrentJobID
		}
		r.BatchSize = d.Tracker.BatchSize()
		return r
	})

	s.obs.RecordTightening(result)
}

// runMultiSpindleCycle publishes the Running and then Completed status
// events and publishes the synthesized per-spindle result, then
// records the aggregate outcome in the tracker.
func (s *Scheduler) runMultiSpindleCycle(cfg multispindle.Config, now time.Time) {
	s.resultID++

	s.obs.PublishMultiSpindleStatus(multispindle.RunningStatus(cfg.SyncID, cfg.SpindleCount, now))

	result := multispindle.GenerateResults(cfg, s.resultID, now)
	s.obs.PublishMultiSpindleResult(result)

	s.obs.PublishMultiSpindleStatus(multispindle.CompletedStatus(cfg.SyncID, cfg.SpindleCount, now))

	s.obs.RecordBatchOutcome(result.IsOK())
}

func (s *Scheduler) publishProgress() {
	type counts struct{ counter, target uint32 }
	c := device.Query(s.obs, func(d *device.State) counts {
		return counts{counter: d.Tracker.Counter(), target: d.Tracker.BatchSize()}
	})

	s.obs.PublishAutoTighteningProgress(device.AutoTighteningProgress{
		Counter: c.counter,
		Target:  c.target,
		Running: true,
	})
}
