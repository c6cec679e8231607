package device

import (
	"sync"

	"github.com/Jarrekstar/open-protocol-device-simulator/internal/events"
	"github.com/Jarrekstar/open-protocol-device-simulator/internal/faultsim"
	"github.com/Jarrekstar/open-protocol-device-simulator/internal/fsm"
	"github.com/Jarrekstar/open-protocol-device-simulator/internal/multispindle"
)

// Observable wraps a State behind a reader-writer lock and publishes a
// typed event after those mutators that have a corresponding event kind.
// Every mutator mutates under the write lock; a publishing mutator then
// releases the lock and publishes its event fire-and-forget. The lock is
// never held across the publish step.
type Observable struct {
	mu    sync.RWMutex
	state *State
	bus   *events.Bus
	sim   *faultsim.Simulator
}

// NewObservable wraps state, publishing through bus.
func NewObservable(state *State, bus *events.Bus) *Observable {
	return &Observable{state: state, bus: bus}
}

// AttachSimulator gives the observable a reference to the live fault
// simulator shared with every TCP connection, so that SetFailureConfig
// takes effect on already-open connections rather than only on the
// State snapshot. The server runs correctly without a simulator
// attached (SetFailureConfig then only updates the snapshot returned
// by FailureConfig/GET /state); cmd/simulator wires it in serve.go.
func (o *Observable) AttachSimulator(sim *faultsim.Simulator) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.sim = sim
}

// Read runs fn with a read lock held over the state. fn must not block
// or retain the pointer past its call.
func (o *Observable) Read(fn func(*State)) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	fn(o.state)
}

// Snapshot returns a shallow copy of the state, suitable for JSON
// inspection (GET /state).
func (o *Observable) Snapshot() State {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return *o.state
}

func (o *Observable) publish(kind events.Kind, payload interface{}) {
	o.bus.Publish(events.Event{Kind: kind, Payload: payload})
}

// SetPset mutates then publishes PsetChanged. The broadcast name
// defaults to "Unknown" when name is nil.
func (o *Observable) SetPset(id uint32, name *string) {
	o.mu.Lock()
	o.state.SetPset(id, name)
	o.mu.Unlock()

	broadcastName := "Unknown"
	if name != nil {
		broadcastName = *name
	}
	o.publish(events.KindPsetChanged, PsetChangedPayload{ID: id, Name: broadcastName})
}

// SetBatchSize mutates only; no event is published.
func (o *Observable) SetBatchSize(size uint32) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state.SetBatchSize(size)
}

// EnableTool mutates then publishes ToolStateChanged(true).
func (o *Observable) EnableTool() {
	o.mu.Lock()
	o.state.EnableTool()
	o.mu.Unlock()
	o.publish(events.KindToolStateChanged, true)
}

// DisableTool mutates then publishes ToolStateChanged(false).
func (o *Observable) DisableTool() {
	o.mu.Lock()
	o.state.DisableTool()
	o.mu.Unlock()
	o.publish(events.KindToolStateChanged, false)
}

// SetVehicleID mutates then publishes VehicleIdChanged.
func (o *Observable) SetVehicleID(vin string) {
	o.mu.Lock()
	o.state.SetVehicleID(vin)
	o.mu.Unlock()
	o.publish(events.KindVehicleIdChanged, vin)
}

// CurrentVehicleID reads the current VIN, or "" if unset.
func (o *Observable) CurrentVehicleID() string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.state.VehicleID == nil {
		return ""
	}
	return *o.state.VehicleID
}

// EnableMultiSpindle mutates only; no event is published.
func (o *Observable) EnableMultiSpindle(count uint8, syncID uint32) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.EnableMultiSpindle(count, syncID)
}

// DisableMultiSpindle mutates only; no event is published.
func (o *Observable) DisableMultiSpindle() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state.DisableMultiSpindle()
}

// SetFailureConfig mutates the state snapshot and, if a simulator has
// been attached via AttachSimulator, pushes cfg into it too, so the
// next Decide call on every live connection observes the change. No
// event is published (not part of the closed event-kind set).
func (o *Observable) SetFailureConfig(cfg faultsim.Config) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state.Failure = cfg
	if o.sim != nil {
		o.sim.SetConfig(cfg)
	}
}

// FailureConfig reads the current failure-injection configuration.
func (o *Observable) FailureConfig() faultsim.Config {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state.Failure
}

// SetFSMState stores a snapshot of the live per-cycle FSM. The caller
// publishes the specific cycle-transition event separately.
func (o *Observable) SetFSMState(snap fsm.Snapshot) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state.FSMState = snap
}

// RecordTightening advances the tracker, records the result, and
// publishes TighteningCompleted; if the tracker thereby transitions
// into completion, BatchCompleted is also published.
func (o *Observable) RecordTightening(result TighteningResult) {
	o.mu.Lock()
	wasComplete := o.state.Tracker.IsComplete()
	o.state.Tracker.AddTightening(result.TighteningStatus)
	becameComplete := !wasComplete && o.state.Tracker.IsComplete()
	total := o.state.Tracker.Counter()
	o.mu.Unlock()

	o.publish(events.KindTighteningCompleted, result)
	if becameComplete {
		o.publish(events.KindBatchCompleted, total)
	}
}

// RecordBatchOutcome advances the tracker and, if it thereby becomes
// complete, publishes BatchCompleted — without publishing
// TighteningCompleted. Use this when the per-cycle outcome has already
// been broadcast through a different channel (e.g. a multi-spindle
// result), so only the tracker/batch bookkeeping remains to record.
func (o *Observable) RecordBatchOutcome(ok bool) {
	o.mu.Lock()
	wasComplete := o.state.Tracker.IsComplete()
	o.state.Tracker.AddTightening(ok)
	becameComplete := !wasComplete && o.state.Tracker.IsComplete()
	total := o.state.Tracker.Counter()
	o.mu.Unlock()

	if becameComplete {
		o.publish(events.KindBatchCompleted, total)
	}
}

// Mutate runs fn under the write lock with no event published. Use
// this for mutations outside the closed event-kind set (e.g. tracker
// batch bookkeeping).
func (o *Observable) Mutate(fn func(*State)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fn(o.state)
}

// Query runs fn under the read lock and returns its result.
func Query[T any](o *Observable, fn func(*State) T) T {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return fn(o.state)
}

// Subscribe registers a new event subscriber.
func (o *Observable) Subscribe() *events.Subscription { return o.bus.Subscribe() }

// Unsubscribe removes an event subscriber.
func (o *Observable) Unsubscribe(sub *events.Subscription) { o.bus.Unsubscribe(sub) }

// PublishMultiSpindleStatus publishes a MultiSpindleStatusCompleted event.
func (o *Observable) PublishMultiSpindleStatus(status multispindle.Status) {
	o.publish(events.KindMultiSpindleStatusCompleted, status)
}

// PublishMultiSpindleResult publishes a MultiSpindleResultCompleted event.
func (o *Observable) PublishMultiSpindleResult(result multispindle.Result) {
	o.publish(events.KindMultiSpindleResultCompleted, result)
}

// PublishAutoTighteningProgress publishes an AutoTighteningProgress event.
func (o *Observable) PublishAutoTighteningProgress(p AutoTighteningProgress) {
	o.publish(events.KindAutoTighteningProgress, p)
}
