// Package fsm implements the per-cycle tightening typestate: a lifecycle
// Idle -> Tightening -> Evaluating -> Idle, with a side exit to Error.
// Go has no consuming-typestate transitions, so legality is enforced
// with explicit state checks and a distinct concrete type per state.
package fsm

import (
	"fmt"
	"time"
)

// ErrorCode enumerates the reasons a cycle can abort.
type ErrorCode int

const (
	ErrorToolDisabled ErrorCode = iota
	ErrorTimeout
	ErrorInvalidPset
	ErrorGeneral
)

func (c ErrorCode) String() string {
	switch c {
	case ErrorToolDisabled:
		return "ToolDisabled"
	case ErrorTimeout:
		return "Timeout"
	case ErrorInvalidPset:
		return "InvalidPset"
	default:
		return "General"
	}
}

// TighteningParams are the per-cycle bounds and duration.
type TighteningParams struct {
	TorqueTarget float64
	TorqueMin    float64
	TorqueMax    float64
	AngleTarget  float64
	AngleMin     float64
	AngleMax     float64
	DurationMS   int64
}

// TighteningOutcome is the result of a completed cycle.
type TighteningOutcome struct {
	ActualTorque  float64
	ActualAngle   float64
	MeasuredMS    int64
	TorqueOK      bool
	AngleOK       bool
	OK            bool
}

// StateKind names which concrete state a snapshot represents.
type StateKind int

const (
	KindIdle StateKind = iota
	KindTightening
	KindEvaluating
	KindError
)

// Snapshot is the serializable form of the FSM's current state, stored
// in DeviceState. The live FSM (below) carries non-serialized timing.
type Snapshot struct {
	Kind StateKind

	// Tightening fields.
	Progress     float64
	ElapsedMS    int64
	TargetTorque float64
	TargetAngle  float64

	// Evaluating fields.
	OK           bool
	TorqueOK     bool
	AngleOK      bool
	ActualTorque float64
	ActualAngle  float64

	// Error fields.
	Code ErrorCode
}

// TransitionError reports an illegal call for the FSM's current state.
type TransitionError struct {
	From StateKind
	Op   string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("illegal operation %q in state %v", e.Op, e.From)
}

// FSM is the live, mutable per-cycle state machine.
type FSM struct {
	kind StateKind

	startTime time.Time
	params    TighteningParams

	outcome TighteningOutcome

	code ErrorCode
}

// New returns an FSM in the Idle state.
func New() *FSM {
	return &FSM{kind: KindIdle}
}

// Kind reports the current state.
func (f *FSM) Kind() StateKind { return f.kind }

// StartTightening transitions Idle -> Tightening.
func (f *FSM) StartTightening(params TighteningParams, now time.Time) error {
	if f.kind != KindIdle {
		return &TransitionError{From: f.kind, Op: "start_tightening"}
	}
	f.kind = KindTightening
	f.startTime = now
	f.params = params
	return nil
}

// Progress returns elapsed/duration clamped to [0,1]. Only valid in Tightening.
func (f *FSM) Progress(now time.Time) float64 {
	elapsed := now.Sub(f.startTime).Milliseconds()
	if f.params.DurationMS <= 0 {
		return 1
	}
	p := float64(elapsed) / float64(f.params.DurationMS)
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// IsCycleComplete reports elapsed >= duration.
func (f *FSM) IsCycleComplete(now time.Time) bool {
	return now.Sub(f.startTime).Milliseconds() >= f.params.DurationMS
}

// Complete transitions Tightening -> Evaluating, generating an outcome
// from the elapsed wall-clock time. The variation formula derives two
// pseudo-random offsets v1, v2 in [0, 0.1) from elapsed nanoseconds:
// seed = ns % 1000; v1 = seed/10000; v2 = ((seed*7)%1000)/10000.
func (f *FSM) Complete(now time.Time) error {
	if f.kind != KindTightening {
		return &TransitionError{From: f.kind, Op: "complete"}
	}

	elapsedNS := now.Sub(f.startTime).Nanoseconds()
	seed := elapsedNS % 1000
	if seed < 0 {
		seed = -seed
	}
	v1 := float64(seed) / 10000.0
	v2 := float64((seed*7)%1000) / 10000.0

	actualTorque := f.params.TorqueTarget * (0.95 + v1)
	actualAngle := f.params.AngleTarget * (0.95 + v2)

	torqueOK := actualTorque >= f.params.TorqueMin && actualTorque <= f.params.TorqueMax
	angleOK := actualAngle >= f.params.AngleMin && actualAngle <= f.params.AngleMax

	f.outcome = TighteningOutcome{
		ActualTorque: actualTorque,
		ActualAngle:  actualAngle,
		MeasuredMS:   now.Sub(f.startTime).Milliseconds(),
		TorqueOK:     torqueOK,
		AngleOK:      angleOK,
		OK:           torqueOK && angleOK,
	}
	f.kind = KindEvaluating
	return nil
}

// Abort transitions Tightening -> Error.
func (f *FSM) Abort(code ErrorCode) error {
	if f.kind != KindTightening {
		return &TransitionError{From: f.kind, Op: "abort"}
	}
	f.code = code
	f.kind = KindError
	return nil
}

// Result returns the outcome computed by Complete. Only valid in Evaluating.
func (f *FSM) Result() (TighteningOutcome, error) {
	if f.kind != KindEvaluating {
		return TighteningOutcome{}, &TransitionError{From: f.kind, Op: "result"}
	}
	return f.outcome, nil
}

// Finish transitions Evaluating -> Idle.
func (f *FSM) Finish() error {
	if f.kind != KindEvaluating {
		return &TransitionError{From: f.kind, Op: "finish"}
	}
	f.kind = KindIdle
	return nil
}

// ClearError transitions Error -> Idle.
func (f *FSM) ClearError() error {
	if f.kind != KindError {
		return &TransitionError{From: f.kind, Op: "clear_error"}
	}
	f.kind = KindIdle
	return nil
}

// Code returns the last abort code. Only meaningful in Error.
func (f *FSM) Code() ErrorCode { return f.code }

// Snapshot renders the current state into its serializable form.
func (f *FSM) Snapshot(now time.Time) Snapshot {
	switch f.kind {
	case KindTightening:
		return Snapshot{
			Kind:         KindTightening,
			Progress:     f.Progress(now),
			ElapsedMS:    now.Sub(f.startTime).Milliseconds(),
			TargetTorque: f.params.TorqueTarget,
			TargetAngle:  f.params.AngleTarget,
		}
	case KindEvaluating:
		return Snapshot{
			Kind:         KindEvaluating,
			OK:           f.outcome.OK,
			TorqueOK:     f.outcome.TorqueOK,
			AngleOK:      f.outcome.AngleOK,
			ActualTorque: f.outcome.ActualTorque,
			ActualAngle:  f.outcome.ActualAngle,
		}
	case KindError:
		return Snapshot{Kind: KindError, Code: f.code}
	default:
		return Snapshot{Kind: KindIdle}
	}
}
