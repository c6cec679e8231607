// Package tracking implements the batch/tightening counting semantics:
// a BatchManager tracks progress toward a target OK count, and a
// TighteningTracker wraps either a single-cycle mode or a BatchManager
// behind a monotonic global sequence counter.
package tracking

// BatchStatus is the logical completion state of a batch.
type BatchStatus int

const (
	BatchNotFinished BatchStatus = iota
	BatchCompletedOK
	BatchCompletedNOK
	// BatchNotUsed is reported by TighteningTracker in Single mode, where
	// no batch is active.
	BatchNotUsed
)

// WireValue encodes the status for the protocol: 0=NOK, 1=OK, 2=not used/finished.
func (s BatchStatus) WireValue() int {
	switch s {
	case BatchCompletedOK:
		return 1
	case BatchCompletedNOK:
		return 0
	default:
		return 2
	}
}

// TighteningInfo is returned from every counter-advancing operation.
type TighteningInfo struct {
	Counter      uint32
	TighteningID uint32
	Status       BatchStatus
}

// BatchManager counts OK tightenings toward a target, tracking whether
// any NOK has occurred along the way.
type BatchManager struct {
	counter    uint32
	targetSize uint32
	completed  bool
	hasNOK     bool
}

// NewBatchManager returns a fresh manager with counter 0, not completed.
func NewBatchManager(targetSize uint32) *BatchManager {
	return &BatchManager{targetSize: targetSize}
}

// AddTightening records one tightening result. OK advances the counter;
// NOK only sets the has-NOK flag. Completion is recomputed afterward.
// Once completed, the counter is frozen: further calls report the
// final counter/status without mutating state.
func (b *BatchManager) AddTightening(ok bool) TighteningInfo {
	if b.completed {
		return TighteningInfo{Counter: b.counter, Status: b.status()}
	}
	if ok {
		b.counter++
	} else {
		b.hasNOK = true
	}
	b.refreshCompletion()
	return TighteningInfo{Counter: b.counter, Status: b.status()}
}

// Increment advances the counter regardless of OK/NOK, used to skip a
// position in the batch (MID 0128). Frozen once completed, same as
// AddTightening.
func (b *BatchManager) Increment() TighteningInfo {
	if b.completed {
		return TighteningInfo{Counter: b.counter, Status: b.status()}
	}
	b.counter++
	b.refreshCompletion()
	return TighteningInfo{Counter: b.counter, Status: b.status()}
}

func (b *BatchManager) refreshCompletion() {
	if b.counter >= b.targetSize {
		b.completed = true
	}
}

func (b *BatchManager) status() BatchStatus {
	if !b.completed {
		return BatchNotFinished
	}
	if b.hasNOK {
		return BatchCompletedNOK
	}
	return BatchCompletedOK
}

// Reset clears counter, completed, and has-NOK. Target size is unchanged.
func (b *BatchManager) Reset() {
	b.counter = 0
	b.completed = false
	b.hasNOK = false
}

// SetTargetSize installs a new target and resets.
func (b *BatchManager) SetTargetSize(n uint32) {
	b.targetSize = n
	b.Reset()
}

func (b *BatchManager) Counter() uint32    { return b.counter }
func (b *BatchManager) TargetSize() uint32 { return b.targetSize }
func (b *BatchManager) IsComplete() bool   { return b.completed }
func (b *BatchManager) HasNOK() bool       { return b.hasNOK }
