package tracking

import "encoding/json"

// TighteningMode distinguishes whether a tracker delegates to a
// BatchManager or runs in single-cycle mode.
type TighteningMode int

const (
	ModeSingle TighteningMode = iota
	ModeBatch
)

// TighteningTracker wraps either Single mode or a BatchManager behind a
// monotonic sequence counter that advances on every AddTightening
// regardless of mode or OK/NOK.
type TighteningTracker struct {
	mode     TighteningMode
	batch    *BatchManager
	sequence uint32
}

// NewTighteningTracker starts in Single mode.
func NewTighteningTracker() *TighteningTracker {
	return &TighteningTracker{mode: ModeSingle}
}

// Mode reports the tracker's current mode.
func (t *TighteningTracker) Mode() TighteningMode { return t.mode }

// EnableBatch installs a fresh BatchManager, switching to Batch mode.
// The sequence counter is preserved across the switch.
func (t *TighteningTracker) EnableBatch(size uint32) {
	t.mode = ModeBatch
	t.batch = NewBatchManager(size)
}

// AddTightening advances the sequence and, in Batch mode, delegates to
// the BatchManager, overriding the returned TighteningID with the
// global sequence value. In Single mode it always reports counter 0
// and status BatchNotUsed.
func (t *TighteningTracker) AddTightening(ok bool) TighteningInfo {
	t.sequence++
	if t.mode == ModeSingle {
		return TighteningInfo{Counter: 0, TighteningID: t.sequence, Status: BatchNotUsed}
	}
	info := t.batch.AddTightening(ok)
	info.TighteningID = t.sequence
	return info
}

// IncrementBatch delegates to the BatchManager in Batch mode (advancing
// the sequence too); it is a no-op in Single mode.
func (t *TighteningTracker) IncrementBatch() (TighteningInfo, bool) {
	if t.mode != ModeBatch {
		return TighteningInfo{}, false
	}
	t.sequence++
	info := t.batch.Increment()
	info.TighteningID = t.sequence
	return info, true
}

// ResetBatch delegates to the BatchManager in Batch mode, returning
// true; it is a no-op returning false in Single mode.
func (t *TighteningTracker) ResetBatch() bool {
	if t.mode != ModeBatch {
		return false
	}
	t.batch.Reset()
	return true
}

// SetTargetSize delegates to the BatchManager in Batch mode.
func (t *TighteningTracker) SetTargetSize(n uint32) bool {
	if t.mode != ModeBatch {
		return false
	}
	t.batch.SetTargetSize(n)
	return true
}

// BatchSize is 0 in Single mode.
func (t *TighteningTracker) BatchSize() uint32 {
	if t.mode != ModeBatch {
		return 0
	}
	return t.batch.TargetSize()
}

// Counter is 0 in Single mode.
func (t *TighteningTracker) Counter() uint32 {
	if t.mode != ModeBatch {
		return 0
	}
	return t.batch.Counter()
}

// RemainingWork reports target-counter in Batch mode; ok is false in
// Single mode (no remaining-work concept applies).
func (t *TighteningTracker) RemainingWork() (remaining uint32, ok bool) {
	if t.mode != ModeBatch {
		return 0, false
	}
	target, counter := t.batch.TargetSize(), t.batch.Counter()
	if counter >= target {
		return 0, true
	}
	return target - counter, true
}

// ShouldWaitForConfig is false in Single mode; in Batch mode it mirrors
// IsComplete (a finished batch waits for a new target size before the
// scheduler resumes producing cycles).
func (t *TighteningTracker) ShouldWaitForConfig() bool {
	if t.mode != ModeBatch {
		return false
	}
	return t.batch.IsComplete()
}

// IsComplete is false in Single mode.
func (t *TighteningTracker) IsComplete() bool {
	if t.mode != ModeBatch {
		return false
	}
	return t.batch.IsComplete()
}

// Sequence returns the current monotonic tightening sequence value.
func (t *TighteningTracker) Sequence() uint32 { return t.sequence }

// BatchStatusValue returns the wire-encoded batch status (2 in Single mode).
func (t *TighteningTracker) BatchStatusValue() int {
	if t.mode != ModeBatch {
		return 2
	}
	return t.batch.status().WireValue()
}

// MarshalJSON exposes the tracker's externally-visible fields for the
// HTTP surface's GET /state; the underlying mode/batch/sequence fields
// stay unexported so callers can only mutate through the typed API.
func (t *TighteningTracker) MarshalJSON() ([]byte, error) {
	mode := "single"
	if t.mode == ModeBatch {
		mode = "batch"
	}
	return json.Marshal(struct {
		Mode      string `json:"mode"`
		Sequence  uint32 `json:"sequence"`
		Counter   uint32 `json:"counter"`
		BatchSize uint32 `json:"batch_size"`
	}{
		Mode:      mode,
		Sequence:  t.sequence,
		Counter:   t.Counter(),
		BatchSize: t.BatchSize(),
	})
}
