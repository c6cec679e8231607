// Package multispindle models synchronized multi-spindle tightening: a
// config, per-spindle results, and the aggregate outcome across a sync
// group.
package multispindle

import "time"

// Config describes a multi-spindle configuration.
type Config struct {
	Enabled      bool
	SpindleCount uint8
	SyncID       uint32
}

// DisabledConfig is the "off" configuration: disabled, with a single
// spindle.
func DisabledConfig() Config {
	return Config{Enabled: false, SpindleCount: 1}
}

// IsValid reports whether the configuration is internally consistent.
// A disabled config is always valid; an enabled one requires
// spindle_count in [2,16].
func (c Config) IsValid() bool {
	if !c.Enabled {
		return true
	}
	return c.SpindleCount >= 2 && c.SpindleCount <= 16
}

// SpindleResult is one spindle's outcome within a sync group.
type SpindleResult struct {
	SpindleID    uint8
	ChannelID    uint8
	Torque       int32 // centi-Nm
	Angle        int32 // deci-degrees
	TorqueStatus uint8 // 0=OK, 1=NOK
	AngleStatus  uint8 // 0=OK, 1=NOK
}

// IsOK reports whether both torque and angle statuses are OK.
func (r SpindleResult) IsOK() bool {
	return r.TorqueStatus == 0 && r.AngleStatus == 0
}

// OKSpindleResult builds a passing spindle result.
func OKSpindleResult(spindleID uint8, torque, angle int32) SpindleResult {
	return SpindleResult{SpindleID: spindleID, ChannelID: spindleID, Torque: torque, Angle: angle}
}

// NOKSpindleResult builds a failing spindle result with the given
// torque/angle failure flags.
func NOKSpindleResult(spindleID uint8, torque, angle int32, torqueFailed, angleFailed bool) SpindleResult {
	r := SpindleResult{SpindleID: spindleID, ChannelID: spindleID, Torque: torque, Angle: angle}
	if torqueFailed {
		r.TorqueStatus = 1
	}
	if angleFailed {
		r.AngleStatus = 1
	}
	return r
}

// Result is the aggregate outcome for one sync group.
type Result struct {
	ResultID      uint32
	SyncID        uint32
	Timestamp     string
	OverallStatus uint8 // 0=OK, 1=NOK
	SpindleCount  uint8
	SpindleResults []SpindleResult
}

// NewResult aggregates spindleResults into a Result, computing
// OverallStatus = OK iff every spindle is OK.
func NewResult(resultID, syncID uint32, spindleResults []SpindleResult, now time.Time) Result {
	overall := uint8(0)
	for _, r := range spindleResults {
		if !r.IsOK() {
			overall = 1
			break
		}
	}
	return Result{
		ResultID:       resultID,
		SyncID:         syncID,
		Timestamp:      now.Format("2006-01-02 15:04:05"),
		OverallStatus:  overall,
		SpindleCount:   uint8(len(spindleResults)),
		SpindleResults: spindleResults,
	}
}

// IsOK reports overall status.
func (r Result) IsOK() bool { return r.OverallStatus == 0 }

// OKCount counts passing spindles.
func (r Result) OKCount() int {
	n := 0
	for _, s := range r.SpindleResults {
		if s.IsOK() {
			n++
		}
	}
	return n
}

// NOKCount counts failing spindles.
func (r Result) NOKCount() int {
	return len(r.SpindleResults) - r.OKCount()
}

// Status is the lightweight MID 0091 broadcast payload.
type Status struct {
	SyncID       uint32
	StatusCode   uint8 // 0=Waiting, 1=Running, 2=Completed
	SpindleCount uint8
	Timestamp    string
}

const (
	StatusWaiting   uint8 = 0
	StatusRunning   uint8 = 1
	StatusCompleted uint8 = 2
)

func newStatus(syncID uint32, code uint8, spindleCount uint8, now time.Time) Status {
	return Status{
		SyncID:       syncID,
		StatusCode:   code,
		SpindleCount: spindleCount,
		Timestamp:    now.Format("2006-01-02 15:04:05"),
	}
}

// WaitingStatus builds a Waiting status.
func WaitingStatus(syncID uint32, spindleCount uint8, now time.Time) Status {
	return newStatus(syncID, StatusWaiting, spindleCount, now)
}

// RunningStatus builds a Running status.
func RunningStatus(syncID uint32, spindleCount uint8, now time.Time) Status {
	return newStatus(syncID, StatusRunning, spindleCount, now)
}

// CompletedStatus builds a Completed status.
func CompletedStatus(syncID uint32, spindleCount uint8, now time.Time) Status {
	return newStatus(syncID, StatusCompleted, spindleCount, now)
}

const (
	baseTorque = 5000 // 50.00 Nm
	baseAngle  = 1800 // 180.0 degrees
)

// GenerateResults synthesizes spindle_count results with per-spindle
// variation v = (spindle_id-1)*5 applied as torque += 10v, angle += 2v.
// The last spindle is NOK iff result_id % 10 == 0 (torque reduced by
// 500, torque_status failed, angle untouched).
func GenerateResults(config Config, resultID uint32, now time.Time) Result {
	results := make([]SpindleResult, 0, config.SpindleCount)

	for spindleID := uint8(1); spindleID <= config.SpindleCount; spindleID++ {
		variation := int32(spindleID-1) * 5
		torque := int32(baseTorque) + variation*10
		angle := int32(baseAngle) + variation*2

		isLast := spindleID == config.SpindleCount
		failsThisCycle := resultID%10 == 0
		if isLast && failsThisCycle {
			results = append(results, NOKSpindleResult(spindleID, torque-500, angle, true, false))
		} else {
			results = append(results, OKSpindleResult(spindleID, torque, angle))
		}
	}

	return NewResult(resultID, config.SyncID, results, now)
}
