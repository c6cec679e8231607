// Package handlers implements the MID dispatch table: one function per
// supported Open Protocol message, each reading/mutating the device's
// observable state and returning the wire response body.
package handlers

import (
	"github.com/Jarrekstar/open-protocol-device-simulator/internal/device"
	"github.com/Jarrekstar/open-protocol-device-simulator/internal/multispindle"
	"github.com/Jarrekstar/open-protocol-device-simulator/internal/protocol"
)

// ErrorCode names the MID 0004 wire error codes.
type ErrorCode int

const (
	ErrMidRevisionUnsupported ErrorCode = 1
	ErrControllerNotReady     ErrorCode = 2
	ErrClientAlreadyConnected ErrorCode = 3
	ErrInvalidData            ErrorCode = 4
	ErrParameterSetNotFound   ErrorCode = 5
	ErrJobNotFound            ErrorCode = 6
	ErrVehicleIdNotGranted    ErrorCode = 7
	ErrSubscriptionAlreadyExists ErrorCode = 8
	ErrSubscriptionDoesNotExist  ErrorCode = 9
	ErrGenericError           ErrorCode = 99
)

// errorResponseBody serializes MID 0004's 6-byte body: the failed MID
// (4 digits) followed by the error code (2 digits).
func errorResponseBody(failedMid uint16, code ErrorCode) []byte {
	return protocol.NewFieldBuilder().
		AddInt(protocol.NoParam, int64(failedMid), 4).
		AddInt(protocol.NoParam, int64(code), 2).
		Build()
}

// ErrorResponseBody builds MID 0004's body for an unhandled or
// unknown MID, for use by the connection task.
func ErrorResponseBody(failedMid int, code ErrorCode) []byte {
	return errorResponseBody(uint16(failedMid), code)
}

// commandAcceptedBody serializes MID 0005's body: the accepted MID,
// 4 digits, no parameter prefix.
func commandAcceptedBody(acceptedMid uint16) []byte {
	return protocol.NewFieldBuilder().
		AddInt(protocol.NoParam, int64(acceptedMid), 4).
		Build()
}

// communicationStartAckBody serializes MID 0002.
func communicationStartAckBody(cellID, channelID uint32, controllerName, supplierCode string) []byte {
	b := protocol.NewFieldBuilder().
		AddInt(1, int64(cellID), 4).
		AddInt(2, int64(channelID), 2).
		AddStr(3, controllerName, 25)
	if supplierCode != "" {
		b = b.AddStr(4, supplierCode, 3)
	}
	return b.Build()
}

// psetSelectedBody serializes MID 0015: a bare 3-digit PSET id with no
// parameter header.
func psetSelectedBody(psetID uint32) []byte {
	return protocol.NewFieldBuilder().
		AddInt(protocol.NoParam, int64(psetID), 3).
		Build()
}

// vehicleIdBroadcastBody serializes MID 0052 revision 1: a bare
// 25-character VIN field, space-padded/truncated, no parameter header.
func vehicleIdBroadcastBody(vin string) []byte {
	return protocol.NewFieldBuilder().
		AddStr(protocol.NoParam, vin, 25).
		Build()
}

// tighteningResultBody serializes MID 0061.
func tighteningResultBody(r device.TighteningResult) []byte {
	b := protocol.NewFieldBuilder().
		AddInt(1, int64(r.CellID), 4).
		AddInt(2, int64(r.ChannelID), 2).
		AddStr(3, r.ControllerName, 25)

	if r.VIN != nil {
		b = b.AddStr(4, *r.VIN, 25)
	}

	b = b.
		AddInt(5, int64(r.JobID), 4).
		AddInt(6, int64(r.PsetID), 3).
		AddInt(7, int64(r.BatchSize), 4).
		AddInt(8, int64(r.BatchCounter), 4).
		AddInt(9, boolInt(r.TighteningStatus), 1).
		AddInt(10, boolInt(r.TorqueStatus), 1).
		AddInt(11, boolInt(r.AngleStatus), 1).
		AddFloat(12, r.TorqueMin, 6, 2).
		AddFloat(13, r.TorqueMax, 6, 2).
		AddFloat(14, r.TorqueTarget, 6, 2).
		AddFloat(15, r.Torque, 6, 2).
		AddFloat(16, r.AngleMin, 5, 0).
		AddFloat(17, r.AngleMax, 5, 0).
		AddFloat(18, r.AngleTarget, 5, 0).
		AddFloat(19, r.Angle, 5, 0).
		AddStr(20, r.Timestamp, 19)

	if r.LastPsetChange != nil {
		b = b.AddStr(21, *r.LastPsetChange, 19)
	}
	if r.BatchStatus != nil {
		b = b.AddInt(22, boolInt(*r.BatchStatus), 1)
	}
	if r.TighteningID != nil {
		b = b.AddInt(23, int64(*r.TighteningID), 10)
	}

	return b.Build()
}

// multiSpindleStatusBroadcastBody serializes MID 0091.
func multiSpindleStatusBroadcastBody(status multispindle.Status) []byte {
	return protocol.NewFieldBuilder().
		AddInt(protocol.NoParam, int64(status.SyncID), 4).
		AddInt(protocol.NoParam, int64(status.StatusCode), 1).
		AddInt(protocol.NoParam, int64(status.SpindleCount), 2).
		AddStr(protocol.NoParam, status.Timestamp, 19).
		Build()
}

// MultiSpindleResultContext carries the non-core fields the MID 0101
// broadcast needs beyond the bare multispindle.Result.
type MultiSpindleResultContext struct {
	VIN                string
	JobID              uint32
	PsetID             uint32
	BatchSize          uint32
	BatchCounter       uint32
	BatchStatus        uint8 // 0=NOK, 1=OK, 2=not used
	LastChangeTimestamp string
}

// multiSpindleResultBroadcastBody serializes MID 0101, revisions 1-3.
// Torque/angle limits are fixed defaults (50.00±5 Nm, 180°±10°) since
// multi-spindle cycles do not carry a PSET-derived range.
func multiSpindleResultBroadcastBody(result multispindle.Result, ctx MultiSpindleResultContext) []byte {
	const (
		torqueMinCnm = 4500
		torqueMaxCnm = 5500
		torqueTgtCnm = 5000
		angleMinDeg  = 170
		angleMaxDeg  = 190
		angleTgtDeg  = 180
	)

	vin := ctx.VIN

	b := protocol.NewFieldBuilder().
		AddInt(1, int64(result.SpindleCount), 2).
		AddStr(2, vin, 25).
		AddInt(3, int64(ctx.JobID), 2).
		AddInt(4, int64(ctx.PsetID), 3).
		AddInt(5, int64(ctx.BatchSize), 4).
		AddInt(6, int64(ctx.BatchCounter), 4).
		AddInt(7, int64(ctx.BatchStatus), 1).
		AddInt(8, torqueMinCnm, 6).
		AddInt(9, torqueMaxCnm, 6).
		AddInt(10, torqueTgtCnm, 6).
		AddInt(11, angleMinDeg, 5).
		AddInt(12, angleMaxDeg, 5).
		AddInt(13, angleTgtDeg, 5).
		AddStr(14, ctx.LastChangeTimestamp, 19).
		AddStr(15, result.Timestamp, 19).
		AddInt(16, int64(result.ResultID), 5).
		AddInt(17, int64(result.OverallStatus), 1)

	for _, spindle := range result.SpindleResults {
		overall := 0
		if spindle.IsOK() {
			overall = 1
		}
		b = b.
			AddInt(protocol.NoParam, int64(spindle.SpindleID), 2).
			AddInt(protocol.NoParam, int64(spindle.ChannelID), 2).
			AddInt(protocol.NoParam, int64(overall), 1).
			AddInt(protocol.NoParam, int64(spindle.TorqueStatus), 1).
			AddInt(protocol.NoParam, int64(spindle.Torque), 6).
			AddInt(protocol.NoParam, int64(spindle.AngleStatus), 1).
			AddInt(protocol.NoParam, int64(spindle.Angle), 5)
	}

	return b.Build()
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
