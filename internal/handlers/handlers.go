package handlers

import (
	"strconv"
	"strings"

	"github.com/Jarrekstar/open-protocol-device-simulator/internal/device"
	"github.com/Jarrekstar/open-protocol-device-simulator/internal/multispindle"
	"github.com/Jarrekstar/open-protocol-device-simulator/internal/protocol"
	"github.com/Jarrekstar/open-protocol-device-simulator/internal/tracking"
)

func single(r protocol.Response) ([]protocol.Response, error) {
	return []protocol.Response{r}, nil
}

// handleAckOnly returns a handler that always replies with a bare
// MID 0005 command-accepted body. Used for every MID whose only
// effect is a per-connection subscription change (handled by the
// connection task, not here) or that carries no state effect at all.
func handleAckOnly(responseMid uint16) Handler {
	return func(ctx *Context, msg protocol.Message) ([]protocol.Response, error) {
		return single(protocol.Response{
			MID:      int(responseMid),
			Revision: msg.Revision,
			Body:     commandAcceptedBody(uint16(msg.MID)),
		})
	}
}

// handleCommunicationStart implements MID 0001 -> 0002.
func handleCommunicationStart(ctx *Context, msg protocol.Message) ([]protocol.Response, error) {
	body := device.Query(ctx.Observable, func(s *device.State) []byte {
		return communicationStartAckBody(s.CellID, s.ChannelID, s.ControllerName, s.SupplierCode)
	})
	return single(protocol.Response{MID: 2, Revision: msg.Revision, Body: body})
}

// handleCommunicationStop implements MID 0003 -> 0005 ack(accepted_mid=3).
func handleCommunicationStop(ctx *Context, msg protocol.Message) ([]protocol.Response, error) {
	return single(protocol.Response{
		MID:      5,
		Revision: msg.Revision,
		Body:     commandAcceptedBody(3),
	})
}

func parsePsetID(body []byte) uint32 {
	id, err := strconv.ParseUint(strings.TrimSpace(string(body)), 10, 32)
	if err != nil {
		return 1
	}
	return uint32(id)
}

// handlePsetSelect implements MID 0018 -> 0016.
func handlePsetSelect(ctx *Context, msg protocol.Message) ([]protocol.Response, error) {
	id := parsePsetID(msg.Body)
	name := "Pset_" + strconv.FormatUint(uint64(id), 10)
	ctx.Observable.SetPset(id, &name)

	return single(protocol.Response{
		MID:      16,
		Revision: msg.Revision,
		Body:     nil,
	})
}

func parseBatchSize(body []byte) uint32 {
	size, err := strconv.ParseUint(strings.TrimSpace(string(body)), 10, 32)
	if err != nil {
		return 1
	}
	return uint32(size)
}

// handleSetBatchSize implements MID 0019 -> 0005 ack. The inbound
// body is `pset:3d + size:Nd`; only the size suffix is meaningful.
func handleSetBatchSize(ctx *Context, msg protocol.Message) ([]protocol.Response, error) {
	var sizeField []byte
	if len(msg.Body) > 3 {
		sizeField = msg.Body[3:]
	} else {
		sizeField = msg.Body
	}
	size := parseBatchSize(sizeField)
	ctx.Observable.SetBatchSize(size)

	return single(protocol.Response{
		MID:      5,
		Revision: msg.Revision,
		Body:     commandAcceptedBody(19),
	})
}

// handleResetBatch implements MID 0020. Resetting only makes sense in
// batch mode; in single mode it is rejected as invalid data. The
// leading 3-byte pset id in the body is accepted but not checked
// against the current PSET — there is exactly one active tracker.
func handleResetBatch(ctx *Context, msg protocol.Message) ([]protocol.Response, error) {
	reset := device.Query(ctx.Observable, func(s *device.State) bool {
		if s.Tracker.Mode() != tracking.ModeBatch {
			return false
		}
		return true
	})

	if !reset {
		return single(protocol.Response{
			MID:      4,
			Revision: msg.Revision,
			Body:     errorResponseBody(20, ErrInvalidData),
		})
	}

	ctx.Observable.Mutate(func(s *device.State) {
		s.Tracker.ResetBatch()
	})

	return single(protocol.Response{
		MID:      5,
		Revision: msg.Revision,
		Body:     commandAcceptedBody(20),
	})
}

// handleToolDisable implements MID 0042 -> 0005 ack.
func handleToolDisable(ctx *Context, msg protocol.Message) ([]protocol.Response, error) {
	ctx.Observable.DisableTool()
	return single(protocol.Response{MID: 5, Revision: msg.Revision, Body: commandAcceptedBody(42)})
}

// handleToolEnable implements MID 0043 -> 0005 ack.
func handleToolEnable(ctx *Context, msg protocol.Message) ([]protocol.Response, error) {
	ctx.Observable.EnableTool()
	return single(protocol.Response{MID: 5, Revision: msg.Revision, Body: commandAcceptedBody(43)})
}

// handleVehicleIdDownload implements MID 0050 -> 0005 ack.
func handleVehicleIdDownload(ctx *Context, msg protocol.Message) ([]protocol.Response, error) {
	vin := strings.TrimSpace(string(msg.Body))
	ctx.Observable.SetVehicleID(vin)
	return single(protocol.Response{MID: 5, Revision: msg.Revision, Body: commandAcceptedBody(50)})
}

// handleBatchIncrement implements MID 0128 -> 0005 ack, advancing the
// tracker without recording a tightening outcome and publishing
// AutoTighteningProgress.
func handleBatchIncrement(ctx *Context, msg protocol.Message) ([]protocol.Response, error) {
	var counter, target uint32
	ctx.Observable.Mutate(func(s *device.State) {
		s.Tracker.IncrementBatch()
		counter = s.Tracker.Counter()
		target = s.Tracker.BatchSize()
	})

	ctx.Observable.PublishAutoTighteningProgress(device.AutoTighteningProgress{
		Counter: counter,
		Target:  target,
		Running: false,
	})

	return single(protocol.Response{MID: 5, Revision: msg.Revision, Body: commandAcceptedBody(128)})
}

// handleKeepAlive implements MID 9999, echoed with no body.
func handleKeepAlive(ctx *Context, msg protocol.Message) ([]protocol.Response, error) {
	return single(protocol.Response{MID: 9999, Revision: msg.Revision, Body: nil})
}

// VehicleIdPushBody builds the MID 0052 body the connection task sends
// immediately after acking a MID 0051 subscription.
func VehicleIdPushBody(vin string) []byte {
	return vehicleIdBroadcastBody(vin)
}

// PsetSelectedBody builds the MID 0015 body broadcast to subscribers
// on PsetChanged.
func PsetSelectedBody(psetID uint32) []byte {
	return psetSelectedBody(psetID)
}

// TighteningResultBody builds the MID 0061 body broadcast on
// TighteningCompleted.
func TighteningResultBody(r device.TighteningResult) []byte {
	return tighteningResultBody(r)
}

// MultiSpindleStatusBody builds the MID 0091 body.
func MultiSpindleStatusBody(status multispindle.Status) []byte {
	return multiSpindleStatusBroadcastBody(status)
}

// MultiSpindleResultBody builds the MID 0101 body.
func MultiSpindleResultBody(result multispindle.Result, ctx MultiSpindleResultContext) []byte {
	return multiSpindleResultBroadcastBody(result, ctx)
}
