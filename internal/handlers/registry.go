package handlers

import (
	"fmt"

	"github.com/Jarrekstar/open-protocol-device-simulator/internal/device"
	"github.com/Jarrekstar/open-protocol-device-simulator/internal/pset"
	"github.com/Jarrekstar/open-protocol-device-simulator/internal/protocol"
)

// UnknownMidError reports a MID with no registered handler.
type UnknownMidError struct {
	Mid uint16
}

func (e *UnknownMidError) Error() string {
	return fmt.Sprintf("unknown MID: %d", e.Mid)
}

// Context bundles the collaborators a handler needs: the shared
// observable device state and the PSET repository. Session mutation
// (subscribe/unsubscribe bookkeeping) happens at the connection task,
// not here — see internal/server.
type Context struct {
	Observable *device.Observable
	Psets      pset.Repository
}

// Handler processes one inbound message and returns the responses to
// send back, in order. Most handlers return exactly one; MID 0051
// is handled at the connection task (it pushes a second frame after
// the ack), so handlers here stay single-response.
type Handler func(ctx *Context, msg protocol.Message) ([]protocol.Response, error)

// Registry maps a MID to its handler.
type Registry struct {
	handlers map[uint16]Handler
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[uint16]Handler)}
}

// Register installs handler for mid, replacing any existing one.
func (r *Registry) Register(mid uint16, handler Handler) {
	r.handlers[mid] = handler
}

// Handle dispatches msg to its registered handler.
func (r *Registry) Handle(ctx *Context, msg protocol.Message) ([]protocol.Response, error) {
	handler, ok := r.handlers[uint16(msg.MID)]
	if !ok {
		return nil, &UnknownMidError{Mid: uint16(msg.MID)}
	}
	return handler(ctx, msg)
}

// NewDefaultRegistry builds a registry with every MID from §4.N wired.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()

	r.Register(1, handleCommunicationStart)
	r.Register(3, handleCommunicationStop)
	r.Register(14, handleAckOnly(5))
	r.Register(17, handleAckOnly(5))
	r.Register(18, handlePsetSelect)
	r.Register(19, handleSetBatchSize)
	r.Register(20, handleResetBatch)
	r.Register(42, handleToolDisable)
	r.Register(43, handleToolEnable)
	r.Register(50, handleVehicleIdDownload)
	r.Register(51, handleAckOnly(5))
	r.Register(53, handleAckOnly(5))
	r.Register(54, handleAckOnly(5))
	r.Register(60, handleAckOnly(5))
	r.Register(62, handleAckOnly(5))
	r.Register(63, handleAckOnly(5))
	r.Register(90, handleAckOnly(5))
	r.Register(92, handleAckOnly(5))
	r.Register(93, handleAckOnly(5))
	r.Register(100, handleAckOnly(5))
	r.Register(102, handleAckOnly(5))
	r.Register(103, handleAckOnly(5))
	r.Register(128, handleBatchIncrement)
	r.Register(9999, handleKeepAlive)

	return r
}
