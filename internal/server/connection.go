package server

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/Jarrekstar/open-protocol-device-simulator/internal/device"
	"github.com/Jarrekstar/open-protocol-device-simulator/internal/events"
	"github.com/Jarrekstar/open-protocol-device-simulator/internal/faultsim"
	"github.com/Jarrekstar/open-protocol-device-simulator/internal/handlers"
	"github.com/Jarrekstar/open-protocol-device-simulator/internal/multispindle"
	"github.com/Jarrekstar/open-protocol-device-simulator/internal/protocol"
	"github.com/Jarrekstar/open-protocol-device-simulator/internal/session"
)

// connection owns one accepted TCP socket: a Session, an event
// subscription, and the frame codec. It multiplexes the two event
// sources (inbound frames, broadcast events) on a single select loop,
// per spec.md §4.O.
type connection struct {
	conn     net.Conn
	sess     *session.Session
	sub      *events.Subscription
	registry *handlers.Registry
	hctx     *handlers.Context
	sim      *faultsim.Simulator
}

func serveConnection(conn net.Conn, registry *handlers.Registry, hctx *handlers.Context, sim *faultsim.Simulator) {
	defer conn.Close()

	now := time.Now()
	sess := session.New()
	if err := sess.Connect(conn.RemoteAddr().String(), now); err != nil {
		fmt.Fprintf(os.Stderr, "server: connect failed for %s: %v\n", conn.RemoteAddr(), err)
		return
	}
	if err := sess.Authenticate(now); err != nil {
		fmt.Fprintf(os.Stderr, "server: authenticate failed for %s: %v\n", conn.RemoteAddr(), err)
		return
	}

	c := &connection{
		conn:     conn,
		sess:     sess,
		sub:      hctx.Observable.Subscribe(),
		registry: registry,
		hctx:     hctx,
		sim:      sim,
	}
	defer hctx.Observable.Unsubscribe(c.sub)

	c.run()
}

func (c *connection) run() {
	reader := bufio.NewReader(c.conn)
	frames := make(chan []byte)
	readErr := make(chan error, 1)

	go func() {
		for {
			frame, err := protocol.ReadFrame(reader)
			if err != nil {
				readErr <- err
				return
			}
			frames <- frame
		}
	}()

	for {
		select {
		case frame := <-frames:
			if !c.handleFrame(frame) {
				return
			}
		case err := <-readErr:
			if !errors.Is(err, io.EOF) {
				fmt.Fprintf(os.Stderr, "server: read error from %s: %v\n", c.sess.Addr(), err)
			}
			return
		case e := <-c.sub.Events():
			if !c.handleEvent(e) {
				return
			}
		}
	}
}

// applySubscriptionMID updates the session's subscription flags for MIDs
// whose only effect is a subscribe/unsubscribe toggle, grounded on
// `original_source/src/main.rs`'s connection loop.
func (c *connection) applySubscriptionMID(mid int) {
	subs := c.sess.Subscriptions()
	switch mid {
	case 60:
		subs.SubscribeTighteningResult()
	case 63:
		subs.UnsubscribeTighteningResult()
	case 14:
		subs.SubscribePsetSelection()
	case 17:
		subs.UnsubscribePsetSelection()
	case 51:
		subs.SubscribeVehicleID()
	case 54:
		subs.UnsubscribeVehicleID()
	case 90:
		subs.SubscribeMultiSpindleStatus()
	case 92:
		subs.UnsubscribeMultiSpindleStatus()
	case 100:
		subs.SubscribeMultiSpindleResult()
	case 103:
		subs.UnsubscribeMultiSpindleResult()
	}
}

// handleFrame parses and dispatches one inbound frame. It returns
// false when the connection should be torn down.
func (c *connection) handleFrame(frame []byte) bool {
	msg, err := protocol.ParseMessage(frame)
	if err != nil {
		fmt.Fprintf(os.Stderr, "server: discarding malformed frame from %s: %v\n", c.sess.Addr(), err)
		return true
	}

	if err := c.sess.UpdateKeepAlive(time.Now()); err != nil {
		return false
	}

	c.applySubscriptionMID(msg.MID)

	responses, err := c.registry.Handle(c.hctx, msg)
	if err != nil {
		body := handlers.ErrorResponseBody(msg.MID, handlers.ErrGenericError)
		if !c.send(protocol.Response{MID: 4, Revision: msg.Revision, Body: body}) {
			return false
		}
		return true
	}

	for _, resp := range responses {
		if !c.send(resp) {
			return false
		}
	}

	if msg.MID == 51 {
		vin := c.hctx.Observable.CurrentVehicleID()
		push := protocol.Response{MID: 52, Revision: msg.Revision, Body: handlers.VehicleIdPushBody(vin)}
		if !c.send(push) {
			return false
		}
	}

	return true
}

// handleEvent maps a published device event to its wire broadcast, if
// this connection is subscribed and the kind has a wire mapping at
// all. Returns false when the connection should be torn down.
func (c *connection) handleEvent(e events.Event) bool {
	subs := c.sess.Subscriptions()

	switch e.Kind {
	case events.KindTighteningCompleted:
		if !subs.IsSubscribedToTighteningResult() {
			return true
		}
		result := e.Payload.(device.TighteningResult)
		return c.send(protocol.Response{MID: 61, Body: handlers.TighteningResultBody(result)})

	case events.KindPsetChanged:
		if !subs.IsSubscribedToPsetSelection() {
			return true
		}
		payload := e.Payload.(device.PsetChangedPayload)
		return c.send(protocol.Response{MID: 15, Body: handlers.PsetSelectedBody(payload.ID)})

	case events.KindVehicleIdChanged:
		if !subs.IsSubscribedToVehicleID() {
			return true
		}
		vin := e.Payload.(string)
		return c.send(protocol.Response{MID: 52, Body: handlers.VehicleIdPushBody(vin)})

	case events.KindMultiSpindleStatusCompleted:
		if !subs.IsSubscribedToMultiSpindleStatus() {
			return true
		}
		status := e.Payload.(multispindle.Status)
		return c.send(protocol.Response{MID: 91, Body: handlers.MultiSpindleStatusBody(status)})

	case events.KindMultiSpindleResultCompleted:
		if !subs.IsSubscribedToMultiSpindleResult() {
			return true
		}
		result := e.Payload.(multispindle.Result)
		ctx := c.multiSpindleResultContext()
		return c.send(protocol.Response{MID: 101, Body: handlers.MultiSpindleResultBody(result, ctx)})

	default:
		// ToolStateChanged, BatchCompleted, AutoTighteningProgress: no
		// wire mapping, log only.
		fmt.Fprintf(os.Stderr, "server: event kind=%d has no wire mapping, not forwarding to %s\n", e.Kind, c.sess.Addr())
		return true
	}
}

func (c *connection) multiSpindleResultContext() handlers.MultiSpindleResultContext {
	return device.Query(c.hctx.Observable, func(d *device.State) handlers.MultiSpindleResultContext {
		ctx := handlers.MultiSpindleResultContext{
			JobID:        1,
			BatchSize:    d.Tracker.BatchSize(),
			BatchCounter: d.Tracker.Counter(),
			BatchStatus:  uint8(d.Tracker.BatchStatusValue()),
		}
		if d.VehicleID != nil {
			ctx.VIN = *d.VehicleID
		}
		if d.CurrentPsetID != nil {
			ctx.PsetID = *d.CurrentPsetID
		}
		if d.CurrentJobID != nil {
			ctx.JobID = *d.CurrentJobID
		}
		ctx.LastChangeTimestamp = time.Now().Format("2006-01-02 15:04:05")
		return ctx
	})
}

// send serializes resp and writes it through the failure simulator: a
// simulated disconnect tears down the connection, a dropped packet is
// silently skipped, and a delay or corruption is applied before the
// bytes go out, per §4.G.
func (c *connection) send(resp protocol.Response) bool {
	wire := protocol.SerializeResponse(resp)
	decision := c.sim.Decide(wire)

	if decision.Disconnect {
		return false
	}
	if decision.Drop {
		return true
	}
	if decision.Delay > 0 {
		time.Sleep(decision.Delay)
	}
	if decision.Corrupt {
		wire = decision.Corrupted
	}

	if err := protocol.WriteFrame(c.conn, wire); err != nil {
		fmt.Fprintf(os.Stderr, "server: write error to %s: %v\n", c.sess.Addr(), err)
		return false
	}
	return true
}
