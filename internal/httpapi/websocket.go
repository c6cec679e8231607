package httpapi

import (
	"fmt"
	"net/http"
	"os"

	"github.com/gorilla/websocket"

	"github.com/Jarrekstar/open-protocol-device-simulator/internal/events"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type wsEventMessage struct {
	Kind    string      `json:"kind"`
	Payload interface{} `json:"payload"`
}

var eventKindNames = map[events.Kind]string{
	events.KindTighteningCompleted:         "tightening_completed",
	events.KindPsetChanged:                 "pset_changed",
	events.KindToolStateChanged:            "tool_state_changed",
	events.KindBatchCompleted:              "batch_completed",
	events.KindVehicleIdChanged:            "vehicle_id_changed",
	events.KindMultiSpindleStatusCompleted: "multi_spindle_status_completed",
	events.KindMultiSpindleResultCompleted: "multi_spindle_result_completed",
	events.KindAutoTighteningProgress:      "auto_tightening_progress",
}

// handleWebSocketEvents implements GET /ws/events: on connect it sends
// the current DeviceState, then forwards every published event as
// JSON until either peer closes the connection.
func (a *API) handleWebSocketEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "httpapi: websocket upgrade failed: %v\n", err)
		return
	}
	defer conn.Close()

	if err := conn.WriteJSON(a.Observable.Snapshot()); err != nil {
		return
	}

	sub := a.Observable.Subscribe()
	defer a.Observable.Unsubscribe(sub)

	// A reader goroutine drains (and discards) client frames so a
	// client-initiated close is observed promptly; clients never send
	// meaningful payloads on this endpoint.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case e := <-sub.Events():
			name, ok := eventKindNames[e.Kind]
			if !ok {
				name = "unknown"
			}
			msg := wsEventMessage{Kind: name, Payload: e.Payload}
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		}
	}
}
