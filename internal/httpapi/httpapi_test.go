package httpapi_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jarrekstar/open-protocol-device-simulator/internal/device"
	"github.com/Jarrekstar/open-protocol-device-simulator/internal/events"
	"github.com/Jarrekstar/open-protocol-device-simulator/internal/faultsim"
	"github.com/Jarrekstar/open-protocol-device-simulator/internal/httpapi"
	"github.com/Jarrekstar/open-protocol-device-simulator/internal/pset"
	"github.com/Jarrekstar/open-protocol-device-simulator/internal/scheduler"
)

func newTestAPI(t *testing.T) *httpapi.API {
	t.Helper()
	obs := device.NewObservable(device.New(), events.New(32))
	psets := pset.NewInMemoryRepository()
	return &httpapi.API{
		Observable: obs,
		Psets:      psets,
		Scheduler:  scheduler.New(obs, psets),
	}
}

func TestHTTPAPI_GetState(t *testing.T) {
	api := newTestAPI(t)
	srv := httptest.NewServer(api.NewMux())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/state")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var state device.State
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&state))
	assert.True(t, state.ToolEnabled)
}

func TestHTTPAPI_SimulateTightening(t *testing.T) {
	api := newTestAPI(t)
	srv := httptest.NewServer(api.NewMux())
	defer srv.Close()

	body := bytes.NewBufferString(`{"torque": 12.0, "angle": 40.0}`)
	resp, err := http.Post(srv.URL+"/simulate/tightening", "application/json", body)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Contains(t, out, "success")
}

func TestHTTPAPI_AutoTighteningLifecycle(t *testing.T) {
	api := newTestAPI(t)
	srv := httptest.NewServer(api.NewMux())
	defer srv.Close()

	startBody := bytes.NewBufferString(`{"interval_ms": 50, "duration_ms": 5, "failure_rate": 0}`)
	resp, err := http.Post(srv.URL+"/auto-tightening/start", "application/json", startBody)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	conflict, err := http.Post(srv.URL+"/auto-tightening/start", "application/json", bytes.NewBufferString(`{}`))
	require.NoError(t, err)
	conflict.Body.Close()
	assert.Equal(t, http.StatusConflict, conflict.StatusCode)

	statusResp, err := http.Get(srv.URL + "/auto-tightening/status")
	require.NoError(t, err)
	var status map[string]interface{}
	require.NoError(t, json.NewDecoder(statusResp.Body).Decode(&status))
	statusResp.Body.Close()
	assert.Equal(t, true, status["Running"])

	stopResp, err := http.Post(srv.URL+"/auto-tightening/stop", "application/json", nil)
	require.NoError(t, err)
	stopResp.Body.Close()

	idempotentStop, err := http.Post(srv.URL+"/auto-tightening/stop", "application/json", nil)
	require.NoError(t, err)
	idempotentStop.Body.Close()
	assert.Equal(t, http.StatusOK, idempotentStop.StatusCode)
}

func TestHTTPAPI_ConfigMultiSpindleValidatesRange(t *testing.T) {
	api := newTestAPI(t)
	srv := httptest.NewServer(api.NewMux())
	defer srv.Close()

	bad := bytes.NewBufferString(`{"enabled": true, "spindle_count": 1, "sync_id": 1}`)
	resp, err := http.Post(srv.URL+"/config/multi-spindle", "application/json", bad)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	good := bytes.NewBufferString(`{"enabled": true, "spindle_count": 4, "sync_id": 7}`)
	resp2, err := http.Post(srv.URL+"/config/multi-spindle", "application/json", good)
	require.NoError(t, err)
	resp2.Body.Close()
	assert.Equal(t, http.StatusOK, resp2.StatusCode)
}

// TestHTTPAPI_ConfigFailureIsLive covers spec.md §8 S6 at the HTTP
// layer: PUT /config/failure reaches the same Simulator the TCP
// connections share, via Observable.AttachSimulator, not just the
// State snapshot GET /state reads back.
func TestHTTPAPI_ConfigFailureIsLive(t *testing.T) {
	api := newTestAPI(t)
	sim := faultsim.New(faultsim.DefaultConfig())
	api.Observable.AttachSimulator(sim)
	srv := httptest.NewServer(api.NewMux())
	defer srv.Close()

	getResp, err := http.Get(srv.URL + "/config/failure")
	require.NoError(t, err)
	var got faultsim.Config
	require.NoError(t, json.NewDecoder(getResp.Body).Decode(&got))
	getResp.Body.Close()
	assert.False(t, got.Enabled)

	bad := bytes.NewBufferString(`{"enabled": true, "packet_loss_rate": 2.0}`)
	req, _ := http.NewRequest(http.MethodPut, srv.URL+"/config/failure", bad)
	badResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	badResp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, badResp.StatusCode)

	good := bytes.NewBufferString(`{"enabled": true, "force_disconnect_rate": 1.0}`)
	req2, _ := http.NewRequest(http.MethodPut, srv.URL+"/config/failure", good)
	goodResp, err := http.DefaultClient.Do(req2)
	require.NoError(t, err)
	goodResp.Body.Close()
	assert.Equal(t, http.StatusOK, goodResp.StatusCode)

	assert.True(t, sim.Config().Enabled)
	assert.Equal(t, 1.0, sim.Config().ForceDisconnectRate)
}

func TestHTTPAPI_PsetCRUD(t *testing.T) {
	api := newTestAPI(t)
	srv := httptest.NewServer(api.NewMux())
	defer srv.Close()

	listResp, err := http.Get(srv.URL + "/psets")
	require.NoError(t, err)
	var list []pset.Pset
	require.NoError(t, json.NewDecoder(listResp.Body).Decode(&list))
	listResp.Body.Close()
	assert.Len(t, list, 5)

	createBody := bytes.NewBufferString(`{"name":"Custom","torque_min":1,"torque_max":2,"angle_min":1,"angle_max":2}`)
	createResp, err := http.Post(srv.URL+"/psets", "application/json", createBody)
	require.NoError(t, err)
	var created pset.Pset
	require.NoError(t, json.NewDecoder(createResp.Body).Decode(&created))
	createResp.Body.Close()
	assert.Equal(t, http.StatusCreated, createResp.StatusCode)
	assert.Equal(t, uint32(6), created.ID)

	selectResp, err := http.Post(srv.URL+"/psets/6/select", "application/json", nil)
	require.NoError(t, err)
	selectResp.Body.Close()
	assert.Equal(t, http.StatusOK, selectResp.StatusCode)

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/psets/6", nil)
	deleteResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	deleteResp.Body.Close()
	assert.Equal(t, http.StatusConflict, deleteResp.StatusCode)
}

func TestHTTPAPI_WebSocketSendsInitialStateThenEvents(t *testing.T) {
	api := newTestAPI(t)
	srv := httptest.NewServer(api.NewMux())
	defer srv.Close()

	wsURL := "ws" + srv.URL[len("http"):] + "/ws/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var initial device.State
	require.NoError(t, conn.ReadJSON(&initial))
	assert.True(t, initial.ToolEnabled)

	api.Observable.EnableTool()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var evt map[string]interface{}
	require.NoError(t, conn.ReadJSON(&evt))
	assert.Equal(t, "tool_state_changed", evt["kind"])
}
