// Package httpapi implements the simulator's HTTP/JSON control surface
// and its companion WebSocket event stream, grounded on
// steveyegge-beads/cmd/bd/monitor.go's stdlib-mux-plus-gorilla/websocket
// pattern.
package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Jarrekstar/open-protocol-device-simulator/internal/device"
	"github.com/Jarrekstar/open-protocol-device-simulator/internal/faultsim"
	"github.com/Jarrekstar/open-protocol-device-simulator/internal/fsm"
	"github.com/Jarrekstar/open-protocol-device-simulator/internal/multispindle"
	"github.com/Jarrekstar/open-protocol-device-simulator/internal/pset"
	"github.com/Jarrekstar/open-protocol-device-simulator/internal/scheduler"
)

// API bundles the collaborators the HTTP handlers need.
type API struct {
	Observable *device.Observable
	Psets      pset.Repository
	Scheduler  *scheduler.Scheduler
}

// NewMux builds the routed handler for the whole surface, per spec.md §4.Q.
func (a *API) NewMux() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/state", a.handleState)
	mux.HandleFunc("/simulate/tightening", a.handleSimulateTightening)
	mux.HandleFunc("/auto-tightening/start", a.handleAutoTighteningStart)
	mux.HandleFunc("/auto-tightening/stop", a.handleAutoTighteningStop)
	mux.HandleFunc("/auto-tightening/status", a.handleAutoTighteningStatus)
	mux.HandleFunc("/config/multi-spindle", a.handleConfigMultiSpindle)
	mux.HandleFunc("/config/failure", a.handleConfigFailure)
	mux.HandleFunc("/psets", a.handlePsets)
	mux.HandleFunc("/psets/", a.handlePsetByID)
	mux.HandleFunc("/ws/events", a.handleWebSocketEvents)

	return mux
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// handleState implements GET /state.
func (a *API) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, a.Observable.Snapshot())
}

type simulateTighteningRequest struct {
	Torque *float64 `json:"torque"`
	Angle  *float64 `json:"angle"`
	OK     *bool    `json:"ok"`
}

type simulateTighteningResponse struct {
	Success      bool `json:"success"`
	BatchCounter uint32 `json:"batch_counter"`
	Subscribers  int  `json:"subscribers"`
}

// handleSimulateTightening implements POST /simulate/tightening: a
// one-shot FSM cycle with PSET-derived params and a fixed 500ms
// nominal duration, recording the outcome and broadcasting events.
func (a *API) handleSimulateTightening(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req simulateTighteningRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	params := a.currentParams()
	now := time.Now()
	cycle := fsm.New()
	_ = cycle.StartTightening(params, now)
	_ = cycle.Complete(now)
	outcome, _ := cycle.Result()

	if req.Torque != nil {
		outcome.ActualTorque = *req.Torque
		outcome.TorqueOK = *req.Torque >= params.TorqueMin && *req.Torque <= params.TorqueMax
	}
	if req.Angle != nil {
		outcome.ActualAngle = *req.Angle
		outcome.AngleOK = *req.Angle >= params.AngleMin && *req.Angle <= params.AngleMax
	}
	finalOK := outcome.TorqueOK && outcome.AngleOK
	if req.OK != nil {
		finalOK = *req.OK
	}

	result := device.Query(a.Observable, func(d *device.State) device.TighteningResult {
		res := device.TighteningResult{
			CellID:           d.CellID,
			ChannelID:        d.ChannelID,
			ControllerName:   d.ControllerName,
			VIN:              d.VehicleID,
			TighteningStatus: finalOK,
			TorqueStatus:     outcome.TorqueOK,
			AngleStatus:      outcome.AngleOK,
			TorqueMin:        params.TorqueMin,
			TorqueMax:        params.TorqueMax,
			TorqueTarget:     params.TorqueTarget,
			Torque:           outcome.ActualTorque,
			AngleMin:         params.AngleMin,
			AngleMax:         params.AngleMax,
			AngleTarget:      params.AngleTarget,
			Angle:            outcome.ActualAngle,
			Timestamp:        now.Format("2006-01-02 15:04:05"),
			BatchSize:        d.Tracker.BatchSize(),
		}
		if d.CurrentPsetID != nil {
			res.PsetID = *d.CurrentPsetID
		}
		if d.CurrentJobID != nil {
			res.JobID = *d.CurrentJobID
		}
		return res
	})

	a.Observable.RecordTightening(result)

	batchCounter := device.Query(a.Observable, func(d *device.State) uint32 { return d.Tracker.Counter() })

	writeJSON(w, http.StatusOK, simulateTighteningResponse{
		Success:      finalOK,
		BatchCounter: batchCounter,
		Subscribers:  0,
	})
}

func (a *API) currentParams() fsm.TighteningParams {
	psetID := device.Query(a.Observable, func(d *device.State) *uint32 { return d.CurrentPsetID })
	if psetID != nil {
		if p, ok := a.Psets.GetByID(*psetID); ok {
			return fsm.TighteningParams{
				TorqueTarget: (p.TorqueMin + p.TorqueMax) / 2,
				TorqueMin:    p.TorqueMin,
				TorqueMax:    p.TorqueMax,
				AngleTarget:  (p.AngleMin + p.AngleMax) / 2,
				AngleMin:     p.AngleMin,
				AngleMax:     p.AngleMax,
				DurationMS:   500,
			}
		}
	}
	return fsm.TighteningParams{
		TorqueTarget: 12.5, TorqueMin: 10.0, TorqueMax: 15.0,
		AngleTarget: 42.5, AngleMin: 35.0, AngleMax: 50.0,
		DurationMS: 500,
	}
}

type autoTighteningStartRequest struct {
	IntervalMS  *int64   `json:"interval_ms"`
	DurationMS  *int64   `json:"duration_ms"`
	FailureRate *float64 `json:"failure_rate"`
}

// handleAutoTighteningStart implements POST /auto-tightening/start.
func (a *API) handleAutoTighteningStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req autoTighteningStartRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	cfg := scheduler.DefaultConfig()
	if req.IntervalMS != nil {
		cfg.IntervalMS = *req.IntervalMS
	}
	if req.DurationMS != nil {
		cfg.DurationMS = *req.DurationMS
	}
	if req.FailureRate != nil {
		cfg.FailureRate = *req.FailureRate
	}

	if err := a.Scheduler.Start(cfg); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, a.Scheduler.Status())
}

// handleAutoTighteningStop implements POST /auto-tightening/stop: idempotent.
func (a *API) handleAutoTighteningStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	a.Scheduler.Stop()
	writeJSON(w, http.StatusOK, a.Scheduler.Status())
}

// handleAutoTighteningStatus implements GET /auto-tightening/status.
func (a *API) handleAutoTighteningStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, a.Scheduler.Status())
}

type multiSpindleConfigRequest struct {
	Enabled      bool   `json:"enabled"`
	SpindleCount uint8  `json:"spindle_count"`
	SyncID       uint32 `json:"sync_id"`
}

// handleConfigMultiSpindle implements POST /config/multi-spindle.
func (a *API) handleConfigMultiSpindle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req multiSpindleConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if !req.Enabled {
		a.Observable.DisableMultiSpindle()
		writeJSON(w, http.StatusOK, multispindle.DisabledConfig())
		return
	}

	if err := a.Observable.EnableMultiSpindle(req.SpindleCount, req.SyncID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, multispindle.Config{Enabled: true, SpindleCount: req.SpindleCount, SyncID: req.SyncID})
}

// handleConfigFailure implements GET/PUT /config/failure, per spec.md
// §8 S6: PUT takes effect immediately on every live connection through
// the shared *faultsim.Simulator Observable.SetFailureConfig pushes
// into, not just on the next connection accepted.
func (a *API) handleConfigFailure(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, a.Observable.FailureConfig())

	case http.MethodPut:
		var cfg faultsim.Config
		if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if !cfg.IsValid() {
			writeError(w, http.StatusBadRequest, "invalid failure configuration")
			return
		}
		a.Observable.SetFailureConfig(cfg)
		writeJSON(w, http.StatusOK, cfg)

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handlePsets implements GET /psets and POST /psets.
func (a *API) handlePsets(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, a.Psets.GetAll())
	case http.MethodPost:
		var p pset.Pset
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		created, err := a.Psets.Create(p)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, created)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handlePsetByID implements GET/PUT/DELETE /psets/{id} and
// POST /psets/{id}/select.
func (a *API) handlePsetByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/psets/")
	path = strings.TrimSuffix(path, "/")

	if strings.HasSuffix(path, "/select") {
		idStr := strings.TrimSuffix(path, "/select")
		a.handlePsetSelect(w, r, idStr)
		return
	}

	id, err := strconv.ParseUint(path, 10, 32)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid pset id")
		return
	}

	switch r.Method {
	case http.MethodGet:
		p, ok := a.Psets.GetByID(uint32(id))
		if !ok {
			writeError(w, http.StatusNotFound, "pset not found")
			return
		}
		writeJSON(w, http.StatusOK, p)

	case http.MethodPut:
		var body pset.Pset
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		updated, err := a.Psets.Update(uint32(id), body)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, updated)

	case http.MethodDelete:
		selected := device.Query(a.Observable, func(d *device.State) bool {
			return d.CurrentPsetID != nil && *d.CurrentPsetID == uint32(id)
		})
		if selected {
			writeError(w, http.StatusConflict, "cannot delete the currently selected pset")
			return
		}
		if err := a.Psets.Delete(uint32(id)); err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (a *API) handlePsetSelect(w http.ResponseWriter, r *http.Request, idStr string) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid pset id")
		return
	}

	p, ok := a.Psets.GetByID(uint32(id))
	if !ok {
		writeError(w, http.StatusNotFound, "pset not found")
		return
	}

	name := p.Name
	a.Observable.SetPset(p.ID, &name)
	writeJSON(w, http.StatusOK, p)
}
