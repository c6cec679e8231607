// Package device holds the simulator's central mutable state and the
// observable wrapper that publishes typed events around every mutation.
package device

import (
	"github.com/Jarrekstar/open-protocol-device-simulator/internal/faultsim"
	"github.com/Jarrekstar/open-protocol-device-simulator/internal/fsm"
	"github.com/Jarrekstar/open-protocol-device-simulator/internal/multispindle"
	"github.com/Jarrekstar/open-protocol-device-simulator/internal/tracking"
)

// TighteningResult is the full record published on a completed cycle,
// matching the fields the MID 0061 wire encoder needs.
type TighteningResult struct {
	CellID           uint32
	ChannelID        uint32
	ControllerName   string
	VIN              *string
	JobID            uint32
	PsetID           uint32
	BatchSize        uint32
	BatchCounter     uint32
	TighteningStatus bool
	TorqueStatus     bool
	AngleStatus      bool
	TorqueMin        float64
	TorqueMax        float64
	TorqueTarget     float64
	Torque           float64
	AngleMin         float64
	AngleMax         float64
	AngleTarget      float64
	Angle            float64
	Timestamp        string
	LastPsetChange   *string
	BatchStatus      *bool
	TighteningID     *uint32
}

// State is the simulator's central aggregate of mutable device state.
type State struct {
	CellID         uint32 `json:"cell_id"`
	ChannelID      uint32 `json:"channel_id"`
	ControllerName string `json:"controller_name"`
	SupplierCode   string `json:"supplier_code"`

	CurrentPsetID   *uint32 `json:"current_pset_id"`
	CurrentPsetName *string `json:"current_pset_name"`

	Tracker *tracking.TighteningTracker `json:"tracker"`

	FSMState fsm.Snapshot `json:"fsm_state"`

	ToolEnabled bool `json:"tool_enabled"`

	VehicleID    *string `json:"vehicle_id"`
	CurrentJobID *uint32 `json:"current_job_id"`

	MultiSpindle multispindle.Config `json:"multi_spindle"`
	Failure      faultsim.Config     `json:"failure"`
}

// New returns a State initialized with the simulator's standard defaults.
func New() *State {
	return NewWithIdentity(1, 1, "OpenProtocolSimulator", "SIM")
}

// NewWithIdentity returns a State like New, but with the controller
// identity fields set from the given configuration instead of the
// built-in defaults.
func NewWithIdentity(cellID, channelID uint32, controllerName, supplierCode string) *State {
	psetID := uint32(1)
	psetName := "Default"
	jobID := uint32(1)

	return &State{
		CellID:          cellID,
		ChannelID:       channelID,
		ControllerName:  controllerName,
		SupplierCode:    supplierCode,
		CurrentPsetID:   &psetID,
		CurrentPsetName: &psetName,
		Tracker:         tracking.NewTighteningTracker(),
		FSMState:        fsm.Snapshot{Kind: fsm.KindIdle},
		ToolEnabled:     true,
		CurrentJobID:    &jobID,
		MultiSpindle:    multispindle.DisabledConfig(),
		Failure:         faultsim.DefaultConfig(),
	}
}

// SetPset sets the active parameter set identity.
func (s *State) SetPset(id uint32, name *string) {
	s.CurrentPsetID = &id
	s.CurrentPsetName = name
}

// SetBatchSize enables batch mode at the given target size.
func (s *State) SetBatchSize(size uint32) {
	s.Tracker.EnableBatch(size)
}

// EnableTool turns the tool on.
func (s *State) EnableTool() { s.ToolEnabled = true }

// DisableTool turns the tool off.
func (s *State) DisableTool() { s.ToolEnabled = false }

// SetVehicleID records the current VIN.
func (s *State) SetVehicleID(vin string) { s.VehicleID = &vin }

// ClearVehicleID clears the current VIN.
func (s *State) ClearVehicleID() { s.VehicleID = nil }

// EnableMultiSpindle validates and installs a multi-spindle
// configuration (spindle_count must be in [2,16]).
func (s *State) EnableMultiSpindle(count uint8, syncID uint32) error {
	cfg := multispindle.Config{Enabled: true, SpindleCount: count, SyncID: syncID}
	if !cfg.IsValid() {
		return &InvalidMultiSpindleConfigError{SpindleCount: count}
	}
	s.MultiSpindle = cfg
	return nil
}

// DisableMultiSpindle turns multi-spindle mode off.
func (s *State) DisableMultiSpindle() {
	s.MultiSpindle = multispindle.DisabledConfig()
}

// InvalidMultiSpindleConfigError reports an out-of-range spindle count.
type InvalidMultiSpindleConfigError struct {
	SpindleCount uint8
}

func (e *InvalidMultiSpindleConfigError) Error() string {
	return "multi-spindle spindle count must be in [2,16]"
}
