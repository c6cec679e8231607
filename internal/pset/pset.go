// Package pset manages tightening parameter sets (PSETs): the torque
// and angle ranges a controller applies to a joint.
package pset

import "fmt"

// Pset defines the target ranges for torque and angle for one
// tightening program.
type Pset struct {
	ID          uint32  `json:"id"`
	Name        string  `json:"name"`
	TorqueMin   float64 `json:"torque_min"`
	TorqueMax   float64 `json:"torque_max"`
	AngleMin    float64 `json:"angle_min"`
	AngleMax    float64 `json:"angle_max"`
	Description *string `json:"description,omitempty"`
}

// IsWithinRange reports whether torque and angle both fall within
// this PSET's configured ranges.
func (p Pset) IsWithinRange(torque, angle float64) bool {
	return torque >= p.TorqueMin && torque <= p.TorqueMax &&
		angle >= p.AngleMin && angle <= p.AngleMax
}

// Repository persists PSETs. Implementations must be safe for
// concurrent use.
type Repository interface {
	GetAll() []Pset
	GetByID(id uint32) (Pset, bool)
	Create(p Pset) (Pset, error)
	Update(id uint32, p Pset) (Pset, error)
	Delete(id uint32) error
}

func validateRanges(p Pset) error {
	if p.TorqueMin >= p.TorqueMax {
		return fmt.Errorf("torque_min must be less than torque_max")
	}
	if p.AngleMin >= p.AngleMax {
		return fmt.Errorf("angle_min must be less than angle_max")
	}
	if p.TorqueMin < 0 || p.AngleMin < 0 {
		return fmt.Errorf("values must be non-negative")
	}
	if p.AngleMax > 360.0 {
		return fmt.Errorf("angle_max cannot exceed 360 degrees")
	}
	return nil
}

func strPtr(s string) *string { return &s }

// DefaultPsets returns the simulator's 5 built-in parameter sets.
func DefaultPsets() []Pset {
	return []Pset{
		{
			ID: 1, Name: "Light Duty",
			TorqueMin: 5.0, TorqueMax: 10.0, AngleMin: 30.0, AngleMax: 45.0,
			Description: strPtr("Low torque applications (e.g., electronics, small assemblies)"),
		},
		{
			ID: 2, Name: "Standard",
			TorqueMin: 10.0, TorqueMax: 15.0, AngleMin: 35.0, AngleMax: 50.0,
			Description: strPtr("General purpose tightening operations"),
		},
		{
			ID: 3, Name: "Heavy Duty",
			TorqueMin: 15.0, TorqueMax: 25.0, AngleMin: 40.0, AngleMax: 60.0,
			Description: strPtr("High torque applications (e.g., automotive, machinery)"),
		},
		{
			ID: 4, Name: "Precision",
			TorqueMin: 8.0, TorqueMax: 12.0, AngleMin: 20.0, AngleMax: 30.0,
			Description: strPtr("Tight tolerance requirements"),
		},
		{
			ID: 5, Name: "Extra Heavy",
			TorqueMin: 25.0, TorqueMax: 40.0, AngleMin: 50.0, AngleMax: 90.0,
			Description: strPtr("Maximum torque applications (e.g., industrial equipment)"),
		},
	}
}
