package vehicle

import (
	"fmt"

	vehicleModel "workshop-tracker/models/vehicle"
)

// CheckRequest is the vehicle-check payload. Optional fields are read only
// for the roles they belong to (inKM/outKM/inDriver/outDriver for the
// Security Guard, workType/bayNumber for the Bay Technician).
type CheckRequest struct {
	VehicleNumber string `json:"vehicleNumber" validate:"required,max=20"`
	Role          string `json:"role" validate:"required"`
	StageName     string `json:"stageName" validate:"required,max=100"`
	EventType     string `json:"eventType" validate:"required,oneof=Start End Pause Resume"`

	InKM      *float64 `json:"inKM,omitempty"`
	OutKM     *float64 `json:"outKM,omitempty"`
	InDriver  *string  `json:"inDriver,omitempty"`
	OutDriver *string  `json:"outDriver,omitempty"`

	WorkType  *string `json:"workType,omitempty" validate:"omitempty,max=50"`
	BayNumber *int    `json:"bayNumber,omitempty" validate:"omitempty,min=1,max=15"`
}

// Validate performs the first-step field checks before the state machine runs.
func (r CheckRequest) Validate() error {
	if r.VehicleNumber == "" || r.StageName == "" || r.EventType == "" {
		return fmt.Errorf("vehicle number, stage name and event type are required")
	}
	if !vehicleModel.EventType(r.EventType).IsValid() {
		return fmt.Errorf("event type must be one of Start, End, Pause, Resume")
	}
	if r.WorkType != nil && *r.WorkType != "" && !vehicleModel.IsValidWorkType(*r.WorkType) {
		return fmt.Errorf("unknown work type %q", *r.WorkType)
	}
	if r.BayNumber != nil && (*r.BayNumber < vehicleModel.MinBayNumber || *r.BayNumber > vehicleModel.MaxBayNumber) {
		return fmt.Errorf("bay number must be between %d and %d", vehicleModel.MinBayNumber, vehicleModel.MaxBayNumber)
	}
	return nil
}
