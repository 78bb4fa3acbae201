package vehicle

import (
	"time"
)

// Visit is one vehicle occupancy episode from security entry to exit.
// ExitTime == nil means the visit is still open. The embedded event list is
// append-only; insertion order is chronological order.
type Visit struct {
	ID            uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	VehicleNumber string     `gorm:"type:varchar(20);not null;index" json:"vehicle_number"`
	EntryTime     *time.Time `gorm:"index" json:"entry_time,omitempty"`
	ExitTime      *time.Time `json:"exit_time,omitempty"`

	// Assigned lazily on the first N-1 Calling start; used for the customer
	// tracking lookup.
	TrackingToken *string `gorm:"type:varchar(64);index" json:"tracking_token,omitempty"`

	// Revision is checked-and-incremented on every write so that two
	// concurrent vehicle-check requests for the same visit cannot lose
	// updates.
	Revision uint `gorm:"not null;default:0" json:"revision"`

	Stages []StageEvent `gorm:"foreignKey:VisitID" json:"stages"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Open reports whether the visit has not been closed yet.
func (v *Visit) Open() bool {
	return v.ExitTime == nil
}

// EnteredWithin reports whether the visit's entry time falls inside the
// window ending at ref. Visits created as bare shells (N-1 Calling before
// security entry) have no entry time and never match.
func (v *Visit) EnteredWithin(window time.Duration, ref time.Time) bool {
	if v.EntryTime == nil {
		return false
	}
	return ref.Sub(*v.EntryTime) <= window
}
