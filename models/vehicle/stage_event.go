package vehicle

import (
	"time"
)

// EventType is the kind of stage event.
type EventType string

const (
	EventStart  EventType = "Start"
	EventEnd    EventType = "End"
	EventPause  EventType = "Pause"
	EventResume EventType = "Resume"
)

// IsValid reports whether et is one of the four event kinds.
func (et EventType) IsValid() bool {
	switch et {
	case EventStart, EventEnd, EventPause, EventResume:
		return true
	default:
		return false
	}
}

func (et EventType) String() string {
	return string(et)
}

// StageEvent is one immutable fact about a visit. Rows are never updated or
// deleted after creation; every derived value (ordinals, active stages,
// durations) is recomputed by scanning the event list.
type StageEvent struct {
	ID      uint `gorm:"primaryKey;autoIncrement" json:"id"`
	VisitID uint `gorm:"not null;index" json:"visit_id"`

	StageName string    `gorm:"type:varchar(100);not null;index" json:"stage_name"`
	Role      string    `gorm:"type:varchar(50);not null" json:"role"`
	EventType EventType `gorm:"type:varchar(10);not null" json:"event_type"`
	Timestamp time.Time `gorm:"not null;index" json:"timestamp"`

	PerformedByID   uint   `gorm:"not null;index" json:"performed_by_id"`
	PerformedByName string `gorm:"type:varchar(255);not null" json:"performed_by_name"`

	// Security Guard entry/exit payload.
	InKM      *float64 `json:"in_km,omitempty"`
	OutKM     *float64 `json:"out_km,omitempty"`
	InDriver  *string  `gorm:"type:varchar(255)" json:"in_driver,omitempty"`
	OutDriver *string  `gorm:"type:varchar(255)" json:"out_driver,omitempty"`

	// Bay Technician payload.
	WorkType  *string `gorm:"type:varchar(50)" json:"work_type,omitempty"`
	BayNumber *int    `json:"bay_number,omitempty"`

	// Set when the system, not a person, emitted the End.
	AutoClosed bool `gorm:"default:false" json:"auto_closed,omitempty"`

	// Set when a soft validation alert was attached instead of blocking.
	Warning *string `gorm:"type:text" json:"warning,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// WorkTypes accepted for bay work.
var WorkTypes = []string{
	"PM", "GR", "Body and Paint", "Diagnosis",
	"PMGR", "PMGR + Body&Paint", "GR+ Body & Paint", "PM+ Body and Paint",
}

// IsValidWorkType reports whether wt is an accepted bay work type.
func IsValidWorkType(wt string) bool {
	for _, t := range WorkTypes {
		if t == wt {
			return true
		}
	}
	return false
}

const (
	MinBayNumber = 1
	MaxBayNumber = 15
)
