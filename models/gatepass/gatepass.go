package gatepass

import (
	"time"

	"gorm.io/gorm"
)

// GatePassScan records one gate-pass photo upload and its parsing outcome.
type GatePassScan struct {
	ID        uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	RequestID string `gorm:"type:varchar(64);not null;unique" json:"request_id"`

	OriginalFileName string `gorm:"type:varchar(255)" json:"original_file_name"`
	FileSize         int64  `json:"file_size"`
	MimeType         string `gorm:"type:varchar(100)" json:"mime_type"`

	Status string `gorm:"type:varchar(20);not null;default:processing" json:"status"` // processing, success, failed

	// Parsed fields (filled on success).
	VehicleNumber *string  `gorm:"type:varchar(20)" json:"vehicle_number,omitempty"`
	InKM          *float64 `json:"in_km,omitempty"`
	InDriver      *string  `gorm:"type:varchar(255)" json:"in_driver,omitempty"`

	RawModelOutput   *string `gorm:"type:text" json:"raw_model_output,omitempty"`
	ErrorMessage     *string `gorm:"type:text" json:"error_message,omitempty"`
	ProcessingTimeMs int64   `json:"processing_time_ms"`

	IPAddress string    `gorm:"type:varchar(64)" json:"ip_address"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// MarkSuccess stores the parsed fields and flips the scan to success.
func (g *GatePassScan) MarkSuccess(db *gorm.DB, vehicleNumber string, inKM *float64, inDriver *string, raw string, elapsedMs int64) error {
	return db.Model(g).Updates(map[string]interface{}{
		"status":             "success",
		"vehicle_number":     vehicleNumber,
		"in_km":              inKM,
		"in_driver":          inDriver,
		"raw_model_output":   raw,
		"processing_time_ms": elapsedMs,
	}).Error
}

// MarkFailed records the failure reason.
func (g *GatePassScan) MarkFailed(db *gorm.DB, reason string, elapsedMs int64) error {
	return db.Model(g).Updates(map[string]interface{}{
		"status":             "failed",
		"error_message":      reason,
		"processing_time_ms": elapsedMs,
	}).Error
}
