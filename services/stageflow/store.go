package stageflow

import (
	"errors"
	"time"

	vehicleModel "workshop-tracker/models/vehicle"

	"gorm.io/gorm"
)

// VisitStore is the persistence boundary of the vehicle-check flow. The
// production implementation is gorm-backed; tests use an in-memory fake.
type VisitStore interface {
	// FindOpenVisit returns the most recent open visit for the vehicle with
	// its event log loaded, or nil when none is open.
	FindOpenVisit(vehicleNumber string) (*vehicleModel.Visit, error)
	// CloseOpenVisits stamps an exit time on every open visit for the
	// vehicle (missed-exit-scan recovery).
	CloseOpenVisits(vehicleNumber string, at time.Time) error
	// CreateVisit persists a new visit together with any seed events.
	CreateVisit(visit *vehicleModel.Visit) error
	// SaveVisit appends events and persists exit/tracking mutations under an
	// optimistic revision guard. Returns ErrRevisionConflict when another
	// request wrote the visit first.
	SaveVisit(visit *vehicleModel.Visit, appended []vehicleModel.StageEvent) error
}

type gormVisitStore struct {
	db *gorm.DB
}

// NewVisitStore returns the gorm-backed visit store.
func NewVisitStore(db *gorm.DB) VisitStore {
	return &gormVisitStore{db: db}
}

func (s *gormVisitStore) FindOpenVisit(vehicleNumber string) (*vehicleModel.Visit, error) {
	var visit vehicleModel.Visit
	err := s.db.
		Where("vehicle_number = ? AND exit_time IS NULL", vehicleNumber).
		Order("entry_time DESC NULLS LAST").
		Preload("Stages", func(db *gorm.DB) *gorm.DB {
			return db.Order("timestamp ASC, id ASC")
		}).
		First(&visit).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &visit, nil
}

func (s *gormVisitStore) CloseOpenVisits(vehicleNumber string, at time.Time) error {
	return s.db.Model(&vehicleModel.Visit{}).
		Where("vehicle_number = ? AND exit_time IS NULL", vehicleNumber).
		Updates(map[string]interface{}{
			"exit_time": at,
			"revision":  gorm.Expr("revision + 1"),
		}).Error
}

func (s *gormVisitStore) CreateVisit(visit *vehicleModel.Visit) error {
	return s.db.Create(visit).Error
}

func (s *gormVisitStore) SaveVisit(visit *vehicleModel.Visit, appended []vehicleModel.StageEvent) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&vehicleModel.Visit{}).
			Where("id = ? AND revision = ?", visit.ID, visit.Revision).
			Updates(map[string]interface{}{
				"revision":       visit.Revision + 1,
				"exit_time":      visit.ExitTime,
				"tracking_token": visit.TrackingToken,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrRevisionConflict
		}
		if len(appended) > 0 {
			for i := range appended {
				appended[i].VisitID = visit.ID
			}
			if err := tx.Create(&appended).Error; err != nil {
				return err
			}
		}
		visit.Revision++
		return nil
	})
}
