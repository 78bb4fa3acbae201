package stageflow

import (
	"time"

	vehicleModel "workshop-tracker/models/vehicle"
)

// memStore mirrors the gorm store against a slice, including the optimistic
// revision guard, so the flow can be exercised without a database.
type memStore struct {
	visits      []*vehicleModel.Visit
	nextVisitID uint
	nextEventID uint
}

func newMemStore() *memStore {
	return &memStore{nextVisitID: 1, nextEventID: 1}
}

func (m *memStore) FindOpenVisit(vehicleNumber string) (*vehicleModel.Visit, error) {
	var best *vehicleModel.Visit
	for _, v := range m.visits {
		if v.VehicleNumber != vehicleNumber || v.ExitTime != nil {
			continue
		}
		if best == nil {
			best = v
			continue
		}
		// entry_time DESC NULLS LAST
		switch {
		case best.EntryTime == nil && v.EntryTime != nil:
			best = v
		case best.EntryTime != nil && v.EntryTime != nil && v.EntryTime.After(*best.EntryTime):
			best = v
		}
	}
	if best == nil {
		return nil, nil
	}
	clone := *best
	clone.Stages = append([]vehicleModel.StageEvent{}, best.Stages...)
	return &clone, nil
}

func (m *memStore) CloseOpenVisits(vehicleNumber string, at time.Time) error {
	for _, v := range m.visits {
		if v.VehicleNumber == vehicleNumber && v.ExitTime == nil {
			t := at
			v.ExitTime = &t
			v.Revision++
		}
	}
	return nil
}

func (m *memStore) CreateVisit(visit *vehicleModel.Visit) error {
	visit.ID = m.nextVisitID
	m.nextVisitID++
	for i := range visit.Stages {
		visit.Stages[i].ID = m.nextEventID
		visit.Stages[i].VisitID = visit.ID
		m.nextEventID++
	}
	stored := *visit
	stored.Stages = append([]vehicleModel.StageEvent{}, visit.Stages...)
	m.visits = append(m.visits, &stored)
	return nil
}

func (m *memStore) SaveVisit(visit *vehicleModel.Visit, appended []vehicleModel.StageEvent) error {
	var stored *vehicleModel.Visit
	for _, v := range m.visits {
		if v.ID == visit.ID {
			stored = v
			break
		}
	}
	if stored == nil || stored.Revision != visit.Revision {
		return ErrRevisionConflict
	}

	stored.ExitTime = visit.ExitTime
	stored.TrackingToken = visit.TrackingToken
	for i := range appended {
		appended[i].ID = m.nextEventID
		appended[i].VisitID = visit.ID
		m.nextEventID++
	}
	stored.Stages = append(stored.Stages, appended...)
	stored.Revision++
	visit.Revision++
	return nil
}

// stored returns the persisted visit record by id.
func (m *memStore) stored(id uint) *vehicleModel.Visit {
	for _, v := range m.visits {
		if v.ID == id {
			return v
		}
	}
	return nil
}
