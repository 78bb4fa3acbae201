package stageflow

import (
	"time"

	vehicleModel "workshop-tracker/models/vehicle"
)

// StalenessWindow decides whether an unexpectedly-open prior visit is a
// missed exit scan (force-close it) or an abandoned record (leave it and
// open a fresh visit).
const StalenessWindow = 12 * time.Hour

// securityEntry handles a Security Guard Start: recover from a missed exit
// scan if the open visit is recent, then open a new visit seeded with the
// entry event.
func (s *Service) securityEntry(open *vehicleModel.Visit, vehicleNumber string, req CheckInput, actor Actor, now time.Time) (*Result, error) {
	if open != nil && open.EnteredWithin(StalenessWindow, now) {
		// Missed exit scan: close every open visit for this vehicle before
		// recording the new entry. Visits older than the window are left
		// open as abandoned records.
		if err := s.Store.CloseOpenVisits(vehicleNumber, now); err != nil {
			return nil, err
		}
	}

	entry := now
	visit := &vehicleModel.Visit{
		VehicleNumber: vehicleNumber,
		EntryTime:     &entry,
	}
	ev := newEvent(req.StageName, req.Role, vehicleModel.EventType(req.EventType), actor, now)
	vehicleModel.ApplyPayload(&ev, vehicleModel.SecurityEntryPayload{InKM: req.InKM, InDriver: req.InDriver})
	visit.Stages = []vehicleModel.StageEvent{ev}

	if err := s.Store.CreateVisit(visit); err != nil {
		return nil, err
	}
	return &Result{
		Visit:    visit,
		Appended: visit.Stages,
		Created:  true,
		Message:  "New vehicle entry recorded",
	}, nil
}

// securityExit handles a Security Guard End: close the open visit and append
// the exit event. Stages left Start-only inside the visit are not closed;
// they stay visible as dangling active stages in reporting.
func (s *Service) securityExit(open *vehicleModel.Visit, req CheckInput, actor Actor, now time.Time) (*Result, error) {
	if open == nil {
		return nil, reject(KindNoActiveVisit, "No active vehicle entry found to close")
	}

	open.ExitTime = &now
	ev := newEvent(req.StageName, req.Role, vehicleModel.EventType(req.EventType), actor, now)
	vehicleModel.ApplyPayload(&ev, vehicleModel.SecurityExitPayload{OutKM: req.OutKM, OutDriver: req.OutDriver})

	if err := s.Store.SaveVisit(open, []vehicleModel.StageEvent{ev}); err != nil {
		return nil, err
	}
	open.Stages = append(open.Stages, ev)
	return &Result{
		Visit:    open,
		Appended: []vehicleModel.StageEvent{ev},
		Message:  "Vehicle exit recorded",
	}, nil
}

// openVisitShell opens an empty visit for a non-security Start (or an N-1
// Calling shell when entry is nil). The triggering event itself is appended
// by the state machine so renames and payload rules apply uniformly.
func (s *Service) openVisitShell(vehicleNumber string, entry *time.Time) (*vehicleModel.Visit, error) {
	visit := &vehicleModel.Visit{
		VehicleNumber: vehicleNumber,
		EntryTime:     entry,
	}
	if err := s.Store.CreateVisit(visit); err != nil {
		return nil, err
	}
	return visit, nil
}
