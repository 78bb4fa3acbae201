package stageflow

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"workshop-tracker/constants"
	vehicleModel "workshop-tracker/models/vehicle"
	vehicleTypes "workshop-tracker/types/vehicle"
)

// Actor is the authenticated staff member performing an event.
type Actor struct {
	ID   uint
	Name string
	Role string
}

// CheckInput is the vehicle-check request shape.
type CheckInput = vehicleTypes.CheckRequest

// Result is a successful vehicle-check outcome.
type Result struct {
	Visit        *vehicleModel.Visit
	Appended     []vehicleModel.StageEvent
	Created      bool
	Message      string
	Warning      string
	TrackingLink string
}

// Service runs the vehicle-check flow: resolve the visit, validate the event
// against the log, append, persist.
type Service struct {
	Store           VisitStore
	TrackingBaseURL string

	// now is swappable in tests.
	now func() time.Time
}

// NewService creates the vehicle-check service.
func NewService(store VisitStore, trackingBaseURL string) *Service {
	return &Service{
		Store:           store,
		TrackingBaseURL: strings.TrimRight(trackingBaseURL, "/"),
		now:             time.Now,
	}
}

// NormalizeVehicleNumber canonicalizes a plate for lookup and storage.
func NormalizeVehicleNumber(n string) string {
	return strings.ToUpper(strings.TrimSpace(n))
}

// Check validates and applies one vehicle-check event. A revision conflict
// (two scans racing on the same visit) is retried once against fresh state.
func (s *Service) Check(req CheckInput, actor Actor) (*Result, error) {
	res, err := s.check(req, actor)
	if errors.Is(err, ErrRevisionConflict) {
		res, err = s.check(req, actor)
	}
	return res, err
}

func (s *Service) check(req CheckInput, actor Actor) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, reject(KindValidation, "Vehicle number, stage name and event type are required.")
	}
	if actor.Role != req.Role {
		return nil, reject(KindRoleMismatch, "Your user role doesn't match the requested action role")
	}

	vehicleNumber := NormalizeVehicleNumber(req.VehicleNumber)
	now := s.now()

	visit, err := s.Store.FindOpenVisit(vehicleNumber)
	if err != nil {
		return nil, err
	}

	// N-1 Calling bypasses the normal lifecycle entirely: it may run before
	// the vehicle has even entered the premises.
	if req.Role == constants.RoleServiceAdvisor &&
		req.StageName == constants.StageN1Calling &&
		req.EventType == string(vehicleModel.EventStart) {
		return s.n1Calling(visit, vehicleNumber, req, actor, now)
	}

	// Entry/exit semantics belong to the Security Guard.
	if req.Role == constants.RoleSecurityGuard {
		switch vehicleModel.EventType(req.EventType) {
		case vehicleModel.EventStart:
			return s.securityEntry(visit, vehicleNumber, req, actor, now)
		case vehicleModel.EventEnd:
			return s.securityExit(visit, req, actor, now)
		}
	}

	created := false
	if visit == nil {
		if req.EventType != string(vehicleModel.EventStart) {
			return nil, reject(KindNoActiveVisit, "No active vehicle entry found. Please start a new entry first.")
		}
		entry := now
		visit, err = s.openVisitShell(vehicleNumber, &entry)
		if err != nil {
			return nil, err
		}
		created = true
	}

	out, rerr := applyRules(visit, req, actor, now)
	if rerr != nil {
		return nil, rerr
	}

	if err := s.Store.SaveVisit(visit, out.appended); err != nil {
		return nil, err
	}
	visit.Stages = append(visit.Stages, out.appended...)

	message := out.message
	if created {
		message = "New vehicle entry recorded"
	}
	return &Result{
		Visit:    visit,
		Appended: out.appended,
		Created:  created,
		Message:  message,
		Warning:  out.warning,
	}, nil
}

// n1Calling records the day-before customer call and hands back a tracking
// link. The visit may be a bare shell without entry semantics.
func (s *Service) n1Calling(visit *vehicleModel.Visit, vehicleNumber string, req CheckInput, actor Actor, now time.Time) (*Result, error) {
	created := false
	if visit == nil {
		var err error
		visit, err = s.openVisitShell(vehicleNumber, nil)
		if err != nil {
			return nil, err
		}
		created = true
	}

	if countStarts(visit.Stages, stageNameIs(constants.StageN1Calling)) > 0 {
		return nil, reject(KindDuplicateStage, "N-1 Calling has already been started for this vehicle.")
	}

	if visit.TrackingToken == nil {
		token := newTrackingToken()
		visit.TrackingToken = &token
	}

	ev := newEvent(constants.StageN1Calling, req.Role, vehicleModel.EventStart, actor, now)
	if err := s.Store.SaveVisit(visit, []vehicleModel.StageEvent{ev}); err != nil {
		return nil, err
	}
	visit.Stages = append(visit.Stages, ev)

	return &Result{
		Visit:        visit,
		Appended:     []vehicleModel.StageEvent{ev},
		Created:      created,
		Message:      "N-1 Calling recorded successfully",
		TrackingLink: fmt.Sprintf("%s/track/%s", s.TrackingBaseURL, *visit.TrackingToken),
	}, nil
}

// newTrackingToken returns 128 bits of randomness as hex.
func newTrackingToken() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}
