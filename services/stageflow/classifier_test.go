package stageflow

import (
	"testing"
	"time"

	"workshop-tracker/constants"
	vehicleModel "workshop-tracker/models/vehicle"
)

func event(id uint, stage string, et vehicleModel.EventType, at time.Time) vehicleModel.StageEvent {
	return vehicleModel.StageEvent{
		ID:        id,
		StageName: stage,
		EventType: et,
		Timestamp: at,
	}
}

func bayEvent(id uint, stage string, et vehicleModel.EventType, at time.Time, workType string, bay int) vehicleModel.StageEvent {
	e := event(id, stage, et, at)
	e.WorkType = &workType
	e.BayNumber = &bay
	return e
}

func TestActiveStagesOpenAndClosed(t *testing.T) {
	t0 := baseTime
	jobCard := event(4, constants.StageJobCardCreation, vehicleModel.EventStart, t0.Add(30*time.Minute))
	jobCard.PerformedByName = "Salma"
	events := []vehicleModel.StageEvent{
		event(1, constants.StageSecurityEntry, vehicleModel.EventStart, t0),
		event(2, constants.StageInteractiveBay, vehicleModel.EventStart, t0.Add(5*time.Minute)),
		event(3, constants.StageInteractiveBay, vehicleModel.EventEnd, t0.Add(25*time.Minute)),
		jobCard,
	}

	active := ActiveStages(events, t0.Add(time.Hour))
	byName := make(map[string]ActiveStage)
	for _, st := range active {
		byName[st.StageName] = st
	}

	st, ok := byName[constants.StageJobCardCreation]
	if !ok {
		t.Fatal("job card creation should be active")
	}
	if st.PerformedBy != "Salma" {
		t.Errorf("performedBy %q, want %q", st.PerformedBy, "Salma")
	}
	if want := (30 * time.Minute).Milliseconds(); st.DurationMs != want {
		t.Errorf("duration %dms, want %dms", st.DurationMs, want)
	}
	if _, ok := byName[constants.StageInteractiveBay]; ok {
		t.Error("ended stage should not be active")
	}
	if _, ok := byName[constants.StageSecurityEntry]; !ok {
		t.Error("security entry start stays open until exit")
	}
}

func TestActiveStagesImplicitClosure(t *testing.T) {
	t0 := baseTime
	events := []vehicleModel.StageEvent{
		event(1, constants.StageJobCardCreation, vehicleModel.EventStart, t0),
		event(2, constants.StageReadyForWashing, vehicleModel.EventStart, t0.Add(time.Hour)),
		event(3, constants.StageWashing, vehicleModel.EventStart, t0.Add(2*time.Hour)),
	}

	active := ActiveStages(events, t0.Add(3*time.Hour))
	names := make(map[string]bool)
	for _, st := range active {
		names[st.StageName] = true
	}

	if names[constants.StageJobCardCreation] {
		t.Error("job card creation is implicitly closed by Ready for Washing")
	}
	if names[constants.StageReadyForWashing] {
		t.Error("ready for washing is implicitly closed by Washing")
	}
	if !names[constants.StageWashing] {
		t.Error("washing should be active")
	}
}

func TestActiveStagesPausedFlag(t *testing.T) {
	t0 := baseTime
	events := []vehicleModel.StageEvent{
		bayEvent(1, "Bay Work: PM: 1", vehicleModel.EventStart, t0, "PM", 3),
		bayEvent(2, "Bay Work: PM: 1", vehicleModel.EventPause, t0.Add(20*time.Minute), "PM", 3),
	}

	active := ActiveStages(events, t0.Add(30*time.Minute))
	if len(active) != 1 {
		t.Fatalf("expected 1 active stage, got %d", len(active))
	}
	st := active[0]
	if !st.Paused {
		t.Error("stage should be paused")
	}
	if st.PausedAt == nil || !st.PausedAt.Equal(t0.Add(20*time.Minute)) {
		t.Errorf("pausedAt not derived from the pause event: %v", st.PausedAt)
	}
}

func TestWorkSessionsPauseAccounting(t *testing.T) {
	t0 := baseTime
	events := []vehicleModel.StageEvent{
		event(1, constants.StageWashing, vehicleModel.EventStart, t0),
		event(2, constants.StageWashing, vehicleModel.EventPause, t0.Add(10*time.Minute)),
		event(3, constants.StageWashing, vehicleModel.EventResume, t0.Add(15*time.Minute)),
		event(4, constants.StageWashing, vehicleModel.EventEnd, t0.Add(30*time.Minute)),
	}

	sessions := WorkSessions(events, t0.Add(time.Hour))
	if len(sessions) != 1 {
		t.Fatalf("expected 1 session, got %d", len(sessions))
	}
	s := sessions[0]
	if s.Active {
		t.Error("session should be closed")
	}
	if want := (25 * time.Minute).Milliseconds(); s.WorkingMs != want {
		t.Errorf("working %dms, want %dms", s.WorkingMs, want)
	}
	if want := (5 * time.Minute).Milliseconds(); s.PausedMs != want {
		t.Errorf("paused %dms, want %dms", s.PausedMs, want)
	}
}

func TestWorkSessionsTrailingPause(t *testing.T) {
	t0 := baseTime
	events := []vehicleModel.StageEvent{
		event(1, constants.StageWashing, vehicleModel.EventStart, t0),
		event(2, constants.StageWashing, vehicleModel.EventPause, t0.Add(10*time.Minute)),
	}

	sessions := WorkSessions(events, t0.Add(30*time.Minute))
	if len(sessions) != 1 {
		t.Fatalf("expected 1 session, got %d", len(sessions))
	}
	s := sessions[0]
	if !s.Active || !s.Paused {
		t.Errorf("session should be active and paused: %+v", s)
	}
	if want := (10 * time.Minute).Milliseconds(); s.WorkingMs != want {
		t.Errorf("working %dms, want %dms", s.WorkingMs, want)
	}
	if want := (20 * time.Minute).Milliseconds(); s.PausedMs != want {
		t.Errorf("paused %dms, want %dms", s.PausedMs, want)
	}
}

func TestWorkSessionsRepeatedStartEndPairs(t *testing.T) {
	t0 := baseTime
	events := []vehicleModel.StageEvent{
		event(1, constants.StageWashing, vehicleModel.EventStart, t0),
		event(2, constants.StageWashing, vehicleModel.EventEnd, t0.Add(15*time.Minute)),
		event(3, constants.StageWashing, vehicleModel.EventStart, t0.Add(30*time.Minute)),
		event(4, constants.StageWashing, vehicleModel.EventEnd, t0.Add(55*time.Minute)),
	}

	sessions := WorkSessions(events, t0.Add(2*time.Hour))
	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(sessions))
	}
	for i, s := range sessions {
		if s.Active {
			t.Errorf("session %d should be closed", i)
		}
	}
	if want := (15 * time.Minute).Milliseconds(); sessions[0].WorkingMs != want {
		t.Errorf("first session working %dms, want %dms", sessions[0].WorkingMs, want)
	}
	if want := (25 * time.Minute).Milliseconds(); sessions[1].WorkingMs != want {
		t.Errorf("second session working %dms, want %dms", sessions[1].WorkingMs, want)
	}
	if !sessions[1].StartedAt.Equal(t0.Add(30 * time.Minute)) {
		t.Errorf("second session start %v", sessions[1].StartedAt)
	}
}

func TestBayWorkStatusLifecycle(t *testing.T) {
	t0 := baseTime
	var events []vehicleModel.StageEvent

	if st := BayWorkStatus(events, "PM", 3); st.Status != "notStarted" {
		t.Fatalf("status %q, want notStarted", st.Status)
	}

	events = append(events, bayEvent(1, "Bay Work: PM: 1", vehicleModel.EventStart, t0, "PM", 3))
	if st := BayWorkStatus(events, "PM", 3); st.Status != "inProgress" {
		t.Fatalf("status %q, want inProgress", st.Status)
	}

	events = append(events, bayEvent(2, "Bay Work: PM: 1", vehicleModel.EventPause, t0.Add(5*time.Minute), "PM", 3))
	if st := BayWorkStatus(events, "PM", 3); st.Status != "paused" {
		t.Fatalf("status %q, want paused", st.Status)
	}

	events = append(events,
		bayEvent(3, "Bay Work: PM: 1", vehicleModel.EventResume, t0.Add(10*time.Minute), "PM", 3),
		bayEvent(4, "Bay Work: PM: 1", vehicleModel.EventEnd, t0.Add(20*time.Minute), "PM", 3),
	)
	st := BayWorkStatus(events, "PM", 3)
	if st.Status != "completed" {
		t.Fatalf("status %q, want completed", st.Status)
	}
	if st.EndedAt == nil || !st.EndedAt.Equal(t0.Add(20*time.Minute)) {
		t.Errorf("endedAt not derived: %v", st.EndedAt)
	}

	// Another key in the same log is independent.
	if other := BayWorkStatus(events, "GR", 3); other.Status != "notStarted" {
		t.Errorf("other key status %q, want notStarted", other.Status)
	}
}

func TestFamilyOf(t *testing.T) {
	cases := map[string]string{
		constants.StageInteractiveBay:        FamilyInteractiveBay,
		constants.StageJobCardCreation:       FamilyJobCard,
		constants.StageAdditionalWork + " 2": FamilyAdditionalWork,
		"Bay Work: PM: 1":                    FamilyBayWork,
		constants.StagePartsEstimate:         FamilyPartsEstimate,
		constants.StageWashing:               FamilyWashing,
		constants.StageFinalInspection:       FamilyFinalInspection,
		constants.StageSecurityEntry:         "",
		constants.StageN1Calling:             "",
	}
	for name, want := range cases {
		if got := FamilyOf(name); got != want {
			t.Errorf("FamilyOf(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestAverageDurations(t *testing.T) {
	t0 := baseTime
	visits := []vehicleModel.Visit{
		{Stages: []vehicleModel.StageEvent{
			event(1, constants.StageWashing, vehicleModel.EventStart, t0),
			event(2, constants.StageWashing, vehicleModel.EventEnd, t0.Add(20*time.Minute)),
		}},
		{Stages: []vehicleModel.StageEvent{
			event(3, constants.StageWashing, vehicleModel.EventStart, t0),
			event(4, constants.StageWashing, vehicleModel.EventEnd, t0.Add(40*time.Minute)),
			// Active sessions never count toward averages.
			event(5, constants.StageFinalInspection, vehicleModel.EventStart, t0.Add(41*time.Minute)),
		}},
	}

	avg := AverageDurations(visits, t0.Add(time.Hour))
	if want := (30 * time.Minute).Milliseconds(); avg[FamilyWashing] != want {
		t.Errorf("washing average %dms, want %dms", avg[FamilyWashing], want)
	}
	if _, ok := avg[FamilyFinalInspection]; ok {
		t.Error("active session should not produce an average")
	}
}
