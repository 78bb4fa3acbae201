package stageflow

import (
	"strings"
	"testing"
	"time"

	"workshop-tracker/constants"
	vehicleModel "workshop-tracker/models/vehicle"
)

var baseTime = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

type testFlow struct {
	svc   *Service
	store *memStore
	now   time.Time
}

func newTestFlow() *testFlow {
	tf := &testFlow{store: newMemStore(), now: baseTime}
	tf.svc = NewService(tf.store, "https://track.example.com")
	tf.svc.now = func() time.Time { return tf.now }
	return tf
}

func (tf *testFlow) advance(d time.Duration) {
	tf.now = tf.now.Add(d)
}

func guardActor() Actor {
	return Actor{ID: 1, Name: "Rafiq", Role: constants.RoleSecurityGuard}
}

func advisorActor() Actor {
	return Actor{ID: 2, Name: "Salma", Role: constants.RoleServiceAdvisor}
}

func checkReq(role, stage, event string) CheckInput {
	return CheckInput{
		VehicleNumber: "dha-1234",
		Role:          role,
		StageName:     stage,
		EventType:     event,
	}
}

func mustCheck(t *testing.T, tf *testFlow, req CheckInput, actor Actor) *Result {
	t.Helper()
	res, err := tf.svc.Check(req, actor)
	if err != nil {
		t.Fatalf("Check(%s %s %s) failed: %v", req.Role, req.StageName, req.EventType, err)
	}
	return res
}

func wantRuleError(t *testing.T, err error, kind Kind) *RuleError {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", kind)
	}
	re, ok := AsRuleError(err)
	if !ok {
		t.Fatalf("expected rule error, got %v", err)
	}
	if re.Kind != kind {
		t.Fatalf("expected kind %s, got %s (%s)", kind, re.Kind, re.Message)
	}
	return re
}

func TestCheckRejectsMissingFields(t *testing.T) {
	tf := newTestFlow()
	req := checkReq(constants.RoleServiceAdvisor, "", "Start")
	_, err := tf.svc.Check(req, advisorActor())
	wantRuleError(t, err, KindValidation)
}

func TestCheckRejectsRoleMismatch(t *testing.T) {
	tf := newTestFlow()
	req := checkReq(constants.RoleServiceAdvisor, constants.StageInteractiveBay, "Start")
	_, err := tf.svc.Check(req, guardActor())
	re := wantRuleError(t, err, KindRoleMismatch)
	if re.HTTPStatus() != 403 {
		t.Errorf("role mismatch should map to 403, got %d", re.HTTPStatus())
	}
}

func TestSecurityEntryCreatesVisit(t *testing.T) {
	tf := newTestFlow()
	km := 42000.0
	driver := "Karim"
	req := checkReq(constants.RoleSecurityGuard, constants.StageSecurityEntry, "Start")
	req.InKM = &km
	req.InDriver = &driver

	res := mustCheck(t, tf, req, guardActor())
	if !res.Created {
		t.Fatal("expected a new visit")
	}
	if res.Message != "New vehicle entry recorded" {
		t.Errorf("unexpected message %q", res.Message)
	}
	if res.Visit.VehicleNumber != "DHA-1234" {
		t.Errorf("vehicle number not normalized: %q", res.Visit.VehicleNumber)
	}
	if res.Visit.EntryTime == nil || !res.Visit.EntryTime.Equal(tf.now) {
		t.Errorf("entry time not stamped")
	}
	if len(res.Visit.Stages) != 1 {
		t.Fatalf("expected 1 event, got %d", len(res.Visit.Stages))
	}
	ev := res.Visit.Stages[0]
	if ev.InKM == nil || *ev.InKM != km || ev.InDriver == nil || *ev.InDriver != driver {
		t.Errorf("entry payload not recorded: %+v", ev)
	}
	if ev.PerformedByName != "Rafiq" {
		t.Errorf("performer not recorded: %+v", ev)
	}
}

func TestSecurityExitClosesVisit(t *testing.T) {
	tf := newTestFlow()
	mustCheck(t, tf, checkReq(constants.RoleSecurityGuard, constants.StageSecurityEntry, "Start"), guardActor())

	tf.advance(2 * time.Hour)
	km := 42015.0
	req := checkReq(constants.RoleSecurityGuard, constants.StageSecurityExit, "End")
	req.OutKM = &km

	res := mustCheck(t, tf, req, guardActor())
	if res.Visit.ExitTime == nil || !res.Visit.ExitTime.Equal(tf.now) {
		t.Fatal("exit time not stamped")
	}
	if res.Message != "Vehicle exit recorded" {
		t.Errorf("unexpected message %q", res.Message)
	}

	// The visit is closed in the store as well.
	stored := tf.store.stored(res.Visit.ID)
	if stored.ExitTime == nil {
		t.Fatal("exit not persisted")
	}
}

func TestSecurityExitWithoutVisit(t *testing.T) {
	tf := newTestFlow()
	_, err := tf.svc.Check(checkReq(constants.RoleSecurityGuard, constants.StageSecurityExit, "End"), guardActor())
	wantRuleError(t, err, KindNoActiveVisit)
}

func TestReEntryClosesRecentOpenVisit(t *testing.T) {
	tf := newTestFlow()
	first := mustCheck(t, tf, checkReq(constants.RoleSecurityGuard, constants.StageSecurityEntry, "Start"), guardActor())

	// Exit scan was missed; the vehicle returns three hours later.
	tf.advance(3 * time.Hour)
	second := mustCheck(t, tf, checkReq(constants.RoleSecurityGuard, constants.StageSecurityEntry, "Start"), guardActor())

	if second.Visit.ID == first.Visit.ID {
		t.Fatal("expected a fresh visit")
	}
	if old := tf.store.stored(first.Visit.ID); old.ExitTime == nil {
		t.Error("recent open visit should have been force-closed")
	}
}

func TestReEntryLeavesStaleVisitOpen(t *testing.T) {
	tf := newTestFlow()
	first := mustCheck(t, tf, checkReq(constants.RoleSecurityGuard, constants.StageSecurityEntry, "Start"), guardActor())

	tf.advance(StalenessWindow + time.Hour)
	second := mustCheck(t, tf, checkReq(constants.RoleSecurityGuard, constants.StageSecurityEntry, "Start"), guardActor())

	if second.Visit.ID == first.Visit.ID {
		t.Fatal("expected a fresh visit")
	}
	if old := tf.store.stored(first.Visit.ID); old.ExitTime != nil {
		t.Error("stale visit should have been left open as an abandoned record")
	}
}

func TestNonSecurityStartOpensVisit(t *testing.T) {
	tf := newTestFlow()
	res := mustCheck(t, tf, checkReq(constants.RoleServiceAdvisor, constants.StageInteractiveBay, "Start"), advisorActor())
	if !res.Created {
		t.Fatal("expected a new visit")
	}
	if res.Visit.EntryTime == nil {
		t.Error("non-security start should stamp an entry time")
	}
	if res.Message != "New vehicle entry recorded" {
		t.Errorf("unexpected message %q", res.Message)
	}
}

func TestNonStartWithoutVisitRejected(t *testing.T) {
	tf := newTestFlow()
	_, err := tf.svc.Check(checkReq(constants.RoleServiceAdvisor, constants.StageInteractiveBay, "End"), advisorActor())
	wantRuleError(t, err, KindNoActiveVisit)
}

func TestN1CallingCreatesShellWithTrackingLink(t *testing.T) {
	tf := newTestFlow()
	res := mustCheck(t, tf, checkReq(constants.RoleServiceAdvisor, constants.StageN1Calling, "Start"), advisorActor())

	if !res.Created {
		t.Fatal("expected a shell visit")
	}
	if res.Visit.EntryTime != nil {
		t.Error("N-1 shell must not carry an entry time")
	}
	if res.Visit.TrackingToken == nil || len(*res.Visit.TrackingToken) != 32 {
		t.Fatalf("expected a 32-char hex token, got %v", res.Visit.TrackingToken)
	}
	want := "https://track.example.com/track/" + *res.Visit.TrackingToken
	if res.TrackingLink != want {
		t.Errorf("tracking link %q, want %q", res.TrackingLink, want)
	}
	if res.Message != "N-1 Calling recorded successfully" {
		t.Errorf("unexpected message %q", res.Message)
	}
}

func TestN1CallingDuplicateRejected(t *testing.T) {
	tf := newTestFlow()
	mustCheck(t, tf, checkReq(constants.RoleServiceAdvisor, constants.StageN1Calling, "Start"), advisorActor())

	_, err := tf.svc.Check(checkReq(constants.RoleServiceAdvisor, constants.StageN1Calling, "Start"), advisorActor())
	wantRuleError(t, err, KindDuplicateStage)
}

func TestN1ShellUpgradedBySecurityEntry(t *testing.T) {
	tf := newTestFlow()
	shell := mustCheck(t, tf, checkReq(constants.RoleServiceAdvisor, constants.StageN1Calling, "Start"), advisorActor())

	// The next morning the vehicle arrives. The shell has no entry time, so
	// re-entry recovery does not close it; the guard's scan starts a new
	// visit with entry semantics.
	tf.advance(18 * time.Hour)
	entry := mustCheck(t, tf, checkReq(constants.RoleSecurityGuard, constants.StageSecurityEntry, "Start"), guardActor())

	if entry.Visit.ID == shell.Visit.ID {
		t.Fatal("expected entry to open a new visit")
	}
	if old := tf.store.stored(shell.Visit.ID); old.ExitTime != nil {
		t.Error("shell without entry time must not be force-closed")
	}
}

func TestCheckRetriesOnRevisionConflict(t *testing.T) {
	tf := newTestFlow()
	mustCheck(t, tf, checkReq(constants.RoleSecurityGuard, constants.StageSecurityEntry, "Start"), guardActor())

	// Simulate a concurrent writer bumping the stored revision after the
	// first read: wrap the store so the first SaveVisit observes stale state.
	conflictOnce := &conflictingStore{VisitStore: tf.store}
	tf.svc.Store = conflictOnce

	tf.advance(time.Minute)
	res := mustCheck(t, tf, checkReq(constants.RoleServiceAdvisor, constants.StageInteractiveBay, "Start"), advisorActor())
	if conflictOnce.saves < 2 {
		t.Fatalf("expected a retried save, got %d attempts", conflictOnce.saves)
	}
	if len(res.Appended) != 1 || res.Appended[0].StageName != constants.StageInteractiveBay {
		t.Fatalf("unexpected appended events: %+v", res.Appended)
	}
}

// conflictingStore fails the first SaveVisit with a revision conflict.
type conflictingStore struct {
	VisitStore
	saves int
}

func (s *conflictingStore) SaveVisit(visit *vehicleModel.Visit, appended []vehicleModel.StageEvent) error {
	s.saves++
	if s.saves == 1 {
		return ErrRevisionConflict
	}
	return s.VisitStore.SaveVisit(visit, appended)
}

func TestNormalizeVehicleNumber(t *testing.T) {
	cases := map[string]string{
		"dha-1234":    "DHA-1234",
		"  ka 09 12 ": "KA 09 12",
		"ABC123":      "ABC123",
	}
	for in, want := range cases {
		if got := NormalizeVehicleNumber(in); got != want {
			t.Errorf("NormalizeVehicleNumber(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTrackingTokenIsHex(t *testing.T) {
	token := newTrackingToken()
	if len(token) != 32 {
		t.Fatalf("token length %d, want 32", len(token))
	}
	if strings.ToLower(token) != token {
		t.Errorf("token should be lowercase hex: %q", token)
	}
}
