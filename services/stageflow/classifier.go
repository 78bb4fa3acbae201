package stageflow

import (
	"strings"
	"time"

	"workshop-tracker/constants"
	vehicleModel "workshop-tracker/models/vehicle"
)

// implicitClosers marks stages that end by convention rather than by an
// explicit End scan: starting any closer stage closes the named stage.
var implicitClosers = map[string][]string{
	constants.StageReadyForWashing: {constants.StageWashing},
	constants.StageJobCardCreation: {constants.StageReadyForWashing},
}

// ActiveStage is a stage currently open inside a visit.
type ActiveStage struct {
	StageName   string     `json:"stageName"`
	Role        string     `json:"role"`
	PerformedBy string     `json:"performedBy"`
	Since       time.Time  `json:"since"`
	DurationMs  int64      `json:"durationMs"`
	Paused      bool       `json:"paused"`
	PausedAt    *time.Time `json:"pausedAt,omitempty"`
}

// WorkSession is one Start..End span of a stage, with pause spans subtracted.
type WorkSession struct {
	StageName string     `json:"stageName"`
	Role      string     `json:"role"`
	StartedAt time.Time  `json:"startedAt"`
	EndedAt   *time.Time `json:"endedAt,omitempty"`
	Active    bool       `json:"active"`
	Paused    bool       `json:"paused"`
	WorkingMs int64      `json:"workingMs"`
	PausedMs  int64      `json:"pausedMs"`
}

// ActiveStages classifies the visit's event log into currently-open stages as
// of the given instant. A stage is open when its latest Start has neither a
// later End of the same name nor a later Start of one of its implicit closers.
func ActiveStages(events []vehicleModel.StageEvent, asOf time.Time) []ActiveStage {
	ordered := sortedEvents(events)
	seen := map[string]bool{}
	var active []ActiveStage

	for i := len(ordered) - 1; i >= 0; i-- {
		e := &ordered[i]
		if !isStart(e) || seen[e.StageName] {
			continue
		}
		seen[e.StageName] = true

		if e.StageName == constants.StageSecurityExit {
			continue
		}
		if anyAfter(ordered, func(x *vehicleModel.StageEvent) bool {
			return isEnd(x) && x.StageName == e.StageName
		}, e.Timestamp) {
			continue
		}
		if closedImplicitly(ordered, e) {
			continue
		}

		pauses, resumes := pauseBalance(ordered, stageNameIs(e.StageName), e.Timestamp)
		st := ActiveStage{
			StageName:   e.StageName,
			Role:        e.Role,
			PerformedBy: e.PerformedByName,
			Since:       e.Timestamp,
			DurationMs:  asOf.Sub(e.Timestamp).Milliseconds(),
			Paused:      pauses > resumes,
		}
		if st.Paused {
			if p := latestMatching(ordered, func(x *vehicleModel.StageEvent) bool {
				return isPause(x) && x.StageName == e.StageName
			}); p != nil {
				t := p.Timestamp
				st.PausedAt = &t
			}
		}
		active = append(active, st)
	}

	// Restore log order; the scan above walked the log backwards.
	for i, j := 0, len(active)-1; i < j; i, j = i+1, j-1 {
		active[i], active[j] = active[j], active[i]
	}
	return active
}

func closedImplicitly(ordered []vehicleModel.StageEvent, start *vehicleModel.StageEvent) bool {
	closers, ok := implicitClosers[start.StageName]
	if !ok {
		return false
	}
	for _, closer := range closers {
		if anyAfter(ordered, func(x *vehicleModel.StageEvent) bool {
			return isStart(x) && x.StageName == closer
		}, start.Timestamp) {
			return true
		}
	}
	return false
}

// WorkSessions pairs every Start with its matching End per stage name and
// computes working and paused time. A trailing Pause counts as paused up to
// asOf; an unmatched Start is an active session measured up to asOf.
func WorkSessions(events []vehicleModel.StageEvent, asOf time.Time) []WorkSession {
	ordered := sortedEvents(events)
	var sessions []WorkSession
	open := map[string]int{}

	for i := range ordered {
		e := &ordered[i]
		switch {
		case isStart(e):
			// A re-Start of the same name abandons the dangling session.
			open[e.StageName] = len(sessions)
			sessions = append(sessions, WorkSession{
				StageName: e.StageName,
				Role:      e.Role,
				StartedAt: e.Timestamp,
				Active:    true,
			})

		case isEnd(e):
			idx, ok := open[e.StageName]
			if !ok {
				continue
			}
			delete(open, e.StageName)
			t := e.Timestamp
			sessions[idx].EndedAt = &t
			sessions[idx].Active = false
		}
	}

	for i := range sessions {
		s := &sessions[i]
		until := asOf
		if s.EndedAt != nil {
			until = *s.EndedAt
		}
		working, paused, stillPaused := splitPauses(ordered, s.StageName, s.StartedAt, until)
		s.WorkingMs = working.Milliseconds()
		s.PausedMs = paused.Milliseconds()
		s.Paused = s.Active && stillPaused
	}
	return sessions
}

// splitPauses walks a session's Pause/Resume events and splits its span into
// working and paused time.
func splitPauses(ordered []vehicleModel.StageEvent, stageName string, from, until time.Time) (working, paused time.Duration, stillPaused bool) {
	var pausedAt *time.Time
	for i := range ordered {
		e := &ordered[i]
		if e.StageName != stageName || !e.Timestamp.After(from) || e.Timestamp.After(until) {
			continue
		}
		switch {
		case isPause(e) && pausedAt == nil:
			t := e.Timestamp
			pausedAt = &t
		case isResume(e) && pausedAt != nil:
			paused += e.Timestamp.Sub(*pausedAt)
			pausedAt = nil
		}
	}
	if pausedAt != nil {
		paused += until.Sub(*pausedAt)
		stillPaused = true
	}
	working = until.Sub(from) - paused
	if working < 0 {
		working = 0
	}
	return working, paused, stillPaused
}

// BayWorkState is the current state of one (workType, bayNumber) session key.
type BayWorkState struct {
	Status    string     `json:"status"` // notStarted, inProgress, paused, completed
	StageName string     `json:"stageName,omitempty"`
	StartedAt *time.Time `json:"startedAt,omitempty"`
	EndedAt   *time.Time `json:"endedAt,omitempty"`
}

// BayWorkStatus classifies the bay-work session identified by workType and
// bayNumber from the visit's event log.
func BayWorkStatus(events []vehicleModel.StageEvent, workType string, bayNumber int) BayWorkState {
	keyed := func(e *vehicleModel.StageEvent) bool { return sameBayKey(e, workType, bayNumber) }
	ordered := sortedEvents(events)

	lastStart := latestMatching(ordered, func(e *vehicleModel.StageEvent) bool {
		return isStart(e) && keyed(e)
	})
	if lastStart == nil {
		return BayWorkState{Status: "notStarted"}
	}

	st := BayWorkState{StageName: lastStart.StageName}
	t := lastStart.Timestamp
	st.StartedAt = &t

	if end := latestMatching(ordered, func(e *vehicleModel.StageEvent) bool {
		return isEnd(e) && keyed(e) && e.Timestamp.After(lastStart.Timestamp)
	}); end != nil {
		st.Status = "completed"
		et := end.Timestamp
		st.EndedAt = &et
		return st
	}

	pauses, resumes := pauseBalance(ordered, keyed, lastStart.Timestamp)
	if pauses > resumes {
		st.Status = "paused"
	} else {
		st.Status = "inProgress"
	}
	return st
}

// Reporting families group ordinal-suffixed stage names back together.
const (
	FamilyInteractiveBay  = "interactiveBay"
	FamilyJobCard         = "jobCard"
	FamilyAdditionalWork  = "additionalWork"
	FamilyBayWork         = "bayWork"
	FamilyPartsEstimate   = "partsEstimate"
	FamilyWashing         = "washing"
	FamilyFinalInspection = "finalInspection"
)

// FamilyOf maps a stage name to its reporting family, or "" for stages that
// carry no duration of interest (entry, exit, N-1 Calling).
func FamilyOf(stageName string) string {
	switch stageName {
	case constants.StageInteractiveBay:
		return FamilyInteractiveBay
	case constants.StageJobCardCreation:
		return FamilyJobCard
	case constants.StagePartsEstimate:
		return FamilyPartsEstimate
	case constants.StageWashing:
		return FamilyWashing
	case constants.StageFinalInspection:
		return FamilyFinalInspection
	}
	switch {
	case strings.HasPrefix(stageName, constants.StageAdditionalWork):
		return FamilyAdditionalWork
	case strings.HasPrefix(stageName, constants.StageBayWorkPrefix):
		return FamilyBayWork
	}
	return ""
}

// AverageDurations averages completed-session working time per reporting
// family across many visits, in milliseconds.
func AverageDurations(visits []vehicleModel.Visit, asOf time.Time) map[string]int64 {
	totals := map[string]int64{}
	counts := map[string]int64{}

	for i := range visits {
		for _, s := range WorkSessions(visits[i].Stages, asOf) {
			if s.Active {
				continue
			}
			family := FamilyOf(s.StageName)
			if family == "" {
				continue
			}
			totals[family] += s.WorkingMs
			counts[family]++
		}
	}

	avg := make(map[string]int64, len(totals))
	for family, total := range totals {
		avg[family] = total / counts[family]
	}
	return avg
}
