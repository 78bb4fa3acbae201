package stageflow

import (
	"sort"
	"strings"
	"time"

	"workshop-tracker/constants"
	vehicleModel "workshop-tracker/models/vehicle"
)

// The event log is the only source of truth: ordinal suffixes, open sessions
// and pause balances are always re-derived by scanning it. Events are ordered
// by timestamp with row id as the tie-breaker (insertion order).

type predicate func(e *vehicleModel.StageEvent) bool

func sortedEvents(events []vehicleModel.StageEvent) []vehicleModel.StageEvent {
	out := make([]vehicleModel.StageEvent, len(events))
	copy(out, events)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].ID < out[j].ID
		}
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

func isStart(e *vehicleModel.StageEvent) bool  { return e.EventType == vehicleModel.EventStart }
func isEnd(e *vehicleModel.StageEvent) bool    { return e.EventType == vehicleModel.EventEnd }
func isPause(e *vehicleModel.StageEvent) bool  { return e.EventType == vehicleModel.EventPause }
func isResume(e *vehicleModel.StageEvent) bool { return e.EventType == vehicleModel.EventResume }

func isBayWork(e *vehicleModel.StageEvent) bool {
	return strings.HasPrefix(e.StageName, constants.StageBayWorkPrefix)
}

// sameBayKey matches an event against a (workType, bayNumber) session key.
func sameBayKey(e *vehicleModel.StageEvent, workType string, bayNumber int) bool {
	return e.WorkType != nil && *e.WorkType == workType &&
		e.BayNumber != nil && *e.BayNumber == bayNumber
}

func countMatching(events []vehicleModel.StageEvent, pred predicate) int {
	n := 0
	for i := range events {
		if pred(&events[i]) {
			n++
		}
	}
	return n
}

// latestMatching returns the last event (in log order) satisfying pred.
func latestMatching(events []vehicleModel.StageEvent, pred predicate) *vehicleModel.StageEvent {
	ordered := sortedEvents(events)
	for i := len(ordered) - 1; i >= 0; i-- {
		if pred(&ordered[i]) {
			return &ordered[i]
		}
	}
	return nil
}

// anyAfter reports whether an event satisfying pred exists strictly after ts.
func anyAfter(events []vehicleModel.StageEvent, pred predicate, ts time.Time) bool {
	for i := range events {
		if events[i].Timestamp.After(ts) && pred(&events[i]) {
			return true
		}
	}
	return false
}

// openStart returns the latest Start satisfying startPred that has no
// strictly-later End satisfying endPred, or nil when every such Start is
// closed.
func openStart(events []vehicleModel.StageEvent, startPred, endPred predicate) *vehicleModel.StageEvent {
	ordered := sortedEvents(events)
	for i := len(ordered) - 1; i >= 0; i-- {
		e := &ordered[i]
		if !isStart(e) || !startPred(e) {
			continue
		}
		if !anyAfter(ordered, func(x *vehicleModel.StageEvent) bool { return isEnd(x) && endPred(x) }, e.Timestamp) {
			return e
		}
	}
	return nil
}

// pauseBalance counts Pause and Resume events matching pred strictly after
// since. Pause > Resume means the session is currently paused.
func pauseBalance(events []vehicleModel.StageEvent, pred predicate, since time.Time) (pauses, resumes int) {
	for i := range events {
		e := &events[i]
		if !e.Timestamp.After(since) || !pred(e) {
			continue
		}
		switch {
		case isPause(e):
			pauses++
		case isResume(e):
			resumes++
		}
	}
	return pauses, resumes
}

// starts with the exact stage name, used for single-shot and ordinal rules.
func stageNameIs(name string) predicate {
	return func(e *vehicleModel.StageEvent) bool { return e.StageName == name }
}

func stageNamePrefix(prefix string) predicate {
	return func(e *vehicleModel.StageEvent) bool { return strings.HasPrefix(e.StageName, prefix) }
}

// countStarts counts Start events satisfying pred. Ordinal suffixes are
// derived from this count, never from a stored counter.
func countStarts(events []vehicleModel.StageEvent, pred predicate) int {
	return countMatching(events, func(e *vehicleModel.StageEvent) bool { return isStart(e) && pred(e) })
}
