package stageflow

import (
	"fmt"
	"strings"
	"time"

	"workshop-tracker/constants"
	vehicleModel "workshop-tracker/models/vehicle"
)

const (
	// MinDwell is the minimum time a timed stage must stay open before it
	// may be ended.
	MinDwell = 10 * time.Minute

	// BayAllocationCooldown blocks restarting Job Card Received + Bay
	// Allocation too quickly.
	BayAllocationCooldown = 30 * time.Minute
)

// timedStages cannot be ended within MinDwell of their open Start.
var timedStages = map[string]bool{
	constants.StageInteractiveBay:  true,
	constants.StageWashing:         true,
	constants.StageFinalInspection: true,
	constants.StagePartsEstimate:   true,
}

// outcome is what a validated request appends and reports.
type outcome struct {
	appended []vehicleModel.StageEvent
	message  string
	warning  string
}

func newEvent(stageName, role string, et vehicleModel.EventType, actor Actor, ts time.Time) vehicleModel.StageEvent {
	return vehicleModel.StageEvent{
		StageName:       stageName,
		Role:            role,
		EventType:       et,
		Timestamp:       ts,
		PerformedByID:   actor.ID,
		PerformedByName: actor.Name,
	}
}

// applyRules runs validation rules 4-9 against the visit's event log and
// returns the events to append. It never mutates the visit; persistence is
// the caller's job.
func applyRules(visit *vehicleModel.Visit, req CheckInput, actor Actor, now time.Time) (*outcome, *RuleError) {
	stageName := req.StageName
	eventType := vehicleModel.EventType(req.EventType)
	events := visit.Stages

	out := &outcome{}

	// Bay Work family: sessions are keyed by (workType, bayNumber).
	if strings.HasPrefix(stageName, constants.StageBayWorkPrefix) {
		renamed, extra, rerr := applyBayWorkRules(events, req, actor, now)
		if rerr != nil {
			return nil, rerr
		}
		if renamed != "" {
			stageName = renamed
		}
		out.appended = append(out.appended, extra...)
		// The auto-close appended above is part of this request's log view.
		events = append(append([]vehicleModel.StageEvent{}, events...), extra...)
	}

	// Job Controller stages. Their dedicated rejections run before the
	// generic duplicate guard so the operator sees the specific message.
	if req.Role == constants.RoleJobController && eventType == vehicleModel.EventStart {
		switch stageName {
		case constants.StageJobCardBayAllocation:
			last := latestMatching(events, func(e *vehicleModel.StageEvent) bool {
				return isStart(e) && strings.HasPrefix(e.StageName, constants.StageJobCardBayAllocation)
			})
			if last != nil && now.Sub(last.Timestamp) < BayAllocationCooldown {
				return nil, reject(KindCooldownActive,
					"Job Card Received + Bay Allocation cannot be restarted within 30 minutes.")
			}
			n := countStarts(events, stageNamePrefix(constants.StageJobCardBayAllocation))
			stageName = fmt.Sprintf("%s %d", constants.StageJobCardBayAllocation, n+1)

		case constants.StageJobCardByTechnician:
			if countStarts(events, stageNameIs(constants.StageJobCardByTechnician)) > 0 {
				return nil, reject(KindDuplicateStage,
					"Job card already received from Technician in this session.")
			}

		case constants.StageJobCardByFI:
			if countStarts(events, stageNameIs(constants.StageJobCardByFI)) > 0 {
				return nil, reject(KindDuplicateStage,
					"Job card already received from Final Inspector in this session.")
			}
		}
	}

	// Single-shot duplicate Start guard. Stages that repeat legitimately are
	// renamed with an ordinal suffix before or after this point, so their
	// exact names never collide here.
	if eventType == vehicleModel.EventStart {
		if open := openStart(events, stageNameIs(stageName), stageNameIs(stageName)); open != nil {
			return nil, reject(KindAlreadyStarted,
				fmt.Sprintf("%s has already been started and can only be started once.", stageName))
		}
	}

	// Service Advisor stages.
	if req.Role == constants.RoleServiceAdvisor && eventType == vehicleModel.EventStart {
		switch stageName {
		case constants.StageAdditionalWork:
			n := countStarts(events, stageNamePrefix(constants.StageAdditionalWork))
			stageName = fmt.Sprintf("%s %d", constants.StageAdditionalWork, n+1)

		case constants.StageReadyForWashing:
			hasJobCard := countStarts(events, stageNameIs(constants.StageJobCardCreation)) > 0
			if !hasJobCard {
				// Soft-fail: record the anomaly instead of stalling the
				// floor; the appended event carries the warning.
				out.warning = "Warning: You should have started Job Card Creation + Customer Approval first. Alert has been sent to admin."
			}
		}
	}

	// Minimum-dwell guard for timed stages.
	if timedStages[stageName] && eventType == vehicleModel.EventEnd {
		open := openStart(events, stageNameIs(stageName), stageNameIs(stageName))
		if open != nil && now.Sub(open.Timestamp) < MinDwell {
			return nil, reject(KindTooSoonToEnd,
				fmt.Sprintf("%s cannot be ended within 10 minutes of starting.", stageName))
		}
	}

	ev := newEvent(stageName, req.Role, eventType, actor, now)
	switch req.Role {
	case constants.RoleSecurityGuard:
		switch eventType {
		case vehicleModel.EventStart:
			vehicleModel.ApplyPayload(&ev, vehicleModel.SecurityEntryPayload{InKM: req.InKM, InDriver: req.InDriver})
		case vehicleModel.EventEnd:
			vehicleModel.ApplyPayload(&ev, vehicleModel.SecurityExitPayload{OutKM: req.OutKM, OutDriver: req.OutDriver})
		}
	case constants.RoleBayTechnician:
		vehicleModel.ApplyPayload(&ev, vehicleModel.BayWorkPayload{WorkType: req.WorkType, BayNumber: req.BayNumber})
	}
	if out.warning != "" {
		w := out.warning
		ev.Warning = &w
	}
	out.appended = append(out.appended, ev)

	if out.warning != "" {
		out.message = out.warning
	} else {
		out.message = fmt.Sprintf("%s updated successfully.", stageName)
	}
	return out, nil
}

// applyBayWorkRules validates a bay-work event and, for a Start, derives the
// ordinal-suffixed stage name and any synthetic auto-close of another open
// session. At most one other session is closed per request.
func applyBayWorkRules(events []vehicleModel.StageEvent, req CheckInput, actor Actor, now time.Time) (renamed string, extra []vehicleModel.StageEvent, rerr *RuleError) {
	if req.WorkType == nil || req.BayNumber == nil {
		return "", nil, reject(KindValidation, "Work type and bay number are required for bay work.")
	}
	workType := *req.WorkType
	bayNumber := *req.BayNumber
	eventType := vehicleModel.EventType(req.EventType)

	bayEvents := make([]vehicleModel.StageEvent, 0, len(events))
	for i := range events {
		if isBayWork(&events[i]) {
			bayEvents = append(bayEvents, events[i])
		}
	}
	keyed := func(e *vehicleModel.StageEvent) bool { return sameBayKey(e, workType, bayNumber) }

	if eventType == vehicleModel.EventStart {
		if open := openStart(bayEvents, keyed, keyed); open != nil {
			return "", nil, reject(KindConflictingWork,
				fmt.Sprintf("Please end the previous %s work in bay %d first", workType, bayNumber))
		}

		// Any other open bay-work thread is silently closed so one vehicle
		// never accrues time in two bays at once.
		anyBay := func(e *vehicleModel.StageEvent) bool { return true }
		if unfinished := openStart(bayEvents, anyBay, anyBay); unfinished != nil {
			end := newEvent(unfinished.StageName, unfinished.Role, vehicleModel.EventEnd, actor, now)
			end.WorkType = unfinished.WorkType
			end.BayNumber = unfinished.BayNumber
			end.AutoClosed = true
			extra = append(extra, end)
		}

		n := countStarts(bayEvents, keyed)
		renamed = fmt.Sprintf("%s: %s: %d", constants.StageBayWorkPrefix, workType, n+1)
		return renamed, extra, nil
	}

	// Pause / Resume / End need an open Start for the same key.
	lastStart := latestMatching(bayEvents, func(e *vehicleModel.StageEvent) bool {
		return isStart(e) && keyed(e)
	})
	if lastStart == nil {
		return "", nil, reject(KindNoActiveWork,
			fmt.Sprintf("Cannot %s - no active %s work in bay %d", strings.ToLower(req.EventType), workType, bayNumber))
	}
	if anyAfter(bayEvents, func(e *vehicleModel.StageEvent) bool { return isEnd(e) && keyed(e) }, lastStart.Timestamp) {
		return "", nil, reject(KindAlreadyEnded,
			fmt.Sprintf("Cannot %s - work has already ended", strings.ToLower(req.EventType)))
	}

	pauses, resumes := pauseBalance(bayEvents, keyed, lastStart.Timestamp)
	switch eventType {
	case vehicleModel.EventPause:
		if pauses > resumes {
			return "", nil, reject(KindAlreadyPaused, "Work is already paused")
		}
	case vehicleModel.EventResume:
		if pauses == 0 || resumes >= pauses {
			return "", nil, reject(KindNotPaused, "Work is not paused")
		}
	case vehicleModel.EventEnd:
		if pauses > resumes {
			return "", nil, reject(KindPausedCannotEnd, "Cannot end while work is paused - please resume first")
		}
	}

	// Carry the session's ordinal-suffixed name so name-grouped reporting
	// pairs this event with its Start.
	return lastStart.StageName, nil, nil
}
