package stageflow

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

// Kind identifies which business rule rejected a vehicle-check request.
type Kind string

const (
	KindValidation      Kind = "ValidationError"
	KindRoleMismatch    Kind = "RoleMismatch"
	KindNoActiveVisit   Kind = "NoActiveVisit"
	KindDuplicateStage  Kind = "DuplicateStage"
	KindAlreadyStarted  Kind = "AlreadyStarted"
	KindAlreadyEnded    Kind = "AlreadyEnded"
	KindConflictingWork Kind = "ConflictingWork"
	KindNoActiveWork    Kind = "NoActiveWork"
	KindAlreadyPaused   Kind = "AlreadyPaused"
	KindNotPaused       Kind = "NotPaused"
	KindPausedCannotEnd Kind = "PausedCannotEnd"
	KindTooSoonToEnd    Kind = "TooSoonToEnd"
	KindCooldownActive  Kind = "CooldownActive"
)

// RuleError is a rejected request. Rule errors are detected locally and never
// retried; the operator corrects the scan and resubmits.
type RuleError struct {
	Kind    Kind
	Message string
}

func (e *RuleError) Error() string {
	return e.Message
}

// HTTPStatus maps the error kind to a response status.
func (e *RuleError) HTTPStatus() int {
	if e.Kind == KindRoleMismatch {
		return fiber.StatusForbidden
	}
	return fiber.StatusBadRequest
}

func reject(kind Kind, message string) *RuleError {
	return &RuleError{Kind: kind, Message: message}
}

// AsRuleError unwraps err into a RuleError if it is one.
func AsRuleError(err error) (*RuleError, bool) {
	var re *RuleError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}

// ErrRevisionConflict is returned by the store when a concurrent write bumped
// the visit revision between read and write. The caller retries the request.
var ErrRevisionConflict = errors.New("visit was modified concurrently")
