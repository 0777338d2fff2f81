package models

import (
	"strings"

	dErrors "ezclaim/pkg/domain-errors"
)

// Status is the lifecycle state of a claim.
type Status string

const (
	StatusSubmitted     Status = "SUBMITTED"
	StatusApproved      Status = "APPROVED"
	StatusPaid          Status = "PAID"
	StatusFinished      Status = "FINISHED"
	StatusRejected      Status = "REJECTED"
	StatusPaymentFailed Status = "PAYMENT_FAILED"
	StatusWithdraw      Status = "WITHDRAW"
)

// Statuses lists every valid state.
var Statuses = []Status{
	StatusSubmitted,
	StatusApproved,
	StatusPaid,
	StatusFinished,
	StatusRejected,
	StatusPaymentFailed,
	StatusWithdraw,
}

// IsValid reports whether s is a defined state.
func (s Status) IsValid() bool {
	switch s {
	case StatusSubmitted, StatusApproved, StatusPaid, StatusFinished,
		StatusRejected, StatusPaymentFailed, StatusWithdraw:
		return true
	}
	return false
}

// ParseStatus accepts a state name in any case.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", dErrors.Newf(dErrors.CodeValidation, "unknown claim status %q", s)
	}
	return st, nil
}

// CallerClass is the authorization tier that gates status transitions.
type CallerClass int

const (
	// AnonymousOther may not change status at all.
	AnonymousOther CallerClass = iota
	// AnonymousWithValidPassword supplied the claim password, or the claim has none.
	AnonymousWithValidPassword
	// Privileged holds the claim write scope.
	Privileged
)

func (c CallerClass) String() string {
	switch c {
	case Privileged:
		return "privileged"
	case AnonymousWithValidPassword:
		return "anonymous_with_password"
	default:
		return "anonymous"
	}
}

type transition struct {
	from, to Status
}

var privilegedTransitions = map[transition]bool{
	{StatusSubmitted, StatusApproved}: true,
	{StatusApproved, StatusPaid}:      true,
}

var anonymousTransitions = map[transition]bool{
	{StatusSubmitted, StatusWithdraw}: true,
	{StatusPaid, StatusFinished}:      true,
}

// IsTransitionAllowed is the claim state machine. Self-transitions and
// anything not listed for the caller's class are refused.
func IsTransitionAllowed(from, to Status, class CallerClass) bool {
	if from == to || !from.IsValid() || !to.IsValid() {
		return false
	}
	switch class {
	case Privileged:
		if to == StatusRejected {
			return from != StatusFinished && from != StatusWithdraw
		}
		return privilegedTransitions[transition{from, to}]
	case AnonymousWithValidPassword:
		return anonymousTransitions[transition{from, to}]
	default:
		return false
	}
}
