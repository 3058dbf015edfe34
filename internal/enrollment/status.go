package enrollment

import (
	"github.com/foxzi/hyperdrive/internal/apperr"
)

// Status represents the state of a shopper enrollment
type Status string

const (
	StatusAwaitingSubmission Status = "awaiting_submission"
	StatusAwaitingReview     Status = "awaiting_review"
	StatusApproved           Status = "approved"
	StatusRejected           Status = "rejected"
	StatusChangesRequested   Status = "changes_requested"
	StatusExpired            Status = "expired"
	StatusWithdrawn          Status = "withdrawn"
)

// Statuses lists every status in display order
var Statuses = []Status{
	StatusAwaitingSubmission,
	StatusAwaitingReview,
	StatusApproved,
	StatusRejected,
	StatusChangesRequested,
	StatusExpired,
	StatusWithdrawn,
}

// Action moves an enrollment between states
type Action string

const (
	ActionSubmit         Action = "submit"
	ActionApprove        Action = "approve"
	ActionReject         Action = "reject"
	ActionRequestChanges Action = "request_changes"
	ActionExpire         Action = "expire"
	ActionWithdraw       Action = "withdraw"
)

type rule struct {
	from []Status
	to   Status
}

var rules = map[Action]rule{
	ActionSubmit:         {[]Status{StatusAwaitingSubmission, StatusChangesRequested}, StatusAwaitingReview},
	ActionApprove:        {[]Status{StatusAwaitingReview}, StatusApproved},
	ActionReject:         {[]Status{StatusAwaitingReview}, StatusRejected},
	ActionRequestChanges: {[]Status{StatusAwaitingReview}, StatusChangesRequested},
	ActionExpire:         {[]Status{StatusAwaitingSubmission, StatusChangesRequested}, StatusExpired},
	ActionWithdraw:       {[]Status{StatusAwaitingSubmission, StatusChangesRequested, StatusAwaitingReview}, StatusWithdrawn},
}

var terminal = map[Status]bool{
	StatusApproved:  true,
	StatusRejected:  true,
	StatusExpired:   true,
	StatusWithdrawn: true,
}

// Valid reports whether s is a known status
func (s Status) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions are possible
func (s Status) Terminal() bool {
	return terminal[s]
}

// IsReview reports whether the action is a reviewer decision
func (a Action) IsReview() bool {
	return a == ActionApprove || a == ActionReject || a == ActionRequestChanges
}

// ParseAction validates an action name. Dashes are accepted in place of
// underscores so URL segments like request-changes resolve.
func ParseAction(name string) (Action, error) {
	a := Action(name)
	if a == "request-changes" {
		a = ActionRequestChanges
	}
	if _, ok := rules[a]; !ok {
		return "", apperr.Validation("unknown enrollment action: %s", name)
	}
	return a, nil
}

// Next returns the status reached by applying action to from
func Next(from Status, action Action) (Status, error) {
	r, ok := rules[action]
	if !ok {
		return from, apperr.Validation("unknown enrollment action: %s", action)
	}
	for _, s := range r.from {
		if s == from {
			return r.to, nil
		}
	}
	return from, apperr.InvalidTransition(string(from), string(r.to))
}
