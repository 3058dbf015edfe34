package campaign

import (
	"github.com/foxzi/hyperdrive/internal/apperr"
)

// Status represents the lifecycle state of a campaign
type Status string

const (
	StatusDraft           Status = "draft"
	StatusPendingApproval Status = "pending_approval"
	StatusApproved        Status = "approved"
	StatusActive          Status = "active"
	StatusPaused          Status = "paused"
	StatusEnded           Status = "ended"
	StatusCompleted       Status = "completed"
	StatusArchived        Status = "archived"
	StatusCancelled       Status = "cancelled"
	StatusRejected        Status = "rejected"
	StatusExpired         Status = "expired"
)

// Action is an operation that moves a campaign between states
type Action string

const (
	ActionSubmitForApproval Action = "submit_for_approval"
	ActionApprove           Action = "approve"
	ActionReject            Action = "reject"
	ActionActivate          Action = "activate"
	ActionPause             Action = "pause"
	ActionResume            Action = "resume"
	ActionEnd               Action = "end"
	ActionComplete          Action = "complete"
	ActionArchive           Action = "archive"
	ActionCancel            Action = "cancel"
	ActionExpire            Action = "expire"
)

// StatusInfo describes how a status is presented
type StatusInfo struct {
	Status   Status `json:"status"`
	Label    string `json:"label"`
	Tone     string `json:"tone"`
	Terminal bool   `json:"terminal"`
}

// Rule is one row of the transition table
type Rule struct {
	Action Action   `json:"action"`
	From   []Status `json:"from"`
	To     Status   `json:"to"`
}

// Machine is the single definition of the campaign lifecycle. Validation and
// presentation both read from it.
var Machine = struct {
	Statuses []StatusInfo
	Rules    []Rule
}{
	Statuses: []StatusInfo{
		{StatusDraft, "Draft", "neutral", false},
		{StatusPendingApproval, "Pending approval", "warning", false},
		{StatusApproved, "Approved", "info", false},
		{StatusActive, "Active", "success", false},
		{StatusPaused, "Paused", "warning", false},
		{StatusEnded, "Ended", "neutral", false},
		{StatusCompleted, "Completed", "success", false},
		{StatusArchived, "Archived", "neutral", true},
		{StatusCancelled, "Cancelled", "error", true},
		{StatusRejected, "Rejected", "error", true},
		{StatusExpired, "Expired", "error", true},
	},
	Rules: []Rule{
		{ActionSubmitForApproval, []Status{StatusDraft}, StatusPendingApproval},
		{ActionApprove, []Status{StatusPendingApproval}, StatusApproved},
		{ActionReject, []Status{StatusPendingApproval}, StatusRejected},
		{ActionActivate, []Status{StatusApproved}, StatusActive},
		{ActionPause, []Status{StatusActive}, StatusPaused},
		{ActionResume, []Status{StatusPaused}, StatusActive},
		{ActionEnd, []Status{StatusActive, StatusPaused}, StatusEnded},
		{ActionComplete, []Status{StatusEnded}, StatusCompleted},
		{ActionArchive, []Status{StatusEnded, StatusCompleted}, StatusArchived},
		{ActionCancel, []Status{StatusDraft, StatusPendingApproval, StatusApproved, StatusPaused, StatusEnded}, StatusCancelled},
		{ActionExpire, []Status{StatusPendingApproval, StatusApproved}, StatusExpired},
	},
}

var (
	rulesByAction = make(map[Action]Rule)
	statusInfo    = make(map[Status]StatusInfo)
)

func init() {
	for _, r := range Machine.Rules {
		rulesByAction[r.Action] = r
	}
	for _, s := range Machine.Statuses {
		statusInfo[s.Status] = s
	}
}

// Valid reports whether s is a known status
func (s Status) Valid() bool {
	_, ok := statusInfo[s]
	return ok
}

// Info returns presentation details for the status
func (s Status) Info() StatusInfo {
	return statusInfo[s]
}

// ParseAction validates an action name
func ParseAction(name string) (Action, error) {
	a := Action(name)
	if _, ok := rulesByAction[a]; !ok {
		return "", apperr.Validation("unknown campaign action: %s", name)
	}
	return a, nil
}

// Next returns the status reached by applying action to from.
// Transitions outside the table fail with an invalid transition error.
func Next(from Status, action Action) (Status, error) {
	rule, ok := rulesByAction[action]
	if !ok {
		return from, apperr.Validation("unknown campaign action: %s", action)
	}
	for _, s := range rule.From {
		if s == from {
			return rule.To, nil
		}
	}
	return from, apperr.InvalidTransition(string(from), string(rule.To))
}

// CanTransition reports whether action is allowed from status
func CanTransition(from Status, action Action) bool {
	_, err := Next(from, action)
	return err == nil
}

// AllowedActions lists the actions available from a status
func AllowedActions(from Status) []Action {
	var actions []Action
	for _, r := range Machine.Rules {
		for _, s := range r.From {
			if s == from {
				actions = append(actions, r.Action)
				break
			}
		}
	}
	return actions
}
