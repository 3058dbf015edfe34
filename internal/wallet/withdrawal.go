package wallet

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/foxzi/hyperdrive/internal/apperr"
)

// WithdrawalStatus is the state of a withdrawal request
type WithdrawalStatus string

const (
	WithdrawalPending    WithdrawalStatus = "pending"
	WithdrawalProcessing WithdrawalStatus = "processing"
	WithdrawalCompleted  WithdrawalStatus = "completed"
	WithdrawalFailed     WithdrawalStatus = "failed"
	WithdrawalCancelled  WithdrawalStatus = "cancelled"
)

// WithdrawalAction moves a withdrawal between states
type WithdrawalAction string

const (
	WithdrawalProcess  WithdrawalAction = "process"
	WithdrawalComplete WithdrawalAction = "complete"
	WithdrawalFail     WithdrawalAction = "fail"
	WithdrawalCancel   WithdrawalAction = "cancel"
)

var withdrawalRules = map[WithdrawalAction]struct {
	from WithdrawalStatus
	to   WithdrawalStatus
}{
	WithdrawalProcess:  {WithdrawalPending, WithdrawalProcessing},
	WithdrawalCancel:   {WithdrawalPending, WithdrawalCancelled},
	WithdrawalComplete: {WithdrawalProcessing, WithdrawalCompleted},
	WithdrawalFail:     {WithdrawalProcessing, WithdrawalFailed},
}

// Withdrawal is a request to pay wallet funds back to the organization
type Withdrawal struct {
	ID            string           `json:"id"`
	WalletID      string           `json:"walletId"`
	Amount        decimal.Decimal  `json:"amount"`
	Status        WithdrawalStatus `json:"status"`
	BankReference string           `json:"bankReference,omitempty"`
	FailureReason string           `json:"failureReason,omitempty"`
	RequestedBy   string           `json:"requestedBy"`
	Version       int64            `json:"version"`
	CreatedAt     time.Time        `json:"createdAt"`
	UpdatedAt     time.Time        `json:"updatedAt"`
}

// ParseWithdrawalAction validates an action name
func ParseWithdrawalAction(name string) (WithdrawalAction, error) {
	a := WithdrawalAction(name)
	if _, ok := withdrawalRules[a]; !ok {
		return "", apperr.Validation("unknown withdrawal action: %s", name)
	}
	return a, nil
}

// Transition applies action to the withdrawal
func (wd *Withdrawal) Transition(action WithdrawalAction, note string, now time.Time) error {
	r, ok := withdrawalRules[action]
	if !ok {
		return apperr.Validation("unknown withdrawal action: %s", action)
	}
	if wd.Status != r.from {
		return apperr.InvalidTransition(string(wd.Status), string(r.to))
	}
	note = strings.TrimSpace(note)
	switch action {
	case WithdrawalFail:
		if note == "" {
			return apperr.Validation("a failure reason is required")
		}
		wd.FailureReason = note
	case WithdrawalComplete:
		wd.BankReference = note
	}
	wd.Status = r.to
	wd.UpdatedAt = now
	wd.Version++
	return nil
}

// ReturnsFunds reports whether reaching this status gives the money back
func (s WithdrawalStatus) ReturnsFunds() bool {
	return s == WithdrawalFailed || s == WithdrawalCancelled
}
