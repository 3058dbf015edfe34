// Package wallet models an organization's prepaid wallet: balances, funds
// held for enrollments under review, the ledger and withdrawals.
package wallet

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/foxzi/hyperdrive/internal/apperr"
)

// Wallet is the prepaid balance of one organization
type Wallet struct {
	HolderID         string          `json:"holderId"`
	Balance          decimal.Decimal `json:"balance"`
	AvailableBalance decimal.Decimal `json:"availableBalance"`
	PendingBalance   decimal.Decimal `json:"pendingBalance"`
	CreditLimit      decimal.Decimal `json:"creditLimit"`
	CreditUtilized   decimal.Decimal `json:"creditUtilized"`
	Version          int64           `json:"version"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

// Hold is money reserved for an enrollment under review
type Hold struct {
	ID           string          `json:"id"`
	WalletID     string          `json:"walletId"`
	CampaignID   string          `json:"campaignId"`
	EnrollmentID string          `json:"enrollmentId"`
	Amount       decimal.Decimal `json:"amount"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// EntryType classifies ledger entries
type EntryType string

const (
	EntryDeposit            EntryType = "deposit"
	EntryHold               EntryType = "hold"
	EntryRelease            EntryType = "release"
	EntryDebit              EntryType = "debit"
	EntryWithdrawal         EntryType = "withdrawal"
	EntryWithdrawalReversal EntryType = "withdrawal_reversal"
)

// LedgerEntry is one movement of money in a wallet
type LedgerEntry struct {
	ID           string          `json:"id"`
	WalletID     string          `json:"walletId"`
	Type         EntryType       `json:"type"`
	Amount       decimal.Decimal `json:"amount"`
	Reference    string          `json:"reference,omitempty"`
	BalanceAfter decimal.Decimal `json:"balanceAfter"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// New returns an empty wallet for holderID
func New(holderID string, creditLimit decimal.Decimal, now time.Time) *Wallet {
	return &Wallet{
		HolderID:         holderID,
		Balance:          decimal.Zero,
		AvailableBalance: decimal.Zero,
		PendingBalance:   decimal.Zero,
		CreditLimit:      creditLimit,
		CreditUtilized:   decimal.Zero,
		Version:          1,
		UpdatedAt:        now,
	}
}

// CreditHeadroom is the credit still available to draw
func (w *Wallet) CreditHeadroom() decimal.Decimal {
	room := w.CreditLimit.Sub(w.CreditUtilized)
	if room.IsNegative() {
		return decimal.Zero
	}
	return room
}

// Spendable is what can be reserved right now
func (w *Wallet) Spendable() decimal.Decimal {
	return w.AvailableBalance.Add(w.CreditHeadroom())
}

// Deposit adds funds, repaying utilized credit first
func (w *Wallet) Deposit(amount decimal.Decimal, ref string, now time.Time) (LedgerEntry, error) {
	if err := positive(amount); err != nil {
		return LedgerEntry{}, err
	}
	w.credit(amount)
	return w.entry(EntryDeposit, amount, ref, now), nil
}

// Reserve moves amount into pending, drawing on credit when available
// funds fall short
func (w *Wallet) Reserve(amount decimal.Decimal, ref string, now time.Time) (LedgerEntry, error) {
	if err := positive(amount); err != nil {
		return LedgerEntry{}, err
	}
	if amount.GreaterThan(w.Spendable()) {
		return LedgerEntry{}, apperr.Validation("insufficient wallet funds: need %s, spendable %s",
			amount.StringFixed(2), w.Spendable().StringFixed(2))
	}

	if amount.LessThanOrEqual(w.AvailableBalance) {
		w.AvailableBalance = w.AvailableBalance.Sub(amount)
	} else {
		shortfall := amount.Sub(w.AvailableBalance)
		w.AvailableBalance = decimal.Zero
		w.CreditUtilized = w.CreditUtilized.Add(shortfall)
	}
	w.PendingBalance = w.PendingBalance.Add(amount)
	return w.entry(EntryHold, amount, ref, now), nil
}

// Debit settles a hold: the held amount leaves the wallet
func (w *Wallet) Debit(amount decimal.Decimal, ref string, now time.Time) (LedgerEntry, error) {
	if err := w.takePending(amount); err != nil {
		return LedgerEntry{}, err
	}
	return w.entry(EntryDebit, amount, ref, now), nil
}

// Release returns a held amount to the wallet
func (w *Wallet) Release(amount decimal.Decimal, ref string, now time.Time) (LedgerEntry, error) {
	if err := w.takePending(amount); err != nil {
		return LedgerEntry{}, err
	}
	w.credit(amount)
	return w.entry(EntryRelease, amount, ref, now), nil
}

// Withdraw takes amount out of available funds for a payout to the holder
func (w *Wallet) Withdraw(amount decimal.Decimal, ref string, now time.Time) (LedgerEntry, error) {
	if err := positive(amount); err != nil {
		return LedgerEntry{}, err
	}
	if amount.GreaterThan(w.AvailableBalance) {
		return LedgerEntry{}, apperr.Validation("insufficient available balance for withdrawal")
	}
	w.AvailableBalance = w.AvailableBalance.Sub(amount)
	return w.entry(EntryWithdrawal, amount, ref, now), nil
}

// ReverseWithdrawal puts back the amount of a failed or cancelled withdrawal
func (w *Wallet) ReverseWithdrawal(amount decimal.Decimal, ref string, now time.Time) (LedgerEntry, error) {
	if err := positive(amount); err != nil {
		return LedgerEntry{}, err
	}
	w.AvailableBalance = w.AvailableBalance.Add(amount)
	return w.entry(EntryWithdrawalReversal, amount, ref, now), nil
}

// CheckInvariants verifies available >= 0 and pending equals the given holds
func (w *Wallet) CheckInvariants(holds []*Hold) error {
	if w.AvailableBalance.IsNegative() {
		return apperr.Validation("wallet %s has negative available balance", w.HolderID)
	}
	sum := decimal.Zero
	for _, h := range holds {
		sum = sum.Add(h.Amount)
	}
	if !sum.Equal(w.PendingBalance) {
		return apperr.Validation("wallet %s pending balance %s does not match holds %s",
			w.HolderID, w.PendingBalance, sum)
	}
	return nil
}

func (w *Wallet) takePending(amount decimal.Decimal) error {
	if err := positive(amount); err != nil {
		return err
	}
	if amount.GreaterThan(w.PendingBalance) {
		return apperr.Validation("amount %s exceeds pending balance", amount.StringFixed(2))
	}
	w.PendingBalance = w.PendingBalance.Sub(amount)
	return nil
}

// credit repays utilized credit and puts the rest in available
func (w *Wallet) credit(amount decimal.Decimal) {
	repay := decimal.Min(amount, w.CreditUtilized)
	w.CreditUtilized = w.CreditUtilized.Sub(repay)
	w.AvailableBalance = w.AvailableBalance.Add(amount.Sub(repay))
}

func (w *Wallet) entry(t EntryType, amount decimal.Decimal, ref string, now time.Time) LedgerEntry {
	w.Balance = w.AvailableBalance.Add(w.PendingBalance)
	w.UpdatedAt = now
	w.Version++
	return LedgerEntry{
		WalletID:     w.HolderID,
		Type:         t,
		Amount:       amount,
		Reference:    ref,
		BalanceAfter: w.Balance,
		CreatedAt:    now,
	}
}

func positive(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return apperr.Validation("amount must be positive")
	}
	return nil
}
