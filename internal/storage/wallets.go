package storage

import (
	"fmt"
	"sort"
	"time"

	"github.com/foxzi/hyperdrive/internal/apperr"
	"github.com/foxzi/hyperdrive/internal/wallet"
)

// Wallet loads the wallet of holderID or returns NotFoundError
func (t *Tx) Wallet(holderID string) (*wallet.Wallet, error) {
	w, err := getJSON[wallet.Wallet](t.tx.Bucket(bucketWallets), holderID)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, apperr.NotFound("wallet", holderID)
	}
	return w, nil
}

// PutWallet stores w
func (t *Tx) PutWallet(w *wallet.Wallet) error {
	return putJSON(t.tx.Bucket(bucketWallets), w.HolderID, w)
}

// Wallets returns every wallet ordered by holder
func (t *Tx) Wallets() ([]*wallet.Wallet, error) {
	out := make([]*wallet.Wallet, 0)
	err := scanJSON(t.tx.Bucket(bucketWallets), nil, nil, func(w *wallet.Wallet) bool {
		out = append(out, w)
		return true
	})
	return out, err
}

// HoldForEnrollment returns the active hold of an enrollment, or nil
func (t *Tx) HoldForEnrollment(enrollmentID string) (*wallet.Hold, error) {
	id := t.tx.Bucket(bucketHoldsEnrollment).Get([]byte(enrollmentID))
	if id == nil {
		return nil, nil
	}
	return getJSON[wallet.Hold](t.tx.Bucket(bucketHolds), string(id))
}

// PutHold stores h. An enrollment can carry at most one active hold.
func (t *Tx) PutHold(h *wallet.Hold) error {
	idx := t.tx.Bucket(bucketHoldsEnrollment)
	if existing := idx.Get([]byte(h.EnrollmentID)); existing != nil && string(existing) != h.ID {
		return apperr.Conflict("enrollment %s already has an active hold", h.EnrollmentID)
	}
	if err := putJSON(t.tx.Bucket(bucketHolds), h.ID, h); err != nil {
		return err
	}
	if err := idx.Put([]byte(h.EnrollmentID), []byte(h.ID)); err != nil {
		return fmt.Errorf("failed to index hold: %w", err)
	}
	return nil
}

// DeleteHold removes a hold and its enrollment index entry
func (t *Tx) DeleteHold(h *wallet.Hold) error {
	if err := t.tx.Bucket(bucketHolds).Delete([]byte(h.ID)); err != nil {
		return fmt.Errorf("failed to delete hold: %w", err)
	}
	if err := t.tx.Bucket(bucketHoldsEnrollment).Delete([]byte(h.EnrollmentID)); err != nil {
		return fmt.Errorf("failed to delete hold index: %w", err)
	}
	return nil
}

// Holds returns the active holds of a wallet, oldest first
func (t *Tx) Holds(walletID string) ([]*wallet.Hold, error) {
	out := make([]*wallet.Hold, 0)
	err := scanJSON(t.tx.Bucket(bucketHolds), nil, nil, func(h *wallet.Hold) bool {
		if h.WalletID == walletID {
			out = append(out, h)
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// AppendLedger records a ledger entry. Entries are keyed by wallet and time.
func (t *Tx) AppendLedger(e wallet.LedgerEntry) error {
	key := makeIndexKey(e.WalletID, e.CreatedAt, e.ID)
	return putJSON(t.tx.Bucket(bucketLedger), string(key), e)
}

// Ledger returns the entries of a wallet created at or after since, newest first
func (t *Tx) Ledger(walletID string, since time.Time) ([]wallet.LedgerEntry, error) {
	b := t.tx.Bucket(bucketLedger)
	prefix := ownerPrefix(walletID)
	start := prefix
	if !since.IsZero() {
		start = makeIndexKey(walletID, since, "")
	}

	out := make([]wallet.LedgerEntry, 0)
	err := scanJSON(b, start, prefix, func(e *wallet.LedgerEntry) bool {
		out = append(out, *e)
		return true
	})
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// Withdrawal loads a withdrawal or returns NotFoundError
func (t *Tx) Withdrawal(id string) (*wallet.Withdrawal, error) {
	wd, err := getJSON[wallet.Withdrawal](t.tx.Bucket(bucketWithdrawals), id)
	if err != nil {
		return nil, err
	}
	if wd == nil {
		return nil, apperr.NotFound("withdrawal", id)
	}
	return wd, nil
}

// PutWithdrawal stores wd
func (t *Tx) PutWithdrawal(wd *wallet.Withdrawal) error {
	return putJSON(t.tx.Bucket(bucketWithdrawals), wd.ID, wd)
}

// Withdrawals returns the withdrawals of a wallet, newest first
func (t *Tx) Withdrawals(walletID string) ([]*wallet.Withdrawal, error) {
	out := make([]*wallet.Withdrawal, 0)
	err := scanJSON(t.tx.Bucket(bucketWithdrawals), nil, nil, func(wd *wallet.Withdrawal) bool {
		if wd.WalletID == walletID {
			out = append(out, wd)
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}
