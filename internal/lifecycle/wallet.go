package lifecycle

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/foxzi/hyperdrive/internal/access"
	"github.com/foxzi/hyperdrive/internal/apperr"
	"github.com/foxzi/hyperdrive/internal/storage"
	"github.com/foxzi/hyperdrive/internal/wallet"
)

func walletOwner(a access.Actor) (string, error) {
	if a.OrganizationID == "" {
		return "", apperr.Validation("actor has no organization")
	}
	return a.OrganizationID, nil
}

// GetWallet returns the actor organization's wallet, empty if never funded
func (s *Service) GetWallet(ctx context.Context, a access.Actor) (*wallet.Wallet, error) {
	if err := a.Require(access.PermRead); err != nil {
		return nil, err
	}
	holder, err := walletOwner(a)
	if err != nil {
		return nil, err
	}
	var w *wallet.Wallet
	err = s.store.View(func(tx *storage.Tx) error {
		var err error
		w, err = s.loadWallet(tx, holder, s.now())
		return err
	})
	return w, err
}

// Deposit adds funds to the actor organization's wallet
func (s *Service) Deposit(ctx context.Context, a access.Actor, amount decimal.Decimal, reference string) (*wallet.Wallet, error) {
	if err := a.Require(access.PermWalletManage); err != nil {
		return nil, err
	}
	holder, err := walletOwner(a)
	if err != nil {
		return nil, err
	}

	now := s.now()
	var w *wallet.Wallet
	err = s.store.Update(func(tx *storage.Tx) error {
		var err error
		if w, err = s.loadWallet(tx, holder, now); err != nil {
			return err
		}
		entry, err := w.Deposit(amount, strings.TrimSpace(reference), now)
		if err != nil {
			return err
		}
		return s.saveWallet(tx, w, entry)
	})
	if err != nil {
		return nil, err
	}

	s.recorder.SetWalletBalance(w.HolderID, w.AvailableBalance.InexactFloat64(), w.PendingBalance.InexactFloat64())
	s.logger.Info("wallet deposit", "holder", holder, "amount", amount.StringFixed(2), "actor", a.ID)
	return w, nil
}

// ListHolds returns one page of the active holds on the actor's wallet
func (s *Service) ListHolds(ctx context.Context, a access.Actor, p storage.Page) ([]*wallet.Hold, storage.Meta, error) {
	if err := a.Require(access.PermRead); err != nil {
		return nil, storage.Meta{}, err
	}
	holder, err := walletOwner(a)
	if err != nil {
		return nil, storage.Meta{}, err
	}
	var holds []*wallet.Hold
	err = s.store.View(func(tx *storage.Tx) error {
		var err error
		holds, err = tx.Holds(holder)
		return err
	})
	if err != nil {
		return nil, storage.Meta{}, err
	}
	items, meta := storage.Paginate(holds, s.page(p))
	return items, meta, nil
}

// Ledger returns one page of the wallet ledger, newest first
func (s *Service) Ledger(ctx context.Context, a access.Actor, p storage.Page) ([]wallet.LedgerEntry, storage.Meta, error) {
	if err := a.Require(access.PermRead); err != nil {
		return nil, storage.Meta{}, err
	}
	holder, err := walletOwner(a)
	if err != nil {
		return nil, storage.Meta{}, err
	}
	var entries []wallet.LedgerEntry
	err = s.store.View(func(tx *storage.Tx) error {
		var err error
		entries, err = tx.Ledger(holder, time.Time{})
		return err
	})
	if err != nil {
		return nil, storage.Meta{}, err
	}
	items, meta := storage.Paginate(entries, s.page(p))
	return items, meta, nil
}

// RequestWithdrawal moves amount out of available funds into a pending
// withdrawal
func (s *Service) RequestWithdrawal(ctx context.Context, a access.Actor, amount decimal.Decimal) (*wallet.Withdrawal, error) {
	if err := a.Require(access.PermWalletManage); err != nil {
		return nil, err
	}
	holder, err := walletOwner(a)
	if err != nil {
		return nil, err
	}

	now := s.now()
	wd := &wallet.Withdrawal{
		ID:          s.newID(),
		WalletID:    holder,
		Amount:      amount,
		Status:      wallet.WithdrawalPending,
		RequestedBy: a.ID,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err = s.store.Update(func(tx *storage.Tx) error {
		w, err := s.loadWallet(tx, holder, now)
		if err != nil {
			return err
		}
		entry, err := w.Withdraw(amount, wd.ID, now)
		if err != nil {
			return err
		}
		if err := tx.PutWithdrawal(wd); err != nil {
			return err
		}
		return s.saveWallet(tx, w, entry)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("withdrawal requested", "id", wd.ID, "holder", holder, "amount", amount.StringFixed(2))
	return wd, nil
}

// ListWithdrawals returns one page of the actor wallet's withdrawals
func (s *Service) ListWithdrawals(ctx context.Context, a access.Actor, p storage.Page) ([]*wallet.Withdrawal, storage.Meta, error) {
	if err := a.Require(access.PermRead); err != nil {
		return nil, storage.Meta{}, err
	}
	holder, err := walletOwner(a)
	if err != nil {
		return nil, storage.Meta{}, err
	}
	var list []*wallet.Withdrawal
	err = s.store.View(func(tx *storage.Tx) error {
		var err error
		list, err = tx.Withdrawals(holder)
		return err
	})
	if err != nil {
		return nil, storage.Meta{}, err
	}
	items, meta := storage.Paginate(list, s.page(p))
	return items, meta, nil
}

// TransitionWithdrawal advances a withdrawal. Failing or cancelling one puts
// the amount back into available funds.
func (s *Service) TransitionWithdrawal(ctx context.Context, a access.Actor, id string, action wallet.WithdrawalAction, note string) (*wallet.Withdrawal, error) {
	if err := a.Require(access.PermWalletManage); err != nil {
		s.recorder.RecordTransition("withdrawal", string(action), result(err))
		return nil, err
	}

	now := s.now()
	var wd *wallet.Withdrawal
	err := s.store.Update(func(tx *storage.Tx) error {
		var err error
		if wd, err = tx.Withdrawal(id); err != nil {
			return err
		}
		if !a.Sees(wd.WalletID) {
			return apperr.NotFound("withdrawal", id)
		}
		if err := wd.Transition(action, note, now); err != nil {
			return err
		}
		if wd.Status.ReturnsFunds() {
			w, err := tx.Wallet(wd.WalletID)
			if err != nil {
				return err
			}
			entry, err := w.ReverseWithdrawal(wd.Amount, wd.ID, now)
			if err != nil {
				return err
			}
			if err := s.saveWallet(tx, w, entry); err != nil {
				return err
			}
		}
		return tx.PutWithdrawal(wd)
	})
	s.recorder.RecordTransition("withdrawal", string(action), result(err))
	if err != nil {
		return nil, err
	}

	s.logger.Info("withdrawal transitioned", "id", wd.ID, "action", action, "status", wd.Status)
	return wd, nil
}
