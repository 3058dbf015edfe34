package lifecycle

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/foxzi/hyperdrive/internal/access"
	"github.com/foxzi/hyperdrive/internal/apperr"
	"github.com/foxzi/hyperdrive/internal/campaign"
	"github.com/foxzi/hyperdrive/internal/enrollment"
	"github.com/foxzi/hyperdrive/internal/storage"
	"github.com/foxzi/hyperdrive/internal/wallet"
)

// EnrollmentRequest is a shopper's order submitted against a campaign
type EnrollmentRequest struct {
	ShopperID  string          `json:"shopperId"`
	OrderID    string          `json:"orderId"`
	OrderValue decimal.Decimal `json:"orderValue"`
}

// EnrollmentQuery filters enrollment listings
type EnrollmentQuery struct {
	CampaignID string
	Status     enrollment.Status
}

func visibleEnrollment(a access.Actor, e *enrollment.Enrollment) bool {
	if a.Role == access.RoleShopper {
		return e.ShopperID == a.ID
	}
	return a.Sees(e.OrganizationID)
}

func (s *Service) loadEnrollment(tx *storage.Tx, a access.Actor, id string) (*enrollment.Enrollment, error) {
	e, err := tx.Enrollment(id)
	if err != nil {
		return nil, err
	}
	if !visibleEnrollment(a, e) {
		return nil, apperr.NotFound("enrollment", id)
	}
	return e, nil
}

// ListEnrollments returns one page of enrollments visible to the actor
func (s *Service) ListEnrollments(ctx context.Context, a access.Actor, q EnrollmentQuery, p storage.Page) ([]*enrollment.Enrollment, storage.Meta, error) {
	if err := a.Require(access.PermRead); err != nil {
		return nil, storage.Meta{}, err
	}

	f := storage.EnrollmentFilter{CampaignID: q.CampaignID}
	if q.Status != "" {
		if !q.Status.Valid() {
			return nil, storage.Meta{}, apperr.Validation("unknown enrollment status: %s", q.Status)
		}
		f.Statuses = []enrollment.Status{q.Status}
	}
	switch {
	case a.Role == access.RoleShopper:
		f.ShopperID = a.ID
	case !a.CrossOrg():
		f.OrganizationID = a.OrganizationID
	}

	all, err := s.store.ListEnrollments(f)
	if err != nil {
		return nil, storage.Meta{}, err
	}
	items, meta := storage.Paginate(all, s.page(p))
	return items, meta, nil
}

// GetEnrollment returns an enrollment visible to the actor
func (s *Service) GetEnrollment(ctx context.Context, a access.Actor, id string) (*enrollment.Enrollment, error) {
	if err := a.Require(access.PermRead); err != nil {
		return nil, err
	}
	var e *enrollment.Enrollment
	err := s.store.View(func(tx *storage.Tx) error {
		var err error
		e, err = s.loadEnrollment(tx, a, id)
		return err
	})
	return e, err
}

// CreateEnrollment enrolls a shopper in an active campaign with room left
func (s *Service) CreateEnrollment(ctx context.Context, a access.Actor, campaignID string, req EnrollmentRequest) (*enrollment.Enrollment, error) {
	if err := a.Require(access.PermEnrollmentCreate); err != nil {
		return nil, err
	}
	shopperID := req.ShopperID
	if a.Role == access.RoleShopper {
		shopperID = a.ID
	}

	orderID := strings.TrimSpace(req.OrderID)

	now := s.now()
	var e *enrollment.Enrollment
	err := s.store.Update(func(tx *storage.Tx) error {
		c, err := s.loadCampaign(tx, a, campaignID)
		if err != nil {
			return err
		}
		if err := c.CanAcceptEnrollment(now); err != nil {
			return err
		}

		existing, err := tx.Enrollments(storage.EnrollmentFilter{CampaignID: c.ID})
		if err != nil {
			return err
		}
		for _, other := range existing {
			if other.OrderID == orderID && other.Status != enrollment.StatusWithdrawn {
				return apperr.Conflict("order %s is already enrolled in campaign %s", orderID, c.ID)
			}
		}

		e, err = enrollment.New(enrollment.NewParams{
			ID:                 s.newID(),
			CampaignID:         c.ID,
			OrganizationID:     c.OrganizationID,
			ShopperID:          shopperID,
			OrderID:            orderID,
			OrderValue:         req.OrderValue,
			SubmissionDeadline: submissionDeadline(now, s.cfg.SubmissionWindow, c.EndDate),
			Actor:              a.ID,
		}, c.Pricing, now)
		if err != nil {
			return err
		}

		c.RecordEnrollment(now)
		if err := c.ValidateCounters(); err != nil {
			return err
		}
		if err := tx.PutCampaign(c); err != nil {
			return err
		}
		return tx.PutEnrollment(e)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("enrollment created",
		"id", e.ID,
		"campaign", e.CampaignID,
		"shopper", e.ShopperID,
		"total_cost", e.TotalCost.StringFixed(2),
	)
	return e, nil
}

// submissionDeadline is now+window, but never past the campaign end
func submissionDeadline(now time.Time, window time.Duration, end time.Time) time.Time {
	deadline := now.Add(window)
	if deadline.After(end) {
		return end
	}
	return deadline
}

func enrollmentPermission(action enrollment.Action) access.Permission {
	switch action {
	case enrollment.ActionSubmit, enrollment.ActionWithdraw:
		return access.PermEnrollmentSubmit
	case enrollment.ActionExpire:
		return access.PermExpire
	default:
		return access.PermEnrollmentReview
	}
}

// TransitionEnrollment applies action to an enrollment. The hold, the wallet
// and the campaign counters follow in the same transaction.
func (s *Service) TransitionEnrollment(ctx context.Context, a access.Actor, id string, action enrollment.Action, note string, ifMatch *int64) (*enrollment.Enrollment, error) {
	e, err := s.transitionEnrollment(a, id, action, note, ifMatch)
	s.recorder.RecordTransition("enrollment", string(action), result(err))
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (s *Service) transitionEnrollment(a access.Actor, id string, action enrollment.Action, note string, ifMatch *int64) (*enrollment.Enrollment, error) {
	if err := a.Require(enrollmentPermission(action)); err != nil {
		return nil, err
	}

	var (
		e    *enrollment.Enrollment
		w    *wallet.Wallet
		from enrollment.Status
	)
	now := s.now()
	err := s.store.Update(func(tx *storage.Tx) error {
		var err error
		if e, err = s.loadEnrollment(tx, a, id); err != nil {
			return err
		}
		if err := checkVersion("enrollment", id, ifMatch, e.Version); err != nil {
			return err
		}
		from = e.Status
		if err := e.Transition(action, a.ID, note, now); err != nil {
			return err
		}

		c, err := tx.Campaign(e.CampaignID)
		if err != nil {
			return err
		}
		if w, err = s.applyEffects(tx, e, from, c, now); err != nil {
			return err
		}
		if err := c.ValidateCounters(); err != nil {
			return err
		}
		if err := tx.PutCampaign(c); err != nil {
			return err
		}
		return tx.PutEnrollment(e)
	})
	if err != nil {
		return nil, err
	}

	if w != nil {
		s.recorder.SetWalletBalance(w.HolderID, w.AvailableBalance.InexactFloat64(), w.PendingBalance.InexactFloat64())
	}
	s.logger.Info("enrollment transitioned",
		"id", e.ID,
		"action", action,
		"from", from,
		"to", e.Status,
		"actor", a.ID,
	)
	return e, nil
}

// applyEffects moves money and counters for an enrollment that just went
// from -> e.Status. It returns the wallet when it changed.
func (s *Service) applyEffects(tx *storage.Tx, e *enrollment.Enrollment, from enrollment.Status, c *campaign.Campaign, now time.Time) (*wallet.Wallet, error) {
	switch e.Status {
	case enrollment.StatusAwaitingReview:
		c.RecordSubmission(now)
		return s.reserve(tx, e, now)

	case enrollment.StatusApproved:
		c.RecordApproval(e.BillAmount, now)
		return s.settle(tx, e, true, now)

	case enrollment.StatusRejected:
		c.RecordRejection(now)
		return s.settle(tx, e, false, now)

	case enrollment.StatusChangesRequested:
		c.RecordLeftReview(now)
		return s.settle(tx, e, false, now)

	case enrollment.StatusWithdrawn, enrollment.StatusExpired:
		if from == enrollment.StatusAwaitingReview {
			c.RecordLeftReview(now)
		}
		return s.settle(tx, e, false, now)
	}
	return nil, nil
}

func (s *Service) loadWallet(tx *storage.Tx, holderID string, now time.Time) (*wallet.Wallet, error) {
	w, err := tx.Wallet(holderID)
	if errors.Is(err, apperr.ErrNotFound) {
		return wallet.New(holderID, s.cfg.DefaultCreditLimit, now), nil
	}
	return w, err
}

// reserve places the hold for an enrollment entering review
func (s *Service) reserve(tx *storage.Tx, e *enrollment.Enrollment, now time.Time) (*wallet.Wallet, error) {
	// nothing to hold; settle finds no hold and leaves the wallet alone
	if e.TotalCost.IsZero() {
		return nil, nil
	}
	w, err := s.loadWallet(tx, e.OrganizationID, now)
	if err != nil {
		return nil, err
	}
	entry, err := w.Reserve(e.TotalCost, e.ID, now)
	if err != nil {
		return nil, err
	}
	hold := &wallet.Hold{
		ID:           s.newID(),
		WalletID:     w.HolderID,
		CampaignID:   e.CampaignID,
		EnrollmentID: e.ID,
		Amount:       e.TotalCost,
		CreatedAt:    now,
	}
	if err := tx.PutHold(hold); err != nil {
		return nil, err
	}
	return w, s.saveWallet(tx, w, entry)
}

// settle releases the enrollment's hold, debiting it when paid
func (s *Service) settle(tx *storage.Tx, e *enrollment.Enrollment, paid bool, now time.Time) (*wallet.Wallet, error) {
	hold, err := tx.HoldForEnrollment(e.ID)
	if err != nil || hold == nil {
		return nil, err
	}
	w, err := tx.Wallet(hold.WalletID)
	if err != nil {
		return nil, err
	}

	var entry wallet.LedgerEntry
	if paid {
		entry, err = w.Debit(hold.Amount, e.ID, now)
	} else {
		entry, err = w.Release(hold.Amount, e.ID, now)
	}
	if err != nil {
		return nil, err
	}
	if err := tx.DeleteHold(hold); err != nil {
		return nil, err
	}
	return w, s.saveWallet(tx, w, entry)
}

func (s *Service) saveWallet(tx *storage.Tx, w *wallet.Wallet, entry wallet.LedgerEntry) error {
	entry.ID = s.newID()
	if err := tx.AppendLedger(entry); err != nil {
		return err
	}
	return tx.PutWallet(w)
}

// BulkReview applies a review action to many enrollments. Each id runs in its
// own transaction and fails independently.
func (s *Service) BulkReview(ctx context.Context, a access.Actor, action enrollment.Action, ids []string, note string) (*enrollment.BulkResult, error) {
	if err := a.Require(access.PermEnrollmentReview); err != nil {
		return nil, err
	}
	if err := enrollment.ValidateBulk(action, ids); err != nil {
		return nil, err
	}

	res := enrollment.Bulk(action, ids, func(id string) (*enrollment.Enrollment, error) {
		if err := ctx.Err(); err != nil {
			return nil, apperr.Internal(err)
		}
		return s.TransitionEnrollment(ctx, a, id, action, note, nil)
	})
	s.recorder.RecordBulk(string(action), res.UpdatedCount, res.FailedCount)

	s.logger.Info("bulk review finished",
		"action", action,
		"updated", res.UpdatedCount,
		"failed", res.FailedCount,
		"actor", a.ID,
	)
	return &res, nil
}
