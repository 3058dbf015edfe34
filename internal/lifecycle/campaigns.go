package lifecycle

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/foxzi/hyperdrive/internal/access"
	"github.com/foxzi/hyperdrive/internal/apperr"
	"github.com/foxzi/hyperdrive/internal/campaign"
	"github.com/foxzi/hyperdrive/internal/pricing"
	"github.com/foxzi/hyperdrive/internal/storage"
)

// CampaignQuery filters campaign listings
type CampaignQuery struct {
	Status campaign.Status
	Search string
}

// PricingPreview shows what one enrollment at orderValue would cost and pay
type PricingPreview struct {
	OrderValue decimal.Decimal `json:"orderValue"`
	Cost       pricing.Cost    `json:"cost"`
	Payout     pricing.Payout  `json:"payout"`
}

func visibleCampaign(a access.Actor, c *campaign.Campaign) bool {
	if a.Sees(c.OrganizationID) {
		return true
	}
	return a.Role == access.RoleShopper && c.Status == campaign.StatusActive
}

func (s *Service) loadCampaign(tx *storage.Tx, a access.Actor, id string) (*campaign.Campaign, error) {
	c, err := tx.Campaign(id)
	if err != nil {
		return nil, err
	}
	if !visibleCampaign(a, c) {
		return nil, apperr.NotFound("campaign", id)
	}
	return c, nil
}

// ListCampaigns returns one page of the campaigns visible to the actor
func (s *Service) ListCampaigns(ctx context.Context, a access.Actor, q CampaignQuery, p storage.Page) ([]*campaign.Campaign, storage.Meta, error) {
	if err := a.Require(access.PermRead); err != nil {
		return nil, storage.Meta{}, err
	}

	f := storage.CampaignFilter{Search: q.Search}
	if q.Status != "" {
		if !q.Status.Valid() {
			return nil, storage.Meta{}, apperr.Validation("unknown campaign status: %s", q.Status)
		}
		f.Statuses = []campaign.Status{q.Status}
	}
	switch {
	case a.Role == access.RoleShopper:
		// shoppers browse active campaigns of every organization
		if q.Status != "" && q.Status != campaign.StatusActive {
			items, meta := storage.Paginate([]*campaign.Campaign{}, s.page(p))
			return items, meta, nil
		}
		f.Statuses = []campaign.Status{campaign.StatusActive}
	case !a.CrossOrg():
		f.OrganizationID = a.OrganizationID
	}

	all, err := s.store.ListCampaigns(f)
	if err != nil {
		return nil, storage.Meta{}, err
	}
	items, meta := storage.Paginate(all, s.page(p))
	return items, meta, nil
}

// GetCampaign returns a campaign visible to the actor
func (s *Service) GetCampaign(ctx context.Context, a access.Actor, id string) (*campaign.Campaign, error) {
	if err := a.Require(access.PermRead); err != nil {
		return nil, err
	}
	var c *campaign.Campaign
	err := s.store.View(func(tx *storage.Tx) error {
		var err error
		c, err = s.loadCampaign(tx, a, id)
		return err
	})
	return c, err
}

// CreateCampaign stores a new draft for the actor's organization
func (s *Service) CreateCampaign(ctx context.Context, a access.Actor, d campaign.Draft) (*campaign.Campaign, error) {
	if err := a.Require(access.PermCampaignWrite); err != nil {
		return nil, err
	}
	if a.OrganizationID == "" {
		return nil, apperr.Validation("actor has no organization")
	}

	c, err := campaign.New(s.newID(), a.OrganizationID, d, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.store.Update(func(tx *storage.Tx) error { return tx.PutCampaign(c) }); err != nil {
		return nil, err
	}

	s.logger.Info("campaign created", "id", c.ID, "org", c.OrganizationID, "actor", a.ID)
	return c, nil
}

// UpdateCampaign edits a draft campaign
func (s *Service) UpdateCampaign(ctx context.Context, a access.Actor, id string, d campaign.Draft, ifMatch *int64) (*campaign.Campaign, error) {
	if err := a.Require(access.PermCampaignWrite); err != nil {
		return nil, err
	}
	var c *campaign.Campaign
	err := s.store.Update(func(tx *storage.Tx) error {
		var err error
		if c, err = s.loadCampaign(tx, a, id); err != nil {
			return err
		}
		if err := checkVersion("campaign", id, ifMatch, c.Version); err != nil {
			return err
		}
		if err := c.Edit(d, s.now()); err != nil {
			return err
		}
		return tx.PutCampaign(c)
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// DeleteCampaign hard-deletes a draft
func (s *Service) DeleteCampaign(ctx context.Context, a access.Actor, id string, ifMatch *int64) error {
	if err := a.Require(access.PermCampaignDelete); err != nil {
		return err
	}
	err := s.store.Update(func(tx *storage.Tx) error {
		c, err := s.loadCampaign(tx, a, id)
		if err != nil {
			return err
		}
		if err := checkVersion("campaign", id, ifMatch, c.Version); err != nil {
			return err
		}
		if err := c.CheckDeletable(); err != nil {
			return err
		}
		return tx.DeleteCampaign(id)
	})
	if err != nil {
		return err
	}
	s.logger.Info("campaign deleted", "id", id, "actor", a.ID)
	return nil
}

func campaignPermission(action campaign.Action) access.Permission {
	switch action {
	case campaign.ActionApprove, campaign.ActionReject:
		return access.PermCampaignReview
	case campaign.ActionExpire:
		return access.PermExpire
	default:
		return access.PermCampaignTransition
	}
}

// TransitionCampaign applies action to a campaign
func (s *Service) TransitionCampaign(ctx context.Context, a access.Actor, id string, action campaign.Action, ifMatch *int64) (*campaign.Campaign, error) {
	c, err := s.transitionCampaign(a, id, action, ifMatch)
	s.recorder.RecordTransition("campaign", string(action), result(err))
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) transitionCampaign(a access.Actor, id string, action campaign.Action, ifMatch *int64) (*campaign.Campaign, error) {
	if err := a.Require(campaignPermission(action)); err != nil {
		return nil, err
	}

	var (
		c    *campaign.Campaign
		from campaign.Status
	)
	err := s.store.Update(func(tx *storage.Tx) error {
		var err error
		if c, err = s.loadCampaign(tx, a, id); err != nil {
			return err
		}
		if err := checkVersion("campaign", id, ifMatch, c.Version); err != nil {
			return err
		}
		from = c.Status
		if err := c.Transition(action, s.now()); err != nil {
			return err
		}
		return tx.PutCampaign(c)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("campaign transitioned",
		"id", c.ID,
		"action", action,
		"from", from,
		"to", c.Status,
		"actor", a.ID,
	)
	return c, nil
}

// PreviewPricing prices a hypothetical enrollment with the campaign's pricing
func (s *Service) PreviewPricing(ctx context.Context, a access.Actor, id string, orderValue decimal.Decimal) (*PricingPreview, error) {
	c, err := s.GetCampaign(ctx, a, id)
	if err != nil {
		return nil, err
	}
	cost, err := c.Pricing.Cost(orderValue)
	if err != nil {
		return nil, err
	}
	payout, err := c.Pricing.ShopperPayout(orderValue)
	if err != nil {
		return nil, err
	}
	return &PricingPreview{OrderValue: orderValue, Cost: cost, Payout: payout}, nil
}
