package storage

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/foxzi/hyperdrive/internal/apperr"
	"github.com/foxzi/hyperdrive/internal/campaign"
)

// CampaignFilter narrows a campaign listing. Empty fields match everything.
type CampaignFilter struct {
	OrganizationID string
	Statuses       []campaign.Status
	Search         string
	EndingBefore   time.Time
}

func (f CampaignFilter) match(c *campaign.Campaign) bool {
	if f.OrganizationID != "" && c.OrganizationID != f.OrganizationID {
		return false
	}
	if len(f.Statuses) > 0 {
		found := false
		for _, s := range f.Statuses {
			if c.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Search != "" {
		q := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(c.Title), q) && !strings.Contains(strings.ToLower(c.ProductID), q) {
			return false
		}
	}
	if !f.EndingBefore.IsZero() && !c.EndDate.Before(f.EndingBefore) {
		return false
	}
	return true
}

// Campaign loads a campaign or returns NotFoundError
func (t *Tx) Campaign(id string) (*campaign.Campaign, error) {
	c, err := getJSON[campaign.Campaign](t.tx.Bucket(bucketCampaigns), id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, apperr.NotFound("campaign", id)
	}
	return c, nil
}

// PutCampaign stores c
func (t *Tx) PutCampaign(c *campaign.Campaign) error {
	return putJSON(t.tx.Bucket(bucketCampaigns), c.ID, c)
}

// DeleteCampaign removes a campaign
func (t *Tx) DeleteCampaign(id string) error {
	if err := t.tx.Bucket(bucketCampaigns).Delete([]byte(id)); err != nil {
		return fmt.Errorf("failed to delete campaign: %w", err)
	}
	return nil
}

// Campaigns returns every campaign matching f, newest first
func (t *Tx) Campaigns(f CampaignFilter) ([]*campaign.Campaign, error) {
	out := make([]*campaign.Campaign, 0)
	err := scanJSON(t.tx.Bucket(bucketCampaigns), nil, nil, func(c *campaign.Campaign) bool {
		if f.match(c) {
			out = append(out, c)
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// GetCampaign loads a single campaign
func (s *Store) GetCampaign(id string) (*campaign.Campaign, error) {
	var c *campaign.Campaign
	err := s.View(func(tx *Tx) error {
		var err error
		c, err = tx.Campaign(id)
		return err
	})
	return c, err
}

// ListCampaigns returns campaigns matching f
func (s *Store) ListCampaigns(f CampaignFilter) ([]*campaign.Campaign, error) {
	var out []*campaign.Campaign
	err := s.View(func(tx *Tx) error {
		var err error
		out, err = tx.Campaigns(f)
		return err
	})
	return out, err
}

// TransitionCampaign loads, mutates and saves a campaign in one write
// transaction. Nothing is saved when fn fails.
func (s *Store) TransitionCampaign(id string, fn func(*campaign.Campaign) error) (*campaign.Campaign, error) {
	var c *campaign.Campaign
	err := s.Update(func(tx *Tx) error {
		var err error
		if c, err = tx.Campaign(id); err != nil {
			return err
		}
		if err := fn(c); err != nil {
			return err
		}
		return tx.PutCampaign(c)
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}
