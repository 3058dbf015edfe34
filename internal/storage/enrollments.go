package storage

import (
	"fmt"
	"sort"
	"time"

	"github.com/foxzi/hyperdrive/internal/apperr"
	"github.com/foxzi/hyperdrive/internal/enrollment"
)

// EnrollmentFilter narrows an enrollment listing
type EnrollmentFilter struct {
	OrganizationID string
	CampaignID     string
	ShopperID      string
	Statuses       []enrollment.Status
	// DeadlineBefore keeps enrollments whose submission deadline is before it
	DeadlineBefore time.Time
}

func (f EnrollmentFilter) match(e *enrollment.Enrollment) bool {
	if f.OrganizationID != "" && e.OrganizationID != f.OrganizationID {
		return false
	}
	if f.CampaignID != "" && e.CampaignID != f.CampaignID {
		return false
	}
	if f.ShopperID != "" && e.ShopperID != f.ShopperID {
		return false
	}
	if len(f.Statuses) > 0 {
		found := false
		for _, s := range f.Statuses {
			if e.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if !f.DeadlineBefore.IsZero() && !e.SubmissionDeadline.Before(f.DeadlineBefore) {
		return false
	}
	return true
}

// Enrollment loads an enrollment or returns NotFoundError
func (t *Tx) Enrollment(id string) (*enrollment.Enrollment, error) {
	e, err := getJSON[enrollment.Enrollment](t.tx.Bucket(bucketEnrollments), id)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, apperr.NotFound("enrollment", id)
	}
	return e, nil
}

// PutEnrollment stores e and indexes it under its campaign
func (t *Tx) PutEnrollment(e *enrollment.Enrollment) error {
	if err := putJSON(t.tx.Bucket(bucketEnrollments), e.ID, e); err != nil {
		return err
	}
	key := makeIndexKey(e.CampaignID, e.CreatedAt, e.ID)
	if err := t.tx.Bucket(bucketEnrollmentsCampaign).Put(key, []byte(e.ID)); err != nil {
		return fmt.Errorf("failed to add to campaign index: %w", err)
	}
	return nil
}

// Enrollments returns enrollments matching f, newest first. A campaign
// filter walks the campaign index instead of the whole bucket.
func (t *Tx) Enrollments(f EnrollmentFilter) ([]*enrollment.Enrollment, error) {
	out := make([]*enrollment.Enrollment, 0)

	if f.CampaignID != "" {
		b := t.tx.Bucket(bucketEnrollmentsCampaign)
		prefix := ownerPrefix(f.CampaignID)
		c := b.Cursor()
		for k, v := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = c.Next() {
			e, err := getJSON[enrollment.Enrollment](t.tx.Bucket(bucketEnrollments), string(v))
			if err != nil {
				return nil, err
			}
			if e != nil && f.match(e) {
				out = append(out, e)
			}
		}
	} else {
		err := scanJSON(t.tx.Bucket(bucketEnrollments), nil, nil, func(e *enrollment.Enrollment) bool {
			if f.match(e) {
				out = append(out, e)
			}
			return true
		})
		if err != nil {
			return nil, err
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// GetEnrollment loads a single enrollment
func (s *Store) GetEnrollment(id string) (*enrollment.Enrollment, error) {
	var e *enrollment.Enrollment
	err := s.View(func(tx *Tx) error {
		var err error
		e, err = tx.Enrollment(id)
		return err
	})
	return e, err
}

// ListEnrollments returns enrollments matching f
func (s *Store) ListEnrollments(f EnrollmentFilter) ([]*enrollment.Enrollment, error) {
	var out []*enrollment.Enrollment
	err := s.View(func(tx *Tx) error {
		var err error
		out, err = tx.Enrollments(f)
		return err
	})
	return out, err
}
