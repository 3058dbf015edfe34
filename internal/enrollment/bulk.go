package enrollment

import (
	"github.com/foxzi/hyperdrive/internal/apperr"
)

// MaxBulkItems caps the ids accepted by one bulk request
const MaxBulkItems = 500

// ItemResult is the outcome for one id of a bulk request
type ItemResult struct {
	ID      string `json:"id"`
	Success bool   `json:"success"`
	Status  Status `json:"status,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
}

// BulkResult tallies a bulk operation. Items fail independently.
type BulkResult struct {
	Action       Action       `json:"action"`
	UpdatedCount int          `json:"updatedCount"`
	FailedCount  int          `json:"failedCount"`
	Results      []ItemResult `json:"results"`
}

// ValidateBulk checks a bulk request before any item is touched
func ValidateBulk(action Action, ids []string) error {
	if !action.IsReview() {
		return apperr.Validation("bulk action must be approve, reject or request_changes")
	}
	if len(ids) == 0 {
		return apperr.Validation("ids must not be empty")
	}
	if len(ids) > MaxBulkItems {
		return apperr.Validation("at most %d ids per bulk request", MaxBulkItems)
	}
	return nil
}

// Bulk applies fn to every id, de-duplicating ids and recording a result per
// id. A failing item does not stop the rest.
func Bulk(action Action, ids []string, fn func(id string) (*Enrollment, error)) BulkResult {
	res := BulkResult{Action: action, Results: make([]ItemResult, 0, len(ids))}
	seen := make(map[string]bool, len(ids))

	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true

		e, err := fn(id)
		if err != nil {
			res.FailedCount++
			res.Results = append(res.Results, ItemResult{
				ID:    id,
				Error: apperr.PublicMessage(err),
				Code:  string(apperr.KindOf(err)),
			})
			continue
		}
		res.UpdatedCount++
		res.Results = append(res.Results, ItemResult{ID: id, Success: true, Status: e.Status})
	}
	return res
}
