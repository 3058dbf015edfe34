package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/foxzi/hyperdrive/internal/access"
	"github.com/foxzi/hyperdrive/internal/apperr"
	"github.com/foxzi/hyperdrive/internal/campaign"
	"github.com/foxzi/hyperdrive/internal/enrollment"
	"github.com/foxzi/hyperdrive/internal/storage"
)

// ErrorResponse is the error response
type ErrorResponse struct {
	Error      string `json:"error"`
	StatusCode int    `json:"statusCode"`
}

// ListResponse wraps one page of a collection
type ListResponse[T any] struct {
	Data []T          `json:"data"`
	Meta storage.Meta `json:"meta"`
}

// HealthResponse is the response for GET /health
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
}

// StatusesResponse is the response for GET /api/meta/statuses
type StatusesResponse struct {
	Campaign   CampaignMeta   `json:"campaign"`
	Enrollment EnrollmentMeta `json:"enrollment"`
}

// CampaignMeta lists campaign statuses and the transition table
type CampaignMeta struct {
	Statuses    []campaign.StatusInfo `json:"statuses"`
	Transitions []campaign.Rule       `json:"transitions"`
}

// EnrollmentMeta lists enrollment statuses
type EnrollmentMeta struct {
	Statuses []enrollment.Status `json:"statuses"`
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Version: s.version,
		Uptime:  time.Since(s.startTime).Round(time.Second).String(),
	})
}

// handleStatuses handles GET /api/meta/statuses
func (s *Server) handleStatuses(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, http.StatusOK, StatusesResponse{
		Campaign: CampaignMeta{
			Statuses:    campaign.Machine.Statuses,
			Transitions: campaign.Machine.Rules,
		},
		Enrollment: EnrollmentMeta{Statuses: enrollment.Statuses},
	})
}

// handleDashboard handles GET /api/dashboard/stats
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	days, err := queryInt(r, "endingSoonDays")
	if err != nil {
		s.sendAppError(w, r, err)
		return
	}

	dash, err := s.svc.Dashboard(r.Context(), actorFrom(r), days)
	if err != nil {
		s.sendAppError(w, r, err)
		return
	}
	s.sendJSON(w, http.StatusOK, dash)
}

// sendJSON sends a JSON response
func (s *Server) sendJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// sendError sends an error response
func (s *Server) sendError(w http.ResponseWriter, status int, message string) {
	s.sendJSON(w, status, ErrorResponse{Error: message, StatusCode: status})
}

// sendAppError translates a domain error into its HTTP response
func (s *Server) sendAppError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
	}
	s.sendError(w, status, apperr.PublicMessage(err))
}

// sendList sends one page of a collection
func sendList[T any](s *Server, w http.ResponseWriter, items []T, meta storage.Meta) {
	if items == nil {
		items = []T{}
	}
	s.sendJSON(w, http.StatusOK, ListResponse[T]{Data: items, Meta: meta})
}

// decodeBody decodes a JSON request body into v. An empty body leaves v
// untouched when optional is set.
func decodeBody(r *http.Request, v any, optional bool) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil {
		return nil
	}
	if optional && errors.Is(err, io.EOF) {
		return nil
	}
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return apperr.Validation("request body too large")
	}
	return apperr.Validation("Invalid request body")
}

func actorFrom(r *http.Request) access.Actor {
	a, _ := access.FromContext(r.Context())
	return a
}

// queryInt parses an optional non-negative integer query parameter
func queryInt(r *http.Request, name string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, apperr.Validation("%s must be a non-negative integer", name)
	}
	return n, nil
}

// parsePage reads page and limit query parameters
func parsePage(r *http.Request) (storage.Page, error) {
	page, err := queryInt(r, "page")
	if err != nil {
		return storage.Page{}, err
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		return storage.Page{}, err
	}
	return storage.Page{Page: page, Limit: limit}, nil
}

// parseIfMatch reads the optional If-Match version precondition.
// Accepts 3, "3" and W/"3".
func parseIfMatch(r *http.Request) (*int64, error) {
	raw := strings.TrimSpace(r.Header.Get("If-Match"))
	if raw == "" || raw == "*" {
		return nil, nil
	}
	raw = strings.TrimPrefix(raw, "W/")
	raw = strings.Trim(raw, `"`)
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		return nil, apperr.Validation("If-Match must be a version number")
	}
	return &v, nil
}

// setETag exposes the entity version for If-Match
func setETag(w http.ResponseWriter, version int64) {
	w.Header().Set("ETag", `"`+strconv.FormatInt(version, 10)+`"`)
}
