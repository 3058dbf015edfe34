package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/foxzi/hyperdrive/internal/apperr"
	"github.com/foxzi/hyperdrive/internal/enrollment"
	"github.com/foxzi/hyperdrive/internal/lifecycle"
)

// TransitionRequest is the optional body of a transition endpoint
type TransitionRequest struct {
	Note string `json:"note"`
}

// BulkRequest is the request body for POST /api/enrollments/bulk
type BulkRequest struct {
	Action string   `json:"action"`
	IDs    []string `json:"ids"`
	Note   string   `json:"note"`
}

// handleListEnrollments handles GET /api/enrollments
func (s *Server) handleListEnrollments(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r)
	if err != nil {
		s.sendAppError(w, r, err)
		return
	}

	q := lifecycle.EnrollmentQuery{
		CampaignID: strings.TrimSpace(r.URL.Query().Get("campaignId")),
		Status:     enrollment.Status(strings.TrimSpace(r.URL.Query().Get("status"))),
	}
	if q.Status != "" && !q.Status.Valid() {
		s.sendAppError(w, r, apperr.Validation("unknown enrollment status: %s", q.Status))
		return
	}

	items, meta, err := s.svc.ListEnrollments(r.Context(), actorFrom(r), q, page)
	if err != nil {
		s.sendAppError(w, r, err)
		return
	}
	sendList(s, w, items, meta)
}

// handleCreateEnrollment handles POST /api/campaigns/{id}/enrollments
func (s *Server) handleCreateEnrollment(w http.ResponseWriter, r *http.Request) {
	var req lifecycle.EnrollmentRequest
	if err := decodeBody(r, &req, false); err != nil {
		s.sendAppError(w, r, err)
		return
	}

	e, err := s.svc.CreateEnrollment(r.Context(), actorFrom(r), chi.URLParam(r, "id"), req)
	if err != nil {
		s.sendAppError(w, r, err)
		return
	}
	setETag(w, e.Version)
	s.sendJSON(w, http.StatusCreated, e)
}

// handleGetEnrollment handles GET /api/enrollments/{id}
func (s *Server) handleGetEnrollment(w http.ResponseWriter, r *http.Request) {
	e, err := s.svc.GetEnrollment(r.Context(), actorFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		s.sendAppError(w, r, err)
		return
	}
	setETag(w, e.Version)
	s.sendJSON(w, http.StatusOK, e)
}

// handleEnrollmentAction handles POST /api/enrollments/{id}/{action}
func (s *Server) handleEnrollmentAction(w http.ResponseWriter, r *http.Request) {
	action, err := enrollment.ParseAction(chi.URLParam(r, "action"))
	if err != nil {
		s.sendAppError(w, r, err)
		return
	}
	if action == enrollment.ActionExpire {
		// expiry is driven by the sweeper only
		s.sendAppError(w, r, apperr.Validation("unknown enrollment action: %s", action))
		return
	}

	ifMatch, err := parseIfMatch(r)
	if err != nil {
		s.sendAppError(w, r, err)
		return
	}
	var req TransitionRequest
	if err := decodeBody(r, &req, true); err != nil {
		s.sendAppError(w, r, err)
		return
	}

	e, err := s.svc.TransitionEnrollment(r.Context(), actorFrom(r), chi.URLParam(r, "id"), action, req.Note, ifMatch)
	if err != nil {
		s.sendAppError(w, r, err)
		return
	}
	setETag(w, e.Version)
	s.sendJSON(w, http.StatusOK, e)
}

// handleBulkReview handles POST /api/enrollments/bulk
func (s *Server) handleBulkReview(w http.ResponseWriter, r *http.Request) {
	var req BulkRequest
	if err := decodeBody(r, &req, false); err != nil {
		s.sendAppError(w, r, err)
		return
	}
	action, err := enrollment.ParseAction(req.Action)
	if err != nil {
		s.sendAppError(w, r, err)
		return
	}

	res, err := s.svc.BulkReview(r.Context(), actorFrom(r), action, req.IDs, req.Note)
	if err != nil {
		s.sendAppError(w, r, err)
		return
	}
	s.sendJSON(w, http.StatusOK, res)
}
