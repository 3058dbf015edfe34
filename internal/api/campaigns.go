package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/foxzi/hyperdrive/internal/apperr"
	"github.com/foxzi/hyperdrive/internal/campaign"
	"github.com/foxzi/hyperdrive/internal/lifecycle"
)

// campaignActions are the transitions reachable through
// POST /api/campaigns/{id}/{action}. Review actions live under /api/admin.
var campaignActions = map[string]campaign.Action{
	"submit":   campaign.ActionSubmitForApproval,
	"activate": campaign.ActionActivate,
	"pause":    campaign.ActionPause,
	"resume":   campaign.ActionResume,
	"end":      campaign.ActionEnd,
	"complete": campaign.ActionComplete,
	"archive":  campaign.ActionArchive,
	"cancel":   campaign.ActionCancel,
}

// handleListCampaigns handles GET /api/campaigns
func (s *Server) handleListCampaigns(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r)
	if err != nil {
		s.sendAppError(w, r, err)
		return
	}

	q := lifecycle.CampaignQuery{
		Status: campaign.Status(strings.TrimSpace(r.URL.Query().Get("status"))),
		Search: strings.TrimSpace(r.URL.Query().Get("search")),
	}
	if q.Status != "" && !q.Status.Valid() {
		s.sendAppError(w, r, apperr.Validation("unknown campaign status: %s", q.Status))
		return
	}

	items, meta, err := s.svc.ListCampaigns(r.Context(), actorFrom(r), q, page)
	if err != nil {
		s.sendAppError(w, r, err)
		return
	}
	sendList(s, w, items, meta)
}

// handleCreateCampaign handles POST /api/campaigns
func (s *Server) handleCreateCampaign(w http.ResponseWriter, r *http.Request) {
	var d campaign.Draft
	if err := decodeBody(r, &d, false); err != nil {
		s.sendAppError(w, r, err)
		return
	}

	c, err := s.svc.CreateCampaign(r.Context(), actorFrom(r), d)
	if err != nil {
		s.sendAppError(w, r, err)
		return
	}
	setETag(w, c.Version)
	s.sendJSON(w, http.StatusCreated, c)
}

// handleGetCampaign handles GET /api/campaigns/{id}
func (s *Server) handleGetCampaign(w http.ResponseWriter, r *http.Request) {
	c, err := s.svc.GetCampaign(r.Context(), actorFrom(r), chi.URLParam(r, "id"))
	if err != nil {
		s.sendAppError(w, r, err)
		return
	}
	setETag(w, c.Version)
	s.sendJSON(w, http.StatusOK, c)
}

// handleUpdateCampaign handles PATCH /api/campaigns/{id}. Fields absent from
// the body keep their stored values.
func (s *Server) handleUpdateCampaign(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	actor := actorFrom(r)

	ifMatch, err := parseIfMatch(r)
	if err != nil {
		s.sendAppError(w, r, err)
		return
	}

	current, err := s.svc.GetCampaign(r.Context(), actor, id)
	if err != nil {
		s.sendAppError(w, r, err)
		return
	}
	d := campaign.Draft{
		ProductID:      current.ProductID,
		Title:          current.Title,
		StartDate:      current.StartDate,
		EndDate:        current.EndDate,
		MaxEnrollments: current.MaxEnrollments,
		Pricing:        current.Pricing,
	}
	if err := decodeBody(r, &d, false); err != nil {
		s.sendAppError(w, r, err)
		return
	}

	c, err := s.svc.UpdateCampaign(r.Context(), actor, id, d, ifMatch)
	if err != nil {
		s.sendAppError(w, r, err)
		return
	}
	setETag(w, c.Version)
	s.sendJSON(w, http.StatusOK, c)
}

// handleDeleteCampaign handles DELETE /api/campaigns/{id}
func (s *Server) handleDeleteCampaign(w http.ResponseWriter, r *http.Request) {
	ifMatch, err := parseIfMatch(r)
	if err != nil {
		s.sendAppError(w, r, err)
		return
	}
	if err := s.svc.DeleteCampaign(r.Context(), actorFrom(r), chi.URLParam(r, "id"), ifMatch); err != nil {
		s.sendAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleCampaignAction handles POST /api/campaigns/{id}/{action}
func (s *Server) handleCampaignAction(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "action")
	action, ok := campaignActions[name]
	if !ok {
		s.sendAppError(w, r, apperr.Validation("unknown campaign action: %s", name))
		return
	}
	s.transitionCampaign(w, r, action)
}

// handleCampaignReview handles POST /api/admin/campaigns/{id}/{approve,reject}
func (s *Server) handleCampaignReview(action campaign.Action) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.transitionCampaign(w, r, action)
	}
}

func (s *Server) transitionCampaign(w http.ResponseWriter, r *http.Request, action campaign.Action) {
	ifMatch, err := parseIfMatch(r)
	if err != nil {
		s.sendAppError(w, r, err)
		return
	}

	c, err := s.svc.TransitionCampaign(r.Context(), actorFrom(r), chi.URLParam(r, "id"), action, ifMatch)
	if err != nil {
		s.sendAppError(w, r, err)
		return
	}
	setETag(w, c.Version)
	s.sendJSON(w, http.StatusOK, c)
}

// handlePricingPreview handles GET /api/campaigns/{id}/pricing/preview
func (s *Server) handlePricingPreview(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimSpace(r.URL.Query().Get("orderValue"))
	if raw == "" {
		s.sendAppError(w, r, apperr.InvalidPricingInput("orderValue is required"))
		return
	}
	orderValue, err := decimal.NewFromString(raw)
	if err != nil {
		s.sendAppError(w, r, apperr.InvalidPricingInput("orderValue must be a number"))
		return
	}

	preview, err := s.svc.PreviewPricing(r.Context(), actorFrom(r), chi.URLParam(r, "id"), orderValue)
	if err != nil {
		s.sendAppError(w, r, err)
		return
	}
	s.sendJSON(w, http.StatusOK, preview)
}
