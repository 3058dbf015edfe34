package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/foxzi/hyperdrive/internal/wallet"
)

// DepositRequest is the request body for POST /api/wallet/deposits
type DepositRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	Reference string          `json:"reference"`
}

// WithdrawalRequest is the request body for POST /api/wallet/withdrawals
type WithdrawalRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// handleGetWallet handles GET /api/wallet
func (s *Server) handleGetWallet(w http.ResponseWriter, r *http.Request) {
	wl, err := s.svc.GetWallet(r.Context(), actorFrom(r))
	if err != nil {
		s.sendAppError(w, r, err)
		return
	}
	s.sendJSON(w, http.StatusOK, wl)
}

// handleDeposit handles POST /api/wallet/deposits
func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req DepositRequest
	if err := decodeBody(r, &req, false); err != nil {
		s.sendAppError(w, r, err)
		return
	}

	wl, err := s.svc.Deposit(r.Context(), actorFrom(r), req.Amount, req.Reference)
	if err != nil {
		s.sendAppError(w, r, err)
		return
	}
	s.sendJSON(w, http.StatusCreated, wl)
}

// handleListHolds handles GET /api/wallet/holds
func (s *Server) handleListHolds(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r)
	if err != nil {
		s.sendAppError(w, r, err)
		return
	}
	items, meta, err := s.svc.ListHolds(r.Context(), actorFrom(r), page)
	if err != nil {
		s.sendAppError(w, r, err)
		return
	}
	sendList(s, w, items, meta)
}

// handleLedger handles GET /api/wallet/ledger
func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r)
	if err != nil {
		s.sendAppError(w, r, err)
		return
	}
	items, meta, err := s.svc.Ledger(r.Context(), actorFrom(r), page)
	if err != nil {
		s.sendAppError(w, r, err)
		return
	}
	sendList(s, w, items, meta)
}

// handleListWithdrawals handles GET /api/wallet/withdrawals
func (s *Server) handleListWithdrawals(w http.ResponseWriter, r *http.Request) {
	page, err := parsePage(r)
	if err != nil {
		s.sendAppError(w, r, err)
		return
	}
	items, meta, err := s.svc.ListWithdrawals(r.Context(), actorFrom(r), page)
	if err != nil {
		s.sendAppError(w, r, err)
		return
	}
	sendList(s, w, items, meta)
}

// handleRequestWithdrawal handles POST /api/wallet/withdrawals
func (s *Server) handleRequestWithdrawal(w http.ResponseWriter, r *http.Request) {
	var req WithdrawalRequest
	if err := decodeBody(r, &req, false); err != nil {
		s.sendAppError(w, r, err)
		return
	}

	wd, err := s.svc.RequestWithdrawal(r.Context(), actorFrom(r), req.Amount)
	if err != nil {
		s.sendAppError(w, r, err)
		return
	}
	s.sendJSON(w, http.StatusCreated, wd)
}

// handleWithdrawalAction handles POST /api/wallet/withdrawals/{id}/{action}
func (s *Server) handleWithdrawalAction(w http.ResponseWriter, r *http.Request) {
	action, err := wallet.ParseWithdrawalAction(chi.URLParam(r, "action"))
	if err != nil {
		s.sendAppError(w, r, err)
		return
	}
	var req TransitionRequest
	if err := decodeBody(r, &req, true); err != nil {
		s.sendAppError(w, r, err)
		return
	}

	wd, err := s.svc.TransitionWithdrawal(r.Context(), actorFrom(r), chi.URLParam(r, "id"), action, req.Note)
	if err != nil {
		s.sendAppError(w, r, err)
		return
	}
	s.sendJSON(w, http.StatusOK, wd)
}
