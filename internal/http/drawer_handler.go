package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dynatos/pos-terminal/internal/app"
	"github.com/dynatos/pos-terminal/internal/domain"
	"github.com/dynatos/pos-terminal/internal/guard"
)

type DrawerHandler struct {
	terminal *app.Terminal
	timeout  time.Duration
}

func NewDrawerHandler(terminal *app.Terminal, timeout time.Duration) *DrawerHandler {
	return &DrawerHandler{
		terminal: terminal,
		timeout:  timeout,
	}
}

type DrawerStateDTO struct {
	State  domain.DrawerState `json:"state"`
	Drawer *domain.CashDrawer `json:"drawer,omitempty"`
	User   domain.Session     `json:"user"`
}

type OpenDrawerRequestDTO struct {
	CredentialsDTO
	OpeningAmount *decimal.Decimal `json:"opening_amount"`
}

type SummaryDTO struct {
	domain.DrawerSummary
	ExpectedCash decimal.Decimal `json:"expected_cash"`
}

func newSummaryDTO(s domain.DrawerSummary) SummaryDTO {
	return SummaryDTO{DrawerSummary: s, ExpectedCash: s.ExpectedCash()}
}

func (h *DrawerHandler) stateDTO(r *http.Request) DrawerStateDTO {
	sess, _ := guard.SessionFrom(r.Context())
	return DrawerStateDTO{
		State:  h.terminal.Lifecycle.State(),
		Drawer: h.terminal.Lifecycle.Drawer(),
		User:   sess,
	}
}

// State re-queries the backend; this is what the cashier area shows on entry.
func (h *DrawerHandler) State(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if _, err := h.terminal.RefreshDrawer(ctx); err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, h.stateDTO(r))
}

func (h *DrawerHandler) Open(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req OpenDrawerRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_opening_amount", "opening_amount must be a number")
		return
	}
	if req.OpeningAmount == nil {
		respondError(w, http.StatusBadRequest, "invalid_opening_amount", "opening_amount is required")
		return
	}

	if _, err := h.terminal.OpenDrawer(ctx, req.domain(), *req.OpeningAmount); err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, h.stateDTO(r))
}

// AuthorizeClose checks the admin credentials and returns the summary to
// display. No close request is sent here.
func (h *DrawerHandler) AuthorizeClose(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req CredentialsDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	summary, err := h.terminal.Close.Authorize(ctx, req.domain())
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, newSummaryDTO(summary))
}

func (h *DrawerHandler) ConfirmClose(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	summary, err := h.terminal.ConfirmClose(ctx)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, struct {
		DrawerStateDTO
		Summary SummaryDTO `json:"summary"`
	}{h.stateDTO(r), newSummaryDTO(summary)})
}

func (h *DrawerHandler) CancelClose(w http.ResponseWriter, r *http.Request) {
	h.terminal.Close.Cancel()
	w.WriteHeader(http.StatusNoContent)
}
