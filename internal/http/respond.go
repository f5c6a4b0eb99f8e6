package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"

	"github.com/dynatos/pos-terminal/internal/api"
	"github.com/dynatos/pos-terminal/internal/app"
	"github.com/dynatos/pos-terminal/internal/catalog"
	"github.com/dynatos/pos-terminal/internal/checkout"
	"github.com/dynatos/pos-terminal/internal/drawer"
	"github.com/dynatos/pos-terminal/internal/guard"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

var errorTable = []struct {
	err    error
	status int
	code   string
}{
	{checkout.ErrInsufficientPayment, http.StatusUnprocessableEntity, "insufficient_payment"},
	{checkout.ErrEmptyCart, http.StatusUnprocessableEntity, "empty_cart"},
	{checkout.ErrStockExceeded, http.StatusUnprocessableEntity, "stock_exceeded"},
	{checkout.ErrTransferNotConfirmed, http.StatusUnprocessableEntity, "transfer_not_confirmed"},
	{checkout.ErrInvalidCustomer, http.StatusBadRequest, "invalid_customer"},
	{checkout.ErrPaymentInProgress, http.StatusConflict, "payment_in_progress"},
	{checkout.ErrNoSale, http.StatusConflict, "no_sale"},
	{checkout.ErrNoDrawer, http.StatusConflict, "no_drawer"},
	{checkout.ErrLineNotFound, http.StatusNotFound, "line_not_found"},
	{catalog.ErrProductNotFound, http.StatusNotFound, "product_not_found"},
	{drawer.ErrInvalidOpeningAmount, http.StatusBadRequest, "invalid_opening_amount"},
	{drawer.ErrInvalidAdminCredentials, http.StatusForbidden, "invalid_admin_credentials"},
	{drawer.ErrDrawerAlreadyOpen, http.StatusConflict, "drawer_already_open"},
	{drawer.ErrNoOpenDrawer, http.StatusConflict, "no_open_drawer"},
	{drawer.ErrNotAuthorized, http.StatusConflict, "close_not_authorized"},
	{drawer.ErrStateLoading, http.StatusConflict, "drawer_loading"},
	{app.ErrUnsupportedRole, http.StatusForbidden, "unsupported_role"},
	{api.ErrUnavailable, http.StatusServiceUnavailable, "backend_unavailable"},
	{api.ErrUnauthorized, http.StatusUnauthorized, "unauthenticated"},
	{api.ErrUnexpectedShape, http.StatusBadGateway, "bad_backend_response"},
	{context.DeadlineExceeded, http.StatusGatewayTimeout, "timeout"},
}

// handleError maps terminal and backend failures to HTTP statuses. Inside the
// guarded areas a 401/403 for the operator's token redirects to login. Backend
// 4xx answers not matched above are passed through as 422 with the backend
// message; everything else from the backend is a 502.
func handleError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, api.ErrUnauthorized) && markSessionRejected(r) {
		log.Printf("[%s] %s %s: backend rejected the session token: %v", getRequestID(r), r.Method, r.URL.Path, err)
		http.Redirect(w, r, guard.LoginPath, http.StatusSeeOther)
		return
	}

	for _, e := range errorTable {
		if errors.Is(err, e.err) {
			if e.status >= 500 {
				log.Printf("[%s] %s %s: %v", getRequestID(r), r.Method, r.URL.Path, err)
			}
			respondError(w, e.status, e.code, err.Error())
			return
		}
	}

	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		if apiErr.Temporary() {
			log.Printf("[%s] %s %s: %v", getRequestID(r), r.Method, r.URL.Path, err)
			respondError(w, http.StatusBadGateway, "backend_error", apiErr.Error())
			return
		}
		respondError(w, http.StatusUnprocessableEntity, "backend_rejected", apiErr.Message)
		return
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		log.Printf("[%s] %s %s: %v", getRequestID(r), r.Method, r.URL.Path, err)
		respondError(w, http.StatusBadGateway, "backend_unreachable", "backend is unreachable")
		return
	}

	log.Printf("[%s] %s %s: %v", getRequestID(r), r.Method, r.URL.Path, err)
	respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
}
