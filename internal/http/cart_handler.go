package http

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/dynatos/pos-terminal/internal/catalog"
	"github.com/dynatos/pos-terminal/internal/checkout"
	"github.com/dynatos/pos-terminal/internal/domain"
	"github.com/dynatos/pos-terminal/internal/receipt"
)

type CartHandler struct {
	engine  *checkout.Engine
	catalog *catalog.Service
	timeout time.Duration
}

func NewCartHandler(engine *checkout.Engine, cat *catalog.Service, timeout time.Duration) *CartHandler {
	return &CartHandler{
		engine:  engine,
		catalog: cat,
		timeout: timeout,
	}
}

type AddItemRequestDTO struct {
	ProductID int64 `json:"product_id"`
}

type AddItemResponseDTO struct {
	Added bool          `json:"added"`
	Cart  checkout.View `json:"cart"`
}

type CustomerRequestDTO struct {
	Name     string `json:"name"`
	Document string `json:"document"`
}

type CashPaymentRequestDTO struct {
	AmountReceived *decimal.Decimal `json:"amount_received"`
}

type ElectronicPaymentRequestDTO struct {
	Confirmed bool `json:"confirmed"`
}

type CatalogItemDTO struct {
	domain.Product
	Available int `json:"available"`
}

type CatalogResponseDTO struct {
	Products   []CatalogItemDTO  `json:"products"`
	Categories []domain.Category `json:"categories"`
	LoadedAt   time.Time         `json:"loaded_at"`
}

type ReceiptResponseDTO struct {
	Receipt domain.Receipt `json:"receipt"`
	Text    string         `json:"text"`
}

// Catalog lists products with what is still available after the cart.
func (h *CartHandler) Catalog(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	snapshot, err := h.catalog.Snapshot(ctx)
	if err != nil {
		handleError(w, r, err)
		return
	}

	resp := CatalogResponseDTO{
		Products:   make([]CatalogItemDTO, 0, len(snapshot.Products)),
		Categories: snapshot.Categories,
		LoadedAt:   snapshot.LoadedAt,
	}
	for _, p := range snapshot.Products {
		resp.Products = append(resp.Products, CatalogItemDTO{Product: p, Available: h.engine.Available(p)})
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.engine.View())
}

func (h *CartHandler) ResetCart(w http.ResponseWriter, r *http.Request) {
	h.engine.Reset()
	respondJSON(w, http.StatusOK, h.engine.View())
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.ProductID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be positive")
		return
	}

	added, err := h.engine.AddProduct(ctx, req.ProductID)
	if err != nil {
		handleError(w, r, err)
		return
	}

	status := http.StatusOK
	if added {
		status = http.StatusCreated
	}
	respondJSON(w, status, AddItemResponseDTO{Added: added, Cart: h.engine.View()})
}

func (h *CartHandler) Increment(w http.ResponseWriter, r *http.Request) {
	h.adjust(w, r, h.engine.Increment)
}

func (h *CartHandler) Decrement(w http.ResponseWriter, r *http.Request) {
	h.adjust(w, r, h.engine.Decrement)
}

func (h *CartHandler) adjust(w http.ResponseWriter, r *http.Request, op func(int64) error) {
	// Get product_id from URL path
	productID, err := strconv.ParseInt(chi.URLParam(r, "product_id"), 10, 64)
	if err != nil || productID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be a positive integer")
		return
	}

	if err := op(productID); err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, h.engine.View())
}

func (h *CartHandler) SetCustomer(w http.ResponseWriter, r *http.Request) {
	var req CustomerRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if err := h.engine.SetCustomer(req.Name, req.Document); err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, h.engine.View())
}

func (h *CartHandler) ClearCustomer(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.ClearCustomer(); err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, h.engine.View())
}

func (h *CartHandler) CommitSale(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if _, err := h.engine.CommitSale(ctx); err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, h.engine.View())
}

func (h *CartHandler) CancelPayment(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.CancelPayment(); err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, h.engine.View())
}

func (h *CartHandler) PayCash(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req CashPaymentRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AmountReceived == nil {
		respondError(w, http.StatusBadRequest, "invalid_amount", "amount_received must be a number")
		return
	}

	rec, err := h.engine.PayCash(ctx, *req.AmountReceived)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondReceipt(w, http.StatusOK, rec)
}

func (h *CartHandler) PayElectronic(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req ElectronicPaymentRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	rec, err := h.engine.PayElectronic(ctx, req.Confirmed)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondReceipt(w, http.StatusOK, rec)
}

// Receipt returns the last receipt as printable text.
func (h *CartHandler) Receipt(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.engine.LastReceipt()
	if !ok {
		respondError(w, http.StatusNotFound, "no_receipt", "no receipt to show")
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if err := receipt.Render(w, rec); err != nil {
		log.Printf("[%s] failed to render receipt: %v", getRequestID(r), err)
	}
}

func (h *CartHandler) Reprint(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	rec, err := h.engine.Reprint(ctx)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondReceipt(w, http.StatusOK, rec)
}

func respondReceipt(w http.ResponseWriter, status int, rec domain.Receipt) {
	var buf bytes.Buffer
	if err := receipt.Render(&buf, rec); err != nil {
		log.Printf("failed to render receipt %s: %v", rec.SaleNumber, err)
	}
	respondJSON(w, status, ReceiptResponseDTO{Receipt: rec, Text: buf.String()})
}
