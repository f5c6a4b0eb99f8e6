package http

import (
	"context"
	"net/http"
	"time"

	"github.com/dynatos/pos-terminal/internal/app"
	"github.com/dynatos/pos-terminal/internal/catalog"
	"github.com/dynatos/pos-terminal/internal/domain"
	"github.com/dynatos/pos-terminal/internal/guard"
)

// lowStock is the threshold under which the dashboard flags a product.
const lowStock = 5

type AdminHandler struct {
	terminal *app.Terminal
	timeout  time.Duration
}

func NewAdminHandler(terminal *app.Terminal, timeout time.Duration) *AdminHandler {
	return &AdminHandler{
		terminal: terminal,
		timeout:  timeout,
	}
}

type DashboardDTO struct {
	User        domain.Session     `json:"user"`
	DrawerState domain.DrawerState `json:"drawer_state"`
	Drawer      *domain.CashDrawer `json:"drawer,omitempty"`
	Products    int                `json:"products"`
	Categories  int                `json:"categories"`
	LowStock    []domain.Product   `json:"low_stock"`
}

func (h *AdminHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	state, err := h.terminal.RefreshDrawer(ctx)
	if err != nil {
		handleError(w, r, err)
		return
	}
	snapshot, err := h.terminal.Catalog.Snapshot(ctx)
	if err != nil {
		handleError(w, r, err)
		return
	}

	sess, _ := guard.SessionFrom(r.Context())
	dto := DashboardDTO{
		User:        sess,
		DrawerState: state,
		Drawer:      h.terminal.Lifecycle.Drawer(),
		Products:    len(snapshot.Products),
		Categories:  len(snapshot.Categories),
		LowStock:    []domain.Product{},
	}
	for _, p := range snapshot.Products {
		if p.CurrentStock < lowStock {
			dto.LowStock = append(dto.LowStock, p)
		}
	}
	respondJSON(w, http.StatusOK, dto)
}

// Products lists the catalog; ?reload=true bypasses the cache.
func (h *AdminHandler) Products(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var (
		snapshot *catalog.Snapshot
		err      error
	)
	if r.URL.Query().Get("reload") == "true" {
		snapshot, err = h.terminal.Catalog.Reload(ctx)
	} else {
		snapshot, err = h.terminal.Catalog.Snapshot(ctx)
	}
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, snapshot)
}
