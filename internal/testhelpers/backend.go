// Package testhelpers runs an in-process Dynatos backend for end-to-end tests.
package testhelpers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type User struct {
	ID       int64
	Name     string
	Password string
	Role     string
}

type Product struct {
	ID         int64
	Name       string
	Price      decimal.Decimal
	Stock      int
	CategoryID int64
}

type Drawer struct {
	ID            int64
	OpeningAmount decimal.Decimal
	OpenedAt      time.Time
	Status        string
	CashTotal     decimal.Decimal
	QRTotal       decimal.Decimal
}

type Sale struct {
	ID       int64
	Number   string
	DrawerID int64
	Customer string
	Items    map[int64]int
	Total    decimal.Decimal
	Status   string
	Method   string
	Provider string
}

// Backend is a fake of the REST API the terminal consumes. It keeps state in
// memory and decrements stock when a sale is paid.
type Backend struct {
	Server *httptest.Server

	mu         sync.Mutex
	users      map[string]User
	products   map[int64]*Product
	categories map[int64]string
	drawer     *Drawer
	drawers    map[int64]*Drawer
	sales      map[int64]*Sale
	idem       map[string]int64
	nextID     int64
	calls      map[string]int
	failures   map[string]int
}

func NewBackend(t *testing.T) *Backend {
	b := &Backend{
		users:      map[string]User{},
		products:   map[int64]*Product{},
		categories: map[int64]string{},
		drawers:    map[int64]*Drawer{},
		sales:      map[int64]*Sale{},
		idem:       map[string]int64{},
		calls:      map[string]int{},
		failures:   map[string]int{},
		nextID:     1,
	}

	r := chi.NewRouter()
	b.route(r, http.MethodPost, "/auth/login", b.login)
	b.route(r, http.MethodGet, "/cash/current", b.currentDrawer)
	b.route(r, http.MethodPost, "/cash/open", b.openDrawer)
	b.route(r, http.MethodGet, "/cash/{id}/summary", b.summary)
	b.route(r, http.MethodPost, "/cash/{id}/close", b.closeDrawer)
	b.route(r, http.MethodGet, "/products", b.listProducts)
	b.route(r, http.MethodGet, "/categories", b.listCategories)
	b.route(r, http.MethodPost, "/sales", b.createSale)
	b.route(r, http.MethodPost, "/payments/cash", b.pay("CASH"))
	b.route(r, http.MethodPost, "/payments/qr", b.pay("QR"))

	b.Server = httptest.NewServer(r)
	t.Cleanup(b.Server.Close)
	return b
}

func (b *Backend) URL() string { return b.Server.URL }

func (b *Backend) AddUser(u User) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if u.ID == 0 {
		u.ID = int64(len(b.users) + 1)
	}
	b.users[u.Name] = u
}

func (b *Backend) AddProduct(p Product) {
	b.mu.Lock()
	defer b.mu.Unlock()
	cp := p
	b.products[p.ID] = &cp
	if _, ok := b.categories[p.CategoryID]; !ok && p.CategoryID != 0 {
		b.categories[p.CategoryID] = fmt.Sprintf("Category %d", p.CategoryID)
	}
}

// Fail makes every call to route ("METHOD /pattern") answer with status.
// Status 0 removes the failure.
func (b *Backend) Fail(route string, status int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if status == 0 {
		delete(b.failures, route)
		return
	}
	b.failures[route] = status
}

// Calls returns how many requests reached route ("METHOD /pattern").
func (b *Backend) Calls(route string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[route]
}

func (b *Backend) Stock(productID int64) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if p, ok := b.products[productID]; ok {
		return p.Stock
	}
	return 0
}

func (b *Backend) Sales() []Sale {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Sale, 0, len(b.sales))
	for _, s := range b.sales {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (b *Backend) OpenDrawer() *Drawer {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.drawer == nil {
		return nil
	}
	d := *b.drawer
	return &d
}

func (b *Backend) route(r chi.Router, method, pattern string, h http.HandlerFunc) {
	key := method + " " + pattern
	r.Method(method, pattern, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		b.mu.Lock()
		b.calls[key]++
		status := b.failures[key]
		b.mu.Unlock()

		if status != 0 {
			respond(w, status, map[string]string{"message": "injected failure"})
			return
		}
		if pattern != "/auth/login" && !strings.HasPrefix(req.Header.Get("Authorization"), "Bearer ") {
			respond(w, http.StatusUnauthorized, map[string]string{"message": "missing token"})
			return
		}
		h(w, req)
	}))
}

func respond(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

func (b *Backend) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"message": "invalid body"})
		return
	}

	b.mu.Lock()
	u, ok := b.users[req.Username]
	b.mu.Unlock()
	if !ok || u.Password != req.Password {
		respond(w, http.StatusUnauthorized, map[string]string{"message": "invalid credentials"})
		return
	}
	respond(w, http.StatusOK, map[string]any{
		"token": "tok-" + u.Name,
		"user":  map[string]any{"id": u.ID, "name": u.Name, "role": strings.ToLower(u.Role)},
	})
}

func drawerJSON(d *Drawer) map[string]any {
	return map[string]any{
		"id":             d.ID,
		"opening_amount": d.OpeningAmount.String(),
		"opened_at":      d.OpenedAt.Format(time.RFC3339),
		"status":         d.Status,
	}
}

func (b *Backend) currentDrawer(w http.ResponseWriter, _ *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.drawer == nil {
		respond(w, http.StatusNotFound, map[string]string{"message": "no open drawer"})
		return
	}
	respond(w, http.StatusOK, drawerJSON(b.drawer))
}

func (b *Backend) openDrawer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OpeningAmount decimal.Decimal `json:"opening_amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OpeningAmount.IsNegative() {
		respond(w, http.StatusBadRequest, map[string]string{"message": "invalid opening amount"})
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.drawer != nil {
		respond(w, http.StatusConflict, map[string]string{"message": "drawer already open"})
		return
	}
	d := &Drawer{ID: b.next(), OpeningAmount: req.OpeningAmount, OpenedAt: time.Now().UTC(), Status: "OPEN"}
	b.drawer = d
	b.drawers[d.ID] = d
	respond(w, http.StatusCreated, drawerJSON(d))
}

func (b *Backend) drawerFromPath(w http.ResponseWriter, r *http.Request) *Drawer {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respond(w, http.StatusBadRequest, map[string]string{"message": "invalid id"})
		return nil
	}
	d, ok := b.drawers[id]
	if !ok {
		respond(w, http.StatusNotFound, map[string]string{"message": "drawer not found"})
		return nil
	}
	return d
}

func (b *Backend) summary(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	d := b.drawerFromPath(w, r)
	if d == nil {
		return
	}
	sales := d.CashTotal.Add(d.QRTotal)
	respond(w, http.StatusOK, map[string]any{
		"opening_amount": d.OpeningAmount,
		"total_sales":    sales,
		"cash_total":     d.CashTotal,
		"qr_total":       d.QRTotal,
		"final_total":    d.OpeningAmount.Add(sales),
	})
}

func (b *Backend) closeDrawer(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	d := b.drawerFromPath(w, r)
	if d == nil {
		return
	}
	if d.Status != "OPEN" {
		respond(w, http.StatusConflict, map[string]string{"message": "drawer already closed"})
		return
	}
	d.Status = "CLOSED"
	if b.drawer == d {
		b.drawer = nil
	}
	respond(w, http.StatusOK, map[string]string{"status": "closed"})
}

func (b *Backend) listProducts(w http.ResponseWriter, _ *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	items := make([]map[string]any, 0, len(b.products))
	for _, p := range b.products {
		items = append(items, map[string]any{
			"id":            p.ID,
			"name":          p.Name,
			"sale_price":    p.Price,
			"current_stock": p.Stock,
			"category_id":   p.CategoryID,
		})
	}
	sort.Slice(items, func(i, j int) bool { return items[i]["id"].(int64) < items[j]["id"].(int64) })
	respond(w, http.StatusOK, map[string]any{"items": items})
}

func (b *Backend) listCategories(w http.ResponseWriter, _ *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	items := make([]map[string]any, 0, len(b.categories))
	for id, name := range b.categories {
		items = append(items, map[string]any{"id": id, "name": name})
	}
	respond(w, http.StatusOK, map[string]any{"items": items})
}

func (b *Backend) createSale(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CashDrawerID int64  `json:"cash_drawer_id"`
		CustomerName string `json:"customer_name"`
		Items        []struct {
			ProductID int64 `json:"product_id"`
			Quantity  int   `json:"quantity"`
		} `json:"items"`
		Preview bool `json:"preview"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Items) == 0 {
		respond(w, http.StatusBadRequest, map[string]string{"message": "invalid sale"})
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.drawer == nil || b.drawer.ID != req.CashDrawerID {
		respond(w, http.StatusConflict, map[string]string{"message": "drawer is not open"})
		return
	}

	key := r.Header.Get("Idempotency-Key")
	if id, ok := b.idem[key]; ok && key != "" && !req.Preview {
		respond(w, http.StatusOK, map[string]any{"sale": saleJSON(b.sales[id])})
		return
	}

	items := map[int64]int{}
	total := decimal.Zero
	for _, it := range req.Items {
		p, ok := b.products[it.ProductID]
		if !ok {
			respond(w, http.StatusNotFound, map[string]string{"message": "product not found"})
			return
		}
		items[it.ProductID] += it.Quantity
		if items[it.ProductID] > p.Stock {
			respond(w, http.StatusUnprocessableEntity, map[string]string{"message": "insufficient stock for " + p.Name})
			return
		}
		total = total.Add(p.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}

	if req.Preview {
		respond(w, http.StatusOK, map[string]any{"sale": map[string]any{"total": total}})
		return
	}

	s := &Sale{
		ID:       b.next(),
		DrawerID: req.CashDrawerID,
		Customer: req.CustomerName,
		Items:    items,
		Total:    total,
		Status:   "PENDING",
	}
	s.Number = fmt.Sprintf("F-%04d", s.ID)
	b.sales[s.ID] = s
	if key != "" {
		b.idem[key] = s.ID
	}
	respond(w, http.StatusCreated, map[string]any{"sale": saleJSON(s)})
}

func saleJSON(s *Sale) map[string]any {
	return map[string]any{
		"id":          s.ID,
		"sale_number": s.Number,
		"total":       s.Total,
		"status":      s.Status,
	}
}

func (b *Backend) pay(method string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			SaleID   int64           `json:"sale_id"`
			Amount   decimal.Decimal `json:"amount"`
			Provider string          `json:"provider"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respond(w, http.StatusBadRequest, map[string]string{"message": "invalid payment"})
			return
		}

		b.mu.Lock()
		defer b.mu.Unlock()
		s, ok := b.sales[req.SaleID]
		if !ok {
			respond(w, http.StatusNotFound, map[string]string{"message": "sale not found"})
			return
		}
		if s.Status != "PENDING" {
			respond(w, http.StatusConflict, map[string]string{"message": "sale already paid"})
			return
		}
		if req.Amount.LessThan(s.Total) {
			respond(w, http.StatusUnprocessableEntity, map[string]string{"message": "amount below total"})
			return
		}

		for id, qty := range s.Items {
			b.products[id].Stock -= qty
		}
		s.Status = "PAID"
		s.Method = method
		s.Provider = req.Provider
		if d, ok := b.drawers[s.DrawerID]; ok {
			if method == "CASH" {
				d.CashTotal = d.CashTotal.Add(s.Total)
			} else {
				d.QRTotal = d.QRTotal.Add(s.Total)
			}
		}
		respond(w, http.StatusOK, map[string]string{"status": "paid"})
	}
}

func (b *Backend) next() int64 {
	id := b.nextID
	b.nextID++
	return id
}
