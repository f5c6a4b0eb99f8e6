package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dynatos/pos-terminal/internal/app"
	"github.com/dynatos/pos-terminal/internal/checkout"
	"github.com/dynatos/pos-terminal/internal/config"
	"github.com/dynatos/pos-terminal/internal/domain"
	"github.com/dynatos/pos-terminal/internal/receipt"
	"github.com/dynatos/pos-terminal/internal/testhelpers"
)

type testEnv struct {
	backend  *testhelpers.Backend
	terminal *app.Terminal
	handler  http.Handler
}

func setupRouter(t *testing.T) *testEnv {
	t.Helper()
	backend := testhelpers.NewBackend(t)
	backend.AddUser(testhelpers.User{Name: "ana", Password: "cajera", Role: "CASHIER"})
	backend.AddUser(testhelpers.User{Name: "root", Password: "admin123", Role: "ADMIN"})
	backend.AddProduct(testhelpers.Product{ID: 1, Name: "Producto A", Price: decimal.NewFromInt(10000), Stock: 5, CategoryID: 1})

	cfg := config.Default()
	cfg.BackendURL = backend.URL()
	cfg.SessionDBPath = filepath.Join(t.TempDir(), "session.db")

	term, err := app.New(context.Background(), cfg, app.WithPrinter(receipt.NewWriterPrinter(&bytes.Buffer{})))
	require.NoError(t, err)
	t.Cleanup(func() { _ = term.Shutdown() })

	return &testEnv{backend: backend, terminal: term, handler: NewRouter(term, 5*time.Second)}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func (e *testEnv) login(t *testing.T, username, password string) LoginResponseDTO {
	t.Helper()
	w := e.do(t, http.MethodPost, "/login", map[string]string{"username": username, "password": password})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp LoginResponseDTO
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp
}

func TestHealth(t *testing.T) {
	env := setupRouter(t)

	w := env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestMetricsEndpoint(t *testing.T) {
	env := setupRouter(t)

	w := env.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestGuard_RedirectsWithoutSession(t *testing.T) {
	env := setupRouter(t)

	w := env.do(t, http.MethodGet, "/pos", nil)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))
}

func TestLogin_CashierLandsOnPosAndIsKeptOutOfAdmin(t *testing.T) {
	env := setupRouter(t)

	resp := env.login(t, "ana", "cajera")
	assert.Equal(t, "/pos", resp.Redirect)
	assert.Equal(t, domain.RoleCashier, resp.User.Role)

	w := env.do(t, http.MethodGet, "/admin", nil)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/pos", w.Header().Get("Location"))

	w = env.do(t, http.MethodGet, "/pos", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var state DrawerStateDTO
	require.NoError(t, json.NewDecoder(w.Body).Decode(&state))
	assert.Equal(t, domain.DrawerStateNone, state.State)
	assert.Equal(t, "ana", state.User.DisplayName)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	env := setupRouter(t)

	w := env.do(t, http.MethodPost, "/login", map[string]string{"username": "ana", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "invalid_credentials", decodeError(t, w).Code)

	w = env.do(t, http.MethodPost, "/login", map[string]string{"username": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdminArea(t *testing.T) {
	env := setupRouter(t)
	resp := env.login(t, "root", "admin123")
	assert.Equal(t, "/admin", resp.Redirect)

	w := env.do(t, http.MethodGet, "/admin", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var dash DashboardDTO
	require.NoError(t, json.NewDecoder(w.Body).Decode(&dash))
	assert.Equal(t, 1, dash.Products)
	assert.Equal(t, domain.DrawerStateNone, dash.DrawerState)

	w = env.do(t, http.MethodGet, "/admin/products?reload=true", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Producto A")

	// admins may also run the till
	w = env.do(t, http.MethodGet, "/pos", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestPosFlow(t *testing.T) {
	env := setupRouter(t)
	env.login(t, "ana", "cajera")

	w := env.do(t, http.MethodPost, "/pos/drawer/open", map[string]any{"username": "root", "password": "admin123", "opening_amount": "-5"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_opening_amount", decodeError(t, w).Code)

	w = env.do(t, http.MethodPost, "/pos/drawer/open", map[string]any{"username": "ana", "password": "cajera", "opening_amount": 50000})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, http.MethodPost, "/pos/drawer/open", map[string]any{"username": "root", "password": "admin123", "opening_amount": 50000})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var state DrawerStateDTO
	require.NoError(t, json.NewDecoder(w.Body).Decode(&state))
	assert.Equal(t, domain.DrawerStateOpen, state.State)

	w = env.do(t, http.MethodPost, "/pos/sale", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "empty_cart", decodeError(t, w).Code)

	for i := 0; i < 2; i++ {
		w = env.do(t, http.MethodPost, "/pos/cart/items", map[string]int64{"product_id": 1})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}
	w = env.do(t, http.MethodPost, "/pos/cart/items/1/increment", nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = env.do(t, http.MethodPost, "/pos/cart/items/1/decrement", nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = env.do(t, http.MethodPost, "/pos/cart/items/abc/decrement", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPut, "/pos/cart/customer", map[string]string{"name": "Juan", "document": "123"})
	require.Equal(t, http.StatusOK, w.Code)
	var view checkout.View
	require.NoError(t, json.NewDecoder(w.Body).Decode(&view))
	assert.Equal(t, "Juan - 123", view.Customer)

	env.terminal.Engine.WaitPreviews()
	w = env.do(t, http.MethodPost, "/pos/sale", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = env.do(t, http.MethodPost, "/pos/cart/items", map[string]int64{"product_id": 1})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = env.do(t, http.MethodPost, "/pos/sale/cash", map[string]string{"amount_received": "15000"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "insufficient_payment", decodeError(t, w).Code)
	assert.Equal(t, 0, env.backend.Calls("POST /payments/cash"))

	w = env.do(t, http.MethodPost, "/pos/sale/cash", map[string]string{"amount_received": "25000"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var paid ReceiptResponseDTO
	require.NoError(t, json.NewDecoder(w.Body).Decode(&paid))
	assert.True(t, paid.Receipt.Change.Equal(decimal.NewFromInt(5000)))
	assert.True(t, paid.Receipt.Tax.Total.Equal(decimal.NewFromInt(20000)))
	assert.Contains(t, paid.Text, "Juan - 123")

	w = env.do(t, http.MethodGet, "/pos/receipt", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "text/plain"))
	assert.Contains(t, w.Body.String(), paid.Receipt.SaleNumber)

	w = env.do(t, http.MethodGet, "/pos/catalog", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var cat CatalogResponseDTO
	require.NoError(t, json.NewDecoder(w.Body).Decode(&cat))
	require.Len(t, cat.Products, 1)
	assert.Equal(t, 3, cat.Products[0].Available)
}

func TestCloseFlowOverHTTP(t *testing.T) {
	env := setupRouter(t)
	env.login(t, "ana", "cajera")

	w := env.do(t, http.MethodPost, "/pos/drawer/close", map[string]string{"username": "root", "password": "admin123"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "no_open_drawer", decodeError(t, w).Code)

	w = env.do(t, http.MethodPost, "/pos/drawer/open", map[string]any{"username": "root", "password": "admin123", "opening_amount": "50000"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = env.do(t, http.MethodPost, "/pos/drawer/close/confirm", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "close_not_authorized", decodeError(t, w).Code)

	w = env.do(t, http.MethodPost, "/pos/drawer/close", map[string]string{"username": "root", "password": "admin123"})
	require.Equal(t, http.StatusOK, w.Code)
	var summary SummaryDTO
	require.NoError(t, json.NewDecoder(w.Body).Decode(&summary))
	assert.True(t, summary.ExpectedCash.Equal(decimal.NewFromInt(50000)))

	w = env.do(t, http.MethodDelete, "/pos/drawer/close", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, 0, env.backend.Calls("POST /cash/{id}/close"))

	w = env.do(t, http.MethodPost, "/pos/drawer/close", map[string]string{"username": "root", "password": "admin123"})
	require.Equal(t, http.StatusOK, w.Code)
	w = env.do(t, http.MethodPost, "/pos/drawer/close/confirm", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"state":"NO_DRAWER"`)
}

func TestLogoutRedirectsToLogin(t *testing.T) {
	env := setupRouter(t)
	env.login(t, "ana", "cajera")

	w := env.do(t, http.MethodPost, "/logout", nil)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))

	w = env.do(t, http.MethodGet, "/pos/cart", nil)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))
}

func TestBackendDownMapsToBadGateway(t *testing.T) {
	env := setupRouter(t)
	env.login(t, "ana", "cajera")
	env.backend.Fail("GET /cash/current", http.StatusInternalServerError)

	w := env.do(t, http.MethodGet, "/pos", nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "backend_error", decodeError(t, w).Code)
}

func TestRejectedTokenSignsOutAndRedirectsToLogin(t *testing.T) {
	env := setupRouter(t)
	env.login(t, "ana", "cajera")
	env.backend.Fail("GET /products", http.StatusUnauthorized)

	w := env.do(t, http.MethodGet, "/pos/catalog", nil)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))

	_, ok := env.terminal.Sessions.Current()
	assert.False(t, ok)
	_, ok = env.terminal.Sessions.Load(context.Background())
	assert.False(t, ok)

	w = env.do(t, http.MethodGet, "/pos/cart", nil)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))
}

func TestRejectedAdminCredentialsKeepSession(t *testing.T) {
	env := setupRouter(t)
	env.login(t, "ana", "cajera")

	w := env.do(t, http.MethodPost, "/pos/drawer/open", map[string]any{"username": "root", "password": "wrong", "opening_amount": "50000"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "invalid_admin_credentials", decodeError(t, w).Code)

	sess, ok := env.terminal.Sessions.Current()
	require.True(t, ok)
	assert.Equal(t, domain.RoleCashier, sess.Role)
}
