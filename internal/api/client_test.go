package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dynatos/pos-terminal/internal/domain"
)

func setupTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient(Options{
		BaseURL: srv.URL + "/api",
		Timeout: 2 * time.Second,
		Tokens:  TokenFunc(func(context.Context) string { return "tok-123" }),
	})
}

func TestCurrentDrawer_Open(t *testing.T) {
	client := setupTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/cash/current", r.URL.Path)
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
		io.WriteString(w, `{"id": 7, "opening_amount": 50000, "opened_at": "2026-10-19T08:00:00Z", "status": "open"}`)
	})

	drawer, err := client.CurrentDrawer(context.Background())
	require.NoError(t, err)
	require.NotNil(t, drawer)
	assert.Equal(t, int64(7), drawer.ID)
	assert.True(t, drawer.OpeningAmount.Equal(decimal.NewFromInt(50000)))
	assert.Equal(t, domain.DrawerStatusOpen, drawer.Status)
	assert.Equal(t, 2026, drawer.OpenedAt.Year())
}

func TestCurrentDrawer_Empty(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"not found": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			io.WriteString(w, `{"message": "no open drawer"}`)
		},
		"no content": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		},
		"null": func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, `null`)
		},
		"empty object": func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, `{}`)
		},
	}
	for name, handler := range cases {
		t.Run(name, func(t *testing.T) {
			client := setupTestClient(t, handler)
			drawer, err := client.CurrentDrawer(context.Background())
			require.NoError(t, err)
			assert.Nil(t, drawer)
		})
	}
}

func TestCurrentDrawer_ArrayIsRejected(t *testing.T) {
	client := setupTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `[{"id": 1}]`)
	})

	_, err := client.CurrentDrawer(context.Background())
	assert.ErrorIs(t, err, ErrUnexpectedShape)
}

func TestOpenDrawer_SendsAmountAsNumber(t *testing.T) {
	client := setupTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/cash/open", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, float64(50000), body["opening_amount"])

		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"id": 9, "opening_amount": 50000, "status": "OPEN"}`)
	})

	drawer, err := client.OpenDrawer(context.Background(), decimal.NewFromInt(50000))
	require.NoError(t, err)
	assert.Equal(t, int64(9), drawer.ID)
}

func TestDrawerSummary(t *testing.T) {
	client := setupTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/cash/9/summary", r.URL.Path)
		io.WriteString(w, `{"opening_amount": 50000, "total_sales": 45000, "cash_total": 20000, "qr_total": 25000, "final_total": 95000}`)
	})

	summary, err := client.DrawerSummary(context.Background(), 9)
	require.NoError(t, err)
	assert.Equal(t, int64(9), summary.DrawerID)
	assert.True(t, summary.QRTotal.Equal(decimal.NewFromInt(25000)))
	assert.True(t, summary.FinalTotal.Equal(decimal.NewFromInt(95000)))
}

func TestProducts_ItemsEnvelope(t *testing.T) {
	client := setupTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"items": [{"id": 1, "name": "Arroz", "sale_price": 10000, "current_stock": 5, "category_id": 2, "barcode": "770"}]}`)
	})

	products, err := client.Products(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "Arroz", products[0].Name)
	assert.Equal(t, 5, products[0].CurrentStock)
	assert.True(t, products[0].SalePrice.Equal(decimal.NewFromInt(10000)))
}

func TestCategories_MissingItemsIsEmpty(t *testing.T) {
	client := setupTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"total": 0}`)
	})

	categories, err := client.Categories(context.Background())
	require.NoError(t, err)
	assert.Empty(t, categories)
	assert.NotNil(t, categories)
}

func TestProducts_BareArrayIsRejected(t *testing.T) {
	client := setupTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `[]`)
	})

	_, err := client.Products(context.Background())
	assert.ErrorIs(t, err, ErrUnexpectedShape)
}

func TestCreateSale_IdempotencyKeyAndItemsOnly(t *testing.T) {
	client := setupTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key-1", r.Header.Get("Idempotency-Key"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.NotContains(t, body, "preview")
		items := body["items"].([]any)
		require.Len(t, items, 1)
		item := items[0].(map[string]any)
		assert.Equal(t, map[string]any{"product_id": float64(1), "quantity": float64(2)}, item)

		io.WriteString(w, `{"sale": {"id": 31, "sale_number": 1001, "total": 20000, "status": "PENDING"}}`)
	})

	sale, err := client.CreateSale(context.Background(), domain.SaleRequest{
		CashDrawerID: 9,
		CustomerName: domain.GenericCustomer,
		Items:        []domain.SaleItem{{ProductID: 1, Quantity: 2}},
	}, "key-1")
	require.NoError(t, err)
	assert.Equal(t, int64(31), sale.ID)
	assert.Equal(t, "1001", sale.SaleNumber)
	assert.True(t, sale.Total.Equal(decimal.NewFromInt(20000)))
}

func TestPreviewSale_SetsPreviewFlag(t *testing.T) {
	client := setupTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body domain.SaleRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.True(t, body.Preview)
		io.WriteString(w, `{"sale": {"total": "18500.50"}}`)
	})

	total, err := client.PreviewSale(context.Background(), domain.SaleRequest{Items: []domain.SaleItem{{ProductID: 1, Quantity: 1}}})
	require.NoError(t, err)
	assert.Equal(t, "18500.5", total.String())
}

func TestPreviewSale_MissingSale(t *testing.T) {
	client := setupTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"ok": true}`)
	})

	_, err := client.PreviewSale(context.Background(), domain.SaleRequest{})
	assert.ErrorIs(t, err, ErrUnexpectedShape)
}

func TestPayments(t *testing.T) {
	var paths []string
	client := setupTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, float64(31), body["sale_id"])
		if r.URL.Path == "/api/payments/qr" {
			assert.Equal(t, "NEQUI", body["provider"])
		}
		io.WriteString(w, `{"ok": true}`)
	})

	require.NoError(t, client.PayCash(context.Background(), 31, decimal.NewFromInt(25000)))
	require.NoError(t, client.PayElectronic(context.Background(), 31, decimal.NewFromInt(20000), "NEQUI"))
	assert.Equal(t, []string{"/api/payments/cash", "/api/payments/qr"}, paths)
}

func TestLogin(t *testing.T) {
	client := setupTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var creds domain.Credentials
		require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
		if creds.Password != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			io.WriteString(w, `{"message": "invalid credentials"}`)
			return
		}
		io.WriteString(w, `{"token": "jwt", "user": {"id": 4, "name": "Ana", "role": "admin"}}`)
	})

	res, err := client.Login(context.Background(), domain.Credentials{Username: "ana", Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, "jwt", res.Token)
	assert.Equal(t, domain.RoleAdmin, res.Session.Role)
	assert.Equal(t, "Ana", res.Session.DisplayName)

	_, err = client.Login(context.Background(), domain.Credentials{Username: "ana", Password: "nope"})
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Contains(t, err.Error(), "invalid credentials")
}

func TestBreaker_OpensAfterServerErrors(t *testing.T) {
	calls := 0
	client := setupTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	})

	for i := 0; i < 5; i++ {
		_, err := client.Products(context.Background())
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrUnavailable)
	}

	_, err := client.Products(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, 5, calls)
}

func TestBreaker_IgnoresClientErrors(t *testing.T) {
	calls := 0
	client := setupTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"error": "invalid amount"}`)
	})

	for i := 0; i < 8; i++ {
		_, err := client.OpenDrawer(context.Background(), decimal.NewFromInt(-1))
		var apiErr *Error
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusBadRequest, apiErr.Status)
		assert.Equal(t, "invalid amount", apiErr.Message)
	}
	assert.Equal(t, 8, calls)
}

func TestBreaker_IgnoresCallerCancellation(t *testing.T) {
	var calls atomic.Int32
	client := setupTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 5 {
			select {
			case <-r.Context().Done():
			case <-time.After(time.Second):
			}
			return
		}
		io.WriteString(w, `{"items": []}`)
	})

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	for i := 0; i < 5; i++ {
		_, err := client.Products(cancelled)
		require.ErrorIs(t, err, context.Canceled)
	}

	for i := 0; i < 5; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		_, err := client.Products(ctx)
		cancel()
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrUnavailable)
	}

	products, err := client.Products(context.Background())
	require.NoError(t, err)
	assert.Empty(t, products)
	assert.Equal(t, int32(6), calls.Load())
}

func TestErrorMessage_TruncatesByRune(t *testing.T) {
	body := strings.Repeat("ñ", 250)

	msg := errorMessage([]byte(body))
	assert.True(t, utf8.ValidString(msg))
	assert.Equal(t, 200, utf8.RuneCountInString(msg))
}
