package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/dynatos/pos-terminal/internal/app"
	"github.com/dynatos/pos-terminal/internal/domain"
	"github.com/dynatos/pos-terminal/internal/metrics"
)

// NewRouter builds the terminal surface: public login/logout, the admin area
// and the cashier area, each behind the route guard.
func NewRouter(terminal *app.Terminal, requestTimeout time.Duration) http.Handler {
	auth := NewAuthHandler(terminal, requestTimeout)
	drawers := NewDrawerHandler(terminal, requestTimeout)
	cart := NewCartHandler(terminal.Engine, terminal.Catalog, requestTimeout)
	admin := NewAdminHandler(terminal, requestTimeout)

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(RequestIDMiddleware)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(middleware.Compress(5))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Post("/login", auth.Login)
	r.Post("/logout", auth.Logout)

	r.Route("/admin", func(r chi.Router) {
		r.Use(terminal.Guard.Require(domain.RoleAdmin))
		r.Use(SessionExpiryMiddleware(terminal))
		r.Get("/", admin.Dashboard)
		r.Get("/products", admin.Products)
	})

	r.Route("/pos", func(r chi.Router) {
		r.Use(terminal.Guard.Require(domain.RoleCashier, domain.RoleAdmin))
		r.Use(SessionExpiryMiddleware(terminal))
		r.Get("/", drawers.State)

		r.Route("/drawer", func(r chi.Router) {
			r.Post("/open", drawers.Open)
			r.Post("/close", drawers.AuthorizeClose)
			r.Post("/close/confirm", drawers.ConfirmClose)
			r.Delete("/close", drawers.CancelClose)
		})

		r.Get("/catalog", cart.Catalog)

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cart.GetCart)
			r.Delete("/", cart.ResetCart)
			r.Post("/items", cart.AddItem)
			r.Post("/items/{product_id}/increment", cart.Increment)
			r.Post("/items/{product_id}/decrement", cart.Decrement)
			r.Put("/customer", cart.SetCustomer)
			r.Delete("/customer", cart.ClearCustomer)
		})

		r.Route("/sale", func(r chi.Router) {
			r.Post("/", cart.CommitSale)
			r.Delete("/", cart.CancelPayment)
			r.Post("/cash", cart.PayCash)
			r.Post("/electronic", cart.PayElectronic)
		})

		r.Get("/receipt", cart.Receipt)
		r.Post("/receipt/reprint", cart.Reprint)
	})

	return otelhttp.NewHandler(r, "pos-terminal")
}
