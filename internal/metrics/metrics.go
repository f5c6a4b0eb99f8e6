package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every terminal collector plus the Go/process collectors.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

var (
	BackendRequests = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pos",
		Name:      "backend_requests_total",
		Help:      "Backend API calls by method and outcome.",
	}, []string{"method", "outcome"})

	SalesCompleted = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pos",
		Name:      "sales_completed_total",
		Help:      "Sales finalized on this terminal by payment method.",
	}, []string{"method"})

	PreviewDiscarded = factory.NewCounter(prometheus.CounterOpts{
		Namespace: "pos",
		Name:      "preview_discarded_total",
		Help:      "Price previews dropped because a newer cart version was issued.",
	})

	DrawerEvents = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pos",
		Name:      "drawer_events_total",
		Help:      "Cash drawer opens and closes committed from this terminal.",
	}, []string{"event"})

	BreakerState = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: "pos",
		Name:      "backend_breaker_open",
		Help:      "1 while the backend circuit breaker is open.",
	})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}
