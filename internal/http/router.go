package http

import (
	"net/http"
	"time"

	"github.com/fjod/go_cart/checkout-engine/internal/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type RouterConfig struct {
	ServiceName    string
	RequestTimeout time.Duration
	Resolve        TokenResolver
	Metrics        *metrics.ServerMetrics
	MetricsHandler http.Handler
}

// NewRouter serves the orders API under /api/v1, traced with otelhttp.
func NewRouter(orders *OrdersHandler, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	if cfg.Metrics != nil {
		r.Use(MetricsMiddleware(cfg.Metrics))
	}
	if cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
	}
	resolve := cfg.Resolve
	if resolve == nil {
		resolve = TokenAsUserID
	}
	r.Use(AuthMiddleware(resolve))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if cfg.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", cfg.MetricsHandler)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/orders", func(r chi.Router) {
			r.Get("/", orders.ListOrders)
			r.Post("/", orders.PlaceOrder)
			r.Get("/{order_id}", orders.GetOrder)
		})
	})

	name := cfg.ServiceName
	if name == "" {
		name = "orders-service"
	}
	return otelhttp.NewHandler(r, name,
		otelhttp.WithFilter(func(r *http.Request) bool {
			return r.URL.Path != "/health" && r.URL.Path != "/metrics"
		}),
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}
