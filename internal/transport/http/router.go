// Package httptransport assembles the HTTP surface: middleware stack,
// operational endpoints, and the authenticated settlement API.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	ledgerhandler "poolpay/internal/ledger/handler"
	"poolpay/internal/platform/health"
	"poolpay/internal/platform/metrics"
	"poolpay/internal/platform/middleware"
	poolhandler "poolpay/internal/pool/handler"
	"poolpay/pkg/platform/middleware/auth"
)

// maxBodyBytes bounds request bodies. Settlement payloads are tiny; anything
// near this limit is abuse.
const maxBodyBytes = 1 << 20

// Config carries everything the router mounts.
type Config struct {
	Logger         *slog.Logger
	Validator      auth.TokenValidator
	Ledger         *ledgerhandler.Handler
	Pool           *poolhandler.Handler
	Health         *health.Handler
	Metrics        *metrics.Metrics
	RequestTimeout time.Duration
}

// NewRouter wires all endpoints with the middleware stack.
//
// Quote endpoints stay unauthenticated: foreign pool hosts call them machine
// to machine on every settlement, and they expose nothing but price,
// provider, and existence. Everything else under the settlement API requires
// a bearer token resolving to an account.
func NewRouter(cfg Config) http.Handler {
	timeout := cfg.RequestTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(cfg.Logger))
	if cfg.Metrics != nil {
		r.Use(middleware.Metrics(cfg.Metrics))
	}
	r.Use(middleware.Timeout(timeout))
	r.Use(middleware.BodyLimit(maxBodyBytes))
	r.Use(middleware.ContentTypeJSON)

	if cfg.Health != nil {
		cfg.Health.Register(r)
	}
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(public chi.Router) {
		cfg.Ledger.RegisterQuoteRoute(public)
		cfg.Pool.RegisterQuoteRoute(public)
	})

	r.Group(func(private chi.Router) {
		private.Use(auth.RequireAccount(cfg.Validator, cfg.Logger))
		cfg.Ledger.Register(private)
		cfg.Pool.Register(private)
	})

	return r
}
