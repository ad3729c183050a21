// Package api exposes checkout and the pending-operation store over HTTP.
//
// Routes:
//
//	POST   /operations                 pay and start tracking
//	GET    /operations                 list pending entries
//	GET    /operations/{kind}/{owner}  one entry
//	DELETE /operations/{kind}/{owner}  drop an entry (admin)
//	GET    /events                     recent notifications
//	GET    /healthz                    store reachability
//	GET    /metrics                    Prometheus metrics
package api

import (
	"context"
	"log/slog"
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/paywatch/internal/checkout"
	"github.com/roach88/paywatch/internal/notify"
	"github.com/roach88/paywatch/internal/pending"
)

// AdminHeader carries the caller's wallet address for admin routes.
const AdminHeader = "X-Wallet-Address"

// Payer runs a paid action. Implemented by *checkout.Checkout.
type Payer interface {
	Pay(ctx context.Context, req checkout.Request) (checkout.Receipt, error)
}

// Operations is the read and admin view of the pending store.
// Implemented by *store.Store.
type Operations interface {
	ListOperations(ctx context.Context) ([]pending.Operation, error)
	GetOperation(ctx context.Context, id pending.ID) (pending.Operation, bool, error)
	RemoveOperation(ctx context.Context, id pending.ID) error
	Ping(ctx context.Context) error
}

// Events lists recent notifications. Implemented by *notify.Recorder.
type Events interface {
	Recent(n int) []notify.Event
}

// Server holds the handlers' dependencies.
type Server struct {
	payer    Payer
	ops      Operations
	events   Events
	admins   []string
	gatherer prometheus.Gatherer
	logger   *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithAdmins sets the wallet addresses allowed on admin routes.
func WithAdmins(addrs []string) Option {
	return func(s *Server) { s.admins = slices.Clone(addrs) }
}

// WithGatherer sets the registry served at /metrics.
// Default: prometheus.DefaultGatherer.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New creates a Server.
func New(payer Payer, ops Operations, events Events, opts ...Option) *Server {
	s := &Server{
		payer:    payer,
		ops:      ops,
		events:   events,
		gatherer: prometheus.DefaultGatherer,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterRoutes registers the API on r.
func (s *Server) RegisterRoutes(r chi.Router) {
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	r.Get("/events", s.handleEvents)

	r.Route("/operations", func(r chi.Router) {
		r.Post("/", s.handlePay)
		r.Get("/", s.handleList)
		r.Get("/{kind}/{owner}", s.handleGet)
		r.With(s.requireAdmin).Delete("/{kind}/{owner}", s.handleDelete)
	})
}

// Handler returns a router with every route registered.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	s.RegisterRoutes(r)
	return r
}

// requireAdmin admits only callers whose AdminHeader is allow-listed.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		addr := r.Header.Get(AdminHeader)
		if addr == "" {
			writeError(w, http.StatusUnauthorized, "missing "+AdminHeader+" header", nil)
			return
		}
		if !slices.Contains(s.admins, addr) {
			s.logger.Warn("admin request refused", "address", addr, "path", r.URL.Path)
			writeError(w, http.StatusForbidden, "address is not an administrator", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}
