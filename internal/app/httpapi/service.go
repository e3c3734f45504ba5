package httpapi

import (
	"context"
	"net/http"
	"time"

	app "github.com/maieve/fleet-orchestrator/internal/app"
	"github.com/maieve/fleet-orchestrator/internal/app/metrics"
	"github.com/maieve/fleet-orchestrator/internal/app/system"
	"github.com/maieve/fleet-orchestrator/pkg/logger"
)

// Config controls the HTTP service's listen address, auth secret, and
// per-tenant rate budget.
type Config struct {
	Addr          string
	JWTSecret     string
	RatePerSecond float64
	RateBurst     int
}

// Service exposes the HTTP command surface and fits into the system
// manager lifecycle alongside the background pollers.
type Service struct {
	addr    string
	server  *http.Server
	handler http.Handler
	log     *logger.Logger
}

// NewService wires a Handler over application into a lifecycle-managed
// HTTP service. A missing JWT secret rejects every authenticated
// request rather than silently disabling auth.
func NewService(application *app.Application, cfg Config, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("http")
	}
	handlerSet := NewHandler(application, log)
	validator := NewJWTValidator(cfg.JWTSecret)
	limiter := newTenantLimiter(cfg.RatePerSecond, cfg.RateBurst)

	router := handlerSet.Router(validator, limiter)
	// Order matters: CORS short-circuits preflight OPTIONS before the
	// router's auth middleware runs, metrics wraps everything else.
	instrumented := metrics.InstrumentHandler(wrapWithCORS(router))

	return &Service{
		addr:    cfg.Addr,
		handler: instrumented,
		log:     log,
	}
}

var _ system.Service = (*Service)(nil)

func (s *Service) Name() string { return "http" }

func (s *Service) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.WithField("error", err).Error("http server error")
		}
	}()
	return nil
}

func (s *Service) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// wrapWithCORS allows cross-origin requests from operator dashboards
// and short-circuits preflight requests.
func wrapWithCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
