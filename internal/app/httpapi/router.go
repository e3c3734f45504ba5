package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	app "github.com/maieve/fleet-orchestrator/internal/app"
	"github.com/maieve/fleet-orchestrator/internal/app/metrics"
	"github.com/maieve/fleet-orchestrator/pkg/logger"
)

// Handler holds the wired application and serves the command surface
// described by §6: trigger, solver, load controller, upgrade planner,
// and service orchestrator RPCs, plus the registry webhook ingress and
// the event stream.
type Handler struct {
	app *app.Application
	log *logger.Logger
}

// NewHandler builds a Handler over a fully wired Application.
func NewHandler(application *app.Application, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	return &Handler{app: application, log: log}
}

// Router builds the chi router exposing every route in §6's command
// surface. validator may be nil, in which case every non-public route
// is rejected (fail closed); limiter may be nil to disable rate
// limiting (e.g. in tests).
func (h *Handler) Router(validator *JWTValidator, limiter *tenantLimiter) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requireAuth(validator))
	r.Use(rateLimit(limiter))

	r.Get("/healthz", h.health)
	r.Get("/metrics", metrics.Handler().ServeHTTP)
	r.Get("/v1/system/descriptors", h.systemDescriptors)
	r.Get("/v1/stream/events", h.streamEvents)

	r.Route("/v1/trigger", func(r chi.Router) {
		r.Post("/compute", h.triggerCompute)
		r.Post("/rulesets", h.triggerAddRuleset)
		r.Get("/rulesets", h.triggerListRulesets)
		r.Delete("/rulesets/{owner}/{name}", h.triggerDeleteRuleset)
		r.Delete("/rulesets/{owner}", h.triggerPurgeOwner)
	})

	r.Route("/v1/solver", func(r chi.Router) {
		r.Post("/solve", h.solverSolve)
		r.Post("/explain", h.solverExplain)
	})

	r.Route("/v1/load", func(r chi.Router) {
		r.Post("/monitor", h.loadMonitor)
		r.Delete("/monitor/{service}", h.loadUnmonitor)
	})

	r.Route("/v1/planner", func(r chi.Router) {
		r.Get("/catalog", h.plannerCatalog)
		r.Post("/explain-phase", h.plannerExplainPhase)
		r.Post("/run-upgrade", h.plannerRunUpgrade)
		r.Post("/continue", h.plannerContinue)
	})

	r.Route("/v1/services", func(r chi.Router) {
		r.Post("/monitor", h.servicesMonitor)
		r.Get("/", h.servicesList)
		r.Delete("/{name}", h.servicesUnmonitor)
		r.Get("/{name}", h.servicesGet)
		r.Post("/{name}/scale", h.servicesScale)
		r.Post("/{name}/upgrade", h.servicesUpgrade)
		r.Post("/{name}/reload", h.servicesReload)
		r.Get("/{name}/best-scale", h.servicesBestScale)
	})

	r.Post("/v1/webhooks/registry", h.registryWebhook)

	return r
}
