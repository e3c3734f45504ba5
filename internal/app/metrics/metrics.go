package metrics

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	core "github.com/maieve/fleet-orchestrator/internal/app/core"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "fleet_orchestrator",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fleet_orchestrator",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fleet_orchestrator",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to 2.56s
		},
		[]string{"method", "path"},
	)

	triggerEvaluations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fleet_orchestrator",
			Subsystem: "trigger",
			Name:      "evaluations_total",
			Help:      "Total number of ruleset evaluations.",
		},
		[]string{"status"},
	)

	scaleAdjustments = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fleet_orchestrator",
			Subsystem: "loadctl",
			Name:      "scale_adjustments_total",
			Help:      "Total number of scale adjustments requested through the services scale endpoint.",
		},
		[]string{"service", "direction"},
	)

	upgradeExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fleet_orchestrator",
			Subsystem: "upgrade",
			Name:      "schedule_runs_total",
			Help:      "Total number of upgrade schedules executed by the planner.",
		},
		[]string{"status"},
	)

	observationCollectors sync.Map
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		triggerEvaluations,
		scaleAdjustments,
		upgradeExecutions,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// InstrumentHandler wraps the provided handler with HTTP metrics collection.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		httpInFlight.Inc()
		defer httpInFlight.Dec()

		next.ServeHTTP(rec, r)

		duration := time.Since(start)
		path := canonicalPath(r.URL.Path)
		method := strings.ToUpper(r.Method)

		httpRequests.WithLabelValues(method, path, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	})
}

// RecordTriggerEvaluation records a ruleset evaluation outcome (§4.2).
func RecordTriggerEvaluation(status string) {
	triggerEvaluations.WithLabelValues(status).Inc()
}

// RecordScaleAdjustment records a scale-up/scale-down of a service. Its
// only caller is the HTTP services scale endpoint; the load controller's
// own rescales are not counted.
func RecordScaleAdjustment(service string, delta int) {
	direction := "down"
	if delta > 0 {
		direction = "up"
	}
	scaleAdjustments.WithLabelValues(service, direction).Inc()
}

// RecordUpgradeExecution records an upgrade schedule run (§4.5).
func RecordUpgradeExecution(success bool) {
	status := "failure"
	if success {
		status = "success"
	}
	upgradeExecutions.WithLabelValues(status).Inc()
}

type observationCollector struct {
	gauge *prometheus.GaugeVec
	hist  *prometheus.HistogramVec
}

// ObservationHooks creates core observation hooks backed by Prometheus metrics,
// keyed by the first non-empty of the meta's "service", "owner" and
// "resource" values.
func ObservationHooks(namespace, subsystem, name string) core.ObservationHooks {
	key := namespace + ":" + subsystem + ":" + name
	var collector observationCollector
	if entry, ok := observationCollectors.Load(key); ok {
		collector = entry.(observationCollector)
	} else {
		collector = createObservationCollector(namespace, subsystem, name)
		observationCollectors.Store(key, collector)
	}
	return core.ObservationHooks{
		OnStart: func(ctx context.Context, meta map[string]string) {
			label := metaLabel(meta)
			collector.gauge.WithLabelValues(label).Inc()
		},
		OnComplete: func(ctx context.Context, meta map[string]string, err error, duration time.Duration) {
			label := metaLabel(meta)
			collector.gauge.WithLabelValues(label).Dec()
			status := "success"
			if err != nil {
				status = "error"
			}
			collector.hist.WithLabelValues(label, status).Observe(duration.Seconds())
		},
	}
}

func createObservationCollector(namespace, subsystem, name string) observationCollector {
	gauge := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      name + "_in_flight",
			Help:      "Current operations in flight for " + subsystem,
		},
		[]string{"resource"},
	)
	hist := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      name + "_duration_seconds",
			Help:      "Duration of operations for " + subsystem,
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
		},
		[]string{"resource", "status"},
	)
	Registry.MustRegister(gauge, hist)
	return observationCollector{gauge: gauge, hist: hist}
}

func metaLabel(meta map[string]string) string {
	if meta == nil {
		return "unknown"
	}
	if id, ok := meta["service"]; ok && id != "" {
		return id
	}
	if id, ok := meta["owner"]; ok && id != "" {
		return id
	}
	if id, ok := meta["resource"]; ok && id != "" {
		return id
	}
	return "unknown"
}

// LoadCtlSweepHooks captures periodic sweep durations (§4.4).
func LoadCtlSweepHooks() core.ObservationHooks {
	return ObservationHooks("fleet_orchestrator", "loadctl", "sweep")
}

// UpgradeScheduleHooks captures scheduled-upgrade step durations (§4.5).
func UpgradeScheduleHooks() core.ObservationHooks {
	return ObservationHooks("fleet_orchestrator", "upgrade", "schedule_step")
}

// OrchestratorReconcileHooks captures registry reconciliation sweeps (§4.6).
func OrchestratorReconcileHooks() core.ObservationHooks {
	return ObservationHooks("fleet_orchestrator", "orchestrator", "reconcile")
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

// canonicalPath collapses path parameters so the requests_total and
// request_duration_seconds cardinality stays bounded regardless of how
// many distinct service/owner names are in play.
func canonicalPath(raw string) string {
	if raw == "" || raw == "/" {
		return "/"
	}
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")
	switch {
	case len(parts) >= 2 && parts[0] == "v1" && parts[1] == "services" && len(parts) >= 3:
		if len(parts) >= 4 {
			return "/v1/services/:name/" + parts[3]
		}
		return "/v1/services/:name"
	case len(parts) >= 3 && parts[0] == "v1" && parts[1] == "trigger" && parts[2] == "rulesets":
		return "/v1/trigger/rulesets/:owner"
	case len(parts) >= 3 && parts[0] == "v1" && parts[1] == "load" && parts[2] == "monitor":
		return "/v1/load/monitor/:service"
	default:
		return "/" + strings.Join(parts[:min(2, len(parts))], "/")
	}
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
