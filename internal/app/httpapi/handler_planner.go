package httpapi

import (
	"net/http"

	"github.com/maieve/fleet-orchestrator/internal/app/metrics"
	"github.com/maieve/fleet-orchestrator/internal/upgrade"
)

// plannerCatalog handles GET /v1/planner/catalog?filter=no_downgrade|accept_all.
func (h *Handler) plannerCatalog(w http.ResponseWriter, r *http.Request) {
	filterName := r.URL.Query().Get("filter")
	var filter upgrade.Filter
	if filterName != "" {
		f, ok := upgrade.FilterByName(filterName)
		if !ok {
			writeError(w, http.StatusBadRequest, errUnknownFilter(filterName))
			return
		}
		filter = f
	}
	catalog, entries, err := h.app.Upgrade.BuildCatalog(r.Context(), filter)
	if err != nil {
		writeError(w, statusForErr(err), err)
		return
	}
	writeResult(w, http.StatusOK, map[string]any{"catalog": catalog, "entries": entries})
}

type explainPhaseRequest struct {
	Phase map[string]string `json:"phase"`
}

// plannerExplainPhase handles POST /v1/planner/explain-phase.
func (h *Handler) plannerExplainPhase(w http.ResponseWriter, r *http.Request) {
	var req explainPhaseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	failedCount, failed, err := h.app.Upgrade.ExplainPhase(r.Context(), req.Phase)
	if err != nil {
		writeError(w, statusForErr(err), err)
		return
	}
	writeResult(w, http.StatusOK, map[string]any{"failed_count": failedCount, "failed": failed})
}

// plannerRunUpgrade handles POST /v1/planner/run-upgrade (§4.5's
// resolve_upgrade_and_steps followed by scheduled execution).
func (h *Handler) plannerRunUpgrade(w http.ResponseWriter, r *http.Request) {
	sched, err := h.app.Upgrade.RunAvailableUpgrade(r.Context())
	metrics.RecordUpgradeExecution(err == nil)
	if err != nil {
		writeError(w, statusForErr(err), err)
		return
	}
	writeResult(w, http.StatusOK, sched)
}

type continuePlanRequest struct {
	ServiceName string `json:"service_name"`
}

// plannerContinue handles POST /v1/planner/continue.
func (h *Handler) plannerContinue(w http.ResponseWriter, r *http.Request) {
	var req continuePlanRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.app.Upgrade.ContinueScheduledPlan(r.Context(), req.ServiceName); err != nil {
		writeError(w, statusForErr(err), err)
		return
	}
	writeResult(w, http.StatusOK, nil)
}

type filterError string

func (e filterError) Error() string { return string(e) }

func errUnknownFilter(name string) error {
	return filterError("unknown catalog filter: " + name)
}
