package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/maieve/fleet-orchestrator/internal/loadctl"
)

// loadMonitor handles POST /v1/load/monitor.
func (h *Handler) loadMonitor(w http.ResponseWriter, r *http.Request) {
	var svc loadctl.Service
	if err := decodeJSON(r, &svc); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	warnings, err := h.app.LoadCtl.MonitorService(r.Context(), svc)
	if err != nil {
		writeError(w, statusForErr(err), err)
		return
	}
	result := map[string]any{}
	if len(warnings) > 0 {
		result["warnings"] = warnings
	}
	writeResult(w, http.StatusOK, result)
}

// loadUnmonitor handles DELETE /v1/load/monitor/{service}.
func (h *Handler) loadUnmonitor(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "service")
	if err := h.app.LoadCtl.UnmonitorService(r.Context(), name); err != nil {
		writeError(w, statusForErr(err), err)
		return
	}
	writeResult(w, http.StatusOK, nil)
}

// servicesBestScale handles GET /v1/services/{name}/best-scale, the
// SUPPLEMENTED FEATURES diagnostic from overseer.py's test()/
// get_best_scale().
func (h *Handler) servicesBestScale(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	current, best, err := h.app.LoadCtl.GetBestScale(r.Context(), name)
	if err != nil {
		writeError(w, statusForErr(err), err)
		return
	}
	writeResult(w, http.StatusOK, map[string]any{"current": current, "best": best})
}
