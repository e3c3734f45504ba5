package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/maieve/fleet-orchestrator/internal/app/metrics"
	"github.com/maieve/fleet-orchestrator/internal/orchestrator"
)

// servicesMonitor handles POST /v1/services/monitor.
func (h *Handler) servicesMonitor(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ServiceName string `json:"service_name"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	svc, err := h.app.Orchestrator.Monitor(r.Context(), req.ServiceName)
	if err != nil {
		writeError(w, statusForErr(err), err)
		return
	}
	writeResult(w, http.StatusOK, svc)
}

// servicesUnmonitor handles DELETE /v1/services/{name}.
func (h *Handler) servicesUnmonitor(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := h.app.Orchestrator.Unmonitor(r.Context(), name); err != nil {
		writeError(w, statusForErr(err), err)
		return
	}
	writeResult(w, http.StatusOK, nil)
}

// servicesGet handles GET /v1/services/{name}.
func (h *Handler) servicesGet(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	svc, err := h.app.Orchestrator.Get(r.Context(), name)
	if err != nil {
		writeError(w, statusForErr(err), err)
		return
	}
	writeResult(w, http.StatusOK, svc)
}

// servicesList handles GET /v1/services.
func (h *Handler) servicesList(w http.ResponseWriter, r *http.Request) {
	services, err := h.app.Orchestrator.ListServices(r.Context())
	if err != nil {
		writeError(w, statusForErr(err), err)
		return
	}
	writeResult(w, http.StatusOK, services)
}

// servicesScale handles POST /v1/services/{name}/scale.
func (h *Handler) servicesScale(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var req struct {
		Replicas int `json:"replicas"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	before, beforeErr := h.app.Orchestrator.Get(r.Context(), name)
	if err := h.app.Orchestrator.Scale(r.Context(), name, req.Replicas); err != nil {
		writeError(w, statusForErr(err), err)
		return
	}
	if beforeErr == nil {
		metrics.RecordScaleAdjustment(name, req.Replicas-before.Mode.Replicas)
	}
	writeResult(w, http.StatusOK, nil)
}

// servicesUpgrade handles POST /v1/services/{name}/upgrade.
func (h *Handler) servicesUpgrade(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var image orchestrator.ImageInfo
	if err := decodeJSON(r, &image); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := h.app.Orchestrator.UpgradeService(r.Context(), name, image); err != nil {
		writeError(w, statusForErr(err), err)
		return
	}
	writeResult(w, http.StatusOK, nil)
}

// servicesReload handles POST /v1/services/{name}/reload, the
// SUPPLEMENTED FEATURES reload_from_scaler operation.
func (h *Handler) servicesReload(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	svc, err := h.app.Orchestrator.ReloadFromScaler(r.Context(), name)
	if err != nil {
		writeError(w, statusForErr(err), err)
		return
	}
	writeResult(w, http.StatusOK, svc)
}
