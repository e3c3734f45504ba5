package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/maieve/fleet-orchestrator/internal/app/metrics"
	"github.com/maieve/fleet-orchestrator/internal/trigger"
)

// triggerCompute handles POST /v1/trigger/compute (§4.2's pure Compute
// operation: validate and evaluate without touching the store).
func (h *Handler) triggerCompute(w http.ResponseWriter, r *http.Request) {
	var rs trigger.Ruleset
	if err := decodeJSON(r, &rs); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	res := h.app.Trigger.Compute(rs)
	metrics.RecordTriggerEvaluation(res.Status)
	writeResult(w, http.StatusOK, res)
}

// triggerAddRuleset handles POST /v1/trigger/rulesets.
func (h *Handler) triggerAddRuleset(w http.ResponseWriter, r *http.Request) {
	var rs trigger.Ruleset
	if err := decodeJSON(r, &rs); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	res, err := h.app.Trigger.Add(r.Context(), rs)
	if err != nil {
		writeError(w, statusForErr(err), err)
		return
	}
	writeResult(w, http.StatusOK, res)
}

// triggerDeleteRuleset handles DELETE /v1/trigger/rulesets/{owner}/{name}.
func (h *Handler) triggerDeleteRuleset(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "owner")
	name := chi.URLParam(r, "name")
	if err := h.app.Trigger.Delete(r.Context(), owner, name); err != nil {
		writeError(w, statusForErr(err), err)
		return
	}
	writeResult(w, http.StatusOK, nil)
}

// triggerPurgeOwner handles DELETE /v1/trigger/rulesets/{owner}.
func (h *Handler) triggerPurgeOwner(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "owner")
	if err := h.app.Trigger.Purge(r.Context(), owner); err != nil {
		writeError(w, statusForErr(err), err)
		return
	}
	writeResult(w, http.StatusOK, nil)
}

// triggerListRulesets handles GET /v1/trigger/rulesets?owner=...
func (h *Handler) triggerListRulesets(w http.ResponseWriter, r *http.Request) {
	filter := trigger.Filter{Owner: r.URL.Query().Get("owner")}
	rulesets, err := h.app.Trigger.List(r.Context(), filter)
	if err != nil {
		writeError(w, statusForErr(err), err)
		return
	}
	writeResult(w, http.StatusOK, rulesets)
}
