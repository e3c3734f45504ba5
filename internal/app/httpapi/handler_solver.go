package httpapi

import (
	"net/http"

	"github.com/maieve/fleet-orchestrator/internal/depsolver"
)

// solveRequest is the ad hoc body for POST /v1/solver/solve: a catalog
// plus optional extra constraints and a cap on returned assignments,
// and for /v1/solver/explain a catalog pinned to exactly one version
// per service.
type solveRequest struct {
	Catalog depsolver.Catalog `json:"catalog"`
	Extra   []string          `json:"extra"`
	Debug   bool              `json:"debug"`
	Limit   int               `json:"limit"`
}

type solveResponse struct {
	Assignments []depsolver.Assignment `json:"assignments"`
	Anomalies   []depsolver.Anomaly    `json:"anomalies"`
	Failed      []depsolver.FailedClause `json:"failed,omitempty"`
}

// solverSolve handles POST /v1/solver/solve (§4.3's backtracking search
// over an externally supplied catalog).
func (h *Handler) solverSolve(w http.ResponseWriter, r *http.Request) {
	var req solveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	solver, err := depsolver.New(req.Catalog, req.Extra, req.Debug)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	assignments := solver.TakeN(req.Limit)
	writeResult(w, http.StatusOK, solveResponse{
		Assignments: assignments,
		Anomalies:   solver.Anomalies(),
	})
}

// solverExplain handles POST /v1/solver/explain (§4.3's diagnostic:
// catalog must carry exactly one version per service).
func (h *Handler) solverExplain(w http.ResponseWriter, r *http.Request) {
	var req solveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	solver, err := depsolver.New(req.Catalog, req.Extra, true)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	failedCount, failed, err := solver.Explain()
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeResult(w, http.StatusOK, map[string]any{
		"failed_count": failedCount,
		"failed":       failed,
	})
}
