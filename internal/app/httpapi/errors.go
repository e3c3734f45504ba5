// Package httpapi exposes the command surface from spec.md §6 over
// HTTP: one route per RPC, a JSON envelope for every response, bearer
// JWT auth, per-tenant rate limiting, and a websocket event tap.
package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/maieve/fleet-orchestrator/internal/app/errkind"
)

// envelope is the §6 response shape: either {status:"success", result}
// or {status:"error", kind, message, extra}.
type envelope struct {
	Status  string         `json:"status"`
	Result  any            `json:"result,omitempty"`
	Kind    string         `json:"kind,omitempty"`
	Message string         `json:"message,omitempty"`
	Extra   map[string]any `json:"extra,omitempty"`
}

func writeResult(w http.ResponseWriter, status int, result any) {
	writeJSON(w, status, envelope{Status: "success", Result: result})
}

func writeError(w http.ResponseWriter, status int, err error) {
	kind := string(errkind.KindOf(err))
	var extra map[string]any
	if f, ok := err.(*errkind.Fault); ok {
		extra = f.Extra
	}
	writeJSON(w, status, envelope{Status: "error", Kind: kind, Message: err.Error(), Extra: extra})
}

// statusForErr picks an HTTP status from a Fault's Kind, matching §7's
// error kinds to their natural HTTP equivalents.
func statusForErr(err error) int {
	switch errkind.KindOf(err) {
	case errkind.KindNotMonitored:
		return http.StatusNotFound
	case errkind.KindParseError, errkind.KindScopeError, errkind.KindValidationError:
		return http.StatusBadRequest
	case errkind.KindPlatformError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}
