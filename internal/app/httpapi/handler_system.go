package httpapi

import "net/http"

// health handles GET /healthz.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// systemDescriptors handles GET /v1/system/descriptors: introspection
// over every registered component, mirroring the teacher's handler of
// the same name.
func (h *Handler) systemDescriptors(w http.ResponseWriter, r *http.Request) {
	writeResult(w, http.StatusOK, h.app.Descriptors())
}
