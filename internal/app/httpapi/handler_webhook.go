package httpapi

import (
	"context"
	"net/http"

	"github.com/maieve/fleet-orchestrator/internal/orchestrator"
)

// privateRegistryPayload is the push-notification shape a private
// registry sends (§6).
type privateRegistryPayload struct {
	Events []struct {
		Action string `json:"action"`
		Target struct {
			Repository string `json:"repository"`
			Tag        string `json:"tag"`
			Digest     string `json:"digest"`
		} `json:"target"`
		Request struct {
			Host string `json:"host"`
		} `json:"request"`
	} `json:"events"`
}

// hubPayload is Docker Hub's webhook shape (§6).
type hubPayload struct {
	PushData struct {
		Tag    string `json:"tag"`
		Pusher string `json:"pusher"`
	} `json:"push_data"`
	Repository struct {
		Name      string `json:"name"`
		Namespace string `json:"namespace"`
	} `json:"repository"`
}

// registryWebhook handles POST /v1/webhooks/registry (§6's ingress):
// accepts either payload shape, translates to image_updated, and
// responds 200 unconditionally while processing asynchronously.
func (h *Handler) registryWebhook(w http.ResponseWriter, r *http.Request) {
	var raw map[string]any
	if err := decodeJSON(r, &raw); err != nil {
		w.WriteHeader(http.StatusOK)
		return
	}

	events := translateRegistryPayload(raw)
	for _, evt := range events {
		go func(evt orchestrator.ImageUpdatedPayload) {
			if err := h.app.Orchestrator.OnImageUpdated(context.Background(), evt); err != nil {
				h.log.WithField("repository", evt.Repository).WithField("error", err).Warn("image_updated handling failed")
			}
		}(evt)
	}
	w.WriteHeader(http.StatusOK)
}

func translateRegistryPayload(raw map[string]any) []orchestrator.ImageUpdatedPayload {
	if events, ok := raw["events"].([]any); ok {
		var out []orchestrator.ImageUpdatedPayload
		for _, e := range events {
			m, ok := e.(map[string]any)
			if !ok {
				continue
			}
			action, _ := m["action"].(string)
			if action != "push" {
				continue
			}
			target, _ := m["target"].(map[string]any)
			if target == nil {
				continue
			}
			repository, _ := target["repository"].(string)
			tag, _ := target["tag"].(string)
			digest, _ := target["digest"].(string)
			out = append(out, orchestrator.ImageUpdatedPayload{
				Repository:  repository,
				Image:       repository,
				Tag:         tag,
				Digest:      digest,
				FullImageID: repository + "@" + digest,
			})
		}
		return out
	}

	if pushData, ok := raw["push_data"].(map[string]any); ok {
		repo, _ := raw["repository"].(map[string]any)
		tag, _ := pushData["tag"].(string)
		name, _ := repo["name"].(string)
		namespace, _ := repo["namespace"].(string)
		full := name
		if namespace != "" {
			full = namespace + "/" + name
		}
		return []orchestrator.ImageUpdatedPayload{{
			Repository:  full,
			Image:       name,
			Tag:         tag,
			FullImageID: full + ":" + tag,
		}}
	}
	return nil
}
