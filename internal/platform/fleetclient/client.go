// Package fleetclient implements the container-platform adapter (§6
// "Platform adapter"): a thin HTTP client against the Docker-Swarm-like
// fleet API, satisfying orchestrator.PlatformClient and
// upgrade.PlatformClient. The platform's own scheduling, placement, and
// bin-packing logic is explicitly out of scope (SPEC_FULL.md §1); this
// client only translates the few read/update calls those two components
// make into HTTP requests.
package fleetclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/tidwall/gjson"

	"github.com/maieve/fleet-orchestrator/internal/orchestrator"
)

// Deadlines bounds outbound calls by class, mirroring
// config.RPCDeadlineConfig.
type Deadlines struct {
	Read    time.Duration
	Write   time.Duration
	Catalog time.Duration
}

func (d Deadlines) withDefaults() Deadlines {
	if d.Read <= 0 {
		d.Read = 5 * time.Second
	}
	if d.Write <= 0 {
		d.Write = 10 * time.Second
	}
	if d.Catalog <= 0 {
		d.Catalog = 20 * time.Second
	}
	return d
}

// Client is the HTTP-backed platform adapter.
type Client struct {
	baseURL   string
	http      *http.Client
	deadlines Deadlines
}

// New builds a Client against the given fleet API base URL.
func New(baseURL string, deadlines Deadlines) *Client {
	return &Client{
		baseURL:   baseURL,
		http:      &http.Client{},
		deadlines: deadlines.withDefaults(),
	}
}

func (c *Client) get(ctx context.Context, timeout time.Duration, path string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fleet api %s: status %d: %s", req.URL.Path, resp.StatusCode, body)
	}
	return body, nil
}

func imageInfoFromJSON(body gjson.Result) orchestrator.ImageInfo {
	return orchestrator.ImageInfo{
		Repository:  body.Get("repository").String(),
		Image:       body.Get("image").String(),
		Tag:         body.Get("tag").String(),
		Species:     body.Get("species").String(),
		Version:     body.Get("version").String(),
		Digest:      body.Get("digest").String(),
		FullImageID: body.Get("full_image_id").String(),
	}
}

func anyMapFromJSON(body gjson.Result) map[string]any {
	out := make(map[string]any)
	body.ForEach(func(key, value gjson.Result) bool {
		out[key.String()] = value.Value()
		return true
	})
	return out
}

func serviceDataFromJSON(body gjson.Result) orchestrator.ServiceData {
	return orchestrator.ServiceData{
		Name:        body.Get("name").String(),
		Image:       imageInfoFromJSON(body.Get("image")),
		Mode:        orchestrator.Mode{Name: body.Get("mode.name").String(), Replicas: int(body.Get("mode.replicas").Int())},
		ScaleConfig: anyMapFromJSON(body.Get("scale_config")),
		Attributes:  anyMapFromJSON(body.Get("attributes")),
	}
}

// --- orchestrator.PlatformClient -------------------------------------------

// Get fetches one service's current platform-reported state.
func (c *Client) Get(ctx context.Context, serviceName string) (orchestrator.ServiceData, error) {
	body, err := c.get(ctx, c.deadlines.Read, "/v1/services/"+url.PathEscape(serviceName))
	if err != nil {
		return orchestrator.ServiceData{}, err
	}
	return serviceDataFromJSON(gjson.ParseBytes(body)), nil
}

// ListServices fetches every service the platform currently runs.
func (c *Client) ListServices(ctx context.Context) ([]orchestrator.ServiceData, error) {
	body, err := c.get(ctx, c.deadlines.Read, "/v1/services")
	if err != nil {
		return nil, err
	}
	results := gjson.ParseBytes(body).Get("services").Array()
	out := make([]orchestrator.ServiceData, 0, len(results))
	for _, r := range results {
		out = append(out, serviceDataFromJSON(r))
	}
	return out, nil
}

// Update asks the platform to change a service's image and/or replica count.
func (c *Client) Update(ctx context.Context, serviceName string, image *orchestrator.ImageInfo, scale *int) error {
	payload := map[string]any{}
	if image != nil {
		payload["image"] = map[string]any{
			"repository":    image.Repository,
			"image":         image.Image,
			"tag":           image.Tag,
			"species":       image.Species,
			"version":       image.Version,
			"digest":        image.Digest,
			"full_image_id": image.FullImageID,
		}
	}
	if scale != nil {
		payload["replicas"] = *scale
	}

	ctx, cancel := context.WithTimeout(ctx, c.deadlines.Write)
	defer cancel()

	buf, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, c.baseURL+"/v1/services/"+url.PathEscape(serviceName), bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	_, err = c.do(req)
	return err
}

// FetchImageConfig fetches an image's declared config blob (provide/require
// dependency declarations) by its full image ID.
func (c *Client) FetchImageConfig(ctx context.Context, fullImageID string) (map[string]any, bool, error) {
	body, err := c.get(ctx, c.deadlines.Catalog, "/v1/images/"+url.PathEscape(fullImageID)+"/config")
	if err != nil {
		return nil, false, err
	}
	parsed := gjson.ParseBytes(body)
	if !parsed.Exists() {
		return nil, false, nil
	}
	return anyMapFromJSON(parsed), true, nil
}

// ListTags lists every tag published for an image repository.
func (c *Client) ListTags(ctx context.Context, image string) ([]string, error) {
	body, err := c.get(ctx, c.deadlines.Catalog, "/v1/images/"+url.PathEscape(image)+"/tags")
	if err != nil {
		return nil, err
	}
	results := gjson.ParseBytes(body).Get("tags").Array()
	out := make([]string, 0, len(results))
	for _, r := range results {
		out = append(out, r.String())
	}
	return out, nil
}

// --- upgrade.PlatformClient -------------------------------------------------

// GetServiceVersion recovers a service's live version and image info,
// used by the upgrade planner's startup sanity check (§4.5) when a
// catalog entry's pinned version fell out of its versions map.
func (c *Client) GetServiceVersion(ctx context.Context, serviceName string) (string, map[string]any, bool, error) {
	body, err := c.get(ctx, c.deadlines.Read, "/v1/services/"+url.PathEscape(serviceName))
	if err != nil {
		return "", nil, false, err
	}
	parsed := gjson.ParseBytes(body)
	image := parsed.Get("image")
	if !image.Exists() {
		return "", nil, false, nil
	}
	return image.Get("version").String(), anyMapFromJSON(image), true, nil
}
