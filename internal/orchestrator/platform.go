package orchestrator

import "context"

// PlatformClient is the platform adapter consumed by this component
// (§6 "Platform adapter"): fetch, list, update, and registry lookups.
type PlatformClient interface {
	Get(ctx context.Context, serviceName string) (ServiceData, error)
	ListServices(ctx context.Context) ([]ServiceData, error)
	Update(ctx context.Context, serviceName string, image *ImageInfo, scale *int) error
	FetchImageConfig(ctx context.Context, fullImageID string) (map[string]any, bool, error)
	ListTags(ctx context.Context, image string) ([]string, error)
}
