package config

import "time"

// RuntimeConfig holds the orchestrator-specific knobs SPEC_FULL.md calls
// for beyond the generic server/database/logging triad: sweep and
// reconcile cadences, per-call-class RPC deadlines, and the registry
// webhook's shared secret.
type RuntimeConfig struct {
	// SweepInterval is how often the load controller's periodic sweep
	// runs, re-executing stale scale-up/scale-down results (§4.4).
	SweepInterval time.Duration `json:"sweep_interval" env:"LOAD_SWEEP_INTERVAL"`

	// ReconcileInterval is how often the service orchestrator reconciles
	// registry tags against its stored version history (§4.6).
	ReconcileInterval time.Duration `json:"reconcile_interval" env:"RECONCILE_INTERVAL"`

	// RPCDeadlines bounds outbound calls to the platform client, keyed by
	// call class so that, e.g., image-tag listing (network-heavy) can be
	// given more budget than a scale update.
	RPCDeadlines RPCDeadlineConfig `json:"rpc_deadlines"`

	// WebhookSharedSecret is loaded from configuration only: no component
	// reads it, and the registry webhook route checks no signature.
	WebhookSharedSecret string `json:"webhook_shared_secret" env:"REGISTRY_WEBHOOK_SECRET"`
}

// RPCDeadlineConfig bounds platform client calls by class.
type RPCDeadlineConfig struct {
	Read    time.Duration `json:"read" env:"RPC_DEADLINE_READ"`
	Write   time.Duration `json:"write" env:"RPC_DEADLINE_WRITE"`
	Catalog time.Duration `json:"catalog" env:"RPC_DEADLINE_CATALOG"`
}

func defaultRuntimeConfig() RuntimeConfig {
	return RuntimeConfig{
		SweepInterval:     15 * time.Second,
		ReconcileInterval: 30 * time.Minute,
		RPCDeadlines: RPCDeadlineConfig{
			Read:    5 * time.Second,
			Write:   10 * time.Second,
			Catalog: 20 * time.Second,
		},
	}
}
