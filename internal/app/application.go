// Package app wires the six components (C1-C6) into a single running
// process: event bus, stores, background pollers, and lifecycle
// management, adapted from the teacher's internal/app.Application.
package app

import (
	"context"
	"fmt"
	"time"

	core "github.com/maieve/fleet-orchestrator/internal/app/core"
	"github.com/maieve/fleet-orchestrator/internal/app/events"
	"github.com/maieve/fleet-orchestrator/internal/app/metrics"
	"github.com/maieve/fleet-orchestrator/internal/app/system"
	"github.com/maieve/fleet-orchestrator/internal/loadctl"
	"github.com/maieve/fleet-orchestrator/internal/orchestrator"
	"github.com/maieve/fleet-orchestrator/internal/trigger"
	"github.com/maieve/fleet-orchestrator/internal/upgrade"
	"github.com/maieve/fleet-orchestrator/pkg/logger"
)

// sweepInterval is the Load Controller's periodic re-sweep cadence (§4.4).
const sweepInterval = 15 * time.Second

// reconcileInterval is the Service Orchestrator's registry reconciliation
// cadence (§4.6).
const reconcileInterval = 30 * time.Minute

// PlatformClients bundles the two platform adapters the orchestrator and
// the upgrade planner each depend on (§6).
type PlatformClients struct {
	Orchestrator orchestrator.PlatformClient
	Upgrade      upgrade.PlatformClient
}

// RuntimeConfig controls background-loop cadences and the event bus's
// queue sizing.
type RuntimeConfig struct {
	SweepInterval     time.Duration
	ReconcileInterval time.Duration
	EventQueueSize    int
	EventWorkerCount  int
}

func (c RuntimeConfig) withDefaults() RuntimeConfig {
	if c.SweepInterval <= 0 {
		c.SweepInterval = sweepInterval
	}
	if c.ReconcileInterval <= 0 {
		c.ReconcileInterval = reconcileInterval
	}
	return c
}

// Option customises the application runtime.
type Option func(*builderConfig)

type builderConfig struct {
	runtime RuntimeConfig
}

// WithRuntimeConfig overrides background-loop cadences.
func WithRuntimeConfig(cfg RuntimeConfig) Option {
	return func(b *builderConfig) { b.runtime = cfg }
}

// Application ties the orchestrator, load controller, trigger engine,
// and upgrade planner together and manages their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger
	bus     *events.Dispatcher

	Trigger      *trigger.Engine
	LoadCtl      *loadctl.Controller
	Upgrade      *upgrade.Planner
	Orchestrator *orchestrator.Orchestrator

	descriptors []core.Descriptor
}

// New builds a fully wired application with the provided stores and
// platform adapters.
func New(stores Stores, platform PlatformClients, log *logger.Logger, opts ...Option) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}
	cfg := builderConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	runtime := cfg.runtime.withDefaults()

	stores.applyDefaults()
	manager := system.NewManager()
	bus := events.NewDispatcher(events.Config{QueueSize: runtime.EventQueueSize, WorkerCount: runtime.EventWorkerCount})

	orch := orchestrator.New(stores.Orchestrator, platform.Orchestrator, bus, log)
	trig := trigger.New(stores.Trigger, bus, log)
	loadCtl := loadctl.New("loadctl", stores.LoadCtl, trig, orch, log)
	planner := upgrade.New(stores.Upgrade, upgradeOrchestratorAdapter{orch: orch}, platform.Upgrade, bus, log, metrics.UpgradeScheduleHooks())

	bus.Subscribe(trigger.TopicRulesetTriggered, loadCtl.OnRulesetTriggered)
	bus.Subscribe(orchestrator.TopicServiceUpdated, orch.OnServiceUpdated)
	bus.Subscribe(orchestrator.TopicServiceUpdated, loadctlServiceUpdatedHandler(loadCtl, orch))
	bus.Subscribe(orchestrator.TopicServiceUpdated, upgradeServiceUpdatedHandler(planner))
	bus.Subscribe(orchestrator.TopicNewImage, upgradeNewImageHandler(planner))
	bus.Subscribe(orchestrator.TopicCleanedImage, upgradeCleanedImageHandler(planner))
	bus.Subscribe(upgrade.TopicNewVersion, upgradeNewVersionHandler(planner))

	if err := manager.Register(namedNoop{name: "event-bus", stop: bus.Stop}); err != nil {
		return nil, fmt.Errorf("register event-bus: %w", err)
	}

	sweeper := NewPoller("loadctl-sweep", runtime.SweepInterval, loadCtl.PeriodicSweep, log, metrics.LoadCtlSweepHooks())
	reconciler := NewPoller("orchestrator-reconcile", runtime.ReconcileInterval, orch.ReconcileRegistries, log, metrics.OrchestratorReconcileHooks())
	for _, svc := range []system.Service{sweeper, reconciler} {
		if err := manager.Register(svc); err != nil {
			return nil, fmt.Errorf("register %s: %w", svc.Name(), err)
		}
	}

	descriptors := system.CollectDescriptors(manager.DescriptorProviders())
	descriptors = append(descriptors, trig.Descriptor(), loadCtl.Descriptor(), planner.Descriptor(), orch.Descriptor())

	return &Application{
		manager:      manager,
		log:          log,
		bus:          bus,
		Trigger:      trig,
		LoadCtl:      loadCtl,
		Upgrade:      planner,
		Orchestrator: orch,
		descriptors:  descriptors,
	}, nil
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Subscribe attaches an additional handler to the event bus, used by the
// websocket stream endpoint to fan out events to connected dashboards
// without giving httpapi access to the bus's Publish side.
func (a *Application) Subscribe(topic string, handler events.Handler) {
	a.bus.Subscribe(topic, handler)
}

// Start begins all registered background services and runs the planner's
// startup sanity check.
func (a *Application) Start(ctx context.Context) error {
	if err := a.Upgrade.SanityCheck(ctx); err != nil {
		a.log.WithField("error", err).Warn("upgrade planner sanity check failed")
	}
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}

// Descriptors returns advertised component descriptors for introspection.
func (a *Application) Descriptors() []core.Descriptor {
	out := make([]core.Descriptor, len(a.descriptors))
	copy(out, a.descriptors)
	return out
}

// namedNoop adapts the event bus's Stop into a system.Service without
// duplicating its own Name/Start (Dispatcher.Start is already a no-op;
// only Stop needs to run during manager shutdown to drain workers).
type namedNoop struct {
	name string
	stop func(ctx context.Context) error
}

func (n namedNoop) Name() string                   { return n.name }
func (n namedNoop) Start(ctx context.Context) error { return nil }
func (n namedNoop) Stop(ctx context.Context) error  { return n.stop(ctx) }
