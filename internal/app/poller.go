package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	core "github.com/maieve/fleet-orchestrator/internal/app/core"
	"github.com/maieve/fleet-orchestrator/pkg/logger"
)

// Poller is a lifecycle-managed periodic tick, the shape every background
// loop in this repo (load controller sweep, registry reconciliation)
// reduces to, grounded on the teacher's automationsvc.NewScheduler/
// pricefeedsvc.NewRefresher pattern. Schedules are expressed as
// robfig/cron "@every" specs rather than a hand-rolled ticker, so an
// operator reading the cron entry list sees the same cadence the DOMAIN
// STACK names for the load controller resweep and orchestrator
// reconciliation.
type Poller struct {
	name     string
	interval time.Duration
	tick     func(ctx context.Context) error
	log      *logger.Logger
	hooks    core.ObservationHooks

	mu      sync.Mutex
	cron    *cron.Cron
	cancel  context.CancelFunc
	running bool
}

// NewPoller builds a Poller that calls tick on an "@every interval" cron
// schedule once started. hooks observes each tick's duration and
// success/failure (the §4.4/§4.6 sweep/reconcile instrumentation); omit
// it to use core.NoopObservationHooks.
func NewPoller(name string, interval time.Duration, tick func(ctx context.Context) error, log *logger.Logger, hooks ...core.ObservationHooks) *Poller {
	if log == nil {
		log = logger.NewDefault(name)
	}
	tickHooks := core.NoopObservationHooks
	if len(hooks) > 0 {
		tickHooks = hooks[0]
	}
	return &Poller{name: name, interval: interval, tick: tick, log: log, hooks: tickHooks}
}

func (p *Poller) Name() string { return p.name }

func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)

	c := cron.New(cron.WithChain(cron.Recover(cronLogger{log: p.log, poller: p.name})))
	spec := fmt.Sprintf("@every %s", p.interval)
	if _, err := c.AddFunc(spec, func() {
		done := core.StartObservation(runCtx, p.hooks, map[string]string{"poller": p.name})
		err := p.tick(runCtx)
		done(err)
		if err != nil {
			p.log.WithField("poller", p.name).WithField("error", err).Error("poller tick failed")
		}
	}); err != nil {
		cancel()
		p.mu.Unlock()
		return fmt.Errorf("schedule %s: %w", p.name, err)
	}

	p.cron = c
	p.cancel = cancel
	p.running = true
	p.mu.Unlock()

	c.Start()
	return nil
}

func (p *Poller) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	c := p.cron
	cancel := p.cancel
	p.running = false
	p.cron = nil
	p.cancel = nil
	p.mu.Unlock()

	stopCtx := c.Stop()
	cancel()

	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	return nil
}

// cronLogger adapts *logger.Logger into cron.Logger so a panicking tick
// (cron.Recover's target) lands in the same structured log as a returned
// error.
type cronLogger struct {
	log    *logger.Logger
	poller string
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.WithField("poller", l.poller).WithField("error", err).Error(msg)
}
