// Package events is the internal event backbone gluing C1-C6 together,
// generalizing the teacher's system/events.Dispatcher (built around
// blockchain ContractEvent payloads) to the generic named-topic events
// this domain uses: metrics_updated, ruleset_triggered, service_updated,
// image_updated, new_image, new_version, cleaned_image.
package events

import (
	"context"
	"sync"
	"time"
)

// Event is a single named occurrence dispatched to subscribers.
type Event struct {
	Topic   string
	Payload any
	Time    time.Time
}

// Handler processes one event. The Dispatcher discards a returned error
// and goes on delivering to the other handlers; a handler that wants its
// errors reported logs them itself.
type Handler func(ctx context.Context, evt Event) error

// Publisher is the narrow interface components depend on to emit events.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) error
}

// Subscriber is the narrow interface components depend on to receive
// events.
type Subscriber interface {
	Subscribe(topic string, handler Handler)
}

// Bus combines both; Dispatcher and RedisBus satisfy it.
type Bus interface {
	Publisher
	Subscriber
}

// Config controls the bounded inbound queue and worker pool, mirroring
// system/events.DispatcherConfig.
type Config struct {
	QueueSize   int
	WorkerCount int
}

func (c Config) withDefaults() Config {
	if c.QueueSize <= 0 {
		c.QueueSize = 1000
	}
	if c.WorkerCount <= 0 {
		c.WorkerCount = 4
	}
	return c
}

// Dispatcher is the in-process fan-out bus: a bounded queue with a
// worker pool draining it, used standalone (no Redis configured) or as
// the local delivery stage behind RedisBus.
type Dispatcher struct {
	cfg Config

	mu       sync.RWMutex
	handlers map[string][]Handler

	queue  chan Event
	stopCh chan struct{}
	doneCh chan struct{}

	onDrop func(Event)
}

// NewDispatcher builds a Dispatcher and starts its worker pool.
func NewDispatcher(cfg Config) *Dispatcher {
	cfg = cfg.withDefaults()
	d := &Dispatcher{
		cfg:      cfg,
		handlers: make(map[string][]Handler),
		queue:    make(chan Event, cfg.QueueSize),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	for i := 0; i < cfg.WorkerCount; i++ {
		go d.worker()
	}
	return d
}

// OnDrop registers a callback invoked when the bounded queue is full and
// an event is producer-blocked; primarily used by tests and metrics.
func (d *Dispatcher) OnDrop(fn func(Event)) { d.onDrop = fn }

func (d *Dispatcher) worker() {
	for {
		select {
		case <-d.stopCh:
			return
		case evt := <-d.queue:
			d.dispatch(evt)
		}
	}
}

func (d *Dispatcher) dispatch(evt Event) {
	d.mu.RLock()
	handlers := append([]Handler(nil), d.handlers[evt.Topic]...)
	d.mu.RUnlock()
	for _, h := range handlers {
		// A handler error is swallowed here by design (§7): the
		// component-level caller should log via its own logger. Callers
		// needing errors should wrap their handler to report them.
		_ = h(context.Background(), evt)
	}
}

// Publish enqueues an event. Per §5's backpressure rule, producers block
// on enqueue rather than the queue silently dropping events; ctx
// cancellation unblocks a stuck publish.
func (d *Dispatcher) Publish(ctx context.Context, topic string, payload any) error {
	evt := Event{Topic: topic, Payload: payload, Time: time.Now().UTC()}
	select {
	case d.queue <- evt:
		return nil
	default:
	}
	if d.onDrop != nil {
		d.onDrop(evt)
	}
	select {
	case d.queue <- evt:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe registers a handler for a topic.
func (d *Dispatcher) Subscribe(topic string, handler Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[topic] = append(d.handlers[topic], handler)
}

// Stop signals the worker pool to exit; events still queued are not
// delivered. Implements system.Service.
func (d *Dispatcher) Stop(ctx context.Context) error {
	close(d.stopCh)
	return nil
}

// Name implements system.Service.
func (d *Dispatcher) Name() string { return "events.dispatcher" }

// Start implements system.Service; the worker pool already runs from
// NewDispatcher, Start is a no-op kept for lifecycle symmetry.
func (d *Dispatcher) Start(ctx context.Context) error { return nil }
