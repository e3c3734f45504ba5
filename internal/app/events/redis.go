package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/maieve/fleet-orchestrator/pkg/logger"
)

// RedisBus publishes events onto Redis Streams (one stream per topic)
// and mirrors delivery through a local Dispatcher, giving the
// at-least-once fan-out §5 requires for the metric-sample stream while
// keeping in-process handler wiring unchanged. Nothing in this module
// constructs one: app.New always uses the in-process Dispatcher, whatever
// the Redis configuration.
type RedisBus struct {
	client *redis.Client
	local  *Dispatcher
	log    *logger.Logger
	group  string

	mu      sync.Mutex
	streams map[string]struct{}

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewRedisBus wraps a redis client. group is the consumer-group name
// used for XREADGROUP, allowing multiple orchestrator replicas to share
// delivery without duplicate processing.
func NewRedisBus(client *redis.Client, group string, log *logger.Logger) *RedisBus {
	if log == nil {
		log = logger.NewDefault("events")
	}
	return &RedisBus{
		client:  client,
		local:   NewDispatcher(Config{}),
		log:     log,
		group:   group,
		streams: make(map[string]struct{}),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

func streamKey(topic string) string { return "maieve:events:" + topic }

// Publish writes the event onto the topic's Redis stream as a JSON
// payload field.
func (b *RedisBus) Publish(ctx context.Context, topic string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload for %s: %w", topic, err)
	}
	return b.client.XAdd(ctx, &redis.XAddArgs{
		Stream: streamKey(topic),
		Values: map[string]any{"payload": string(data), "time": time.Now().UTC().Format(time.RFC3339Nano)},
	}).Err()
}

// Subscribe registers a local handler and, the first time a topic is
// subscribed, starts a consumer-group reader loop for that topic's
// stream.
func (b *RedisBus) Subscribe(topic string, handler Handler) {
	b.local.Subscribe(topic, handler)

	b.mu.Lock()
	_, already := b.streams[topic]
	if !already {
		b.streams[topic] = struct{}{}
	}
	b.mu.Unlock()
	if already {
		return
	}

	ctx := context.Background()
	_ = b.client.XGroupCreateMkStream(ctx, streamKey(topic), b.group, "$").Err()
	go b.consume(topic)
}

func (b *RedisBus) consume(topic string) {
	ctx := context.Background()
	consumer := fmt.Sprintf("consumer-%d", time.Now().UnixNano())
	for {
		select {
		case <-b.stopCh:
			return
		default:
		}
		res, err := b.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    b.group,
			Consumer: consumer,
			Streams:  []string{streamKey(topic), ">"},
			Count:    32,
			Block:    5 * time.Second,
		}).Result()
		if err != nil {
			if err != redis.Nil {
				b.log.WithField("topic", topic).WithField("error", err).Debug("redis stream read failed, retrying")
				time.Sleep(time.Second)
			}
			continue
		}
		for _, stream := range res {
			for _, msg := range stream.Messages {
				raw, _ := msg.Values["payload"].(string)
				var payload any
				if err := json.Unmarshal([]byte(raw), &payload); err != nil {
					b.log.WithField("topic", topic).WithField("error", err).Warn("dropping malformed event payload")
					b.client.XAck(ctx, streamKey(topic), b.group, msg.ID)
					continue
				}
				if err := b.local.Publish(ctx, topic, payload); err == nil {
					b.client.XAck(ctx, streamKey(topic), b.group, msg.ID)
				}
			}
		}
	}
}

// Name implements system.Service.
func (b *RedisBus) Name() string { return "events.redis-bus" }

// Start implements system.Service; consumer loops start lazily on
// Subscribe, so Start is a no-op.
func (b *RedisBus) Start(ctx context.Context) error { return nil }

// Stop implements system.Service.
func (b *RedisBus) Stop(ctx context.Context) error {
	close(b.stopCh)
	return b.local.Stop(ctx)
}
