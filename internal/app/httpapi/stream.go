package httpapi

import (
	"context"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/maieve/fleet-orchestrator/internal/app/events"
	"github.com/maieve/fleet-orchestrator/internal/orchestrator"
	"github.com/maieve/fleet-orchestrator/internal/trigger"
	"github.com/maieve/fleet-orchestrator/internal/upgrade"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// streamMessage is one event forwarded to a connected dashboard.
type streamMessage struct {
	Topic   string `json:"topic"`
	Payload any    `json:"payload"`
}

// streamTopics is the set this tap fans out: rule state changes,
// service diffs, and new-version notices — a read-only tap, not a UI.
var streamTopics = []string{
	trigger.TopicRulesetTriggered,
	orchestrator.TopicServiceUpdated,
	upgrade.TopicNewVersion,
}

// streamEvents handles GET /v1/stream/events: upgrades to a websocket
// and forwards every event on streamTopics until the client disconnects.
func (h *Handler) streamEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	var writeMu sync.Mutex
	forward := func(ctx context.Context, evt events.Event) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteJSON(streamMessage{Topic: evt.Topic, Payload: evt.Payload})
	}

	for _, topic := range streamTopics {
		h.app.Subscribe(topic, forward)
	}

	// Block until the client disconnects; gorilla/websocket requires a
	// reader goroutine to observe close frames and pings.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}
