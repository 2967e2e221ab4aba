package server

import (
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/callsight/callsight/internal/batch"
	"github.com/callsight/callsight/internal/observe"
)

// subscriberBuffer is the per-subscriber event queue depth. A subscriber that
// falls further behind than this loses events rather than stalling the
// pipeline.
const subscriberBuffer = 64

// Hub fans pipeline progress events out to WebSocket subscribers. It
// implements [batch.ProgressSink], so the same instance is installed on the
// orchestrator and on the server.
//
// Publish never blocks: slow subscribers drop events.
type Hub struct {
	mu   sync.Mutex
	subs map[chan batch.Event]struct{}
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[chan batch.Event]struct{})}
}

// Publish delivers ev to every current subscriber.
func (h *Hub) Publish(ev batch.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribe registers a new event channel. The returned cancel function must
// be called to release the subscription; the channel is closed afterwards.
func (h *Hub) Subscribe() (<-chan batch.Event, func()) {
	ch := make(chan batch.Event, subscriberBuffer)

	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if _, ok := h.subs[ch]; ok {
			delete(h.subs, ch)
			close(ch)
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// SubscriberCount reports how many subscribers are currently attached.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

var _ batch.ProgressSink = (*Hub)(nil)

// handleProgress upgrades the request to a WebSocket and streams pipeline
// events as JSON text messages until the client disconnects.
func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	log := observe.Logger(r.Context())

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		log.Warn("websocket accept failed", "err", err)
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream aborted")

	// No client messages are expected; CloseRead cancels the context when the
	// peer closes or sends anything unexpected.
	ctx := conn.CloseRead(r.Context())

	events, cancel := s.hub.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "client closed")
			return
		case ev := <-events:
			if err := wsjson.Write(ctx, conn, ev); err != nil {
				log.Debug("progress write failed", "err", err)
				return
			}
		}
	}
}
