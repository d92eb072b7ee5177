package ws

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"nhooyr.io/websocket"
)

// Hub streams local events to websocket clients subscribed to a product. It implements
// ports.EventPublisher so the outbox worker can fan events out to it.
type Hub struct {
	logger         *slog.Logger
	originPatterns []string
	bufferSize     int
	writeTimeout   time.Duration

	mu   sync.Mutex
	subs map[string]map[*subscriber]struct{}
}

type subscriber struct {
	ch chan []byte
}

func NewHub(logger *slog.Logger, originPatterns []string, bufferSize int) *Hub {
	if bufferSize <= 0 {
		bufferSize = 32
	}
	return &Hub{
		logger:         logger,
		originPatterns: originPatterns,
		bufferSize:     bufferSize,
		writeTimeout:   5 * time.Second,
		subs:           map[string]map[*subscriber]struct{}{},
	}
}

// Publish delivers payload to every subscriber of the product named by partitionKey. A subscriber
// whose buffer is full misses the event.
func (h *Hub) Publish(ctx context.Context, eventType string, payload []byte, partitionKey string) error {
	h.mu.Lock()
	targets := make([]*subscriber, 0, len(h.subs[partitionKey]))
	for s := range h.subs[partitionKey] {
		targets = append(targets, s)
	}
	h.mu.Unlock()

	for _, s := range targets {
		select {
		case s.ch <- payload:
		default:
			h.logger.WarnContext(ctx, "websocket subscriber lagging, event dropped",
				"module", "ws.hub",
				"layer", "adapter",
				"operation", "publish",
				"outcome", "dropped",
				"event_type", eventType,
				"product_id", partitionKey,
			)
		}
	}
	return nil
}

func (h *Hub) Subscribers(productID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[productID])
}

// Serve upgrades the request and streams the product's events until the client goes away.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, productID string) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.originPatterns})
	if err != nil {
		h.logger.WarnContext(r.Context(), "websocket upgrade failed",
			"module", "ws.hub",
			"layer", "adapter",
			"operation", "serve",
			"outcome", "failure",
			"product_id", productID,
			"error", err,
		)
		return
	}
	defer conn.CloseNow()

	sub := &subscriber{ch: make(chan []byte, h.bufferSize)}
	h.add(productID, sub)
	defer h.remove(productID, sub)

	ctx := conn.CloseRead(r.Context())
	for {
		select {
		case <-ctx.Done():
			return
		case payload := <-sub.ch:
			writeCtx, cancel := context.WithTimeout(ctx, h.writeTimeout)
			err := conn.Write(writeCtx, websocket.MessageText, payload)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

func (h *Hub) add(productID string, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[productID] == nil {
		h.subs[productID] = map[*subscriber]struct{}{}
	}
	h.subs[productID][sub] = struct{}{}
}

func (h *Hub) remove(productID string, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs[productID], sub)
	if len(h.subs[productID]) == 0 {
		delete(h.subs, productID)
	}
}
