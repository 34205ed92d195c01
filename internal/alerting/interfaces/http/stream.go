package http

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	alerting "fleetops-cloud/internal/alerting/domain"
	"fleetops-cloud/internal/observability/metrics"
)

// SSEBroker fans out event payloads to connected stream clients.
// Delivery is best-effort: slow clients drop frames instead of
// blocking the publisher.
type SSEBroker struct {
	name    string
	mu      sync.Mutex
	clients map[chan []byte]struct{}
}

// NewSSEBroker constructs a broker. The name labels the connected
// client gauge.
func NewSSEBroker(name string) *SSEBroker {
	return &SSEBroker{name: name, clients: make(map[chan []byte]struct{})}
}

// Send broadcasts an alert message to all stream clients. It satisfies
// the alert channel contract and never reports delivery failures.
func (b *SSEBroker) Send(_ context.Context, msg alerting.Message) error {
	if b == nil {
		return nil
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	b.Publish(payload)
	return nil
}

// Publish broadcasts a raw payload to all clients.
func (b *SSEBroker) Publish(payload []byte) {
	if b == nil {
		return
	}
	b.mu.Lock()
	clients := make([]chan []byte, 0, len(b.clients))
	for ch := range b.clients {
		clients = append(clients, ch)
	}
	b.mu.Unlock()
	for _, ch := range clients {
		select {
		case ch <- payload:
		default:
		}
	}
}

// Subscribe registers a new client channel.
func (b *SSEBroker) Subscribe() chan []byte {
	if b == nil {
		return nil
	}
	ch := make(chan []byte, 16)
	b.mu.Lock()
	b.clients[ch] = struct{}{}
	b.mu.Unlock()
	metrics.IncStreamClients(b.name)
	return ch
}

// Unsubscribe removes a client channel.
func (b *SSEBroker) Unsubscribe(ch chan []byte) {
	if b == nil || ch == nil {
		return
	}
	b.mu.Lock()
	delete(b.clients, ch)
	b.mu.Unlock()
	metrics.DecStreamClients(b.name)
	close(ch)
}

// StreamHandler serves one SSE feed off a broker.
type StreamHandler struct {
	broker *SSEBroker
	event  string
}

// NewStreamHandler constructs a stream handler emitting frames with the
// given event name.
func NewStreamHandler(broker *SSEBroker, event string) *StreamHandler {
	if event == "" {
		event = "message"
	}
	return &StreamHandler{broker: broker, event: event}
}

// ServeHTTP streams broker payloads as server-sent events.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.broker == nil {
		http.Error(w, "stream not ready", http.StatusServiceUnavailable)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "stream unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := h.broker.Subscribe()
	if ch == nil {
		http.Error(w, "stream not ready", http.StatusServiceUnavailable)
		return
	}
	defer h.broker.Unsubscribe(ch)

	_, _ = w.Write([]byte("event: ready\ndata: {}\n\n"))
	flusher.Flush()

	notify := r.Context().Done()
	for {
		select {
		case payload, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write([]byte("event: " + h.event + "\n"))
			_, _ = w.Write([]byte("data: "))
			_, _ = w.Write(payload)
			_, _ = w.Write([]byte("\n\n"))
			flusher.Flush()
		case <-notify:
			return
		}
	}
}
