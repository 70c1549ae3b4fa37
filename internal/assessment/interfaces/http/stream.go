package http

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"shipboard-health/internal/assessment/application"
	"shipboard-health/internal/auth"
)

const clientBuffer = 16

type streamMessage struct {
	event       string
	tenantID    string
	equipmentID string
	payload     []byte
}

type subscription struct {
	ch          chan streamMessage
	tenantID    string
	equipmentID string
}

func (s subscription) accepts(msg streamMessage) bool {
	if s.equipmentID != "" && s.equipmentID != msg.equipmentID {
		return false
	}
	if s.tenantID != "" && s.tenantID != msg.tenantID {
		return false
	}
	return true
}

// SSEBroker fans out assessment events to connected clients. Slow clients
// drop events rather than block publishers.
type SSEBroker struct {
	mu      sync.Mutex
	clients map[chan streamMessage]subscription
}

// NewSSEBroker constructs a broker.
func NewSSEBroker() *SSEBroker {
	return &SSEBroker{clients: make(map[chan streamMessage]subscription)}
}

// Notify implements application.ResultNotifier.
func (b *SSEBroker) Notify(_ context.Context, event application.AssessmentEvent) {
	if b == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	b.broadcast(streamMessage{
		event:       event.Type,
		tenantID:    event.TenantID,
		equipmentID: event.EquipmentID,
		payload:     payload,
	})
}

// Subscribe registers a client. A tenant-scoped client only receives events
// stamped with that tenant; an empty equipment filter matches every equipment.
func (b *SSEBroker) Subscribe(tenantID, equipmentID string) chan streamMessage {
	if b == nil {
		return nil
	}
	ch := make(chan streamMessage, clientBuffer)
	b.mu.Lock()
	b.clients[ch] = subscription{ch: ch, tenantID: tenantID, equipmentID: equipmentID}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a client channel.
func (b *SSEBroker) Unsubscribe(ch chan streamMessage) {
	if b == nil || ch == nil {
		return
	}
	b.mu.Lock()
	delete(b.clients, ch)
	b.mu.Unlock()
	close(ch)
}

// Clients returns the number of connected clients.
func (b *SSEBroker) Clients() int {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

func (b *SSEBroker) broadcast(msg streamMessage) {
	b.mu.Lock()
	targets := make([]chan streamMessage, 0, len(b.clients))
	for ch, sub := range b.clients {
		if sub.accepts(msg) {
			targets = append(targets, ch)
		}
	}
	// send under the lock so Unsubscribe cannot close a channel mid-send
	for _, ch := range targets {
		select {
		case ch <- msg:
		default:
		}
	}
	b.mu.Unlock()
}

// StreamHandler serves the SSE assessment stream.
type StreamHandler struct {
	broker           *SSEBroker
	equipmentChecker auth.EquipmentTenantChecker
}

// NewStreamHandler constructs a stream handler.
func NewStreamHandler(broker *SSEBroker, equipmentChecker auth.EquipmentTenantChecker) *StreamHandler {
	return &StreamHandler{broker: broker, equipmentChecker: equipmentChecker}
}

// ServeHTTP handles GET /api/v1/assessments/stream[?equipment_id=].
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

	tenantID := auth.TenantIDFromContext(r.Context())
	equipmentID := r.URL.Query().Get("equipment_id")
	if identity, ok := auth.IdentityFromContext(r.Context()); ok && len(identity.Vessels) > 0 && equipmentID == "" {
		http.Error(w, "equipment_id is required for vessel-scoped callers", http.StatusBadRequest)
		return
	}
	if h.equipmentChecker != nil && tenantID != "" && equipmentID != "" {
		if err := h.equipmentChecker.EnsureEquipmentTenant(r.Context(), tenantID, equipmentID); err != nil {
			respondTenantError(w, err)
			return
		}
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := h.broker.Subscribe(tenantID, equipmentID)
	if ch == nil {
		http.Error(w, "stream not ready", http.StatusServiceUnavailable)
		return
	}
	defer h.broker.Unsubscribe(ch)

	_, _ = w.Write([]byte("event: ready\ndata: {}\n\n"))
	flusher.Flush()

	done := r.Context().Done()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write([]byte("event: " + msg.event + "\n"))
			_, _ = w.Write([]byte("data: "))
			_, _ = w.Write(msg.payload)
			_, _ = w.Write([]byte("\n\n"))
			flusher.Flush()
		case <-done:
			return
		}
	}
}
