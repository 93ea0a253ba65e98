package ws

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"relaychat/internal/metrics"
)

// Channel is a live duplex connection that frames can be pushed to. WriteJSON
// must be safe for concurrent use.
type Channel interface {
	WriteJSON(v any) error
	Close() error
}

type entry struct {
	connID       string
	sessionToken string
	identity     string
	ch           Channel
}

// Hub is the registry of live connections. An identity may hold several
// connections at once (tabs, devices); each is keyed by its own connection
// ID.
type Hub struct {
	mu         sync.RWMutex
	conns      map[string]*entry
	byIdentity map[string]map[string]*entry
	log        *zap.Logger
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		conns:      make(map[string]*entry),
		byIdentity: make(map[string]map[string]*entry),
		log:        log.Named("hub"),
	}
}

// Register adds a connection. Registering an existing connID replaces it.
func (h *Hub) Register(connID, sessionToken, identity string, ch Channel) {
	e := &entry{connID: connID, sessionToken: sessionToken, identity: identity, ch: ch}

	h.mu.Lock()
	defer h.mu.Unlock()

	if old, ok := h.conns[connID]; ok {
		h.removeLocked(old)
	}
	h.conns[connID] = e
	if h.byIdentity[identity] == nil {
		h.byIdentity[identity] = make(map[string]*entry)
	}
	h.byIdentity[identity][connID] = e
	metrics.LiveConnections.Set(float64(len(h.conns)))
}

// Unregister removes a connection. Unknown IDs are ignored.
func (h *Hub) Unregister(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if e, ok := h.conns[connID]; ok {
		h.removeLocked(e)
	}
	metrics.LiveConnections.Set(float64(len(h.conns)))
}

func (h *Hub) removeLocked(e *entry) {
	delete(h.conns, e.connID)
	if set, ok := h.byIdentity[e.identity]; ok {
		delete(set, e.connID)
		if len(set) == 0 {
			delete(h.byIdentity, e.identity)
		}
	}
}

// PushTo writes payload to every live connection of identity and returns how
// many writes succeeded. A failing connection is closed and skipped; its
// reader unregisters it.
func (h *Hub) PushTo(identity string, payload any) int {
	h.mu.RLock()
	targets := make([]*entry, 0, len(h.byIdentity[identity]))
	for _, e := range h.byIdentity[identity] {
		targets = append(targets, e)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, e := range targets {
		if err := e.ch.WriteJSON(payload); err != nil {
			metrics.DeliveriesTotal.WithLabelValues("failed").Inc()
			h.log.Warn("push failed", zap.String("identity", identity), zap.String("conn_id", e.connID), zap.Error(err))
			_ = e.ch.Close()
			continue
		}
		metrics.DeliveriesTotal.WithLabelValues("ok").Inc()
		delivered++
	}
	return delivered
}

// Deliver pushes frame to identity on this instance.
func (h *Hub) Deliver(_ context.Context, identity string, frame any) {
	h.PushTo(identity, frame)
}

// Count returns the number of registered connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// IsOnline reports whether identity has at least one live connection here.
func (h *Hub) IsOnline(identity string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byIdentity[identity]) > 0
}
