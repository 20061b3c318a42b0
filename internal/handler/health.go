package handler

import (
	"context"
	"net/http"
)

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	queueConnected func() bool
	cache          Pinger
	store          Pinger
}

// NewHealthHandler creates a new health handler. Nil checks are skipped,
// so a dev process without Redis still reports ready.
func NewHealthHandler(queueConnected func() bool, cache, store Pinger) *HealthHandler {
	return &HealthHandler{
		queueConnected: queueConnected,
		cache:          cache,
		store:          store,
	}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.queueConnected != nil && !h.queueConnected() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "queue not connected",
		})
		return
	}

	if h.store != nil {
		if err := h.store.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"reason": "store unreachable",
			})
			return
		}
	}

	// Cache outage degrades reads and admission policy but does not make
	// the service unready.
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}
