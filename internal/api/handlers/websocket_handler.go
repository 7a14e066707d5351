package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"fanzone/internal/domain"
	"fanzone/internal/infrastructure/websocket"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// GatewayHandlers mounts the browser-facing routes of the gateway.
type GatewayHandlers struct {
	wsHandler   *websocket.WebSocketHandler
	connManager domain.ConnectionManager
	gatherer    prometheus.Gatherer
	instanceID  string
}

func NewGatewayHandlers(wsHandler *websocket.WebSocketHandler, connManager domain.ConnectionManager,
	gatherer prometheus.Gatherer, instanceID string) *GatewayHandlers {
	return &GatewayHandlers{
		wsHandler:   wsHandler,
		connManager: connManager,
		gatherer:    gatherer,
		instanceID:  instanceID,
	}
}

func (h *GatewayHandlers) Register(router *mux.Router) {
	router.HandleFunc("/ws/events", h.wsHandler.HandleConnection)
	router.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
}

func (h *GatewayHandlers) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":      "ok",
		"service":     "gateway",
		"instance_id": h.instanceID,
		"connections": h.connManager.Count(),
		"timestamp":   time.Now().Format(time.RFC3339),
	})
}
