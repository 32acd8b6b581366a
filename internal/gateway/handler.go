package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"
)

// RoomStats is what the stats endpoint needs from the room store.
type RoomStats interface {
	RoomCounts() map[string]int
}

// WebSocketHandler handles WebSocket upgrade requests and the stats
// endpoint.
type WebSocketHandler struct {
	connectionManager *ConnectionManager
	stats             RoomStats
}

// NewWebSocketHandler creates a new WebSocket handler.
func NewWebSocketHandler(cm *ConnectionManager, stats RoomStats) *WebSocketHandler {
	return &WebSocketHandler{
		connectionManager: cm,
		stats:             stats,
	}
}

// HandleConnection upgrades the request to a WebSocket connection. Room
// membership is established afterwards through join-room events, not here.
func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	if err := h.connectionManager.UpgradeConnection(w, r); err != nil {
		http.Error(w, "failed to upgrade connection", http.StatusInternalServerError)
		return
	}
	// Connection is now handled by the connection manager
}

// StatsResponse reports live connection and room counts.
type StatsResponse struct {
	TotalConnections int            `json:"total_connections"`
	ActiveRooms      int            `json:"active_rooms"`
	RoomParticipants map[string]int `json:"room_participants"`
}

// HandleStats returns statistics about active connections and rooms.
func (h *WebSocketHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	counts := h.stats.RoomCounts()
	resp := StatsResponse{
		TotalConnections: h.connectionManager.ConnectionCount(),
		ActiveRooms:      len(counts),
		RoomParticipants: counts,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Error().Err(err).Msg("failed to write stats response")
	}
}

// RegisterRoutes registers WebSocket routes with an HTTP mux.
func (h *WebSocketHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", h.HandleConnection)
	mux.HandleFunc("/ws/stats", h.HandleStats)
}
