package gateway

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/touchtyped/typeduel/go/internal/httpjson"
)

// WebSocketHandler handles WebSocket upgrade requests for duel connections
type WebSocketHandler struct {
	connectionManager *ConnectionManager
}

func NewWebSocketHandler(cm *ConnectionManager) *WebSocketHandler {
	return &WebSocketHandler{
		connectionManager: cm,
	}
}

// HandleConnection upgrades GET /ws. The optional playerId query parameter
// identifies the player so MATCH_FOUND can reach this connection.
func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	playerID := r.URL.Query().Get("playerId")

	// Upgrade writes its own error response on failure.
	if err := h.connectionManager.UpgradeConnection(w, r, playerID); err != nil {
		log.Error().
			Err(err).
			Str("player_id", playerID).
			Msg("failed to upgrade WebSocket connection")
	}
}

func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	httpjson.Write(w, http.StatusOK, h.connectionManager.GetConnectionStats())
}
