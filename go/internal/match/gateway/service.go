package gateway

import (
	"context"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/touchtyped/typeduel/go/internal/models"
)

// Service is the realtime duel gateway. It serves the websocket endpoint and
// receives coordinator lifecycle notifications, turning them into frames for
// the bound connections.
type Service struct {
	connectionManager *ConnectionManager
	wsHandler         *WebSocketHandler
}

// Config holds configuration for the gateway service
type Config struct {
	ConnectionConfig ConnectionConfig
}

func DefaultConfig() Config {
	return Config{
		ConnectionConfig: DefaultConnectionConfig(),
	}
}

func NewService(config Config, coordinator Coordinator, metrics MetricsCollector) *Service {
	connectionManager := NewConnectionManager(config.ConnectionConfig, coordinator, metrics)
	return &Service{
		connectionManager: connectionManager,
		wsHandler:         NewWebSocketHandler(connectionManager),
	}
}

// Start runs the broadcast loop until ctx is cancelled.
func (s *Service) Start(ctx context.Context) {
	log.Info().Msg("starting duel gateway service")
	s.connectionManager.Start(ctx)
	log.Info().Msg("duel gateway service stopped")
}

func (s *Service) RegisterRoutes(r chi.Router) {
	r.Get("/ws", s.wsHandler.HandleConnection)
	r.Get("/ws/stats", s.wsHandler.HandleConnectionStats)
}

// Stats returns the current connection counts.
func (s *Service) Stats() ConnectionStats {
	return s.connectionManager.GetConnectionStats()
}

// MatchCreated sends MATCH_FOUND to both players and binds their
// connections to the new match.
func (s *Service) MatchCreated(room models.MatchRoom) {
	s.connectionManager.Broadcast(BroadcastMessage{
		MatchID:   room.MatchID,
		PlayerIDs: []string{room.PlayerA, room.PlayerB},
		Payload:   newMatchFound(room),
		Bind:      true,
	})
}

// ScoreUpdated sends SCORE_UPDATE to every connection bound to the match.
func (s *Service) ScoreUpdated(room models.MatchRoom) {
	s.connectionManager.Broadcast(BroadcastMessage{
		MatchID: room.MatchID,
		Payload: newScoreUpdate(room),
	})
}

// MatchClosed sends MATCH_CLOSED and unbinds the match's connections.
func (s *Service) MatchClosed(room models.MatchRoom, reason string) {
	s.connectionManager.Broadcast(BroadcastMessage{
		MatchID: room.MatchID,
		Payload: MatchClosed{Type: TypeMatchClosed, MatchID: room.MatchID, Reason: reason},
		Unbind:  true,
	})
}
