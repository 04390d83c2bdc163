package match

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/touchtyped/typeduel/go/internal/httpjson"
)

// Service exposes pairing and room lookup over HTTP.
type Service struct {
	coordinator *Coordinator
}

// NewService creates a new match service
func NewService(coordinator *Coordinator) *Service {
	return &Service{coordinator: coordinator}
}

// QueueResponse carries the match id, empty while waiting for an opponent.
type QueueResponse struct {
	MatchID string `json:"matchId"`
}

func (s *Service) RegisterRoutes(r chi.Router) {
	r.Route("/match", func(r chi.Router) {
		r.Post("/queue", s.HandleQueue)
		r.Get("/room/{matchId}", s.HandleGetRoom)
		r.Delete("/room/{matchId}", s.HandleCloseRoom)
	})
}

func (s *Service) HandleQueue(w http.ResponseWriter, r *http.Request) {
	playerID := r.URL.Query().Get("playerId")

	matchID, err := s.coordinator.Queue(playerID)
	if err != nil {
		if errors.Is(err, ErrInvalidPlayer) {
			httpjson.Error(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Error().Err(err).Str("player_id", playerID).Msg("failed to queue player")
		httpjson.Error(w, http.StatusInternalServerError, "failed to queue player")
		return
	}

	httpjson.Write(w, http.StatusOK, QueueResponse{MatchID: matchID})
}

func (s *Service) HandleGetRoom(w http.ResponseWriter, r *http.Request) {
	room, err := s.coordinator.GetRoom(chi.URLParam(r, "matchId"))
	if err != nil {
		httpjson.Error(w, http.StatusNotFound, err.Error())
		return
	}
	httpjson.Write(w, http.StatusOK, room)
}

func (s *Service) HandleCloseRoom(w http.ResponseWriter, r *http.Request) {
	if err := s.coordinator.CloseRoom(chi.URLParam(r, "matchId")); err != nil {
		httpjson.Error(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
