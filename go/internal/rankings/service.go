package rankings

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/touchtyped/typeduel/go/internal/httpjson"
	"github.com/touchtyped/typeduel/go/internal/models"
)

// Service exposes the leaderboard over HTTP.
type Service struct {
	store *Store
}

// NewService creates a new rankings service
func NewService(store *Store) *Service {
	return &Service{store: store}
}

// SubmitResponse is returned by POST /api/rankings.
type SubmitResponse struct {
	Accepted bool   `json:"accepted"`
	Message  string `json:"message"`
	Position int    `json:"position"`
}

// RegisterRoutes mounts the leaderboard endpoints on r.
func (s *Service) RegisterRoutes(r chi.Router) {
	r.Route("/api/rankings", func(r chi.Router) {
		r.Get("/", s.HandleList)
		r.Post("/", s.HandleSubmit)
		r.Delete("/", s.HandleClear)
		r.Get("/position/{playerName}", s.HandlePosition)
	})
}

// HandleList returns the leaderboard. Optional query parameters: gameMode
// filters by mode, limit keeps the top N.
func (s *Service) HandleList(w http.ResponseWriter, r *http.Request) {
	var rankings []models.PlayerRanking
	if mode := r.URL.Query().Get("gameMode"); mode != "" {
		rankings = s.store.ByGameMode(mode)
	} else {
		rankings = s.store.All()
	}

	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			httpjson.Error(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		if limit < len(rankings) {
			rankings = rankings[:limit]
		}
	}

	httpjson.Write(w, http.StatusOK, rankings)
}

// HandleSubmit offers a ranking to the leaderboard.
func (s *Service) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	var ranking models.PlayerRanking
	if err := httpjson.Decode(r, &ranking); err != nil {
		httpjson.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	accepted, err := s.store.Submit(r.Context(), ranking)
	if err != nil {
		if errors.Is(err, ErrInvalidRanking) {
			httpjson.Error(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Error().Err(err).Str("player", ranking.PlayerName).Msg("failed to submit ranking")
		httpjson.Error(w, http.StatusInternalServerError, "failed to submit ranking")
		return
	}

	resp := SubmitResponse{
		Accepted: accepted,
		Position: s.store.Position(ranking.PlayerName),
	}
	status := http.StatusOK
	if accepted {
		resp.Message = "ranking added"
		status = http.StatusCreated
	} else {
		resp.Message = "kept existing better ranking"
	}
	httpjson.Write(w, status, resp)
}

// HandlePosition returns the player's 1-based rank, or -1.
func (s *Service) HandlePosition(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "playerName")
	// chi matches on RawPath when the request carries escapes such as %2F
	if r.URL.RawPath != "" {
		unescaped, err := url.PathUnescape(name)
		if err != nil {
			httpjson.Error(w, http.StatusBadRequest, "invalid player name")
			return
		}
		name = unescaped
	}
	httpjson.Write(w, http.StatusOK, s.store.Position(name))
}

// HandleClear empties the leaderboard.
func (s *Service) HandleClear(w http.ResponseWriter, r *http.Request) {
	s.store.Clear(r.Context())
	w.WriteHeader(http.StatusNoContent)
}
