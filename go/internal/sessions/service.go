package sessions

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/touchtyped/typeduel/go/internal/httpjson"
)

type Service struct {
	app *App
}

// NewService creates a new sessions service
func NewService(app *App) *Service {
	return &Service{app: app}
}

func (s *Service) RegisterRoutes(r chi.Router) {
	r.Route("/api/sessions", func(r chi.Router) {
		r.Post("/", s.HandleReplay)
		r.Get("/{sessionId}", s.HandleGet)
	})
}

func (s *Service) HandleReplay(w http.ResponseWriter, r *http.Request) {
	var req ReplayRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := s.app.Replay(r.Context(), req)
	if err != nil {
		if errors.Is(err, ErrInvalidSession) {
			httpjson.Error(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Error().Err(err).Str("player", req.PlayerName).Msg("failed to replay session")
		httpjson.Error(w, http.StatusInternalServerError, "failed to replay session")
		return
	}

	httpjson.Write(w, http.StatusCreated, resp)
}

func (s *Service) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "sessionId"))
	if err != nil {
		httpjson.Error(w, http.StatusBadRequest, "invalid session id")
		return
	}

	session, err := s.app.Get(r.Context(), id)
	switch {
	case errors.Is(err, ErrArchiveDisabled):
		httpjson.Error(w, http.StatusNotImplemented, err.Error())
	case errors.Is(err, ErrSessionNotFound):
		httpjson.Error(w, http.StatusNotFound, err.Error())
	case err != nil:
		log.Error().Err(err).Str("session_id", id.String()).Msg("failed to get session")
		httpjson.Error(w, http.StatusInternalServerError, "failed to get session")
	default:
		httpjson.Write(w, http.StatusOK, session)
	}
}
