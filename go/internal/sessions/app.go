package sessions

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/touchtyped/typeduel/go/internal/models"
	"github.com/touchtyped/typeduel/go/internal/typing"
)

var (
	ErrInvalidSession  = errors.New("invalid session")
	ErrSessionNotFound = errors.New("session not found")
	ErrArchiveDisabled = errors.New("session archive is not configured")
)

// SessionRepository archives finished sessions.
type SessionRepository interface {
	Archive(ctx context.Context, session Session) error
	Get(ctx context.Context, id uuid.UUID) (*Session, error)
}

// RankingSubmitter is what the app needs from the leaderboard.
type RankingSubmitter interface {
	Submit(ctx context.Context, ranking models.PlayerRanking) (bool, error)
	Position(playerName string) int
}

// MetricsCollector receives archive outcomes.
type MetricsCollector interface {
	RecordSessionArchived(archived bool)
}

type NoOpMetricsCollector struct{}

func (NoOpMetricsCollector) RecordSessionArchived(bool) {}

// App replays keystroke logs and hands the outcome to the archive and the
// leaderboard.
type App struct {
	repo     SessionRepository
	rankings RankingSubmitter
	clock    clockwork.Clock
	metrics  MetricsCollector
	validate *validator.Validate
}

// NewApp creates a sessions App. repo may be nil, in which case sessions are
// replayed but not archived.
func NewApp(repo SessionRepository, rankings RankingSubmitter, clock clockwork.Clock, metrics MetricsCollector) *App {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if metrics == nil {
		metrics = NoOpMetricsCollector{}
	}
	return &App{
		repo:     repo,
		rankings: rankings,
		clock:    clock,
		metrics:  metrics,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Replay runs the keystrokes through a fresh session log. Archive and
// leaderboard failures are logged and reported in the response rather than
// failing the replay.
func (a *App) Replay(ctx context.Context, req ReplayRequest) (*ReplayResponse, error) {
	if err := a.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}

	typed := typing.NewSession(req.TargetText)
	for _, k := range req.Keys {
		typed.RecordKeystroke(k.Key, k.TimestampMs)
	}

	resp := &ReplayResponse{
		Session: Session{
			ID:         uuid.New(),
			PlayerName: req.PlayerName,
			TargetText: typed.TargetText(),
			GameMode:   req.GameMode,
			Events:     typed.Events(),
			Result:     typed.Result(req.WPM),
			CreatedAt:  a.clock.Now().UTC(),
		},
	}

	if a.repo != nil {
		if err := a.repo.Archive(ctx, resp.Session); err != nil {
			log.Error().
				Err(err).
				Str("session_id", resp.ID.String()).
				Str("player", req.PlayerName).
				Msg("failed to archive typing session")
		} else {
			resp.Archived = true
		}
		a.metrics.RecordSessionArchived(resp.Archived)
	}

	if req.SubmitRanking && a.rankings != nil {
		accepted, err := a.rankings.Submit(ctx, models.PlayerRanking{
			PlayerName: req.PlayerName,
			WPM:        resp.Result.WPM,
			Accuracy:   resp.Result.Accuracy,
			GameMode:   req.GameMode,
			Timestamp:  resp.CreatedAt,
		})
		if err != nil {
			log.Warn().
				Err(err).
				Str("session_id", resp.ID.String()).
				Str("player", req.PlayerName).
				Int("wpm", resp.Result.WPM).
				Msg("failed to submit ranking for typing session")
		} else {
			resp.Position = a.rankings.Position(req.PlayerName)
		}
		resp.RankingAccepted = &accepted
	}

	return resp, nil
}

// Get returns an archived session.
func (a *App) Get(ctx context.Context, id uuid.UUID) (*Session, error) {
	if a.repo == nil {
		return nil, ErrArchiveDisabled
	}
	session, err := a.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return session, nil
}
