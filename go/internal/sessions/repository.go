package sessions

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"

	"github.com/touchtyped/typeduel/go/internal/models"
	"github.com/touchtyped/typeduel/go/internal/sqlutil"
)

const schema = `
CREATE TABLE IF NOT EXISTS typing_sessions (
	id           UUID PRIMARY KEY,
	player_name  TEXT NOT NULL,
	target_text  TEXT NOT NULL,
	game_mode    TEXT,
	wpm          INTEGER NOT NULL,
	accuracy     DOUBLE PRECISION NOT NULL,
	duration_ms  BIGINT NOT NULL,
	keystrokes   INTEGER NOT NULL,
	errors       INTEGER NOT NULL,
	complete     BOOLEAN NOT NULL,
	events       JSONB,
	created_at   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS typing_sessions_player_idx ON typing_sessions (player_name, created_at DESC);
`

type queries struct {
	db sqlutil.DBTX
}

func newQueries(db sqlutil.DBTX) *queries {
	return &queries{db: db}
}

type sessionRow struct {
	ID         uuid.UUID
	PlayerName string
	TargetText string
	GameMode   sql.NullString
	WPM        int32
	Accuracy   float64
	DurationMs int64
	Keystrokes int32
	Errors     int32
	Complete   bool
	Events     pqtype.NullRawMessage
	CreatedAt  time.Time
}

const insertSession = `
INSERT INTO typing_sessions
	(id, player_name, target_text, game_mode, wpm, accuracy, duration_ms, keystrokes, errors, complete, events, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

func (q *queries) insertSession(ctx context.Context, row sessionRow) error {
	_, err := q.db.ExecContext(ctx, insertSession,
		row.ID, row.PlayerName, row.TargetText, row.GameMode,
		row.WPM, row.Accuracy, row.DurationMs, row.Keystrokes, row.Errors, row.Complete,
		row.Events, row.CreatedAt,
	)
	return err
}

const getSession = `
SELECT id, player_name, target_text, game_mode, wpm, accuracy, duration_ms, keystrokes, errors, complete, events, created_at
FROM typing_sessions WHERE id = $1`

func (q *queries) getSession(ctx context.Context, id uuid.UUID) (sessionRow, error) {
	var row sessionRow
	err := q.db.QueryRowContext(ctx, getSession, id).Scan(
		&row.ID, &row.PlayerName, &row.TargetText, &row.GameMode,
		&row.WPM, &row.Accuracy, &row.DurationMs, &row.Keystrokes, &row.Errors, &row.Complete,
		&row.Events, &row.CreatedAt,
	)
	return row, err
}

// Repository archives sessions in Postgres through database/sql and lib/pq.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// EnsureSchema creates the archive table when missing.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create typing_sessions schema: %w", err)
	}
	return nil
}

func (r *Repository) Archive(ctx context.Context, s Session) error {
	events, err := json.Marshal(s.Events)
	if err != nil {
		return fmt.Errorf("failed to marshal events: %w", err)
	}

	row := sessionRow{
		ID:         s.ID,
		PlayerName: s.PlayerName,
		TargetText: s.TargetText,
		GameMode:   sqlutil.ToNullString(s.GameMode),
		WPM:        int32(s.Result.WPM),
		Accuracy:   s.Result.Accuracy,
		DurationMs: s.Result.DurationMs,
		Keystrokes: int32(s.Result.Keystrokes),
		Errors:     int32(s.Result.ErrorCount),
		Complete:   s.Result.Complete,
		Events:     sqlutil.ToNullRawMessage(events),
		CreatedAt:  s.CreatedAt,
	}

	return sqlutil.Run(ctx, r.db, newQueries, func(q *queries) error {
		if err := q.insertSession(ctx, row); err != nil {
			return fmt.Errorf("failed to insert session: %w", err)
		}
		return nil
	})
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*Session, error) {
	row, err := newQueries(r.db).getSession(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query session: %w", err)
	}
	return rowToSession(row)
}

func rowToSession(row sessionRow) (*Session, error) {
	var events []models.KeyEvent
	if raw := sqlutil.FromNullRawMessage(row.Events); raw != nil {
		if err := json.Unmarshal(raw, &events); err != nil {
			return nil, fmt.Errorf("failed to decode events: %w", err)
		}
	}
	return &Session{
		ID:         row.ID,
		PlayerName: row.PlayerName,
		TargetText: row.TargetText,
		GameMode:   sqlutil.FromNullString(row.GameMode),
		Events:     events,
		Result: models.TypingResult{
			WPM:        int(row.WPM),
			Accuracy:   row.Accuracy,
			DurationMs: row.DurationMs,
			Keystrokes: int(row.Keystrokes),
			ErrorCount: int(row.Errors),
			Complete:   row.Complete,
		},
		CreatedAt: row.CreatedAt,
	}, nil
}
