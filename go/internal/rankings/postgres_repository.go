package rankings

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/touchtyped/typeduel/go/internal/models"
)

// PgxConn is the subset of *pgxpool.Pool the Postgres repository uses.
type PgxConn interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const createRankingsTable = `
CREATE TABLE IF NOT EXISTS leaderboard_rankings (
	position    INTEGER          NOT NULL,
	player_name TEXT             PRIMARY KEY,
	wpm         INTEGER          NOT NULL,
	accuracy    DOUBLE PRECISION NOT NULL,
	game_mode   TEXT             NOT NULL DEFAULT '',
	recorded_at TIMESTAMPTZ      NOT NULL
)`

// PostgresRepository stores the leaderboard in the leaderboard_rankings table.
// Each save replaces the table contents in one transaction.
type PostgresRepository struct {
	db PgxConn
}

func NewPostgresRepository(db PgxConn) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Name() string { return "postgres" }

// EnsureSchema creates the table when it does not exist.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, createRankingsTable); err != nil {
		return fmt.Errorf("failed to create leaderboard_rankings: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Load(ctx context.Context) ([]models.PlayerRanking, error) {
	rows, err := r.db.Query(ctx, `
		SELECT player_name, wpm, accuracy, game_mode, recorded_at
		FROM leaderboard_rankings
		ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("failed to query rankings: %w", err)
	}

	rankings, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.PlayerRanking, error) {
		var r models.PlayerRanking
		err := row.Scan(&r.PlayerName, &r.WPM, &r.Accuracy, &r.GameMode, &r.Timestamp)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan rankings: %w", err)
	}
	return rankings, nil
}

func (r *PostgresRepository) Save(ctx context.Context, rankings []models.PlayerRanking) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM leaderboard_rankings`); err != nil {
		return fmt.Errorf("failed to clear rankings: %w", err)
	}

	rows := make([][]any, len(rankings))
	for i, rk := range rankings {
		rows[i] = []any{i + 1, rk.PlayerName, rk.WPM, rk.Accuracy, rk.GameMode, rk.Timestamp}
	}
	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"leaderboard_rankings"},
		[]string{"position", "player_name", "wpm", "accuracy", "game_mode", "recorded_at"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("failed to copy rankings: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit rankings: %w", err)
	}
	return nil
}
