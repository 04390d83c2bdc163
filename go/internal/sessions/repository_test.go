package sessions

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/touchtyped/typeduel/go/internal/models"
)

// Runs against a real database when TEST_DATABASE_URL is set.
func TestRepository_ArchiveAndGet(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	repo := NewRepository(db)
	require.NoError(t, repo.EnsureSchema(ctx))

	expected := "A"
	session := Session{
		ID:         uuid.New(),
		PlayerName: "integration",
		TargetText: "A",
		Events:     []models.KeyEvent{{Key: "A", Expected: &expected, TimestampMs: 10}},
		Result:     models.TypingResult{WPM: 12, Accuracy: 100, Keystrokes: 1, Complete: true},
		CreatedAt:  time.Now().UTC().Truncate(time.Microsecond),
	}
	require.NoError(t, repo.Archive(ctx, session))
	t.Cleanup(func() {
		db.ExecContext(ctx, "DELETE FROM typing_sessions WHERE id = $1", session.ID)
	})

	got, err := repo.Get(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, session.Result, got.Result)
	assert.Equal(t, "", got.GameMode)
	require.Len(t, got.Events, 1)
	assert.Equal(t, "A", got.Events[0].ExpectedKey())
	assert.True(t, session.CreatedAt.Equal(got.CreatedAt))

	_, err = repo.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrSessionNotFound)
}
