package rankings

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/touchtyped/typeduel/go/internal/models"
)

func sampleRankings() []models.PlayerRanking {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return []models.PlayerRanking{
		{PlayerName: "ALICE", WPM: 90, Accuracy: 98.5, GameMode: "duel", Timestamp: ts},
		{PlayerName: "BOB", WPM: 70, Accuracy: 99, Timestamp: ts},
	}
}

// Runs against a real database when TEST_DATABASE_URL is set.
func TestPostgresRepository_RoundTrip(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	repo := NewPostgresRepository(pool)
	require.NoError(t, repo.EnsureSchema(ctx))

	require.NoError(t, repo.Save(ctx, sampleRankings()))
	loaded, err := repo.Load(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, "ALICE", loaded[0].PlayerName)
	assert.True(t, loaded[0].Timestamp.Equal(sampleRankings()[0].Timestamp))

	require.NoError(t, repo.Save(ctx, nil))
	loaded, err = repo.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

// Runs against a real server when TEST_REDIS_URL is set.
func TestRedisRepository_RoundTrip(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	ctx := context.Background()

	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	client := redis.NewClient(opts)
	t.Cleanup(func() { client.Close() })

	key := "typeduel:test:" + t.Name()
	t.Cleanup(func() { client.Del(ctx, key, key+":scores") })

	repo := NewRedisRepository(client, key)
	loaded, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, loaded)

	require.NoError(t, repo.Save(ctx, sampleRankings()))
	loaded, err = repo.Load(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, "BOB", loaded[1].PlayerName)

	top, err := client.ZRevRange(ctx, key+":scores", 0, 0).Result()
	require.NoError(t, err)
	assert.Equal(t, []string{"ALICE"}, top)
}
