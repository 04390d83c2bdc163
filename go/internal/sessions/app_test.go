package sessions

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/touchtyped/typeduel/go/internal/models"
	"github.com/touchtyped/typeduel/go/internal/rankings"
)

type memoryArchive struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]Session
	err      error
}

func newMemoryArchive() *memoryArchive {
	return &memoryArchive{sessions: make(map[uuid.UUID]Session)}
}

func (m *memoryArchive) Archive(ctx context.Context, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sessions[s.ID] = s
	return nil
}

func (m *memoryArchive) Get(ctx context.Context, id uuid.UUID) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return &s, nil
}

var sessionTime = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

func hello() []Keystroke {
	return []Keystroke{
		{Key: "H", TimestampMs: 1000},
		{Key: "E", TimestampMs: 1100},
		{Key: "L", TimestampMs: 1200},
		{Key: "L", TimestampMs: 1300},
		{Key: "R", TimestampMs: 1350},
		{Key: models.KeyBackspace, TimestampMs: 1400},
		{Key: "O", TimestampMs: 1500},
	}
}

func newTestApp(t *testing.T, repo SessionRepository) (*App, *rankings.Store) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(sessionTime)
	cfg := rankings.DefaultConfig()
	cfg.Clock = clock
	store := rankings.NewStore(context.Background(), rankings.NewMemoryRepository(), cfg)
	return NewApp(repo, store, clock, nil), store
}

func TestApp_ReplayArchivesAndRanks(t *testing.T) {
	archive := newMemoryArchive()
	app, store := newTestApp(t, archive)

	resp, err := app.Replay(context.Background(), ReplayRequest{
		PlayerName:    "alice",
		TargetText:    "hello",
		GameMode:      "classic",
		WPM:           72,
		SubmitRanking: true,
		Keys:          hello(),
	})
	require.NoError(t, err)

	assert.Equal(t, "HELLO", resp.TargetText)
	require.Len(t, resp.Events, 7)
	assert.True(t, resp.Events[4].IsError)
	assert.Equal(t, int64(500), resp.Result.DurationMs)
	assert.True(t, resp.Result.Complete)
	assert.Equal(t, 72, resp.Result.WPM)
	assert.Equal(t, 7, resp.Result.Keystrokes)
	assert.Equal(t, 1, resp.Result.ErrorCount)
	assert.InDelta(t, 600.0/7.0, resp.Result.Accuracy, 0.001)
	assert.True(t, resp.CreatedAt.Equal(sessionTime))

	assert.True(t, resp.Archived)
	stored, err := app.Get(context.Background(), resp.ID)
	require.NoError(t, err)
	assert.Equal(t, resp.Session.Result, stored.Result)

	require.NotNil(t, resp.RankingAccepted)
	assert.True(t, *resp.RankingAccepted)
	assert.Equal(t, 1, resp.Position)
	ranked, ok := store.Get("alice")
	require.True(t, ok)
	assert.Equal(t, 72, ranked.WPM)
	assert.Equal(t, "classic", ranked.GameMode)
}

func TestApp_ReplayWithoutArchiveOrRanking(t *testing.T) {
	app, store := newTestApp(t, nil)

	resp, err := app.Replay(context.Background(), ReplayRequest{
		PlayerName: "bob",
		TargetText: "hi",
		Keys:       []Keystroke{{Key: "H", TimestampMs: 0}},
	})
	require.NoError(t, err)
	assert.False(t, resp.Archived)
	assert.Nil(t, resp.RankingAccepted)
	assert.False(t, resp.Result.Complete)
	assert.Equal(t, 0, store.Len())

	_, err = app.Get(context.Background(), resp.ID)
	assert.ErrorIs(t, err, ErrArchiveDisabled)
}

func TestApp_ArchiveFailureIsNotFatal(t *testing.T) {
	archive := newMemoryArchive()
	archive.err = errors.New("connection refused")
	app, _ := newTestApp(t, archive)

	resp, err := app.Replay(context.Background(), ReplayRequest{
		PlayerName: "carol",
		TargetText: "hello",
		Keys:       hello(),
	})
	require.NoError(t, err)
	assert.False(t, resp.Archived)
}

func TestApp_ReplayValidation(t *testing.T) {
	app, _ := newTestApp(t, nil)

	tests := []struct {
		name string
		req  ReplayRequest
	}{
		{"missing player", ReplayRequest{TargetText: "x"}},
		{"missing target", ReplayRequest{PlayerName: "x"}},
		{"negative wpm", ReplayRequest{PlayerName: "x", TargetText: "x", WPM: -5}},
		{"empty key", ReplayRequest{PlayerName: "x", TargetText: "x", Keys: []Keystroke{{Key: ""}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := app.Replay(context.Background(), tt.req)
			assert.ErrorIs(t, err, ErrInvalidSession)
		})
	}
}

func TestApp_EstimatesWPMWhenNotReported(t *testing.T) {
	app, _ := newTestApp(t, nil)

	keys := make([]Keystroke, 0, 10)
	for i, r := range "TYPING FUN" {
		keys = append(keys, Keystroke{Key: string(r), TimestampMs: int64(i) * 666})
	}
	resp, err := app.Replay(context.Background(), ReplayRequest{
		PlayerName: "dave",
		TargetText: "typing fun",
		Keys:       keys,
	})
	require.NoError(t, err)
	// 10 correct keys over 5994ms is two words in just under 0.1 minutes
	assert.Equal(t, 20, resp.Result.WPM)
	assert.Equal(t, 100.0, resp.Result.Accuracy)
}

func TestApp_BurstReplayIsArchivedAndRanked(t *testing.T) {
	archive := newMemoryArchive()
	app, store := newTestApp(t, archive)

	keys := make([]Keystroke, 0, 5)
	for i, r := range "HELLO" {
		keys = append(keys, Keystroke{Key: string(r), TimestampMs: int64(i)})
	}
	resp, err := app.Replay(context.Background(), ReplayRequest{
		PlayerName:    "erin",
		TargetText:    "hello",
		SubmitRanking: true,
		Keys:          keys,
	})
	require.NoError(t, err)
	require.NotNil(t, resp)

	assert.Equal(t, models.MaxWPM, resp.Result.WPM)
	assert.True(t, resp.Archived)
	_, err = app.Get(context.Background(), resp.ID)
	require.NoError(t, err)

	require.NotNil(t, resp.RankingAccepted)
	assert.True(t, *resp.RankingAccepted)
	ranked, ok := store.Get("erin")
	require.True(t, ok)
	assert.Equal(t, models.MaxWPM, ranked.WPM)
}

type failingRankings struct{}

func (failingRankings) Submit(context.Context, models.PlayerRanking) (bool, error) {
	return false, rankings.ErrInvalidRanking
}

func (failingRankings) Position(string) int { return -1 }

func TestApp_RankingFailureKeepsArchivedSession(t *testing.T) {
	archive := newMemoryArchive()
	app := NewApp(archive, failingRankings{}, clockwork.NewFakeClockAt(sessionTime), nil)

	resp, err := app.Replay(context.Background(), ReplayRequest{
		PlayerName:    "frank",
		TargetText:    "hello",
		SubmitRanking: true,
		Keys:          hello(),
	})
	require.NoError(t, err)
	assert.True(t, resp.Archived)
	require.NotNil(t, resp.RankingAccepted)
	assert.False(t, *resp.RankingAccepted)
	assert.Zero(t, resp.Position)

	stored, err := app.Get(context.Background(), resp.ID)
	require.NoError(t, err)
	assert.Equal(t, "frank", stored.PlayerName)
}
