package rankings

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/touchtyped/typeduel/go/internal/models"
)

var testTime = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T, repo Repository) *Store {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Clock = clockwork.NewFakeClockAt(testTime)
	return NewStore(context.Background(), repo, cfg)
}

func ranking(name string, wpm int, acc float64) models.PlayerRanking {
	return models.PlayerRanking{PlayerName: name, WPM: wpm, Accuracy: acc, GameMode: "classic", Timestamp: testTime}
}

func TestStore_SubmitNewEntry(t *testing.T) {
	repo := NewMemoryRepository()
	store := newTestStore(t, repo)

	accepted, err := store.Submit(context.Background(), ranking("alice", 80, 95))
	require.NoError(t, err)
	assert.True(t, accepted)
	assert.Equal(t, 1, store.Position("alice"))
	assert.Equal(t, -1, store.Position("bob"))
	assert.Equal(t, 1, repo.Saves())
}

func TestStore_KeepsBetterExistingEntry(t *testing.T) {
	repo := NewMemoryRepository()
	store := newTestStore(t, repo)
	ctx := context.Background()

	_, err := store.Submit(ctx, ranking("alice", 80, 95))
	require.NoError(t, err)
	before := store.All()

	tests := []struct {
		name string
		in   models.PlayerRanking
	}{
		{"lower wpm", ranking("alice", 70, 99)},
		{"same wpm lower accuracy", ranking("alice", 80, 90)},
		{"identical", ranking("alice", 80, 95)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			accepted, err := store.Submit(ctx, tt.in)
			require.NoError(t, err)
			assert.False(t, accepted)
			assert.Equal(t, before, store.All())
		})
	}
	assert.Equal(t, 1, repo.Saves())
}

func TestStore_ReplacesWithBetterEntry(t *testing.T) {
	store := newTestStore(t, NewMemoryRepository())
	ctx := context.Background()

	for _, r := range []models.PlayerRanking{
		ranking("alice", 60, 90),
		ranking("bob", 70, 90),
		ranking("carol", 50, 99),
	} {
		_, err := store.Submit(ctx, r)
		require.NoError(t, err)
	}
	require.Equal(t, 3, store.Position("carol"))

	accepted, err := store.Submit(ctx, ranking("carol", 70, 95))
	require.NoError(t, err)
	assert.True(t, accepted)

	all := store.All()
	require.Len(t, all, 3)
	assert.Equal(t, "carol", all[0].PlayerName)
	assert.Equal(t, "bob", all[1].PlayerName)
	assert.Equal(t, "alice", all[2].PlayerName)

	got, ok := store.Get("carol")
	require.True(t, ok)
	assert.Equal(t, 70, got.WPM)
}

func TestStore_BoundedToCapacity(t *testing.T) {
	store := newTestStore(t, NewMemoryRepository())
	ctx := context.Background()

	for i := 0; i < 150; i++ {
		// interleave so eviction is not simply "last in"
		wpm := (i * 37) % 150
		_, err := store.Submit(ctx, ranking(fmt.Sprintf("p%03d", i), wpm, float64(i%100)))
		require.NoError(t, err)
	}

	all := store.All()
	require.Len(t, all, DefaultCapacity)
	for i := 1; i < len(all); i++ {
		assert.False(t, all[i].Better(all[i-1]), "entry %d ranks above entry %d", i, i-1)
	}
	// the 150 wpm values are a permutation of 0..149, so the cut keeps 50..149
	assert.Equal(t, 149, all[0].WPM)
	assert.Equal(t, 50, all[len(all)-1].WPM)

	kept := make(map[string]bool)
	for i, r := range all {
		kept[r.PlayerName] = true
		assert.Equal(t, i+1, store.Position(r.PlayerName))
	}
	for i := 0; i < 150; i++ {
		name := fmt.Sprintf("p%03d", i)
		if !kept[name] {
			assert.Equal(t, -1, store.Position(name), name)
			_, ok := store.Get(name)
			assert.False(t, ok, name)
		}
	}
}

func TestStore_EntryBelowCutIsNotAccepted(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Capacity = 2
	repo := NewMemoryRepository()
	store := NewStore(context.Background(), repo, cfg)
	ctx := context.Background()

	for _, r := range []models.PlayerRanking{ranking("a", 90, 90), ranking("b", 80, 90)} {
		accepted, err := store.Submit(ctx, r)
		require.NoError(t, err)
		require.True(t, accepted)
	}

	accepted, err := store.Submit(ctx, ranking("c", 10, 50))
	require.NoError(t, err)
	assert.False(t, accepted)
	assert.Equal(t, -1, store.Position("c"))
	assert.Equal(t, 2, repo.Saves())
}

func TestStore_Validation(t *testing.T) {
	store := newTestStore(t, NewMemoryRepository())

	tests := []models.PlayerRanking{
		{PlayerName: "", WPM: 10, Accuracy: 50},
		{PlayerName: "x", WPM: -1, Accuracy: 50},
		{PlayerName: "x", WPM: 10, Accuracy: 101},
	}
	for _, in := range tests {
		_, err := store.Submit(context.Background(), in)
		assert.ErrorIs(t, err, ErrInvalidRanking)
	}
	assert.Equal(t, 0, store.Len())
}

func TestStore_StampsMissingTimestamp(t *testing.T) {
	store := newTestStore(t, NewMemoryRepository())
	_, err := store.Submit(context.Background(), models.PlayerRanking{PlayerName: "a", WPM: 10, Accuracy: 50})
	require.NoError(t, err)

	got, ok := store.Get("a")
	require.True(t, ok)
	assert.True(t, got.Timestamp.Equal(testTime))
}

func TestStore_PersistFailureKeepsMemoryState(t *testing.T) {
	repo := NewMemoryRepository()
	store := newTestStore(t, repo)
	repo.FailWith(errors.New("disk full"))

	accepted, err := store.Submit(context.Background(), ranking("alice", 80, 95))
	require.NoError(t, err)
	assert.True(t, accepted)
	assert.Equal(t, 1, store.Position("alice"))
	assert.Equal(t, 0, repo.Saves())

	repo.FailWith(nil)
	_, err = store.Submit(context.Background(), ranking("bob", 70, 95))
	require.NoError(t, err)

	persisted, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, persisted, 2)
}

func TestStore_ReloadRebuildsOrderAndIndex(t *testing.T) {
	repo := NewMemoryRepository(
		ranking("low", 10, 50),
		ranking("dup", 40, 80),
		ranking("high", 90, 99),
		ranking("dup", 60, 70),
		ranking("", 100, 100),
	)
	store := newTestStore(t, repo)

	all := store.All()
	require.Len(t, all, 3)
	assert.Equal(t, []string{"high", "dup", "low"}, []string{all[0].PlayerName, all[1].PlayerName, all[2].PlayerName})
	assert.Equal(t, 60, all[1].WPM)
	assert.Equal(t, 2, store.Position("dup"))
}

func TestStore_TopAndByGameMode(t *testing.T) {
	store := newTestStore(t, NewMemoryRepository())
	ctx := context.Background()

	a := ranking("a", 90, 90)
	b := ranking("b", 80, 90)
	b.GameMode = "sprint"
	c := ranking("c", 70, 90)
	for _, r := range []models.PlayerRanking{a, b, c} {
		_, err := store.Submit(ctx, r)
		require.NoError(t, err)
	}

	assert.Len(t, store.Top(2), 2)
	assert.Len(t, store.Top(10), 3)
	assert.Empty(t, store.Top(-1))

	classic := store.ByGameMode("classic")
	require.Len(t, classic, 2)
	assert.Equal(t, "a", classic[0].PlayerName)
	assert.Equal(t, "c", classic[1].PlayerName)
	assert.Empty(t, store.ByGameMode("marathon"))
}

func TestStore_Clear(t *testing.T) {
	repo := NewMemoryRepository()
	store := newTestStore(t, repo)
	_, err := store.Submit(context.Background(), ranking("a", 90, 90))
	require.NoError(t, err)

	store.Clear(context.Background())
	assert.Equal(t, 0, store.Len())
	assert.Equal(t, -1, store.Position("a"))

	persisted, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, persisted)
}

func TestStore_ConcurrentSubmissionsSamePlayer(t *testing.T) {
	store := newTestStore(t, NewMemoryRepository())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 1; i <= 50; i++ {
		wg.Add(1)
		go func(wpm int) {
			defer wg.Done()
			_, err := store.Submit(ctx, ranking("racer", wpm, 90))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	require.Equal(t, 1, store.Len())
	got, _ := store.Get("racer")
	assert.Equal(t, 50, got.WPM)
}
