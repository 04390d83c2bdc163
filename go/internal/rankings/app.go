package rankings

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/touchtyped/typeduel/go/internal/models"
)

// DefaultCapacity is the number of entries kept on the leaderboard.
const DefaultCapacity = 100

// ErrInvalidRanking is returned when a submission fails validation.
var ErrInvalidRanking = errors.New("invalid ranking")

// Repository persists the whole leaderboard.
type Repository interface {
	Load(ctx context.Context) ([]models.PlayerRanking, error)
	Save(ctx context.Context, rankings []models.PlayerRanking) error
	Name() string
}

// MetricsCollector receives leaderboard events.
type MetricsCollector interface {
	RecordRankingSubmission(accepted bool)
	RecordPersistFailure(backend string)
	SetLeaderboardSize(n int)
}

// NoOpMetricsCollector discards everything.
type NoOpMetricsCollector struct{}

func (NoOpMetricsCollector) RecordRankingSubmission(bool) {}
func (NoOpMetricsCollector) RecordPersistFailure(string)  {}
func (NoOpMetricsCollector) SetLeaderboardSize(int)       {}

// Config holds Store settings.
type Config struct {
	Capacity       int
	PersistTimeout time.Duration
	Clock          clockwork.Clock
	Metrics        MetricsCollector
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		Capacity:       DefaultCapacity,
		PersistTimeout: 5 * time.Second,
		Clock:          clockwork.NewRealClock(),
		Metrics:        NoOpMetricsCollector{},
	}
}

// Store is a bounded leaderboard holding the best entry per player, sorted by
// WPM then accuracy, with the lowest entries evicted past the capacity.
//
// Critical sections: mu guards rankings, index and version; every mutation
// runs sort, truncate and index rebuild under it. Persistence runs after mu is
// released and is serialized by persistMu, which drops snapshots older than
// the last one written.
type Store struct {
	repo     Repository
	cfg      Config
	validate *validator.Validate

	mu       sync.RWMutex
	rankings []models.PlayerRanking
	index    map[string]int
	version  uint64

	persistMu        sync.Mutex
	persistedVersion uint64
}

// NewStore builds a store and loads the persisted leaderboard. A load failure
// is logged and the store starts empty.
func NewStore(ctx context.Context, repo Repository, cfg Config) *Store {
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultCapacity
	}
	if cfg.PersistTimeout <= 0 {
		cfg.PersistTimeout = 5 * time.Second
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NoOpMetricsCollector{}
	}

	s := &Store{
		repo:     repo,
		cfg:      cfg,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		index:    make(map[string]int),
	}

	loaded, err := repo.Load(ctx)
	if err != nil {
		log.Error().Err(err).Str("backend", repo.Name()).Msg("failed to load rankings, starting empty")
		loaded = nil
	}
	s.restore(loaded)

	log.Info().
		Str("backend", repo.Name()).
		Int("entries", len(s.rankings)).
		Int("capacity", cfg.Capacity).
		Msg("rankings loaded")

	return s
}

// restore rebuilds the collection from persisted entries, keeping the best
// entry per player.
func (s *Store) restore(loaded []models.PlayerRanking) {
	kept := make([]models.PlayerRanking, 0, len(loaded))
	seen := make(map[string]int, len(loaded))
	for _, r := range loaded {
		if r.PlayerName == "" {
			continue
		}
		if i, ok := seen[r.PlayerName]; ok {
			if r.Better(kept[i]) {
				kept[i] = r
			}
			continue
		}
		seen[r.PlayerName] = len(kept)
		kept = append(kept, r)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.rankings = kept
	s.sortAndTruncate()
	s.cfg.Metrics.SetLeaderboardSize(len(s.rankings))
}

// Submit offers a ranking to the leaderboard. It returns true when the entry
// is on the board afterwards: it was new, or strictly better than the
// player's existing entry, and it survived the capacity cut.
func (s *Store) Submit(ctx context.Context, ranking models.PlayerRanking) (bool, error) {
	if err := s.validate.Struct(ranking); err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidRanking, err)
	}
	if ranking.Timestamp.IsZero() {
		ranking.Timestamp = s.cfg.Clock.Now().UTC()
	}

	s.mu.Lock()
	if pos, exists := s.index[ranking.PlayerName]; exists {
		existing := s.rankings[pos]
		if !ranking.Better(existing) {
			s.mu.Unlock()
			log.Debug().
				Str("player", ranking.PlayerName).
				Int("existing_wpm", existing.WPM).
				Float64("existing_accuracy", existing.Accuracy).
				Msg("keeping existing better ranking")
			s.cfg.Metrics.RecordRankingSubmission(false)
			return false, nil
		}
		s.rankings = slices.Delete(s.rankings, pos, pos+1)
	}
	s.rankings = append(s.rankings, ranking)
	s.sortAndTruncate()
	_, accepted := s.index[ranking.PlayerName]

	var snapshot []models.PlayerRanking
	var version uint64
	if accepted {
		s.version++
		version = s.version
		snapshot = slices.Clone(s.rankings)
	}
	size := len(s.rankings)
	s.mu.Unlock()

	s.cfg.Metrics.RecordRankingSubmission(accepted)
	if !accepted {
		log.Debug().Str("player", ranking.PlayerName).Int("wpm", ranking.WPM).Msg("ranking below leaderboard cut")
		return false, nil
	}

	log.Info().
		Str("player", ranking.PlayerName).
		Int("wpm", ranking.WPM).
		Float64("accuracy", ranking.Accuracy).
		Str("game_mode", ranking.GameMode).
		Msg("ranking accepted")

	s.cfg.Metrics.SetLeaderboardSize(size)
	s.persist(ctx, snapshot, version)
	return true, nil
}

// sortAndTruncate must be called with mu held.
func (s *Store) sortAndTruncate() {
	slices.SortStableFunc(s.rankings, models.CompareRankings)
	if len(s.rankings) > s.cfg.Capacity {
		clear(s.rankings[s.cfg.Capacity:])
		s.rankings = s.rankings[:s.cfg.Capacity]
	}
	s.index = make(map[string]int, len(s.rankings))
	for i, r := range s.rankings {
		s.index[r.PlayerName] = i
	}
}

func (s *Store) persist(ctx context.Context, snapshot []models.PlayerRanking, version uint64) {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	if version <= s.persistedVersion {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.PersistTimeout)
	defer cancel()

	if err := s.repo.Save(ctx, snapshot); err != nil {
		log.Error().
			Err(err).
			Str("backend", s.repo.Name()).
			Uint64("version", version).
			Msg("failed to persist rankings")
		s.cfg.Metrics.RecordPersistFailure(s.repo.Name())
		return
	}
	s.persistedVersion = version
}

// Clear removes every entry and persists the empty board.
func (s *Store) Clear(ctx context.Context) {
	s.mu.Lock()
	s.rankings = nil
	s.index = make(map[string]int)
	s.version++
	version := s.version
	s.mu.Unlock()

	log.Info().Msg("rankings cleared")
	s.cfg.Metrics.SetLeaderboardSize(0)
	s.persist(ctx, []models.PlayerRanking{}, version)
}

// Position returns the 1-based rank of playerName, or -1 when absent.
func (s *Store) Position(playerName string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if pos, ok := s.index[playerName]; ok {
		return pos + 1
	}
	return -1
}

// Get returns the current entry for playerName.
func (s *Store) Get(playerName string) (models.PlayerRanking, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pos, ok := s.index[playerName]
	if !ok {
		return models.PlayerRanking{}, false
	}
	return s.rankings[pos], true
}

// All returns a copy of the leaderboard in rank order.
func (s *Store) All() []models.PlayerRanking {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.PlayerRanking, len(s.rankings))
	copy(out, s.rankings)
	return out
}

// Top returns at most n entries from the top of the board.
func (s *Store) Top(n int) []models.PlayerRanking {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n = max(min(n, len(s.rankings)), 0)
	out := make([]models.PlayerRanking, n)
	copy(out, s.rankings[:n])
	return out
}

// ByGameMode returns the entries recorded in gameMode, in rank order.
func (s *Store) ByGameMode(gameMode string) []models.PlayerRanking {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.PlayerRanking, 0)
	for _, r := range s.rankings {
		if r.GameMode == gameMode {
			out = append(out, r)
		}
	}
	return out
}

// Len returns the number of entries on the board.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rankings)
}
