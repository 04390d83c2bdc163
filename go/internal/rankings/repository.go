package rankings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/touchtyped/typeduel/go/internal/models"
)

// FileRepository stores the leaderboard as a JSON array in a single file.
type FileRepository struct {
	path string
	mu   sync.Mutex
}

// NewFileRepository creates a repository backed by path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{path: path}
}

func (r *FileRepository) Name() string { return "file" }

// Load reads the file. A missing file is an empty leaderboard.
func (r *FileRepository) Load(ctx context.Context) ([]models.PlayerRanking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := os.ReadFile(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read rankings file: %w", err)
	}

	var rankings []models.PlayerRanking
	if err := json.Unmarshal(data, &rankings); err != nil {
		return nil, fmt.Errorf("failed to parse rankings file: %w", err)
	}
	return rankings, nil
}

// Save replaces the file atomically.
func (r *FileRepository) Save(ctx context.Context, rankings []models.PlayerRanking) error {
	data, err := json.MarshalIndent(rankings, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal rankings: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create rankings directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".rankings-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write rankings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), r.path); err != nil {
		return fmt.Errorf("failed to replace rankings file: %w", err)
	}
	return nil
}

// MemoryRepository keeps the last saved leaderboard in memory.
type MemoryRepository struct {
	mu       sync.Mutex
	rankings []models.PlayerRanking
	saves    int
	err      error
}

func NewMemoryRepository(initial ...models.PlayerRanking) *MemoryRepository {
	return &MemoryRepository{rankings: slices.Clone(initial)}
}

func (r *MemoryRepository) Name() string { return "memory" }

func (r *MemoryRepository) Load(ctx context.Context) ([]models.PlayerRanking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.rankings), nil
}

func (r *MemoryRepository) Save(ctx context.Context, rankings []models.PlayerRanking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.rankings = slices.Clone(rankings)
	r.saves++
	return nil
}

// FailWith makes every following Save return err; nil restores normal saves.
func (r *MemoryRepository) FailWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

// Saves returns how many saves succeeded.
func (r *MemoryRepository) Saves() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saves
}
