package match

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/touchtyped/typeduel/go/internal/models"
)

var (
	ErrRoomNotFound  = errors.New("match room not found")
	ErrInvalidPlayer = errors.New("player id is required")
)

// Reasons passed to Listener.MatchClosed.
const (
	CloseReasonClosed  = "closed"
	CloseReasonExpired = "expired"
)

// Listener is notified of room lifecycle changes. Calls happen after the
// coordinator lock is released, on the goroutine that caused the change.
type Listener interface {
	MatchCreated(room models.MatchRoom)
	ScoreUpdated(room models.MatchRoom)
	MatchClosed(room models.MatchRoom, reason string)
}

// MetricsCollector receives coordinator events.
type MetricsCollector interface {
	RecordMatchCreated()
	RecordMatchClosed(reason string)
	SetPlayersWaiting(n int)
	SetActiveRooms(n int)
	RecordInput()
}

type NoOpMetricsCollector struct{}

func (NoOpMetricsCollector) RecordMatchCreated()      {}
func (NoOpMetricsCollector) RecordMatchClosed(string) {}
func (NoOpMetricsCollector) SetPlayersWaiting(int)    {}
func (NoOpMetricsCollector) SetActiveRooms(int)       {}
func (NoOpMetricsCollector) RecordInput()             {}

// Config holds coordinator settings. Zero durations disable expiry.
type Config struct {
	WaitTimeout   time.Duration
	RoomTTL       time.Duration
	StrictScoring bool
	Challenge     ChallengeGenerator
	Clock         clockwork.Clock
	Metrics       MetricsCollector
}

// DefaultConfig returns a config that never expires anything and scores
// every keystroke.
func DefaultConfig() Config {
	return Config{
		Challenge: RandomLetters(DefaultChallengeLength),
		Clock:     clockwork.NewRealClock(),
		Metrics:   NoOpMetricsCollector{},
	}
}

// Coordinator pairs players through a single waiting slot and owns the room
// registry.
//
// Critical section: mu guards waiting, waitingSince and rooms. Queue performs
// the slot check, the room creation and the registration under one hold, so
// two concurrent callers produce exactly one match. Scores live under each
// room's own mutex.
type Coordinator struct {
	cfg Config

	mu           sync.Mutex
	waiting      string
	waitingSince time.Time
	rooms        map[string]*Room

	listenersMu sync.RWMutex
	listeners   []Listener
}

// NewCoordinator creates a coordinator with an empty slot and registry.
func NewCoordinator(cfg Config) *Coordinator {
	if cfg.Challenge == nil {
		cfg.Challenge = RandomLetters(DefaultChallengeLength)
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NoOpMetricsCollector{}
	}
	return &Coordinator{
		cfg:   cfg,
		rooms: make(map[string]*Room),
	}
}

// Subscribe registers l for lifecycle notifications.
func (c *Coordinator) Subscribe(l Listener) {
	c.listenersMu.Lock()
	defer c.listenersMu.Unlock()
	c.listeners = append(c.listeners, l)
}

func (c *Coordinator) notify(fn func(Listener)) {
	c.listenersMu.RLock()
	listeners := c.listeners
	c.listenersMu.RUnlock()
	for _, l := range listeners {
		fn(l)
	}
}

// Queue enters playerID into matchmaking. With nobody waiting the player
// takes the slot and Queue returns "". Otherwise the waiting player is paired
// with playerID and the new match id is returned. A player already in the
// slot stays there and gets "".
func (c *Coordinator) Queue(playerID string) (string, error) {
	if playerID == "" {
		return "", ErrInvalidPlayer
	}

	c.mu.Lock()
	if c.waiting == "" || c.waiting == playerID {
		if c.waiting == "" {
			c.waitingSince = c.cfg.Clock.Now()
		}
		c.waiting = playerID
		c.mu.Unlock()

		c.cfg.Metrics.SetPlayersWaiting(1)
		log.Info().Str("player_id", playerID).Msg("player waiting for opponent")
		return "", nil
	}

	letters, err := c.cfg.Challenge()
	if err != nil {
		c.mu.Unlock()
		return "", fmt.Errorf("failed to create match: %w", err)
	}

	opponent := c.waiting
	room := newRoom(uuid.NewString(), opponent, playerID, letters, c.cfg.Clock.Now())
	c.rooms[room.matchID] = room
	c.waiting = ""
	c.waitingSince = time.Time{}
	active := len(c.rooms)
	c.mu.Unlock()

	c.cfg.Metrics.SetPlayersWaiting(0)
	c.cfg.Metrics.SetActiveRooms(active)
	c.cfg.Metrics.RecordMatchCreated()

	log.Info().
		Str("match_id", room.matchID).
		Str("player_a", opponent).
		Str("player_b", playerID).
		Msg("match created")

	snapshot := room.Snapshot()
	c.notify(func(l Listener) { l.MatchCreated(snapshot) })
	return room.matchID, nil
}

// Waiting returns the player in the waiting slot, or "".
func (c *Coordinator) Waiting() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.waiting
}

// HandleInput scores one keystroke for playerID and returns the room state
// right after it. scored is false when the input changed nothing, as for a
// non-participant or a letter rejected under strict scoring. Unknown matches
// return ErrRoomNotFound.
func (c *Coordinator) HandleInput(matchID, playerID, char string) (models.MatchRoom, bool, error) {
	room := c.room(matchID)
	if room == nil {
		log.Debug().Str("match_id", matchID).Msg("input for unknown match ignored")
		return models.MatchRoom{}, false, fmt.Errorf("%w: %s", ErrRoomNotFound, matchID)
	}

	snapshot, scored := room.score(playerID, char, c.cfg.StrictScoring, c.cfg.Clock.Now())
	if scored {
		c.cfg.Metrics.RecordInput()
		c.notify(func(l Listener) { l.ScoreUpdated(snapshot) })
	}
	return snapshot, scored, nil
}

// GetRoom returns a snapshot of the match.
func (c *Coordinator) GetRoom(matchID string) (models.MatchRoom, error) {
	room := c.room(matchID)
	if room == nil {
		return models.MatchRoom{}, fmt.Errorf("%w: %s", ErrRoomNotFound, matchID)
	}
	return room.Snapshot(), nil
}

// Rooms returns the number of registered matches.
func (c *Coordinator) Rooms() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.rooms)
}

// CloseRoom removes the match from the registry.
func (c *Coordinator) CloseRoom(matchID string) error {
	c.mu.Lock()
	room, ok := c.rooms[matchID]
	if ok {
		delete(c.rooms, matchID)
	}
	active := len(c.rooms)
	c.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrRoomNotFound, matchID)
	}
	c.closed(room, CloseReasonClosed, active)
	return nil
}

func (c *Coordinator) closed(room *Room, reason string, active int) {
	c.cfg.Metrics.RecordMatchClosed(reason)
	c.cfg.Metrics.SetActiveRooms(active)
	log.Info().Str("match_id", room.matchID).Str("reason", reason).Msg("match closed")

	snapshot := room.Snapshot()
	c.notify(func(l Listener) { l.MatchClosed(snapshot, reason) })
}

func (c *Coordinator) room(matchID string) *Room {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rooms[matchID]
}

// Sweep drops a waiting player older than WaitTimeout and rooms idle for
// longer than RoomTTL.
func (c *Coordinator) Sweep() {
	now := c.cfg.Clock.Now()

	c.mu.Lock()
	var dropped string
	if c.waiting != "" && c.cfg.WaitTimeout > 0 && now.Sub(c.waitingSince) >= c.cfg.WaitTimeout {
		dropped = c.waiting
		c.waiting = ""
		c.waitingSince = time.Time{}
	}

	var expired []*Room
	if c.cfg.RoomTTL > 0 {
		for id, room := range c.rooms {
			if now.Sub(room.idleSince()) >= c.cfg.RoomTTL {
				expired = append(expired, room)
				delete(c.rooms, id)
			}
		}
	}
	active := len(c.rooms)
	c.mu.Unlock()

	if dropped != "" {
		c.cfg.Metrics.SetPlayersWaiting(0)
		log.Info().Str("player_id", dropped).Dur("timeout", c.cfg.WaitTimeout).Msg("waiting player expired")
	}
	for _, room := range expired {
		c.closed(room, CloseReasonExpired, active)
	}
}
