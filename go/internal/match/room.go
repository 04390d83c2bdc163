package match

import (
	"sync"
	"time"

	"github.com/touchtyped/typeduel/go/internal/models"
)

// Room is the live state of one duel. Scores are guarded by mu; the identity
// fields never change after creation.
type Room struct {
	matchID   string
	playerA   string
	playerB   string
	letters   []rune
	createdAt time.Time

	mu           sync.Mutex
	scoreA       int
	scoreB       int
	posA         int
	posB         int
	version      uint64
	lastActivity time.Time
}

func newRoom(matchID, playerA, playerB, letters string, now time.Time) *Room {
	return &Room{
		matchID:      matchID,
		playerA:      playerA,
		playerB:      playerB,
		letters:      []rune(letters),
		createdAt:    now,
		lastActivity: now,
	}
}

// ID returns the match id.
func (r *Room) ID() string { return r.matchID }

// score applies one input from playerID. Under the strict rule only the
// letter at the player's own position counts and advances that position.
// It returns the state after the input, taken under the same lock, and
// whether a score changed.
func (r *Room) score(playerID, char string, strict bool, now time.Time) (models.MatchRoom, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var score, pos *int
	switch playerID {
	case r.playerA:
		score, pos = &r.scoreA, &r.posA
	case r.playerB:
		score, pos = &r.scoreB, &r.posB
	default:
		return r.snapshotLocked(), false
	}

	if strict {
		if *pos >= len(r.letters) || char != string(r.letters[*pos]) {
			return r.snapshotLocked(), false
		}
		*pos++
	}
	*score++
	r.version++
	r.lastActivity = now
	return r.snapshotLocked(), true
}

func (r *Room) idleSince() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastActivity
}

// Snapshot returns a copy of the room state.
func (r *Room) Snapshot() models.MatchRoom {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

func (r *Room) snapshotLocked() models.MatchRoom {
	return models.MatchRoom{
		MatchID:   r.matchID,
		PlayerA:   r.playerA,
		PlayerB:   r.playerB,
		ScoreA:    r.scoreA,
		ScoreB:    r.scoreB,
		Version:   r.version,
		Letters:   string(r.letters),
		CreatedAt: r.createdAt,
		UpdatedAt: r.lastActivity,
	}
}
