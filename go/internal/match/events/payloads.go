package events

import (
	"time"

	"github.com/touchtyped/typeduel/go/internal/models"
)

// Event types published on the match stream.
const (
	TypeMatchCreated = "MatchCreated"
	TypeScoreUpdated = "ScoreUpdated"
	TypeMatchClosed  = "MatchClosed"
)

// MatchCreatedPayload is the payload for a MatchCreated event
type MatchCreatedPayload struct {
	MatchID   string    `json:"match_id"`
	PlayerA   string    `json:"player_a"`
	PlayerB   string    `json:"player_b"`
	Letters   string    `json:"letters"`
	CreatedAt time.Time `json:"created_at"`
}

// ScoreUpdatedPayload is the payload for a ScoreUpdated event
type ScoreUpdatedPayload struct {
	MatchID   string    `json:"match_id"`
	ScoreA    int       `json:"score_a"`
	ScoreB    int       `json:"score_b"`
	Version   uint64    `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MatchClosedPayload is the payload for a MatchClosed event
type MatchClosedPayload struct {
	MatchID  string    `json:"match_id"`
	PlayerA  string    `json:"player_a"`
	PlayerB  string    `json:"player_b"`
	ScoreA   int       `json:"score_a"`
	ScoreB   int       `json:"score_b"`
	Reason   string    `json:"reason"`
	ClosedAt time.Time `json:"closed_at"`
}

func matchCreated(room models.MatchRoom) MatchCreatedPayload {
	return MatchCreatedPayload{
		MatchID:   room.MatchID,
		PlayerA:   room.PlayerA,
		PlayerB:   room.PlayerB,
		Letters:   room.Letters,
		CreatedAt: room.CreatedAt,
	}
}

func scoreUpdated(room models.MatchRoom) ScoreUpdatedPayload {
	return ScoreUpdatedPayload{
		MatchID:   room.MatchID,
		ScoreA:    room.ScoreA,
		ScoreB:    room.ScoreB,
		Version:   room.Version,
		UpdatedAt: room.UpdatedAt,
	}
}

func matchClosed(room models.MatchRoom, reason string, at time.Time) MatchClosedPayload {
	return MatchClosedPayload{
		MatchID:  room.MatchID,
		PlayerA:  room.PlayerA,
		PlayerB:  room.PlayerB,
		ScoreA:   room.ScoreA,
		ScoreB:   room.ScoreB,
		Reason:   reason,
		ClosedAt: at,
	}
}
