package models

import "time"

// MatchRoom is a read-only snapshot of a duel.
type MatchRoom struct {
	MatchID string `json:"matchId"`
	PlayerA string `json:"playerA"`
	PlayerB string `json:"playerB"`
	ScoreA  int    `json:"scoreA"`
	ScoreB  int    `json:"scoreB"`
	// Version increases with every score change.
	Version   uint64    `json:"version"`
	Letters   string    `json:"letters"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// HasPlayer reports whether playerID is one of the two participants.
func (m MatchRoom) HasPlayer(playerID string) bool {
	return playerID != "" && (playerID == m.PlayerA || playerID == m.PlayerB)
}

// TypingResult is the finalized outcome of a typing session.
type TypingResult struct {
	WPM        int     `json:"wpm"`
	Accuracy   float64 `json:"accuracy"`
	DurationMs int64   `json:"durationMs"`
	Keystrokes int     `json:"keystrokes"`
	ErrorCount int     `json:"errorCount"`
	Complete   bool    `json:"complete"`
}
