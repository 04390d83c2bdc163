package models

import "time"

// MaxWPM is the highest speed a ranking may carry.
const MaxWPM = 1000

// PlayerRanking is a player's best known result on the leaderboard.
type PlayerRanking struct {
	PlayerName string    `json:"playerName" validate:"required,max=64"`
	WPM        int       `json:"wpm" validate:"gte=0,lte=1000"`
	Accuracy   float64   `json:"accuracy" validate:"gte=0,lte=100"`
	GameMode   string    `json:"gameMode" validate:"max=32"`
	Timestamp  time.Time `json:"timestamp"`
}

// Better reports whether r ranks strictly above other: higher WPM first,
// then higher accuracy.
func (r PlayerRanking) Better(other PlayerRanking) bool {
	if r.WPM != other.WPM {
		return r.WPM > other.WPM
	}
	return r.Accuracy > other.Accuracy
}

// CompareRankings orders rankings best first. It is suitable for slices.SortStableFunc.
func CompareRankings(a, b PlayerRanking) int {
	switch {
	case a.Better(b):
		return -1
	case b.Better(a):
		return 1
	default:
		return 0
	}
}
