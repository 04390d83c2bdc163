package sessions

import (
	"time"

	"github.com/google/uuid"

	"github.com/touchtyped/typeduel/go/internal/models"
)

// Keystroke is one raw key press as captured by the client.
type Keystroke struct {
	Key         string `json:"key" validate:"required,max=32"`
	TimestampMs int64  `json:"timestampMs" validate:"gte=0"`
}

// ReplayRequest is the body of POST /api/sessions.
type ReplayRequest struct {
	PlayerName    string      `json:"playerName" validate:"required,max=64"`
	TargetText    string      `json:"targetText" validate:"required,max=4096"`
	GameMode      string      `json:"gameMode" validate:"max=32"`
	WPM           int         `json:"wpm" validate:"gte=0,lte=1000"`
	SubmitRanking bool        `json:"submitRanking"`
	Keys          []Keystroke `json:"keys" validate:"max=20000,dive"`
}

// Session is a replayed and finalized typing session.
type Session struct {
	ID         uuid.UUID           `json:"id"`
	PlayerName string              `json:"playerName"`
	TargetText string              `json:"targetText"`
	GameMode   string              `json:"gameMode"`
	Events     []models.KeyEvent   `json:"events"`
	Result     models.TypingResult `json:"result"`
	CreatedAt  time.Time           `json:"createdAt"`
}

// ReplayResponse is returned by POST /api/sessions.
type ReplayResponse struct {
	Session
	Archived        bool  `json:"archived"`
	RankingAccepted *bool `json:"rankingAccepted,omitempty"`
	Position        int   `json:"position,omitempty"`
}
