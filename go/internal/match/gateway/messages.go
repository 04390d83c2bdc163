package gateway

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/touchtyped/typeduel/go/internal/models"
)

// MessageType is the "type" field of every frame.
type MessageType string

const (
	TypeWelcome     MessageType = "WELCOME"
	TypeJoinMatch   MessageType = "JOIN_MATCH"
	TypeInput       MessageType = "INPUT"
	TypeScoreUpdate MessageType = "SCORE_UPDATE"
	TypeMatchFound  MessageType = "MATCH_FOUND"
	TypeMatchClosed MessageType = "MATCH_CLOSED"
)

// ErrMalformedMessage wraps frames that are not a JSON object with a type.
var ErrMalformedMessage = errors.New("malformed message")

var validate = validator.New(validator.WithRequiredStructEnabled())

// Inbound is a decoded client frame: JoinMatch, Input or Unrecognized.
type Inbound interface {
	Kind() MessageType
}

// JoinMatch binds the connection to a match.
type JoinMatch struct {
	MatchID  string `json:"matchId" validate:"required"`
	PlayerID string `json:"playerId"`
}

func (JoinMatch) Kind() MessageType { return TypeJoinMatch }

// Input is one keystroke in a duel.
type Input struct {
	MatchID  string `json:"matchId" validate:"required"`
	PlayerID string `json:"playerId" validate:"required"`
	Char     string `json:"char" validate:"required"`
}

func (Input) Kind() MessageType { return TypeInput }

// Unrecognized is any well-formed frame whose type is not handled.
type Unrecognized struct {
	Type MessageType
	Raw  json.RawMessage
}

func (u Unrecognized) Kind() MessageType { return u.Type }

// DecodeInbound parses a client frame once into its kind. Unknown types are
// returned as Unrecognized; only broken frames and known types with missing
// fields are errors.
func DecodeInbound(data []byte) (Inbound, error) {
	var envelope struct {
		Type MessageType `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	var msg Inbound
	switch envelope.Type {
	case TypeJoinMatch:
		var m JoinMatch
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
		}
		msg = m
	case TypeInput:
		var m Input
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
		}
		msg = m
	default:
		return Unrecognized{Type: envelope.Type, Raw: data}, nil
	}

	if err := validate.Struct(msg); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedMessage, envelope.Type, err)
	}
	return msg, nil
}

// Welcome is sent once on connect.
type Welcome struct {
	Type MessageType `json:"type"`
	Msg  string      `json:"msg"`
}

// ScoreUpdate carries the current scores of a match.
type ScoreUpdate struct {
	Type    MessageType `json:"type"`
	MatchID string      `json:"matchId"`
	ScoreA  int         `json:"scoreA"`
	ScoreB  int         `json:"scoreB"`
	Version uint64      `json:"version"`
	Letters string      `json:"letters"`
}

// MatchFound tells both players their duel is ready.
type MatchFound struct {
	Type    MessageType `json:"type"`
	MatchID string      `json:"matchId"`
	PlayerA string      `json:"playerA"`
	PlayerB string      `json:"playerB"`
	Letters string      `json:"letters"`
}

// MatchClosed tells bound connections the match is gone.
type MatchClosed struct {
	Type    MessageType `json:"type"`
	MatchID string      `json:"matchId"`
	Reason  string      `json:"reason"`
}

func newScoreUpdate(room models.MatchRoom) ScoreUpdate {
	return ScoreUpdate{
		Type:    TypeScoreUpdate,
		MatchID: room.MatchID,
		ScoreA:  room.ScoreA,
		ScoreB:  room.ScoreB,
		Version: room.Version,
		Letters: room.Letters,
	}
}

func newMatchFound(room models.MatchRoom) MatchFound {
	return MatchFound{
		Type:    TypeMatchFound,
		MatchID: room.MatchID,
		PlayerA: room.PlayerA,
		PlayerB: room.PlayerB,
		Letters: room.Letters,
	}
}
