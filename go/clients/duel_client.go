package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/touchtyped/typeduel/go/internal/models"
)

// DuelClient calls the typeduel pairing and leaderboard endpoints.
type DuelClient struct {
	*BaseClient
}

func NewDuelClient(baseURL string) *DuelClient {
	return &DuelClient{BaseClient: NewBaseClient(baseURL)}
}

// SubmitResult mirrors the leaderboard submit response.
type SubmitResult struct {
	Accepted bool   `json:"accepted"`
	Message  string `json:"message"`
	Position int    `json:"position"`
}

// Queue enters playerID into matchmaking. The match id is empty while the
// player waits for an opponent.
func (c *DuelClient) Queue(ctx context.Context, playerID string) (string, error) {
	data, err := c.Post(ctx, "/match/queue?playerId="+url.QueryEscape(playerID), nil)
	if err != nil {
		return "", fmt.Errorf("failed to queue player: %w", err)
	}
	var resp struct {
		MatchID string `json:"matchId"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("failed to decode queue response: %w", err)
	}
	return resp.MatchID, nil
}

func (c *DuelClient) GetRoom(ctx context.Context, matchID string) (*models.MatchRoom, error) {
	data, err := c.Get(ctx, "/match/room/"+url.PathEscape(matchID))
	if err != nil {
		return nil, fmt.Errorf("failed to get room: %w", err)
	}
	var room models.MatchRoom
	if err := json.Unmarshal(data, &room); err != nil {
		return nil, fmt.Errorf("failed to decode room: %w", err)
	}
	return &room, nil
}

func (c *DuelClient) CloseRoom(ctx context.Context, matchID string) error {
	if _, err := c.Delete(ctx, "/match/room/"+url.PathEscape(matchID)); err != nil {
		return fmt.Errorf("failed to close room: %w", err)
	}
	return nil
}

func (c *DuelClient) SubmitRanking(ctx context.Context, ranking models.PlayerRanking) (*SubmitResult, error) {
	body, err := json.Marshal(ranking)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal ranking: %w", err)
	}
	data, err := c.Post(ctx, "/api/rankings", body)
	if err != nil {
		return nil, fmt.Errorf("failed to submit ranking: %w", err)
	}
	var result SubmitResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to decode submit response: %w", err)
	}
	return &result, nil
}

// Rankings fetches the leaderboard. limit <= 0 and an empty gameMode mean
// no filter.
func (c *DuelClient) Rankings(ctx context.Context, limit int, gameMode string) ([]models.PlayerRanking, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if gameMode != "" {
		q.Set("gameMode", gameMode)
	}
	endpoint := "/api/rankings"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}

	data, err := c.Get(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to get rankings: %w", err)
	}
	var rankings []models.PlayerRanking
	if err := json.Unmarshal(data, &rankings); err != nil {
		return nil, fmt.Errorf("failed to decode rankings: %w", err)
	}
	return rankings, nil
}

// Position returns the player's 1-based rank, or -1.
func (c *DuelClient) Position(ctx context.Context, playerName string) (int, error) {
	data, err := c.Get(ctx, "/api/rankings/position/"+url.PathEscape(playerName))
	if err != nil {
		return 0, fmt.Errorf("failed to get position: %w", err)
	}
	var pos int
	if err := json.Unmarshal(data, &pos); err != nil {
		return 0, fmt.Errorf("failed to decode position: %w", err)
	}
	return pos, nil
}
