package rankings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/touchtyped/typeduel/go/internal/models"
)

// RedisRepository stores the leaderboard as a JSON document under key and
// mirrors it into a sorted set (key + ":scores") for external readers.
type RedisRepository struct {
	client redis.UniversalClient
	key    string
}

func NewRedisRepository(client redis.UniversalClient, key string) *RedisRepository {
	if key == "" {
		key = "typeduel:rankings"
	}
	return &RedisRepository{client: client, key: key}
}

func (r *RedisRepository) Name() string { return "redis" }

func (r *RedisRepository) scoresKey() string { return r.key + ":scores" }

func (r *RedisRepository) Load(ctx context.Context) ([]models.PlayerRanking, error) {
	data, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read rankings from redis: %w", err)
	}

	var rankings []models.PlayerRanking
	if err := json.Unmarshal(data, &rankings); err != nil {
		return nil, fmt.Errorf("failed to parse rankings from redis: %w", err)
	}
	return rankings, nil
}

func (r *RedisRepository) Save(ctx context.Context, rankings []models.PlayerRanking) error {
	data, err := json.Marshal(rankings)
	if err != nil {
		return fmt.Errorf("failed to marshal rankings: %w", err)
	}

	members := make([]redis.Z, len(rankings))
	for i, rk := range rankings {
		// accuracy is at most 100, so it only breaks WPM ties
		members[i] = redis.Z{Score: float64(rk.WPM) + rk.Accuracy/1000, Member: rk.PlayerName}
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.key, data, 0)
		pipe.Del(ctx, r.scoresKey())
		if len(members) > 0 {
			pipe.ZAdd(ctx, r.scoresKey(), members...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write rankings to redis: %w", err)
	}
	return nil
}
