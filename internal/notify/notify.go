package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ScoreChannel is the redis pub/sub channel carrying score-changed events
// from settlement to the websocket layer.
const ScoreChannel = "score_events"

// ScoreEvent is the wire format of one score push.
type ScoreEvent struct {
	Type     string    `json:"type"`
	PlayerID uuid.UUID `json:"player_id"`
	Username string    `json:"username"`
	Score    int       `json:"score"`
}

// RedisPublisher publishes score events to redis. It implements the
// settlement engine's ScorePublisher interface; delivery is best-effort with
// a short timeout so a slow redis can never hold up settlement.
type RedisPublisher struct {
	rdb *redis.Client
}

func NewRedisPublisher(rdb *redis.Client) *RedisPublisher {
	return &RedisPublisher{rdb: rdb}
}

func (p *RedisPublisher) PublishScore(ctx context.Context, playerID uuid.UUID, username string, score int) error {
	payload, err := json.Marshal(ScoreEvent{
		Type:     "player_score",
		PlayerID: playerID,
		Username: username,
		Score:    score,
	})
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return p.rdb.Publish(ctx, ScoreChannel, payload).Err()
}
