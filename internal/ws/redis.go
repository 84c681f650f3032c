package ws

import (
	"context"
	"encoding/json"
	"log"

	"github.com/redis/go-redis/v9"

	"github.com/thoward27/friend-olympics/internal/notify"
)

// StartScoreSubscriber subscribes to the score_events channel and fans every
// score push out to the connected clients. Settlement publishes through redis
// rather than calling the hub directly, so multiple server processes all see
// the same feed.
func StartScoreSubscriber(ctx context.Context, rdb *redis.Client, hub *Hub) {
	if rdb == nil {
		log.Println("[WS] Redis client not set; score subscriber not started")
		return
	}

	pubsub := rdb.Subscribe(ctx, notify.ScoreChannel)
	ch := pubsub.Channel()
	go func() {
		log.Println("[WS] score_events subscriber started")
		for msg := range ch {
			var event notify.ScoreEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Printf("[WS] invalid score event payload: %v", err)
				continue
			}
			data, err := json.Marshal(event)
			if err != nil {
				log.Printf("[WS] marshal score event: %v", err)
				continue
			}
			hub.Broadcast(data)
		}
	}()
}
