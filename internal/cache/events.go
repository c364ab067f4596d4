package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"byteshop/internal/models"
)

// Publish sends evt on the user's channel. Every server instance holding a
// websocket for that user receives it.
func (r *Redis) Publish(ctx context.Context, userID string, evt models.Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	return r.client.Publish(ctx, eventsChannel(userID), data).Err()
}

// Subscribe streams the raw JSON events of userID until ctx is done or the
// returned close func is called.
func (r *Redis) Subscribe(ctx context.Context, userID string) (<-chan []byte, func() error) {
	sub := r.client.Subscribe(ctx, eventsChannel(userID))
	out := make(chan []byte, 16)
	go func() {
		defer close(out)
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				default:
					r.log.WithField("user_id", userID).Debug("event dropped, slow consumer")
				}
			}
		}
	}()
	return out, sub.Close
}
