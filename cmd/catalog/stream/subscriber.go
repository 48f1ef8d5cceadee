package stream

import (
	"context"
	"strconv"

	"github.com/lyzr/mediacatalog/common/queue"
)

// Subscribe forwards every event published on topic to the hub.
// Queue messages are keyed by entry id.
func (h *Hub) Subscribe(ctx context.Context, q queue.Queue, topic string) error {
	return q.Subscribe(ctx, topic, func(ctx context.Context, key string, value []byte) error {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			h.log.Warn("skipping event with malformed key", "key", key)
			return nil
		}
		h.Broadcast(&Message{EntryID: id, Data: value})
		return nil
	})
}
