package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/lyzr/mediacatalog/common/logger"
	"github.com/lyzr/mediacatalog/common/redis"
)

// RedisQueue fans messages out over Redis pub/sub. Unlike MemoryQueue every
// subscriber sees every message, and nothing is retained for late subscribers.
type RedisQueue struct {
	client *redis.Client
	log    *logger.Logger

	mu     sync.Mutex
	wg     sync.WaitGroup
	cancel []context.CancelFunc
	closed bool
}

type wireMessage struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

// NewRedisQueue creates a queue on top of the shared Redis client
func NewRedisQueue(client *redis.Client, log *logger.Logger) *RedisQueue {
	return &RedisQueue{client: client, log: log}
}

// Publish publishes message on the topic channel. message must be JSON.
func (q *RedisQueue) Publish(ctx context.Context, topic string, key string, message []byte) error {
	q.mu.Lock()
	closed := q.closed
	q.mu.Unlock()
	if closed {
		return ErrClosed
	}

	payload, err := json.Marshal(wireMessage{Key: key, Value: message})
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	return q.client.PublishEvent(ctx, topic, string(payload))
}

// Subscribe starts a pub/sub receiver for topic
func (q *RedisQueue) Subscribe(ctx context.Context, topic string, handler MessageHandler) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	subCtx, cancel := context.WithCancel(ctx)
	q.cancel = append(q.cancel, cancel)
	q.wg.Add(1)
	q.mu.Unlock()

	sub := q.client.Subscribe(subCtx, topic)
	if _, err := sub.Receive(subCtx); err != nil {
		cancel()
		_ = sub.Close()
		q.wg.Done()
		return fmt.Errorf("subscribe %s: %w", topic, err)
	}

	q.log.Info("subscribing to topic", "topic", topic)

	go func() {
		defer q.wg.Done()
		defer sub.Close()

		ch := sub.Channel()
		for {
			select {
			case <-subCtx.Done():
				q.log.Info("subscription cancelled", "topic", topic)
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var wm wireMessage
				if err := json.Unmarshal([]byte(msg.Payload), &wm); err != nil {
					q.log.Error("malformed message", "topic", topic, "error", err)
					continue
				}
				if err := handler(subCtx, wm.Key, wm.Value); err != nil {
					q.log.Error("message handler error", "topic", topic, "key", wm.Key, "error", err)
				}
			}
		}
	}()

	return nil
}

// Close stops all subscriptions. The Redis client is owned by the caller.
func (q *RedisQueue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	for _, cancel := range q.cancel {
		cancel()
	}
	q.mu.Unlock()

	q.wg.Wait()
	return nil
}
