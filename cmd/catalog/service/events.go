package service

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/lyzr/mediacatalog/cmd/catalog/models"
	"github.com/lyzr/mediacatalog/common/logger"
	"github.com/lyzr/mediacatalog/common/queue"
)

// EventPublisher emits domain events after state changes commit.
// Publishing is best effort: failures are logged and never returned.
type EventPublisher struct {
	queue queue.Queue
	topic string
	log   *logger.Logger
}

// NewEventPublisher creates a publisher. A nil queue disables events.
func NewEventPublisher(q queue.Queue, topic string, log *logger.Logger) *EventPublisher {
	return &EventPublisher{queue: q, topic: topic, log: log}
}

// Publish sends evt keyed by its entry id
func (p *EventPublisher) Publish(ctx context.Context, evt *models.Event) {
	if p == nil || p.queue == nil {
		return
	}

	body, err := json.Marshal(evt)
	if err != nil {
		p.log.Warn("failed to encode event", "type", evt.Type, "error", err)
		return
	}

	if err := p.queue.Publish(ctx, p.topic, strconv.FormatInt(evt.EntryID, 10), body); err != nil {
		p.log.Warn("failed to publish event",
			"type", evt.Type,
			"entry_id", evt.EntryID,
			"error", err,
		)
	}
}
