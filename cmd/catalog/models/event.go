package models

import (
	"time"

	"github.com/google/uuid"
)

// EventType names a domain event
type EventType string

const (
	EventEntryCreated EventType = "entry.created"
	EventEntryUpdated EventType = "entry.updated"
	EventPayloadBound EventType = "payload.bound"
	EventEntryLiked   EventType = "entry.liked"
	EventEntryUnliked EventType = "entry.unliked"
)

// Event is published after a state change has been committed
type Event struct {
	ID         uuid.UUID `json:"id"`
	Type       EventType `json:"type"`
	EntryID    int64     `json:"entryId"`
	Caller     string    `json:"caller,omitempty"`
	Likes      *int64    `json:"likes,omitempty"`
	Bytes      *int64    `json:"bytes,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// NewEvent creates an event with a fresh id
func NewEvent(eventType EventType, entryID int64) *Event {
	return &Event{
		ID:         uuid.New(),
		Type:       eventType,
		EntryID:    entryID,
		OccurredAt: time.Now().UTC(),
	}
}
