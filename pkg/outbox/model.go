package outbox

import (
	"encoding/json"
	"fmt"
	"time"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusSent       Status = "sent"
	StatusFailed     Status = "failed"
)

// MaxRetries is the number of failed dispatches after which an event is
// parked as failed instead of going back to pending.
const MaxRetries = 5

// Event is one row of the outbox table. The relay owns everything below
// Traceparent.
type Event struct {
	ID            int64
	AggregateType string
	AggregateID   string
	Type          string
	Payload       []byte
	Headers       map[string]string
	Traceparent   string

	CreatedAt  time.Time
	Status     Status
	RelayID    string
	RetryCount int
	LastError  *string
}

// NewEvent encodes payload as JSON into a pending event.
func NewEvent(aggregateType, aggregateID, eventType string, payload any) (Event, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	return Event{
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		Type:          eventType,
		Payload:       body,
		Headers:       map[string]string{},
		Status:        StatusPending,
	}, nil
}
