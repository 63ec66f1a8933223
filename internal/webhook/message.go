package webhook

import (
	"encoding/json"
	"time"

	"github.com/linkforty/linkforty/internal/domain"
)

// message is the envelope carried over JetStream, queueing retry state
// alongside the data that will eventually be delivered.
type message struct {
	EventID    string           `json:"event_id"`
	WebhookID  string           `json:"webhook_id"`
	EventType  domain.EventType `json:"event_type"`
	Payload    json.RawMessage `json:"payload"`
	Attempt    int             `json:"attempt"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

// deliveryEnvelope is the exact JSON body POSTed to a subscriber's URL:
// `{event, event_id, timestamp, data}`.
type deliveryEnvelope struct {
	Event     domain.EventType `json:"event"`
	EventID   string          `json:"event_id"`
	Timestamp string          `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

func newDeliveryEnvelope(msg message) deliveryEnvelope {
	return deliveryEnvelope{
		Event:     msg.EventType,
		EventID:   msg.EventID,
		Timestamp: msg.EnqueuedAt.UTC().Format(time.RFC3339),
		Data:      msg.Payload,
	}
}
