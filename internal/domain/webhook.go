package domain

import "time"

// EventType is a subscribable webhook event kind.
type EventType string

const (
	EventClick      EventType = "click_event"
	EventInstall    EventType = "install_event"
	EventConversion EventType = "conversion_event"
)

const (
	// MinMaxAttempts / MaxMaxAttempts bound webhook.max_attempts.
	MinMaxAttempts = 1
	MaxMaxAttempts = 10
	DefaultMaxAttempts = 3

	// MinTimeoutMS / MaxTimeoutMS bound webhook.timeout_ms.
	MinTimeoutMS     = 1000
	MaxTimeoutMS     = 60000
	DefaultTimeoutMS = 10000

	// MaxBackoffMS is the ceiling applied to the exponential backoff.
	MaxBackoffMS = 30000
)

// Webhook is a user-configured HTTP subscriber.
type Webhook struct {
	ID      string  `db:"id" json:"id"`
	OwnerID *string `db:"owner_id" json:"owner_id,omitempty"`

	Name string `db:"name" json:"name"`
	URL  string `db:"url" json:"url"`

	// Secret is 32 random bytes, hex-encoded. Never re-exposed after create/rotate.
	Secret string `db:"secret" json:"-"`

	Events []EventType `db:"events" json:"events"`

	IsActive      bool              `db:"is_active" json:"is_active"`
	MaxAttempts   int               `db:"max_attempts" json:"max_attempts"`
	TimeoutMS     int               `db:"timeout_ms" json:"timeout_ms"`
	Headers       map[string]string `db:"headers" json:"headers,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Subscribes reports whether the webhook is active and subscribed to evt.
func (w Webhook) Subscribes(evt EventType) bool {
	if !w.IsActive {
		return false
	}
	for _, e := range w.Events {
		if e == evt {
			return true
		}
	}
	return false
}

// DeliveryLog records the outcome of one delivery attempt for one (webhook, event) pair.
type DeliveryLog struct {
	ID        string    `db:"id" json:"id"`
	WebhookID string    `db:"webhook_id" json:"webhook_id"`
	EventID   string    `db:"event_id" json:"event_id"`
	EventType EventType `db:"event_type" json:"event_type"`

	Attempt        int    `db:"attempt" json:"attempt"`
	Success        bool   `db:"success" json:"success"`
	ResponseStatus int    `db:"response_status" json:"response_status,omitempty"`
	ResponseBody   string `db:"response_body" json:"response_body,omitempty"`
	Error          string `db:"error" json:"error,omitempty"`

	AttemptedAt time.Time `db:"attempted_at" json:"attempted_at"`
}
