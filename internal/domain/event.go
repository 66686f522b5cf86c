package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType enumerates the fixed event catalog.
type EventType string

const (
	EventAltTextGenerated     EventType = "alt_text.generated"
	EventAltTextFailed        EventType = "alt_text.failed"
	EventBulkStarted          EventType = "bulk.started"
	EventBulkCompleted        EventType = "bulk.completed"
	EventScanStarted          EventType = "scan.started"
	EventScanCompleted        EventType = "scan.completed"
	EventSubscriptionCreated  EventType = "subscription.created"
	EventSubscriptionCanceled EventType = "subscription.canceled"
	EventAPIKeyCreated        EventType = "api_key.created"
	EventAPIKeyRevoked        EventType = "api_key.revoked"
)

// EventCatalog lists every deliverable event type, in catalog order.
var EventCatalog = []EventType{
	EventAltTextGenerated,
	EventAltTextFailed,
	EventBulkStarted,
	EventBulkCompleted,
	EventScanStarted,
	EventScanCompleted,
	EventSubscriptionCreated,
	EventSubscriptionCanceled,
	EventAPIKeyCreated,
	EventAPIKeyRevoked,
}

// ValidEventType reports whether t belongs to the catalog.
func ValidEventType(t EventType) bool {
	for _, known := range EventCatalog {
		if t == known {
			return true
		}
	}
	return false
}

// DeliveryStatus tracks webhook delivery progress for an event.
type DeliveryStatus string

const (
	DeliveryPending   DeliveryStatus = "pending"
	DeliveryDelivered DeliveryStatus = "delivered"
	DeliveryExhausted DeliveryStatus = "exhausted"
)

// DomainEvent is raised by any component completing a meaningful state
// transition. The event id is stable across delivery retries so receivers can
// deduplicate.
type DomainEvent struct {
	ID         string          `json:"event_id"`
	Type       EventType       `json:"type"`
	OwnerID    string          `json:"-"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// NewEvent creates a DomainEvent with a fresh stable id and the payload
// serialized as the entity snapshot.
func NewEvent(t EventType, ownerID string, payload any) DomainEvent {
	raw, err := json.Marshal(payload)
	if err != nil {
		raw = json.RawMessage(`{}`)
	}
	return DomainEvent{
		ID:         uuid.NewString(),
		Type:       t,
		OwnerID:    ownerID,
		OccurredAt: time.Now().UTC(),
		Payload:    raw,
	}
}

// EventDelivery is the per-endpoint delivery record for one event.
type EventDelivery struct {
	EventID    string         `json:"event_id"`
	EndpointID string         `json:"endpoint_id"`
	EventType  EventType      `json:"event_type"`
	Status     DeliveryStatus `json:"status"`
	Attempts   int            `json:"attempts"`
	LastError  string         `json:"last_error,omitempty"`
	UpdatedAt  time.Time      `json:"updated_at"`
}
