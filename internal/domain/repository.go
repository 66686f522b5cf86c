package domain

import "context"

// WebhookRepository defines persistence for webhook endpoints.
type WebhookRepository interface {
	Create(ctx context.Context, endpoint *WebhookEndpoint) error
	ListByOwner(ctx context.Context, ownerID string) ([]WebhookEndpoint, error)
	ListForEvent(ctx context.Context, ownerID string, eventType EventType) ([]WebhookEndpoint, error)
	GetByID(ctx context.Context, id string) (*WebhookEndpoint, error)
	Delete(ctx context.Context, id, ownerID string) error
}

// EventRepository persists domain events and their delivery records.
type EventRepository interface {
	SaveEvent(ctx context.Context, event *DomainEvent) error
	SaveDelivery(ctx context.Context, delivery *EventDelivery) error
	ListExhausted(ctx context.Context, endpointID string, limit int) ([]EventDelivery, error)
}

// UsageRepository records billable attempt events.
type UsageRepository interface {
	InsertAttempt(ctx context.Context, attempt *ModelAttempt) error
}

// APIKeyRepository defines persistence for developer API keys.
type APIKeyRepository interface {
	Create(ctx context.Context, key *APIKey) error
	GetByKey(ctx context.Context, raw string) (*APIKey, error)
	Revoke(ctx context.Context, id, ownerID string) error
}
