package domain

import "time"

// WebhookEndpoint is an externally registered HTTP target for signed event
// notifications. Created and revoked by account management; the dispatcher
// only reads it.
type WebhookEndpoint struct {
	ID        string      `json:"id"`
	OwnerID   string      `json:"-"`
	URL       string      `json:"url"`
	Secret    string      `json:"-"`
	Events    []EventType `json:"events"`
	Enabled   bool        `json:"enabled"`
	CreatedAt time.Time   `json:"created_at"`
}

// SubscribedTo reports whether the endpoint wants the given event type.
func (e *WebhookEndpoint) SubscribedTo(t EventType) bool {
	if e == nil || !e.Enabled {
		return false
	}
	for _, et := range e.Events {
		if et == t {
			return true
		}
	}
	return false
}
