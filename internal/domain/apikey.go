package domain

import "time"

// APIKey grants programmatic access to the generation API.
type APIKey struct {
	ID         string     `json:"id"`
	OwnerID    string     `json:"-"`
	Label      string     `json:"label"`
	Key        string     `json:"key,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
}

// Active reports whether the key may still be used.
func (k *APIKey) Active() bool {
	return k != nil && k.RevokedAt == nil
}
