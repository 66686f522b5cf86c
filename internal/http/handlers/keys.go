package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"thealttext/internal/domain"
)

type keyCreateRequest struct {
	Label string `json:"label" validate:"required,max=100"`
}

// KeysCreate issues a new API key. The raw key is returned once and only a
// digest is stored.
func (a *App) KeysCreate(w http.ResponseWriter, r *http.Request) {
	ownerID := a.currentOwnerID(r)
	if ownerID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var req keyCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if err := a.validate(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	key := domain.APIKey{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Label:     req.Label,
		Key:       newAPIKey(),
		CreatedAt: time.Now().UTC(),
	}
	if err := a.Keys.Create(r.Context(), &key); err != nil {
		a.domainError(w, err)
		return
	}
	a.publish(domain.NewEvent(domain.EventAPIKeyCreated, ownerID, map[string]string{
		"key_id": key.ID,
		"label":  key.Label,
	}))
	a.json(w, http.StatusCreated, key)
}

// KeysRevoke permanently disables an API key.
func (a *App) KeysRevoke(w http.ResponseWriter, r *http.Request) {
	ownerID := a.currentOwnerID(r)
	if ownerID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	id := chi.URLParam(r, "id")
	if err := a.Keys.Revoke(r.Context(), id, ownerID); err != nil {
		a.domainError(w, err)
		return
	}
	a.publish(domain.NewEvent(domain.EventAPIKeyRevoked, ownerID, map[string]string{"key_id": id}))
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) publish(event domain.DomainEvent) {
	if a.Dispatcher != nil {
		a.Dispatcher.Publish(event)
	}
}

func newAPIKey() string {
	buf := make([]byte, 24)
	_, _ = rand.Read(buf)
	return "tat_live_" + hex.EncodeToString(buf)
}
