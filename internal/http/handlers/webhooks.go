package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"thealttext/internal/domain"
)

type webhookCreateRequest struct {
	URL    string   `json:"url" validate:"required,url"`
	Events []string `json:"events" validate:"required,min=1"`
}

type webhookCreateResponse struct {
	domain.WebhookEndpoint
	// Secret is only revealed once, at registration.
	Secret string `json:"secret"`
}

// WebhooksCreate registers a new endpoint and returns its signing secret.
func (a *App) WebhooksCreate(w http.ResponseWriter, r *http.Request) {
	ownerID := a.currentOwnerID(r)
	if ownerID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var req webhookCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if err := a.validate(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	events := make([]domain.EventType, len(req.Events))
	for i, raw := range req.Events {
		t := domain.EventType(raw)
		if !domain.ValidEventType(t) {
			a.error(w, http.StatusBadRequest, "bad_request", "unknown event type: "+raw)
			return
		}
		events[i] = t
	}

	endpoint := domain.WebhookEndpoint{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		URL:       req.URL,
		Secret:    newWebhookSecret(),
		Events:    events,
		Enabled:   true,
		CreatedAt: time.Now().UTC(),
	}
	if err := a.Webhooks.Create(r.Context(), &endpoint); err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusCreated, webhookCreateResponse{WebhookEndpoint: endpoint, Secret: endpoint.Secret})
}

// WebhooksList returns the caller's registered endpoints.
func (a *App) WebhooksList(w http.ResponseWriter, r *http.Request) {
	ownerID := a.currentOwnerID(r)
	if ownerID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	endpoints, err := a.Webhooks.ListByOwner(r.Context(), ownerID)
	if err != nil {
		a.domainError(w, err)
		return
	}
	if endpoints == nil {
		endpoints = []domain.WebhookEndpoint{}
	}
	a.json(w, http.StatusOK, map[string]any{"items": endpoints})
}

// WebhooksDelete removes an endpoint owned by the caller.
func (a *App) WebhooksDelete(w http.ResponseWriter, r *http.Request) {
	ownerID := a.currentOwnerID(r)
	if ownerID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	id := chi.URLParam(r, "id")
	if err := a.Webhooks.Delete(r.Context(), id, ownerID); err != nil {
		a.domainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// WebhooksTest sends one synchronous signed ping to the endpoint and reports
// the round trip, so owners can verify their receiver before relying on it.
func (a *App) WebhooksTest(w http.ResponseWriter, r *http.Request) {
	ownerID := a.currentOwnerID(r)
	if ownerID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	id := chi.URLParam(r, "id")
	endpoint, err := a.Webhooks.GetByID(r.Context(), id)
	if err != nil || endpoint.OwnerID != ownerID {
		a.domainError(w, domain.ErrNotFound)
		return
	}

	event := domain.NewEvent(domain.EventAltTextGenerated, ownerID, map[string]string{
		"test":     "true",
		"alt_text": "A test delivery from TheAltText",
	})
	status, latency, err := a.Dispatcher.TestDelivery(r.Context(), *endpoint, event)
	resp := map[string]any{
		"status_code": status,
		"latency_ms":  latency.Milliseconds(),
		"delivered":   err == nil && status >= 200 && status < 300,
	}
	if err != nil {
		resp["error"] = err.Error()
	}
	a.json(w, http.StatusOK, resp)
}

// WebhooksFailures lists deliveries to the endpoint that exhausted all retries.
func (a *App) WebhooksFailures(w http.ResponseWriter, r *http.Request) {
	ownerID := a.currentOwnerID(r)
	if ownerID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	id := chi.URLParam(r, "id")
	endpoint, err := a.Webhooks.GetByID(r.Context(), id)
	if err != nil || endpoint.OwnerID != ownerID {
		a.domainError(w, domain.ErrNotFound)
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	deliveries, err := a.Events.ListExhausted(r.Context(), endpoint.ID, limit)
	if err != nil {
		a.domainError(w, err)
		return
	}
	if deliveries == nil {
		deliveries = []domain.EventDelivery{}
	}
	a.json(w, http.StatusOK, map[string]any{"items": deliveries})
}

// WebhookEventTypes returns the deliverable event catalog.
func (a *App) WebhookEventTypes(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]any{"events": domain.EventCatalog})
}

func newWebhookSecret() string {
	buf := make([]byte, 24)
	_, _ = rand.Read(buf)
	return "whsec_" + hex.EncodeToString(buf)
}
