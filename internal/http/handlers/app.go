package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"

	"thealttext/internal/bulk"
	"thealttext/internal/domain"
	"thealttext/internal/generation"
	"thealttext/internal/infra"
	"thealttext/internal/middleware"
	"thealttext/internal/providers/vision"
	"thealttext/internal/scan"
	"thealttext/internal/storage"
	"thealttext/internal/usage"
	"thealttext/internal/webhook"
)

// App is the handler dependency container.
type App struct {
	Logger     infra.Logger
	Config     *infra.Config
	Executor   *generation.Executor
	Chain      []vision.Provider
	Bulk       *bulk.Coordinator
	Auditor    *scan.Auditor
	Dispatcher *webhook.Dispatcher
	Accountant *usage.Accountant
	Webhooks   domain.WebhookRepository
	Events     domain.EventRepository
	Keys       domain.APIKeyRepository
	Files      *storage.FileStore
	Validate   *validator.Validate
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.json(w, status, map[string]errorResponse{"error": {Code: code, Message: message}})
}

// domainError maps domain sentinels onto HTTP responses.
func (a *App) domainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", "resource not found")
	case errors.Is(err, domain.ErrUnauthorized):
		a.error(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
	case errors.Is(err, domain.ErrExhausted):
		a.error(w, http.StatusBadGateway, "providers_exhausted", err.Error())
	default:
		a.Logger.Error().Err(err).Msg("handler: internal error")
		a.error(w, http.StatusInternalServerError, "internal", "internal error")
	}
}

func (a *App) currentOwnerID(r *http.Request) string {
	return middleware.OwnerIDFromContext(r.Context())
}

func (a *App) validate(v any) error {
	if a.Validate == nil {
		return nil
	}
	return a.Validate.Struct(v)
}
