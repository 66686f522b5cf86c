package handlers

import (
	"encoding/json"
	"net/http"

	"thealttext/internal/wcag"
)

type wcagCheckRequest struct {
	AltText string `json:"alt_text" validate:"max=2000"`
}

// WCAGCheck scores caller-provided alt text against WCAG authoring guidance.
func (a *App) WCAGCheck(w http.ResponseWriter, r *http.Request) {
	var req wcagCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if err := a.validate(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	a.json(w, http.StatusOK, wcag.Analyze(req.AltText))
}
