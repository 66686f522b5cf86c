package handlers

import (
	"encoding/json"
	"net/http"
)

type scanRequest struct {
	URL string `json:"url" validate:"required,url"`
}

// Scan audits a single page for image alt text compliance.
func (a *App) Scan(w http.ResponseWriter, r *http.Request) {
	ownerID := a.currentOwnerID(r)
	if ownerID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	var req scanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if err := a.validate(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	report, err := a.Auditor.Audit(r.Context(), ownerID, req.URL)
	if err != nil {
		a.domainError(w, err)
		return
	}
	a.json(w, http.StatusOK, report)
}
