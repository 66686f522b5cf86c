package handlers

import (
	"net/http"

	"thealttext/internal/usage"
)

// Usage returns the caller's usage aggregate with the carbon ledger framed in
// human terms.
func (a *App) Usage(w http.ResponseWriter, r *http.Request) {
	ownerID := a.currentOwnerID(r)
	if ownerID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	snapshot := a.Accountant.Snapshot(ownerID)
	a.json(w, http.StatusOK, map[string]any{
		"usage":  snapshot,
		"carbon": usage.FormatCarbon(snapshot.EstimatedCarbon),
	})
}
