package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
)

type animateRequest struct {
	RecordID string `json:"recordId"`
}

// Animate accepts the webhook trigger. The response is written before any
// external call happens so the caller never waits on the generation API.
func (a *App) Animate(w http.ResponseWriter, r *http.Request) {
	var req animateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "invalid payload")
		return
	}
	recordID := strings.TrimSpace(req.RecordID)
	if recordID == "" {
		a.error(w, http.StatusBadRequest, "recordId is required")
		return
	}

	a.json(w, http.StatusOK, map[string]any{
		"success":  true,
		"message":  "animation run started",
		"recordId": recordID,
	})
	a.startRun(recordID)
}
