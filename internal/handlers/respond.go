package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/tubestream/backend/internal/logging"
	"github.com/tubestream/backend/internal/models"
)

func respondJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.FromContext(ctx).Error("encode response body", "status", status, "error", err)
		return
	}

	logger := logging.FromContext(ctx)
	switch {
	case status >= http.StatusInternalServerError:
		logger.Error("request failed", "status", status, "response", payload)
	case status >= http.StatusBadRequest:
		logger.Warn("request returned client error", "status", status, "response", payload)
	}
}

// fieldErrors accumulates per-field validation messages so a response can
// report every problem at once instead of failing on the first.
type fieldErrors map[string]string

func (e fieldErrors) add(field, message string) {
	if _, exists := e[field]; !exists {
		e[field] = message
	}
}

func (e fieldErrors) respond(ctx context.Context, w http.ResponseWriter) bool {
	if len(e) == 0 {
		return false
	}
	respondJSON(ctx, w, http.StatusBadRequest, map[string]fieldErrors{"errors": e})
	return true
}

// ownsResource normalizes an owner reference to its canonical string id and
// compares it to the acting user. References arrive either as plain ids or as
// resolved user projections, depending on how the record was loaded.
func ownsResource(ownerRef any, userID string) bool {
	if userID == "" {
		return false
	}
	switch ref := ownerRef.(type) {
	case string:
		return ref == userID
	case *string:
		return ref != nil && *ref == userID
	case models.PublicUser:
		return ref.ID == userID
	case models.User:
		return ref.ID == userID
	default:
		return false
	}
}
