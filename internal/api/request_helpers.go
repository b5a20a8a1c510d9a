package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/lingo-api/internal/api/shared"
)

// getPathUUID extracts a UUID from the URL path parameters.
func getPathUUID(r *http.Request, paramName string) (uuid.UUID, error) {
	raw := chi.URLParam(r, paramName)
	if raw == "" {
		return uuid.Nil, fmt.Errorf("%w: %s is required", errInvalidID, paramName)
	}

	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s has invalid format", errInvalidID, paramName)
	}
	return id, nil
}

// handleUserIDAndPathUUID extracts the authenticated user and the path id. It
// writes an error response and returns false if either is missing.
func handleUserIDAndPathUUID(w http.ResponseWriter, r *http.Request, paramName string) (string, uuid.UUID, bool) {
	userID, ok := shared.GetUserID(r.Context())
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "User ID not found or invalid")
		return "", uuid.Nil, false
	}

	id, err := getPathUUID(r, paramName)
	if err != nil {
		HandleAPIError(w, r, err)
		return "", uuid.Nil, false
	}

	return userID, id, true
}
