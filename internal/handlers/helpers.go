package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/benvon/voice-planner/internal/database"
	"github.com/benvon/voice-planner/internal/planning"
	"github.com/benvon/voice-planner/internal/request"
	"github.com/benvon/voice-planner/internal/routines"
	"github.com/benvon/voice-planner/internal/services/planner"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// maxErrorMessageLength bounds messages echoed back to clients
const maxErrorMessageLength = 300

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := map[string]any{
		"success":   true,
		"data":      data,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// sanitizeErrorMessage keeps the first line of a message and truncates it
func sanitizeErrorMessage(message string) string {
	sanitized, _, _ := strings.Cut(message, "\n")
	if len(sanitized) > maxErrorMessageLength {
		sanitized = sanitized[:maxErrorMessageLength] + "..."
	}
	return sanitized
}

// respondJSONError sends an error JSON response with sanitized error messages
func respondJSONError(w http.ResponseWriter, status int, errorType, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := map[string]any{
		"success":   false,
		"error":     errorType,
		"message":   sanitizeErrorMessage(message),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// respondServiceError maps domain errors to HTTP statuses. Unknown errors
// are reported as 500 without their detail.
func respondServiceError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, planning.ErrNothingToPlan):
		respondJSONError(w, http.StatusUnprocessableEntity, "Nothing To Plan", err.Error())
	case errors.Is(err, planner.ErrInvalidTask),
		errors.Is(err, planner.ErrInvalidDate),
		errors.Is(err, planner.ErrInvalidRange),
		errors.Is(err, routines.ErrInvalidRoutine):
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
	case errors.Is(err, routines.ErrNotFound), errors.Is(err, database.ErrNotFound):
		respondJSONError(w, http.StatusNotFound, "Not Found", fallbackNotFound(err))
	case errors.Is(err, routines.ErrConcurrentUpdate):
		respondJSONError(w, http.StatusConflict, "Conflict", err.Error())
	default:
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", fallback)
	}
}

func fallbackNotFound(err error) string {
	if errors.Is(err, routines.ErrNotFound) {
		return "Routine not found"
	}
	return "Resource not found"
}

// decodeJSON decodes the request body into dst, writing the error response
// itself on failure
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			respondJSONError(w, http.StatusRequestEntityTooLarge, "Request Entity Too Large",
				fmt.Sprintf("Request body exceeds maximum size of %d bytes", maxBytesErr.Limit))
			return false
		}
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid request body: "+err.Error())
		return false
	}
	return true
}

// currentUser returns the caller identity, writing a 401 when absent
func currentUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, ok := request.UserID(r)
	if !ok {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "User not found in context")
		return uuid.Nil, false
	}
	return id, true
}

// pathID parses the {id} route variable
func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid ID format")
		return uuid.Nil, false
	}
	return id, true
}
