package handlers

import (
	"context"
	"net/http"

	"github.com/benvon/voice-planner/internal/cache"
	"github.com/benvon/voice-planner/internal/models"
	"github.com/benvon/voice-planner/internal/validation"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// PreferencesStore reads and writes user preferences
type PreferencesStore interface {
	Get(ctx context.Context, userID uuid.UUID) (models.Preferences, error)
	Put(ctx context.Context, p models.Preferences) (models.Preferences, error)
}

var _ PreferencesStore = (*cache.PreferencesCache)(nil)

// PreferencesHandler handles preference requests
type PreferencesHandler struct {
	store PreferencesStore
}

// NewPreferencesHandler creates a new preferences handler
func NewPreferencesHandler(store PreferencesStore) *PreferencesHandler {
	return &PreferencesHandler{store: store}
}

// RegisterRoutes registers preference routes on a router with the /preferences prefix
func (h *PreferencesHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("", h.Get).Methods("GET")
	r.HandleFunc("", h.Put).Methods("PUT")
}

// Get returns the caller's preferences with defaults applied
func (h *PreferencesHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	p, err := h.store.Get(r.Context(), userID)
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to retrieve preferences")
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// Put updates the caller's preferences. Fields absent from the body keep
// their current value.
func (h *PreferencesHandler) Put(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	p, err := h.store.Get(r.Context(), userID)
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to retrieve preferences")
		return
	}
	if !decodeJSON(w, r, &p) {
		return
	}
	p.UserID = userID

	if err := validation.Preferences(p); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	saved, err := h.store.Put(r.Context(), p)
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to save preferences")
		return
	}
	respondJSON(w, http.StatusOK, saved)
}
