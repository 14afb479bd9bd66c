package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/benvon/voice-planner/internal/clock"
	"github.com/benvon/voice-planner/internal/models"
	"github.com/benvon/voice-planner/internal/routines"
	"github.com/benvon/voice-planner/internal/validation"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// RoutineManager is the routine management used by the HTTP layer
type RoutineManager interface {
	Create(ctx context.Context, userID uuid.UUID, in routines.Input) (*models.Routine, error)
	Get(ctx context.Context, userID, id uuid.UUID) (*models.Routine, error)
	List(ctx context.Context, userID uuid.UUID, activeOnly bool) ([]*models.Routine, error)
	Update(ctx context.Context, userID, id uuid.UUID, patch routines.Patch) (*models.Routine, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
	Toggle(ctx context.Context, userID, id uuid.UUID) (*models.Routine, error)
	Renew(ctx context.Context, userID, id uuid.UUID) (*models.Routine, error)
	Deactivate(ctx context.Context, userID, id uuid.UUID) error
	Reactivate(ctx context.Context, userID, id uuid.UUID) (*models.Routine, error)
	ExpiringSoon(ctx context.Context, userID uuid.UUID) ([]models.ExpiringRoutine, error)
}

// RoutineSweeper settles expired routines
type RoutineSweeper interface {
	Sweep(ctx context.Context, userID *uuid.UUID) (*routines.SweepReport, error)
}

// OccurrencePreviewer previews routine tasks over a date range
type OccurrencePreviewer interface {
	Occurrences(ctx context.Context, userID uuid.UUID, from, to string) (map[string][]models.TaskInput, error)
}

var (
	_ RoutineManager = (*routines.Service)(nil)
	_ RoutineSweeper = (*routines.Lifecycle)(nil)
)

// RoutineHandler handles routine requests
type RoutineHandler struct {
	routines RoutineManager
	sweeper  RoutineSweeper
	preview  OccurrencePreviewer
	logger   *zap.Logger
}

// NewRoutineHandler creates a new routine handler
func NewRoutineHandler(manager RoutineManager, sweeper RoutineSweeper, preview OccurrencePreviewer, log *zap.Logger) *RoutineHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &RoutineHandler{routines: manager, sweeper: sweeper, preview: preview, logger: log}
}

// RegisterRoutes registers routine routes on a router with the /routines prefix.
// Fixed paths are registered before /{id} so they are not captured as IDs.
func (h *RoutineHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("", h.List).Methods("GET")
	r.HandleFunc("", h.Create).Methods("POST")
	r.HandleFunc("/expiring", h.Expiring).Methods("GET")
	r.HandleFunc("/occurrences", h.Occurrences).Methods("GET")
	r.HandleFunc("/sweep", h.Sweep).Methods("POST")
	r.HandleFunc("/{id}", h.Get).Methods("GET")
	r.HandleFunc("/{id}", h.Update).Methods("PATCH")
	r.HandleFunc("/{id}", h.Delete).Methods("DELETE")
	r.HandleFunc("/{id}/toggle", h.Toggle).Methods("POST")
	r.HandleFunc("/{id}/renew", h.Renew).Methods("POST")
	r.HandleFunc("/{id}/deactivate", h.Deactivate).Methods("POST")
	r.HandleFunc("/{id}/reactivate", h.Reactivate).Methods("POST")
}

// List lists the user's routines; ?active=true keeps active ones only
func (h *RoutineHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	activeOnly := false
	if v := r.URL.Query().Get("active"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			respondJSONError(w, http.StatusBadRequest, "Bad Request", "active must be a boolean")
			return
		}
		activeOnly = parsed
	}

	list, err := h.routines.List(r.Context(), userID, activeOnly)
	if err != nil {
		respondServiceError(w, err, "Failed to retrieve routines")
		return
	}
	if list == nil {
		list = []*models.Routine{}
	}
	respondJSON(w, http.StatusOK, list)
}

// Create creates a routine
func (h *RoutineHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var in routines.Input
	if !decodeJSON(w, r, &in) {
		return
	}
	in.Title = validation.SanitizeText(in.Title)
	if err := validation.Struct(in); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Validation failed: "+err.Error())
		return
	}

	routine, err := h.routines.Create(r.Context(), userID, in)
	if err != nil {
		respondServiceError(w, err, "Failed to create routine")
		return
	}
	respondJSON(w, http.StatusCreated, routine)
}

// Get returns one routine
func (h *RoutineHandler) Get(w http.ResponseWriter, r *http.Request) {
	h.withRoutine(w, r, "Failed to retrieve routine", h.routines.Get)
}

// Update applies a partial update to a routine
func (h *RoutineHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var patch routines.Patch
	if !decodeJSON(w, r, &patch) {
		return
	}
	if patch.Title != nil {
		sanitized := validation.SanitizeText(*patch.Title)
		patch.Title = &sanitized
	}
	if err := validation.Struct(patch); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Validation failed: "+err.Error())
		return
	}

	routine, err := h.routines.Update(r.Context(), userID, id, patch)
	if err != nil {
		respondServiceError(w, err, "Failed to update routine")
		return
	}
	respondJSON(w, http.StatusOK, routine)
}

// Delete removes a routine
func (h *RoutineHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.routines.Delete(r.Context(), userID, id); err != nil {
		respondServiceError(w, err, "Failed to delete routine")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Toggle flips the active flag of a routine
func (h *RoutineHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	h.withRoutine(w, r, "Failed to toggle routine", h.routines.Toggle)
}

// Renew extends a routine by one month
func (h *RoutineHandler) Renew(w http.ResponseWriter, r *http.Request) {
	h.withRoutine(w, r, "Failed to renew routine", h.routines.Renew)
}

// Reactivate turns a routine back on
func (h *RoutineHandler) Reactivate(w http.ResponseWriter, r *http.Request) {
	h.withRoutine(w, r, "Failed to reactivate routine", h.routines.Reactivate)
}

// Deactivate turns a routine off
func (h *RoutineHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.routines.Deactivate(r.Context(), userID, id); err != nil {
		respondServiceError(w, err, "Failed to deactivate routine")
		return
	}
	routine, err := h.routines.Get(r.Context(), userID, id)
	if err != nil {
		respondServiceError(w, err, "Failed to retrieve routine")
		return
	}
	respondJSON(w, http.StatusOK, routine)
}

// Expiring lists routines awaiting a renewal decision
func (h *RoutineHandler) Expiring(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	expiring, err := h.routines.ExpiringSoon(r.Context(), userID)
	if err != nil {
		respondServiceError(w, err, "Failed to list expiring routines")
		return
	}
	if expiring == nil {
		expiring = []models.ExpiringRoutine{}
	}
	respondJSON(w, http.StatusOK, expiring)
}

// Occurrences previews routine tasks for ?from=YYYY-MM-DD&to=YYYY-MM-DD
func (h *RoutineHandler) Occurrences(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	from, to := q.Get("from"), q.Get("to")
	if from == "" || to == "" {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "from and to are required ("+clock.DateLayout+")")
		return
	}

	occurrences, err := h.preview.Occurrences(r.Context(), userID, from, to)
	if err != nil {
		respondServiceError(w, err, "Failed to preview routine occurrences")
		return
	}
	respondJSON(w, http.StatusOK, occurrences)
}

// Sweep settles the caller's expired routines now
func (h *RoutineHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	report, err := h.sweeper.Sweep(r.Context(), &userID)
	if err != nil {
		h.logger.Error("routine_sweep_request_failed",
			zap.String("user_id", userID.String()),
			zap.Error(err),
		)
		respondServiceError(w, err, "Failed to sweep routines")
		return
	}
	respondJSON(w, http.StatusOK, report)
}

type routineAction func(ctx context.Context, userID, id uuid.UUID) (*models.Routine, error)

func (h *RoutineHandler) withRoutine(w http.ResponseWriter, r *http.Request, failure string, action routineAction) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	routine, err := action(r.Context(), userID, id)
	if err != nil {
		respondServiceError(w, err, failure)
		return
	}
	respondJSON(w, http.StatusOK, routine)
}
