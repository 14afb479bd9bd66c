package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/benvon/voice-planner/internal/models"
	"github.com/benvon/voice-planner/internal/services/planner"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// PlanningService is the planning workflow used by the HTTP layer
type PlanningService interface {
	Generate(ctx context.Context, userID uuid.UUID, req planner.GenerateRequest) (*planner.GenerateResult, error)
	Validate(ctx context.Context, userID uuid.UUID, req planner.ValidateRequest) (*planner.ValidateResult, error)
	Get(ctx context.Context, userID uuid.UUID, date string) (*models.Planning, error)
	MonthSummary(ctx context.Context, userID uuid.UUID, year int, month time.Month) ([]models.DaySummary, error)
	Occurrences(ctx context.Context, userID uuid.UUID, from, to string) (map[string][]models.TaskInput, error)
}

var _ PlanningService = (*planner.Service)(nil)

// PlanningHandler handles planning requests
type PlanningHandler struct {
	planner PlanningService
	logger  *zap.Logger
}

// NewPlanningHandler creates a new planning handler
func NewPlanningHandler(svc PlanningService, log *zap.Logger) *PlanningHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &PlanningHandler{planner: svc, logger: log}
}

// RegisterRoutes registers planning routes on a router with the /plannings prefix
func (h *PlanningHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/generate", h.Generate).Methods("POST")
	r.HandleFunc("/validate", h.Validate).Methods("POST")
	r.HandleFunc("/{date:[0-9]{4}-[0-9]{2}-[0-9]{2}}", h.Get).Methods("GET")
}

// RegisterCalendarRoutes registers the month view on a router with the /calendar prefix
func (h *PlanningHandler) RegisterCalendarRoutes(r *mux.Router) {
	r.HandleFunc("/{year:[0-9]{4}}/{month:[0-9]{1,2}}", h.Month).Methods("GET")
}

// Generate proposes a planning without saving it
func (h *PlanningHandler) Generate(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req planner.GenerateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Tasks == nil {
		req.Tasks = []planner.TaskRequest{}
	}

	res, err := h.planner.Generate(r.Context(), userID, req)
	if err != nil {
		h.logFailure("planning_generate_failed", userID, err)
		respondServiceError(w, err, "Failed to generate planning")
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// Validate saves an accepted planning, or asks for routine renewal decisions first
func (h *PlanningHandler) Validate(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req planner.ValidateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.planner.Validate(r.Context(), userID, req)
	if err != nil {
		h.logFailure("planning_validate_failed", userID, err)
		respondServiceError(w, err, "Failed to validate planning")
		return
	}
	if res.RequiresRenewalDecision {
		respondJSON(w, http.StatusOK, res)
		return
	}
	respondJSON(w, http.StatusCreated, res)
}

// Get returns the saved planning of a date
func (h *PlanningHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	p, err := h.planner.Get(r.Context(), userID, mux.Vars(r)["date"])
	if err != nil {
		respondServiceError(w, err, "Failed to retrieve planning")
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// MonthResponse is the calendar month view
type MonthResponse struct {
	Year  int                 `json:"year"`
	Month int                 `json:"month"`
	Days  []models.DaySummary `json:"days"`
}

// Month returns per-day task counts for a calendar month
func (h *PlanningHandler) Month(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	vars := mux.Vars(r)
	year, err := strconv.Atoi(vars["year"])
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid year")
		return
	}
	month, err := strconv.Atoi(vars["month"])
	if err != nil || month < 1 || month > 12 {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Month must be between 1 and 12")
		return
	}

	days, err := h.planner.MonthSummary(r.Context(), userID, year, time.Month(month))
	if err != nil {
		h.logFailure("calendar_month_failed", userID, err)
		respondServiceError(w, err, "Failed to build calendar view")
		return
	}
	respondJSON(w, http.StatusOK, MonthResponse{Year: year, Month: month, Days: days})
}

func (h *PlanningHandler) logFailure(event string, userID uuid.UUID, err error) {
	h.logger.Warn(event,
		zap.String("user_id", userID.String()),
		zap.Error(err),
	)
}
