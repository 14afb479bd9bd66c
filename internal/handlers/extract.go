package handlers

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/benvon/voice-planner/internal/services/ai"
	"github.com/benvon/voice-planner/internal/validation"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// MaxTranscriptLength bounds the text sent to the extraction model
const MaxTranscriptLength = 10000

// ExtractRequest carries the free text to extract tasks and routines from
type ExtractRequest struct {
	Text string `json:"text" validate:"required,max=10000"`
	// Timezone overrides the user's preference timezone for relative dates
	Timezone string `json:"timezone,omitempty" validate:"omitempty,timezone"`
}

// ExtractHandler handles extraction requests
type ExtractHandler struct {
	extractor ai.Extractor
	prefs     PreferencesStore
	logger    *zap.Logger
	now       func() time.Time
}

// NewExtractHandler creates a new extraction handler. A nil extractor makes
// every request fail with 503.
func NewExtractHandler(extractor ai.Extractor, prefs PreferencesStore, log *zap.Logger) *ExtractHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &ExtractHandler{extractor: extractor, prefs: prefs, logger: log, now: time.Now}
}

// RegisterRoutes registers the extraction route on a router with the /extract prefix
func (h *ExtractHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("", h.Extract).Methods("POST")
}

// Extract turns free text into validated task and routine drafts
func (h *ExtractHandler) Extract(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}
	if h.extractor == nil {
		respondJSONError(w, http.StatusServiceUnavailable, "Service Unavailable", ai.ErrNotConfigured.Error())
		return
	}

	var req ExtractRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.Text = validation.SanitizeText(req.Text)
	if err := validation.Struct(req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Validation failed: "+err.Error())
		return
	}

	loc := time.UTC
	if req.Timezone != "" {
		loc, _ = time.LoadLocation(req.Timezone)
	} else if h.prefs != nil {
		if p, err := h.prefs.Get(r.Context(), userID); err == nil {
			loc = p.Location()
		}
	}

	extraction, err := h.extractor.Extract(r.Context(), req.Text, h.now(), loc)
	if err != nil {
		h.logger.Warn("extraction_failed",
			zap.String("user_id", userID.String()),
			zap.Error(err),
		)
		h.respondExtractionError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, extraction)
}

func (h *ExtractHandler) respondExtractionError(w http.ResponseWriter, err error) {
	switch {
	case ai.IsQuotaError(err):
		respondJSONError(w, http.StatusServiceUnavailable, "Service Unavailable", "Extraction quota exhausted, try again later")
	case ai.IsRateLimitError(err):
		if d := ai.RetryAfter(err); d > 0 {
			w.Header().Set("Retry-After", fmt.Sprintf("%d", int(math.Ceil(d.Seconds()))))
		}
		respondJSONError(w, http.StatusTooManyRequests, "Too Many Requests", "Extraction provider is rate limited, try again later")
	case errors.Is(err, ai.ErrNotConfigured):
		respondJSONError(w, http.StatusServiceUnavailable, "Service Unavailable", err.Error())
	case errors.Is(err, ai.ErrInvalidResponse):
		respondJSONError(w, http.StatusBadGateway, "Bad Gateway", err.Error())
	default:
		respondJSONError(w, http.StatusBadGateway, "Bad Gateway", "Extraction provider request failed")
	}
}
