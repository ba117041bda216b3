// internal/api/handlers.go
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/promptpulse/pulse-workflows/internal/models"
	"github.com/promptpulse/pulse-workflows/internal/providers/common"
	"github.com/promptpulse/pulse-workflows/services"
)

const maxCallbackBody = 4 << 20

// SnapshotReader exposes the provider A snapshot store for the debug endpoint
type SnapshotReader interface {
	FindSnapshotEntry(ctx context.Context, snapshotID, promptText string) (*common.BrightDataResult, error)
}

// Handlers holds the HTTP surface's service dependencies
type Handlers struct {
	submissions services.SubmissionService
	snapshots   SnapshotReader
	callbacks   services.CallbackHandler
}

func NewHandlers(submissions services.SubmissionService, snapshots SnapshotReader, callbacks services.CallbackHandler) *Handlers {
	return &Handlers{
		submissions: submissions,
		snapshots:   snapshots,
		callbacks:   callbacks,
	}
}

// Enqueue handles POST /enqueue
func (h *Handlers) Enqueue(w http.ResponseWriter, r *http.Request) {
	var req services.SubmissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	resp, err := h.submissions.Enqueue(r.Context(), &req)
	if err != nil {
		status := submissionStatus(err)
		fmt.Printf("[API] ❌ Enqueue failed (%d): %v\n", status, err)
		writeError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// submissionStatus maps the submission error taxonomy onto HTTP codes
func submissionStatus(err error) int {
	switch {
	case errors.Is(err, services.ErrInvalidRequest),
		errors.Is(err, services.ErrAuthFailed),
		errors.Is(err, services.ErrQuotaExceeded),
		errors.Is(err, services.ErrModelForbidden),
		errors.Is(err, services.ErrModelNotFound):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrAllProvidersDown),
		errors.Is(err, services.ErrUpstreamUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// SnapshotData handles GET /snapshot-data/{snapshotId}?prompt=
func (h *Handlers) SnapshotData(w http.ResponseWriter, r *http.Request) {
	snapshotID := chi.URLParam(r, "snapshotId")
	promptText := r.URL.Query().Get("prompt")
	if snapshotID == "" || promptText == "" {
		writeError(w, http.StatusBadRequest, "snapshotId and prompt are required")
		return
	}

	entry, err := h.snapshots.FindSnapshotEntry(r.Context(), snapshotID, promptText)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if entry == nil {
		writeError(w, http.StatusNotFound, "no snapshot entry matches the prompt")
		return
	}

	writeJSON(w, http.StatusOK, entry)
}

// DataForSEOCallback handles POST /api/dataforseo/callback. The query string
// is the correlation carrier and is parsed exactly once, here.
func (h *Handlers) DataForSEOCallback(w http.ResponseWriter, r *http.Request) {
	cbCtx, err := parseCallbackContext(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxCallbackBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read callback body")
		return
	}

	// Logical failures (failed tasks, late callbacks) are recorded and acked
	// with 200; only unexpected faults surface as errors
	if err := h.callbacks.HandleCallback(r.Context(), cbCtx, body); err != nil {
		fmt.Printf("[API] ❌ Callback processing failed: %v\n", err)
		writeError(w, http.StatusInternalServerError, "callback processing failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func parseCallbackContext(r *http.Request) (*models.CallbackContext, error) {
	q := r.URL.Query()

	userID, err := uuid.Parse(q.Get("user_id"))
	if err != nil {
		return nil, fmt.Errorf("invalid user_id: %w", err)
	}
	projectID, err := uuid.Parse(q.Get("projectId"))
	if err != nil {
		return nil, fmt.Errorf("invalid projectId: %w", err)
	}
	promptID, err := uuid.Parse(q.Get("promptId"))
	if err != nil {
		return nil, fmt.Errorf("invalid promptId: %w", err)
	}

	isNightly := false
	if raw := q.Get("isNightly"); raw != "" {
		isNightly, err = strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid isNightly: %w", err)
		}
	}

	return &models.CallbackContext{
		UserID:      userID,
		ProjectID:   projectID,
		PromptID:    promptID,
		OpenAIModel: q.Get("openaiModel"),
		IsNightly:   isNightly,
	}, nil
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// Root handles GET / for load-balancer checks
func (h *Handlers) Root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"service": "pulse-workflows", "status": "running"})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		fmt.Printf("[API] ⚠️ Failed to encode response: %v\n", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
