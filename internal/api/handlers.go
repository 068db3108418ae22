package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"step-tracker/internal/services"
	"step-tracker/internal/storage"

	"go.uber.org/zap"
)

// GoalKeeper reads and changes the daily goal.
type GoalKeeper interface {
	Goal() int
	SetGoal(ctx context.Context, goal int) error
	ResetGoal(ctx context.Context) (int, error)
}

type Handler struct {
	analytics *services.AnalyticsService
	goals     GoalKeeper
	logger    *zap.Logger
}

func NewHandler(analytics *services.AnalyticsService, goals GoalKeeper, logger *zap.Logger) *Handler {
	return &Handler{analytics: analytics, goals: goals, logger: logger}
}

type goalBody struct {
	Goal int `json:"goal"`
}

type goalResponse struct {
	Goal    int    `json:"goal"`
	Warning string `json:"warning,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) Today(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.analytics.Today())
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	entries := h.analytics.History()
	if entries == nil {
		entries = []storage.Entry{}
	}
	h.writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) Week(w http.ResponseWriter, r *http.Request) {
	stats, err := h.analytics.Weekly()
	if err != nil {
		h.writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "tracker not started"})
		return
	}
	h.writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) GetGoal(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, goalResponse{Goal: h.goals.Goal()})
}

func (h *Handler) SetGoal(w http.ResponseWriter, r *http.Request) {
	var body goalBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "InvalidGoal: " + storage.ErrInvalidGoal.Error()})
		return
	}

	err := h.goals.SetGoal(r.Context(), body.Goal)
	switch {
	case errors.Is(err, storage.ErrInvalidGoal):
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "InvalidGoal: " + storage.ErrInvalidGoal.Error()})
	case errors.Is(err, storage.ErrPersist):
		h.writeJSON(w, http.StatusOK, goalResponse{Goal: h.goals.Goal(), Warning: "goal applied but not saved"})
	case err != nil:
		h.logger.Error("set goal failed", zap.Error(err))
		h.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	default:
		h.writeJSON(w, http.StatusOK, goalResponse{Goal: h.goals.Goal()})
	}
}

// ResetGoal drops the saved goal and returns the default now in effect.
func (h *Handler) ResetGoal(w http.ResponseWriter, r *http.Request) {
	goal, err := h.goals.ResetGoal(r.Context())
	switch {
	case errors.Is(err, storage.ErrPersist):
		h.writeJSON(w, http.StatusOK, goalResponse{Goal: goal, Warning: "goal applied but not saved"})
	case err != nil:
		h.logger.Error("reset goal failed", zap.Error(err))
		h.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	default:
		h.writeJSON(w, http.StatusOK, goalResponse{Goal: goal})
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	today := h.analytics.Today()
	h.writeJSON(w, http.StatusOK, map[string]any{"ok": true, "state": today.State})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("failed to write response", zap.Error(err))
	}
}
