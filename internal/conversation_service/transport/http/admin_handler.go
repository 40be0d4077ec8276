package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chi_middleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/wowthedoge/nudgebot/internal/conversation_service/app"
	"github.com/wowthedoge/nudgebot/internal/conversation_service/domain"
)

// DispatchRunner triggers one dispatcher run.
type DispatchRunner interface {
	RunOnce(ctx context.Context, now time.Time) (app.RunResult, error)
}

// AdminHandler exposes operator endpoints over the scheduled message store.
type AdminHandler struct {
	store      domain.ScheduledMessageRepository
	dispatcher DispatchRunner
	logger     *slog.Logger
	now        func() time.Time
}

func NewAdminHandler(store domain.ScheduledMessageRepository, dispatcher DispatchRunner, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		store:      store,
		dispatcher: dispatcher,
		logger:     logger.With("handler", "admin"),
		now:        time.Now,
	}
}

// Routes mounts the admin endpoints on r.
func (h *AdminHandler) Routes(r chi.Router) {
	r.Get("/users/{userID}/scheduled_messages", h.ListPending)
	r.Post("/dispatch/run", h.RunDispatch)
}

func (h *AdminHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx))

	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		http.Error(w, "Invalid user ID format", http.StatusBadRequest)
		return
	}

	items, err := h.store.ListPendingByUser(ctx, userID)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to list pending scheduled messages", "error", err, "user_id", userID)
		http.Error(w, "Failed to list scheduled messages", http.StatusInternalServerError)
		return
	}

	resp := ListScheduledMessagesResponse{Items: make([]ScheduledMessageResponse, 0, len(items)), Total: len(items)}
	for _, sm := range items {
		resp.Items = append(resp.Items, ScheduledMessageResponse{
			ID:          sm.ID,
			UserID:      sm.UserID,
			Content:     sm.Content,
			ScheduledAt: sm.ScheduledAt,
			CreatedAt:   sm.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *AdminHandler) RunDispatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx))

	now := h.now().UTC()
	result, err := h.dispatcher.RunOnce(ctx, now)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		}
		logger.ErrorContext(ctx, "Manual dispatch run failed", "error", err)
		http.Error(w, "Dispatch run failed", status)
		return
	}

	logger.InfoContext(ctx, "Manual dispatch run completed", "attempted", result.Attempted, "delivered", result.Delivered, "failed", result.Failed)
	writeJSON(w, http.StatusOK, DispatchRunResponse{
		Attempted: result.Attempted,
		Delivered: result.Delivered,
		Failed:    result.Failed,
		RanAt:     now,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
