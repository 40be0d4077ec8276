package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/wowthedoge/nudgebot/internal/conversation_service/app"
	"github.com/wowthedoge/nudgebot/internal/conversation_service/domain"
)

func setupAdminRouter(store *MockScheduledMessageRepository, runner *MockDispatchRunner, now time.Time) *chi.Mux {
	h := NewAdminHandler(store, runner, discardLogger())
	h.now = func() time.Time { return now }
	r := chi.NewRouter()
	r.Route("/api/v1", h.Routes)
	return r
}

func TestAdminHandler_ListPending(t *testing.T) {
	store := new(MockScheduledMessageRepository)
	userID := uuid.New()
	at := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	store.On("ListPendingByUser", mock.Anything, userID).Return([]*domain.ScheduledMessage{
		{ID: uuid.New(), UserID: userID, Content: "call mum", ScheduledAt: at, CreatedAt: at.Add(-time.Hour)},
	}, nil).Once()

	r := setupAdminRouter(store, new(MockDispatchRunner), time.Now())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/"+userID.String()+"/scheduled_messages", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp ListScheduledMessagesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Total)
	assert.Equal(t, "call mum", resp.Items[0].Content)
	assert.True(t, resp.Items[0].ScheduledAt.Equal(at))
	store.AssertExpectations(t)
}

func TestAdminHandler_ListPending_BadUserID(t *testing.T) {
	store := new(MockScheduledMessageRepository)
	r := setupAdminRouter(store, new(MockDispatchRunner), time.Now())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/not-a-uuid/scheduled_messages", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	store.AssertNotCalled(t, "ListPendingByUser", mock.Anything, mock.Anything)
}

func TestAdminHandler_ListPending_StoreError(t *testing.T) {
	store := new(MockScheduledMessageRepository)
	userID := uuid.New()
	store.On("ListPendingByUser", mock.Anything, userID).Return(nil, errors.New("db down")).Once()

	r := setupAdminRouter(store, new(MockDispatchRunner), time.Now())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/"+userID.String()+"/scheduled_messages", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestAdminHandler_RunDispatch(t *testing.T) {
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	runner := new(MockDispatchRunner)
	runner.On("RunOnce", mock.Anything, now).Return(app.RunResult{Attempted: 3, Delivered: 2, Failed: 1}, nil).Once()

	r := setupAdminRouter(new(MockScheduledMessageRepository), runner, now)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/dispatch/run", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp DispatchRunResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Attempted)
	assert.Equal(t, 2, resp.Delivered)
	assert.Equal(t, 1, resp.Failed)
	assert.True(t, resp.RanAt.Equal(now))
	runner.AssertExpectations(t)
}

func TestAdminHandler_RunDispatch_Failure(t *testing.T) {
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	runner := new(MockDispatchRunner)
	runner.On("RunOnce", mock.Anything, now).Return(app.RunResult{}, errors.New("list due: db down")).Once()

	r := setupAdminRouter(new(MockScheduledMessageRepository), runner, now)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/dispatch/run", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
