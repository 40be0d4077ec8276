package http

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/mock"
	"github.com/wowthedoge/nudgebot/internal/conversation_service/app"
	"github.com/wowthedoge/nudgebot/internal/conversation_service/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type MockNatsClient struct {
	mock.Mock
}

func (m *MockNatsClient) Publish(ctx context.Context, subject string, data []byte) error {
	args := m.Called(ctx, subject, data)
	return args.Error(0)
}

func (m *MockNatsClient) SubscribeToSubjectWithQueue(ctx context.Context, subject, queue string, handler func(msg *nats.Msg)) error {
	args := m.Called(ctx, subject, queue, handler)
	return args.Error(0)
}

func (m *MockNatsClient) Close() {
	m.Called()
}

type MockScheduledMessageRepository struct {
	mock.Mock
}

func (m *MockScheduledMessageRepository) Create(ctx context.Context, userID uuid.UUID, content string, scheduledAt time.Time) (uuid.UUID, error) {
	args := m.Called(ctx, userID, content, scheduledAt)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func (m *MockScheduledMessageRepository) ListDue(ctx context.Context, now time.Time) ([]*domain.ScheduledMessage, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.ScheduledMessage), args.Error(1)
}

func (m *MockScheduledMessageRepository) MarkDelivered(ctx context.Context, id uuid.UUID, deliveredAt time.Time) error {
	args := m.Called(ctx, id, deliveredAt)
	return args.Error(0)
}

func (m *MockScheduledMessageRepository) ListPendingByUser(ctx context.Context, userID uuid.UUID) ([]*domain.ScheduledMessage, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.ScheduledMessage), args.Error(1)
}

type MockDispatchRunner struct {
	mock.Mock
}

func (m *MockDispatchRunner) RunOnce(ctx context.Context, now time.Time) (app.RunResult, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(app.RunResult), args.Error(1)
}
