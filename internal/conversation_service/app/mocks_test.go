package app

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/mock"
	"github.com/wowthedoge/nudgebot/internal/conversation_service/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- Mocks ---

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

type MockMemoryRepository struct {
	mock.Mock
}

func (m *MockMemoryRepository) GetMemory(ctx context.Context, userID uuid.UUID) (*domain.Memory, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Memory), args.Error(1)
}

func (m *MockMemoryRepository) AppendMessage(ctx context.Context, userID uuid.UUID, role domain.Role, content string) (int, error) {
	args := m.Called(ctx, userID, role, content)
	return args.Int(0), args.Error(1)
}

func (m *MockMemoryRepository) UpdateSummary(ctx context.Context, userID uuid.UUID, summary string) error {
	args := m.Called(ctx, userID, summary)
	return args.Error(0)
}

func (m *MockMemoryRepository) PurgeMessages(ctx context.Context, userID uuid.UUID, messageIDs []uuid.UUID) error {
	args := m.Called(ctx, userID, messageIDs)
	return args.Error(0)
}

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) GetOrCreateByPhone(ctx context.Context, phoneNumber string) (*domain.User, error) {
	args := m.Called(ctx, phoneNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepository) UpdateTimezone(ctx context.Context, id uuid.UUID, timezone string) error {
	args := m.Called(ctx, id, timezone)
	return args.Error(0)
}

func (m *MockUserRepository) ListStale(ctx context.Context, before time.Time, limit int) ([]*domain.User, error) {
	args := m.Called(ctx, before, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.User), args.Error(1)
}

func (m *MockUserRepository) MarkReengaged(ctx context.Context, id uuid.UUID, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

type MockChatCompleter struct {
	mock.Mock
}

func (m *MockChatCompleter) Complete(ctx context.Context, systemPrompt, userMessage string, tools []domain.Tool) (*domain.Completion, error) {
	args := m.Called(ctx, systemPrompt, userMessage, tools)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Completion), args.Error(1)
}

type MockSummarizer struct {
	mock.Mock
}

func (m *MockSummarizer) Summarize(ctx context.Context, messages []domain.Message, previousSummary string) (string, error) {
	args := m.Called(ctx, messages, previousSummary)
	return args.String(0), args.Error(1)
}

type MockMessageSender struct {
	mock.Mock
}

func (m *MockMessageSender) Send(ctx context.Context, phoneNumber, text string) error {
	args := m.Called(ctx, phoneNumber, text)
	return args.Error(0)
}

type MockHistoryCompactor struct {
	mock.Mock
}

func (m *MockHistoryCompactor) MaybeCompact(ctx context.Context, userID uuid.UUID, messageCount int) bool {
	args := m.Called(ctx, userID, messageCount)
	return args.Bool(0)
}

type MockIntentInterpreter struct {
	mock.Mock
}

func (m *MockIntentInterpreter) Interpret(ctx context.Context, req InterpretRequest) Reply {
	args := m.Called(ctx, req)
	return args.Get(0).(Reply)
}

type MockInboundHandler struct {
	mock.Mock
}

func (m *MockInboundHandler) HandleInbound(ctx context.Context, msg domain.InboundMessage) (Reply, error) {
	args := m.Called(ctx, msg)
	return args.Get(0).(Reply), args.Error(1)
}

type MockNatsClient struct {
	mock.Mock
}

func (m *MockNatsClient) Publish(ctx context.Context, subject string, data []byte) error {
	args := m.Called(ctx, subject, data)
	return args.Error(0)
}

func (m *MockNatsClient) SubscribeToSubjectWithQueue(ctx context.Context, subject, queue string, handler func(*nats.Msg)) error {
	args := m.Called(ctx, subject, queue, handler)
	return args.Error(0)
}

func (m *MockNatsClient) Close() {
	m.Called()
}
