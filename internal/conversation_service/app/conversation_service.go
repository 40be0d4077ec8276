package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/wowthedoge/nudgebot/internal/conversation_service/domain"
	"github.com/wowthedoge/nudgebot/internal/platform/timezone"
)

// IntentInterpreter is satisfied by *Interpreter.
type IntentInterpreter interface {
	Interpret(ctx context.Context, req InterpretRequest) Reply
}

// ConversationService handles one inbound user message end to end.
type ConversationService struct {
	users       domain.UserRepository
	memory      domain.MemoryRepository
	interpreter IntentInterpreter
	compactor   HistoryCompactor
	sender      domain.MessageSender
	logger      *slog.Logger
	now         func() time.Time
}

func NewConversationService(
	users domain.UserRepository,
	memory domain.MemoryRepository,
	interpreter IntentInterpreter,
	compactor HistoryCompactor,
	sender domain.MessageSender,
	logger *slog.Logger,
) *ConversationService {
	return &ConversationService{
		users:       users,
		memory:      memory,
		interpreter: interpreter,
		compactor:   compactor,
		sender:      sender,
		logger:      logger.With("component", "conversation"),
		now:         time.Now,
	}
}

// HandleInbound answers msg and records both sides in the user's history.
// The returned Reply is what was sent back.
func (s *ConversationService) HandleInbound(ctx context.Context, msg domain.InboundMessage) (Reply, error) {
	user, err := s.users.GetOrCreateByPhone(ctx, msg.From)
	if err != nil {
		return Reply{}, fmt.Errorf("load user: %w", err)
	}
	logger := s.logger.With("user_id", user.ID)
	logger.DebugContext(ctx, "Handling inbound message", "phone_number", msg.From, "text", msg.Text)

	zone := s.userTimezone(ctx, user)

	mem, err := s.memory.GetMemory(ctx, user.ID)
	if err != nil {
		logger.WarnContext(ctx, "Memory unavailable; answering without context", "error", err)
		mem = &domain.Memory{}
	}

	reply := s.interpreter.Interpret(ctx, InterpretRequest{
		UserID:   user.ID,
		Text:     msg.Text,
		Context:  buildContext(mem),
		Now:      s.now().UTC(),
		Timezone: zone,
	})

	if _, err := s.memory.AppendMessage(ctx, user.ID, domain.RoleUser, msg.Text); err != nil {
		logger.WarnContext(ctx, "Failed to append user message to history", "error", err)
	}
	if count, err := s.memory.AppendMessage(ctx, user.ID, domain.RoleAssistant, reply.Text); err != nil {
		logger.WarnContext(ctx, "Failed to append reply to history", "error", err)
	} else {
		s.compactor.MaybeCompact(ctx, user.ID, count)
	}

	if err := s.sender.Send(ctx, user.PhoneNumber, reply.Text); err != nil {
		logger.ErrorContext(ctx, "Failed to send reply", "error", err, "reply_kind", reply.Kind.String())
		return reply, fmt.Errorf("send reply: %w", err)
	}
	logger.InfoContext(ctx, "Replied to user", "reply_kind", reply.Kind.String())
	return reply, nil
}

// userTimezone returns the stored zone, resolving and persisting it on first
// use. A failed write is logged and the resolved zone is still used.
func (s *ConversationService) userTimezone(ctx context.Context, user *domain.User) string {
	if user.HasTimezone() {
		return user.Timezone.String
	}
	zone := timezone.Resolve(user.PhoneNumber)
	if err := s.users.UpdateTimezone(ctx, user.ID, zone); err != nil {
		s.logger.WarnContext(ctx, "Failed to persist resolved timezone", "user_id", user.ID, "timezone", zone, "error", err)
	} else {
		s.logger.InfoContext(ctx, "Resolved user timezone", "user_id", user.ID, "timezone", zone)
	}
	return zone
}
