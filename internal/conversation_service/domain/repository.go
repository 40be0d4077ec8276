package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// UserRepository manages conversation participants.
type UserRepository interface {
	// GetOrCreateByPhone returns the user owning phoneNumber, creating it on first contact.
	GetOrCreateByPhone(ctx context.Context, phoneNumber string) (*User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	UpdateTimezone(ctx context.Context, id uuid.UUID, timezone string) error
	// ListStale returns users whose own newest message is older than before and
	// who have not been re-engaged since that message.
	ListStale(ctx context.Context, before time.Time, limit int) ([]*User, error)
	MarkReengaged(ctx context.Context, id uuid.UUID, at time.Time) error
}

// MemoryRepository manages conversation history and summaries.
type MemoryRepository interface {
	GetMemory(ctx context.Context, userID uuid.UUID) (*Memory, error)
	// AppendMessage stores one history entry and returns the user's message count after it.
	AppendMessage(ctx context.Context, userID uuid.UUID, role Role, content string) (int, error)
	UpdateSummary(ctx context.Context, userID uuid.UUID, summary string) error
	// PurgeMessages deletes the given history entries of the user. Entries
	// appended after the caller's snapshot are never touched.
	PurgeMessages(ctx context.Context, userID uuid.UUID, messageIDs []uuid.UUID) error
}

// ScheduledMessageRepository is the durable queue of deferred messages.
type ScheduledMessageRepository interface {
	Create(ctx context.Context, userID uuid.UUID, content string, scheduledAt time.Time) (uuid.UUID, error)
	// ListDue returns undelivered messages with ScheduledAt <= now. No ordering is promised.
	ListDue(ctx context.Context, now time.Time) ([]*ScheduledMessage, error)
	// MarkDelivered is idempotent; a repeat call keeps the first DeliveredAt.
	MarkDelivered(ctx context.Context, id uuid.UUID, deliveredAt time.Time) error
	ListPendingByUser(ctx context.Context, userID uuid.UUID) ([]*ScheduledMessage, error)
}
