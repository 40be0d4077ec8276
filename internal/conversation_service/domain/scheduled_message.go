package domain

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// ScheduledMessage is a deferred message: text to deliver no earlier than
// ScheduledAt. Delivered flips false to true once and DeliveredAt is set in
// the same write.
type ScheduledMessage struct {
	ID          uuid.UUID    `json:"id"`
	UserID      uuid.UUID    `json:"user_id"`
	Content     string       `json:"content"`
	ScheduledAt time.Time    `json:"scheduled_at"` // always UTC
	Delivered   bool         `json:"delivered"`
	DeliveredAt sql.NullTime `json:"delivered_at,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`

	// PhoneNumber is the owner's delivery address, joined in by ListDue.
	PhoneNumber string `json:"-"`
}

// IsDue reports whether the message should be delivered at now: it is
// undelivered and ScheduledAt is not after now.
func (m *ScheduledMessage) IsDue(now time.Time) bool {
	return !m.Delivered && !m.ScheduledAt.After(now)
}

// SchedulingIntent is the validated output of one scheduling tool call.
type SchedulingIntent struct {
	Content     string
	ScheduledAt time.Time
}
