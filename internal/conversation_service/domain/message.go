package domain

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies who authored a history entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of a user's conversation history.
type Message struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Memory is what the agent remembers about a user: a rolling summary plus
// the raw messages appended since the last compaction.
type Memory struct {
	Summary  string    `json:"summary,omitempty"`
	Messages []Message `json:"messages"`
}
