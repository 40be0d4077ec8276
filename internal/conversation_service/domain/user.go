package domain

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// User is a conversation participant, keyed naturally by phone number.
type User struct {
	ID              uuid.UUID      `json:"id"`
	PhoneNumber     string         `json:"phone_number"`
	Timezone        sql.NullString `json:"timezone,omitempty"` // IANA name, resolved lazily
	LastReengagedAt sql.NullTime   `json:"last_reengaged_at,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// HasTimezone reports whether the zone was already resolved and stored.
func (u *User) HasTimezone() bool {
	return u.Timezone.Valid && u.Timezone.String != ""
}
