package domain

import "time"

// InboundMessage is a user text as queued by the webhook for the
// conversation pipeline.
type InboundMessage struct {
	From       string    `json:"from" validate:"required,numeric,min=5,max=20"`
	Text       string    `json:"text" validate:"required"`
	MessageID  string    `json:"message_id"`
	ReceivedAt time.Time `json:"received_at"`
}
