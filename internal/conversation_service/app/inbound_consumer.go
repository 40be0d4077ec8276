package app

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/nats-io/nats.go"
	"github.com/wowthedoge/nudgebot/internal/conversation_service/domain"
	"github.com/wowthedoge/nudgebot/internal/platform/messagebroker"
)

// InboundHandler is satisfied by *ConversationService.
type InboundHandler interface {
	HandleInbound(ctx context.Context, msg domain.InboundMessage) (Reply, error)
}

// InboundConsumer feeds queued user messages from NATS into the
// conversation pipeline.
type InboundConsumer struct {
	natsClient        messagebroker.NATSClient
	handler           InboundHandler
	validate          *validator.Validate
	logger            *slog.Logger
	processingTimeout time.Duration
}

func NewInboundConsumer(nc messagebroker.NATSClient, handler InboundHandler, validate *validator.Validate, logger *slog.Logger) *InboundConsumer {
	return &InboundConsumer{
		natsClient:        nc,
		handler:           handler,
		validate:          validate,
		logger:            logger.With("component", "inbound_consumer"),
		processingTimeout: 2 * time.Minute,
	}
}

// StartConsuming blocks until ctx is cancelled.
func (c *InboundConsumer) StartConsuming(ctx context.Context, subject, queueGroup string) error {
	c.logger.InfoContext(ctx, "Starting NATS subscription", "subject", subject, "queue_group", queueGroup)
	err := c.natsClient.SubscribeToSubjectWithQueue(ctx, subject, queueGroup, func(msg *nats.Msg) {
		c.handleMessage(ctx, msg)
	})
	if err != nil {
		c.logger.ErrorContext(ctx, "NATS subscription failed", "error", err, "subject", subject)
		return err
	}
	c.logger.InfoContext(ctx, "NATS subscription ended", "subject", subject)
	return nil
}

func (c *InboundConsumer) handleMessage(ctx context.Context, msg *nats.Msg) {
	var in domain.InboundMessage
	if err := json.Unmarshal(msg.Data, &in); err != nil {
		inboundMessagesCounter.WithLabelValues("error_decode").Inc()
		c.logger.ErrorContext(ctx, "Failed to decode inbound message", "error", err, "subject", msg.Subject)
		return
	}
	if err := c.validate.StructCtx(ctx, in); err != nil {
		inboundMessagesCounter.WithLabelValues("error_validation").Inc()
		c.logger.ErrorContext(ctx, "Invalid inbound message", "error", err, "message_id", in.MessageID)
		return
	}

	procCtx, cancel := context.WithTimeout(ctx, c.processingTimeout)
	defer cancel()

	if _, err := c.handler.HandleInbound(procCtx, in); err != nil {
		inboundMessagesCounter.WithLabelValues("error_processing").Inc()
		c.logger.ErrorContext(ctx, "Failed to process inbound message", "error", err, "message_id", in.MessageID)
		return
	}
	inboundMessagesCounter.WithLabelValues("success").Inc()
}
