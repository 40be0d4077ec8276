package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/wowthedoge/nudgebot/internal/conversation_service/domain"
	"github.com/wowthedoge/nudgebot/internal/platform/timezone"
)

const (
	// MaxRetries bounds re-issues of a request whose directive was malformed;
	// at most MaxRetries+1 completions are requested per interpretation.
	MaxRetries = 2

	ScheduleToolName = "scheduleMessage"
)

// ReplyKind tells the caller what an interpretation produced.
type ReplyKind int

const (
	ReplyPlainText ReplyKind = iota
	ReplyScheduled
	ReplyFailed
)

func (k ReplyKind) String() string {
	switch k {
	case ReplyPlainText:
		return "plain_text"
	case ReplyScheduled:
		return "scheduled"
	case ReplyFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Reply is the user-facing outcome of one interpretation. For ReplyScheduled
// the message has already been stored.
type Reply struct {
	Kind               ReplyKind
	Text               string
	ScheduledMessageID uuid.UUID
	ScheduledAt        time.Time
}

// InterpretRequest carries one user utterance and the frame it is read in.
type InterpretRequest struct {
	UserID   uuid.UUID
	Text     string
	Context  string
	Now      time.Time
	Timezone string
}

type scheduleArgs struct {
	Content        string `json:"content" validate:"required"`
	ScheduledAtUTC string `json:"scheduledAtUtc" validate:"required,datetime=2006-01-02T15:04:05Z07:00"`
}

// Interpreter turns user text into a plain reply or a stored scheduled message.
type Interpreter struct {
	completer domain.ChatCompleter
	store     domain.ScheduledMessageRepository
	validate  *validator.Validate
	logger    *slog.Logger
}

func NewInterpreter(completer domain.ChatCompleter, store domain.ScheduledMessageRepository, validate *validator.Validate, logger *slog.Logger) *Interpreter {
	return &Interpreter{
		completer: completer,
		store:     store,
		validate:  validate,
		logger:    logger.With("component", "interpreter"),
	}
}

// Interpret runs the bounded attempt loop. It never returns an error; every
// failure is folded into a ReplyFailed.
func (i *Interpreter) Interpret(ctx context.Context, req InterpretRequest) Reply {
	localNow := timezone.FormatLocal(req.Now, req.Timezone)
	system := replySystemPrompt(localNow, req.Context)
	tools := []domain.Tool{scheduleTool(req.Timezone, localNow)}
	logger := i.logger.With("user_id", req.UserID)

	for attempt := 0; attempt <= MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			logger.WarnContext(ctx, "Interpretation abandoned", "attempt", attempt, "error", err)
			return i.finish(Reply{Kind: ReplyFailed, Text: GenericFailureText})
		}

		completion, err := i.completer.Complete(ctx, system, req.Text, tools)
		if err != nil {
			interpretAttemptsCounter.WithLabelValues("completer_error").Inc()
			logger.WarnContext(ctx, "Chat completion failed", "attempt", attempt, "error", err)
			continue
		}

		inv := completion.ToolInvocation
		if inv == nil || inv.Name != ScheduleToolName {
			text := strings.TrimSpace(completion.Text)
			if text == "" {
				interpretAttemptsCounter.WithLabelValues("malformed").Inc()
				logger.WarnContext(ctx, "Chat completion returned nothing usable", "attempt", attempt)
				continue
			}
			interpretAttemptsCounter.WithLabelValues("text").Inc()
			return i.finish(Reply{Kind: ReplyPlainText, Text: text})
		}

		intent, err := i.parseDirective(ctx, inv.Args)
		if err != nil {
			interpretAttemptsCounter.WithLabelValues("malformed").Inc()
			logger.WarnContext(ctx, "Malformed scheduling directive", "attempt", attempt, "error", err)
			continue
		}
		interpretAttemptsCounter.WithLabelValues("directive").Inc()

		id, err := i.store.Create(ctx, req.UserID, intent.Content, intent.ScheduledAt)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to store scheduled message", "error", err)
			return i.finish(Reply{Kind: ReplyFailed, Text: GenericFailureText})
		}

		logger.InfoContext(ctx, "Scheduled message", "scheduled_message_id", id, "scheduled_at", intent.ScheduledAt, "timezone", req.Timezone)
		confirmation := strings.TrimSpace(completion.Text + fmt.Sprintf(confirmationFormat, timezone.FormatLocal(intent.ScheduledAt, req.Timezone)))
		return i.finish(Reply{
			Kind:               ReplyScheduled,
			Text:               confirmation,
			ScheduledMessageID: id,
			ScheduledAt:        intent.ScheduledAt,
		})
	}

	logger.WarnContext(ctx, "Scheduling attempts exhausted", "attempts", MaxRetries+1)
	return i.finish(Reply{Kind: ReplyFailed, Text: ApologyText})
}

func (i *Interpreter) finish(r Reply) Reply {
	interpretOutcomesCounter.WithLabelValues(r.Kind.String()).Inc()
	return r
}

// parseDirective validates tool arguments. The instant is kept exactly as
// the producer stated it, only moved to the UTC location.
func (i *Interpreter) parseDirective(ctx context.Context, raw json.RawMessage) (*domain.SchedulingIntent, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: no arguments", domain.ErrMalformedDirective)
	}
	var args scheduleArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedDirective, err)
	}
	args.Content = strings.TrimSpace(args.Content)
	args.ScheduledAtUTC = strings.TrimSpace(args.ScheduledAtUTC)

	if err := i.validate.StructCtx(ctx, args); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return nil, fmt.Errorf("%w: %s", domain.ErrMalformedDirective, verrs.Error())
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedDirective, err)
	}

	at, err := time.Parse(time.RFC3339, args.ScheduledAtUTC)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedDirective, err)
	}
	return &domain.SchedulingIntent{Content: args.Content, ScheduledAt: at.UTC()}, nil
}
