package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/wowthedoge/nudgebot/internal/conversation_service/domain"
	"golang.org/x/time/rate"
)

// ReengagerConfig holds the re-engagement worker's tunables.
type ReengagerConfig struct {
	StaleAfter        time.Duration
	Interval          time.Duration
	BatchSize         int
	SendRatePerSecond float64
}

// Reengager starts a conversation with users who have gone quiet. A user is
// reached at most once per silence; only their next message makes them
// eligible again.
type Reengager struct {
	users     domain.UserRepository
	memory    domain.MemoryRepository
	completer domain.ChatCompleter
	sender    domain.MessageSender
	limiter   *rate.Limiter
	config    ReengagerConfig
	logger    *slog.Logger
	now       func() time.Time
}

func NewReengager(
	users domain.UserRepository,
	memory domain.MemoryRepository,
	completer domain.ChatCompleter,
	sender domain.MessageSender,
	cfg ReengagerConfig,
	logger *slog.Logger,
) *Reengager {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	limit := rate.Inf
	if cfg.SendRatePerSecond > 0 {
		limit = rate.Limit(cfg.SendRatePerSecond)
	}
	return &Reengager{
		users:     users,
		memory:    memory,
		completer: completer,
		sender:    sender,
		limiter:   rate.NewLimiter(limit, 1),
		config:    cfg,
		logger:    logger.With("component", "reengager"),
		now:       time.Now,
	}
}

// RunOnce reaches out to every stale user found at now and returns how many
// openers were sent.
func (r *Reengager) RunOnce(ctx context.Context, now time.Time) (int, error) {
	stale, err := r.users.ListStale(ctx, now.Add(-r.config.StaleAfter), r.config.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("list stale users: %w", err)
	}

	sent := 0
	for _, u := range stale {
		if err := r.limiter.Wait(ctx); err != nil {
			break
		}
		if err := r.reengage(ctx, u, now); err != nil {
			reengagementsCounter.WithLabelValues("error").Inc()
			r.logger.WarnContext(ctx, "Failed to re-engage user", "user_id", u.ID, "error", err)
			continue
		}
		reengagementsCounter.WithLabelValues("sent").Inc()
		sent++
	}
	if len(stale) > 0 {
		r.logger.InfoContext(ctx, "Re-engagement run finished", "stale", len(stale), "sent", sent)
	}
	return sent, nil
}

func (r *Reengager) reengage(ctx context.Context, u *domain.User, now time.Time) error {
	mem, err := r.memory.GetMemory(ctx, u.ID)
	if err != nil {
		return fmt.Errorf("load memory: %w", err)
	}

	completion, err := r.completer.Complete(ctx, reengageSystemPrompt(mem.Summary), reengageUserMessage, nil)
	if err != nil {
		return fmt.Errorf("generate opener: %w", err)
	}
	opener := strings.TrimSpace(completion.Text)
	if opener == "" {
		return fmt.Errorf("generate opener: empty completion")
	}

	if err := r.sender.Send(ctx, u.PhoneNumber, opener); err != nil {
		return fmt.Errorf("send opener: %w", err)
	}
	// Mark before appending so a failed append cannot cause a second opener.
	if err := r.users.MarkReengaged(ctx, u.ID, now); err != nil {
		return fmt.Errorf("mark re-engaged: %w", err)
	}
	if _, err := r.memory.AppendMessage(ctx, u.ID, domain.RoleAssistant, opener); err != nil {
		r.logger.WarnContext(ctx, "Opener not added to history", "user_id", u.ID, "error", err)
	}
	return nil
}

// Run polls for stale users every Interval until ctx is done.
func (r *Reengager) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "Re-engagement worker starting", "interval", r.config.Interval, "stale_after", r.config.StaleAfter)
	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.InfoContext(ctx, "Re-engagement worker stopping")
			return nil
		case <-ticker.C:
			if _, err := r.RunOnce(ctx, r.now().UTC()); err != nil {
				r.logger.ErrorContext(ctx, "Re-engagement run failed", "error", err)
			}
		}
	}
}
