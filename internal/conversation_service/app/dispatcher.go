package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/wowthedoge/nudgebot/internal/conversation_service/domain"
	"golang.org/x/time/rate"
)

// Run trigger labels.
const (
	TriggerStartup  = "startup"
	TriggerInterval = "interval"
	TriggerManual   = "manual"
)

// DispatcherConfig holds the dispatcher's tunables.
type DispatcherConfig struct {
	PollInterval      time.Duration
	SendRatePerSecond float64
}

// RunResult counts what one dispatcher run did.
type RunResult struct {
	Attempted int `json:"attempted"`
	Delivered int `json:"delivered"`
	Failed    int `json:"failed"`
}

// Dispatcher delivers due scheduled messages. Delivery is at-least-once: a
// record is only marked after its send succeeded, and anything not marked
// is picked up again on the next run.
type Dispatcher struct {
	store     domain.ScheduledMessageRepository
	sender    domain.MessageSender
	memory    domain.MemoryRepository
	compactor HistoryCompactor
	limiter   *rate.Limiter
	config    DispatcherConfig
	logger    *slog.Logger
	now       func() time.Time

	runMu sync.Mutex
}

func NewDispatcher(
	store domain.ScheduledMessageRepository,
	sender domain.MessageSender,
	memory domain.MemoryRepository,
	compactor HistoryCompactor,
	cfg DispatcherConfig,
	logger *slog.Logger,
) *Dispatcher {
	limit := rate.Inf
	if cfg.SendRatePerSecond > 0 {
		limit = rate.Limit(cfg.SendRatePerSecond)
	}
	return &Dispatcher{
		store:     store,
		sender:    sender,
		memory:    memory,
		compactor: compactor,
		limiter:   rate.NewLimiter(limit, 1),
		config:    cfg,
		logger:    logger.With("component", "dispatcher"),
		now:       time.Now,
	}
}

// RunOnce delivers everything due at now. Only a failure to list due records
// is returned; per-record failures are counted and logged.
func (d *Dispatcher) RunOnce(ctx context.Context, now time.Time) (RunResult, error) {
	return d.run(ctx, now, TriggerManual)
}

func (d *Dispatcher) run(ctx context.Context, now time.Time, trigger string) (RunResult, error) {
	d.runMu.Lock()
	defer d.runMu.Unlock()

	timer := prometheus.NewTimer(dispatchRunDurationHist.WithLabelValues(trigger))
	defer timer.ObserveDuration()

	var res RunResult
	due, err := d.store.ListDue(ctx, now)
	if err != nil {
		d.logger.ErrorContext(ctx, "Failed to list due scheduled messages", "error", err)
		return res, fmt.Errorf("list due scheduled messages: %w", err)
	}
	if len(due) == 0 {
		d.logger.DebugContext(ctx, "No scheduled messages due", "now", now)
		return res, nil
	}
	d.logger.InfoContext(ctx, "Dispatching due scheduled messages", "count", len(due), "trigger", trigger)

	for _, sm := range due {
		if err := d.limiter.Wait(ctx); err != nil {
			d.logger.WarnContext(ctx, "Dispatch run interrupted", "error", err, "remaining", len(due)-res.Attempted)
			break
		}
		res.Attempted++
		if d.deliver(ctx, sm, now) {
			res.Delivered++
		} else {
			res.Failed++
		}
	}

	d.logger.InfoContext(ctx, "Dispatch run finished", "attempted", res.Attempted, "delivered", res.Delivered, "failed", res.Failed)
	return res, nil
}

func (d *Dispatcher) deliver(ctx context.Context, sm *domain.ScheduledMessage, now time.Time) bool {
	logger := d.logger.With("scheduled_message_id", sm.ID, "user_id", sm.UserID)

	if err := d.sender.Send(ctx, sm.PhoneNumber, sm.Content); err != nil {
		dispatchOutcomesCounter.WithLabelValues("error_send").Inc()
		logger.ErrorContext(ctx, "Failed to send scheduled message; will retry next run", "error", err)
		return false
	}

	if err := d.store.MarkDelivered(ctx, sm.ID, now); err != nil {
		// Sent but unmarked: the next run re-sends it.
		dispatchOutcomesCounter.WithLabelValues("error_mark").Inc()
		logger.ErrorContext(ctx, "Failed to mark scheduled message delivered", "error", err)
		return false
	}
	dispatchOutcomesCounter.WithLabelValues("delivered").Inc()

	count, err := d.memory.AppendMessage(ctx, sm.UserID, domain.RoleAssistant, sm.Content)
	if err != nil {
		logger.WarnContext(ctx, "Delivered message not added to history", "error", err)
		return true
	}
	d.compactor.MaybeCompact(ctx, sm.UserID, count)
	return true
}

// Run triggers a run at startup, then every PollInterval until ctx is done.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.logger.InfoContext(ctx, "Dispatcher starting", "poll_interval", d.config.PollInterval)
	d.tick(ctx, TriggerStartup)

	ticker := time.NewTicker(d.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.InfoContext(ctx, "Dispatcher stopping")
			return nil
		case <-ticker.C:
			d.tick(ctx, TriggerInterval)
		}
	}
}

func (d *Dispatcher) tick(ctx context.Context, trigger string) {
	// ListDue failures were logged in run; the next tick retries.
	_, _ = d.run(ctx, d.now().UTC(), trigger)
}
