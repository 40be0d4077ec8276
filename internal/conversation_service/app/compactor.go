package app

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/wowthedoge/nudgebot/internal/conversation_service/domain"
)

// HistoryCompactor is what appenders call after every history write.
type HistoryCompactor interface {
	MaybeCompact(ctx context.Context, userID uuid.UUID, messageCount int) bool
}

// Compactor replaces a user's raw history with a rolling summary once the
// history reaches threshold messages.
type Compactor struct {
	memory     domain.MemoryRepository
	summarizer domain.Summarizer
	threshold  int
	logger     *slog.Logger
}

func NewCompactor(memory domain.MemoryRepository, summarizer domain.Summarizer, threshold int, logger *slog.Logger) *Compactor {
	return &Compactor{
		memory:     memory,
		summarizer: summarizer,
		threshold:  threshold,
		logger:     logger.With("component", "compactor"),
	}
}

// MaybeCompact reports whether history was compacted. Failures are logged
// and leave history untouched, so the next append tries again.
func (c *Compactor) MaybeCompact(ctx context.Context, userID uuid.UUID, messageCount int) bool {
	if messageCount < c.threshold {
		return false
	}
	logger := c.logger.With("user_id", userID, "message_count", messageCount)

	mem, err := c.memory.GetMemory(ctx, userID)
	if err != nil {
		compactionOutcomesCounter.WithLabelValues("error_load").Inc()
		logger.ErrorContext(ctx, "Failed to load memory for compaction", "error", err)
		return false
	}

	summary, err := c.summarizer.Summarize(ctx, mem.Messages, mem.Summary)
	if err != nil {
		compactionOutcomesCounter.WithLabelValues("error_summarize").Inc()
		logger.ErrorContext(ctx, "Failed to summarize history", "error", err)
		return false
	}

	if err := c.memory.UpdateSummary(ctx, userID, summary); err != nil {
		compactionOutcomesCounter.WithLabelValues("error_update_summary").Inc()
		logger.ErrorContext(ctx, "Failed to store summary", "error", err)
		return false
	}

	// Only the summarized snapshot is purged; entries appended meanwhile
	// stay in history. A failed purge leaves history in place alongside the
	// new summary and the next append compacts again.
	ids := make([]uuid.UUID, 0, len(mem.Messages))
	for _, m := range mem.Messages {
		ids = append(ids, m.ID)
	}
	if err := c.memory.PurgeMessages(ctx, userID, ids); err != nil {
		compactionOutcomesCounter.WithLabelValues("error_purge").Inc()
		logger.ErrorContext(ctx, "Failed to purge history after summarizing", "error", err)
		return false
	}

	compactionOutcomesCounter.WithLabelValues("success").Inc()
	logger.InfoContext(ctx, "Compacted conversation history")
	return true
}
