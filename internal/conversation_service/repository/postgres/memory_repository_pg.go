package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/wowthedoge/nudgebot/internal/conversation_service/domain"
	"github.com/wowthedoge/nudgebot/internal/platform/database"
)

const (
	selectSummarySQL  = `SELECT text FROM summaries WHERE user_id = $1`
	selectMessagesSQL = `SELECT id, user_id, role, content, created_at FROM messages WHERE user_id = $1 ORDER BY created_at ASC, id ASC`

	insertMessageSQL = `INSERT INTO messages (id, user_id, role, content, created_at) VALUES ($1, $2, $3, $4, $5)`
	countMessagesSQL = `SELECT COUNT(*) FROM messages WHERE user_id = $1`

	upsertSummarySQL = `INSERT INTO summaries (user_id, text, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET text = EXCLUDED.text, updated_at = EXCLUDED.updated_at`

	purgeMessagesSQL = `DELETE FROM messages WHERE user_id = $1 AND id = ANY($2::uuid[])`
)

// PgMemoryRepository stores conversation history and rolling summaries.
type PgMemoryRepository struct {
	db     database.DBTX
	logger *slog.Logger
}

func NewPgMemoryRepository(db database.DBTX, logger *slog.Logger) *PgMemoryRepository {
	return &PgMemoryRepository{db: db, logger: logger}
}

func (r *PgMemoryRepository) GetMemory(ctx context.Context, userID uuid.UUID) (*domain.Memory, error) {
	mem := &domain.Memory{}

	err := r.db.QueryRow(ctx, selectSummarySQL, userID).Scan(&mem.Summary)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		r.logger.ErrorContext(ctx, "Error loading summary", "error", err, "user_id", userID)
		return nil, fmt.Errorf("load summary for user %s: %w", userID, err)
	}

	rows, err := r.db.Query(ctx, selectMessagesSQL, userID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error loading messages", "error", err, "user_id", userID)
		return nil, fmt.Errorf("load messages for user %s: %w", userID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var m domain.Message
		var role string
		if err := rows.Scan(&m.ID, &m.UserID, &role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Role = domain.Role(role)
		mem.Messages = append(mem.Messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return mem, nil
}

func (r *PgMemoryRepository) AppendMessage(ctx context.Context, userID uuid.UUID, role domain.Role, content string) (int, error) {
	_, err := r.db.Exec(ctx, insertMessageSQL, uuid.New(), userID, string(role), content, time.Now().UTC())
	if err != nil {
		r.logger.ErrorContext(ctx, "Error appending message", "error", err, "user_id", userID, "role", role)
		return 0, fmt.Errorf("%w: append message: %v", domain.ErrPersistence, err)
	}

	var count int
	if err := r.db.QueryRow(ctx, countMessagesSQL, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count messages for user %s: %w", userID, err)
	}
	return count, nil
}

func (r *PgMemoryRepository) UpdateSummary(ctx context.Context, userID uuid.UUID, summary string) error {
	if _, err := r.db.Exec(ctx, upsertSummarySQL, userID, summary, time.Now().UTC()); err != nil {
		r.logger.ErrorContext(ctx, "Error updating summary", "error", err, "user_id", userID)
		return fmt.Errorf("%w: update summary: %v", domain.ErrPersistence, err)
	}
	return nil
}

func (r *PgMemoryRepository) PurgeMessages(ctx context.Context, userID uuid.UUID, messageIDs []uuid.UUID) error {
	if len(messageIDs) == 0 {
		return nil
	}
	ids := make([]string, len(messageIDs))
	for i, id := range messageIDs {
		ids[i] = id.String()
	}

	tag, err := r.db.Exec(ctx, purgeMessagesSQL, userID, ids)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error purging messages", "error", err, "user_id", userID)
		return fmt.Errorf("purge messages for user %s: %w", userID, err)
	}
	r.logger.InfoContext(ctx, "Purged conversation history", "user_id", userID, "deleted", tag.RowsAffected())
	return nil
}
