package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/wowthedoge/nudgebot/internal/conversation_service/domain"
	"github.com/wowthedoge/nudgebot/internal/platform/database"
)

const (
	insertScheduledMessageSQL = `INSERT INTO scheduled_messages (id, user_id, content, scheduled_at, delivered, created_at)
		VALUES ($1, $2, $3, $4, FALSE, $5)`

	listDueScheduledMessagesSQL = `SELECT sm.id, sm.user_id, sm.content, sm.scheduled_at, sm.delivered, sm.delivered_at, sm.created_at, u.phone_number
		FROM scheduled_messages sm
		JOIN users u ON u.id = sm.user_id
		WHERE sm.delivered = FALSE AND sm.scheduled_at <= $1`

	// COALESCE keeps the first delivered_at when a retried send marks twice.
	markScheduledMessageDeliveredSQL = `UPDATE scheduled_messages
		SET delivered = TRUE, delivered_at = COALESCE(delivered_at, $2)
		WHERE id = $1`

	listPendingScheduledMessagesByUserSQL = `SELECT id, user_id, content, scheduled_at, delivered, delivered_at, created_at
		FROM scheduled_messages
		WHERE user_id = $1 AND delivered = FALSE
		ORDER BY scheduled_at ASC`
)

type PgScheduledMessageRepository struct {
	db     database.DBTX
	logger *slog.Logger
}

func NewPgScheduledMessageRepository(db database.DBTX, logger *slog.Logger) *PgScheduledMessageRepository {
	return &PgScheduledMessageRepository{db: db, logger: logger}
}

func (r *PgScheduledMessageRepository) Create(ctx context.Context, userID uuid.UUID, content string, scheduledAt time.Time) (uuid.UUID, error) {
	id := uuid.New()
	_, err := r.db.Exec(ctx, insertScheduledMessageSQL, id, userID, content, scheduledAt.UTC(), time.Now().UTC())
	if err != nil {
		r.logger.ErrorContext(ctx, "Error creating scheduled message", "error", err, "user_id", userID)
		return uuid.Nil, fmt.Errorf("%w: insert scheduled message: %v", domain.ErrPersistence, err)
	}
	r.logger.InfoContext(ctx, "Scheduled message created", "scheduled_message_id", id, "user_id", userID, "scheduled_at", scheduledAt.UTC())
	return id, nil
}

func (r *PgScheduledMessageRepository) ListDue(ctx context.Context, now time.Time) ([]*domain.ScheduledMessage, error) {
	rows, err := r.db.Query(ctx, listDueScheduledMessagesSQL, now.UTC())
	if err != nil {
		r.logger.ErrorContext(ctx, "Error listing due scheduled messages", "error", err)
		return nil, fmt.Errorf("list due scheduled messages: %w", err)
	}
	defer rows.Close()

	var out []*domain.ScheduledMessage
	for rows.Next() {
		sm := &domain.ScheduledMessage{}
		if err := rows.Scan(&sm.ID, &sm.UserID, &sm.Content, &sm.ScheduledAt, &sm.Delivered, &sm.DeliveredAt, &sm.CreatedAt, &sm.PhoneNumber); err != nil {
			r.logger.ErrorContext(ctx, "Error scanning due scheduled message", "error", err)
			return nil, fmt.Errorf("scan due scheduled message: %w", err)
		}
		sm.ScheduledAt = sm.ScheduledAt.UTC()
		if !sm.IsDue(now) {
			r.logger.WarnContext(ctx, "Skipping scheduled message that is not due", "scheduled_message_id", sm.ID, "scheduled_at", sm.ScheduledAt)
			continue
		}
		out = append(out, sm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate due scheduled messages: %w", err)
	}
	return out, nil
}

func (r *PgScheduledMessageRepository) MarkDelivered(ctx context.Context, id uuid.UUID, deliveredAt time.Time) error {
	tag, err := r.db.Exec(ctx, markScheduledMessageDeliveredSQL, id, deliveredAt.UTC())
	if err != nil {
		r.logger.ErrorContext(ctx, "Error marking scheduled message delivered", "error", err, "scheduled_message_id", id)
		return fmt.Errorf("mark scheduled message %s delivered: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		r.logger.WarnContext(ctx, "Scheduled message not found for delivery mark", "scheduled_message_id", id)
		return domain.ErrNotFound
	}
	return nil
}

func (r *PgScheduledMessageRepository) ListPendingByUser(ctx context.Context, userID uuid.UUID) ([]*domain.ScheduledMessage, error) {
	rows, err := r.db.Query(ctx, listPendingScheduledMessagesByUserSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("list pending scheduled messages for user %s: %w", userID, err)
	}
	sms, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.ScheduledMessage, error) {
		sm := &domain.ScheduledMessage{}
		err := row.Scan(&sm.ID, &sm.UserID, &sm.Content, &sm.ScheduledAt, &sm.Delivered, &sm.DeliveredAt, &sm.CreatedAt)
		sm.ScheduledAt = sm.ScheduledAt.UTC()
		return sm, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan pending scheduled messages: %w", err)
	}
	return sms, nil
}
