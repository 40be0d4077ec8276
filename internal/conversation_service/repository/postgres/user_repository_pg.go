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
	userColumns = `id, phone_number, timezone, last_reengaged_at, created_at, updated_at`

	// The no-op update makes RETURNING yield the existing row on conflict.
	upsertUserByPhoneSQL = `INSERT INTO users (id, phone_number, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (phone_number) DO UPDATE SET phone_number = EXCLUDED.phone_number
		RETURNING ` + userColumns

	selectUserByIDSQL = `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	updateUserTimezoneSQL = `UPDATE users SET timezone = $2, updated_at = $3 WHERE id = $1`

	listStaleUsersSQL = `SELECT u.id, u.phone_number, u.timezone, u.last_reengaged_at, u.created_at, u.updated_at
		FROM users u
		JOIN (SELECT user_id, MAX(created_at) AS last_at FROM messages WHERE role = 'user' GROUP BY user_id) m ON m.user_id = u.id
		WHERE m.last_at < $1
		  AND (u.last_reengaged_at IS NULL OR u.last_reengaged_at < m.last_at)
		ORDER BY m.last_at ASC
		LIMIT $2`

	markUserReengagedSQL = `UPDATE users SET last_reengaged_at = $2, updated_at = $2 WHERE id = $1`
)

type PgUserRepository struct {
	db     database.DBTX
	logger *slog.Logger
}

func NewPgUserRepository(db database.DBTX, logger *slog.Logger) *PgUserRepository {
	return &PgUserRepository{db: db, logger: logger}
}

func scanUser(row pgx.Row) (*domain.User, error) {
	u := &domain.User{}
	err := row.Scan(&u.ID, &u.PhoneNumber, &u.Timezone, &u.LastReengagedAt, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (r *PgUserRepository) GetOrCreateByPhone(ctx context.Context, phoneNumber string) (*domain.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx, upsertUserByPhoneSQL, uuid.New(), phoneNumber, time.Now().UTC()))
	if err != nil {
		r.logger.ErrorContext(ctx, "Error upserting user by phone", "error", err)
		return nil, fmt.Errorf("%w: get or create user: %v", domain.ErrPersistence, err)
	}
	return u, nil
}

func (r *PgUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx, selectUserByIDSQL, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Error getting user by ID", "error", err, "user_id", id)
		return nil, fmt.Errorf("get user %s: %w", id, err)
	}
	return u, nil
}

func (r *PgUserRepository) UpdateTimezone(ctx context.Context, id uuid.UUID, timezone string) error {
	tag, err := r.db.Exec(ctx, updateUserTimezoneSQL, id, timezone, time.Now().UTC())
	if err != nil {
		r.logger.ErrorContext(ctx, "Error updating user timezone", "error", err, "user_id", id)
		return fmt.Errorf("update timezone for user %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PgUserRepository) ListStale(ctx context.Context, before time.Time, limit int) ([]*domain.User, error) {
	rows, err := r.db.Query(ctx, listStaleUsersSQL, before.UTC(), limit)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error listing stale users", "error", err)
		return nil, fmt.Errorf("list stale users: %w", err)
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stale user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stale users: %w", err)
	}
	return users, nil
}

func (r *PgUserRepository) MarkReengaged(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := r.db.Exec(ctx, markUserReengagedSQL, id, at.UTC())
	if err != nil {
		return fmt.Errorf("mark user %s re-engaged: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
