package postgres

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wowthedoge/nudgebot/internal/conversation_service/domain"
)

func setupScheduledMessageTest(t *testing.T) (*PgScheduledMessageRepository, pgxmock.PgxPoolIface) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewPgScheduledMessageRepository(mockPool, logger), mockPool
}

var scheduledMessageColumns = []string{"id", "user_id", "content", "scheduled_at", "delivered", "delivered_at", "created_at", "phone_number"}

func TestPgScheduledMessageRepository_Create(t *testing.T) {
	repo, mockPool := setupScheduledMessageTest(t)
	defer mockPool.Close()

	userID := uuid.New()
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)
	// Same instant expressed in Tokyo time; it must reach the store as UTC.
	scheduledAt := time.Date(2024, 5, 1, 18, 0, 0, 0, tokyo)

	t.Run("Success", func(t *testing.T) {
		mockPool.ExpectExec(regexp.QuoteMeta(insertScheduledMessageSQL)).
			WithArgs(pgxmock.AnyArg(), userID, "Drink water", scheduledAt.UTC(), pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		id, err := repo.Create(context.Background(), userID, "Drink water", scheduledAt)
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, id)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("StoreUnreachable", func(t *testing.T) {
		mockPool.ExpectExec(regexp.QuoteMeta(insertScheduledMessageSQL)).
			WithArgs(pgxmock.AnyArg(), userID, "Drink water", scheduledAt.UTC(), pgxmock.AnyArg()).
			WillReturnError(errors.New("connection refused"))

		id, err := repo.Create(context.Background(), userID, "Drink water", scheduledAt)
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrPersistence)
		assert.Equal(t, uuid.Nil, id)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestPgScheduledMessageRepository_ListDue(t *testing.T) {
	repo, mockPool := setupScheduledMessageTest(t)
	defer mockPool.Close()

	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	first := &domain.ScheduledMessage{ID: uuid.New(), UserID: uuid.New(), Content: "Stretch", ScheduledAt: now.Add(-time.Minute), CreatedAt: now.Add(-time.Hour), PhoneNumber: "819012345678"}
	second := &domain.ScheduledMessage{ID: uuid.New(), UserID: uuid.New(), Content: "Call mom", ScheduledAt: now, CreatedAt: now.Add(-2 * time.Hour), PhoneNumber: "447911123456"}

	t.Run("ReturnsDueRecordsWithAddress", func(t *testing.T) {
		rows := mockPool.NewRows(scheduledMessageColumns).
			AddRow(first.ID, first.UserID, first.Content, first.ScheduledAt, false, sql.NullTime{}, first.CreatedAt, first.PhoneNumber).
			AddRow(second.ID, second.UserID, second.Content, second.ScheduledAt, false, sql.NullTime{}, second.CreatedAt, second.PhoneNumber)

		mockPool.ExpectQuery(regexp.QuoteMeta(listDueScheduledMessagesSQL)).
			WithArgs(now).
			WillReturnRows(rows)

		due, err := repo.ListDue(context.Background(), now)
		require.NoError(t, err)
		require.Len(t, due, 2)
		assert.Equal(t, first.ID, due[0].ID)
		assert.Equal(t, "819012345678", due[0].PhoneNumber)
		assert.Equal(t, second.Content, due[1].Content)
		assert.False(t, due[1].Delivered)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("BoundaryIncludesNowExcludesFuture", func(t *testing.T) {
		atNow := &domain.ScheduledMessage{ID: uuid.New(), UserID: uuid.New(), Content: "On the dot", ScheduledAt: now, CreatedAt: now.Add(-time.Hour), PhoneNumber: "819012345678"}
		justAfter := &domain.ScheduledMessage{ID: uuid.New(), UserID: uuid.New(), Content: "Too early", ScheduledAt: now.Add(time.Nanosecond), CreatedAt: now.Add(-time.Hour), PhoneNumber: "819012345678"}
		rows := mockPool.NewRows(scheduledMessageColumns).
			AddRow(atNow.ID, atNow.UserID, atNow.Content, atNow.ScheduledAt, false, sql.NullTime{}, atNow.CreatedAt, atNow.PhoneNumber).
			AddRow(justAfter.ID, justAfter.UserID, justAfter.Content, justAfter.ScheduledAt, false, sql.NullTime{}, justAfter.CreatedAt, justAfter.PhoneNumber)

		mockPool.ExpectQuery(regexp.QuoteMeta(listDueScheduledMessagesSQL)).
			WithArgs(now).
			WillReturnRows(rows)

		due, err := repo.ListDue(context.Background(), now)
		require.NoError(t, err)
		require.Len(t, due, 1)
		assert.Equal(t, atNow.ID, due[0].ID)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("PredicateIsInclusiveOfNow", func(t *testing.T) {
		assert.Contains(t, listDueScheduledMessagesSQL, "sm.scheduled_at <= $1")
		assert.Contains(t, listDueScheduledMessagesSQL, "sm.delivered = FALSE")
	})

	t.Run("NothingDue", func(t *testing.T) {
		mockPool.ExpectQuery(regexp.QuoteMeta(listDueScheduledMessagesSQL)).
			WithArgs(now).
			WillReturnRows(mockPool.NewRows(scheduledMessageColumns))

		due, err := repo.ListDue(context.Background(), now)
		require.NoError(t, err)
		assert.Empty(t, due)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("QueryError", func(t *testing.T) {
		mockPool.ExpectQuery(regexp.QuoteMeta(listDueScheduledMessagesSQL)).
			WithArgs(now).
			WillReturnError(errors.New("db down"))

		due, err := repo.ListDue(context.Background(), now)
		require.Error(t, err)
		assert.Nil(t, due)
		assert.Contains(t, err.Error(), "db down")
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestPgScheduledMessageRepository_MarkDelivered(t *testing.T) {
	repo, mockPool := setupScheduledMessageTest(t)
	defer mockPool.Close()

	id := uuid.New()
	deliveredAt := time.Date(2024, 5, 1, 9, 5, 0, 0, time.UTC)

	t.Run("MarksOnce", func(t *testing.T) {
		mockPool.ExpectExec(regexp.QuoteMeta(markScheduledMessageDeliveredSQL)).
			WithArgs(id, deliveredAt).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		require.NoError(t, repo.MarkDelivered(context.Background(), id, deliveredAt))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("SecondCallIsNoOp", func(t *testing.T) {
		// The row still matches, COALESCE keeps the original timestamp.
		later := deliveredAt.Add(5 * time.Minute)
		mockPool.ExpectExec(regexp.QuoteMeta(markScheduledMessageDeliveredSQL)).
			WithArgs(id, later).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		require.NoError(t, repo.MarkDelivered(context.Background(), id, later))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("NotFound", func(t *testing.T) {
		mockPool.ExpectExec(regexp.QuoteMeta(markScheduledMessageDeliveredSQL)).
			WithArgs(id, deliveredAt).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := repo.MarkDelivered(context.Background(), id, deliveredAt)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("DBError", func(t *testing.T) {
		mockPool.ExpectExec(regexp.QuoteMeta(markScheduledMessageDeliveredSQL)).
			WithArgs(id, deliveredAt).
			WillReturnError(errors.New("timeout"))

		err := repo.MarkDelivered(context.Background(), id, deliveredAt)
		require.Error(t, err)
		assert.NotErrorIs(t, err, domain.ErrNotFound)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestMarkDeliveredStatement_PreservesFirstTimestamp(t *testing.T) {
	assert.Contains(t, markScheduledMessageDeliveredSQL, "COALESCE(delivered_at, $2)")
	assert.Contains(t, markScheduledMessageDeliveredSQL, "delivered = TRUE")
}

func TestPgScheduledMessageRepository_ListPendingByUser(t *testing.T) {
	repo, mockPool := setupScheduledMessageTest(t)
	defer mockPool.Close()

	userID := uuid.New()
	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	rows := mockPool.NewRows([]string{"id", "user_id", "content", "scheduled_at", "delivered", "delivered_at", "created_at"}).
		AddRow(uuid.New(), userID, "Gym", at, false, sql.NullTime{}, at.Add(-time.Hour))

	mockPool.ExpectQuery(regexp.QuoteMeta(listPendingScheduledMessagesByUserSQL)).
		WithArgs(userID).
		WillReturnRows(rows)

	pending, err := repo.ListPendingByUser(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "Gym", pending[0].Content)
	assert.Equal(t, at, pending[0].ScheduledAt)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}
