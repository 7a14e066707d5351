package mysql

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fanzone/internal/domain"
)

func newRepo(t *testing.T) (*MySQLNotificationRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return NewMySQLNotificationRepository(db), mock
}

func TestListForUser(t *testing.T) {
	repo, mock := newRepo(t)
	created := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"id", "user_id", "type", "title", "message", "is_read", "created_at"}).
		AddRow(3, "u1", "auction_won", "You won", "Auction 42", false, created).
		AddRow(2, "u1", "outbid", "Outbid", "Auction 7", true, created)
	mock.ExpectQuery(regexp.QuoteMeta("FROM notifications")).WithArgs("u1").WillReturnRows(rows)

	list, err := repo.ListForUser(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, int64(3), list[0].ID)
	assert.False(t, list[0].Read)
	assert.True(t, list[1].Read)
	assert.Equal(t, 1, domain.CountUnread(list))
}

func TestListForUserEmpty(t *testing.T) {
	repo, mock := newRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM notifications")).WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "type", "title", "message", "is_read", "created_at"}))

	list, err := repo.ListForUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}

func TestListForUserQueryError(t *testing.T) {
	repo, mock := newRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM notifications")).WillReturnError(errors.New("db down"))

	_, err := repo.ListForUser(context.Background(), "u1")
	assert.EqualError(t, err, "db down")
}

func TestCreate(t *testing.T) {
	repo, mock := newRepo(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO notifications")).
		WithArgs("u1", "auction_won", "You won", "Auction 42", false, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(11, 1))

	n := &domain.Notification{UserID: "u1", Type: "auction_won", Title: "You won", Message: "Auction 42"}
	require.NoError(t, repo.Create(context.Background(), n))
	assert.Equal(t, int64(11), n.ID)
	assert.False(t, n.CreatedAt.IsZero())
}

func TestMarkRead(t *testing.T) {
	repo, mock := newRepo(t)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE notifications SET is_read = TRUE WHERE id = ? AND user_id = ?")).
		WithArgs(int64(5), "u1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	assert.NoError(t, repo.MarkRead(context.Background(), "u1", 5))
}

func TestMarkReadAlreadyRead(t *testing.T) {
	repo, mock := newRepo(t)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE notifications")).
		WithArgs(int64(5), "u1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).
		WithArgs(int64(5), "u1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	assert.NoError(t, repo.MarkRead(context.Background(), "u1", 5))
}

func TestMarkReadNotFound(t *testing.T) {
	repo, mock := newRepo(t)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE notifications")).
		WithArgs(int64(99), "u1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).
		WithArgs(int64(99), "u1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	assert.ErrorIs(t, repo.MarkRead(context.Background(), "u1", 99), domain.ErrNotificationNotFound)
}

func TestMarkAllRead(t *testing.T) {
	repo, mock := newRepo(t)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE notifications SET is_read = TRUE WHERE user_id = ? AND is_read = FALSE")).
		WithArgs("u1").
		WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := repo.MarkAllRead(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}
