package mysql

import (
	"context"
	"database/sql"
	"time"

	"fanzone/internal/domain"

	_ "github.com/go-sql-driver/mysql"
)

type MySQLNotificationRepository struct {
	db *sql.DB
}

func NewMySQLNotificationRepository(db *sql.DB) *MySQLNotificationRepository {
	return &MySQLNotificationRepository{db: db}
}

func (r *MySQLNotificationRepository) ListForUser(ctx context.Context, userID string) ([]domain.Notification, error) {
	query := `
        SELECT id, user_id, type, title, message, is_read, created_at
        FROM notifications
        WHERE user_id = ?
        ORDER BY created_at DESC
    `

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	notifications := make([]domain.Notification, 0)
	for rows.Next() {
		var n domain.Notification

		err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message, &n.Read, &n.CreatedAt)
		if err != nil {
			return nil, err
		}

		notifications = append(notifications, n)
	}

	return notifications, rows.Err()
}

func (r *MySQLNotificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	query := `
        INSERT INTO notifications (user_id, type, title, message, is_read, created_at)
        VALUES (?, ?, ?, ?, ?, ?)
    `
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	result, err := r.db.ExecContext(ctx, query,
		n.UserID, n.Type, n.Title, n.Message, n.Read, n.CreatedAt)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	n.ID = id
	return nil
}

func (r *MySQLNotificationRepository) MarkRead(ctx context.Context, userID string, notificationID int64) error {
	query := `UPDATE notifications SET is_read = TRUE WHERE id = ? AND user_id = ?`
	result, err := r.db.ExecContext(ctx, query, notificationID, userID)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		// MySQL reports 0 for rows already read, so check existence before failing
		var exists bool
		err := r.db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM notifications WHERE id = ? AND user_id = ?)`,
			notificationID, userID).Scan(&exists)
		if err != nil {
			return err
		}
		if !exists {
			return domain.ErrNotificationNotFound
		}
	}
	return nil
}

func (r *MySQLNotificationRepository) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	query := `UPDATE notifications SET is_read = TRUE WHERE user_id = ? AND is_read = FALSE`
	result, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
