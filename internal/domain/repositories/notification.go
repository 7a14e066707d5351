package repositories

import (
	"context"

	"fanzone/internal/domain"
)

type NotificationRepository interface {
	ListForUser(ctx context.Context, userID string) ([]domain.Notification, error)
	Create(ctx context.Context, notification *domain.Notification) error
	MarkRead(ctx context.Context, userID string, notificationID int64) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
}
