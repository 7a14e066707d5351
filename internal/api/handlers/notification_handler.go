package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"fanzone/internal/api/middleware"
	"fanzone/internal/domain"
	"fanzone/pkg/logger"

	"github.com/labstack/echo/v4"
)

type NotificationService interface {
	List(ctx context.Context, userID string) ([]domain.Notification, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, userID string, notificationID int64) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
}

type NotificationHandler struct {
	service NotificationService
	log     logger.Logger
}

type ListNotificationsResponse struct {
	Notifications []domain.Notification `json:"notifications"`
}

type UnreadCountResponse struct {
	Count int `json:"count"`
}

type MarkAllReadResponse struct {
	Updated int64 `json:"updated"`
}

func NewNotificationHandler(service NotificationService, log logger.Logger) *NotificationHandler {
	return &NotificationHandler{
		service: service,
		log:     log,
	}
}

func (h *NotificationHandler) Register(g *echo.Group) {
	g.GET("/notifications", h.ListNotifications)
	g.GET("/notifications/unread-count", h.UnreadCount)
	g.POST("/notifications/read-all", h.MarkAllRead)
	g.POST("/notifications/:id/read", h.MarkRead)
}

func (h *NotificationHandler) ListNotifications(c echo.Context) error {
	userID := middleware.UserID(c)

	notifications, err := h.service.List(c.Request().Context(), userID)
	if err != nil {
		h.log.Error("Failed to list notifications", "user_id", userID, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to list notifications"})
	}
	if notifications == nil {
		notifications = []domain.Notification{}
	}

	return c.JSON(http.StatusOK, ListNotificationsResponse{Notifications: notifications})
}

func (h *NotificationHandler) UnreadCount(c echo.Context) error {
	userID := middleware.UserID(c)

	count, err := h.service.UnreadCount(c.Request().Context(), userID)
	if err != nil {
		h.log.Error("Failed to count unread notifications", "user_id", userID, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to count notifications"})
	}

	return c.JSON(http.StatusOK, UnreadCountResponse{Count: count})
}

func (h *NotificationHandler) MarkRead(c echo.Context) error {
	userID := middleware.UserID(c)

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid notification id"})
	}

	if err := h.service.MarkRead(c.Request().Context(), userID, id); err != nil {
		if errors.Is(err, domain.ErrNotificationNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "Notification not found"})
		}
		h.log.Error("Failed to mark notification read", "user_id", userID, "notification_id", id, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to update notification"})
	}

	return c.NoContent(http.StatusNoContent)
}

func (h *NotificationHandler) MarkAllRead(c echo.Context) error {
	userID := middleware.UserID(c)

	updated, err := h.service.MarkAllRead(c.Request().Context(), userID)
	if err != nil {
		h.log.Error("Failed to mark notifications read", "user_id", userID, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to update notifications"})
	}

	return c.JSON(http.StatusOK, MarkAllReadResponse{Updated: updated})
}
