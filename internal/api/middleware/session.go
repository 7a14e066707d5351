package middleware

import (
	"errors"
	"net/http"
	"strings"

	"fanzone/internal/domain"
	"fanzone/pkg/logger"

	"github.com/labstack/echo/v4"
)

const (
	ContextUserID = "user_id"
	ContextToken  = "session_token"
)

// RequireSession resolves the bearer token of each request and stores the
// user id under ContextUserID.
func RequireSession(sessions domain.SessionStore, log logger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get(echo.HeaderAuthorization)
			token := strings.TrimPrefix(auth, "Bearer ")
			if auth == "" || token == auth || token == "" {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Missing bearer token"})
			}

			userID, err := sessions.ResolveSession(c.Request().Context(), token)
			if err != nil {
				if errors.Is(err, domain.ErrSessionNotFound) {
					return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid session"})
				}
				log.Error("Failed to resolve session", "error", err)
				return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Session lookup failed"})
			}

			c.Set(ContextUserID, userID)
			c.Set(ContextToken, token)
			return next(c)
		}
	}
}

// UserID returns the user resolved by RequireSession.
func UserID(c echo.Context) string {
	userID, _ := c.Get(ContextUserID).(string)
	return userID
}
