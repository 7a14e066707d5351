package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"fanzone/pkg/logger"

	"github.com/labstack/echo/v4"
)

// RequireServiceToken admits backend producers that present the shared
// service token as a bearer token. An empty token admits nobody.
func RequireServiceToken(token string, log logger.Logger) echo.MiddlewareFunc {
	expected := []byte(token)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get(echo.HeaderAuthorization)
			presented := strings.TrimPrefix(auth, "Bearer ")
			if len(expected) == 0 || auth == presented ||
				subtle.ConstantTimeCompare([]byte(presented), expected) != 1 {
				log.Warn("Rejected service request", "path", c.Path(), "remote_ip", c.RealIP())
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Service token required"})
			}
			return next(c)
		}
	}
}
