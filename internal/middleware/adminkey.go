package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"
)

// AdminKey guards the admin surface with a shared API key carried in
// the X-Admin-Api-Key header. The admin desktop application is the
// only intended caller; member bearer tokens grant no admin access.
func AdminKey(key string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			got := c.Request().Header.Get("X-Admin-Api-Key")
			if key == "" || subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
				return c.JSON(http.StatusUnauthorized, errBody("UNAUTHORIZED", "admin authentication required"))
			}
			return next(c)
		}
	}
}
