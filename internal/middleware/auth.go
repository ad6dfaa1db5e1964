package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/stockpick/members-api/internal/repository"
	"github.com/stockpick/members-api/internal/utils"
)

// Context keys populated by Auth for downstream handlers.
const (
	CtxMemberID     = "member_id"
	CtxUserID       = "user_id"
	CtxLevel        = "membership_level"
	CtxSessionToken = "session_token"
	CtxSessionID    = "session_id"
)

// Auth validates the bearer token and then confirms that the session
// it references is still live. Both checks are required on every
// authenticated endpoint: the signed token stays cryptographically
// valid for its full 24 hours, so a revoked or evicted session must
// be caught by the database lookup. A missing row is reported as
// SESSION_EXPIRED rather than a generic 401 so clients can tell a
// remote eviction apart from a bad credential.
func Auth(secret string, sessions *repository.SessionRepo) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, errBody("UNAUTHORIZED", "authentication required"))
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			claims, err := utils.ParseBearerToken(secret, raw)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, errBody("UNAUTHORIZED", "invalid token"))
			}

			sess, err := sessions.GetActiveByToken(c.Request().Context(), claims.SessionToken)
			if err == repository.ErrSessionNotFound {
				return c.JSON(http.StatusUnauthorized, errBody("SESSION_EXPIRED", "session expired or terminated elsewhere"))
			}
			if err != nil {
				return c.JSON(http.StatusInternalServerError, errBody("SERVER_ERROR", "session lookup failed"))
			}
			if sess.MemberID != claims.MemberID {
				return c.JSON(http.StatusUnauthorized, errBody("UNAUTHORIZED", "invalid token"))
			}

			// Best-effort activity stamp; a failure here must not fail
			// the request.
			if err := sessions.TouchActivity(c.Request().Context(), sess.ID); err != nil {
				c.Logger().Warnf("touch session activity: %v", err)
			}

			c.Set(CtxMemberID, claims.MemberID)
			c.Set(CtxUserID, claims.UserID)
			c.Set(CtxLevel, claims.MembershipLevel)
			c.Set(CtxSessionToken, claims.SessionToken)
			c.Set(CtxSessionID, sess.ID)
			return next(c)
		}
	}
}

// MemberID reads the authenticated member id set by Auth. Zero means
// the middleware did not run.
func MemberID(c echo.Context) uint64 {
	if v, ok := c.Get(CtxMemberID).(uint64); ok {
		return v
	}
	return 0
}

// SessionToken reads the caller's opaque session token set by Auth.
func SessionToken(c echo.Context) string {
	if v, ok := c.Get(CtxSessionToken).(string); ok {
		return v
	}
	return ""
}

// Level reads the caller's membership level claim set by Auth.
func Level(c echo.Context) int {
	if v, ok := c.Get(CtxLevel).(int); ok {
		return v
	}
	return 0
}

func errBody(code, msg string) echo.Map {
	return echo.Map{"error": echo.Map{"code": code, "message": msg}}
}
