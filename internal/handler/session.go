package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/stockpick/members-api/internal/middleware"
	"github.com/stockpick/members-api/internal/repository"
)

// SessionHandler serves the member-facing session management
// endpoints. All routes sit behind the Auth middleware, so the member
// id and current session token come from the request context.
type SessionHandler struct {
	Sessions *repository.SessionRepo
	Levels   *repository.MembershipLevelRepo
}

func NewSessionHandler(s *repository.SessionRepo, l *repository.MembershipLevelRepo) *SessionHandler {
	return &SessionHandler{Sessions: s, Levels: l}
}

// List returns the caller's live sessions with masked origins, the
// calling session flagged so clients can render "this device".
func (h *SessionHandler) List(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	memberID := middleware.MemberID(c)

	sessions, err := h.Sessions.ListActive(ctx, memberID)
	if err != nil {
		c.Logger().Errorf("session list: %v", err)
		return jsonError(c, http.StatusInternalServerError, "SERVER_ERROR", "session lookup failed")
	}
	maxSessions, err := h.Levels.MaxSessions(ctx, middleware.Level(c))
	if err != nil {
		c.Logger().Errorf("session list: level lookup: %v", err)
		return jsonError(c, http.StatusInternalServerError, "SERVER_ERROR", "session lookup failed")
	}

	current := middleware.SessionToken(c)
	parts := make([]sessionPart, 0, len(sessions))
	for _, s := range sessions {
		parts = append(parts, toSessionPart(s, current))
	}

	return c.JSON(http.StatusOK, echo.Map{
		"sessions":     parts,
		"max_sessions": maxSessions,
	})
}

// TerminateOne ends one of the caller's own sessions by id. A member
// may terminate the session they are calling from; the next request
// on that token then fails with SESSION_EXPIRED.
func (h *SessionHandler) TerminateOne(c echo.Context) error {
	sessionID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || sessionID == 0 {
		return jsonError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid session id")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	err = h.Sessions.TerminateByID(ctx, middleware.MemberID(c), sessionID)
	if err == repository.ErrSessionNotFound {
		return jsonError(c, http.StatusNotFound, "SESSION_NOT_FOUND", "session not found")
	}
	if err != nil {
		c.Logger().Errorf("session terminate: %v", err)
		return jsonError(c, http.StatusInternalServerError, "SERVER_ERROR", "session termination failed")
	}

	return c.JSON(http.StatusOK, echo.Map{"message": "session terminated"})
}

// TerminateOthers ends every live session except the calling one, the
// usual response to a "was this you?" alert.
func (h *SessionHandler) TerminateOthers(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	count, err := h.Sessions.TerminateOthers(ctx, middleware.MemberID(c), middleware.SessionToken(c))
	if err != nil {
		c.Logger().Errorf("session terminate others: %v", err)
		return jsonError(c, http.StatusInternalServerError, "SERVER_ERROR", "session termination failed")
	}

	return c.JSON(http.StatusOK, echo.Map{"terminated_count": count})
}
