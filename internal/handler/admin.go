package handler

import (
	"context"
	"database/sql"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/stockpick/members-api/internal/model"
	"github.com/stockpick/members-api/internal/repository"
)

// AdminHandler serves the operator surface: member management,
// session oversight and resolution of security detections. Routes
// are guarded by the AdminKey middleware.
type AdminHandler struct {
	Members  *repository.MemberRepo
	Sessions *repository.SessionRepo
	SusLogs  *repository.SuspiciousLogRepo
	History  *repository.LoginHistoryRepo
}

func NewAdminHandler(m *repository.MemberRepo, s *repository.SessionRepo,
	sl *repository.SuspiciousLogRepo, h *repository.LoginHistoryRepo) *AdminHandler {
	return &AdminHandler{Members: m, Sessions: s, SusLogs: sl, History: h}
}

// adminMemberPart exposes the security fields hidden from the public
// projection.
type adminMemberPart struct {
	ID               uint64  `json:"id"`
	UserID           string  `json:"user_id"`
	Name             string  `json:"name"`
	MembershipLevel  int     `json:"membership_level"`
	SecurityStatus   string  `json:"security_status"`
	SuspiciousCount  int     `json:"suspicious_count"`
	LastSuspiciousAt *string `json:"last_suspicious_at"`
	BlockedAt        *string `json:"blocked_at"`
	BlockedReason    *string `json:"blocked_reason"`
	IsActive         bool    `json:"is_active"`
	LastLoginAt      *string `json:"last_login_at"`
	CreatedAt        string  `json:"created_at"`
}

func toAdminMemberPart(m model.Member) adminMemberPart {
	return adminMemberPart{
		ID:               m.ID,
		UserID:           m.UserID,
		Name:             m.Name,
		MembershipLevel:  m.MembershipLevel,
		SecurityStatus:   string(m.SecurityStatus),
		SuspiciousCount:  m.SuspiciousCount,
		LastSuspiciousAt: fmtTimePtr(m.LastSuspiciousAt),
		BlockedAt:        fmtTimePtr(m.BlockedAt),
		BlockedReason:    m.BlockedReason,
		IsActive:         m.IsActive,
		LastLoginAt:      fmtTimePtr(m.LastLoginAt),
		CreatedAt:        m.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func fmtTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

// ListMembers returns members filtered by search text, level and
// security status.
func (h *AdminHandler) ListMembers(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	f := repository.MemberFilter{
		Search:         c.QueryParam("search"),
		SecurityStatus: c.QueryParam("security_status"),
		Limit:          queryInt(c, "limit"),
		Offset:         queryInt(c, "offset"),
	}
	if v := c.QueryParam("level"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			f.Level = &n
		}
	}

	members, err := h.Members.List(ctx, f)
	if err != nil {
		c.Logger().Errorf("admin member list: %v", err)
		return jsonError(c, http.StatusInternalServerError, "DATABASE_ERROR", "member lookup failed")
	}

	parts := make([]adminMemberPart, 0, len(members))
	for _, m := range members {
		parts = append(parts, toAdminMemberPart(m))
	}
	return c.JSON(http.StatusOK, echo.Map{"members": parts})
}

// GetMember returns a single member with full security detail plus
// live sessions and recent login history.
func (h *AdminHandler) GetMember(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return jsonError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid member id")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	m, err := h.Members.GetByID(ctx, id)
	if err == sql.ErrNoRows {
		return jsonError(c, http.StatusNotFound, "USER_NOT_FOUND", "member not found")
	}
	if err != nil {
		c.Logger().Errorf("admin member get: %v", err)
		return jsonError(c, http.StatusInternalServerError, "DATABASE_ERROR", "member lookup failed")
	}

	sessions, err := h.Sessions.ListActive(ctx, id)
	if err != nil {
		c.Logger().Errorf("admin member sessions: %v", err)
		return jsonError(c, http.StatusInternalServerError, "DATABASE_ERROR", "member lookup failed")
	}
	history, err := h.History.ListByMember(ctx, id, 20)
	if err != nil {
		c.Logger().Errorf("admin member history: %v", err)
		return jsonError(c, http.StatusInternalServerError, "DATABASE_ERROR", "member lookup failed")
	}

	sessionParts := make([]sessionPart, 0, len(sessions))
	for _, s := range sessions {
		sessionParts = append(sessionParts, toSessionPart(s, ""))
	}
	historyParts := make([]echo.Map, 0, len(history))
	for _, row := range history {
		historyParts = append(historyParts, echo.Map{
			"ip_address":     row.IPAddress,
			"device_type":    row.DeviceType,
			"browser":        row.Browser,
			"os":             row.OS,
			"is_success":     row.IsSuccess,
			"failure_reason": row.FailureReason,
			"login_at":       row.LoginAt.UTC().Format(time.RFC3339),
		})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"member":        toAdminMemberPart(m),
		"sessions":      sessionParts,
		"login_history": historyParts,
	})
}

type adminMemberUpdateReq struct {
	Name            *string `json:"name"`
	MembershipLevel *int    `json:"membership_level"`
	IsActive        *bool   `json:"is_active"`
	SecurityStatus  *string `json:"security_status"`
}

// UpdateMember applies operator edits. Setting status BLOCKED ends
// every live session. Setting status NORMAL clears the suspicion
// counter and any block, restoring the member's ability to log in.
func (h *AdminHandler) UpdateMember(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return jsonError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid member id")
	}
	var req adminMemberUpdateReq
	if err := c.Bind(&req); err != nil {
		return jsonError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid body")
	}
	if req.SecurityStatus != nil {
		switch model.SecurityStatus(*req.SecurityStatus) {
		case model.SecurityNormal, model.SecurityWarning, model.SecuritySuspicious, model.SecurityBlocked:
		default:
			return jsonError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid security_status")
		}
	}
	if req.MembershipLevel != nil && (*req.MembershipLevel < 0 || *req.MembershipLevel > 5) {
		return jsonError(c, http.StatusBadRequest, "VALIDATION_ERROR", "membership_level must be 0-5")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if _, err := h.Members.GetByID(ctx, id); err != nil {
		if err == sql.ErrNoRows {
			return jsonError(c, http.StatusNotFound, "USER_NOT_FOUND", "member not found")
		}
		c.Logger().Errorf("admin member update: %v", err)
		return jsonError(c, http.StatusInternalServerError, "DATABASE_ERROR", "member update failed")
	}

	if req.SecurityStatus != nil && *req.SecurityStatus == string(model.SecurityNormal) {
		// Manual reset clears the counter and any block in one step.
		if err := h.Members.ResetSecurity(ctx, id); err != nil {
			c.Logger().Errorf("admin security reset: %v", err)
			return jsonError(c, http.StatusInternalServerError, "DATABASE_ERROR", "member update failed")
		}
		req.SecurityStatus = nil
	}

	u := repository.MemberUpdate{
		Name:            req.Name,
		MembershipLevel: req.MembershipLevel,
		IsActive:        req.IsActive,
		SecurityStatus:  req.SecurityStatus,
	}
	if _, err := h.Members.Update(ctx, id, u); err != nil {
		c.Logger().Errorf("admin member update: %v", err)
		return jsonError(c, http.StatusInternalServerError, "DATABASE_ERROR", "member update failed")
	}

	if req.SecurityStatus != nil && *req.SecurityStatus == string(model.SecurityBlocked) {
		if _, err := h.Sessions.TerminateAllForMember(ctx, id); err != nil {
			c.Logger().Errorf("admin block sessions: %v", err)
			return jsonError(c, http.StatusInternalServerError, "DATABASE_ERROR", "member update failed")
		}
	}
	if req.IsActive != nil && !*req.IsActive {
		if _, err := h.Sessions.TerminateAllForMember(ctx, id); err != nil {
			c.Logger().Errorf("admin deactivate sessions: %v", err)
			return jsonError(c, http.StatusInternalServerError, "DATABASE_ERROR", "member update failed")
		}
	}

	m, err := h.Members.GetByID(ctx, id)
	if err != nil {
		c.Logger().Errorf("admin member reload: %v", err)
		return jsonError(c, http.StatusInternalServerError, "DATABASE_ERROR", "member update failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"member": toAdminMemberPart(m)})
}

// ListSessions returns sessions across members, optionally narrowed
// to one member or to live sessions only.
func (h *AdminHandler) ListSessions(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	f := repository.SessionFilter{
		ActiveOnly: c.QueryParam("active") == "true",
		Limit:      queryInt(c, "limit"),
		Offset:     queryInt(c, "offset"),
	}
	if v := c.QueryParam("member_id"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			f.MemberID = n
		}
	}

	sessions, err := h.Sessions.List(ctx, f)
	if err != nil {
		c.Logger().Errorf("admin session list: %v", err)
		return jsonError(c, http.StatusInternalServerError, "DATABASE_ERROR", "session lookup failed")
	}

	parts := make([]echo.Map, 0, len(sessions))
	for _, s := range sessions {
		p := toSessionPart(s, "")
		parts = append(parts, echo.Map{
			"id":               p.ID,
			"member_id":        s.MemberID,
			"device_type":      p.DeviceType,
			"browser":          p.Browser,
			"os":               p.OS,
			"ip_address":       p.IPAddress,
			"is_active":        s.IsActive,
			"login_at":         p.LoginAt,
			"last_activity_at": p.LastActivityAt,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"sessions": parts})
}

// TerminateSession force-ends any member's session by id.
func (h *AdminHandler) TerminateSession(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return jsonError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid session id")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	err = h.Sessions.TerminateByID(ctx, 0, id)
	if err == repository.ErrSessionNotFound {
		return jsonError(c, http.StatusNotFound, "SESSION_NOT_FOUND", "session not found")
	}
	if err != nil {
		c.Logger().Errorf("admin session terminate: %v", err)
		return jsonError(c, http.StatusInternalServerError, "DATABASE_ERROR", "session termination failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "session terminated"})
}

// ListSuspiciousLogs returns security detections, newest first.
func (h *AdminHandler) ListSuspiciousLogs(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	f := repository.SuspiciousLogFilter{
		UnresolvedOnly: c.QueryParam("unresolved") == "true",
		Limit:          queryInt(c, "limit"),
		Offset:         queryInt(c, "offset"),
	}
	if v := c.QueryParam("member_id"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			f.MemberID = n
		}
	}

	logs, err := h.SusLogs.List(ctx, f)
	if err != nil {
		c.Logger().Errorf("admin suspicious list: %v", err)
		return jsonError(c, http.StatusInternalServerError, "DATABASE_ERROR", "log lookup failed")
	}

	parts := make([]echo.Map, 0, len(logs))
	for _, l := range logs {
		parts = append(parts, echo.Map{
			"id":              l.ID,
			"member_id":       l.MemberID,
			"detection_type":  l.DetectionType,
			"severity":        string(l.Severity),
			"current_ip":      l.CurrentIP,
			"previous_ip":     l.PreviousIP,
			"user_agent":      l.UserAgent,
			"device_type":     l.DeviceType,
			"detected_at":     l.DetectedAt.UTC().Format(time.RFC3339),
			"is_resolved":     l.IsResolved,
			"resolved_at":     fmtTimePtr(l.ResolvedAt),
			"resolution_type": l.ResolutionType,
			"resolution_note": l.ResolutionNote,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"logs": parts})
}

type resolveReq struct {
	ResolutionType string `json:"resolution_type"`
	Note           string `json:"note"`
}

// ResolveLog closes a detection. CONFIRMED_OWNER and FALSE_POSITIVE
// relax the member back to NORMAL once no unresolved detections
// remain. TERMINATE_OTHERS additionally ends all of the member's
// sessions. BLOCKED escalates the member to a manual block.
func (h *AdminHandler) ResolveLog(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return jsonError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid log id")
	}
	var req resolveReq
	if err := c.Bind(&req); err != nil {
		return jsonError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid body")
	}
	switch req.ResolutionType {
	case model.ResolutionConfirmedOwner, model.ResolutionBlocked,
		model.ResolutionFalsePositive, model.ResolutionTerminateOthers:
	default:
		return jsonError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid resolution_type")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	memberID, err := h.SusLogs.Resolve(ctx, id, req.ResolutionType, strings.TrimSpace(req.Note))
	if err == repository.ErrNotFound {
		return jsonError(c, http.StatusNotFound, "LOG_NOT_FOUND", "log not found")
	}
	if err != nil {
		c.Logger().Errorf("admin resolve: %v", err)
		return jsonError(c, http.StatusInternalServerError, "DATABASE_ERROR", "resolution failed")
	}

	switch req.ResolutionType {
	case model.ResolutionBlocked:
		blocked := string(model.SecurityBlocked)
		if _, err := h.Members.Update(ctx, memberID, repository.MemberUpdate{SecurityStatus: &blocked}); err != nil {
			c.Logger().Errorf("admin resolve block: %v", err)
			return jsonError(c, http.StatusInternalServerError, "DATABASE_ERROR", "resolution failed")
		}
		if _, err := h.Sessions.TerminateAllForMember(ctx, memberID); err != nil {
			c.Logger().Errorf("admin resolve block sessions: %v", err)
			return jsonError(c, http.StatusInternalServerError, "DATABASE_ERROR", "resolution failed")
		}
	case model.ResolutionTerminateOthers:
		if _, err := h.Sessions.TerminateAllForMember(ctx, memberID); err != nil {
			c.Logger().Errorf("admin resolve terminate: %v", err)
			return jsonError(c, http.StatusInternalServerError, "DATABASE_ERROR", "resolution failed")
		}
		fallthrough
	case model.ResolutionConfirmedOwner, model.ResolutionFalsePositive:
		open, err := h.SusLogs.CountUnresolved(ctx, memberID)
		if err != nil {
			c.Logger().Errorf("admin resolve count: %v", err)
			return jsonError(c, http.StatusInternalServerError, "DATABASE_ERROR", "resolution failed")
		}
		if open == 0 {
			if err := h.Members.ResetSecurity(ctx, memberID); err != nil {
				c.Logger().Errorf("admin resolve reset: %v", err)
				return jsonError(c, http.StatusInternalServerError, "DATABASE_ERROR", "resolution failed")
			}
		}
	}

	return c.JSON(http.StatusOK, echo.Map{"message": "log resolved", "member_id": memberID})
}

func pathID(c echo.Context) (uint64, error) {
	return strconv.ParseUint(c.Param("id"), 10, 64)
}

func queryInt(c echo.Context, name string) int {
	n, _ := strconv.Atoi(c.QueryParam(name))
	return n
}
