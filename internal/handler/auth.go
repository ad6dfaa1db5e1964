package handler

import (
	"context"
	"database/sql"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/stockpick/members-api/internal/config"
	"github.com/stockpick/members-api/internal/middleware"
	"github.com/stockpick/members-api/internal/model"
	"github.com/stockpick/members-api/internal/queue"
	"github.com/stockpick/members-api/internal/repository"
	queue_publisher "github.com/stockpick/members-api/internal/service"
	"github.com/stockpick/members-api/internal/utils"
)

// blockReason is stamped on members auto-blocked by the anomaly
// escalation path.
const blockReason = "automatic block after repeated anomalous access"

// AuthHandler bundles dependencies for the auth endpoints. The login
// flow needs the raw *sql.DB because its critical section runs inside
// a single transaction spanning several repositories.
type AuthHandler struct {
	Cfg       config.Config
	DB        *sql.DB
	Members   *repository.MemberRepo
	Sessions  *repository.SessionRepo
	Levels    *repository.MembershipLevelRepo
	SusLogs   *repository.SuspiciousLogRepo
	History   *repository.LoginHistoryRepo
	Referrals *repository.ReferralSourceRepo

	// Publish sends security events to the broker. Best-effort and
	// replaceable in tests; nil disables publishing.
	Publish func(context.Context, queue.SecurityAlertEvent) error
}

func NewAuthHandler(cfg config.Config, db *sql.DB, m *repository.MemberRepo, s *repository.SessionRepo,
	l *repository.MembershipLevelRepo, sl *repository.SuspiciousLogRepo, h *repository.LoginHistoryRepo,
	rs *repository.ReferralSourceRepo) *AuthHandler {
	return &AuthHandler{
		Cfg: cfg, DB: db, Members: m, Sessions: s, Levels: l, SusLogs: sl, History: h, Referrals: rs,
		Publish: queue_publisher.PublishSecurityAlert,
	}
}

// ----- DTOs -----

type registerReq struct {
	UserID            string `json:"user_id"`
	Password          string `json:"password"`
	Name              string `json:"name"`
	ReferralSource    string `json:"referral_source"`
	ReferralSourceEtc string `json:"referral_source_etc"`
}

type loginReq struct {
	UserID             string `json:"user_id"`
	Password           string `json:"password"`
	ForceLogin         bool   `json:"force_login"`
	TerminateSessionID uint64 `json:"terminate_session_id"`
}

type loginResp struct {
	User          memberPart         `json:"user"`
	Token         string             `json:"token"`
	ExpiresAt     string             `json:"expires_at"`
	SessionInfo   sessionInfoPart    `json:"session_info"`
	SecurityAlert *securityAlertPart `json:"security_alert,omitempty"`
}

// Register creates a level-0 member. No session is issued; the client
// logs in afterwards.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return jsonError(c, http.StatusBadRequest, "VALIDATION_ERROR", "invalid body")
	}
	req.UserID = strings.TrimSpace(req.UserID)
	req.Name = strings.TrimSpace(req.Name)

	if !utils.ValidUserID(req.UserID) {
		return jsonError(c, http.StatusBadRequest, "VALIDATION_ERROR", "user_id must be 4-50 alphanumeric characters")
	}
	if !utils.ValidPassword(req.Password) {
		return jsonError(c, http.StatusBadRequest, "VALIDATION_ERROR", "password must be at least 8 characters with a letter, digit and symbol")
	}
	if !utils.ValidName(req.Name) {
		return jsonError(c, http.StatusBadRequest, "VALIDATION_ERROR", "name must be 2-50 characters")
	}
	req.ReferralSource = strings.TrimSpace(req.ReferralSource)
	req.ReferralSourceEtc = strings.TrimSpace(req.ReferralSourceEtc)
	if req.ReferralSource == "" {
		return jsonError(c, http.StatusBadRequest, "MISSING_FIELDS", "referral_source is required")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	known, err := h.Referrals.Exists(ctx, req.ReferralSource)
	if err != nil {
		c.Logger().Errorf("register: referral lookup: %v", err)
		return jsonError(c, http.StatusInternalServerError, "SERVER_ERROR", "registration failed")
	}
	if !known {
		return jsonError(c, http.StatusBadRequest, "INVALID_REFERRAL_SOURCE", "unknown referral_source")
	}
	var referralEtc *string
	if req.ReferralSource == "etc" {
		if req.ReferralSourceEtc == "" {
			return jsonError(c, http.StatusBadRequest, "MISSING_FIELDS", "referral_source_etc is required when referral_source is etc")
		}
		referralEtc = &req.ReferralSourceEtc
	}

	id, err := h.Members.Create(ctx, req.UserID, req.Password, req.Name, &req.ReferralSource, referralEtc, h.Cfg.BcryptCost)
	if err != nil {
		if err == repository.ErrUserIDExists {
			return jsonError(c, http.StatusConflict, "DUPLICATE_USER_ID", "user_id already in use")
		}
		c.Logger().Errorf("register: %v", err)
		return jsonError(c, http.StatusInternalServerError, "SERVER_ERROR", "registration failed")
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"id":               id,
		"user_id":          req.UserID,
		"name":             req.Name,
		"membership_level": 0,
	})
}

// ReferralSources serves the selectable referral codes for the
// registration form, in display order. Public, no auth.
func (h *AuthHandler) ReferralSources(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	sources, err := h.Referrals.ListActive(ctx)
	if err != nil {
		c.Logger().Errorf("referral sources: %v", err)
		return jsonError(c, http.StatusInternalServerError, "SERVER_ERROR", "lookup failed")
	}
	parts := make([]echo.Map, 0, len(sources))
	for _, s := range sources {
		parts = append(parts, echo.Map{"code": s.Code, "name": s.Name})
	}
	return c.JSON(http.StatusOK, echo.Map{"referral_sources": parts})
}

// Login runs the full login protocol: credential check, concurrency
// enforcement, anomaly detection and token issuance. Everything that
// reads-then-writes member or session rows happens inside one
// transaction opened after the password check; on MySQL the member
// row is locked for its duration so two racing logins cannot both
// pass the concurrency check.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return jsonError(c, http.StatusBadRequest, "MISSING_FIELDS", "user_id and password are required")
	}
	if req.UserID == "" || req.Password == "" {
		return jsonError(c, http.StatusBadRequest, "MISSING_FIELDS", "user_id and password are required")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	device := utils.ParseUserAgent(c.Request().UserAgent())
	clientIP := utils.ClientIP(c.Request())

	m, err := h.Members.GetByUserID(ctx, req.UserID)
	if err != nil {
		if err == sql.ErrNoRows {
			// Unknown user_id: same response as a wrong password, and
			// nothing to attach a history row to.
			return jsonError(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", "invalid user_id or password")
		}
		c.Logger().Errorf("login: member lookup: %v", err)
		return jsonError(c, http.StatusInternalServerError, "SERVER_ERROR", "login failed")
	}

	if !m.IsActive {
		h.recordHistory(ctx, c, m.ID, clientIP, device, false, "account inactive")
		return jsonError(c, http.StatusForbidden, "ACCOUNT_INACTIVE", "account is deactivated")
	}
	if m.SecurityStatus == model.SecurityBlocked {
		h.recordHistory(ctx, c, m.ID, clientIP, device, false, "account blocked")
		return jsonErrorData(c, http.StatusForbidden, "ACCOUNT_BLOCKED", "account is blocked, contact support", echo.Map{
			"blocked_at": m.BlockedAt,
			"reason":     m.BlockedReason,
		})
	}
	if !utils.VerifyPassword(m.PasswordHash, req.Password) {
		h.recordHistory(ctx, c, m.ID, clientIP, device, false, "wrong password")
		return jsonError(c, http.StatusUnauthorized, "INVALID_CREDENTIALS", "invalid user_id or password")
	}

	maxSessions, err := h.Levels.MaxSessions(ctx, m.MembershipLevel)
	if err != nil {
		c.Logger().Errorf("login: level lookup: %v", err)
		return jsonError(c, http.StatusInternalServerError, "SERVER_ERROR", "login failed")
	}

	tx, err := h.DB.BeginTx(ctx, nil)
	if err != nil {
		c.Logger().Errorf("login: begin tx: %v", err)
		return jsonError(c, http.StatusInternalServerError, "SERVER_ERROR", "login failed")
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	// Re-read under lock: the state checked above may have changed
	// between the plain read and this point.
	locked, err := h.Members.GetForUpdateTx(ctx, tx, m.ID)
	if err != nil {
		c.Logger().Errorf("login: lock member: %v", err)
		return jsonError(c, http.StatusInternalServerError, "SERVER_ERROR", "login failed")
	}
	if locked.SecurityStatus == model.SecurityBlocked {
		// Release the transaction's connection before the history
		// insert: on the single-connection SQLite pool the insert
		// would otherwise wait on the pool against our own open tx.
		_ = tx.Rollback()
		h.recordHistory(ctx, c, m.ID, clientIP, device, false, "account blocked")
		return jsonErrorData(c, http.StatusForbidden, "ACCOUNT_BLOCKED", "account is blocked, contact support", echo.Map{
			"blocked_at": locked.BlockedAt,
			"reason":     locked.BlockedReason,
		})
	}

	now := time.Now().UTC()

	activeCount, err := h.Sessions.CountActiveTx(ctx, tx, m.ID, now)
	if err != nil {
		c.Logger().Errorf("login: count sessions: %v", err)
		return jsonError(c, http.StatusInternalServerError, "SERVER_ERROR", "login failed")
	}

	if activeCount >= maxSessions {
		switch {
		case req.ForceLogin:
			if err := h.Sessions.TerminateOldestTx(ctx, tx, m.ID, now); err != nil {
				c.Logger().Errorf("login: evict oldest: %v", err)
				return jsonError(c, http.StatusInternalServerError, "SERVER_ERROR", "login failed")
			}
		case req.TerminateSessionID != 0:
			err := h.Sessions.TerminateByIDTx(ctx, tx, m.ID, req.TerminateSessionID, now)
			if err == repository.ErrSessionNotFound {
				return jsonError(c, http.StatusBadRequest, "SESSION_NOT_FOUND", "session not found")
			}
			if err != nil {
				c.Logger().Errorf("login: evict session: %v", err)
				return jsonError(c, http.StatusInternalServerError, "SERVER_ERROR", "login failed")
			}
		default:
			sessions, err := h.Sessions.ListActiveTx(ctx, tx, m.ID, now)
			if err != nil {
				c.Logger().Errorf("login: list sessions: %v", err)
				return jsonError(c, http.StatusInternalServerError, "SERVER_ERROR", "login failed")
			}
			parts := make([]sessionPart, 0, len(sessions))
			for _, s := range sessions {
				parts = append(parts, toSessionPart(s, ""))
			}
			// Free the connection first; see the blocked re-check above.
			_ = tx.Rollback()
			h.recordHistory(ctx, c, m.ID, clientIP, device, false, "session limit exceeded")
			return jsonErrorData(c, http.StatusConflict, "SESSION_LIMIT_EXCEEDED",
				"concurrent session limit reached", echo.Map{
					"max_sessions":    maxSessions,
					"active_sessions": parts,
				})
		}
	}

	// Anomaly pass: another live session from a different origin bumps
	// the suspicion counter and may block the account outright. The
	// detection runs inside the login transaction: if the log insert
	// fails the whole login fails closed rather than skipping the
	// check.
	var alert *securityAlertPart
	var event *queue.SecurityAlertEvent
	newCount := locked.SuspiciousCount
	storedStatus := locked.SecurityStatus
	if prevIP, found, err := h.Sessions.FindOtherOriginTx(ctx, tx, m.ID, clientIP, now); err != nil {
		c.Logger().Errorf("login: anomaly query: %v", err)
		return jsonError(c, http.StatusInternalServerError, "SERVER_ERROR", "login failed")
	} else if found {
		newCount = locked.SuspiciousCount + 1
		severity := model.SecurityWarning
		if newCount >= 2 {
			severity = model.SecuritySuspicious
		}
		status := severity
		if !locked.SecurityStatus.CanEscalateTo(status) {
			status = locked.SecurityStatus
		}
		storedStatus = status

		lg := model.SuspiciousAccessLog{
			MemberID:      m.ID,
			DetectionType: model.DetectionDifferentRegion,
			Severity:      severity,
			CurrentIP:     clientIP,
			PreviousIP:    prevIP,
			UserAgent:     device.UserAgent,
			DeviceType:    device.DeviceType,
			DetectedAt:    now,
		}
		if err := h.SusLogs.InsertTx(ctx, tx, &lg); err != nil {
			c.Logger().Errorf("login: suspicious log insert: %v", err)
			return jsonError(c, http.StatusInternalServerError, "SERVER_ERROR", "login failed")
		}
		if err := h.Members.RecordSuspicionTx(ctx, tx, m.ID, newCount, status, now); err != nil {
			c.Logger().Errorf("login: record suspicion: %v", err)
			return jsonError(c, http.StatusInternalServerError, "SERVER_ERROR", "login failed")
		}

		alert = &securityAlertPart{
			ID:            lg.ID,
			DetectionType: lg.DetectionType,
			Severity:      string(severity),
			CurrentIP:     utils.MaskIP(clientIP),
			PreviousIP:    utils.MaskIP(prevIP),
			DetectedAt:    now.Format(time.RFC3339),
			IsResolved:    false,
		}
		event = &queue.SecurityAlertEvent{
			EventID:         uuid.NewString(),
			MemberID:        m.ID,
			UserID:          m.UserID,
			DetectionType:   lg.DetectionType,
			Severity:        string(severity),
			SuspiciousCount: newCount,
			CurrentIP:       utils.MaskIP(clientIP),
			PreviousIP:      utils.MaskIP(prevIP),
			DetectedAt:      now.Format(time.RFC3339),
		}

		// Third strike: block the account and reject this login. The
		// transaction commits so the block and the detection survive
		// even though no session is created.
		if newCount >= 3 {
			if err := h.Members.BlockTx(ctx, tx, m.ID, blockReason, now); err != nil {
				c.Logger().Errorf("login: block member: %v", err)
				return jsonError(c, http.StatusInternalServerError, "SERVER_ERROR", "login failed")
			}
			if err := tx.Commit(); err != nil {
				c.Logger().Errorf("login: commit block: %v", err)
				return jsonError(c, http.StatusInternalServerError, "SERVER_ERROR", "login failed")
			}
			committed = true
			h.recordHistory(ctx, c, m.ID, clientIP, device, false, "blocked after repeated anomalous access")
			event.Blocked = true
			h.publishEvent(c, *event)
			return jsonError(c, http.StatusForbidden, "ACCOUNT_BLOCKED",
				"repeated anomalous access detected, account blocked")
		}
	}

	sessionToken, err := utils.NewSessionToken()
	if err != nil {
		c.Logger().Errorf("login: session token: %v", err)
		return jsonError(c, http.StatusInternalServerError, "SERVER_ERROR", "login failed")
	}
	expiresAt := now.Add(time.Duration(h.Cfg.TokenTTLH) * time.Hour)

	sess := model.ActiveSession{
		MemberID:       m.ID,
		SessionToken:   sessionToken,
		ExpiresAt:      expiresAt,
		IPAddress:      clientIP,
		DeviceType:     device.DeviceType,
		Browser:        device.Browser,
		BrowserVersion: device.BrowserVersion,
		OS:             device.OS,
		OSVersion:      device.OSVersion,
		LoginAt:        now,
		LastActivityAt: now,
	}
	if err := h.Sessions.CreateTx(ctx, tx, &sess); err != nil {
		c.Logger().Errorf("login: create session: %v", err)
		return jsonError(c, http.StatusInternalServerError, "SERVER_ERROR", "login failed")
	}
	if err := h.Members.UpdateLastLoginTx(ctx, tx, m.ID, now); err != nil {
		c.Logger().Errorf("login: last login: %v", err)
		return jsonError(c, http.StatusInternalServerError, "SERVER_ERROR", "login failed")
	}
	currentCount, err := h.Sessions.CountActiveTx(ctx, tx, m.ID, now)
	if err != nil {
		c.Logger().Errorf("login: recount sessions: %v", err)
		return jsonError(c, http.StatusInternalServerError, "SERVER_ERROR", "login failed")
	}
	if err := tx.Commit(); err != nil {
		c.Logger().Errorf("login: commit: %v", err)
		return jsonError(c, http.StatusInternalServerError, "SERVER_ERROR", "login failed")
	}
	committed = true

	bearer, err := utils.NewBearerToken(h.Cfg.JWTSecret, m.ID, m.UserID, m.MembershipLevel, sessionToken, h.Cfg.TokenTTLH)
	if err != nil {
		c.Logger().Errorf("login: issue token: %v", err)
		return jsonError(c, http.StatusInternalServerError, "SERVER_ERROR", "login failed")
	}

	h.recordHistory(ctx, c, m.ID, clientIP, device, true, "")
	if event != nil {
		h.publishEvent(c, *event)
	}

	// Report the status actually persisted during the anomaly pass. It
	// can sit above the alert severity when the member already carried a
	// higher status, and statuses never move downward.
	user := toMemberPart(m, false)
	if alert != nil {
		user.SecurityStatus = string(storedStatus)
	}

	return c.JSON(http.StatusOK, loginResp{
		User:          user,
		Token:         bearer.Token,
		ExpiresAt:     bearer.Exp.Format(time.RFC3339),
		SessionInfo:   sessionInfoPart{ActiveSessions: currentCount, MaxSessions: maxSessions},
		SecurityAlert: alert,
	})
}

// Logout flips the caller's own session inactive. The bearer token
// keeps a valid signature afterwards but stops working everywhere
// because the session row is gone from the live set.
func (h *AuthHandler) Logout(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	err := h.Sessions.TerminateByToken(ctx, middleware.SessionToken(c))
	if err != nil && err != repository.ErrSessionNotFound {
		c.Logger().Errorf("logout: %v", err)
		return jsonError(c, http.StatusInternalServerError, "SERVER_ERROR", "logout failed")
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "logged out"})
}

// Me returns the caller's public profile plus the session budget. The
// Auth middleware has already confirmed both the token signature and
// the live session row.
func (h *AuthHandler) Me(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	m, err := h.Members.GetByID(ctx, middleware.MemberID(c))
	if err != nil || !m.IsActive {
		if err != nil && err != sql.ErrNoRows {
			c.Logger().Errorf("me: member lookup: %v", err)
			return jsonError(c, http.StatusInternalServerError, "SERVER_ERROR", "lookup failed")
		}
		return jsonError(c, http.StatusNotFound, "USER_NOT_FOUND", "member not found")
	}

	sessions, err := h.Sessions.ListActive(ctx, m.ID)
	if err != nil {
		c.Logger().Errorf("me: session list: %v", err)
		return jsonError(c, http.StatusInternalServerError, "SERVER_ERROR", "lookup failed")
	}
	maxSessions, err := h.Levels.MaxSessions(ctx, m.MembershipLevel)
	if err != nil {
		c.Logger().Errorf("me: level lookup: %v", err)
		return jsonError(c, http.StatusInternalServerError, "SERVER_ERROR", "lookup failed")
	}

	return c.JSON(http.StatusOK, echo.Map{
		"user": toMemberPart(m, true),
		"session_info": sessionInfoPart{
			ActiveSessions: len(sessions),
			MaxSessions:    maxSessions,
		},
	})
}

// recordHistory appends a login attempt row once identity is known.
// Audit is best-effort: a failed insert is logged and never alters
// the response.
func (h *AuthHandler) recordHistory(ctx context.Context, c echo.Context, memberID uint64, ip string, device utils.DeviceInfo, success bool, reason string) {
	row := model.LoginHistory{
		MemberID:   memberID,
		IPAddress:  ip,
		UserAgent:  device.UserAgent,
		DeviceType: device.DeviceType,
		Browser:    device.Browser,
		OS:         device.OS,
		IsSuccess:  success,
	}
	if reason != "" {
		row.FailureReason = &reason
	}
	if err := h.History.Insert(ctx, row); err != nil {
		c.Logger().Warnf("login history insert failed: %v", err)
	}
}

// publishEvent relays a security event to the broker without blocking
// the response.
func (h *AuthHandler) publishEvent(c echo.Context, ev queue.SecurityAlertEvent) {
	if h.Publish == nil {
		return
	}
	go func() {
		// Failures are logged inside the publisher.
		_ = h.Publish(context.Background(), ev)
	}()
}
