package handler

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/stockpick/members-api/internal/model"
	"github.com/stockpick/members-api/internal/utils"
)

// All failure responses share one wire shape: a stable machine code
// plus a human message. Internal causes never reach the caller.
func jsonError(c echo.Context, status int, code, msg string) error {
	return c.JSON(status, echo.Map{"error": echo.Map{"code": code, "message": msg}})
}

func jsonErrorData(c echo.Context, status int, code, msg string, data interface{}) error {
	return c.JSON(status, echo.Map{"error": echo.Map{"code": code, "message": msg, "data": data}})
}

// memberPart is the public projection of a member. The password hash
// and security counters never appear in responses.
type memberPart struct {
	ID              uint64  `json:"id"`
	UserID          string  `json:"user_id"`
	Name            string  `json:"name"`
	MembershipLevel int     `json:"membership_level"`
	SecurityStatus  string  `json:"security_status"`
	CreatedAt       *string `json:"created_at,omitempty"`
}

func toMemberPart(m model.Member, withCreated bool) memberPart {
	p := memberPart{
		ID:              m.ID,
		UserID:          m.UserID,
		Name:            m.Name,
		MembershipLevel: m.MembershipLevel,
		SecurityStatus:  string(m.SecurityStatus),
	}
	if withCreated {
		s := m.CreatedAt.UTC().Format(time.RFC3339)
		p.CreatedAt = &s
	}
	return p
}

// sessionPart is the masked projection of an active session returned
// by the session list and the 409 choice list. The opaque session
// token and the raw IP never appear.
type sessionPart struct {
	ID             uint64 `json:"id"`
	DeviceType     string `json:"device_type"`
	Browser        string `json:"browser"`
	BrowserVersion string `json:"browser_version"`
	OS             string `json:"os"`
	OSVersion      string `json:"os_version"`
	IPAddress      string `json:"ip_address"`
	LoginAt        string `json:"login_at"`
	LastActivityAt string `json:"last_activity_at"`
	IsCurrent      bool   `json:"is_current"`
}

func toSessionPart(s model.ActiveSession, currentToken string) sessionPart {
	return sessionPart{
		ID:             s.ID,
		DeviceType:     s.DeviceType,
		Browser:        s.Browser,
		BrowserVersion: s.BrowserVersion,
		OS:             s.OS,
		OSVersion:      s.OSVersion,
		IPAddress:      utils.MaskIP(s.IPAddress),
		LoginAt:        s.LoginAt.UTC().Format(time.RFC3339),
		LastActivityAt: s.LastActivityAt.UTC().Format(time.RFC3339),
		IsCurrent:      currentToken != "" && s.SessionToken == currentToken,
	}
}

// sessionInfoPart summarizes the caller's concurrency budget.
type sessionInfoPart struct {
	ActiveSessions int `json:"active_sessions"`
	MaxSessions    int `json:"max_sessions"`
}

// securityAlertPart is the masked anomaly notice attached to a login
// response when a differing-origin session was detected.
type securityAlertPart struct {
	ID            uint64 `json:"id"`
	DetectionType string `json:"detection_type"`
	Severity      string `json:"severity"`
	CurrentIP     string `json:"current_ip"`
	PreviousIP    string `json:"previous_ip"`
	DetectedAt    string `json:"detected_at"`
	IsResolved    bool   `json:"is_resolved"`
}
