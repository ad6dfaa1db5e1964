package model

import "time"

// ActiveSession models a row in the `active_sessions` table. One row
// exists per logged-in device or browser. Termination is a flag flip
// plus a logout timestamp; rows are retained for audit.
//
// Fields:
//  ID             – primary key identifier.
//  MemberID       – owner of the session.
//  SessionToken   – opaque 256-bit random token, also embedded in the JWT.
//  ExpiresAt      – absolute expiry, 24 hours after login.
//  IPAddress      – network origin as seen through proxy headers.
//  DeviceType     – PC, Mobile or Tablet.
//  Browser        – browser name from the User-Agent.
//  BrowserVersion – browser version.
//  OS             – operating system name.
//  OSVersion      – operating system version.
//  IsActive       – false after logout or eviction.
//  LoginAt        – when the session was created.
//  LastActivityAt – refreshed on authenticated requests.
//  LogoutAt       – when the session was terminated (nullable).
type ActiveSession struct {
    ID             uint64     // active_sessions.id
    MemberID       uint64     // active_sessions.member_id
    SessionToken   string     // active_sessions.session_token
    ExpiresAt      time.Time  // active_sessions.expires_at
    IPAddress      string     // active_sessions.ip_address
    DeviceType     string     // active_sessions.device_type
    Browser        string     // active_sessions.browser
    BrowserVersion string     // active_sessions.browser_version
    OS             string     // active_sessions.os
    OSVersion      string     // active_sessions.os_version
    IsActive       bool       // active_sessions.is_active
    LoginAt        time.Time  // active_sessions.login_at
    LastActivityAt time.Time  // active_sessions.last_activity_at
    LogoutAt       *time.Time // active_sessions.logout_at (nullable)
}
