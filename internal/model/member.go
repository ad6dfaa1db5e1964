package model

import "time"

// SecurityStatus is the account-wide trust level of a member. It is
// escalated automatically by the anomaly detector on the login path
// and only ever lowered by manual admin action.
type SecurityStatus string

const (
    SecurityNormal     SecurityStatus = "NORMAL"
    SecurityWarning    SecurityStatus = "WARNING"
    SecuritySuspicious SecurityStatus = "SUSPICIOUS"
    SecurityBlocked    SecurityStatus = "BLOCKED"
)

// securityRank orders the statuses so that the automated path can only
// move upward. BLOCKED is terminal for the automated path.
var securityRank = map[SecurityStatus]int{
    SecurityNormal:     0,
    SecurityWarning:    1,
    SecuritySuspicious: 2,
    SecurityBlocked:    3,
}

// CanEscalateTo reports whether the automated path may move from s to
// next. Transitions never go downward and never leave BLOCKED.
func (s SecurityStatus) CanEscalateTo(next SecurityStatus) bool {
    cur, ok := securityRank[s]
    if !ok {
        return false
    }
    nxt, ok := securityRank[next]
    if !ok {
        return false
    }
    return nxt >= cur && cur != securityRank[SecurityBlocked]
}

// Member represents an application member record as stored in the
// `members` table. Each field corresponds to a column. The json tags
// are omitted; handlers define separate response types with the
// appropriate serialization.
//
// Fields:
//  ID              – primary key identifier of the member.
//  UserID          – unique login identifier chosen by the member.
//  PasswordHash    – bcrypt hashed password.
//  Name            – display name.
//  MembershipLevel – paid tier, 0 (free) through 5.
//  ReferralSource  – how the member heard about the service (nullable).
//  ReferralSourceEtc – free text when ReferralSource is "etc" (nullable).
//  SecurityStatus  – current trust level (NORMAL/WARNING/SUSPICIOUS/BLOCKED).
//  SuspiciousCount – number of differing-origin detections; reset only by admin.
//  LastSuspiciousAt – when the last detection happened (nullable).
//  BlockedAt       – when the account was blocked (nullable).
//  BlockedReason   – why the account was blocked (nullable).
//  IsActive        – whether the account is active.
//  CreatedAt       – timestamp of creation.
//  UpdatedAt       – timestamp of last update.
//  LastLoginAt     – timestamp of last successful login (nullable).
type Member struct {
    ID                uint64         // members.id
    UserID            string         // members.user_id
    PasswordHash      string         // members.password_hash
    Name              string         // members.name
    MembershipLevel   int            // members.membership_level
    ReferralSource    *string        // members.referral_source (nullable)
    ReferralSourceEtc *string        // members.referral_source_etc (nullable)
    SecurityStatus    SecurityStatus // members.security_status
    SuspiciousCount   int            // members.suspicious_count
    LastSuspiciousAt  *time.Time     // members.last_suspicious_at (nullable)
    BlockedAt         *time.Time     // members.blocked_at (nullable)
    BlockedReason     *string        // members.blocked_reason (nullable)
    IsActive          bool           // members.is_active
    CreatedAt         time.Time      // members.created_at
    UpdatedAt         time.Time      // members.updated_at
    LastLoginAt       *time.Time     // members.last_login_at (nullable)
}

// ReferralSource is a row of the `referral_sources` lookup served to
// the registration form. The "etc" code expects free text alongside.
type ReferralSource struct {
    ID        uint64 // referral_sources.id
    Code      string // referral_sources.code
    Name      string // referral_sources.name
    SortOrder int    // referral_sources.sort_order
    IsActive  bool   // referral_sources.is_active
}

// MembershipLevel maps a paid tier to its concurrency ceiling. The
// rows live in the `membership_levels` table and are loaded at
// authorization time rather than hardcoded.
//
// Fields:
//  Level       – numeric tier, 0 through 5.
//  Name        – human readable tier name.
//  MaxSessions – maximum number of simultaneously active sessions.
type MembershipLevel struct {
    Level       int    // membership_levels.level
    Name        string // membership_levels.name
    MaxSessions int    // membership_levels.max_sessions
}
