package model

import "time"

// Detection and resolution enumerations for suspicious access logs.
const (
    DetectionDifferentRegion = "DIFFERENT_REGION"

    ResolutionConfirmedOwner   = "CONFIRMED_OWNER"
    ResolutionBlocked          = "BLOCKED"
    ResolutionFalsePositive    = "FALSE_POSITIVE"
    ResolutionTerminateOthers  = "TERMINATE_OTHERS"
)

// SuspiciousAccessLog is one detected differing-origin access. Rows
// are inserted only by the anomaly detector during login and mutated
// only by manual admin resolution.
//
// Fields:
//  ID             – primary key identifier.
//  MemberID       – member the detection belongs to.
//  DetectionType  – kind of anomaly (currently DIFFERENT_REGION).
//  Severity       – WARNING or SUSPICIOUS at insert time.
//  CurrentIP      – origin of the login that triggered the detection.
//  PreviousIP     – origin of the already-active session.
//  UserAgent      – raw User-Agent of the triggering request.
//  DeviceType     – parsed device class of the triggering request.
//  DetectedAt     – when the detection happened.
//  IsResolved     – set by admin resolution.
//  ResolvedAt     – when the admin resolved the log (nullable).
//  ResolutionType – CONFIRMED_OWNER, BLOCKED, FALSE_POSITIVE or
//                   TERMINATE_OTHERS (nullable).
//  ResolutionNote – free-form admin note (nullable).
type SuspiciousAccessLog struct {
    ID             uint64         // suspicious_access_logs.id
    MemberID       uint64         // suspicious_access_logs.member_id
    DetectionType  string         // suspicious_access_logs.detection_type
    Severity       SecurityStatus // suspicious_access_logs.severity
    CurrentIP      string         // suspicious_access_logs.current_ip
    PreviousIP     string         // suspicious_access_logs.previous_ip
    UserAgent      string         // suspicious_access_logs.user_agent
    DeviceType     string         // suspicious_access_logs.device_type
    DetectedAt     time.Time      // suspicious_access_logs.detected_at
    IsResolved     bool           // suspicious_access_logs.is_resolved
    ResolvedAt     *time.Time     // suspicious_access_logs.resolved_at (nullable)
    ResolutionType *string        // suspicious_access_logs.resolution_type (nullable)
    ResolutionNote *string        // suspicious_access_logs.resolution_note (nullable)
}

// LoginHistory is an append-only audit row recorded per login attempt
// once the member's identity has been resolved. The core never
// updates or deletes these rows.
//
// Fields:
//  ID            – primary key identifier.
//  MemberID      – member the attempt belongs to.
//  IPAddress     – origin of the attempt.
//  UserAgent     – raw User-Agent header.
//  DeviceType    – parsed device class.
//  Browser       – parsed browser name.
//  OS            – parsed operating system.
//  IsSuccess     – whether the attempt succeeded.
//  FailureReason – why the attempt failed (nullable).
//  LoginAt       – when the attempt happened.
type LoginHistory struct {
    ID            uint64    // login_history.id
    MemberID      uint64    // login_history.member_id
    IPAddress     string    // login_history.ip_address
    UserAgent     string    // login_history.user_agent
    DeviceType    string    // login_history.device_type
    Browser       string    // login_history.browser
    OS            string    // login_history.os
    IsSuccess     bool      // login_history.is_success
    FailureReason *string   // login_history.failure_reason (nullable)
    LoginAt       time.Time // login_history.login_at
}
