// Package queue defines message payloads exchanged over the message broker.
package queue

// SecurityAlertEvent is published when the anomaly detector records a
// differing-origin access or escalates an account to BLOCKED. It
// carries enough information for downstream consumers to alert, audit
// or feed dashboards without querying the primary database. IPs are
// already masked at publish time; raw addresses never leave the API.
type SecurityAlertEvent struct {
    EventID         string `json:"event_id"`
    MemberID        uint64 `json:"member_id"`
    UserID          string `json:"user_id"`
    DetectionType   string `json:"detection_type"`
    Severity        string `json:"severity"`
    SuspiciousCount int    `json:"suspicious_count"`
    CurrentIP       string `json:"current_ip"`
    PreviousIP      string `json:"previous_ip"`
    Blocked         bool   `json:"blocked"`
    DetectedAt      string `json:"detected_at"`
}
