package handler_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/stockpick/members-api/internal/model"
	"github.com/stockpick/members-api/internal/repository"
)

func TestRegister(t *testing.T) {
	v := newEnv(t)

	rec, out := v.do(http.MethodPost, "/v1/auth/register", "", map[string]interface{}{
		"user_id": "newuser1", "password": testPassword, "name": "New User", "referral_source": "search",
	}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d body %v", rec.Code, out)
	}
	if out["user_id"] != "newuser1" {
		t.Errorf("user_id = %v", out["user_id"])
	}
	if out["membership_level"] != float64(0) {
		t.Errorf("membership_level = %v, want 0", out["membership_level"])
	}

	rec, out = v.do(http.MethodPost, "/v1/auth/register", "", map[string]interface{}{
		"user_id": "newuser1", "password": testPassword, "name": "Imposter", "referral_source": "search",
	}, nil)
	if rec.Code != http.StatusConflict || errCode(out) != "DUPLICATE_USER_ID" {
		t.Errorf("duplicate: status %d code %s", rec.Code, errCode(out))
	}

	rec, out = v.do(http.MethodPost, "/v1/auth/register", "", map[string]interface{}{
		"user_id": "newuser2", "password": "weak", "name": "Weak", "referral_source": "search",
	}, nil)
	if rec.Code != http.StatusBadRequest || errCode(out) != "VALIDATION_ERROR" {
		t.Errorf("weak password: status %d code %s", rec.Code, errCode(out))
	}
}

func TestRegisterReferralSource(t *testing.T) {
	v := newEnv(t)

	rec, out := v.do(http.MethodPost, "/v1/auth/register", "", map[string]interface{}{
		"user_id": "noref123", "password": testPassword, "name": "No Referral",
	}, nil)
	if rec.Code != http.StatusBadRequest || errCode(out) != "MISSING_FIELDS" {
		t.Errorf("missing referral: status %d code %s", rec.Code, errCode(out))
	}

	rec, out = v.do(http.MethodPost, "/v1/auth/register", "", map[string]interface{}{
		"user_id": "badref12", "password": testPassword, "name": "Bad Referral", "referral_source": "carrier-pigeon",
	}, nil)
	if rec.Code != http.StatusBadRequest || errCode(out) != "INVALID_REFERRAL_SOURCE" {
		t.Errorf("unknown referral: status %d code %s", rec.Code, errCode(out))
	}

	// "etc" needs the free-text companion field.
	rec, out = v.do(http.MethodPost, "/v1/auth/register", "", map[string]interface{}{
		"user_id": "etcref12", "password": testPassword, "name": "Etc Referral", "referral_source": "etc",
	}, nil)
	if rec.Code != http.StatusBadRequest || errCode(out) != "MISSING_FIELDS" {
		t.Errorf("etc without text: status %d code %s", rec.Code, errCode(out))
	}

	rec, out = v.do(http.MethodPost, "/v1/auth/register", "", map[string]interface{}{
		"user_id": "etcref12", "password": testPassword, "name": "Etc Referral",
		"referral_source": "etc", "referral_source_etc": "conference booth",
	}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("etc with text: status %d body %v", rec.Code, out)
	}

	m, err := v.members.GetByUserID(context.Background(), "etcref12")
	if err != nil {
		t.Fatalf("reload member: %v", err)
	}
	if m.ReferralSource == nil || *m.ReferralSource != "etc" {
		t.Errorf("referral_source = %v, want etc", m.ReferralSource)
	}
	if m.ReferralSourceEtc == nil || *m.ReferralSourceEtc != "conference booth" {
		t.Errorf("referral_source_etc = %v", m.ReferralSourceEtc)
	}
}

func TestReferralSourcesListing(t *testing.T) {
	v := newEnv(t)

	rec, out := v.do(http.MethodGet, "/v1/auth/referral-sources", "", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body %v", rec.Code, out)
	}
	list, _ := out["referral_sources"].([]interface{})
	if len(list) == 0 {
		t.Fatal("no referral sources returned")
	}
	first, _ := list[0].(map[string]interface{})
	if first["code"] != "search" {
		t.Errorf("first code = %v, want search (sort order)", first["code"])
	}
	codes := map[string]bool{}
	for _, item := range list {
		entry, _ := item.(map[string]interface{})
		code, _ := entry["code"].(string)
		codes[code] = true
	}
	if !codes["etc"] {
		t.Error("etc missing from listing")
	}
}

func TestLogin(t *testing.T) {
	v := newEnv(t)
	v.seedMember("alice123", 0)

	rec, out := v.login("alice123", "203.0.113.7", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body %v", rec.Code, out)
	}
	if out["token"] == "" || out["expires_at"] == "" {
		t.Error("token or expires_at missing")
	}
	user, _ := out["user"].(map[string]interface{})
	if user["user_id"] != "alice123" || user["security_status"] != "NORMAL" {
		t.Errorf("user = %v", user)
	}
	info, _ := out["session_info"].(map[string]interface{})
	if info["active_sessions"] != float64(1) || info["max_sessions"] != float64(1) {
		t.Errorf("session_info = %v", info)
	}
	if _, has := out["security_alert"]; has {
		t.Error("unexpected security_alert on first login")
	}

	rec, out = v.do(http.MethodPost, "/v1/auth/login", "", map[string]interface{}{
		"user_id": "alice123", "password": "wrong1!pw",
	}, nil)
	if rec.Code != http.StatusUnauthorized || errCode(out) != "INVALID_CREDENTIALS" {
		t.Errorf("wrong password: status %d code %s", rec.Code, errCode(out))
	}

	rec, out = v.do(http.MethodPost, "/v1/auth/login", "", map[string]interface{}{
		"user_id": "nobody99", "password": testPassword,
	}, nil)
	if rec.Code != http.StatusUnauthorized || errCode(out) != "INVALID_CREDENTIALS" {
		t.Errorf("unknown user: status %d code %s", rec.Code, errCode(out))
	}

	rec, out = v.do(http.MethodPost, "/v1/auth/login", "", map[string]interface{}{
		"user_id": "alice123",
	}, nil)
	if rec.Code != http.StatusBadRequest || errCode(out) != "MISSING_FIELDS" {
		t.Errorf("missing password: status %d code %s", rec.Code, errCode(out))
	}
}

func TestSessionLimitConflict(t *testing.T) {
	v := newEnv(t)
	id := v.seedMember("bob12345", 0) // max 1 session

	v.mustLogin("bob12345", "203.0.113.7")

	rec, out := v.login("bob12345", "203.0.113.7", nil)
	if rec.Code != http.StatusConflict || errCode(out) != "SESSION_LIMIT_EXCEEDED" {
		t.Fatalf("status %d code %s body %v", rec.Code, errCode(out), out)
	}
	data := errData(out)
	if data["max_sessions"] != float64(1) {
		t.Errorf("max_sessions = %v, want 1", data["max_sessions"])
	}
	list, _ := data["active_sessions"].([]interface{})
	if len(list) != 1 {
		t.Fatalf("active_sessions len = %d, want 1", len(list))
	}
	sess, _ := list[0].(map[string]interface{})
	ip, _ := sess["ip_address"].(string)
	if !strings.HasSuffix(ip, "***") {
		t.Errorf("ip not masked: %q", ip)
	}
	if sess["id"] == nil || sess["device_type"] == "" {
		t.Errorf("session entry incomplete: %v", sess)
	}

	// The rejected attempt still lands in the audit trail. The insert
	// runs on the shared pool, so the login transaction must have
	// released its connection first.
	var failures int
	if err := v.db.QueryRow(
		`SELECT COUNT(*) FROM login_history WHERE member_id=? AND is_success=0`, id).Scan(&failures); err != nil {
		t.Fatalf("count history: %v", err)
	}
	if failures != 1 {
		t.Errorf("failed history rows = %d, want 1", failures)
	}
}

func TestConcurrentLoginsRespectLimit(t *testing.T) {
	v := newEnv(t)
	id := v.seedMember("ivan1234", 0) // max 1 session

	body := `{"user_id":"ivan1234","password":"` + testPassword + `"}`
	codes := make(chan int, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req := httptest.NewRequest(http.MethodPost, "/v1/auth/login", strings.NewReader(body))
			req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			req.Header.Set("User-Agent", testAgent)
			req.Header.Set("X-Forwarded-For", "203.0.113.7")
			rec := httptest.NewRecorder()
			v.e.ServeHTTP(rec, req)
			codes <- rec.Code
		}()
	}
	wg.Wait()
	close(codes)

	statuses := map[int]int{}
	for code := range codes {
		statuses[code]++
	}
	if statuses[http.StatusOK] > 1 {
		t.Errorf("both racing logins succeeded: %v", statuses)
	}
	if statuses[http.StatusOK]+statuses[http.StatusConflict] != 2 {
		t.Errorf("unexpected status mix: %v", statuses)
	}

	sessions, err := v.sessions.ListActive(context.Background(), id)
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	if len(sessions) > 1 {
		t.Errorf("live sessions = %d, want at most 1", len(sessions))
	}
}

func TestForceLoginEvictsOldest(t *testing.T) {
	v := newEnv(t)
	v.seedMember("carol123", 0)

	oldTok := v.mustLogin("carol123", "203.0.113.7")

	rec, out := v.login("carol123", "203.0.113.7", map[string]interface{}{"force_login": true})
	if rec.Code != http.StatusOK {
		t.Fatalf("force login: status %d body %v", rec.Code, out)
	}
	info, _ := out["session_info"].(map[string]interface{})
	if info["active_sessions"] != float64(1) {
		t.Errorf("active_sessions = %v, want 1", info["active_sessions"])
	}

	// The evicted session's bearer token must stop working.
	rec, out = v.do(http.MethodGet, "/v1/me", oldTok, nil, nil)
	if rec.Code != http.StatusUnauthorized || errCode(out) != "SESSION_EXPIRED" {
		t.Errorf("evicted token: status %d code %s", rec.Code, errCode(out))
	}
}

func TestLoginTerminateSelectedSession(t *testing.T) {
	v := newEnv(t)
	v.seedMember("dave1234", 0)

	tok := v.mustLogin("dave1234", "203.0.113.7")

	rec, out := v.do(http.MethodGet, "/v1/sessions", tok, nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("session list: %d", rec.Code)
	}
	list, _ := out["sessions"].([]interface{})
	if len(list) != 1 {
		t.Fatalf("sessions len = %d", len(list))
	}
	sessID := list[0].(map[string]interface{})["id"].(float64)

	rec, out = v.login("dave1234", "203.0.113.7", map[string]interface{}{"terminate_session_id": 99999})
	if rec.Code != http.StatusBadRequest || errCode(out) != "SESSION_NOT_FOUND" {
		t.Errorf("bad session id: status %d code %s", rec.Code, errCode(out))
	}

	rec, out = v.login("dave1234", "203.0.113.7", map[string]interface{}{"terminate_session_id": sessID})
	if rec.Code != http.StatusOK {
		t.Fatalf("selective eviction: status %d body %v", rec.Code, out)
	}

	rec, out = v.do(http.MethodGet, "/v1/me", tok, nil, nil)
	if rec.Code != http.StatusUnauthorized || errCode(out) != "SESSION_EXPIRED" {
		t.Errorf("evicted token: status %d code %s", rec.Code, errCode(out))
	}
}

func TestAnomalyEscalationAndBlock(t *testing.T) {
	v := newEnv(t)
	id := v.seedMember("erin1234", 3) // max 3 sessions

	// First login establishes the origin; no anomaly.
	rec, out := v.login("erin1234", "1.1.1.1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("login A: %d %v", rec.Code, out)
	}
	if _, has := out["security_alert"]; has {
		t.Fatal("login A produced an alert")
	}

	// Second login from a new origin: first strike, WARNING.
	rec, out = v.login("erin1234", "2.2.2.2", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("login B: %d %v", rec.Code, out)
	}
	alert, _ := out["security_alert"].(map[string]interface{})
	if alert == nil || alert["severity"] != "WARNING" {
		t.Fatalf("login B alert = %v, want WARNING", alert)
	}
	if alert["detection_type"] != "DIFFERENT_REGION" {
		t.Errorf("detection_type = %v", alert["detection_type"])
	}
	curIP, _ := alert["current_ip"].(string)
	if !strings.HasSuffix(curIP, "***.***") {
		t.Errorf("alert ip not masked: %q", curIP)
	}
	user, _ := out["user"].(map[string]interface{})
	if user["security_status"] != "WARNING" {
		t.Errorf("user status = %v, want WARNING", user["security_status"])
	}
	ev := waitEvent(t, v.events)
	if ev.Severity != "WARNING" || ev.SuspiciousCount != 1 || ev.Blocked {
		t.Errorf("event B = %+v", ev)
	}

	// Third login, third origin: second strike, SUSPICIOUS.
	rec, out = v.login("erin1234", "3.3.3.3", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("login C: %d %v", rec.Code, out)
	}
	alert, _ = out["security_alert"].(map[string]interface{})
	if alert == nil || alert["severity"] != "SUSPICIOUS" {
		t.Fatalf("login C alert = %v, want SUSPICIOUS", alert)
	}
	ev = waitEvent(t, v.events)
	if ev.SuspiciousCount != 2 || ev.Blocked {
		t.Errorf("event C = %+v", ev)
	}

	// Fourth login, fourth origin: third strike blocks the account.
	// The session limit is reached so the attempt carries force_login;
	// the anomaly check still runs and wins.
	rec, out = v.login("erin1234", "4.4.4.4", map[string]interface{}{"force_login": true})
	if rec.Code != http.StatusForbidden || errCode(out) != "ACCOUNT_BLOCKED" {
		t.Fatalf("login D: status %d code %s body %v", rec.Code, errCode(out), out)
	}
	ev = waitEvent(t, v.events)
	if !ev.Blocked || ev.SuspiciousCount != 3 {
		t.Errorf("event D = %+v", ev)
	}

	m, err := v.members.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("reload member: %v", err)
	}
	if m.SecurityStatus != model.SecurityBlocked {
		t.Errorf("status = %s, want BLOCKED", m.SecurityStatus)
	}
	if m.SuspiciousCount != 3 || m.BlockedAt == nil {
		t.Errorf("count=%d blocked_at=%v", m.SuspiciousCount, m.BlockedAt)
	}

	// No session was created for the blocked attempt. The forced
	// eviction of the oldest session still took effect.
	sessions, err := v.sessions.ListActive(context.Background(), id)
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	if len(sessions) != 2 {
		t.Errorf("live sessions = %d, want 2", len(sessions))
	}
	for _, s := range sessions {
		if s.IPAddress == "4.4.4.4" {
			t.Error("blocked attempt created a session")
		}
	}

	// Every later attempt is rejected up front, even from the
	// original origin with correct credentials. The rejection carries
	// the block details.
	rec, out = v.login("erin1234", "1.1.1.1", nil)
	if rec.Code != http.StatusForbidden || errCode(out) != "ACCOUNT_BLOCKED" {
		t.Errorf("post-block login: status %d code %s", rec.Code, errCode(out))
	}
	data := errData(out)
	if data["blocked_at"] == nil || data["reason"] == nil {
		t.Errorf("blocked payload missing details: %v", data)
	}
}

func TestAnomalyKeepsElevatedStatus(t *testing.T) {
	v := newEnv(t)
	id := v.seedMember("henry123", 1) // max 2 sessions
	status := string(model.SecuritySuspicious)
	if _, err := v.members.Update(context.Background(), id, repository.MemberUpdate{SecurityStatus: &status}); err != nil {
		t.Fatalf("set status: %v", err)
	}

	v.mustLogin("henry123", "1.1.1.1")

	// First detection for this member: the alert itself is a WARNING,
	// but the account keeps its operator-set SUSPICIOUS status and the
	// response must report the status actually on record.
	rec, out := v.login("henry123", "2.2.2.2", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("login: %d %v", rec.Code, out)
	}
	alert, _ := out["security_alert"].(map[string]interface{})
	if alert == nil || alert["severity"] != "WARNING" {
		t.Fatalf("alert = %v, want WARNING", alert)
	}
	user, _ := out["user"].(map[string]interface{})
	if user["security_status"] != "SUSPICIOUS" {
		t.Errorf("security_status = %v, want SUSPICIOUS", user["security_status"])
	}

	m, err := v.members.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("reload member: %v", err)
	}
	if m.SecurityStatus != model.SecuritySuspicious || m.SuspiciousCount != 1 {
		t.Errorf("stored: status=%s count=%d", m.SecurityStatus, m.SuspiciousCount)
	}
}

func TestLogoutAndMe(t *testing.T) {
	v := newEnv(t)
	v.seedMember("frank123", 1)
	tok := v.mustLogin("frank123", "203.0.113.7")

	rec, out := v.do(http.MethodGet, "/v1/me", tok, nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("me: %d %v", rec.Code, out)
	}
	user, _ := out["user"].(map[string]interface{})
	if user["user_id"] != "frank123" || user["membership_level"] != float64(1) {
		t.Errorf("user = %v", user)
	}
	info, _ := out["session_info"].(map[string]interface{})
	if info["max_sessions"] != float64(2) {
		t.Errorf("max_sessions = %v, want 2", info["max_sessions"])
	}

	rec, _ = v.do(http.MethodPost, "/v1/logout", tok, nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("logout: %d", rec.Code)
	}

	rec, out = v.do(http.MethodGet, "/v1/me", tok, nil, nil)
	if rec.Code != http.StatusUnauthorized || errCode(out) != "SESSION_EXPIRED" {
		t.Errorf("me after logout: status %d code %s", rec.Code, errCode(out))
	}

	rec, out = v.do(http.MethodGet, "/v1/me", "", nil, nil)
	if rec.Code != http.StatusUnauthorized || errCode(out) != "UNAUTHORIZED" {
		t.Errorf("me without token: status %d code %s", rec.Code, errCode(out))
	}
}

func TestInactiveAccountLogin(t *testing.T) {
	v := newEnv(t)
	id := v.seedMember("grace123", 0)
	inactive := false
	if _, err := v.members.Update(context.Background(), id, repository.MemberUpdate{IsActive: &inactive}); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	rec, out := v.login("grace123", "203.0.113.7", nil)
	if rec.Code != http.StatusForbidden || errCode(out) != "ACCOUNT_INACTIVE" {
		t.Errorf("status %d code %s", rec.Code, errCode(out))
	}
}
