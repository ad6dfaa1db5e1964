package handler_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/stockpick/members-api/internal/config"
	"github.com/stockpick/members-api/internal/database"
	"github.com/stockpick/members-api/internal/handler"
	"github.com/stockpick/members-api/internal/queue"
	"github.com/stockpick/members-api/internal/repository"
	"github.com/stockpick/members-api/internal/router"
)

const (
	testPassword = "pass1!word"
	testAdminKey = "test-admin-key"
	testAgent    = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

type env struct {
	t        *testing.T
	e        *echo.Echo
	db       *sql.DB
	cfg      config.Config
	members  *repository.MemberRepo
	sessions *repository.SessionRepo
	events   chan queue.SecurityAlertEvent
}

func newEnv(t *testing.T) *env {
	t.Helper()

	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := database.Migrate(db, database.DriverSQLite); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	cfg := config.Config{
		Env:         "test",
		Port:        "0",
		DBDriver:    database.DriverSQLite,
		JWTSecret:   "test-secret",
		TokenTTLH:   24,
		BcryptCost:  bcrypt.MinCost,
		AdminAPIKey: testAdminKey,
	}

	members := repository.NewMemberRepo(db, cfg.DBDriver)
	sessions := repository.NewSessionRepo(db)
	levels := repository.NewMembershipLevelRepo(db)
	susLogs := repository.NewSuspiciousLogRepo(db)
	history := repository.NewLoginHistoryRepo(db)
	recs := repository.NewRecommendationRepo(db)
	pages := repository.NewPageRepo(db)
	referrals := repository.NewReferralSourceRepo(db)

	events := make(chan queue.SecurityAlertEvent, 16)

	authH := handler.NewAuthHandler(cfg, db, members, sessions, levels, susLogs, history, referrals)
	authH.Publish = func(_ context.Context, ev queue.SecurityAlertEvent) error {
		events <- ev
		return nil
	}
	sessionH := handler.NewSessionHandler(sessions, levels)
	recH := handler.NewRecommendationHandler(recs, pages, nil, config.FeedCacheConfig{})
	adminH := handler.NewAdminHandler(members, sessions, susLogs, history)
	healthH := handler.NewHealthHandler(db)

	e := echo.New()
	router.RegisterRoutes(e, healthH)
	router.RegisterAuth(e, authH, nil, config.RateLimitConfig{})
	router.RegisterMember(e, sessionH, recH, cfg.JWTSecret, authH)
	router.RegisterAdmin(e, adminH, cfg.AdminAPIKey)

	return &env{t: t, e: e, db: db, cfg: cfg, members: members, sessions: sessions, events: events}
}

// seedMember creates a member directly and bumps it to the given
// level, skipping the HTTP register step.
func (v *env) seedMember(userID string, level int) uint64 {
	v.t.Helper()
	referral := "search"
	id, err := v.members.Create(context.Background(), userID, testPassword, "Member "+userID, &referral, nil, bcrypt.MinCost)
	if err != nil {
		v.t.Fatalf("seed member: %v", err)
	}
	if level != 0 {
		if _, err := v.members.Update(context.Background(), id, repository.MemberUpdate{MembershipLevel: &level}); err != nil {
			v.t.Fatalf("set level: %v", err)
		}
	}
	return id
}

func (v *env) do(method, path, token string, body interface{}, headers map[string]string) (*httptest.ResponseRecorder, map[string]interface{}) {
	v.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			v.t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set("User-Agent", testAgent)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, val := range headers {
		req.Header.Set(k, val)
	}

	rec := httptest.NewRecorder()
	v.e.ServeHTTP(rec, req)

	out := map[string]interface{}{}
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			v.t.Fatalf("decode response %q: %v", rec.Body.String(), err)
		}
	}
	return rec, out
}

// login posts credentials from the given client IP. extra is merged
// into the request body for force_login / terminate_session_id.
func (v *env) login(userID, ip string, extra map[string]interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	v.t.Helper()
	body := map[string]interface{}{"user_id": userID, "password": testPassword}
	for k, val := range extra {
		body[k] = val
	}
	return v.do(http.MethodPost, "/v1/auth/login", "", body, map[string]string{"X-Forwarded-For": ip})
}

func (v *env) mustLogin(userID, ip string) string {
	v.t.Helper()
	rec, out := v.login(userID, ip, nil)
	if rec.Code != http.StatusOK {
		v.t.Fatalf("login %s from %s: status %d body %v", userID, ip, rec.Code, out)
	}
	tok, _ := out["token"].(string)
	if tok == "" {
		v.t.Fatal("login response has no token")
	}
	return tok
}

func (v *env) admin(method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	v.t.Helper()
	return v.do(method, path, "", body, map[string]string{"X-Admin-Api-Key": testAdminKey})
}

func errCode(out map[string]interface{}) string {
	errObj, _ := out["error"].(map[string]interface{})
	code, _ := errObj["code"].(string)
	return code
}

func errData(out map[string]interface{}) map[string]interface{} {
	errObj, _ := out["error"].(map[string]interface{})
	data, _ := errObj["data"].(map[string]interface{})
	return data
}

func waitEvent(t *testing.T, ch chan queue.SecurityAlertEvent) queue.SecurityAlertEvent {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no security event published")
		return queue.SecurityAlertEvent{}
	}
}
