package handler_test

import (
	"net/http"
	"testing"
	"time"
)

func seedRecommendation(v *env, feed, code string, minLevel int) {
	v.t.Helper()
	_, err := v.db.Exec(
		`INSERT INTO recommendations (feed,stock_code,stock_name,title,body,min_level,is_active,published_at)
		 VALUES (?,?,?,?,?,?,1,?)`,
		feed, code, "Stock "+code, "Pick "+code, "commentary", minLevel, time.Now().UTC())
	if err != nil {
		v.t.Fatalf("seed recommendation: %v", err)
	}
}

func seedPage(v *env, path string, level int) {
	v.t.Helper()
	if _, err := v.db.Exec(
		`INSERT INTO pages (path,required_level,is_active) VALUES (?,?,1)`, path, level); err != nil {
		v.t.Fatalf("seed page: %v", err)
	}
}

func TestTodayFeedGating(t *testing.T) {
	v := newEnv(t)
	seedRecommendation(v, "TODAY", "005930", 1)
	seedRecommendation(v, "TODAY", "000660", 2)
	seedRecommendation(v, "LONG_TERM", "035420", 1)

	v.seedMember("freeuser", 0)
	freeTok := v.mustLogin("freeuser", "203.0.113.7")

	rec, out := v.do(http.MethodGet, "/v1/recommendations/today", freeTok, nil, nil)
	if rec.Code != http.StatusForbidden || errCode(out) != "UPGRADE_REQUIRED" {
		t.Errorf("free member: status %d code %s", rec.Code, errCode(out))
	}
	data := errData(out)
	if data["required_level"] != float64(1) || data["current_level"] != float64(0) {
		t.Errorf("gate data = %v", data)
	}

	v.seedMember("basicusr", 1)
	basicTok := v.mustLogin("basicusr", "203.0.113.8")

	rec, out = v.do(http.MethodGet, "/v1/recommendations/today", basicTok, nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("basic member: status %d body %v", rec.Code, out)
	}
	if out["feed"] != "TODAY" {
		t.Errorf("feed = %v", out["feed"])
	}
	// Level 1 sees only the level-1 pick; the level-2 pick and the
	// other feed stay hidden.
	list, _ := out["recommendations"].([]interface{})
	if len(list) != 1 {
		t.Fatalf("recommendations len = %d, want 1", len(list))
	}
	pick := list[0].(map[string]interface{})
	if pick["stock_code"] != "005930" {
		t.Errorf("stock_code = %v", pick["stock_code"])
	}
}

func TestLongTermFeedGating(t *testing.T) {
	v := newEnv(t)
	seedRecommendation(v, "LONG_TERM", "035420", 3)

	v.seedMember("basicusr", 1)
	basicTok := v.mustLogin("basicusr", "203.0.113.7")

	rec, out := v.do(http.MethodGet, "/v1/recommendations/long-term", basicTok, nil, nil)
	if rec.Code != http.StatusForbidden || errCode(out) != "UPGRADE_REQUIRED" {
		t.Errorf("level 1: status %d code %s", rec.Code, errCode(out))
	}

	v.seedMember("plususer", 3)
	plusTok := v.mustLogin("plususer", "203.0.113.8")

	rec, out = v.do(http.MethodGet, "/v1/recommendations/long-term", plusTok, nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("level 3: status %d body %v", rec.Code, out)
	}
	list, _ := out["recommendations"].([]interface{})
	if len(list) != 1 {
		t.Errorf("recommendations len = %d, want 1", len(list))
	}
}

func TestFeedGateFromPagesTable(t *testing.T) {
	v := newEnv(t)
	// Raise the today floor above its default via the pages table.
	seedPage(v, "/today", 4)
	seedRecommendation(v, "TODAY", "005930", 1)

	v.seedMember("plususer", 3)
	tok := v.mustLogin("plususer", "203.0.113.7")

	rec, out := v.do(http.MethodGet, "/v1/recommendations/today", tok, nil, nil)
	if rec.Code != http.StatusForbidden || errCode(out) != "UPGRADE_REQUIRED" {
		t.Errorf("status %d code %s", rec.Code, errCode(out))
	}
	if errData(out)["required_level"] != float64(4) {
		t.Errorf("required_level = %v, want 4", errData(out)["required_level"])
	}
}

func TestPageAccessCheck(t *testing.T) {
	v := newEnv(t)
	seedPage(v, "/premium-report", 4)

	v.seedMember("plususer", 3)
	tok := v.mustLogin("plususer", "203.0.113.7")

	rec, out := v.do(http.MethodPost, "/v1/pages/access", tok, map[string]interface{}{
		"path": "/premium-report",
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d body %v", rec.Code, out)
	}
	if out["allowed"] != false || out["required_level"] != float64(4) {
		t.Errorf("gated page = %v", out)
	}

	rec, out = v.do(http.MethodPost, "/v1/pages/access", tok, map[string]interface{}{
		"path": "/free-article",
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d body %v", rec.Code, out)
	}
	if out["allowed"] != true {
		t.Errorf("unregistered page should be open: %v", out)
	}

	rec, out = v.do(http.MethodPost, "/v1/pages/access", tok, map[string]interface{}{}, nil)
	if rec.Code != http.StatusBadRequest || errCode(out) != "MISSING_FIELDS" {
		t.Errorf("missing path: status %d code %s", rec.Code, errCode(out))
	}
}
