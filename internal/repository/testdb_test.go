package repository

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/stockpick/members-api/internal/database"
	"github.com/stockpick/members-api/internal/model"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := database.Migrate(db, database.DriverSQLite); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func seedMember(t *testing.T, db *sql.DB, userID string) uint64 {
	t.Helper()
	repo := NewMemberRepo(db, database.DriverSQLite)
	id, err := repo.Create(context.Background(), userID, "pass1!word", "Test Member", nil, nil, bcrypt.MinCost)
	if err != nil {
		t.Fatalf("seed member %s: %v", userID, err)
	}
	return id
}

func testSession(memberID uint64, token, ip string, loginAt time.Time) model.ActiveSession {
	return model.ActiveSession{
		MemberID:       memberID,
		SessionToken:   token,
		ExpiresAt:      loginAt.Add(24 * time.Hour),
		IPAddress:      ip,
		DeviceType:     "PC",
		Browser:        "Chrome",
		BrowserVersion: "120",
		OS:             "Windows",
		OSVersion:      "10",
		LoginAt:        loginAt,
		LastActivityAt: loginAt,
	}
}

func insertSession(t *testing.T, db *sql.DB, repo *SessionRepo, s model.ActiveSession) uint64 {
	t.Helper()
	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := repo.CreateTx(context.Background(), tx, &s); err != nil {
		tx.Rollback()
		t.Fatalf("create session: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	return s.ID
}
