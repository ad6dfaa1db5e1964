package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/stockpick/members-api/internal/model"
)

const sessionColumns = `id,member_id,session_token,expires_at,ip_address,device_type,browser,
browser_version,os,os_version,is_active,login_at,last_activity_at,logout_at`

// SessionRepo provides data access to the active_sessions table.
// Termination never deletes: rows are flipped inactive and stamped
// with logout_at so the audit trail survives. Methods with a Tx
// suffix participate in the login transaction; the caller owns commit
// and rollback.
type SessionRepo struct {
	db *sql.DB
}

func NewSessionRepo(db *sql.DB) *SessionRepo { return &SessionRepo{db: db} }

// CountActiveTx counts live sessions for the member inside the login
// transaction. Only rows that are flagged active AND unexpired count
// toward the concurrency limit.
func (r *SessionRepo) CountActiveTx(ctx context.Context, tx *sql.Tx, memberID uint64, now time.Time) (int, error) {
	var n int
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM active_sessions WHERE member_id=? AND is_active=1 AND expires_at>?`,
		memberID, now).Scan(&n)
	return n, err
}

// CreateTx inserts the new session row inside the login transaction
// and fills in the generated ID.
func (r *SessionRepo) CreateTx(ctx context.Context, tx *sql.Tx, s *model.ActiveSession) error {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO active_sessions (member_id,session_token,expires_at,ip_address,device_type,browser,browser_version,os,os_version,is_active,login_at,last_activity_at)
		 VALUES (?,?,?,?,?,?,?,?,?,1,?,?)`,
		s.MemberID, s.SessionToken, s.ExpiresAt, s.IPAddress, s.DeviceType,
		s.Browser, s.BrowserVersion, s.OS, s.OSVersion, s.LoginAt, s.LastActivityAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = uint64(id)
	return nil
}

// TerminateOldestTx evicts the session with the smallest login_at
// among the member's live sessions. Two statements, but both run
// under the member-row lock held by the login transaction.
func (r *SessionRepo) TerminateOldestTx(ctx context.Context, tx *sql.Tx, memberID uint64, now time.Time) error {
	var id uint64
	err := tx.QueryRowContext(ctx,
		`SELECT id FROM active_sessions WHERE member_id=? AND is_active=1 AND expires_at>?
		 ORDER BY login_at ASC LIMIT 1`,
		memberID, now).Scan(&id)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE active_sessions SET is_active=0, logout_at=? WHERE id=?`, now, id)
	return err
}

// TerminateByIDTx evicts one named session inside the login
// transaction. The member_id predicate enforces ownership; a session
// belonging to someone else reads as not found.
func (r *SessionRepo) TerminateByIDTx(ctx context.Context, tx *sql.Tx, memberID, sessionID uint64, now time.Time) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE active_sessions SET is_active=0, logout_at=? WHERE id=? AND member_id=? AND is_active=1`,
		now, sessionID, memberID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// TerminateByID is the standalone variant used by the session
// lifecycle endpoint and the admin surface. A zero memberID skips the
// ownership check; only the admin handler passes zero.
func (r *SessionRepo) TerminateByID(ctx context.Context, memberID, sessionID uint64) error {
	now := time.Now().UTC()
	q := `UPDATE active_sessions SET is_active=0, logout_at=? WHERE id=? AND is_active=1`
	args := []interface{}{now, sessionID}
	if memberID != 0 {
		q += ` AND member_id=?`
		args = append(args, memberID)
	}
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// TerminateOthers flips every live session of the member except the
// caller's own, in a single statement, and returns how many were
// terminated.
func (r *SessionRepo) TerminateOthers(ctx context.Context, memberID uint64, exceptToken string) (int64, error) {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		`UPDATE active_sessions SET is_active=0, logout_at=? WHERE member_id=? AND is_active=1 AND session_token<>?`,
		now, memberID, exceptToken)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// TerminateByToken ends the caller's own session (logout).
func (r *SessionRepo) TerminateByToken(ctx context.Context, token string) error {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		`UPDATE active_sessions SET is_active=0, logout_at=? WHERE session_token=? AND is_active=1`,
		now, token)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// TerminateAllForMember ends every live session of a member. Used by
// the admin surface when an account is blocked or deactivated.
func (r *SessionRepo) TerminateAllForMember(ctx context.Context, memberID uint64) (int64, error) {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		`UPDATE active_sessions SET is_active=0, logout_at=? WHERE member_id=? AND is_active=1`,
		now, memberID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// FindOtherOriginTx looks for another live, unexpired session of the
// member whose IP differs from the current request. It returns the
// previous origin when one exists; this is the differing-origin
// anomaly predicate.
func (r *SessionRepo) FindOtherOriginTx(ctx context.Context, tx *sql.Tx, memberID uint64, currentIP string, now time.Time) (string, bool, error) {
	var prev string
	err := tx.QueryRowContext(ctx,
		`SELECT ip_address FROM active_sessions
		 WHERE member_id=? AND is_active=1 AND ip_address<>? AND expires_at>? LIMIT 1`,
		memberID, currentIP, now).Scan(&prev)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return prev, true, nil
}

func scanSessions(rows *sql.Rows) ([]model.ActiveSession, error) {
	var out []model.ActiveSession
	for rows.Next() {
		var s model.ActiveSession
		var logoutAt sql.NullTime
		if err := rows.Scan(&s.ID, &s.MemberID, &s.SessionToken, &s.ExpiresAt, &s.IPAddress,
			&s.DeviceType, &s.Browser, &s.BrowserVersion, &s.OS, &s.OSVersion,
			&s.IsActive, &s.LoginAt, &s.LastActivityAt, &logoutAt); err != nil {
			return nil, err
		}
		if logoutAt.Valid {
			t := logoutAt.Time
			s.LogoutAt = &t
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ListActive returns the member's live, unexpired sessions ordered by
// creation ascending.
func (r *SessionRepo) ListActive(ctx context.Context, memberID uint64) ([]model.ActiveSession, error) {
	now := time.Now().UTC()
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM active_sessions
		 WHERE member_id=? AND is_active=1 AND expires_at>? ORDER BY login_at ASC`,
		memberID, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSessions(rows)
}

// ListActiveTx is ListActive inside the login transaction, used to
// build the 409 choice list while the member row is still locked.
func (r *SessionRepo) ListActiveTx(ctx context.Context, tx *sql.Tx, memberID uint64, now time.Time) ([]model.ActiveSession, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM active_sessions
		 WHERE member_id=? AND is_active=1 AND expires_at>? ORDER BY login_at ASC`,
		memberID, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSessions(rows)
}

// GetActiveByToken resolves a bearer token's embedded session token to
// a live, unexpired row. ErrSessionNotFound means the session was
// revoked or expired and the bearer token must stop working even
// though its signature is still valid.
func (r *SessionRepo) GetActiveByToken(ctx context.Context, token string) (model.ActiveSession, error) {
	now := time.Now().UTC()
	var s model.ActiveSession
	var logoutAt sql.NullTime
	err := r.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM active_sessions
		 WHERE session_token=? AND is_active=1 AND expires_at>? LIMIT 1`,
		token, now).Scan(&s.ID, &s.MemberID, &s.SessionToken, &s.ExpiresAt, &s.IPAddress,
		&s.DeviceType, &s.Browser, &s.BrowserVersion, &s.OS, &s.OSVersion,
		&s.IsActive, &s.LoginAt, &s.LastActivityAt, &logoutAt)
	if err == sql.ErrNoRows {
		return model.ActiveSession{}, ErrSessionNotFound
	}
	if err != nil {
		return model.ActiveSession{}, err
	}
	if logoutAt.Valid {
		t := logoutAt.Time
		s.LogoutAt = &t
	}
	return s, nil
}

// TouchActivity refreshes last_activity_at. Best-effort; callers may
// ignore the error.
func (r *SessionRepo) TouchActivity(ctx context.Context, id uint64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE active_sessions SET last_activity_at=? WHERE id=?`, time.Now().UTC(), id)
	return err
}

// SessionFilter narrows the admin session listing.
type SessionFilter struct {
	MemberID   uint64
	ActiveOnly bool
	Limit      int
	Offset     int
}

// List returns sessions for the admin surface, newest first.
func (r *SessionRepo) List(ctx context.Context, f SessionFilter) ([]model.ActiveSession, error) {
	q := `SELECT ` + sessionColumns + ` FROM active_sessions WHERE 1=1`
	args := []interface{}{}
	if f.MemberID != 0 {
		q += ` AND member_id=?`
		args = append(args, f.MemberID)
	}
	if f.ActiveOnly {
		q += ` AND is_active=1 AND expires_at>?`
		args = append(args, time.Now().UTC())
	}
	q += ` ORDER BY login_at DESC`
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 50
	}
	q += ` LIMIT ? OFFSET ?`
	args = append(args, f.Limit, f.Offset)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSessions(rows)
}
