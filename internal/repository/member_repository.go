package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/stockpick/members-api/internal/database"
	"github.com/stockpick/members-api/internal/model"
	"github.com/stockpick/members-api/internal/utils"
)

const memberColumns = `id,user_id,password_hash,name,membership_level,referral_source,referral_source_etc,
security_status,suspicious_count,last_suspicious_at,blocked_at,blocked_reason,is_active,created_at,updated_at,last_login_at`

// MemberRepo provides data access to the members table. The login
// path mutates security counters through Tx-suffixed methods so that
// the whole check-and-escalate sequence runs under one member-row
// lock.
type MemberRepo struct {
	db        *sql.DB
	forUpdate string
}

func NewMemberRepo(db *sql.DB, driver string) *MemberRepo {
	return &MemberRepo{db: db, forUpdate: database.LockSuffix(driver)}
}

func scanMember(row *sql.Row) (model.Member, error) {
	var m model.Member
	var lastSuspicious, blockedAt, lastLogin sql.NullTime
	var referral, referralEtc, blockedReason sql.NullString
	err := row.Scan(&m.ID, &m.UserID, &m.PasswordHash, &m.Name, &m.MembershipLevel,
		&referral, &referralEtc,
		&m.SecurityStatus, &m.SuspiciousCount, &lastSuspicious, &blockedAt,
		&blockedReason, &m.IsActive, &m.CreatedAt, &m.UpdatedAt, &lastLogin)
	if err != nil {
		return model.Member{}, err
	}
	if referral.Valid {
		s := referral.String
		m.ReferralSource = &s
	}
	if referralEtc.Valid {
		s := referralEtc.String
		m.ReferralSourceEtc = &s
	}
	if lastSuspicious.Valid {
		t := lastSuspicious.Time
		m.LastSuspiciousAt = &t
	}
	if blockedAt.Valid {
		t := blockedAt.Time
		m.BlockedAt = &t
	}
	if blockedReason.Valid {
		s := blockedReason.String
		m.BlockedReason = &s
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		m.LastLoginAt = &t
	}
	return m, nil
}

// Create inserts a new level-0 member and returns its ID. referralEtc
// is only meaningful alongside the "etc" referral code; the handler
// validates that pairing.
func (r *MemberRepo) Create(ctx context.Context, userID, password, name string, referral, referralEtc *string, cost int) (uint64, error) {
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO members (user_id,password_hash,name,membership_level,referral_source,referral_source_etc,security_status,is_active,created_at,updated_at)
		 VALUES (?,?,?,0,?,?,'NORMAL',1,?,?)`,
		userID, hash, name, referral, referralEtc, now, now)
	if err != nil {
		if isDuplicateKeyErr(err) {
			return 0, ErrUserIDExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByUserID fetches a member by login identifier.
func (r *MemberRepo) GetByUserID(ctx context.Context, userID string) (model.Member, error) {
	return scanMember(r.db.QueryRowContext(ctx,
		`SELECT `+memberColumns+` FROM members WHERE user_id=? LIMIT 1`, userID))
}

// GetByID fetches a member by id.
func (r *MemberRepo) GetByID(ctx context.Context, id uint64) (model.Member, error) {
	return scanMember(r.db.QueryRowContext(ctx,
		`SELECT `+memberColumns+` FROM members WHERE id=? LIMIT 1`, id))
}

// GetForUpdateTx re-reads a member inside the login transaction,
// taking a row lock on MySQL so that concurrent logins for the same
// member serialize on the concurrency check and security counters.
func (r *MemberRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (model.Member, error) {
	return scanMember(tx.QueryRowContext(ctx,
		`SELECT `+memberColumns+` FROM members WHERE id=? LIMIT 1`+r.forUpdate, id))
}

// RecordSuspicionTx bumps the suspicion counter and escalates
// security_status inside the login transaction.
func (r *MemberRepo) RecordSuspicionTx(ctx context.Context, tx *sql.Tx, id uint64, count int, status model.SecurityStatus, at time.Time) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE members SET suspicious_count=?, last_suspicious_at=?, security_status=?, updated_at=? WHERE id=?`,
		count, at, string(status), at, id)
	return err
}

// BlockTx marks the member BLOCKED with a reason. The caller commits
// the surrounding transaction even though the login itself fails, so
// the block survives the rejected attempt.
func (r *MemberRepo) BlockTx(ctx context.Context, tx *sql.Tx, id uint64, reason string, at time.Time) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE members SET security_status='BLOCKED', blocked_at=?, blocked_reason=?, updated_at=? WHERE id=?`,
		at, reason, at, id)
	return err
}

// UpdateLastLoginTx stamps last_login_at on the success path.
func (r *MemberRepo) UpdateLastLoginTx(ctx context.Context, tx *sql.Tx, id uint64, at time.Time) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE members SET last_login_at=?, updated_at=? WHERE id=?`, at, at, id)
	return err
}

// ResetSecurity returns a member to NORMAL and zeroes the suspicion
// counter. Admin-only; this is the single path that lowers
// security_status.
func (r *MemberRepo) ResetSecurity(ctx context.Context, id uint64) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx,
		`UPDATE members SET security_status='NORMAL', suspicious_count=0, blocked_at=NULL, blocked_reason=NULL, updated_at=? WHERE id=?`,
		now, id)
	return err
}

// MemberFilter narrows admin listings.
type MemberFilter struct {
	Search         string // matches user_id or name
	Level          *int
	SecurityStatus string
	Limit          int
	Offset         int
}

// List returns members for the admin surface, newest first.
func (r *MemberRepo) List(ctx context.Context, f MemberFilter) ([]model.Member, error) {
	q := `SELECT ` + memberColumns + ` FROM members WHERE 1=1`
	args := []interface{}{}
	if f.Search != "" {
		q += ` AND (user_id LIKE ? OR name LIKE ?)`
		like := "%" + f.Search + "%"
		args = append(args, like, like)
	}
	if f.Level != nil {
		q += ` AND membership_level=?`
		args = append(args, *f.Level)
	}
	if f.SecurityStatus != "" {
		q += ` AND security_status=?`
		args = append(args, f.SecurityStatus)
	}
	q += ` ORDER BY created_at DESC`
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 50
	}
	q += fmt.Sprintf(` LIMIT %d OFFSET %d`, f.Limit, f.Offset)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Member
	for rows.Next() {
		var m model.Member
		var lastSuspicious, blockedAt, lastLogin sql.NullTime
		var referral, referralEtc, blockedReason sql.NullString
		if err := rows.Scan(&m.ID, &m.UserID, &m.PasswordHash, &m.Name, &m.MembershipLevel,
			&referral, &referralEtc,
			&m.SecurityStatus, &m.SuspiciousCount, &lastSuspicious, &blockedAt,
			&blockedReason, &m.IsActive, &m.CreatedAt, &m.UpdatedAt, &lastLogin); err != nil {
			return nil, err
		}
		if referral.Valid {
			s := referral.String
			m.ReferralSource = &s
		}
		if referralEtc.Valid {
			s := referralEtc.String
			m.ReferralSourceEtc = &s
		}
		if lastSuspicious.Valid {
			t := lastSuspicious.Time
			m.LastSuspiciousAt = &t
		}
		if blockedAt.Valid {
			t := blockedAt.Time
			m.BlockedAt = &t
		}
		if blockedReason.Valid {
			s := blockedReason.String
			m.BlockedReason = &s
		}
		if lastLogin.Valid {
			t := lastLogin.Time
			m.LastLoginAt = &t
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// MemberUpdate carries the optional admin edits. Nil fields are left
// untouched.
type MemberUpdate struct {
	Name            *string
	MembershipLevel *int
	IsActive        *bool
	SecurityStatus  *string
}

// Update applies an admin edit and reports whether any field changed.
func (r *MemberRepo) Update(ctx context.Context, id uint64, u MemberUpdate) (bool, error) {
	sets := []string{}
	args := []interface{}{}
	if u.Name != nil {
		sets = append(sets, "name=?")
		args = append(args, *u.Name)
	}
	if u.MembershipLevel != nil {
		sets = append(sets, "membership_level=?")
		args = append(args, *u.MembershipLevel)
	}
	if u.IsActive != nil {
		sets = append(sets, "is_active=?")
		args = append(args, *u.IsActive)
	}
	if u.SecurityStatus != nil {
		sets = append(sets, "security_status=?")
		args = append(args, *u.SecurityStatus)
		if *u.SecurityStatus == string(model.SecurityBlocked) {
			sets = append(sets, "blocked_at=?")
			args = append(args, time.Now().UTC())
		}
	}
	if len(sets) == 0 {
		return false, nil
	}
	sets = append(sets, "updated_at=?")
	args = append(args, time.Now().UTC(), id)
	_, err := r.db.ExecContext(ctx,
		`UPDATE members SET `+strings.Join(sets, ", ")+` WHERE id=?`, args...)
	if err != nil {
		return false, err
	}
	return true, nil
}

func isDuplicateKeyErr(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "1062") || strings.Contains(msg, "unique")
}
