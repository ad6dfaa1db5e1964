package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/stockpick/members-api/internal/model"
)

// LoginHistoryRepo appends audit rows for login attempts. The audit
// trail is best-effort: insert failures are logged by callers but
// never fail the request.
type LoginHistoryRepo struct {
	db *sql.DB
}

func NewLoginHistoryRepo(db *sql.DB) *LoginHistoryRepo { return &LoginHistoryRepo{db: db} }

// Insert appends one attempt. FailureReason stays NULL on success.
func (r *LoginHistoryRepo) Insert(ctx context.Context, h model.LoginHistory) error {
	var reason interface{}
	if h.FailureReason != nil {
		reason = *h.FailureReason
	}
	if h.LoginAt.IsZero() {
		h.LoginAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO login_history (member_id,ip_address,user_agent,device_type,browser,os,is_success,failure_reason,login_at)
		 VALUES (?,?,?,?,?,?,?,?,?)`,
		h.MemberID, h.IPAddress, h.UserAgent, h.DeviceType, h.Browser, h.OS,
		h.IsSuccess, reason, h.LoginAt)
	return err
}

// ListByMember returns the most recent attempts for the admin detail
// view.
func (r *LoginHistoryRepo) ListByMember(ctx context.Context, memberID uint64, limit int) ([]model.LoginHistory, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id,member_id,ip_address,user_agent,device_type,browser,os,is_success,failure_reason,login_at
		 FROM login_history WHERE member_id=? ORDER BY login_at DESC LIMIT ?`,
		memberID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.LoginHistory
	for rows.Next() {
		var h model.LoginHistory
		var reason sql.NullString
		if err := rows.Scan(&h.ID, &h.MemberID, &h.IPAddress, &h.UserAgent, &h.DeviceType,
			&h.Browser, &h.OS, &h.IsSuccess, &reason, &h.LoginAt); err != nil {
			return nil, err
		}
		if reason.Valid {
			s := reason.String
			h.FailureReason = &s
		}
		out = append(out, h)
	}
	return out, rows.Err()
}
