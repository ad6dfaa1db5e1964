package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/stockpick/members-api/internal/model"
)

const suspiciousColumns = `id,member_id,detection_type,severity,current_ip,previous_ip,user_agent,
device_type,detected_at,is_resolved,resolved_at,resolution_type,resolution_note`

// SuspiciousLogRepo provides data access to suspicious_access_logs.
// Inserts happen only inside the login transaction; resolution is an
// admin-only mutation.
type SuspiciousLogRepo struct {
	db *sql.DB
}

func NewSuspiciousLogRepo(db *sql.DB) *SuspiciousLogRepo { return &SuspiciousLogRepo{db: db} }

// InsertTx writes a detection row inside the login transaction and
// fills in the generated ID. The login fails closed when this insert
// fails: the caller must roll back rather than skip the check.
func (r *SuspiciousLogRepo) InsertTx(ctx context.Context, tx *sql.Tx, l *model.SuspiciousAccessLog) error {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO suspicious_access_logs (member_id,detection_type,severity,current_ip,previous_ip,user_agent,device_type,detected_at,is_resolved)
		 VALUES (?,?,?,?,?,?,?,?,0)`,
		l.MemberID, l.DetectionType, string(l.Severity), l.CurrentIP, l.PreviousIP,
		l.UserAgent, l.DeviceType, l.DetectedAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	l.ID = uint64(id)
	return nil
}

func scanSuspiciousRows(rows *sql.Rows) ([]model.SuspiciousAccessLog, error) {
	var out []model.SuspiciousAccessLog
	for rows.Next() {
		var l model.SuspiciousAccessLog
		var resolvedAt sql.NullTime
		var rtype, rnote sql.NullString
		if err := rows.Scan(&l.ID, &l.MemberID, &l.DetectionType, &l.Severity, &l.CurrentIP,
			&l.PreviousIP, &l.UserAgent, &l.DeviceType, &l.DetectedAt,
			&l.IsResolved, &resolvedAt, &rtype, &rnote); err != nil {
			return nil, err
		}
		if resolvedAt.Valid {
			t := resolvedAt.Time
			l.ResolvedAt = &t
		}
		if rtype.Valid {
			s := rtype.String
			l.ResolutionType = &s
		}
		if rnote.Valid {
			s := rnote.String
			l.ResolutionNote = &s
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// SuspiciousLogFilter narrows the admin listing.
type SuspiciousLogFilter struct {
	MemberID       uint64
	UnresolvedOnly bool
	Limit          int
	Offset         int
}

// List returns detection rows for the admin surface, newest first.
func (r *SuspiciousLogRepo) List(ctx context.Context, f SuspiciousLogFilter) ([]model.SuspiciousAccessLog, error) {
	q := `SELECT ` + suspiciousColumns + ` FROM suspicious_access_logs WHERE 1=1`
	args := []interface{}{}
	if f.MemberID != 0 {
		q += ` AND member_id=?`
		args = append(args, f.MemberID)
	}
	if f.UnresolvedOnly {
		q += ` AND is_resolved=0`
	}
	q += ` ORDER BY detected_at DESC`
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
	return scanSuspiciousRows(rows)
}

// Resolve marks a log handled and returns the owning member id so the
// caller can decide whether the member's security status may relax.
func (r *SuspiciousLogRepo) Resolve(ctx context.Context, id uint64, resolutionType, note string) (uint64, error) {
	var memberID uint64
	err := r.db.QueryRowContext(ctx,
		`SELECT member_id FROM suspicious_access_logs WHERE id=? LIMIT 1`, id).Scan(&memberID)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	_, err = r.db.ExecContext(ctx,
		`UPDATE suspicious_access_logs SET is_resolved=1, resolved_at=?, resolution_type=?, resolution_note=? WHERE id=?`,
		time.Now().UTC(), resolutionType, note, id)
	if err != nil {
		return 0, err
	}
	return memberID, nil
}

// CountUnresolved reports how many detections remain open for a
// member.
func (r *SuspiciousLogRepo) CountUnresolved(ctx context.Context, memberID uint64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM suspicious_access_logs WHERE member_id=? AND is_resolved=0`,
		memberID).Scan(&n)
	return n, err
}
