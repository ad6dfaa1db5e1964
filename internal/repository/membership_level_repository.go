package repository

import (
	"context"
	"database/sql"

	"github.com/stockpick/members-api/internal/model"
)

// MembershipLevelRepo reads the static level -> max_sessions lookup.
// The mapping is loaded at authorization time on every login so that
// admin edits take effect without a restart.
type MembershipLevelRepo struct {
	db *sql.DB
}

func NewMembershipLevelRepo(db *sql.DB) *MembershipLevelRepo {
	return &MembershipLevelRepo{db: db}
}

// MaxSessions returns the concurrency ceiling for a level. Unknown
// levels fall back to 1, the most restrictive tier.
func (r *MembershipLevelRepo) MaxSessions(ctx context.Context, level int) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT max_sessions FROM membership_levels WHERE level=? LIMIT 1`, level).Scan(&n)
	if err == sql.ErrNoRows {
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	return n, nil
}

// List returns all tiers, lowest first.
func (r *MembershipLevelRepo) List(ctx context.Context) ([]model.MembershipLevel, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT level,name,max_sessions FROM membership_levels ORDER BY level ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.MembershipLevel
	for rows.Next() {
		var l model.MembershipLevel
		if err := rows.Scan(&l.Level, &l.Name, &l.MaxSessions); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
