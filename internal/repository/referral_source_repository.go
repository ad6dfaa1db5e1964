package repository

import (
	"context"
	"database/sql"

	"github.com/stockpick/members-api/internal/model"
)

// ReferralSourceRepo reads the registration referral lookup. The rows
// are seeded at migration time and only edited out of band.
type ReferralSourceRepo struct {
	db *sql.DB
}

func NewReferralSourceRepo(db *sql.DB) *ReferralSourceRepo {
	return &ReferralSourceRepo{db: db}
}

// ListActive returns the selectable referral sources in display order.
func (r *ReferralSourceRepo) ListActive(ctx context.Context) ([]model.ReferralSource, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, code, name, sort_order, is_active FROM referral_sources
		 WHERE is_active=1 ORDER BY sort_order ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ReferralSource
	for rows.Next() {
		var s model.ReferralSource
		if err := rows.Scan(&s.ID, &s.Code, &s.Name, &s.SortOrder, &s.IsActive); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Exists reports whether code names a selectable referral source.
func (r *ReferralSourceRepo) Exists(ctx context.Context, code string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		`SELECT 1 FROM referral_sources WHERE code=? AND is_active=1 LIMIT 1`, code).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
