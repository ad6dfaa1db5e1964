package repository

import (
	"context"
	"database/sql"

	"github.com/stockpick/members-api/internal/model"
)

// RecommendationRepo reads the pick feeds pushed into the shared
// database by the external publishing application. This service only
// filters by feed and membership level; it never writes these rows.
type RecommendationRepo struct {
	db *sql.DB
}

func NewRecommendationRepo(db *sql.DB) *RecommendationRepo {
	return &RecommendationRepo{db: db}
}

// ListFeed returns active picks of a feed visible to the given level,
// newest first.
func (r *RecommendationRepo) ListFeed(ctx context.Context, feed string, level int) ([]model.Recommendation, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id,feed,stock_code,stock_name,title,body,min_level,is_active,published_at
		 FROM recommendations
		 WHERE feed=? AND is_active=1 AND min_level<=?
		 ORDER BY published_at DESC`,
		feed, level)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Recommendation
	for rows.Next() {
		var rec model.Recommendation
		var body sql.NullString
		if err := rows.Scan(&rec.ID, &rec.Feed, &rec.StockCode, &rec.StockName, &rec.Title,
			&body, &rec.MinLevel, &rec.IsActive, &rec.PublishedAt); err != nil {
			return nil, err
		}
		rec.Body = body.String
		out = append(out, rec)
	}
	return out, rows.Err()
}

// PageRepo reads the path -> required_level gate table.
type PageRepo struct {
	db *sql.DB
}

func NewPageRepo(db *sql.DB) *PageRepo { return &PageRepo{db: db} }

// GetByPath resolves a gated page. ErrNotFound means the path is not
// registered, which callers treat as open access.
func (r *PageRepo) GetByPath(ctx context.Context, path string) (model.Page, error) {
	var p model.Page
	err := r.db.QueryRowContext(ctx,
		`SELECT id,path,required_level,is_active FROM pages WHERE path=? AND is_active=1 LIMIT 1`,
		path).Scan(&p.ID, &p.Path, &p.RequiredLevel, &p.IsActive)
	if err == sql.ErrNoRows {
		return model.Page{}, ErrNotFound
	}
	if err != nil {
		return model.Page{}, err
	}
	return p, nil
}
