package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/stockpick/members-api/internal/config"
	"github.com/stockpick/members-api/internal/middleware"
	"github.com/stockpick/members-api/internal/model"
	"github.com/stockpick/members-api/internal/repository"
)

// Default level floors for feeds whose path is not registered in the
// pages table. The long-term feed is reserved for the upper tiers.
const (
	defaultTodayLevel    = 1
	defaultLongTermLevel = 3
)

// RecommendationHandler serves the level-gated stock pick feeds and
// the generic page access check. Feed responses are cached in Redis
// per feed and level; a nil client disables caching.
type RecommendationHandler struct {
	Recs     *repository.RecommendationRepo
	Pages    *repository.PageRepo
	Redis    *redis.Client
	CacheCfg config.FeedCacheConfig
}

func NewRecommendationHandler(r *repository.RecommendationRepo, p *repository.PageRepo, rdb *redis.Client, cfg config.FeedCacheConfig) *RecommendationHandler {
	return &RecommendationHandler{Recs: r, Pages: p, Redis: rdb, CacheCfg: cfg}
}

type recommendationPart struct {
	ID          uint64 `json:"id"`
	StockCode   string `json:"stock_code"`
	StockName   string `json:"stock_name"`
	Title       string `json:"title"`
	Body        string `json:"body"`
	PublishedAt string `json:"published_at"`
}

// Today serves the daily feed to members at or above its level floor.
func (h *RecommendationHandler) Today(c echo.Context) error {
	return h.serveFeed(c, model.FeedToday, "/today", defaultTodayLevel)
}

// LongTerm serves the long-hold feed, reserved for the upper tiers.
func (h *RecommendationHandler) LongTerm(c echo.Context) error {
	return h.serveFeed(c, model.FeedLongTerm, "/long-term", defaultLongTermLevel)
}

func (h *RecommendationHandler) serveFeed(c echo.Context, feed, path string, defaultLevel int) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	level := middleware.Level(c)

	required, err := h.requiredLevel(ctx, path, defaultLevel)
	if err != nil {
		c.Logger().Errorf("feed %s: page lookup: %v", feed, err)
		return jsonError(c, http.StatusInternalServerError, "SERVER_ERROR", "feed lookup failed")
	}
	if level < required {
		return jsonErrorData(c, http.StatusForbidden, "UPGRADE_REQUIRED",
			"membership level too low for this feed", echo.Map{
				"required_level": required,
				"current_level":  level,
			})
	}

	cacheKey := fmt.Sprintf("%s:%s:%d", h.CacheCfg.Prefix, feed, level)
	if body, ok := h.cacheGet(ctx, cacheKey); ok {
		return c.JSONBlob(http.StatusOK, body)
	}

	recs, err := h.Recs.ListFeed(ctx, feed, level)
	if err != nil {
		c.Logger().Errorf("feed %s: %v", feed, err)
		return jsonError(c, http.StatusInternalServerError, "SERVER_ERROR", "feed lookup failed")
	}

	parts := make([]recommendationPart, 0, len(recs))
	for _, r := range recs {
		parts = append(parts, recommendationPart{
			ID:          r.ID,
			StockCode:   r.StockCode,
			StockName:   r.StockName,
			Title:       r.Title,
			Body:        r.Body,
			PublishedAt: r.PublishedAt.UTC().Format(time.RFC3339),
		})
	}

	resp := echo.Map{"feed": feed, "recommendations": parts}
	if body, err := json.Marshal(resp); err == nil {
		h.cacheSet(ctx, cacheKey, body)
		return c.JSONBlob(http.StatusOK, body)
	}
	return c.JSON(http.StatusOK, resp)
}

type pageAccessReq struct {
	Path string `json:"path"`
}

// CheckAccess answers whether the caller may view a content path. The
// site front end calls this before rendering gated pages. Paths not
// registered in the pages table are open to any logged-in member.
func (h *RecommendationHandler) CheckAccess(c echo.Context) error {
	var req pageAccessReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Path) == "" {
		return jsonError(c, http.StatusBadRequest, "MISSING_FIELDS", "path is required")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	level := middleware.Level(c)
	required, err := h.requiredLevel(ctx, strings.TrimSpace(req.Path), 0)
	if err != nil {
		c.Logger().Errorf("page access: %v", err)
		return jsonError(c, http.StatusInternalServerError, "SERVER_ERROR", "access check failed")
	}

	return c.JSON(http.StatusOK, echo.Map{
		"path":           req.Path,
		"allowed":        level >= required,
		"required_level": required,
		"current_level":  level,
	})
}

// requiredLevel resolves the level floor for a path. Unregistered or
// disabled pages fall back to the given default.
func (h *RecommendationHandler) requiredLevel(ctx context.Context, path string, def int) (int, error) {
	p, err := h.Pages.GetByPath(ctx, path)
	if err == repository.ErrNotFound {
		return def, nil
	}
	if err != nil {
		return 0, err
	}
	if !p.IsActive {
		return def, nil
	}
	return p.RequiredLevel, nil
}

func (h *RecommendationHandler) cacheGet(ctx context.Context, key string) ([]byte, bool) {
	if h.Redis == nil || !h.CacheCfg.Enabled {
		return nil, false
	}
	body, err := h.Redis.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	return body, true
}

func (h *RecommendationHandler) cacheSet(ctx context.Context, key string, body []byte) {
	if h.Redis == nil || !h.CacheCfg.Enabled {
		return
	}
	// Cache misses on failure; the next request rebuilds the entry.
	_ = h.Redis.Set(ctx, key, body, h.CacheCfg.TTL).Err()
}
