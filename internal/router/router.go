package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/stockpick/members-api/internal/config"
	"github.com/stockpick/members-api/internal/handler"
	"github.com/stockpick/members-api/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication
// on the provided Echo instance. Currently it exposes only a health
// check, used by load balancers to verify the service is up.
func RegisterRoutes(e *echo.Echo, h *handler.HealthHandler) {
	e.GET("/healthz", h.Check)
}

// RegisterAuth registers the credential endpoints and the
// authenticated profile routes. Register and login sit behind the
// Redis rate limiter; the limiter fails open when Redis is absent so
// the endpoints stay reachable in degraded mode.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, rdb *redis.Client, rlCfg config.RateLimitConfig) {
	g := e.Group("/v1/auth", middleware.RateLimit(rlCfg, rdb))
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.GET("/referral-sources", a.ReferralSources)

	// Protected endpoints carry a bearer token whose session row must
	// still be live. Logout lives here too: ending a session requires
	// proving you hold it.
	auth := e.Group("/v1", middleware.Auth(a.Cfg.JWTSecret, a.Sessions))
	auth.GET("/me", a.Me)
	auth.POST("/logout", a.Logout)
}

// RegisterMember registers member-scoped session management and the
// level-gated content endpoints under /v1.
func RegisterMember(e *echo.Echo, s *handler.SessionHandler, r *handler.RecommendationHandler,
	jwtSecret string, a *handler.AuthHandler) {
	g := e.Group("/v1", middleware.Auth(jwtSecret, a.Sessions))

	g.GET("/sessions", s.List)
	g.DELETE("/sessions/:id", s.TerminateOne)
	g.DELETE("/sessions", s.TerminateOthers)

	g.GET("/recommendations/today", r.Today)
	g.GET("/recommendations/long-term", r.LongTerm)
	g.POST("/pages/access", r.CheckAccess)
}

// RegisterAdmin registers the operator surface under /v1/admin. These
// routes are guarded by a shared API key rather than member tokens;
// the key is issued out of band to the operations desk.
func RegisterAdmin(e *echo.Echo, h *handler.AdminHandler, apiKey string) {
	g := e.Group("/v1/admin", middleware.AdminKey(apiKey))

	g.GET("/members", h.ListMembers)
	g.GET("/members/:id", h.GetMember)
	g.PATCH("/members/:id", h.UpdateMember)

	g.GET("/sessions", h.ListSessions)
	g.DELETE("/sessions/:id", h.TerminateSession)

	g.GET("/suspicious-logs", h.ListSuspiciousLogs)
	g.POST("/suspicious-logs/:id/resolve", h.ResolveLog)
}
