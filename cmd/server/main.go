package main // Entry point package

import (
	"database/sql"
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/stockpick/members-api/internal/config"
	"github.com/stockpick/members-api/internal/database"
	"github.com/stockpick/members-api/internal/handler"
	"github.com/stockpick/members-api/internal/queue"
	"github.com/stockpick/members-api/internal/repository"
	"github.com/stockpick/members-api/internal/router"
)

func main() {
	// .env is optional; real deployments inject variables directly.
	_ = godotenv.Load()

	cfg := config.Load()

	db := mustOpenDB(cfg)
	defer db.Close()

	if err := database.Migrate(db, cfg.DBDriver); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	// Redis is optional: a nil client disables rate limiting and the
	// feed cache but the API keeps serving.
	rdb := config.NewRedisClient()

	members := repository.NewMemberRepo(db, cfg.DBDriver)
	sessions := repository.NewSessionRepo(db)
	levels := repository.NewMembershipLevelRepo(db)
	susLogs := repository.NewSuspiciousLogRepo(db)
	history := repository.NewLoginHistoryRepo(db)
	recs := repository.NewRecommendationRepo(db)
	pages := repository.NewPageRepo(db)
	referrals := repository.NewReferralSourceRepo(db)

	authH := handler.NewAuthHandler(cfg, db, members, sessions, levels, susLogs, history, referrals)
	sessionH := handler.NewSessionHandler(sessions, levels)
	recH := handler.NewRecommendationHandler(recs, pages, rdb, config.LoadFeedCacheConfig())
	adminH := handler.NewAdminHandler(members, sessions, susLogs, history)
	healthH := handler.NewHealthHandler(db)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.Logger())

	router.RegisterRoutes(e, healthH)
	router.RegisterAuth(e, authH, rdb, config.LoadRateLimitConfig())
	router.RegisterMember(e, sessionH, recH, cfg.JWTSecret, authH)
	router.RegisterAdmin(e, adminH, cfg.AdminAPIKey)

	// Security alerts published during login land in a durable queue;
	// the consumer drains them into an audit log on disk.
	go queue.StartSecurityConsumer()

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s, db=%s)", addr, cfg.Env, cfg.DBDriver)

	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}

func mustOpenDB(cfg config.Config) *sql.DB {
	if cfg.DBDriver == database.DriverSQLite {
		db, err := database.OpenSQLite(cfg.DBPath)
		if err != nil {
			log.Fatalf("open sqlite: %v", err)
		}
		return db
	}
	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("open mysql: %v", err)
	}
	return db
}
