package main

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/hostel-management/internal/audit"
	"github.com/iliyamo/hostel-management/internal/config"
	"github.com/iliyamo/hostel-management/internal/database"
	"github.com/iliyamo/hostel-management/internal/handler"
	"github.com/iliyamo/hostel-management/internal/notify"
	"github.com/iliyamo/hostel-management/internal/queue"
	"github.com/iliyamo/hostel-management/internal/ratelimit"
	"github.com/iliyamo/hostel-management/internal/repository"
	"github.com/iliyamo/hostel-management/internal/router"
	"github.com/iliyamo/hostel-management/internal/service"
)

func main() {
	// .env is a dev convenience; real deployments set the environment.
	_ = godotenv.Load()

	cfg := config.Load()
	rlCfg := config.LoadRateLimitConfig()

	dsn := cfg.DBDSN
	if dsn == "" {
		dsn = database.DSN(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	}
	db, err := database.Open(database.Config{
		DSN:             dsn,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLife,
	})
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()
	if err := database.Migrate(db); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	// Rate limit counters: Redis when configured and reachable, with an
	// in-process fallback so a missing Redis never takes login down.
	var rlStore ratelimit.Store = ratelimit.NewMemoryStore()
	if rlCfg.Storage == "redis" {
		if rdb := config.NewRedisClient(); rdb != nil {
			rlStore = ratelimit.NewRedisStore(rdb, rlCfg.Prefix)
		} else {
			log.Println("redis unavailable, rate limiting falls back to memory")
		}
	}

	// Audit pipeline: durable rows first, then best-effort fan-out to
	// the broker for the file consumer.
	sink := audit.NewSink(repository.NewAuditRepo(db), cfg.AuditQueueCap,
		audit.WithPublisher(queue.NewPublisher()))
	defer sink.Close()
	go func() {
		if err := queue.StartAuditConsumer(); err != nil {
			log.Printf("audit consumer stopped: %v", err)
		}
	}()

	stores := service.Stores{
		Users:       repository.NewUserRepo(db),
		Tokens:      repository.NewTokenRepo(db),
		Assignments: repository.NewAssignmentRepo(db),
		Sessions:    repository.NewSessionRepo(db),
		Permissions: repository.NewPermissionRepo(db),
		Hostels:     repository.NewHostelRepo(db),
	}
	svc := service.NewAuthService(stores, sink, notify.New(cfg.NotifyProvider), cfg)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.Logger())
	if len(cfg.CORSOrigins) > 0 {
		e.Use(echomw.CORSWithConfig(echomw.CORSConfig{AllowOrigins: cfg.CORSOrigins}))
	}

	router.Register(e, router.Deps{
		Auth:      handler.NewAuthHandler(svc),
		Sink:      sink,
		JWTSecret: cfg.JWTSecret,
		RateLimit: rlCfg,
		RLStore:   rlStore,
	})

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
