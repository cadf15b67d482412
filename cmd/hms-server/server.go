package main

import (
	"context"
	crypto_rand "crypto/rand"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/medicore/hms/internal/config"
	"github.com/medicore/hms/internal/domain/billing"
	"github.com/medicore/hms/internal/domain/clinical"
	"github.com/medicore/hms/internal/domain/dashboard"
	"github.com/medicore/hms/internal/domain/facility"
	"github.com/medicore/hms/internal/domain/identity"
	"github.com/medicore/hms/internal/domain/scheduling"
	"github.com/medicore/hms/internal/platform/auth"
	"github.com/medicore/hms/internal/platform/cache"
	"github.com/medicore/hms/internal/platform/db"
	"github.com/medicore/hms/internal/platform/events"
	"github.com/medicore/hms/internal/platform/jobs"
	"github.com/medicore/hms/internal/platform/middleware"
	"github.com/medicore/hms/internal/platform/reporting"
	"github.com/medicore/hms/internal/platform/webhook"
	"github.com/medicore/hms/internal/platform/websocket"
	"github.com/medicore/hms/migrations"
)

const version = "1.0.0"

// server is the wired application: the echo instance plus the background
// components that must be started and stopped with it.
type server struct {
	echo      *echo.Echo
	bus       *events.Bus
	hub       *websocket.Hub
	notifier  *webhook.Notifier
	scheduler *jobs.Scheduler
	sessions  *auth.SessionManager
}

// newServer wires every route and subscriber. pool may be nil in tests as
// long as no request reaches the database.
func newServer(cfg *config.Config, pool *pgxpool.Pool, store cache.Store, logger zerolog.Logger) (*server, error) {
	secret, generated, err := resolveSessionSecret(cfg.SessionSecret)
	if err != nil {
		return nil, err
	}
	if generated {
		logger.Warn().Msg("SESSION_SECRET not set; using random key (sessions will not survive restart)")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders(cfg.TLSEnabled))
	e.Use(echomw.BodyLimit("2M"))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
	}))

	sessions := auth.NewSessionManager(auth.NewPGSessionStore(pool), auth.SessionConfig{
		Secret:     secret,
		TTL:        cfg.SessionTTL,
		CookieName: cfg.SessionCookie,
		Secure:     cfg.TLSEnabled || cfg.IsProduction(),
	})

	// Health checks stay outside the API group and its rate limit.
	liveness := func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok", "version": version})
	}
	e.GET("/health", liveness)
	e.GET("/health/db", db.HealthHandler(db.NewHealthChecker(pool)))

	api := e.Group("/api")
	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
		IdleTTL:           10 * time.Minute,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	api.Use(middleware.RateLimit(rateLimitCfg))
	if cfg.ResolvedAuthMode() == "development" {
		logger.Warn().Msg("AUTH_MODE=development: every request runs as admin")
		api.Use(auth.DevAuthMiddleware())
	} else {
		api.Use(auth.SessionMiddleware(sessions, auth.AuthSkipper))
	}
	api.GET("/health", liveness)

	// Change fan-out
	bus := events.NewBus(logger)
	hub := websocket.NewHub(logger)
	bus.Subscribe("websocket", hub.HandleChange)

	notifier := webhook.NewNotifier(webhook.Config{
		URLs:       cfg.WebhookURLs,
		Secret:     cfg.WebhookSecret,
		MaxRetries: 3,
	}, logger)
	if notifier.Enabled() {
		bus.Subscribe("webhooks", notifier.HandleChange)
	}

	tx := db.NewTransactor(pool)

	// Identity domain
	identitySvc := identity.NewService(
		identity.NewUserRepo(pool), identity.NewDoctorRepo(pool), identity.NewPatientRepo(pool),
		tx, bus,
	)
	identitySvc.RevokeSessionsWith(sessions)
	identity.NewHandler(identitySvc).RegisterRoutes(api)
	identity.NewAuthHandler(identitySvc, sessions).RegisterRoutes(api)

	// Scheduling domain
	schedulingSvc := scheduling.NewService(scheduling.NewAppointmentRepo(pool), tx, bus)
	scheduling.NewHandler(schedulingSvc).RegisterRoutes(api)

	// Clinical domain
	clinicalSvc := clinical.NewService(clinical.NewMedicalRecordRepo(pool), clinical.NewPrescriptionRepo(pool), tx, bus)
	clinical.NewHandler(clinicalSvc).RegisterRoutes(api)

	// Facility domain
	facilitySvc := facility.NewService(facility.NewWardRepo(pool), facility.NewRoomRepo(pool), tx, bus)
	facility.NewHandler(facilitySvc).RegisterRoutes(api)

	// Billing domain
	billingSvc := billing.NewService(billing.NewBillRepo(pool), tx, bus)
	billing.NewHandler(billingSvc).RegisterRoutes(api)

	// Dashboard
	var statsCache *cache.Cache
	if store != nil {
		statsCache = cache.New(store, "hms")
	}
	dashboardSvc := dashboard.NewService(dashboard.NewStatsRepo(pool), statsCache, cfg.DashboardCacheTTL, logger)
	bus.Subscribe("dashboard-cache", dashboardSvc.Invalidator())
	dashboard.NewHandler(dashboardSvc).RegisterRoutes(api)

	// Reports
	reporting.NewHandler(reporting.NewService(pool)).RegisterRoutes(api)

	// Realtime
	websocket.NewHandler(hub, cfg.CORSOrigins).RegisterRoutes(api)

	// Scheduled jobs
	scheduler := jobs.NewScheduler(logger, time.Minute)
	if err := scheduler.Add(jobs.PruneSessionsJob, cfg.SessionPruneSchedule, jobs.PruneSessions(sessions, logger)); err != nil {
		return nil, fmt.Errorf("schedule session pruning: %w", err)
	}

	return &server{
		echo:      e,
		bus:       bus,
		hub:       hub,
		notifier:  notifier,
		scheduler: scheduler,
		sessions:  sessions,
	}, nil
}

func runServer() error {
	// Config
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	if err := cfg.Validate(); err != nil {
		logger.Error().Err(err).Msg("invalid configuration")
		return err
	}

	// Database
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := openPool(ctx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("failed to connect to database")
		return err
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	if cfg.AutoMigrate {
		n, err := db.NewMigrator(pool, migrations.FS).Up(ctx)
		if err != nil {
			return fmt.Errorf("auto-migrate: %w", err)
		}
		logger.Info().Int("applied", n).Msg("migrations applied")
	}

	// Cache
	var store cache.Store = cache.NewMemoryStore()
	if cfg.RedisURL != "" {
		client, err := cache.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Error().Err(err).Msg("failed to connect to redis")
			return err
		}
		defer client.Close()
		store = cache.NewRedisStore(client)
		logger.Info().Msg("connected to redis")
	}

	srv, err := newServer(cfg, pool, store, logger)
	if err != nil {
		return err
	}
	srv.notifier.Start()
	srv.scheduler.Start()

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Bool("tls", cfg.TLSEnabled).Msg("starting server")
		var err error
		if cfg.TLSEnabled {
			err = srv.echo.StartTLS(addr, cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			err = srv.echo.Start(addr)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		logger.Error().Err(err).Msg("server error")
		return err
	}

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.echo.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}
	if err := srv.scheduler.Stop(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("scheduled jobs did not stop in time")
	}
	if err := srv.notifier.Close(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("pending webhooks dropped")
	}
	logger.Info().Msg("server stopped")
	return nil
}

// resolveSessionSecret returns the configured secret, or a random one when
// none is set. Config.Validate rejects an empty secret outside development.
func resolveSessionSecret(configured string) ([]byte, bool, error) {
	if configured != "" {
		return []byte(configured), false, nil
	}
	key := make([]byte, 32)
	if _, err := crypto_rand.Read(key); err != nil {
		return nil, false, fmt.Errorf("generate session secret: %w", err)
	}
	return key, true, nil
}

func printMigrationStatus(w io.Writer, statuses []db.MigrationStatus) {
	fmt.Fprintf(w, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	fmt.Fprintln(w, "---------- ---------------------------------------- ---------- --------------------")
	for _, s := range statuses {
		status := "pending"
		appliedAt := ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(w, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
	}
}

