package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tenant_auth_backend/internal/adapters/storage"
	"tenant_auth_backend/internal/analytics"
	"tenant_auth_backend/internal/authcore"
	authstore "tenant_auth_backend/internal/authcore/store"
	"tenant_auth_backend/internal/email"
	"tenant_auth_backend/internal/events"
	apphttp "tenant_auth_backend/internal/http"
	"tenant_auth_backend/internal/http/router"
	identityhandler "tenant_auth_backend/internal/identity/handler"
	identityrepo "tenant_auth_backend/internal/identity/repository"
	"tenant_auth_backend/internal/notification"
	"tenant_auth_backend/internal/onboarding"
	"tenant_auth_backend/internal/organization"
	"tenant_auth_backend/internal/organization/domain"
	"tenant_auth_backend/internal/profile"
	"tenant_auth_backend/internal/scheduler"
	"tenant_auth_backend/internal/tenantauth"
	tenantauthservice "tenant_auth_backend/internal/tenantauth/service"
	"tenant_auth_backend/platform/cache"
	"tenant_auth_backend/platform/config"
	"tenant_auth_backend/platform/db"
	"tenant_auth_backend/platform/logger"
	"tenant_auth_backend/platform/metrics"
	"tenant_auth_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sethvargo/go-retry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, pool)
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	// Sessions, lockout counters and MFA challenges live in Redis.
	var rdb *redis.Client
	if err := withRetry(ctx, log, "redis connection", 5, 2*time.Second, func() error {
		c, err := cache.NewRedis(ctx, cfg.GetRedisURL())
		if err != nil {
			return err
		}
		rdb = c
		return nil
	}); err != nil {
		log.Error("failed to connect to redis", "error", err)
		panic("failed to connect to redis: " + err.Error())
	}
	defer func() { _ = rdb.Close() }()

	eventBus := events.NewInMemoryBus(log)
	appMetrics := metrics.New()
	val := validator.New()

	queue, closeQueue := initQueue(cfg, log)
	if closeQueue != nil {
		defer closeQueue()
	}

	var objectStore storage.ObjectStore
	if cfg.IsMinIOEnabled() {
		minio, err := storage.NewMinIOService(cfg)
		if err != nil {
			log.Error("failed to initialize storage service", "error", err)
			panic("failed to initialize storage service: " + err.Error())
		}
		if err := withRetry(ctx, log, "ensure avatars bucket", 5, 2*time.Second, func() error {
			return minio.EnsureBucketExists(ctx)
		}); err != nil {
			log.Error("failed to ensure storage bucket exists", "error", err, "bucket", cfg.GetMinioBucketAvatars())
			panic("failed to ensure storage bucket exists: " + err.Error())
		}
		objectStore = minio
		log.Info("storage service initialized", "avatarsBucket", cfg.GetMinioBucketAvatars())
	} else {
		log.Warn("MINIO_ENDPOINT not configured; avatar uploads disabled")
	}

	tiers, err := domain.LoadTiers()
	if err != nil {
		log.Error("failed to load subscription tiers", "error", err)
		panic("failed to load subscription tiers: " + err.Error())
	}

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	notificationModule := notification.New(pool, email.NewSender(cfg), cfg, log)
	notificationModule.RegisterHandlers(eventBus)
	if queue != nil {
		notificationModule.SetWelcomeQueue(queue)
	}

	organizationModule := organization.NewModule(pool, tiers, val)
	profileModule := profile.NewModule(pool, objectStore, cfg.GetDefaultPhoneRegion(), val)
	onboardingModule := onboarding.NewModule(pool)

	users := identityrepo.New(pool)
	core := authcore.New(authcore.Deps{
		Users:      users,
		Sessions:   authstore.NewSessions(rdb),
		Attempts:   authstore.NewAttempts(rdb),
		Challenges: authstore.NewChallenges(rdb),
		Validator:  val,
		Events:     eventBus,
		Log:        log,
	}, authcore.SettingsFrom(cfg))

	var tracker analytics.Tracker = analytics.NewLogTracker(log)
	if queue != nil {
		tracker = analytics.NewQueueTracker(queue)
	}

	tenantAuth := tenantauthservice.New(tenantauthservice.Deps{
		Core:          core,
		Organizations: organizationModule.Service(),
		Members:       users,
		Profiles:      profileModule.Service(),
		Onboarding:    onboardingModule.Service(),
		Notifier:      notificationModule,
		Inbox:         notificationModule.InAppService(),
		Analytics:     tracker,
		Events:        eventBus,
		Metrics:       appMetrics,
		Log:           log,
	}, tenantauthservice.SettingsFrom(cfg))
	tenantAuthModule := tenantauth.NewModule(tenantAuth, val, cfg)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   db.PoolHealth{Pool: pool},
		Metrics:  appMetrics,
		EventBus: eventBus,
		Modules: []apphttp.Module{
			tenantAuthModule,
			identityhandler.NewModule(users),
			organizationModule,
			profileModule,
			onboardingModule,
			notificationModule,
		},
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router.New(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown failed", "error", err)
		}
		// Let detached side effects and event handlers finish before the
		// pool and Redis client close.
		tenantAuth.Wait()
		eventBus.Wait()
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

func initQueue(cfg config.SchedulerConfig, log *logger.Logger) (*scheduler.Client, func()) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; welcome emails and analytics run inline")
		return nil, nil
	}

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize task queue client", "error", err)
		return nil, nil
	}

	return client, func() {
		_ = client.Close()
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	attempt := 0
	backoff := retry.WithMaxRetries(uint64(attempts-1), retry.NewExponential(baseDelay))
	err := retry.Do(ctx, backoff, func(context.Context) error {
		attempt++
		if err := fn(); err != nil {
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}
