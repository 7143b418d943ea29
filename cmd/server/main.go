// Package main is the entry point of the receipt desk API.
//
// The server lets front-desk operators pick a student from the student
// service, edit the payment receipt and export it as a signed PDF. Saved
// receipts are stored (local disk or GCS) and archived (PostgreSQL or
// memory).
//
// Usage:
//
//	receipt-desk                        run the API server
//	receipt-desk hash-key <api-key>     print the bcrypt hash for AUTH_API_KEY_HASH
//	receipt-desk migrate [up|down|status]
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/webmasters-learning/receipt-desk/config"
	"github.com/webmasters-learning/receipt-desk/internal/application/session"
	"github.com/webmasters-learning/receipt-desk/internal/domain/receipt"
	"github.com/webmasters-learning/receipt-desk/internal/domain/shared"
	"github.com/webmasters-learning/receipt-desk/internal/domain/student"
	"github.com/webmasters-learning/receipt-desk/internal/infrastructure/document"
	"github.com/webmasters-learning/receipt-desk/internal/infrastructure/external/studentsvc"
	"github.com/webmasters-learning/receipt-desk/internal/infrastructure/persistence/memory"
	"github.com/webmasters-learning/receipt-desk/internal/infrastructure/persistence/postgres"
	"github.com/webmasters-learning/receipt-desk/internal/infrastructure/persistence/redis"
	"github.com/webmasters-learning/receipt-desk/internal/infrastructure/register"
	"github.com/webmasters-learning/receipt-desk/internal/infrastructure/scheduler"
	"github.com/webmasters-learning/receipt-desk/internal/infrastructure/scheduler/jobs"
	"github.com/webmasters-learning/receipt-desk/internal/infrastructure/storage"
	httpapi "github.com/webmasters-learning/receipt-desk/internal/interface/http"
	"github.com/webmasters-learning/receipt-desk/internal/interface/http/handlers"
	"github.com/webmasters-learning/receipt-desk/pkg/circuitbreaker"
	"github.com/webmasters-learning/receipt-desk/pkg/logger"
	"github.com/webmasters-learning/receipt-desk/pkg/retry"
	"github.com/webmasters-learning/receipt-desk/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch {
	case len(os.Args) > 1 && os.Args[1] == "hash-key":
		err = hashKey(os.Args[2:])
	case len(os.Args) > 1 && os.Args[1] == "migrate":
		err = migrate(ctx, os.Args[2:])
	default:
		err = run(ctx)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION & LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := setupLogger(cfg)
	log.Info("starting receipt desk",
		logger.String("env", string(cfg.App.Environment)),
		logger.String("version", cfg.App.Version),
		logger.String("timezone", cfg.App.Timezone),
	)

	health := handlers.NewReadinessMonitor(cfg.App.Version, cfg.Backend.RequestTimeout)

	// ─────────────────────────────────────────────────────────────────────────
	// 2. RECEIPT ARCHIVE (PostgreSQL, or memory when no database is set)
	// ─────────────────────────────────────────────────────────────────────────
	var archive receipt.Archive
	if cfg.Database.URL != "" {
		conn, err := connectDatabase(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer func() {
			log.Info("closing database connection")
			conn.Close()
		}()

		if err := postgres.NewMigrator(conn).Migrate(ctx); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		archive = postgres.NewReceiptRepository(conn)
		health.Register("archive", handlers.ImpactCritical, databaseCheck(conn))
		log.Info("receipt archive: postgres")
	} else {
		archive = memory.NewReceiptArchive()
		log.Warn("DATABASE_URL not set, receipt archive is in memory")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 3. RECEIPT STORAGE
	// ─────────────────────────────────────────────────────────────────────────
	var store receipt.Store
	switch cfg.Storage.Backend {
	case config.StorageGCS:
		gcs, err := storage.NewGCSStore(ctx, cfg.Storage.Bucket, cfg.Storage.Prefix)
		if err != nil {
			return fmt.Errorf("failed to create gcs store: %w", err)
		}
		defer gcs.Close()
		store = gcs
	default:
		local, err := storage.NewLocalStore(cfg.Storage.Dir)
		if err != nil {
			return fmt.Errorf("failed to create local store: %w", err)
		}
		store = local
	}
	log.Info("receipt storage ready", logger.String("backend", string(cfg.Storage.Backend)))

	// ─────────────────────────────────────────────────────────────────────────
	// 4. STUDENT SERVICE (+ optional Redis directory cache)
	// ─────────────────────────────────────────────────────────────────────────
	breaker := circuitbreaker.StudentServiceBreaker(
		cfg.Backend.CircuitBreakerThreshold,
		cfg.Backend.CircuitBreakerTimeout,
		circuitbreaker.WithMaxHalfOpenRequests(cfg.Backend.CircuitBreakerHalfOpenMax),
		circuitbreaker.WithIsFailure(shared.IsExternalService),
		circuitbreaker.WithOnStateChange(func(name string, from, to circuitbreaker.State) {
			log.Warn("circuit breaker state changed",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
		}),
	)

	clientCfg := studentsvc.DefaultClientConfig(cfg.Backend.BaseURL)
	clientCfg.APIKey = cfg.Backend.APIKey
	clientCfg.Timeout = cfg.Backend.RequestTimeout
	clientCfg.Breaker = breaker
	clientCfg.Logger = log
	client, err := studentsvc.NewClient(clientCfg)
	if err != nil {
		return fmt.Errorf("failed to create student service client: %w", err)
	}
	health.Register("student_service", handlers.ImpactDegraded, studentServiceCheck(client, breaker))

	var source student.Source = client
	var directoryCache *redis.DirectoryCache
	if !cfg.Redis.Disabled {
		cache, err := connectRedis(ctx, cfg, log)
		if err != nil {
			log.Warn("failed to connect to Redis, directory cache disabled", logger.Err(err))
		} else {
			defer cache.Close()
			directoryCache = redis.NewDirectoryCache(client, cache, cfg.Redis.DirectoryTTL, log)
			source = directoryCache
			health.Register("cache", handlers.ImpactDegraded, handlers.PingCheck(cache))
			log.Info("directory cache enabled", logger.Duration("ttl", cfg.Redis.DirectoryTTL))
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. RECEIPT DOCUMENT
	// ─────────────────────────────────────────────────────────────────────────
	docCfg := document.Config{
		Title:        cfg.Export.Title,
		Subtitle:     cfg.Export.Subtitle,
		Caption:      cfg.Export.Caption,
		AssetTimeout: cfg.Export.AssetTimeout,
		AssetPolicy:  cfg.Export.AssetPolicy,
	}
	exporter := document.NewExporter(docCfg, signatureLoader(cfg), log)

	// ─────────────────────────────────────────────────────────────────────────
	// 6. SESSIONS
	// ─────────────────────────────────────────────────────────────────────────
	sessions := session.NewManager(session.ManagerConfig{
		IdleTTL:     cfg.Sessions.IdleTTL,
		MaxSessions: cfg.Sessions.MaxSessions,
	}, session.Dependencies{
		Source:   source,
		Exporter: exporter,
		Store:    store,
		Archive:  archive,
		Keys:     storage.ObjectKey,
		Dates:    timeutil.NewDateFormatter(cfg.App.Location, cfg.App.DateLayout, nil),
		Logger:   log,
	})
	health.Register("sessions", handlers.ImpactDegraded, func(context.Context) (any, error) {
		return sessions.Capacity()
	})

	// ─────────────────────────────────────────────────────────────────────────
	// 7. SCHEDULER
	// ─────────────────────────────────────────────────────────────────────────
	if cfg.Scheduler.Enabled {
		sched := scheduler.NewScheduler(scheduler.Config{Logger: log})
		if err := sched.Register(jobs.NewSweepSessionsJob(sessions, log), scheduler.Every(cfg.Scheduler.SweepSessionsInterval)); err != nil {
			return err
		}
		if directoryCache != nil && cfg.Features.IsEnabled(config.FeatureDirectoryRefresh) {
			if err := sched.Register(jobs.NewRefreshDirectoryJob(directoryCache), scheduler.Every(cfg.Scheduler.RefreshDirectoryInterval)); err != nil {
				return err
			}
		}
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		defer func() { _ = sched.Stop() }()
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 8. HTTP SERVER
	// ─────────────────────────────────────────────────────────────────────────
	var auth *handlers.TokenAuth
	if !cfg.Auth.Disabled {
		auth, err = handlers.NewTokenAuth(handlers.AuthConfig{
			APIKeyHash: cfg.Auth.APIKeyHash,
			Secret:     cfg.Auth.JWTSecret,
			TTL:        cfg.Auth.TokenTTL,
			Issuer:     cfg.Auth.Issuer,
		})
		if err != nil {
			return fmt.Errorf("failed to configure auth: %w", err)
		}
	} else {
		log.Warn("authentication is disabled")
	}

	httpCfg := httpapi.DefaultConfig()
	httpCfg.Host = cfg.HTTP.Host
	httpCfg.Port = cfg.HTTP.Port
	httpCfg.ReadTimeout = cfg.HTTP.ReadTimeout
	httpCfg.WriteTimeout = cfg.HTTP.WriteTimeout
	httpCfg.AllowedOrigins = cfg.HTTP.AllowedOrigins
	httpCfg.MaxRequestBytes = cfg.HTTP.MaxRequestBytes
	httpCfg.Version = cfg.App.Version

	server := httpapi.NewServer(httpCfg, httpapi.Dependencies{
		Sessions:      sessions,
		Archive:       archive,
		Register:      register.NewWriter(archive, cfg.App.Location),
		Auth:          auth,
		HealthChecker: health,
		Features:      cfg.Features,
		Logger:        log,
	})
	errCh := server.StartAsync()

	// ─────────────────────────────────────────────────────────────────────────
	// 9. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	select {
	case <-ctx.Done():
		log.Info("received shutdown signal")
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}

	log.Info("shutdown completed successfully")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SUBCOMMANDS
// ══════════════════════════════════════════════════════════════════════════════

func hashKey(args []string) error {
	if len(args) != 1 || args[0] == "" {
		return errors.New("usage: receipt-desk hash-key <api-key>")
	}
	hash, err := handlers.HashAPIKey(args[0])
	if err != nil {
		return err
	}
	fmt.Println(hash)
	return nil
}

func migrate(ctx context.Context, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL is required")
	}
	log := setupLogger(cfg)

	conn, err := connectDatabase(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer conn.Close()

	migrator := postgres.NewMigrator(conn)
	action := "up"
	if len(args) > 0 {
		action = args[0]
	}

	switch action {
	case "up":
		return migrator.Migrate(ctx)
	case "down":
		return migrator.Rollback(ctx)
	case "status":
		migrations, err := migrator.Status(ctx)
		if err != nil {
			return err
		}
		for _, m := range migrations {
			state := "pending"
			if m.IsApplied {
				state = "applied " + m.AppliedAt.Format(time.RFC3339)
			}
			fmt.Printf("%03d %-24s %s\n", m.Version, m.Name, state)
		}
		return nil
	default:
		return fmt.Errorf("unknown migrate action %q", action)
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

func setupLogger(cfg *config.Config) *logger.Logger {
	level := logger.ParseLevel(cfg.Observability.LogLevel)
	if cfg.App.Debug {
		level = logger.LevelDebug
	}
	return logger.New(logger.Options{
		Output:    os.Stdout,
		Level:     level,
		Format:    logger.ParseFormat(cfg.Observability.LogFormat),
		AddCaller: cfg.IsDevelopment(),
	}).With(logger.String("service", cfg.App.Name))
}

func connectDatabase(ctx context.Context, cfg *config.Config, log *logger.Logger) (*postgres.Connection, error) {
	dbCfg := postgres.DefaultConfig(cfg.Database.URL)
	dbCfg.MaxConns = int32(cfg.Database.MaxConns)
	dbCfg.MinConns = int32(cfg.Database.MinConns)
	dbCfg.MaxConnLifetime = cfg.Database.ConnMaxLifetime
	dbCfg.MaxConnIdleTime = cfg.Database.ConnMaxIdleTime

	log.Info("connecting to database")
	var conn *postgres.Connection
	err := retry.ConnectRetrier(func(attempt int, err error, delay time.Duration) {
		log.Warn("database not ready, retrying",
			logger.Int("attempt", attempt), logger.Err(err), logger.Duration("delay", delay))
	}).Do(ctx, func(ctx context.Context) error {
		var err error
		conn, err = postgres.NewConnection(ctx, dbCfg)
		if errors.Is(err, postgres.ErrInvalidConfig) {
			return retry.Permanent(err)
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	log.Info("database connection established")
	return conn, nil
}

func connectRedis(ctx context.Context, cfg *config.Config, log *logger.Logger) (*redis.Cache, error) {
	redisCfg := redis.DefaultConfig()
	redisCfg.URL = cfg.Redis.URL
	redisCfg.Host = cfg.Redis.Host
	redisCfg.Port = cfg.Redis.Port
	redisCfg.Password = cfg.Redis.Password
	redisCfg.DB = cfg.Redis.DB
	redisCfg.PoolSize = cfg.Redis.PoolSize
	redisCfg.DialTimeout = cfg.Redis.DialTimeout
	redisCfg.ReadTimeout = cfg.Redis.ReadTimeout
	redisCfg.WriteTimeout = cfg.Redis.WriteTimeout

	log.Info("connecting to Redis", logger.String("addr", redisCfg.Addr()))
	var cache *redis.Cache
	err := retry.ConnectRetrier(func(attempt int, err error, delay time.Duration) {
		log.Warn("redis not ready, retrying", logger.Int("attempt", attempt), logger.Err(err))
	}).Do(ctx, func(ctx context.Context) error {
		var err error
		cache, err = redis.NewCache(ctx, redisCfg)
		return err
	})
	return cache, err
}

func databaseCheck(conn *postgres.Connection) handlers.CheckFunc {
	return func(ctx context.Context) (any, error) {
		stats, err := conn.Health(ctx)
		if err != nil {
			return nil, err
		}
		return stats, nil
	}
}

// studentServiceCheck pings the student service and reports the breaker
// guarding it.
func studentServiceCheck(client *studentsvc.Client, breaker *circuitbreaker.CircuitBreaker) handlers.CheckFunc {
	return func(ctx context.Context) (any, error) {
		details := map[string]any{
			"breaker":              breaker.State().String(),
			"consecutive_failures": breaker.Counts().ConsecutiveFailures,
		}
		return details, client.Ping(ctx)
	}
}

// signatureLoader picks the signature image source. The image is read once
// and reused for every export.
func signatureLoader(cfg *config.Config) document.AssetLoader {
	if u := strings.TrimSpace(cfg.Export.SignatureURL); u != "" {
		return document.NewCachedAsset(document.URLAsset{URL: u})
	}
	if p := strings.TrimSpace(cfg.Export.SignaturePath); p != "" {
		return document.NewCachedAsset(document.FileAsset{Path: p})
	}
	return nil
}
