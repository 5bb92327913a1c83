package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/umeed-health/asha-service/internal/adapters/handler"
	"github.com/umeed-health/asha-service/internal/adapters/middleware"
	"github.com/umeed-health/asha-service/internal/adapters/repository"
	"github.com/umeed-health/asha-service/internal/config"
	"github.com/umeed-health/asha-service/internal/core/domain"
	"github.com/umeed-health/asha-service/internal/core/ports"
	"github.com/umeed-health/asha-service/internal/core/services"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "asha-service",
		Short: "ASHA household registration and risk service",
	}
	rootCmd.AddCommand(serveCmd(), migrateCmd(), seedFollowUpsCmd())
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and the offline registration consumer",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the PostgreSQL schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync()

			drop, _ := cmd.Flags().GetBool("drop")
			db, err := config.ConnectDatabase(cfg.DatabaseURL, 5, 2*time.Second, logger)
			if err != nil {
				return err
			}
			defer db.Close()
			return config.InitDatabase(db, drop || cfg.DropTablesOnStartup, logger)
		},
	}
	cmd.Flags().Bool("drop", false, "drop existing tables first (deletes all data)")
	return cmd
}

func seedFollowUpsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed-followups",
		Short: "Load the NCD follow-up roster from a JSON file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("file")
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync()

			f, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("failed to open roster: %w", err)
			}
			defer f.Close()
			items, err := repository.DecodeRoster(f)
			if err != nil {
				return err
			}

			st, err := openStores(cfg, false, logger)
			if err != nil {
				return err
			}
			defer st.close()

			n, err := services.NewFollowUpService(st.followUps, logger).Seed(cmd.Context(), items)
			if err != nil {
				return err
			}
			logger.Info("roster loaded", zap.Int("count", n), zap.String("file", path))
			return nil
		},
	}
	cmd.Flags().String("file", "roster.json", "path to the roster JSON array")
	return cmd
}

func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logger, err := config.NewLogger(cfg.LogLevel, cfg.LogFormat, "asha-service")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return cfg, logger, nil
}

// stores holds the record store selected by STORE_BACKEND
type stores struct {
	records   ports.RecordStore
	followUps ports.FollowUpRepository
	db        *sql.DB
}

func (s *stores) close() {
	if s.db != nil {
		s.db.Close()
	}
}

func breakerSettings(cfg *config.Config) repository.BreakerSettings {
	return repository.BreakerSettings{
		MaxRequests:         cfg.CircuitBreakerMaxRequests,
		Interval:            cfg.CircuitBreakerInterval,
		Timeout:             cfg.CircuitBreakerTimeout,
		ConsecutiveFailures: cfg.CircuitBreakerFailures,
	}
}

// openStores builds the configured record store. Tables are dropped first
// only when dropTables is set.
func openStores(cfg *config.Config, dropTables bool, logger *zap.Logger) (*stores, error) {
	settings := breakerSettings(cfg)
	if cfg.StoreBackend == config.StoreREST {
		rest := repository.NewRESTRecordStore(cfg.StoreRESTURL, cfg.StoreRESTKey, settings, logger)
		return &stores{
			records:   rest,
			followUps: repository.NewRESTFollowUpRepository(rest, settings),
		}, nil
	}

	db, err := config.ConnectDatabase(cfg.DatabaseURL, 5, 2*time.Second, logger)
	if err != nil {
		return nil, err
	}
	st, err := sqlStores(db, settings, dropTables, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	return st, nil
}

func sqlStores(db *sql.DB, settings repository.BreakerSettings, dropTables bool, logger *zap.Logger) (*stores, error) {
	if err := config.InitDatabase(db, dropTables, logger); err != nil {
		return nil, err
	}
	return &stores{
		records:   repository.NewSQLRecordStore(db, settings),
		followUps: repository.NewSQLFollowUpRepository(db, settings),
		db:        db,
	}, nil
}

func runServer() error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()
	if err := cfg.LoadPublicKey(); err != nil {
		return err
	}

	st, err := openStores(cfg, cfg.DropTablesOnStartup, logger)
	if err != nil {
		return err
	}
	defer st.close()

	checks := map[string]handler.CheckFunc{}
	if st.db != nil {
		checks["database"] = st.db.PingContext
	}

	// Sessions live in Redis when configured so any replica can serve a worker
	var kv repository.KV = repository.NewMemoryKV()
	if cfg.RedisAddr != "" {
		rdb := repository.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		defer rdb.Close()
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		kv = repository.NewRedisKV(rdb)
		checks["redis"] = func(ctx context.Context) error { return pingRedis(ctx, rdb) }
		logger.Info("session store: redis", zap.String("addr", cfg.RedisAddr))
	} else {
		logger.Warn("REDIS_ADDR not set, sessions are kept in memory")
	}

	publisher, err := repository.NewRabbitMQPublisher(cfg.RabbitMQURL, cfg.ReferralQueueName, breakerSettings(cfg), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize RabbitMQ publisher: %w", err)
	}
	defer publisher.Close()

	workflow := domain.NewWorkflow(domain.NewRiskClassifier(domain.RiskPolicy{
		SevereVitalsEscalation: cfg.SevereVitalsEscalation,
	}))
	registrations := services.NewRegistrationService(
		workflow,
		repository.NewKVSessionStore(kv, cfg.SessionTTL),
		repository.NewKVSubmissionGuard(kv),
		st.records,
		publisher,
		logger,
	)
	reports := services.NewReportService(st.records)
	followUps := services.NewFollowUpService(st.followUps, logger)

	// Offline bundles are replayed through the same workflow and submit path
	consumer, err := repository.NewRabbitMQConsumer(cfg.RabbitMQURL, cfg.OfflineQueueName, "offline-registrations",
		repository.NewOfflineRegistrationHandler(registrations, logger), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize offline registration consumer: %w", err)
	}
	defer consumer.Close()
	consumerCtx, consumerCancel := context.WithCancel(context.Background())
	defer consumerCancel()
	if err := consumer.StartConsuming(consumerCtx); err != nil {
		return fmt.Errorf("failed to start offline registration consumer: %w", err)
	}

	auth := middleware.NewAuthMiddleware(cfg.JWTPublicKey, logger)
	defer auth.Stop()
	limiter := middleware.NewWorkerRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)

	registrationHandler := handler.NewRegistrationHandler(registrations, logger)
	reportHandler := handler.NewReportHandler(reports, logger)
	followUpHandler := handler.NewFollowUpHandler(followUps, logger)
	healthHandler := handler.NewHealthHandler(checks, logger)

	r := chi.NewRouter()
	r.Use(chimw.RequestID, chimw.RealIP, chimw.Recoverer, middleware.MetricsMiddleware)

	// Health endpoints (OpenShift compatible, no auth required)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/health", healthHandler.Health)
	r.Get("/health/ready", healthHandler.Ready)
	r.Get("/health/live", healthHandler.Live)

	r.Group(func(r chi.Router) {
		r.Use(auth.Authenticate, limiter.Middleware)
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(middleware.RoleASHA))
			registrationHandler.Routes(r)
		})
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(middleware.RoleASHA, middleware.RoleSupervisor))
			reportHandler.Routes(r)
			followUpHandler.Routes(r)
		})
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting ASHA service", zap.String("port", cfg.Port), zap.String("store", cfg.StoreBackend))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	}

	logger.Info("shutting down")
	consumerCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	// let in-flight referral publishes finish before the channel closes
	registrations.Wait()
	logger.Info("server exited")
	return nil
}

func pingRedis(ctx context.Context, c *redis.Client) error {
	return c.Ping(ctx).Err()
}
