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

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/umeed-health/asha-service/internal/adapters/handler"
	"github.com/umeed-health/asha-service/internal/adapters/middleware"
	"github.com/umeed-health/asha-service/internal/adapters/repository"
	"github.com/umeed-health/asha-service/internal/adapters/websocket"
	"github.com/umeed-health/asha-service/internal/config"
)

func main() {
	cmd := &cobra.Command{
		Use:   "referral-feed",
		Short: "Push Red referrals from the queue to connected supervisors",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run()
		},
	}
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadReferralFeed()
	if err != nil {
		return err
	}
	logger, err := config.NewLogger(cfg.LogLevel, cfg.LogFormat, "referral-feed")
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := websocket.NewHub(logger)
	go hub.Run(ctx)

	consumer, err := repository.NewRabbitMQConsumer(cfg.RabbitMQURL, cfg.QueueName, "referral-feed",
		repository.NewReferralFeedHandler(hub, logger), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize referral consumer: %w", err)
	}
	defer consumer.Close()
	if err := consumer.StartConsuming(ctx); err != nil {
		return fmt.Errorf("failed to start referral consumer: %w", err)
	}

	auth := middleware.NewAuthMiddleware(cfg.JWTPublicKey, logger)
	defer auth.Stop()
	health := handler.NewHealthHandler(nil, logger)
	feed := handler.NewReferralFeedHandler(hub, logger)

	r := chi.NewRouter()
	r.Use(chimw.RequestID, chimw.RealIP, chimw.Recoverer, middleware.MetricsMiddleware)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/health", health.Health)
	r.Get("/health/live", health.Live)
	r.Get("/health/ready", health.Ready)
	r.With(auth.Authenticate, auth.RequireRole(middleware.RoleSupervisor)).Get("/ws/referrals", feed.Subscribe)

	server := &http.Server{
		Addr:        ":" + cfg.WebSocketPort,
		Handler:     r,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting referral feed", zap.String("port", cfg.WebSocketPort), zap.String("queue", cfg.QueueName))
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

	logger.Info("shutting down referral feed")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	return nil
}
