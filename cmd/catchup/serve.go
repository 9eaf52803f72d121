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

	gorillaHandlers "github.com/gorilla/handlers"
	"github.com/mroshb/catchup/internal/config"
	"github.com/mroshb/catchup/internal/handlers"
	"github.com/mroshb/catchup/internal/metrics"
	"github.com/mroshb/catchup/internal/middleware"
	"github.com/mroshb/catchup/internal/services"
	"github.com/mroshb/catchup/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
)

func runServe(cfg *config.Config, args []string) error {
	flagSet := pflag.NewFlagSet("catchup serve", pflag.ContinueOnError)
	port := flagSet.String("port", cfg.HTTPPort, "HTTP listen port")
	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	ctx := context.Background()
	store, err := openBackend(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", cfg.StoreBackend, err)
	}
	defer store.close()

	m := metrics.New(prometheus.DefaultRegisterer)

	streaks := services.NewStreakService(store.users, store.friendships,
		services.WithFanOut(cfg.StreakFanOut),
		services.WithRetry(cfg.StreakMaxAttempts, cfg.StreakRetryBackoff),
		services.WithMetrics(m),
	)
	users := services.NewUserService(store.users, cfg.DefaultTimezone)
	friends := services.NewFriendService(store.users, store.friendships, services.WithFriendMetrics(m))

	limiter := middleware.NewRateLimiter(cfg.RateLimitPerSecond, cfg.RateLimitBurst)
	if err := limiter.TrustProxies(cfg.TrustedProxies); err != nil {
		return fmt.Errorf("TRUSTED_PROXIES: %w", err)
	}
	stopCleanup := make(chan struct{})
	defer close(stopCleanup)
	go limiter.RunCleanup(time.Minute, stopCleanup)

	router := handlers.NewRouter(handlers.RouterConfig{
		Streaks:        streaks,
		Users:          users,
		Friends:        friends,
		Metrics:        m,
		MetricsHandler: promhttp.Handler(),
		Limiter:        limiter,
		Health:         store.health,
	})

	corsHandler := gorillaHandlers.CORS(
		gorillaHandlers.AllowedOrigins([]string{"*"}),
		gorillaHandlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		gorillaHandlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
		gorillaHandlers.ExposedHeaders([]string{"Content-Length", "Retry-After"}),
	)

	server := &http.Server{
		Addr:         ":" + *port,
		Handler:      corsHandler(router),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 20 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Starting server", "port", *port, "backend", cfg.StoreBackend)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
		close(serveErr)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case sig := <-sigChan:
		logger.Info("Shutting down gracefully...", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
		return err
	}

	logger.Info("Server shutdown complete")
	return nil
}
