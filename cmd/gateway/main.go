package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/modelgate/modelgate/internal/auth"
	"github.com/modelgate/modelgate/internal/backend/ollama"
	"github.com/modelgate/modelgate/internal/config"
	"github.com/modelgate/modelgate/internal/idp"
	"github.com/modelgate/modelgate/internal/server"
	"github.com/modelgate/modelgate/internal/storage/sqldb"
	"github.com/modelgate/modelgate/internal/telemetry"
	"github.com/modelgate/modelgate/internal/tokens"
	"github.com/modelgate/modelgate/internal/validate"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	shutdownTracer, err := telemetry.Init("modelgate", logger)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	store, err := sqldb.New(sqldb.Config{Driver: cfg.Database.Driver, DSN: cfg.Database.DSN})
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer store.Close()

	sessions := idp.NewClient(cfg.Auth.BaseURL, idp.WithSessionPath(cfg.Auth.SessionPath))

	authProxy, err := idp.NewProxy(cfg.Auth.BaseURL, logger)
	if err != nil {
		log.Fatalf("Failed to configure auth proxy: %v", err)
	}

	backend := ollama.NewClient(cfg.Ollama.Host,
		ollama.WithDefaultModel(cfg.Ollama.DefaultModel),
		ollama.WithKeepAlive(cfg.Ollama.KeepAlive),
		ollama.WithTimeout(cfg.Ollama.Timeout),
	)

	estimator, err := tokens.NewEstimator()
	if err != nil {
		// Token counts are a log field, not a feature. Run without them.
		logger.Warn("token estimator unavailable", slog.String("error", err.Error()))
	}

	srv := server.New(cfg.Server.Port, server.Options{
		Logger:    logger,
		Resolver:  auth.NewResolver(sessions, store),
		Backend:   backend,
		Store:     store,
		Validator: validate.New(),
		AuthProxy: authProxy,
		Estimator: estimator,
		Timeout:   cfg.Ollama.Timeout,
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received, stopping server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("server shutdown complete")
}
