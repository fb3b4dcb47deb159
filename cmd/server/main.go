/*
Package main is the entry point for the Schoolmaps server.

It is responsible for loading configuration, initializing the global logging system,
connecting to Postgres, Redis and the blob store, starting the realtime hub, setting up
the HTTP server, and gracefully handling operating system interrupt signals (SIGINT,
SIGTERM) to ensure a smooth server shutdown.
*/
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"schoolmaps/internal/app/db"
	"schoolmaps/internal/app/docstore"
	"schoolmaps/internal/app/identity"
	"schoolmaps/internal/app/mail"
	"schoolmaps/internal/app/realtime"
	"schoolmaps/internal/app/storage"
	"schoolmaps/internal/configs"
	"schoolmaps/internal/handler"
	"schoolmaps/internal/pkg/logx"
	"schoolmaps/internal/pkg/metrics"
	"schoolmaps/internal/pkg/pow"
	"schoolmaps/internal/pkg/sanitize"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Load configuration from environment variables
	cfg, err := configs.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize global logger
	logx.InitGlobalLogger(cfg.IsDevelopment())
	logx.Logger().Info().
		Str("environment", cfg.Environment).
		Int("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Int("pow_difficulty", cfg.PowDifficulty).
		Msg("Configuration loaded successfully")

	// Create a context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseDSN)
	if err != nil {
		logx.Fatal(err, "Failed to connect to database")
	}
	defer pool.Close()

	tokens, closeTokens := newTokenStore(ctx, cfg)
	defer closeTokens()

	blobs, err := storage.NewBlobStore(ctx, storage.ServiceConfig{
		S3BucketName:      cfg.S3BucketName,
		S3Endpoint:        cfg.S3Endpoint,
		S3AccessKeyID:     cfg.S3AccessKeyID,
		S3SecretAccessKey: cfg.S3SecretAccessKey,
		PublicBaseURL:     cfg.PublicAssetBaseURL,
	})
	if err != nil {
		logx.Fatal(err, "Failed to initialize blob storage")
	}

	mailer, err := newMailer(cfg)
	if err != nil {
		logx.Fatal(err, "Failed to initialize mailer")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(registry)

	hub := realtime.NewHub()
	go hub.Run(ctx)

	docs := docstore.NewStore(pool, hub, sanitize.New(), collector)

	identityService := identity.NewService(identity.Config{
		JWTSecret:  cfg.JWTSecret,
		AppBaseURL: cfg.AppBaseURL,
	}, identity.NewRepository(pool), tokens, mailer, collector)

	router := handler.Router(ctx, &handler.AppDeps{
		Config:   cfg,
		Identity: identityService,
		Docs:     docs,
		Blobs:    blobs,
		Hub:      hub,
		Pow:      pow.NewManager(ctx, cfg.PowDifficulty),
		Metrics:  collector,
		Gatherer: registry,
	})

	serverAddr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logx.Info(fmt.Sprintf("Schoolmaps Server starting on http://localhost%s", serverAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logx.Fatal(err, "Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server with a timeout of 5 seconds.
	<-ctx.Done()
	logx.Info("Received shutdown signal. Starting graceful shutdown...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logx.Error(err, "Server forced to shutdown")
	}

	hub.Stop()
	<-hub.Done()

	logx.Info("Server gracefully stopped.")
}

// newTokenStore uses redis when REDIS_URL is set and a process-local store otherwise.
func newTokenStore(ctx context.Context, cfg *configs.AppConfig) (identity.TokenStore, func()) {
	if cfg.RedisURL == "" {
		logx.Warn("REDIS_URL not set, reset tokens and revocations are kept in memory")
		return identity.NewMemoryTokenStore(), func() {}
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logx.Fatal(err, "Invalid REDIS_URL")
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		logx.Fatal(err, "Failed to connect to redis")
	}

	return identity.NewRedisTokenStore(client), func() {
		if err := client.Close(); err != nil {
			logx.Error(err, "redis close failed")
		}
	}
}

// newMailer uses SendGrid when an API key is configured and logs mails otherwise.
func newMailer(cfg *configs.AppConfig) (mail.Mailer, error) {
	if cfg.SendgridAPIKey == "" {
		logx.Warn("SENDGRID_API_KEY not set, mails are written to the log")
		return mail.NewConsoleMailer(), nil
	}

	from, err := mail.ParseFrom(cfg.MailFrom)
	if err != nil {
		return nil, err
	}
	return mail.NewSendgridMailer(cfg.SendgridAPIKey, from), nil
}
