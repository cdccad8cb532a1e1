package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nikhilbhutani/atheer/internal/api"
	"github.com/nikhilbhutani/atheer/internal/auth"
	"github.com/nikhilbhutani/atheer/internal/clips"
	"github.com/nikhilbhutani/atheer/internal/config"
	"github.com/nikhilbhutani/atheer/internal/history"
	"github.com/nikhilbhutani/atheer/internal/preview"
	"github.com/nikhilbhutani/atheer/internal/queue"
	"github.com/nikhilbhutani/atheer/internal/speech"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	gen, err := speech.NewFromConfig(cfg)
	if err != nil {
		slog.Error("failed to set up speech generator", "error", err)
		os.Exit(1)
	}

	deps := api.Deps{
		Config:    cfg,
		Generator: gen,
		Sessions:  auth.NewSessions(cfg.Auth.JWTSecret, cfg.Auth.SessionTTL),
	}

	// Redis connection (optional: without it clips stay in memory and the
	// job endpoints are disabled)
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		slog.Warn("redis unavailable, running with in-memory clips and no background jobs", "error", err)
		rdb.Close()
		deps.Clips = clips.NewMemoryStore()
	} else {
		defer rdb.Close()
		qc := queue.NewClient(cfg.Redis, speech.JobTimeout(cfg))
		defer qc.Close()

		deps.Redis = rdb
		deps.Clips = clips.NewRedisStore(rdb, cfg.History.ClipTTL)
		deps.Queue = qc
		deps.Results = queue.NewResultStore(rdb, cfg.History.ClipTTL)
	}

	deps.History = history.NewStore(deps.Clips, cfg.History.Limit)
	deps.Previews = preview.NewCache(gen, deps.Clips, cfg.Preview.TTL)

	handler := api.NewRouter(deps).Setup(ctx)

	// Generation may sit through several quota waits, so the write timeout
	// covers the whole retry schedule.
	writeTimeout := speech.WorstCase(speech.PolicyFromConfig(cfg.Retry), cfg.TTS.Timeout)

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: writeTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("starting API server", "addr", cfg.Addr(), "tts_backend", cfg.TTS.Backend)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced shutdown", "error", err)
	}

	// Release every clip still owned by a session.
	deps.Previews.Close(shutdownCtx)
	deps.History.Teardown(shutdownCtx)
	slog.Info("server stopped")
}
