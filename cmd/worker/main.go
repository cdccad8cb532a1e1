package main

import (
	"log/slog"
	"os"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/nikhilbhutani/atheer/internal/clips"
	"github.com/nikhilbhutani/atheer/internal/config"
	"github.com/nikhilbhutani/atheer/internal/queue"
	"github.com/nikhilbhutani/atheer/internal/queue/workers"
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

	gen, err := speech.NewFromConfig(cfg)
	if err != nil {
		slog.Error("failed to set up speech generator", "error", err)
		os.Exit(1)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			Concurrency: cfg.Queue.Concurrency,
		},
	)

	registry := queue.NewHandlersRegistry()

	// Register workers
	speechWorker := workers.NewSpeechWorker(
		gen,
		clips.NewRedisStore(rdb, cfg.History.ClipTTL),
		queue.NewResultStore(rdb, cfg.History.ClipTTL),
	)
	registry.Register(queue.TypeSpeechGenerate, asynq.HandlerFunc(speechWorker.ProcessTask))

	slog.Info("starting worker", "concurrency", cfg.Queue.Concurrency, "tts_backend", cfg.TTS.Backend)
	if err := srv.Run(registry.Mux()); err != nil {
		slog.Error("worker error", "error", err)
		os.Exit(1)
	}
}
