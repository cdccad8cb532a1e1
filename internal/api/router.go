package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/nikhilbhutani/atheer/internal/api/handlers"
	"github.com/nikhilbhutani/atheer/internal/api/middleware"
	"github.com/nikhilbhutani/atheer/internal/auth"
	"github.com/nikhilbhutani/atheer/internal/clips"
	"github.com/nikhilbhutani/atheer/internal/config"
	"github.com/nikhilbhutani/atheer/internal/history"
	"github.com/nikhilbhutani/atheer/internal/preview"
	"github.com/nikhilbhutani/atheer/internal/queue"
)

// Deps are the long-lived services the HTTP layer routes to. Redis, Queue and
// Results are optional.
type Deps struct {
	Config    *config.Config
	Redis     *redis.Client
	Generator handlers.Generator
	Clips     clips.Store
	History   *history.Store
	Previews  *preview.Cache
	Sessions  *auth.Sessions
	Queue     queue.Enqueuer
	Results   queue.Results
}

type Router struct {
	mux  *chi.Mux
	deps Deps
}

func NewRouter(deps Deps) *Router {
	return &Router{
		mux:  chi.NewRouter(),
		deps: deps,
	}
}

// Setup registers middleware and routes. ctx bounds background goroutines
// owned by the middleware and the idle-session janitor.
func (rt *Router) Setup(ctx context.Context) http.Handler {
	r := rt.mux
	cfg := rt.deps.Config

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.Server.AllowedOrigins))

	rl := middleware.NewRateLimiter(ctx, cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst)
	r.Use(rl.Limit)

	go history.Janitor(ctx, time.Minute, cfg.Auth.SessionTTL, rt.deps.History, rt.deps.Previews)

	// Health endpoints (no auth)
	health := handlers.NewHealthHandler(rt.deps.Redis, cfg.TTS.Backend)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)

	retryAfter := cfg.Retry.InitialDelay

	sessionH := handlers.NewSessionHandler(rt.deps.Sessions, rt.deps.History, rt.deps.Previews)
	speechH := handlers.NewSpeechHandler(rt.deps.Generator, rt.deps.Clips, rt.deps.History, rt.deps.Queue, rt.deps.Results, retryAfter)
	historyH := handlers.NewHistoryHandler(rt.deps.History)
	voiceH := handlers.NewVoiceHandler(rt.deps.Previews, retryAfter)
	clipH := handlers.NewClipHandler(rt.deps.Clips)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/sessions", sessionH.Create)
		r.Get("/voices", voiceH.List)

		r.Group(func(r chi.Router) {
			r.Use(rt.deps.Sessions.Authenticate)

			r.Delete("/sessions/current", sessionH.End)

			r.Route("/speech", func(r chi.Router) {
				r.Post("/", speechH.Generate)
				r.Post("/jobs", speechH.Enqueue)
				r.Get("/jobs/{id}", speechH.Job)
			})

			r.Route("/history", func(r chi.Router) {
				r.Get("/", historyH.List)
				r.Delete("/", historyH.Clear)
				r.Delete("/{id}", historyH.Delete)
			})

			r.Post("/voices/{key}/preview", voiceH.Preview)
			r.Delete("/voices/{key}/preview", voiceH.InvalidatePreview)

			r.Get("/clips/{handle}", clipH.Serve)
		})
	})

	return r
}
