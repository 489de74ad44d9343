package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Smeet2005/PHISHSCAN/internal/auth"
	"github.com/Smeet2005/PHISHSCAN/internal/config"
	"github.com/Smeet2005/PHISHSCAN/internal/detect"
	"github.com/Smeet2005/PHISHSCAN/internal/metrics"
	"github.com/Smeet2005/PHISHSCAN/internal/store"
	"github.com/Smeet2005/PHISHSCAN/internal/threatfeed"
	"github.com/Smeet2005/PHISHSCAN/pkg/observability"
	"github.com/Smeet2005/PHISHSCAN/pkg/ratelimit"
)

// FeedRefresher forces a threat-feed sync round.
type FeedRefresher interface {
	Refresh(ctx context.Context) error
}

// Deps are the components the API serves. Syncer, Metrics and Auth may be nil.
type Deps struct {
	Orchestrator *detect.Orchestrator
	Scanner      *detect.Scanner
	Store        store.Store
	Feed         *threatfeed.Store
	Syncer       FeedRefresher
	Shortener    detect.Shortener
	Metrics      *metrics.Collector
	Auth         *auth.APIKeyAuth
	// Quotas are reported on the metrics endpoint, keyed by service name.
	Quotas map[string]*ratelimit.Quota
	Logger *slog.Logger
}

type App struct {
	cfg       *config.Config
	orch      *detect.Orchestrator
	scanner   *detect.Scanner
	store     store.Store
	feed      *threatfeed.Store
	syncer    FeedRefresher
	shortener detect.Shortener
	metrics   *metrics.Collector
	auth      *auth.APIKeyAuth
	quotas    map[string]*ratelimit.Quota
	logger    *slog.Logger
}

func NewApp(cfg *config.Config, deps Deps) *App {
	logger := deps.Logger
	if logger == nil {
		logger = observability.Discard()
	}
	return &App{
		cfg:       cfg,
		orch:      deps.Orchestrator,
		scanner:   deps.Scanner,
		store:     deps.Store,
		feed:      deps.Feed,
		syncer:    deps.Syncer,
		shortener: deps.Shortener,
		metrics:   deps.Metrics,
		auth:      deps.Auth,
		quotas:    deps.Quotas,
		logger:    logger,
	}
}

func (a *App) Router() http.Handler {
	r := chi.NewRouter()

	r.Get(a.cfg.Health.Path, func(w http.ResponseWriter, r *http.Request) { writeText(w, http.StatusOK, "ok\n") })
	if a.cfg.Metrics.Enabled && a.metrics != nil {
		r.Method(http.MethodGet, a.cfg.Metrics.Path, a.metrics.Handler(metrics.HandlerOptions{FeedSize: a.feed.Size, Quotas: a.quotas}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(a.authMiddleware)

		r.Post("/classify", a.classify)
		r.Post("/classify/batch", a.classifyBatch)

		r.Post("/scans", a.createScan)
		r.Get("/scans/latest", a.latestScan)
		r.Get("/scans/{id}", a.getScan)

		r.Get("/settings", a.getSettings)
		r.Put("/settings", a.putSettings)

		r.Get("/feed", a.feedStatus)
		r.Post("/feed/refresh", a.refreshFeed)

		r.Post("/resolve", a.resolve)
		r.Post("/messages", a.postMessage)
		r.Get("/ws", a.messagesWS)
	})

	return r
}

func (a *App) authMiddleware(next http.Handler) http.Handler {
	if a.cfg.Development.DisableAuth || strings.EqualFold(a.cfg.Auth.Type, "none") {
		return next
	}
	if strings.EqualFold(a.cfg.Auth.Type, "api_key") {
		if a.auth == nil {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusServiceUnavailable, map[string]any{
					"error": "api key auth enabled but keys not loaded",
				})
			})
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(a.auth.HeaderName())
			// Browsers cannot set headers on a WebSocket handshake.
			if key == "" && isWebSocketUpgrade(r) {
				key = r.URL.Query().Get("api_key")
			}
			id, ok := a.auth.Identify(key)
			if !ok {
				writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "unauthorized"})
				return
			}
			a.logger.Debug("api: authenticated", "key_id", id, "path", r.URL.Path)
			next.ServeHTTP(w, r)
		})
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "unsupported auth type"})
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeText(w http.ResponseWriter, status int, s string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(s))
}
