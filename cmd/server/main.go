package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/gridline/bot-engine/internal/bot"
	"github.com/gridline/bot-engine/internal/config"
	"github.com/gridline/bot-engine/internal/feed"
	"github.com/gridline/bot-engine/internal/ledger"
	"github.com/gridline/bot-engine/internal/market"
	"github.com/gridline/bot-engine/internal/metrics"
	"github.com/gridline/bot-engine/internal/notify"
	"github.com/gridline/bot-engine/internal/risk"
	"github.com/gridline/bot-engine/internal/state"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("configuration invalid", "err", err)
		os.Exit(1)
	}

	pair, err := market.ParsePair(cfg.Pair)
	if err != nil {
		slog.Error("invalid trading pair", "pair", cfg.Pair, "err", err)
		os.Exit(1)
	}

	// --- State repository ---
	var repo state.Repository
	var cleanup []func()

	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)

		pg := state.NewPostgresRepository(pool)
		if err := pg.EnsureSchema(context.Background()); err != nil {
			slog.Error("schema setup failed", "err", err)
			os.Exit(1)
		}
		repo = pg
		slog.Info("connected to PostgreSQL")

		// Wrap with Redis read-through cache if configured.
		if cfg.RedisURL != "" {
			opt, err := redis.ParseURL(cfg.RedisURL)
			if err != nil {
				slog.Error("invalid REDIS_URL", "err", err)
				os.Exit(1)
			}
			rdb := redis.NewClient(opt)
			cleanup = append(cleanup, func() { rdb.Close() })
			repo = state.NewCachedRepository(repo, rdb, cfg.CacheTTL)
			slog.Info("Redis snapshot cache enabled", "ttl", cfg.CacheTTL)
		}
	} else {
		slog.Warn("DATABASE_URL not set, using in-memory repository (state will not persist)")
		repo = state.NewMemoryRepository()
	}

	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- Trading limits ---
	limiter := risk.NewLimiter(
		decimal.NewFromFloat(cfg.MinNotional),
		decimal.NewFromFloat(cfg.MaxNotional),
		cfg.MaxOpenPositions,
		decimal.NewFromFloat(cfg.MaxExposureRatio),
	)

	// --- Notifications ---
	var notifier ledger.Notifier
	webhook := notify.NewWebhook(cfg.WebhookURL, cfg.BotName)
	if webhook.Enabled() {
		notifier = webhook
		slog.Info("webhook notifications enabled")
	}

	// --- WebSocket hub and bot registry ---
	hub := bot.NewHub(cfg.BotName)
	mgr := bot.NewManager(repo, limiter, notifier, hub, pair.Symbol)
	hub.Bind(mgr)
	go hub.Run()

	// The default bot exists from boot so a fresh UI has something to
	// watch before any command arrives.
	mgr.Get(cfg.BotName)

	// --- Price feed ---
	var src feed.Source
	switch cfg.FeedMode {
	case "poll":
		src = feed.NewPoller(pair.Symbol, cfg.FeedURL, cfg.FeedInterval)
		slog.Info("feed: polling spot prices", "url", cfg.FeedURL, "interval", cfg.FeedInterval)
	default:
		src = feed.NewSimulator(pair.Symbol, decimal.NewFromFloat(cfg.SimStart), cfg.SimVol, cfg.FeedInterval)
		slog.Info("feed: simulated random walk", "start", cfg.SimStart, "volatility", cfg.SimVol)
	}

	feedCtx, stopFeed := context.WithCancel(context.Background())
	defer stopFeed()

	ticks := make(chan feed.Tick, 64)
	go func() {
		if err := src.Run(feedCtx, ticks); err != nil && feedCtx.Err() == nil {
			slog.Error("feed stopped", "err", err)
		}
	}()
	go func() {
		for {
			select {
			case <-feedCtx.Done():
				return
			case tick := <-ticks:
				mgr.OnTick(tick)
			}
		}
	}()

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	// CORS middleware for frontend cross-origin requests.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", cfg.CORSAllowOrigin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if req.Method == "OPTIONS" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, req)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"bot-engine"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// WebSocket endpoint: status fan-out and bot commands.
		r.Get("/ws", hub.HandleWS)

		// Read-only bot queries.
		r.Get("/bots", mgr.ListBots)
		r.Get("/bots/{botID}", mgr.GetBot)
		r.Get("/bots/{botID}/trades", mgr.GetTrades)
		r.Get("/bots/{botID}/positions", mgr.GetPositions)
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("bot-engine listening", "port", cfg.Port, "pair", pair.Symbol)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	if webhook.Enabled() {
		webhook.Send(fmt.Sprintf("engine online: %s on %s", cfg.BotName, pair.Symbol))
	}

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down bot-engine...")
	stopFeed()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "err", err)
	}

	// Final snapshots survive the restart.
	mgr.Shutdown(ctx)
	fmt.Println("bot-engine stopped")
}
