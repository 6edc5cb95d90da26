package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/marketpulse/market-scraper/internal/analysis"
	"github.com/marketpulse/market-scraper/internal/api"
	"github.com/marketpulse/market-scraper/internal/browser"
	"github.com/marketpulse/market-scraper/internal/config"
	"github.com/marketpulse/market-scraper/internal/database"
	"github.com/marketpulse/market-scraper/internal/events"
	"github.com/marketpulse/market-scraper/internal/parser"
	"github.com/marketpulse/market-scraper/internal/scraper"
	"github.com/marketpulse/market-scraper/internal/storage"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database connection (optional)
	var db *database.DB
	if cfg.Database.Enabled {
		db, err = database.New(ctx, database.Config{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			Database: cfg.Database.Name,
			MaxConns: cfg.Database.MaxConns,
		})
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		if err := db.EnsureSchema(ctx); err != nil {
			logger.Error("failed to prepare schema", "error", err)
			os.Exit(1)
		}
	}

	// Redis connection (optional)
	var publisher *events.Publisher
	if cfg.Redis.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Error("failed to connect to Redis", "error", err)
			os.Exit(1)
		}
		publisher = events.NewPublisher(redisClient, logger)
	}

	// Browser starts lazily on the first scrape.
	browserOpts := browser.DefaultOptions()
	browserOpts.Headless = cfg.Browser.Headless
	browserOpts.NavTimeout = cfg.Browser.NavTimeout
	browserOpts.MaxNavAttempts = cfg.Browser.NavAttempts
	browserOpts.Locale = cfg.Browser.Locale
	browserOpts.TimezoneID = cfg.Browser.TimezoneID
	browserManager := browser.NewManager(browserOpts, logger)
	defer browserManager.Shutdown()

	registry := parser.DefaultRegistry()
	scrapeService := scraper.NewService(browserManager, registry, scraper.Config{
		ListingLimit: cfg.Scraper.ListingLimit,
		Scroll: browser.ScrollConfig{
			MaxIterations:   cfg.Scraper.ScrollBudget,
			StagnationLimit: cfg.Scraper.StagnationLimit,
			SettleDelay:     cfg.Scraper.SettleDelay,
		},
		RateLimitMin: cfg.Scraper.RateLimitMin,
		RateLimitMax: cfg.Scraper.RateLimitMax,
	}, logger)
	dispatcher := scraper.NewDispatcher(scrapeService, cfg.Scraper.TaskTimeout, logger)

	var analyzer api.Analyzer
	if cfg.Analyzer.URL != "" {
		analyzer = analysis.NewClient(cfg.Analyzer.URL)
	}

	var sink api.Sink
	if db != nil {
		sink = db
	} else {
		fileSink, err := storage.NewFileSink(cfg.Storage.Dir)
		if err != nil {
			logger.Error("failed to prepare file sink", "error", err)
			os.Exit(1)
		}
		sink = fileSink
	}
	var announcer api.Announcer
	if publisher != nil {
		announcer = publisher
	}

	handlers := api.NewHandlers(dispatcher, scrapeService, sink, announcer, analyzer, logger)

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.Server.WriteTimeout))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "https://localhost:*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		health := map[string]interface{}{
			"status":       "ok",
			"marketplaces": scrapeService.Marketplaces(),
			"database":     db != nil,
			"events":       publisher != nil,
		}
		json.NewEncoder(w).Encode(health)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/scrape", handlers.Scrape)
		r.Post("/scrape/reviews", handlers.ScrapeReviews)
		r.Get("/marketplaces", handlers.Marketplaces)
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down server...")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", "error", err)
		}
	}()

	logger.Info("server starting", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.ToLower(cfg.Format) == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
