package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	_ "github.com/lib/pq"

	"github.com/chirpwatch/chirpwatch/internal/api"
	"github.com/chirpwatch/chirpwatch/internal/broadcast"
	"github.com/chirpwatch/chirpwatch/internal/config"
	"github.com/chirpwatch/chirpwatch/internal/enrichment"
	"github.com/chirpwatch/chirpwatch/internal/logging"
	"github.com/chirpwatch/chirpwatch/internal/metrics"
	"github.com/chirpwatch/chirpwatch/internal/models"
	"github.com/chirpwatch/chirpwatch/internal/poller"
	"github.com/chirpwatch/chirpwatch/internal/registry"
	"github.com/chirpwatch/chirpwatch/internal/server"
	"github.com/chirpwatch/chirpwatch/internal/store"
	"github.com/chirpwatch/chirpwatch/internal/twitter"
)

func main() {
	// Optional local overrides; absence is not an error.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to init logger", "error", err)
		os.Exit(1)
	}

	logger.Info("starting chirpwatch")

	watchlist, db := openWatchlistStore(cfg.Store, logger)
	if db != nil {
		defer db.Close()
	}

	reg := registry.New()
	if watchlist != nil {
		entries, err := watchlist.Load()
		if err != nil {
			logger.Error("failed to load watchlist", "error", err)
			os.Exit(1)
		}
		reg.Load(entries)
	}
	logger.Info("watchlist loaded", "accounts", reg.Len())

	if cfg.Twitter.BearerToken == "" {
		logger.Warn("TWITTER_BEARER_TOKEN not set, accounts will report a configuration error")
	}

	collector, err := metrics.NewCollector()
	if err != nil {
		logger.Error("failed to init metrics", "error", err)
		os.Exit(1)
	}

	broadcaster := broadcast.New(logging.Component(logger, "broadcast"), collector)

	var summarizer enrichment.Summarizer
	if cfg.OpenAI.APIKey != "" {
		summarizer = enrichment.NewOpenAISummarizer(cfg.OpenAI.APIKey, cfg.OpenAI.Model, logging.Component(logger, "enrichment"))
		logger.Info("post summaries enabled", "model", cfg.OpenAI.Model)
	}

	client := twitter.NewClient(cfg.Twitter.BearerToken, logging.Component(logger, "twitter"))
	resolver := twitter.NewResolver(client, logging.Component(logger, "twitter"))

	watcher := poller.New(poller.Options{
		Registry:           reg,
		Resolver:           resolver,
		Fetcher:            client,
		Broadcaster:        broadcaster,
		Summarizer:         summarizer,
		Collector:          collector,
		Clock:              clockwork.NewRealClock(),
		Interval:           cfg.Twitter.PollInterval,
		TokenConfigured:    cfg.Twitter.BearerToken != "",
		CanPersistAccounts: watchlist != nil,
		Logger:             logging.Component(logger, "poller"),
	})

	pollCtx, stopPolling := context.WithCancel(context.Background())
	go watcher.Run(pollCtx)

	handler := api.NewHandler(watcher, reg, watchlist, broadcaster, cfg.Auth, logging.Component(logger, "api"))

	mux := http.NewServeMux()
	api.SetupRoutes(mux, handler, collector)

	srv := server.New(cfg.Server, logger, collector.InstrumentHandler(mux))

	go func() {
		if err := srv.Start(); err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	logger.Info("chirpwatch started", "port", cfg.Server.Port, "poll_interval", cfg.Twitter.PollInterval)

	waitForSignal(logger)

	logger.Info("shutting down")
	stopPolling()
	broadcaster.Close()
	if err := srv.Shutdown(context.Background()); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	logger.Info("shutdown complete")
}

// openWatchlistStore picks Postgres when DATABASE_URL is set, otherwise the
// YAML file store. A connection failure disables persistence rather than
// preventing startup.
func openWatchlistStore(cfg config.StoreConfig, logger *slog.Logger) (models.WatchlistStore, *sql.DB) {
	if cfg.DatabaseURL == "" {
		logger.Info("using file watchlist store", "path", cfg.WatchlistPath)
		return store.NewFileStore(cfg.WatchlistPath), nil
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to open database, persistence disabled", "error", err)
		return nil, nil
	}

	if err := db.Ping(); err != nil {
		logger.Error("failed to ping database, persistence disabled", "error", err)
		db.Close()
		return nil, nil
	}

	pg, err := store.NewPostgresStore(db)
	if err != nil {
		logger.Error("failed to prepare watchlist table, persistence disabled", "error", err)
		db.Close()
		return nil, nil
	}

	logger.Info("using postgres watchlist store")
	return pg, db
}

func waitForSignal(logger *slog.Logger) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	sig := <-c
	logger.Info("received signal", "signal", sig.String())
	signal.Stop(c)
	close(c)
}
