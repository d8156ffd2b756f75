package main

import (
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/samber/lo"

	"github.com/brookreader/brook/app/cfg"
	"github.com/brookreader/brook/app/database"
	"github.com/brookreader/brook/app/feed"
	"github.com/brookreader/brook/app/sync"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was shown, exit gracefully
		return
	}

	logLevel := slog.LevelInfo
	if appCfg.Debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("Starting brook", "version", appCfg.Version, "db", appCfg.DBPath)

	if err := os.MkdirAll(filepath.Dir(appCfg.DBPath), 0o755); err != nil {
		slog.Error("Failed to create database directory", "error", err)
		os.Exit(1)
	}

	db, err := database.NewConnection(appCfg.DBPath, appCfg.WorkerCount)
	if err != nil {
		slog.Error("Failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Database ready", "schema_version", version, "dirty", dirty)

	feedRepo := database.NewFeedRepository(db)
	entryRepo := database.NewEntryRepository(db)

	parser := feed.NewParser()
	extractor := feed.NewContentExtractor()
	httpClient := &http.Client{Timeout: appCfg.NetworkTimeout}

	coordinator := sync.NewCoordinator(feedRepo, entryRepo, parser, extractor,
		httpClient, appCfg.UserAgent, appCfg.NetworkTimeout)

	worker := sync.NewWorker(coordinator, appCfg.FlashDuration)
	worker.Start()
	defer worker.Stop()

	go drainEvents(worker.Events())

	var tick <-chan time.Time
	if appCfg.TickInterval > 0 {
		ticker := time.NewTicker(appCfg.TickInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	refreshAll := func() {
		feeds, err := feedRepo.ListFeeds()
		if err != nil {
			slog.Error("Failed to list feeds", "error", err)
			return
		}
		if len(feeds) == 0 {
			return
		}
		ids := lo.Map(feeds, func(f database.Feed, _ int) int64 { return f.ID })
		if err := worker.Enqueue(sync.RefreshAllCommand{FeedIDs: ids}); err != nil {
			slog.Warn("Skipping refresh", "error", err)
		}
	}

	refreshAll()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	slog.Info("brook started", "tick_interval", appCfg.TickInterval)

	for {
		select {
		case <-tick:
			refreshAll()
		case sig := <-sigChan:
			slog.Info("Shutting down", "signal", sig.String())
			return
		}
	}
}

// drainEvents logs synchronization outcomes. An interactive front end would
// apply these to a reader session instead.
func drainEvents(events <-chan sync.Event) {
	for ev := range events {
		switch ev := ev.(type) {
		case sync.FeedRefreshed:
			slog.Info("Feed refreshed", "feed_id", ev.FeedID, "new_entries", ev.NewEntries,
				"duration", ev.Duration)
		case sync.BatchRefreshed:
			slog.Info("Batch refresh complete", "attempted", ev.Attempted,
				"succeeded", ev.Succeeded, "failed", len(ev.Failures),
				"duration", ev.Duration.Round(time.Millisecond))
		case sync.SubscribeFailed:
			slog.Error("Subscribe failed", "url", ev.URL, "error", ev.Err)
		case sync.CommandFailed:
			slog.Error("Command failed", "error", ev.Err)
		}
	}
}
