package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rewired-gh/slotscope/internal/config"
	"github.com/rewired-gh/slotscope/internal/loader"
	"github.com/rewired-gh/slotscope/internal/logger"
	"github.com/rewired-gh/slotscope/internal/notify"
	"github.com/rewired-gh/slotscope/internal/server"
	"github.com/rewired-gh/slotscope/internal/storage"
)

var configPath = flag.String("config", "configs/config.yaml", "Path to configuration file")

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Configuration loaded from %s", *configPath)

	snapshots, err := storage.New(
		cfg.Cache.SnapshotsPerStore,
		cfg.Cache.SnapshotDBPath,
	)
	if err != nil {
		logger.Fatal("Failed to initialize snapshot storage: %v", err)
	}
	defer func() {
		if err := snapshots.Close(); err != nil {
			logger.Error("Failed to close snapshot storage: %v", err)
		}
	}()

	loaderClient := loader.New(cfg.Stores, snapshots, loader.Config{
		Timeout:        cfg.Loader.Timeout,
		MaxRetries:     cfg.Loader.MaxRetries,
		RetryDelayBase: cfg.Loader.RetryDelayBase,
	})

	var notifyClient *notify.Client
	if cfg.Telegram.Enabled {
		notifyClient, err = notify.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelayBase)
		if err != nil {
			logger.Fatal("Failed to initialize Telegram client: %v", err)
		}
		logger.Info("Telegram client initialized successfully")
	} else {
		logger.Debug("Telegram notifications disabled")
	}

	srv := server.New(cfg.Server, loaderClient, cfg.DuplicatePolicy())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, cleaning up...")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error: %v", err)
		}
		cancel()
	}()

	if cfg.Loader.RefreshInterval > 0 {
		go runRefreshLoop(ctx, loaderClient, notifyClient, cfg.Loader.RefreshInterval)
	} else {
		logger.Debug("Background refresh disabled")
	}

	logger.Info("Starting dashboard (stores: %d, refresh_interval: %v, duplicate_policy: %s)",
		len(cfg.Stores),
		cfg.Loader.RefreshInterval,
		cfg.DuplicatePolicy(),
	)

	if err := srv.Start(); err != nil {
		logger.Fatal("Server failed: %v", err)
	}
	logger.Info("Service stopped")
}

// runRefreshLoop periodically drops cached tables and re-fetches every store,
// alerting on the first failure of a sequence and on recovery.
func runRefreshLoop(ctx context.Context, loaderClient *loader.Client, notifyClient *notify.Client, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	consecutiveFailures := make(map[string]int)

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			logger.Debug("Starting scheduled refresh cycle")
			start := time.Now()
			for _, store := range loaderClient.Stores() {
				loaderClient.Invalidate(store)
				if _, err := loaderClient.Load(ctx, store); err != nil {
					consecutiveFailures[store]++
					logger.Error("Refresh failed for %s: %v", store, err)
					if consecutiveFailures[store] == 1 && notifyClient != nil {
						if sendErr := notifyClient.SendLoadFailure(store, err); sendErr != nil {
							logger.Warn("Failed to send failure notification: %v", sendErr)
						}
					}
					continue
				}
				if n := consecutiveFailures[store]; n > 0 {
					if notifyClient != nil {
						if sendErr := notifyClient.SendRecovery(store, n); sendErr != nil {
							logger.Warn("Failed to send recovery notification: %v", sendErr)
						}
					}
					consecutiveFailures[store] = 0
				}
			}
			logger.Info("Refresh cycle completed in %v", time.Since(start))
		}
	}
}
