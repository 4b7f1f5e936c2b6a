package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Waesta/Wapos-sub011/internal/connectivity"
	"github.com/Waesta/Wapos-sub011/internal/events"
	"github.com/Waesta/Wapos-sub011/internal/logger"
	"github.com/Waesta/Wapos-sub011/internal/models"
	"github.com/Waesta/Wapos-sub011/internal/offline"
	"github.com/Waesta/Wapos-sub011/internal/syncengine"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	var cfg models.AgentConfig
	flag.StringVar(&cfg.ServerAddr, "s", envOr("SERVER_ADDRESS", "http://localhost:8080"), "sync server address")
	flag.StringVar(&cfg.SQLitePath, "f", envOr("SQLITE_PATH", "wapos-agent.db"), "offline store path")
	flag.StringVar(&cfg.LogLevel, "l", envOr("LOG_LEVEL", "info"), "log level")
	flag.DurationVar(&cfg.ProbeInterval, "probe-interval", envDurationOr("PROBE_INTERVAL", connectivity.DefaultProbeInterval), "connectivity probe interval")
	flag.DurationVar(&cfg.ProbeTimeout, "probe-timeout", envDurationOr("PROBE_TIMEOUT", connectivity.DefaultProbeTimeout), "connectivity probe timeout")
	showQueue := flag.Bool("queue", false, "print the offline queue and exit")
	flag.Parse()

	zlog, err := logger.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer zlog.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := offline.Open(cfg.SQLitePath)
	if err != nil {
		return err
	}
	defer store.Close()

	if *showQueue {
		return printQueue(ctx, store)
	}

	bus := events.NewBus()
	monitor := connectivity.NewMonitor(cfg, bus, zlog)
	client := resty.New().SetTimeout(30 * time.Second)
	engine := syncengine.New(store, client, bus, zlog, cfg.ServerAddr)

	// All bus subscriptions are taken before the monitor starts probing;
	// the bus drops events that have no subscriber, so a later subscribe
	// could miss the very first offline-to-online transition.
	cacheTransitions := bus.SubscribeConnectivity()
	cycles := bus.SubscribeSyncCycles()

	go monitor.Run(ctx)
	go engine.Run(ctx)
	go refreshCachesOnReconnect(ctx, cacheTransitions, client, store, cfg.ServerAddr, zlog)

	pending, err := store.PendingCount(ctx)
	if err != nil {
		return err
	}
	zlog.Info("agent started",
		zap.String("server", cfg.ServerAddr),
		zap.String("store", cfg.SQLitePath),
		zap.Int("pending", pending))
	for {
		select {
		case <-ctx.Done():
			return nil
		case summary := <-cycles:
			zlog.Info("cycle summary",
				zap.Int("synced", summary.Synced),
				zap.Int("failed", summary.Failed),
				zap.Int("rejected", summary.Rejected),
				zap.Int("pending", summary.Pending))
		}
	}
}

// referenceFeeds maps each local cache to the server route that feeds it
// and the field in the response envelope holding the rows.
var referenceFeeds = []struct {
	cache, path, field string
}{
	{"products", "/api/v1/products", "products"},
	{"customers", "/api/v1/customers", "customers"},
	{"categories", "/api/v1/categories", "categories"},
}

// refreshCachesOnReconnect repopulates the reference caches every time the
// agent comes back online, so the register's catalog stays current for the
// next offline stretch.
func refreshCachesOnReconnect(ctx context.Context, transitions <-chan events.ConnectivityChanged, client *resty.Client, store *offline.Store, serverAddr string, zlog *zap.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-transitions:
			if !ev.IsOnline || ev.WasOnline {
				continue
			}
			for _, feed := range referenceFeeds {
				if err := refreshCache(ctx, client, store, serverAddr, feed.path, feed.field, feed.cache); err != nil {
					zlog.Warn("cache refresh failed",
						zap.String("cache", feed.cache),
						zap.Error(err))
				}
			}
		}
	}
}

func refreshCache(ctx context.Context, client *resty.Client, store *offline.Store, serverAddr, path, field, cache string) error {
	resp, err := client.R().SetContext(ctx).Get(serverAddr + path)
	if err != nil {
		return err
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(resp.Body(), &envelope); err != nil {
		return err
	}
	var rows []json.RawMessage
	if raw, ok := envelope[field]; ok {
		if err := json.Unmarshal(raw, &rows); err != nil {
			return err
		}
	}
	return store.Cache(ctx, cache, rows)
}

// printQueue shows what is still waiting to sync and what needs a human,
// oldest first, then exits.
func printQueue(ctx context.Context, store *offline.Store) error {
	for _, mutationType := range []string{models.MUTATION_SALE, models.MUTATION_ORDER, models.MUTATION_CUSTOMER} {
		pending, err := store.ListPending(ctx, mutationType)
		if err != nil {
			return err
		}
		for _, m := range pending {
			fmt.Printf("pending  %-8s %s enqueued=%s attempts=%d\n",
				m.MutationType, m.ExternalID, m.EnqueuedAt.Format(time.RFC3339), m.AttemptCount)
		}
	}

	rejected, err := store.ListRejected(ctx)
	if err != nil {
		return err
	}
	for _, m := range rejected {
		fmt.Printf("rejected %-8s %s enqueued=%s reason=%q\n",
			m.MutationType, m.ExternalID, m.EnqueuedAt.Format(time.RFC3339), m.LastError)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
