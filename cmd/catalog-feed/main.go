// catalog-feed pages through storefront catalog listings from the command
// line, using the same list sessions and session cache a storefront view
// would.
//
// Usage:
//
//	catalog-feed [global options] <command> [command options]
//
// Commands:
//
//	browse      print the items of one listing, page by page
//	dashboard   load the first page of several feeds side by side
//	views       list the available listing views
//
// Configuration comes from the environment (CATALOG_BASE_URL, REDIS_ADDR,
// LOG_LEVEL, ...); global flags override it.
//
// Examples:
//
//	catalog-feed browse --view category --scope C1 --search vitamin --pages 2
//	catalog-feed dashboard --feed new --feed sale --sort newest
//	REDIS_ADDR=localhost:6379 catalog-feed browse --view search --search aspirin
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/Sternrassler/catalog-feed/pkg/cache"
	"github.com/Sternrassler/catalog-feed/pkg/config"
	"github.com/Sternrassler/catalog-feed/pkg/logging"
	"github.com/Sternrassler/catalog-feed/pkg/metrics"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
)

// Version can be injected with -ldflags "-X main.Version=...".
var Version = "0.1.0-dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := createApp(os.Stdout).Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// createApp builds the CLI. Listing output goes to out.
func createApp(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:    "catalog-feed",
		Usage:   "page through storefront catalog listings",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "base-url",
				Usage: "catalog service base URL (overrides CATALOG_BASE_URL)",
			},
			&cli.StringFlag{
				Name:  "redis-addr",
				Usage: "Redis address for the session cache (overrides REDIS_ADDR)",
			},
			&cli.StringFlag{
				Name:  "metrics-addr",
				Usage: "serve Prometheus metrics on this address (overrides METRICS_ADDR)",
			},
		},
		Commands: []*cli.Command{
			browseCommand(out),
			dashboardCommand(out),
			viewsCommand(out),
		},
	}
}

// loadConfig reads the environment, applies global flag overrides and
// configures logging.
func loadConfig(cmd *cli.Command) (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	if v := cmd.String("base-url"); v != "" {
		cfg.BaseURL = v
	}
	if v := cmd.String("redis-addr"); v != "" {
		cfg.RedisAddr = v
	}
	if v := cmd.String("metrics-addr"); v != "" {
		cfg.MetricsAddr = v
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	if cfg.BaseURL == "" {
		return config.Config{}, fmt.Errorf("catalog base URL is required (CATALOG_BASE_URL or --base-url)")
	}

	logging.Setup(cfg.Logging())
	return cfg, nil
}

// openStore returns the session cache for one CLI run. The returned close
// function clears the session's entries.
func openStore(ctx context.Context, cfg config.Config) (*cache.Manager, func(), error) {
	logger := logging.NewLogger("catalog-feed")

	if cfg.RedisAddr == "" {
		backend := cache.NewMemoryBackend()
		store := cache.NewManager(backend)
		return store, func() { _ = store.Clear(context.Background()) }, nil
	}

	rc := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
	if err := rc.Ping(ctx).Err(); err != nil {
		rc.Close()
		return nil, nil, fmt.Errorf("connect to redis at %s: %w", cfg.RedisAddr, err)
	}

	backend := cache.NewRedisBackend(rc, cache.NewSessionID(), cfg.SessionTTL)
	store := cache.NewManager(backend)
	sessionLogger := logging.NewSessionLogger("list-cache", backend.SessionID())
	logger.Info().Str("addr", cfg.RedisAddr).Str("session_id", backend.SessionID()).Msg("Connected to Redis")

	return store, func() {
		if err := store.Clear(context.Background()); err != nil {
			sessionLogger.Warn().Err(err).Msg("Failed to clear session cache")
		} else {
			sessionLogger.Debug().Msg("Session cache cleared")
		}
		rc.Close()
	}, nil
}

// startMetrics serves metrics in the background when an address is set.
func startMetrics(ctx context.Context, cfg config.Config) {
	if cfg.MetricsAddr == "" {
		return
	}
	go func() {
		if err := metrics.Serve(ctx, cfg.MetricsAddr); err != nil {
			log.Error().Err(err).Str("addr", cfg.MetricsAddr).Msg("Metrics server failed")
		}
	}()
}
