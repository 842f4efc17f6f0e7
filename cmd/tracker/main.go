package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/avelik/polymarket-data/internal/config"
	"github.com/avelik/polymarket-data/internal/database"
	"github.com/avelik/polymarket-data/internal/store"
	"github.com/avelik/polymarket-data/internal/tracker"
	"github.com/avelik/polymarket-data/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/tracker.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	logger.Info("starting tracker",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
		"instance_id", cfg.Instance.ID,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Optional Postgres mirror of journal rows.
	var opts []tracker.Option
	var mirror *store.Mirror
	if cfg.Database.Enabled {
		logger.Info("connecting to database",
			"host", cfg.Database.Host,
			"port", cfg.Database.Port,
			"database", cfg.Database.Name,
		)
		pool, err := database.Connect(ctx, cfg.Database)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		mirror = store.NewMirror(store.MirrorConfig{
			InstanceID:    cfg.Instance.ID,
			BatchSize:     cfg.Database.BatchSize,
			FlushInterval: cfg.Database.FlushInterval,
			BufferSize:    cfg.Database.BufferSize,
		}, pool, logger)
		if err := mirror.Start(ctx); err != nil {
			logger.Error("failed to start database mirror", "error", err)
			os.Exit(1)
		}
		opts = append(opts, tracker.WithRowSink(mirror))
	}

	svc := tracker.New(*cfg, logger, opts...)
	if err := svc.Start(ctx); err != nil {
		logger.Error("failed to start tracker", "error", err)
		os.Exit(1)
	}

	healthServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Health.Port),
		Handler: newHealthHandler(svc, mirror),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting health server", "port", cfg.Health.Port)
		if err := healthServer.ListenAndServe(); err != http.ErrServerClosed {
			return fmt.Errorf("health server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		healthServer.Shutdown(shutdownCtx)
		if err := svc.Stop(shutdownCtx); err != nil {
			logger.Error("tracker shutdown error", "error", err)
		}
		if mirror != nil {
			if err := mirror.Stop(shutdownCtx); err != nil {
				logger.Error("mirror shutdown error", "error", err)
			}
		}
		return nil
	})

	logger.Info("tracker running",
		"run_dir", svc.RunDir(),
		"health_url", fmt.Sprintf("http://localhost:%d/health", cfg.Health.Port),
	)

	if err := g.Wait(); err != nil {
		logger.Error("tracker exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("tracker stopped")
}

// newLogger builds the slog logger from config: stdout always, plus a
// rotating file when configured.
func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var out io.Writer = os.Stdout
	if cfg.File != "" {
		out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		})
	}

	return slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}))
}

// newHealthHandler exposes component counters and the tracked windows.
func newHealthHandler(svc *tracker.Service, mirror *store.Mirror) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		stats := svc.Stats()

		health := struct {
			Status     string         `json:"status"`
			Components map[string]any `json:"components"`
		}{
			Status:     "healthy",
			Components: make(map[string]any),
		}

		health.Components["feed"] = map[string]any{
			"connected":  stats.Feed.Connected,
			"assets":     stats.Feed.Assets,
			"reconnects": stats.Feed.Reconnects,
			"messages":   stats.Feed.Messages,
			"dropped":    stats.Feed.Dropped,
		}
		if !stats.Feed.Connected {
			health.Status = "degraded"
		}

		health.Components["stream"] = map[string]any{
			"tracked":   stats.Stream.Tracked,
			"events":    stats.Stream.Events,
			"forwarded": stats.Stream.Forwarded,
		}

		health.Components["journal"] = map[string]any{
			"rows":           stats.Rows,
			"paired":         stats.Journal.Paired,
			"dropped_stale":  stats.Journal.DroppedStale,
			"dropped_spaced": stats.Journal.DroppedSpaced,
			"filtered":       stats.Journal.Filtered,
			"deduped":        stats.Journal.Deduped,
			"out_of_order":   stats.Journal.OutOfOrder,
			"run_dir":        stats.RunDir,
		}

		slots := make(map[string]string, len(stats.Rotation.Slots))
		tracking := 0
		for mt, state := range stats.Rotation.Slots {
			slots[string(mt)] = string(state)
			if state != "no-market" {
				tracking++
			}
		}
		health.Components["rotation"] = map[string]any{
			"slots":        slots,
			"rotations":    stats.Rotation.Rotations,
			"last_refresh": stats.Rotation.LastRefresh.UTC().Format(time.RFC3339),
		}
		if tracking == 0 {
			health.Status = "degraded"
		}

		if mirror != nil {
			ms := mirror.Stats()
			health.Components["database"] = map[string]any{
				"inserts":   ms.Inserts,
				"conflicts": ms.Conflicts,
				"errors":    ms.Errors,
				"queued":    ms.Queued,
			}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(health)
	})

	mux.HandleFunc("/debug/windows", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"current": svc.CurrentWindows(),
			"next":    svc.NextWindows(),
		})
	})

	return mux
}
