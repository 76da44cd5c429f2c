package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/marcauberer/particulate-matter-api/internal/api"
	"github.com/marcauberer/particulate-matter-api/internal/browser"
	"github.com/marcauberer/particulate-matter-api/internal/chart"
	"github.com/marcauberer/particulate-matter-api/internal/chartdata"
	"github.com/marcauberer/particulate-matter-api/internal/config"
	"github.com/marcauberer/particulate-matter-api/internal/feed"
	"github.com/marcauberer/particulate-matter-api/internal/journal"
	"github.com/marcauberer/particulate-matter-api/internal/netutil"
	"github.com/marcauberer/particulate-matter-api/internal/notify"
	"github.com/marcauberer/particulate-matter-api/internal/snapshot"
	"github.com/marcauberer/particulate-matter-api/internal/viewer"
)

func main() {
	cfg, err := config.LoadServer()
	if err != nil {
		slog.Error("failed to load server config", "error", err)
		os.Exit(1)
	}

	if err := setupLogger(cfg.LogLevel, cfg.LogFile); err != nil {
		if _, writeErr := io.WriteString(os.Stderr, "logger setup failed: "+err.Error()+"\n"); writeErr != nil {
			slog.Debug("logger setup stderr write failed", "error", writeErr)
		}
		os.Exit(1)
	}

	slog.Info("pm_chart_server config loaded",
		"backend_url", cfg.BackendURL,
		"bind_addr", cfg.BindAddr,
		"request_timeout_ms", cfg.RequestTimeoutMS,
		"port_auto_fallback", cfg.PortAutoFallback,
		"port_candidates", cfg.PortCandidates,
		"log_level", cfg.LogLevel,
		"log_file", cfg.LogFile,
		"snapshot_dir", cfg.SnapshotDir,
		"journal_dir", cfg.JournalDir,
		"cdp_address", cfg.CDPAddress,
		"cdp_port", cfg.CDPPort,
		"alert_url", cfg.AlertURL,
		"alert_limit", cfg.AlertLimit,
	)

	bindAddr, err := netutil.SelectBindAddr(cfg.BindAddr, cfg.PortCandidates, cfg.PortAutoFallback)
	if err != nil {
		slog.Error("failed to select bind address", "preferred", cfg.BindAddr, "error", err)
		os.Exit(1)
	}

	labels, err := chart.LoadLabels(cfg.LabelsFile)
	if err != nil {
		slog.Error("failed to load chart labels", "file", cfg.LabelsFile, "error", err)
		os.Exit(1)
	}

	snapStore, err := snapshot.NewStore(cfg.SnapshotDir)
	if err != nil {
		slog.Error("failed to create snapshot store", "dir", cfg.SnapshotDir, "error", err)
		os.Exit(1)
	}

	slog.Info("snapshot store ready", "dir", snapStore.Dir())

	launcher := browser.NewLauncher(browser.Config{
		CDPAddress: cfg.CDPAddress,
		CDPPort:    cfg.CDPPort,
		Width:      chart.DefaultWidth,
		Height:     chart.DefaultHeight,
		Headless:   true,
	})
	if cfg.LaunchBrowser {
		if err := launcher.Launch(context.Background()); err != nil {
			slog.Error("failed to launch browser", "error", err)
			os.Exit(1)
		}
		defer launcher.Stop()
	}

	deps := viewer.Deps{
		Fetcher:     chartdata.NewClient(cfg.BackendURL, &http.Client{}, time.Duration(cfg.RequestTimeoutMS)*time.Millisecond),
		Labels:      labels,
		HTML:        chart.NewHTMLRenderer(labels, cfg.AssetsHost),
		PNG:         chart.NewPNGRenderer(labels),
		Snapshotter: browser.NewSnapshotter(launcher.Endpoint(), "#"+chart.ContainerID, time.Duration(cfg.SnapshotTimeoutMS)*time.Millisecond),
		Snapshots:   snapStore,
	}

	var broker *feed.Broker
	if cfg.FeedEnabled {
		broker = feed.NewBroker()
		deps.Feed = broker
	}

	if cfg.JournalDir != "" {
		jw := journal.NewWriter(cfg.JournalDir, "requests", 1024, cfg.JournalMaxSizeMB)
		defer func() {
			if err := jw.Close(); err != nil {
				slog.Debug("journal close failed", "error", err)
			}
		}()
		deps.Journal = jw
	}

	if cfg.AlertURL != "" {
		deps.Alerter = notify.NewThreshold(cfg.AlertURL, cfg.AlertLimit, &http.Client{})
	}

	svc := viewer.NewService(deps)
	h := api.NewServer(svc, broker)

	srv := &http.Server{Addr: bindAddr, Handler: h}

	go func() {
		slog.Info("pm_chart_server listening", "addr", bindAddr, "docs", "http://"+bindAddr+"/docs")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("pm_chart_server failed", "error", err)
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("pm_chart_server shutdown failed", "error", err)
	}
}

func setupLogger(level, filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return err
	}

	logWriter := &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    25,
		MaxBackups: 10,
		MaxAge:     14,
		Compress:   true,
	}

	h := slog.NewTextHandler(io.MultiWriter(os.Stdout, logWriter), &slog.HandlerOptions{Level: parseLevel(level)})
	slog.SetDefault(slog.New(h))
	return nil
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
