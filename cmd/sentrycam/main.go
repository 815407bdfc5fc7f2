// Package main provides the sentrycam entry point: a single-camera
// motion-triggered security monitor.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sentrycam/sentrycam/internal/api"
	"github.com/sentrycam/sentrycam/internal/bus"
	"github.com/sentrycam/sentrycam/internal/capture"
	"github.com/sentrycam/sentrycam/internal/config"
	"github.com/sentrycam/sentrycam/internal/events"
	"github.com/sentrycam/sentrycam/internal/monitor"
	"github.com/sentrycam/sentrycam/internal/motion"
	"github.com/sentrycam/sentrycam/internal/notify"
	"github.com/sentrycam/sentrycam/internal/recording"
)

const (
	exitOK          = 0
	exitFailure     = 1
	exitCaptureOpen = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", *configPath, "error", err)
		return exitFailure
	}

	setupLogging(cfg)
	slog.Info("Starting security monitor",
		"name", cfg.System.Name,
		"window_start", cfg.Monitoring.StartHour,
		"window_end", cfg.Monitoring.EndHour,
	)

	if err := os.MkdirAll(cfg.System.StoragePath, 0755); err != nil {
		slog.Error("Failed to create storage directory", "path", cfg.System.StoragePath, "error", err)
		return exitFailure
	}

	// Shutdown token shared by the capture loop and the scheduler
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eventBus, err := bus.New(bus.Config{Host: cfg.Bus.Host, Port: cfg.Bus.Port}, slog.Default())
	if err != nil {
		slog.Error("Failed to start event bus", "error", err)
		return exitFailure
	}
	defer eventBus.Stop()

	// Session history is best-effort; the monitor runs without it
	var store *events.Store
	if store, err = events.Open(cfg.System.Database); err != nil {
		slog.Warn("Event store unavailable, continuing without history", "error", err)
		store = nil
	} else {
		defer store.Close()
		if err := store.Attach(eventBus); err != nil {
			slog.Warn("Failed to attach event store to bus", "error", err)
		}
	}

	var notifier recording.Notifier
	if cfg.NotificationsEnabled() {
		notifier = notify.NewTelegram(notify.Config{
			BotToken: cfg.Telegram.BotToken,
			ChatID:   cfg.Telegram.ChatID,
			TopicID:  cfg.Telegram.TopicID,
			APIBase:  cfg.Telegram.APIBase,
		})
	} else {
		slog.Warn("Telegram credentials not configured, alerts disabled")
	}

	window := recording.MonitoringWindow{
		Start: cfg.Monitoring.StartHour,
		End:   cfg.Monitoring.EndHour,
	}

	controller := recording.NewController(recording.ControllerConfig{
		StoragePath: cfg.System.StoragePath,
		Window:      window,
		GracePeriod: time.Duration(cfg.Recording.GracePeriodSeconds) * time.Second,
		FPS:         cfg.Recording.FPS,
		Container:   cfg.Recording.Container,
	}, recording.NewFFmpegSink, notifier, eventBus)

	scheduler := recording.NewRetentionScheduler(
		cfg.System.StoragePath,
		cfg.Retention.Days,
		cfg.Retention.RunHour,
		eventBus,
	)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		scheduler.Run(ctx)
	}()

	if cfg.API.Enabled {
		server := api.NewServer(cfg, controller, scheduler, store)
		if err := server.AttachBus(eventBus); err != nil {
			slog.Warn("Failed to attach API server to bus", "error", err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := server.Start(ctx); err != nil {
				slog.Error("API server error", "error", err)
			}
		}()
	}

	var source capture.FrameSource
	switch cfg.Camera.Type {
	case "http":
		source = capture.NewHTTPSource(cfg.Camera.Source, cfg.Camera.FPS)
	default:
		source = capture.NewFFmpegSource(cfg.Camera.Source, cfg.Camera.FPS, cfg.Camera.Width)
	}

	if err := source.Open(ctx); err != nil {
		slog.Error("Could not open capture device", "source", cfg.Camera.Source, "error", err)
		stop()
		wg.Wait()
		return exitCaptureOpen
	}

	detector := motion.NewDetector(cfg.Motion.Threshold, cfg.Motion.MinContourArea)
	svc := monitor.New(source, detector, controller, window, eventBus)

	runErr := svc.Run(ctx)

	stop()
	if err := source.Close(); err != nil {
		slog.Warn("Failed to release capture device", "error", err)
	}
	wg.Wait()

	if runErr != nil {
		slog.Error("Capture loop terminated", "error", runErr)
		return exitFailure
	}

	slog.Info("Security monitor stopped")
	return exitOK
}

func setupLogging(cfg *config.Config) {
	level := slog.LevelInfo
	switch cfg.System.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	var handler slog.Handler
	if cfg.System.Logging.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}
	slog.SetDefault(slog.New(handler))
}
