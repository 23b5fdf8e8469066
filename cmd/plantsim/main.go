package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codeberg.org/mutker/plantsim/internal/alert"
	"codeberg.org/mutker/plantsim/internal/api"
	"codeberg.org/mutker/plantsim/internal/config"
	"codeberg.org/mutker/plantsim/internal/errors"
	"codeberg.org/mutker/plantsim/internal/logger"
	"codeberg.org/mutker/plantsim/internal/metrics"
	"codeberg.org/mutker/plantsim/internal/pid"
	"codeberg.org/mutker/plantsim/internal/publish"
	"codeberg.org/mutker/plantsim/internal/session"
	"codeberg.org/mutker/plantsim/internal/websocket"
)

const (
	shutdownTimeout   = 5 * time.Second
	readHeaderTimeout = 10 * time.Second
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.LogLevel, logger.IsService())
	logger.Debug().
		Str("listen", cfg.Listen).
		Dur("interval", cfg.Interval).
		Strs("pages", cfg.Pages).
		Msg("Config loaded")

	if err := pid.Write(cfg.PIDFile); err != nil {
		fatal(err, "Failed to write PID file")
	}
	defer func() {
		if err := pid.Remove(cfg.PIDFile); err != nil {
			logger.Error().Err(err).Msg("Failed to remove PID file")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger.Default()); err != nil {
		logError(err, "Simulator stopped with error")
	}

	logger.Info().Msg("Exiting...")
}

// run serves until ctx is canceled. Sinks get their own context, canceled
// only after every session has closed, so no tick is published to a
// stopped sink. extra sinks are appended to the configured ones.
func run(ctx context.Context, cfg *config.Config, log logger.Logger, extra ...session.Sink) error {
	sinkCtx, cancelSinks := context.WithCancel(context.Background())
	defer cancelSinks()

	hub := websocket.NewHub(log.With("component", "websocket"))
	go hub.Run(sinkCtx)

	archive, err := metrics.NewService(cfg.Metrics.Archive(), log.With("component", "archive"))
	if err != nil {
		return err
	}
	defer closeSink("archive", archive.Close)

	sinks := []session.Sink{hub, archive}

	if cfg.MQTT.Enabled {
		publisher, err := publish.Dial(ctx, cfg.MQTT.Publisher(), log.With("component", "mqtt"))
		if err != nil {
			return err
		}
		defer closeSink("mqtt", publisher.Close)

		sinks = append(sinks, publisher)
	}

	if cfg.Monitor {
		log.Info().Msg("Monitor mode activated. Logging every tick...")
		sinks = append(sinks, session.LogSink(log.With("component", "monitor")))
	}
	sinks = append(sinks, extra...)

	manager, err := session.NewManager(session.ManagerConfig{
		Pages:   cfg.Pages,
		Cadence: cfg.Interval,
		Seed:    cfg.Seed,
	},
		session.WithSinks(sinks...),
		session.WithDetector(alert.NewDetector(cfg.Alerts)),
		session.WithLogger(log),
	)
	if err != nil {
		return err
	}

	if err := manager.Open(sinkCtx); err != nil {
		return err
	}
	// Runs before the sink closers and cancelSinks above.
	defer manager.Close()

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           api.NewRouter(api.NewHandler(manager, hub, log.With("component", "api"))),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("listen", cfg.Listen).Int("pages", len(manager.Sessions())).Msg("Serving dashboard")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- errors.New().Wrap(errors.ErrUnavailable, err)
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("Received termination signal.")
	case err := <-serveErr:
		if err != nil {
			return err
		}
	}

	manager.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.New().Wrap(errors.ErrShutdownFailed, err)
	}

	return nil
}

func closeSink(name string, closeFn func() error) {
	if err := closeFn(); err != nil {
		logger.Error().Err(err).Str("sink", name).Msg("Failed to close sink")
	}
}

func fatal(err error, msg string) {
	var appErr errors.Error
	if errors.As(err, &appErr) {
		logger.FatalWithCode(appErr).Msg(msg)
	}
	logger.Fatal().Err(err).Msg(msg)
}

func logError(err error, msg string) {
	var appErr errors.Error
	if errors.As(err, &appErr) {
		logger.ErrorWithCode(appErr).Msg(msg)
		return
	}
	logger.Error().Err(err).Msg(msg)
}
