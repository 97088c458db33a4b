package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/mossy-p/webrtc-relay/config"
	"github.com/mossy-p/webrtc-relay/internal/handlers"
	"github.com/mossy-p/webrtc-relay/internal/metrics"
	"github.com/mossy-p/webrtc-relay/internal/redis"
	"github.com/mossy-p/webrtc-relay/internal/signaling"
)

func main() {
	Execute()
}

// serve runs the relay until ctx is cancelled, then stops accepting
// connections and closes every open channel.
func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	hubCfg := signaling.Config{
		Logger:  logger,
		Metrics: metrics.New(reg),
	}

	// Optional Redis presence mirror
	if cfg.Redis.Enabled() {
		presence, err := redis.Connect(ctx, cfg.Redis, logger)
		if err != nil {
			logger.Error("redis connect", "err", err, "addr", cfg.Redis.Addr())
			return err
		}
		if err := presence.Reset(ctx); err != nil {
			logger.Warn("presence.reset", "err", err)
		}
		presence.Start()
		defer presence.Close()

		hubCfg.Presence = presence
		logger.Info("redis connection established", "addr", cfg.Redis.Addr())
	}

	hub := signaling.NewHub(hubCfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handlers.NewRouter(cfg, logger, hub, reg),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server.listening", "port", cfg.Port, "env", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			logger.Error("server.crash", "err", err)
			return fmt.Errorf("listen on port %s: %w", cfg.Port, err)
		}
	case <-ctx.Done():
	}

	logger.Info("server.shutdown.start")

	shutdownCtx, stop := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server.shutdown", "err", err)
	}

	// Hijacked websocket connections are not tracked by Shutdown. Wait for
	// their disconnects so the final presence updates are queued before the
	// presence worker drains.
	hub.Close()
	drainCtx, cancelDrain := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancelDrain()
	if err := hub.Drain(drainCtx); err != nil {
		logger.Warn("server.shutdown.drain", "err", err, "connections", hub.Connections())
	}

	logger.Info("server.shutdown.complete")
	return nil
}
