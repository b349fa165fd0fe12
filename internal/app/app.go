package app

import (
	"context"
	"fmt"
	"log"
	nethttp "net/http"
	"os"

	server "stream-rush/server"
	"stream-rush/server/internal/admission"
	servernet "stream-rush/server/internal/net"
	"stream-rush/server/internal/queue"
	"stream-rush/server/internal/session"
	"stream-rush/server/internal/telemetry"
	"stream-rush/server/logging"
	loggingSinks "stream-rush/server/logging/sinks"
)

type Config struct {
	Server server.Config
	Logger telemetry.Logger
}

// Run is the composition root. It constructs the rate limiter,
// cooldown tracker, queue, session machine, hub, and pipeline exactly
// once and hands references down; nothing reaches for ambient
// singletons.
func Run(ctx context.Context, cfg Config) error {
	telemetryLogger := cfg.Logger
	if telemetryLogger == nil {
		telemetryLogger = telemetry.WrapLogger(log.Default())
	}

	fallbackLogger := log.Default()
	if provider, ok := telemetryLogger.(interface{ StandardLogger() *log.Logger }); ok {
		if candidate := provider.StandardLogger(); candidate != nil {
			fallbackLogger = candidate
		}
	}

	logConfig := logging.DefaultConfig()
	namedSinks := []logging.NamedSink{
		{Name: "console", Sink: loggingSinks.NewConsoleSink(os.Stdout, logConfig.Console)},
	}
	if path := cfg.Server.LogJSONPath; path != "" {
		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open json log %s: %w", path, err)
		}
		namedSinks = append(namedSinks, logging.NamedSink{
			Name: "json",
			Sink: loggingSinks.NewJSON(file, logConfig.JSON.FlushInterval),
		})
	}

	clock := logging.SystemClock{}
	router, err := logging.NewRouter(clock, logConfig, namedSinks)
	if err != nil {
		return fmt.Errorf("failed to construct logging router: %w", err)
	}
	defer func() {
		if cerr := router.Close(ctx); cerr != nil {
			telemetryLogger.Printf("failed to close logging router: %v", cerr)
		}
	}()

	metrics := logging.NewMetrics()

	limiter := admission.NewRateLimiter(cfg.Server.RateWindow, cfg.Server.GlobalLimit, cfg.Server.ActorLimit)
	cooldowns := admission.NewCooldownTracker(cfg.Server.Cooldowns())
	gate := admission.NewGate(limiter, cooldowns)
	donationQueue := queue.New(cfg.Server.QueueCapacity, telemetry.WrapMetrics(metrics))
	machine := session.New(session.Config{Now: clock.Now})
	hub := server.NewHub(server.HubConfig{
		Clock:           clock,
		Logger:          telemetryLogger,
		Publisher:       router,
		LivenessTimeout: cfg.Server.LivenessTimeout,
	})
	pipeline := server.NewPipeline(server.PipelineConfig{
		Gate:            gate,
		Queue:           donationQueue,
		Session:         machine,
		Hub:             hub,
		Clock:           clock,
		Logger:          telemetryLogger,
		Publisher:       router,
		ProcessInterval: cfg.Server.ProcessInterval,
		OverlayInterval: cfg.Server.OverlayInterval,
	})

	stop := make(chan struct{})
	go pipeline.RunProcessor(stop)
	go pipeline.RunOverlayBroadcast(stop)
	go pipeline.RunActorSweep(cfg.Server.SweepInterval, stop)
	go hub.RunLivenessSweep(cfg.Server.SweepInterval, stop)
	defer close(stop)

	handler := servernet.NewHTTPHandler(pipeline, servernet.HTTPHandlerConfig{
		AdminToken: cfg.Server.AdminToken,
		Logger:     fallbackLogger,
		Metrics:    metrics,
		Router:     router,
	})

	srv := &nethttp.Server{Addr: cfg.Server.Addr, Handler: handler}
	telemetryLogger.Printf("server listening on %s", srv.Addr)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		srv.Shutdown(context.Background())
		return ctx.Err()
	case err := <-errCh:
		if err != nil && err != nethttp.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	}
}
