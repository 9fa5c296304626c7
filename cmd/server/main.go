package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"neurovoice/internal/analysis"
	"neurovoice/internal/console"
	"neurovoice/internal/platform/config"
	"neurovoice/internal/platform/logger"
	"neurovoice/internal/platform/metrics"
	"neurovoice/internal/playback"
	"neurovoice/internal/session"

	"github.com/go-chi/chi/v5"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = config.Load()
	cfg := config.FromEnv()

	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	met := metrics.New()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	engine := playback.NewBeepEngine()
	go engine.Run(ctx, cfg.PlaybackTick)

	api := analysis.NewClient(cfg.APIBaseURL, cfg.RequestTimeout, log)
	player := playback.NewAdapter(engine, log, met)
	pipeline := session.NewPipeline(api, player, log, met)
	h := console.NewHandler(ctx, pipeline, player, log, met, console.Options{
		MaxUploadBytes: cfg.MaxUploadBytes,
		WaveformBars:   cfg.WaveformBars,
	})

	r := chi.NewRouter()
	r.Use(logger.RequestLogger(log))
	r.Use(metrics.RequestMiddleware(met))
	r.Method(http.MethodGet, "/metrics", met.Handler())
	r.Route("/session", h.Routes)

	addr := ":" + cfg.Port
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	log.Info("server starting",
		"port", cfg.Port,
		"api_base_url", cfg.APIBaseURL,
		"request_timeout", cfg.RequestTimeout.String(),
		"playback_tick", cfg.PlaybackTick.String(),
		"log_level", cfg.LogLevel,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown signal received, draining connections")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}
