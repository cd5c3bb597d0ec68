package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/scrumdeck/scrumdeck/internal/adapters/http"
	ws "github.com/scrumdeck/scrumdeck/internal/adapters/signal"
	"github.com/scrumdeck/scrumdeck/internal/app"
	"github.com/scrumdeck/scrumdeck/internal/app/orch"
	"github.com/scrumdeck/scrumdeck/internal/config"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Error().Err(err).Msg("failed to load config")
	}

	clock := clockwork.NewRealClock()
	manager := app.NewSessionManager(clock)
	registry := app.NewRegistry()

	o := &orch.Orchestrator{
		Registry: registry,
		Sessions: manager,
		Policy:   app.SimplePolicy{},
	}

	sweeper := &app.Sweeper{
		Manager:  manager,
		Clock:    clock,
		Interval: cfg.SweepInterval,
		TTL:      cfg.IdleTTL,
	}
	go sweeper.Run(ctx)

	limiter := ws.NewJoinRateLimiter(cfg.JoinLimit, cfg.JoinWindow, clock)
	ctl := ws.NewController(o, limiter, cfg.ReadLimit, cfg.SendBuffer)

	r := router.SetupRouter(ctx, cfg, o, ctl)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("scrumdeck server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
