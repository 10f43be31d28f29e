package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bersapos/internal/config"
	"bersapos/internal/infra"
	"bersapos/internal/realtime"
	"bersapos/internal/repository"
	"bersapos/internal/router"
	"bersapos/internal/worker"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	// Structured logger: console in development, JSON in production
	if cfg.Env != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	if cfg.JWTSecret == "" {
		log.Fatal().Msg("JWT_SECRET is required")
	}

	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	if err := infra.RunMigrations(db); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	rdb, err := infra.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Realtime: services publish to Redis; every instance relays the channel
	// into its own hub.
	hub := realtime.NewHub()
	go hub.Run(ctx)
	go func() {
		if err := realtime.Reenviar(ctx, rdb, cfg.RealtimeCanal, hub); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("realtime relay stopped")
		}
	}()

	// Worker handlers are wired here (composition root) so that the pool
	// has full access to all infrastructure dependencies.
	ventaRepo := repository.NewVentaRepository(db)
	tickets := worker.NewTicketWorker(ventaRepo, cfg.PDFStoragePath, cfg.NombreComercio)
	pool := worker.NewPool(rdb, map[string]worker.Handler{"ticket": tickets.Process})
	pool.Start(ctx, cfg.WorkerPoolSize)

	// Tickets that died during a previous outage get another chance.
	if n, err := worker.ReencolarTickets(ctx, rdb, 100); err != nil {
		log.Warn().Err(err).Msg("failed to requeue dead tickets")
	} else if n > 0 {
		log.Info().Int("tickets", n).Msg("dead tickets requeued")
	}

	r, err := router.New(cfg, db, rdb, hub)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build router")
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM
	go func() {
		log.Info().Msgf("bersapos backend listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server…")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("forced shutdown")
	}
	log.Info().Msg("server exited")
}
