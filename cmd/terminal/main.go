package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bersapos/internal/checkout"
	"bersapos/internal/cobro"
	"bersapos/internal/config"
	"bersapos/internal/gateway"
	"bersapos/internal/infra"
	"bersapos/internal/readcache"
	"bersapos/internal/realtime"
	"bersapos/internal/sesion"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.LoadTerminal()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.Env != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	if cfg.SucursalID == "" || cfg.UsuarioID == "" {
		log.Fatal().Msg("SUCURSAL_ID and USUARIO_ID are required")
	}

	tabla, err := cobro.TablaPorPolitica(cfg.PoliticaRedondeo)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid rounding policy")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Read cache: shared Redis when reachable, process memory otherwise.
	var cache readcache.Almacen = readcache.NewMemoria(cfg.CacheTTL)
	if cfg.RedisURL != "" {
		if rdb, err := infra.NewRedis(cfg.RedisURL); err != nil {
			log.Warn().Err(err).Msg("redis unavailable, using in-memory read cache")
		} else {
			cache = readcache.NewRedis(rdb, cfg.CacheTTL)
		}
	}

	cb := infra.NewCircuitBreaker(infra.DefaultCBConfig("backend"))
	gw := gateway.NewCacheado(gateway.NewCliente(cfg.BackendURL, cfg.Token, cfg.TimeoutHTTP, cb), cache)

	bus := realtime.NewBus()
	readcache.Suscribir(bus, cfg.SucursalID, cache)
	con := realtime.NewConexion(realtime.ConexionConfig{
		URL:        cfg.EventosURL,
		Token:      cfg.Token,
		SucursalID: cfg.SucursalID,
		Intervalo:  cfg.ReconexionIntervalo,
	}, bus)
	go func() {
		if err := con.Ejecutar(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("realtime connection stopped")
		}
	}()

	maquina := sesion.NewMaquina(gw, sesion.NewArchivoHints(cfg.HintPath), cfg.SucursalID, cfg.UsuarioID)
	maquina.Escuchar(bus)
	if err := maquina.Restaurar(ctx); err != nil {
		log.Warn().Err(err).Msg("session restore failed")
	}

	saga := checkout.NewSaga(gw, maquina, cobro.NewCalculadora(tabla), cache, cfg.SucursalID)

	c := &consola{gw: gw, maquina: maquina, saga: saga, sucursalID: cfg.SucursalID, out: os.Stdout}
	cancelar := maquina.Observar(func(s sesion.Snapshot) {
		if s.Error != nil {
			log.Warn().Str("estado", s.Estado.String()).Str("error", s.Error.Error()).Msg("sesion")
			return
		}
		log.Info().Str("estado", s.Estado.String()).Msg("sesion")
	})
	defer cancelar()

	c.imprimirEstado(maquina.Actual())
	c.ejecutar(ctx, os.Stdin)
	log.Info().Msg("terminal exited")
}
