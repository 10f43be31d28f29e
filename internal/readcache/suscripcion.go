package readcache

import (
	"context"
	"time"

	"bersapos/internal/realtime"

	"github.com/rs/zerolog/log"
)

// Suscribir turns the events of one sucursal into invalidation signals:
// catalog and stock events drop the stock, register and sale events drop the
// sale list of their caja, and a reconnection drops both for every caja since
// anything may have been missed.
func Suscribir(bus *realtime.Bus, sucursalID string, inv Invalidador) *realtime.Suscripcion {
	return bus.Suscribir(func(e realtime.Evento) {
		if e.SucursalID != sucursalID {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		switch {
		case e.Tipo == realtime.Reconexion:
			invalidarStock(ctx, inv, sucursalID)
			if err := inv.InvalidarCajas(ctx); err != nil {
				log.Warn().Err(err).Msg("readcache: invalidar cajas")
			}
		case e.EsCatalogo():
			invalidarStock(ctx, inv, sucursalID)
			invalidarCaja(ctx, inv, e.CajaID)
		case e.EsCaja(), e.EsVenta():
			invalidarCaja(ctx, inv, e.CajaID)
		}
	})
}

func invalidarStock(ctx context.Context, inv Invalidador, sucursalID string) {
	if err := inv.InvalidarStock(ctx, sucursalID); err != nil {
		log.Warn().Err(err).Str("sucursal_id", sucursalID).Msg("readcache: invalidar stock")
	}
}

func invalidarCaja(ctx context.Context, inv Invalidador, cajaID string) {
	if cajaID == "" {
		return
	}
	if err := inv.InvalidarResumenCaja(ctx, cajaID); err != nil {
		log.Warn().Err(err).Str("caja_id", cajaID).Msg("readcache: invalidar caja")
	}
}
