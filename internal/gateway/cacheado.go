package gateway

import (
	"context"

	"bersapos/internal/dto"
	"bersapos/internal/readcache"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// Cacheado serves the per-caja sale list and the sucursal stock from a read
// cache. The closing preview and every mutation always reach the backend.
type Cacheado struct {
	Gateway
	cache readcache.Almacen
}

func NewCacheado(gw Gateway, cache readcache.Almacen) *Cacheado {
	return &Cacheado{Gateway: gw, cache: cache}
}

func (c *Cacheado) ListarVentasApertura(ctx context.Context, cajaID string) ([]dto.VentaResponse, error) {
	clave := readcache.ClaveVentasCaja(cajaID)
	var ventas []dto.VentaResponse
	if ok, err := c.cache.Obtener(ctx, clave, &ventas); err == nil && ok {
		return ventas, nil
	}
	ventas, err := c.Gateway.ListarVentasApertura(ctx, cajaID)
	if err != nil {
		return nil, err
	}
	c.guardar(ctx, clave, ventas)
	return ventas, nil
}

func (c *Cacheado) StockSucursal(ctx context.Context, sucursalID string) (*dto.StockResponse, error) {
	clave := readcache.ClaveStock(sucursalID)
	var stock dto.StockResponse
	if ok, err := c.cache.Obtener(ctx, clave, &stock); err == nil && ok {
		return &stock, nil
	}
	resp, err := c.Gateway.StockSucursal(ctx, sucursalID)
	if err != nil {
		return nil, err
	}
	c.guardar(ctx, clave, resp)
	return resp, nil
}

// AbrirCaja and CerrarCaja start or end an apertura, so the cached sale list
// of that caja no longer applies.
func (c *Cacheado) AbrirCaja(ctx context.Context, cajaID string, montoInicial decimal.Decimal) (*dto.AperturaResponse, error) {
	resp, err := c.Gateway.AbrirCaja(ctx, cajaID, montoInicial)
	if err == nil {
		c.invalidarCaja(ctx, cajaID)
	}
	return resp, err
}

func (c *Cacheado) CerrarCaja(ctx context.Context, cajaID string, montoFinal decimal.Decimal, motivo *string) error {
	err := c.Gateway.CerrarCaja(ctx, cajaID, montoFinal, motivo)
	if err == nil {
		c.invalidarCaja(ctx, cajaID)
	}
	return err
}

func (c *Cacheado) guardar(ctx context.Context, clave string, v any) {
	if err := c.cache.Guardar(ctx, clave, v); err != nil {
		log.Warn().Err(err).Str("clave", clave).Msg("gateway: no se pudo cachear")
	}
}

func (c *Cacheado) invalidarCaja(ctx context.Context, cajaID string) {
	if err := c.cache.InvalidarResumenCaja(ctx, cajaID); err != nil {
		log.Warn().Err(err).Str("caja_id", cajaID).Msg("gateway: invalidar caja")
	}
}
