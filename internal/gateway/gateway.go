// Package gateway is the terminal's view of the register backend.
package gateway

import (
	"context"

	"bersapos/internal/dto"

	"github.com/shopspring/decimal"
)

// Gateway lists the backend operations the terminal core depends on. Failures
// are *apierror.Error values; AperturaActiva returns (nil, nil) when the caja
// has no open shift.
type Gateway interface {
	ListarCajas(ctx context.Context, sucursalID string) ([]dto.CajaResponse, error)
	AperturaActiva(ctx context.Context, cajaID string) (*dto.AperturaResponse, error)
	AbrirCaja(ctx context.Context, cajaID string, montoInicial decimal.Decimal) (*dto.AperturaResponse, error)
	ResumenPrevio(ctx context.Context, cajaID string) (*dto.ResumenPrevioResponse, error)
	CerrarCaja(ctx context.Context, cajaID string, montoFinal decimal.Decimal, motivo *string) error
	RegistrarVenta(ctx context.Context, req dto.RegistrarVentaRequest) (*dto.VentaResponse, error)
	AnularVenta(ctx context.Context, ventaID, motivo string) error
	ListarVentasApertura(ctx context.Context, cajaID string) ([]dto.VentaResponse, error)
	StockSucursal(ctx context.Context, sucursalID string) (*dto.StockResponse, error)
}
