package dto

import "github.com/shopspring/decimal"

// ─── Request DTOs ────────────────────────────────────────────────────────────

type AbrirCajaRequest struct {
	MontoInicial decimal.Decimal `json:"monto_inicial" validate:"min=0"`
}

type CerrarCajaRequest struct {
	MontoFinal decimal.Decimal `json:"monto_final" validate:"min=0"`
	// Motivo is required by the service when the count differs from the
	// expected cash.
	Motivo *string `json:"motivo" validate:"omitempty,max=500"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type CajaResponse struct {
	ID         string `json:"id"`
	Nombre     string `json:"nombre"`
	SucursalID string `json:"sucursal_id"`
}

type AperturaResponse struct {
	ID                string           `json:"id"`
	CajaID            string           `json:"caja_id"`
	SucursalID        string           `json:"sucursal_id"`
	UsuarioAperturaID string           `json:"usuario_apertura_id"`
	FechaApertura     string           `json:"fecha_apertura"`
	MontoInicial      decimal.Decimal  `json:"monto_inicial"`
	UsuarioCierreID   *string          `json:"usuario_cierre_id,omitempty"`
	FechaCierre       *string          `json:"fecha_cierre,omitempty"`
	MontoFinal        *decimal.Decimal `json:"monto_final,omitempty"`
	Diferencia        *decimal.Decimal `json:"diferencia,omitempty"`
	Clasificacion     *string          `json:"clasificacion,omitempty"` // normal | advertencia | critico
	Estado            string           `json:"estado"`
}

// ResumenPrevioResponse is the closing preview. Computed on request from
// finalized sales only; never cached.
type ResumenPrevioResponse struct {
	AperturaID       string                     `json:"apertura_id"`
	MontoInicial     decimal.Decimal            `json:"monto_inicial"`
	TotalVentas      decimal.Decimal            `json:"total_ventas"`
	TotalEfectivo    decimal.Decimal            `json:"total_efectivo"`
	EfectivoEsperado decimal.Decimal            `json:"efectivo_esperado"`
	CantidadVentas   int                        `json:"cantidad_ventas"`
	PorMetodo        map[string]decimal.Decimal `json:"por_metodo"`
}

type StockItem struct {
	ProductoID string `json:"producto_id"`
	Nombre     string `json:"nombre"`
	Stock      int    `json:"stock"`
}

type StockResponse struct {
	SucursalID string      `json:"sucursal_id"`
	Items      []StockItem `json:"items"`
}
