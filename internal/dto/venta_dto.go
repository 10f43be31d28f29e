package dto

import "github.com/shopspring/decimal"

// ─── Request DTOs ────────────────────────────────────────────────────────────

type ItemVentaRequest struct {
	ProductoID     string          `json:"producto_id"     validate:"required,uuid"`
	Cantidad       int             `json:"cantidad"        validate:"required,min=1"`
	PrecioUnitario decimal.Decimal `json:"precio_unitario" validate:"gt=0"`
}

type PagoRequest struct {
	Metodo string          `json:"metodo" validate:"required,oneof=efectivo debito credito transferencia"`
	Monto  decimal.Decimal `json:"monto"  validate:"gt=0"`
}

type ReceptorRequest struct {
	Rut         string `json:"rut"          validate:"required,max=12"`
	RazonSocial string `json:"razon_social" validate:"required"`
	Giro        string `json:"giro"         validate:"required"`
	Direccion   string `json:"direccion"    validate:"required"`
}

type DocumentoRequest struct {
	Tipo     string           `json:"tipo"     validate:"required,oneof=boleta factura"`
	Receptor *ReceptorRequest `json:"receptor" validate:"required_if=Tipo factura"`
}

type RegistrarVentaRequest struct {
	CajaID     string             `json:"caja_id"     validate:"required,uuid"`
	AperturaID string             `json:"apertura_id" validate:"required,uuid"`
	Modo       string             `json:"modo"        validate:"required,oneof=efectivo debito credito transferencia mixto"`
	Items      []ItemVentaRequest `json:"items"       validate:"required,min=1,dive"`
	Pagos      []PagoRequest      `json:"pagos"       validate:"required,min=1,dive"`
	Documento  DocumentoRequest   `json:"documento"`
}

type AnularVentaRequest struct {
	Motivo string `json:"motivo" validate:"required,min=5"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type ItemVentaResponse struct {
	ProductoID     string          `json:"producto_id"`
	Producto       string          `json:"producto"`
	Cantidad       int             `json:"cantidad"`
	PrecioUnitario decimal.Decimal `json:"precio_unitario"`
	Subtotal       decimal.Decimal `json:"subtotal"`
}

type VentaResponse struct {
	ID             string              `json:"id"`
	Numero         int                 `json:"numero"`
	Folio          string              `json:"folio,omitempty"`
	CajaID         string              `json:"caja_id"`
	AperturaID     string              `json:"apertura_id"`
	Modo           string              `json:"modo"`
	Items          []ItemVentaResponse `json:"items"`
	Pagos          []PagoRequest       `json:"pagos"`
	Total          decimal.Decimal     `json:"total"`
	AjusteRedondeo decimal.Decimal     `json:"ajuste_redondeo"`
	// TotalAPagar may be omitted by older backends; clients fall back to
	// Total + AjusteRedondeo.
	TotalAPagar    *decimal.Decimal `json:"total_a_pagar,omitempty"`
	Documento      DocumentoRequest `json:"documento"`
	Estado         string           `json:"estado"`
	ConflictoStock bool             `json:"conflicto_stock"`
	CreatedAt      string           `json:"created_at"`
}
