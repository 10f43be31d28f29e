package checkout

import (
	"bersapos/internal/cobro"
	"bersapos/internal/dto"

	"github.com/shopspring/decimal"
)

// Recibo is the receipt shown after a confirmed sale.
type Recibo struct {
	VentaID        string
	Numero         int
	Folio          string
	Fecha          string
	Items          []dto.ItemVentaResponse
	Modo           cobro.ModoPago
	Pagos          []cobro.Pago
	Total          decimal.Decimal
	AjusteRedondeo decimal.Decimal
	TotalAPagar    decimal.Decimal
	Vuelto         decimal.Decimal
	Documento      Documento
	ConflictoStock bool
}

// nuevoRecibo projects the backend response. Folio falls back to the last six
// characters of the sale id and TotalAPagar to Total + AjusteRedondeo.
func nuevoRecibo(v *dto.VentaResponse, cobroFinal cobro.EstadoCobro) *Recibo {
	folio := v.Folio
	if folio == "" {
		folio = v.ID
		if len(folio) > 6 {
			folio = folio[len(folio)-6:]
		}
	}
	totalAPagar := v.Total.Add(v.AjusteRedondeo)
	if v.TotalAPagar != nil {
		totalAPagar = *v.TotalAPagar
	}
	pagos := make([]cobro.Pago, 0, len(v.Pagos))
	for _, p := range v.Pagos {
		pagos = append(pagos, cobro.Pago{Metodo: p.Metodo, Monto: p.Monto})
	}
	modo := cobro.ModoPago(v.Modo)
	if modo == "" {
		modo = cobroFinal.Modo
	}
	return &Recibo{
		VentaID:        v.ID,
		Numero:         v.Numero,
		Folio:          folio,
		Fecha:          v.CreatedAt,
		Items:          v.Items,
		Modo:           modo,
		Pagos:          pagos,
		Total:          v.Total,
		AjusteRedondeo: v.AjusteRedondeo,
		TotalAPagar:    totalAPagar,
		Vuelto:         cobroFinal.Vuelto,
		Documento:      documentoDesde(v.Documento),
		ConflictoStock: v.ConflictoStock,
	}
}
