package cobro

import "github.com/shopspring/decimal"

// ModoPago is the tender mode chosen by the operator.
type ModoPago string

const (
	ModoEfectivo      ModoPago = "efectivo"
	ModoDebito        ModoPago = "debito"
	ModoCredito       ModoPago = "credito"
	ModoTransferencia ModoPago = "transferencia"
	// ModoMixto splits the payment between cash and debit only.
	ModoMixto ModoPago = "mixto"
)

// Modos lists every tender mode the calculator and the line factory handle.
var Modos = []ModoPago{ModoEfectivo, ModoDebito, ModoCredito, ModoTransferencia, ModoMixto}

func (m ModoPago) Valido() bool {
	for _, v := range Modos {
		if v == m {
			return true
		}
	}
	return false
}

// Entrada is what the operator has typed so far.
type Entrada struct {
	Total    decimal.Decimal
	Modo     ModoPago
	Efectivo decimal.Decimal
	Debito   decimal.Decimal
}

// EstadoCobro is the fully resolved settlement. Never persisted.
type EstadoCobro struct {
	Modo        ModoPago        `json:"modo"`
	Total       decimal.Decimal `json:"total"`
	Ajuste      decimal.Decimal `json:"ajuste"`
	TotalAPagar decimal.Decimal `json:"total_a_pagar"`
	Pagado      decimal.Decimal `json:"pagado"`
	Vuelto      decimal.Decimal `json:"vuelto"`
	Falta       decimal.Decimal `json:"falta"`
	Confirmable bool            `json:"confirmable"`
	// Efectivo and Debito are the clamped amounts the lines are built from.
	Efectivo decimal.Decimal `json:"efectivo"`
	Debito   decimal.Decimal `json:"debito"`
}

// Calculadora turns an Entrada into an EstadoCobro using one rounding table.
type Calculadora struct {
	tabla Tabla
}

func NewCalculadora(tabla Tabla) Calculadora {
	return Calculadora{tabla: tabla}
}

// AjusteRedondeo is the adjustment for a total under the given mode: only
// pure cash is rounded, card and transfer rails settle the exact total.
func (c Calculadora) AjusteRedondeo(total decimal.Decimal, modo ModoPago) decimal.Decimal {
	if modo != ModoEfectivo {
		return decimal.Zero
	}
	return c.tabla.Ajuste(total)
}

// Calcular is pure; call it again on every input change.
func (c Calculadora) Calcular(e Entrada) EstadoCobro {
	total := noNegativo(e.Total)
	efectivo := noNegativo(e.Efectivo)
	debito := noNegativo(e.Debito)

	ajuste := c.AjusteRedondeo(total, e.Modo)
	aPagar := total.Add(ajuste)

	var pagado decimal.Decimal
	switch e.Modo {
	case ModoEfectivo:
		pagado = efectivo
	case ModoMixto:
		pagado = efectivo.Add(debito)
	default:
		pagado = aPagar
	}

	confirmable := true
	if e.Modo == ModoEfectivo || e.Modo == ModoMixto {
		confirmable = pagado.GreaterThanOrEqual(aPagar)
	}

	return EstadoCobro{
		Modo:        e.Modo,
		Total:       total,
		Ajuste:      ajuste,
		TotalAPagar: aPagar,
		Pagado:      pagado,
		Vuelto:      noNegativo(pagado.Sub(aPagar)),
		Falta:       noNegativo(aPagar.Sub(pagado)),
		Confirmable: confirmable,
		Efectivo:    efectivo,
		Debito:      debito,
	}
}
