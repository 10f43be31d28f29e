// Package cobro resolves how much is owed at checkout and how it is paid:
// CLP cash rounding, the settlement state recomputed on every keystroke, and
// the payment lines persisted with a sale.
package cobro

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var diez = decimal.NewFromInt(10)

// Tabla maps (total mod 10) to the adjustment applied to a pure cash total.
// Index 0 must be 0.
type Tabla [10]int64

var (
	// TablaCercana eliminates 1 and 5 peso coins rounding to the nearest
	// step, remainder 5 left untouched.
	TablaCercana = Tabla{0, -1, -2, 2, 1, 0, -1, -2, 2, 1}

	// TablaSuperior always rounds up to the next multiple of ten.
	TablaSuperior = Tabla{0, 9, 8, 7, 6, 5, 4, 3, 2, 1}
)

const (
	PoliticaCercana  = "cercana"
	PoliticaSuperior = "superior"
)

// TablaPorPolitica resolves the configured rounding policy.
func TablaPorPolitica(politica string) (Tabla, error) {
	switch politica {
	case "", PoliticaCercana:
		return TablaCercana, nil
	case PoliticaSuperior:
		return TablaSuperior, nil
	default:
		return Tabla{}, fmt.Errorf("política de redondeo desconocida: %q", politica)
	}
}

// Ajuste returns the amount to add to total so that a cash payment can be
// settled without 1 and 5 peso coins. Fractional totals are rounded to whole
// pesos first and the adjustment absorbs the fraction.
func (t Tabla) Ajuste(total decimal.Decimal) decimal.Decimal {
	total = noNegativo(total)
	pesos := total.Round(0)
	resto := pesos.Mod(diez).IntPart()
	objetivo := pesos.Add(decimal.NewFromInt(t[resto]))
	return objetivo.Sub(total)
}

func noNegativo(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
