package cobro

import (
	"errors"
	"fmt"

	"bersapos/internal/apierror"

	"github.com/shopspring/decimal"
)

// Payment methods as persisted on each line.
const (
	MetodoEfectivo      = "efectivo"
	MetodoDebito        = "debito"
	MetodoCredito       = "credito"
	MetodoTransferencia = "transferencia"
)

// ErrModoNoSoportado means a mode reached the factory that the calculator
// does not enumerate.
var ErrModoNoSoportado = errors.New("modo de pago no soportado")

// Pago is one payment line of a sale.
type Pago struct {
	Metodo string          `json:"metodo"`
	Monto  decimal.Decimal `json:"monto"`
}

// ConstruirPagos builds the lines to persist. In mixed mode change is always
// returned in cash, so the lines add up to totalAPagar whenever the settlement
// was confirmable. An empty result means "not ready to confirm".
func ConstruirPagos(totalAPagar decimal.Decimal, modo ModoPago, efectivo, debito decimal.Decimal) ([]Pago, error) {
	totalAPagar = noNegativo(totalAPagar)
	efectivo = noNegativo(efectivo)
	debito = noNegativo(debito)

	switch modo {
	case ModoEfectivo, ModoDebito, ModoCredito, ModoTransferencia:
		if totalAPagar.IsZero() {
			return []Pago{}, nil
		}
		return []Pago{{Metodo: string(modo), Monto: totalAPagar}}, nil
	case ModoMixto:
		pagos := make([]Pago, 0, 2)
		enDebito := decimal.Min(debito, totalAPagar)
		enEfectivo := decimal.Min(efectivo, totalAPagar.Sub(enDebito))
		if enEfectivo.IsPositive() {
			pagos = append(pagos, Pago{Metodo: MetodoEfectivo, Monto: enEfectivo})
		}
		if enDebito.IsPositive() {
			pagos = append(pagos, Pago{Metodo: MetodoDebito, Monto: enDebito})
		}
		return pagos, nil
	default:
		return nil, apierror.Programacion(fmt.Sprintf("modo de pago %q sin líneas de pago", modo), ErrModoNoSoportado)
	}
}

// SumarPagos adds every line amount.
func SumarPagos(pagos []Pago) decimal.Decimal {
	total := decimal.Zero
	for _, p := range pagos {
		total = total.Add(p.Monto)
	}
	return total
}

// ValidarPagos checks that submitted lines are consistent with the declared
// mode and add up exactly to totalAPagar.
func ValidarPagos(modo ModoPago, pagos []Pago, totalAPagar decimal.Decimal) error {
	if !modo.Valido() {
		return apierror.Validacion(fmt.Sprintf("modo de pago inválido: %q", modo))
	}
	if len(pagos) == 0 {
		return apierror.Validacion("la venta no tiene pagos")
	}
	vistos := make(map[string]bool, len(pagos))
	for _, p := range pagos {
		if !p.Monto.IsPositive() {
			return apierror.Validacion("los pagos deben ser mayores a cero")
		}
		if vistos[p.Metodo] {
			return apierror.Validacion("medio de pago repetido: " + p.Metodo)
		}
		vistos[p.Metodo] = true
		if modo == ModoMixto {
			if p.Metodo != MetodoEfectivo && p.Metodo != MetodoDebito {
				return apierror.Validacion("el pago mixto solo admite efectivo y débito")
			}
		} else if p.Metodo != string(modo) {
			return apierror.Validacion(fmt.Sprintf("pago %s no corresponde al modo %s", p.Metodo, modo))
		}
	}
	if suma := SumarPagos(pagos); !suma.Equal(totalAPagar) {
		return apierror.Validacion(fmt.Sprintf("los pagos (%s) no cuadran con el total a pagar (%s)", suma, totalAPagar))
	}
	return nil
}
