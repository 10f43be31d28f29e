// Package sesion owns the register session of a terminal: which caja is
// selected, its open apertura, and the closing workflow. State changes only
// through the transition methods of Maquina.
package sesion

import (
	"bersapos/internal/dto"

	"github.com/shopspring/decimal"
)

type Estado int

const (
	SinSeleccion Estado = iota
	SeleccionadaSinTurno
	Abierta
	CierrePrevio
)

func (e Estado) String() string {
	switch e {
	case SinSeleccion:
		return "sin_seleccion"
	case SeleccionadaSinTurno:
		return "seleccionada_sin_turno"
	case Abierta:
		return "abierta"
	case CierrePrevio:
		return "cierre_previo"
	default:
		return "desconocido"
	}
}

// CajaRef identifies the selected register.
type CajaRef struct {
	ID     string
	Nombre string
}

// Snapshot is an immutable view of the machine. Apertura is set in Abierta
// and CierrePrevio; Resumen and MontoFinalSugerido only in CierrePrevio.
type Snapshot struct {
	Estado             Estado
	Caja               *CajaRef
	Apertura           *dto.AperturaResponse
	Resumen            *dto.ResumenPrevioResponse
	MontoFinalSugerido decimal.Decimal
	// Ocupado is true while a backend call started by a transition is pending.
	Ocupado bool
	// Error is the last recoverable failure, cleared by the next transition.
	Error error
}
