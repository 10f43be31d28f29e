// Package realtime carries register and catalog events between terminals.
// The backend publishes after commit and fans out per sucursal over a
// websocket; each terminal holds one connection and dispatches what it
// receives to independently registered handlers.
package realtime

import (
	"encoding/json"
	"fmt"
	"time"
)

// Tipo discriminates an Evento.
type Tipo string

const (
	CajaAbierta         Tipo = "CAJA_ABIERTA"
	CajaCerrada         Tipo = "CAJA_CERRADA"
	ProductoCreado      Tipo = "PRODUCTO_CREADO"
	ProductoActualizado Tipo = "PRODUCTO_ACTUALIZADO"
	ProductoEliminado   Tipo = "PRODUCTO_ELIMINADO"
	StockActualizado    Tipo = "STOCK_ACTUALIZADO"
	VentaRegistrada     Tipo = "VENTA_REGISTRADA"
	VentaAnulada        Tipo = "VENTA_ANULADA"

	// Reconexion never travels on the wire. The client connection dispatches
	// it after a re-dial so consumers re-derive whatever they may have missed.
	Reconexion Tipo = "RECONEXION"
)

var tiposRemotos = map[Tipo]bool{
	CajaAbierta:         true,
	CajaCerrada:         true,
	ProductoCreado:      true,
	ProductoActualizado: true,
	ProductoEliminado:   true,
	StockActualizado:    true,
	VentaRegistrada:     true,
	VentaAnulada:        true,
}

// Evento is the JSON message pushed to terminals. UsuarioID is the acting
// user, used by the session machine to recognise its own echo.
type Evento struct {
	Tipo       Tipo      `json:"tipo"`
	SucursalID string    `json:"sucursal_id"`
	CajaID     string    `json:"caja_id,omitempty"`
	AperturaID string    `json:"apertura_id,omitempty"`
	UsuarioID  string    `json:"usuario_id,omitempty"`
	ProductoID string    `json:"producto_id,omitempty"`
	VentaID    string    `json:"venta_id,omitempty"`
	Fecha      time.Time `json:"fecha"`
}

func (e Evento) EsCaja() bool { return e.Tipo == CajaAbierta || e.Tipo == CajaCerrada }

func (e Evento) EsVenta() bool { return e.Tipo == VentaRegistrada || e.Tipo == VentaAnulada }

// EsCatalogo reports whether the event only invalidates product or stock reads.
func (e Evento) EsCatalogo() bool {
	switch e.Tipo {
	case ProductoCreado, ProductoActualizado, ProductoEliminado, StockActualizado:
		return true
	}
	return false
}

// Decodificar parses one wire message. Unknown types are rejected so a newer
// backend cannot inject RECONEXION or anything the handlers do not expect.
func Decodificar(data []byte) (Evento, error) {
	var e Evento
	if err := json.Unmarshal(data, &e); err != nil {
		return Evento{}, fmt.Errorf("evento inválido: %w", err)
	}
	if !tiposRemotos[e.Tipo] {
		return Evento{}, fmt.Errorf("tipo de evento desconocido: %q", e.Tipo)
	}
	if e.SucursalID == "" {
		return Evento{}, fmt.Errorf("evento %s sin sucursal_id", e.Tipo)
	}
	return e, nil
}
