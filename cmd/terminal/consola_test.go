package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"bersapos/internal/checkout"
	"bersapos/internal/cobro"
	"bersapos/internal/dto"
	"bersapos/internal/sesion"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubGateway serves one caja with an always-open apertura and accepts sales.
type stubGateway struct {
	ventas []dto.RegistrarVentaRequest
}

func (s *stubGateway) ListarCajas(context.Context, string) ([]dto.CajaResponse, error) {
	return []dto.CajaResponse{{ID: "c1", Nombre: "Caja 1", SucursalID: "s1"}}, nil
}

func (s *stubGateway) AperturaActiva(context.Context, string) (*dto.AperturaResponse, error) {
	return &dto.AperturaResponse{ID: "a1", CajaID: "c1", SucursalID: "s1", Estado: "abierta"}, nil
}

func (s *stubGateway) AbrirCaja(context.Context, string, decimal.Decimal) (*dto.AperturaResponse, error) {
	return nil, nil
}

func (s *stubGateway) ResumenPrevio(context.Context, string) (*dto.ResumenPrevioResponse, error) {
	return &dto.ResumenPrevioResponse{}, nil
}

func (s *stubGateway) CerrarCaja(context.Context, string, decimal.Decimal, *string) error { return nil }

func (s *stubGateway) RegistrarVenta(_ context.Context, req dto.RegistrarVentaRequest) (*dto.VentaResponse, error) {
	s.ventas = append(s.ventas, req)
	total := decimal.Zero
	for _, it := range req.Items {
		total = total.Add(it.PrecioUnitario.Mul(decimal.NewFromInt(int64(it.Cantidad))))
	}
	return &dto.VentaResponse{ID: "venta-000123", Numero: len(s.ventas), Modo: req.Modo, Total: total, Documento: req.Documento}, nil
}

func (s *stubGateway) AnularVenta(context.Context, string, string) error { return nil }

func (s *stubGateway) ListarVentasApertura(context.Context, string) ([]dto.VentaResponse, error) {
	return nil, nil
}

func (s *stubGateway) StockSucursal(context.Context, string) (*dto.StockResponse, error) {
	return &dto.StockResponse{}, nil
}

type memHints struct{ h *sesion.Hint }

func (m *memHints) Cargar() (sesion.Hint, bool, error) {
	if m.h == nil {
		return sesion.Hint{}, false, nil
	}
	return *m.h, true, nil
}
func (m *memHints) Guardar(h sesion.Hint) error { m.h = &h; return nil }
func (m *memHints) Borrar() error               { m.h = nil; return nil }

func newConsola(t *testing.T) (*consola, *stubGateway, *bytes.Buffer) {
	t.Helper()
	gw := &stubGateway{}
	m := sesion.NewMaquina(gw, &memHints{}, "s1", "u1")
	saga := checkout.NewSaga(gw, m, cobro.NewCalculadora(cobro.TablaCercana), nil, "s1")
	out := &bytes.Buffer{}
	return &consola{gw: gw, maquina: m, saga: saga, sucursalID: "s1", out: out}, gw, out
}

func TestConsola_FlujoDeVenta(t *testing.T) {
	c, gw, out := newConsola(t)

	script := strings.Join([]string{
		"seleccionar c1",
		"agregar p1 1991 1 Pan amasado",
		"factura 76123456-7|Comercial SpA|Retail|Av. Uno 123",
		"cotizar efectivo 2000",
		"cobrar efectivo 2000",
		"estado",
		"salir",
		"estado",
	}, "\n")
	c.ejecutar(context.Background(), strings.NewReader(script))

	require.Len(t, gw.ventas, 1)
	req := gw.ventas[0]
	assert.Equal(t, "efectivo", req.Modo)
	assert.Equal(t, "factura", req.Documento.Tipo)
	require.Len(t, req.Pagos, 1)
	assert.Equal(t, "1990", req.Pagos[0].Monto.String())

	s := out.String()
	assert.Contains(t, s, "confirmable: true")
	assert.Contains(t, s, "vuelto: 10")
	assert.Contains(t, s, "Pan amasado")
	assert.Equal(t, 1, strings.Count(s, "estado: abierta"), "commands after salir must not run")
	assert.True(t, c.saga.Carrito().Vacio())
}

func TestConsola_Errores(t *testing.T) {
	c, _, out := newConsola(t)

	c.ejecutar(context.Background(), strings.NewReader("volar\nseleccionar c9\ncobrar cheque\nagregar p1 x 1 Pan\n"))

	s := out.String()
	assert.Contains(t, s, "error (validacion): comando desconocido: volar")
	assert.Contains(t, s, "error (no_encontrado)")
	assert.Contains(t, s, "modo de pago inválido: cheque")
	assert.Contains(t, s, "precio inválido")
}

func TestEntradaCobro(t *testing.T) {
	e, err := entradaCobro([]string{"mixto", "1000", "990"})
	require.NoError(t, err)
	assert.Equal(t, cobro.ModoMixto, e.Modo)
	assert.Equal(t, "1000", e.Efectivo.String())
	assert.Equal(t, "990", e.Debito.String())

	_, err = entradaCobro(nil)
	assert.Error(t, err)
}
