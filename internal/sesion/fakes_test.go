package sesion

import (
	"context"
	"sync"

	"bersapos/internal/dto"
	"bersapos/internal/model"

	"github.com/shopspring/decimal"
)

// ── In-memory gateway ────────────────────────────────────────────────────────

type fakeGateway struct {
	mu       sync.Mutex
	abiertas map[string]*dto.AperturaResponse
	resumen  map[string]*dto.ResumenPrevioResponse

	errActiva  error
	errAbrir   error
	errResumen error
	errCerrar  error

	// bloquear, when set, makes AbrirCaja/CerrarCaja wait until it is closed.
	bloquear chan struct{}
	entrando chan struct{}

	llamadasActiva int
	llamadasAbrir  int
	cierres        []cierreRegistrado
}

type cierreRegistrado struct {
	cajaID string
	monto  decimal.Decimal
	motivo *string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		abiertas: make(map[string]*dto.AperturaResponse),
		resumen:  make(map[string]*dto.ResumenPrevioResponse),
	}
}

func (f *fakeGateway) abrir(cajaID, aperturaID string) *dto.AperturaResponse {
	f.mu.Lock()
	defer f.mu.Unlock()
	ap := &dto.AperturaResponse{ID: aperturaID, CajaID: cajaID, SucursalID: "suc-1", Estado: model.AperturaAbierta}
	f.abiertas[cajaID] = ap
	return ap
}

func (f *fakeGateway) cerrar(cajaID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.abiertas, cajaID)
}

func (f *fakeGateway) esperar() {
	f.mu.Lock()
	b, e := f.bloquear, f.entrando
	f.mu.Unlock()
	if e != nil {
		e <- struct{}{}
	}
	if b != nil {
		<-b
	}
}

func (f *fakeGateway) ListarCajas(_ context.Context, sucursalID string) ([]dto.CajaResponse, error) {
	return []dto.CajaResponse{{ID: "caja-1", Nombre: "Caja 1", SucursalID: sucursalID}}, nil
}

func (f *fakeGateway) AperturaActiva(_ context.Context, cajaID string) (*dto.AperturaResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.llamadasActiva++
	if f.errActiva != nil {
		return nil, f.errActiva
	}
	ap, ok := f.abiertas[cajaID]
	if !ok {
		return nil, nil
	}
	c := *ap
	return &c, nil
}

func (f *fakeGateway) AbrirCaja(_ context.Context, cajaID string, montoInicial decimal.Decimal) (*dto.AperturaResponse, error) {
	f.esperar()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.llamadasAbrir++
	if f.errAbrir != nil {
		return nil, f.errAbrir
	}
	ap := &dto.AperturaResponse{ID: "ap-nueva", CajaID: cajaID, SucursalID: "suc-1", MontoInicial: montoInicial, Estado: model.AperturaAbierta}
	f.abiertas[cajaID] = ap
	c := *ap
	return &c, nil
}

func (f *fakeGateway) ResumenPrevio(_ context.Context, cajaID string) (*dto.ResumenPrevioResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.errResumen != nil {
		return nil, f.errResumen
	}
	r, ok := f.resumen[cajaID]
	if !ok {
		r = &dto.ResumenPrevioResponse{EfectivoEsperado: decimal.Zero}
	}
	return r, nil
}

func (f *fakeGateway) CerrarCaja(_ context.Context, cajaID string, montoFinal decimal.Decimal, motivo *string) error {
	f.esperar()
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.errCerrar != nil {
		return f.errCerrar
	}
	f.cierres = append(f.cierres, cierreRegistrado{cajaID: cajaID, monto: montoFinal, motivo: motivo})
	delete(f.abiertas, cajaID)
	return nil
}

func (f *fakeGateway) RegistrarVenta(context.Context, dto.RegistrarVentaRequest) (*dto.VentaResponse, error) {
	return nil, nil
}

func (f *fakeGateway) AnularVenta(context.Context, string, string) error { return nil }

func (f *fakeGateway) ListarVentasApertura(context.Context, string) ([]dto.VentaResponse, error) {
	return nil, nil
}

func (f *fakeGateway) StockSucursal(context.Context, string) (*dto.StockResponse, error) {
	return nil, nil
}

// ── In-memory hint store ─────────────────────────────────────────────────────

type memHints struct {
	mu      sync.Mutex
	hint    *Hint
	errLeer error
	// alEscribir runs after every Guardar or Borrar.
	alEscribir func()
}

func (m *memHints) Cargar() (Hint, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.errLeer != nil {
		return Hint{}, false, m.errLeer
	}
	if m.hint == nil {
		return Hint{}, false, nil
	}
	return *m.hint, true, nil
}

func (m *memHints) Guardar(h Hint) error {
	m.mu.Lock()
	m.hint = &h
	fn := m.alEscribir
	m.mu.Unlock()
	if fn != nil {
		fn()
	}
	return nil
}

func (m *memHints) Borrar() error {
	m.mu.Lock()
	m.hint = nil
	m.errLeer = nil
	fn := m.alEscribir
	m.mu.Unlock()
	if fn != nil {
		fn()
	}
	return nil
}

func (m *memHints) actual() *Hint {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hint
}
