package sesion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"bersapos/internal/apierror"
	"bersapos/internal/dto"
	"bersapos/internal/gateway"
	"bersapos/internal/model"
	"bersapos/internal/realtime"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// ErrResultadoDescartado is returned by a transition whose backend call
// finished after the operator dismissed it or a remote close reset the
// machine. The result is dropped without touching state.
var ErrResultadoDescartado = errors.New("resultado descartado")

const timeoutResync = 10 * time.Second

// Maquina is the register session state machine of one terminal.
//
// Backend calls never run under mu. A transition marks the machine Ocupado
// and captures the current epoca; anything that invalidates the pending call
// (remote close, dismissal) bumps epoca so the late result is discarded.
type Maquina struct {
	gw         gateway.Gateway
	hints      HintStore
	sucursalID string
	usuarioID  string

	mu       sync.Mutex
	estado   Estado
	caja     *CajaRef
	apertura *dto.AperturaResponse
	resumen  *dto.ResumenPrevioResponse
	sugerido decimal.Decimal
	ocupado  bool
	epoca    uint64
	err      error
	// confirmando is set while this terminal's own close is in flight, so
	// the CAJA_CERRADA echo of that close is not applied twice.
	confirmando bool

	obsNext int
	obs     map[int]func(Snapshot)

	resyncs sync.WaitGroup
}

func NewMaquina(gw gateway.Gateway, hints HintStore, sucursalID, usuarioID string) *Maquina {
	return &Maquina{
		gw:         gw,
		hints:      hints,
		sucursalID: sucursalID,
		usuarioID:  usuarioID,
		obs:        make(map[int]func(Snapshot)),
	}
}

// Actual returns the current snapshot.
func (m *Maquina) Actual() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// Observar registers fn for every state change. The returned func removes it.
func (m *Maquina) Observar(fn func(Snapshot)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.obsNext++
	id := m.obsNext
	m.obs[id] = fn
	return func() {
		m.mu.Lock()
		delete(m.obs, id)
		m.mu.Unlock()
	}
}

// Escuchar subscribes the machine to the realtime bus.
func (m *Maquina) Escuchar(bus *realtime.Bus) *realtime.Suscripcion {
	return bus.Suscribir(m.ManejarEvento)
}

// ── Transitions ──────────────────────────────────────────────────────────────

// Seleccionar picks a caja and asks the backend for its open apertura.
func (m *Maquina) Seleccionar(ctx context.Context, caja CajaRef) error {
	if strings.TrimSpace(caja.ID) == "" {
		return apierror.Validacion("Debe seleccionar una caja")
	}

	m.mu.Lock()
	if err := m.permitidoLocked("seleccionar una caja", SinSeleccion, SeleccionadaSinTurno); err != nil {
		m.mu.Unlock()
		return err
	}
	c := caja
	m.caja = &c
	e := m.iniciarLocked()
	m.mu.Unlock()
	m.publicar()

	ap, err := m.gw.AperturaActiva(ctx, caja.ID)

	m.mu.Lock()
	if m.epoca != e {
		m.mu.Unlock()
		return ErrResultadoDescartado
	}
	m.ocupado = false
	if err != nil {
		m.reiniciarLocked()
		m.err = err
		m.mu.Unlock()
		m.publicar()
		return err
	}
	m.aplicarAperturaLocked(ap)
	m.mu.Unlock()
	m.guardarHint(Hint{CajaID: caja.ID, CajaNombre: caja.Nombre})
	m.publicar()
	return nil
}

// AbrirTurno opens a shift with the typed opening float. The backend decides
// whether another shift is already open; a conflict re-syncs.
func (m *Maquina) AbrirTurno(ctx context.Context, montoInicial string) error {
	m.mu.Lock()
	if err := m.permitidoLocked("abrir la caja", SeleccionadaSinTurno); err != nil {
		m.mu.Unlock()
		return err
	}
	monto, err := parsearMonto(montoInicial, "Monto inicial")
	if err != nil {
		m.err = err
		m.mu.Unlock()
		m.publicar()
		return err
	}
	cajaID := m.caja.ID
	e := m.iniciarLocked()
	m.mu.Unlock()
	m.publicar()

	ap, err := m.gw.AbrirCaja(ctx, cajaID, monto)

	m.mu.Lock()
	if m.epoca != e {
		m.mu.Unlock()
		return ErrResultadoDescartado
	}
	m.ocupado = false
	if err != nil {
		m.err = err
		m.mu.Unlock()
		m.publicar()
		if apierror.EsTipo(err, apierror.KindConflicto) {
			m.Resincronizar(ctx)
		}
		return err
	}
	m.aplicarAperturaLocked(ap)
	m.mu.Unlock()
	m.publicar()
	return nil
}

// IniciarCierre fetches the closing preview. On failure the machine stays
// Abierta.
func (m *Maquina) IniciarCierre(ctx context.Context) error {
	m.mu.Lock()
	if err := m.permitidoLocked("iniciar el cierre", Abierta); err != nil {
		m.mu.Unlock()
		return err
	}
	cajaID := m.caja.ID
	e := m.iniciarLocked()
	m.mu.Unlock()
	m.publicar()

	r, err := m.gw.ResumenPrevio(ctx, cajaID)

	m.mu.Lock()
	if m.epoca != e {
		m.mu.Unlock()
		return ErrResultadoDescartado
	}
	m.ocupado = false
	if err != nil {
		m.err = err
		m.mu.Unlock()
		m.publicar()
		if apierror.EsTipo(err, apierror.KindConflicto) || apierror.EsTipo(err, apierror.KindNoEncontrado) {
			m.Resincronizar(ctx)
		}
		return err
	}
	m.estado = CierrePrevio
	m.resumen = r
	m.sugerido = r.EfectivoEsperado
	m.mu.Unlock()
	m.publicar()
	return nil
}

// ConfirmarCierre closes the shift with the counted cash. A count different
// from the expected cash needs a reason.
func (m *Maquina) ConfirmarCierre(ctx context.Context, montoFinal, motivo string) error {
	m.mu.Lock()
	if err := m.permitidoLocked("confirmar el cierre", CierrePrevio); err != nil {
		m.mu.Unlock()
		return err
	}
	monto, err := parsearMonto(montoFinal, "Monto final")
	if err == nil && !monto.Equal(m.resumen.EfectivoEsperado) && strings.TrimSpace(motivo) == "" {
		err = apierror.Validacion(fmt.Sprintf("El conteo difiere en %s del efectivo esperado: indique el motivo",
			monto.Sub(m.resumen.EfectivoEsperado).String()))
	}
	if err != nil {
		m.err = err
		m.mu.Unlock()
		m.publicar()
		return err
	}
	var motivoPtr *string
	if t := strings.TrimSpace(motivo); t != "" {
		motivoPtr = &t
	}
	cajaID := m.caja.ID
	m.confirmando = true
	e := m.iniciarLocked()
	m.mu.Unlock()
	m.publicar()

	err = m.gw.CerrarCaja(ctx, cajaID, monto, motivoPtr)

	m.mu.Lock()
	if m.epoca != e {
		m.mu.Unlock()
		return ErrResultadoDescartado
	}
	m.confirmando = false
	m.ocupado = false
	if err != nil {
		m.err = err
		m.mu.Unlock()
		m.publicar()
		if apierror.EsTipo(err, apierror.KindConflicto) {
			m.Resincronizar(ctx)
		}
		return err
	}
	m.reiniciarLocked()
	m.mu.Unlock()
	m.borrarHint()
	m.publicar()
	return nil
}

// CancelarCierre drops the preview and goes back to Abierta without asking
// the backend. A close already in flight is left to finish; its result is
// ignored and the realtime echo reconciles.
func (m *Maquina) CancelarCierre() error {
	m.mu.Lock()
	if m.estado != CierrePrevio {
		err := m.transicionInvalidaLocked("cancelar el cierre")
		m.mu.Unlock()
		return err
	}
	m.epoca++
	m.ocupado = false
	m.confirmando = false
	m.estado = Abierta
	m.resumen = nil
	m.sugerido = decimal.Zero
	m.err = nil
	m.mu.Unlock()
	m.publicar()
	return nil
}

// Descartar stops listening to the pending call, if any. State stays where
// it was before the call started.
func (m *Maquina) Descartar() {
	m.mu.Lock()
	if !m.ocupado {
		m.mu.Unlock()
		return
	}
	m.epoca++
	m.ocupado = false
	m.confirmando = false
	if m.estado == SinSeleccion {
		m.caja = nil
	}
	m.mu.Unlock()
	m.publicar()
}

// Restaurar rebuilds the session at process start. The hint is only a
// prefetch: without a confirmed open apertura it is discarded.
func (m *Maquina) Restaurar(ctx context.Context) error {
	h, ok, err := m.hints.Cargar()
	if err != nil {
		log.Warn().Err(err).Msg("sesion: hint descartado")
		m.borrarHint()
		return nil
	}
	if !ok {
		return nil
	}

	m.mu.Lock()
	if err := m.permitidoLocked("restaurar la sesión", SinSeleccion); err != nil {
		m.mu.Unlock()
		return err
	}
	m.caja = &CajaRef{ID: h.CajaID, Nombre: h.CajaNombre}
	e := m.iniciarLocked()
	m.mu.Unlock()
	m.publicar()

	ap, err := m.gw.AperturaActiva(ctx, h.CajaID)

	m.mu.Lock()
	if m.epoca != e {
		m.mu.Unlock()
		return ErrResultadoDescartado
	}
	m.ocupado = false
	if err != nil || ap == nil || ap.Estado != model.AperturaAbierta {
		m.reiniciarLocked()
		m.mu.Unlock()
		m.borrarHint()
		m.publicar()
		if err != nil {
			log.Warn().Err(err).Str("caja_id", h.CajaID).Msg("sesion: no se pudo validar la caja guardada")
		}
		return nil
	}
	m.estado = Abierta
	m.apertura = ap
	m.mu.Unlock()
	m.publicar()
	return nil
}

// ── Realtime ─────────────────────────────────────────────────────────────────

// ManejarEvento applies register events of the selected caja. A remote
// CAJA_CERRADA of the current apertura forces SinSeleccion from any sub-state
// unless it is the echo of this terminal's own close.
func (m *Maquina) ManejarEvento(e realtime.Evento) {
	m.mu.Lock()

	if e.Tipo == realtime.Reconexion {
		seleccionada := m.caja != nil && !m.ocupado
		m.mu.Unlock()
		if seleccionada {
			m.resyncAsync()
		}
		return
	}
	if e.SucursalID != m.sucursalID || !e.EsCaja() || m.caja == nil || e.CajaID != m.caja.ID {
		m.mu.Unlock()
		return
	}

	switch e.Tipo {
	case realtime.CajaCerrada:
		if m.estado != Abierta && m.estado != CierrePrevio {
			m.mu.Unlock()
			return
		}
		if e.AperturaID != "" && m.apertura != nil && e.AperturaID != m.apertura.ID {
			m.mu.Unlock()
			return
		}
		if m.confirmando && e.UsuarioID != "" && e.UsuarioID == m.usuarioID {
			m.mu.Unlock()
			return
		}
		log.Info().Str("caja_id", e.CajaID).Str("usuario_id", e.UsuarioID).Str("estado", m.estado.String()).
			Msg("sesion: caja cerrada desde otro terminal")
		m.reiniciarLocked()
		m.err = apierror.Conflicto("La caja fue cerrada desde otro terminal")
		m.mu.Unlock()
		m.borrarHint()
		m.publicar()

	case realtime.CajaAbierta:
		pendiente := m.estado == SeleccionadaSinTurno ||
			(m.estado == Abierta && m.apertura != nil && e.AperturaID != "" && e.AperturaID != m.apertura.ID)
		m.mu.Unlock()
		if pendiente {
			m.resyncAsync()
		}

	default:
		m.mu.Unlock()
	}
}

// Resincronizar re-fetches the active apertura of the selected caja and
// converges local state on it.
func (m *Maquina) Resincronizar(ctx context.Context) {
	m.mu.Lock()
	if m.caja == nil {
		m.mu.Unlock()
		return
	}
	cajaID := m.caja.ID
	e := m.epoca
	m.mu.Unlock()

	ap, err := m.gw.AperturaActiva(ctx, cajaID)

	m.mu.Lock()
	if m.epoca != e || m.caja == nil || m.caja.ID != cajaID {
		m.mu.Unlock()
		return
	}
	if err != nil {
		log.Warn().Err(err).Str("caja_id", cajaID).Msg("sesion: resincronización fallida")
		m.err = err
		m.mu.Unlock()
		m.publicar()
		return
	}
	abierta := ap != nil && ap.Estado == model.AperturaAbierta
	perdida := !abierta && (m.estado == Abierta || m.estado == CierrePrevio)
	switch {
	case perdida:
		m.reiniciarLocked()
		m.err = apierror.Conflicto("La caja ya no tiene una apertura activa")
	case abierta && m.estado == SeleccionadaSinTurno:
		m.estado = Abierta
		m.apertura = ap
	case abierta && m.apertura != nil && m.apertura.ID != ap.ID:
		m.estado = Abierta
		m.apertura = ap
		m.resumen = nil
		m.sugerido = decimal.Zero
	case abierta:
		m.apertura = ap
	}
	m.mu.Unlock()
	if perdida {
		m.borrarHint()
	}
	m.publicar()
}

func (m *Maquina) resyncAsync() {
	m.resyncs.Add(1)
	go func() {
		defer m.resyncs.Done()
		ctx, cancel := context.WithTimeout(context.Background(), timeoutResync)
		defer cancel()
		m.Resincronizar(ctx)
	}()
}

// ── Helpers (callers hold mu where named *Locked) ───────────────────────────

func (m *Maquina) permitidoLocked(op string, desde ...Estado) error {
	if m.ocupado {
		return apierror.Validacion("Hay una operación en curso")
	}
	for _, e := range desde {
		if m.estado == e {
			return nil
		}
	}
	return m.transicionInvalidaLocked(op)
}

func (m *Maquina) transicionInvalidaLocked(op string) error {
	return apierror.Validacion(fmt.Sprintf("No es posible %s en estado %s", op, m.estado))
}

func (m *Maquina) iniciarLocked() uint64 {
	m.epoca++
	m.ocupado = true
	m.err = nil
	return m.epoca
}

func (m *Maquina) aplicarAperturaLocked(ap *dto.AperturaResponse) {
	if ap != nil && ap.Estado == model.AperturaAbierta {
		m.estado = Abierta
		m.apertura = ap
		return
	}
	m.estado = SeleccionadaSinTurno
	m.apertura = nil
}

func (m *Maquina) reiniciarLocked() {
	m.epoca++
	m.estado = SinSeleccion
	m.caja = nil
	m.apertura = nil
	m.resumen = nil
	m.sugerido = decimal.Zero
	m.ocupado = false
	m.confirmando = false
}

func (m *Maquina) snapshotLocked() Snapshot {
	s := Snapshot{
		Estado:             m.estado,
		Apertura:           m.apertura,
		Resumen:            m.resumen,
		MontoFinalSugerido: m.sugerido,
		Ocupado:            m.ocupado,
		Error:              m.err,
	}
	if m.caja != nil {
		c := *m.caja
		s.Caja = &c
	}
	return s
}

func (m *Maquina) publicar() {
	m.mu.Lock()
	s := m.snapshotLocked()
	fns := make([]func(Snapshot), 0, len(m.obs))
	for _, fn := range m.obs {
		fns = append(fns, fn)
	}
	m.mu.Unlock()
	for _, fn := range fns {
		fn(s)
	}
}

// guardarHint and borrarHint do file I/O: call them without holding mu.
func (m *Maquina) guardarHint(h Hint) {
	if err := m.hints.Guardar(h); err != nil {
		log.Warn().Err(err).Msg("sesion: no se pudo guardar el hint")
	}
}

func (m *Maquina) borrarHint() {
	if err := m.hints.Borrar(); err != nil {
		log.Warn().Err(err).Msg("sesion: no se pudo borrar el hint")
	}
}

func parsearMonto(s, campo string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, apierror.Validacion(campo + " requerido")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, apierror.Validacion(campo + " debe ser numérico")
	}
	if d.IsNegative() {
		return decimal.Zero, apierror.Validacion(campo + " no puede ser negativo")
	}
	return d, nil
}
