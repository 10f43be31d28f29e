package sesion

import (
	"context"
	"errors"
	"testing"
	"time"

	"bersapos/internal/apierror"
	"bersapos/internal/dto"
	"bersapos/internal/realtime"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	sucursal = "suc-1"
	usuario  = "usr-local"
)

var caja1 = CajaRef{ID: "caja-1", Nombre: "Caja 1"}

func setup(t *testing.T) (*Maquina, *fakeGateway, *memHints) {
	t.Helper()
	gw := newFakeGateway()
	hints := &memHints{}
	return NewMaquina(gw, hints, sucursal, usuario), gw, hints
}

func abierta(t *testing.T) (*Maquina, *fakeGateway, *memHints) {
	t.Helper()
	m, gw, hints := setup(t)
	gw.abrir(caja1.ID, "ap-1")
	require.NoError(t, m.Seleccionar(context.Background(), caja1))
	require.Equal(t, Abierta, m.Actual().Estado)
	return m, gw, hints
}

func enCierre(t *testing.T, esperado int64) (*Maquina, *fakeGateway, *memHints) {
	t.Helper()
	m, gw, hints := abierta(t)
	gw.resumen[caja1.ID] = &dto.ResumenPrevioResponse{AperturaID: "ap-1", EfectivoEsperado: decimal.NewFromInt(esperado)}
	require.NoError(t, m.IniciarCierre(context.Background()))
	require.Equal(t, CierrePrevio, m.Actual().Estado)
	return m, gw, hints
}

func cerradaRemota(usuarioID string) realtime.Evento {
	return realtime.Evento{Tipo: realtime.CajaCerrada, SucursalID: sucursal, CajaID: caja1.ID, AperturaID: "ap-1", UsuarioID: usuarioID}
}

// ── Seleccionar ──────────────────────────────────────────────────────────────

func TestSeleccionar_SinTurno(t *testing.T) {
	m, _, hints := setup(t)

	require.NoError(t, m.Seleccionar(context.Background(), caja1))

	s := m.Actual()
	assert.Equal(t, SeleccionadaSinTurno, s.Estado)
	require.NotNil(t, s.Caja)
	assert.Equal(t, "caja-1", s.Caja.ID)
	assert.Nil(t, s.Apertura)
	require.NotNil(t, hints.actual())
	assert.Equal(t, Hint{CajaID: "caja-1", CajaNombre: "Caja 1"}, *hints.actual())
}

func TestSeleccionar_ConTurnoAbierto(t *testing.T) {
	m, _, _ := abierta(t)

	s := m.Actual()
	require.NotNil(t, s.Apertura)
	assert.Equal(t, "ap-1", s.Apertura.ID)
}

func TestSeleccionar_FalloVuelveASinSeleccion(t *testing.T) {
	m, gw, hints := setup(t)
	gw.errActiva = apierror.Transporte(errors.New("connection refused"))

	err := m.Seleccionar(context.Background(), caja1)

	require.Error(t, err)
	s := m.Actual()
	assert.Equal(t, SinSeleccion, s.Estado)
	assert.Nil(t, s.Caja)
	assert.False(t, s.Ocupado)
	assert.True(t, apierror.EsTipo(s.Error, apierror.KindTransporte))
	assert.Nil(t, hints.actual())
}

func TestSeleccionar_NoPermitidoConTurnoAbierto(t *testing.T) {
	m, _, _ := abierta(t)

	err := m.Seleccionar(context.Background(), CajaRef{ID: "caja-2"})

	assert.True(t, apierror.EsTipo(err, apierror.KindValidacion))
	assert.Equal(t, Abierta, m.Actual().Estado)
}

// ── AbrirTurno ───────────────────────────────────────────────────────────────

func TestAbrirTurno_Exito(t *testing.T) {
	m, gw, _ := setup(t)
	require.NoError(t, m.Seleccionar(context.Background(), caja1))

	require.NoError(t, m.AbrirTurno(context.Background(), "20000"))

	s := m.Actual()
	assert.Equal(t, Abierta, s.Estado)
	require.NotNil(t, s.Apertura)
	assert.Equal(t, "20000", s.Apertura.MontoInicial.String())
	assert.Equal(t, 1, gw.llamadasAbrir)
}

func TestAbrirTurno_MontoInvalidoNoLlegaAlBackend(t *testing.T) {
	for _, monto := range []string{"", "abc", "-1", "  "} {
		m, gw, _ := setup(t)
		require.NoError(t, m.Seleccionar(context.Background(), caja1))

		err := m.AbrirTurno(context.Background(), monto)

		assert.True(t, apierror.EsTipo(err, apierror.KindValidacion), "monto %q", monto)
		assert.Equal(t, 0, gw.llamadasAbrir)
		assert.Equal(t, SeleccionadaSinTurno, m.Actual().Estado)
	}
}

func TestAbrirTurno_SoloDesdeSeleccionadaSinTurno(t *testing.T) {
	m, gw, _ := setup(t)

	err := m.AbrirTurno(context.Background(), "1000")

	assert.True(t, apierror.EsTipo(err, apierror.KindValidacion))
	assert.Equal(t, 0, gw.llamadasAbrir)
}

func TestAbrirTurno_ConflictoResincroniza(t *testing.T) {
	m, gw, _ := setup(t)
	require.NoError(t, m.Seleccionar(context.Background(), caja1))
	// Another terminal opened in the meantime.
	gw.abrir(caja1.ID, "ap-otra")
	gw.errAbrir = apierror.Conflicto("La caja ya tiene una apertura activa")

	err := m.AbrirTurno(context.Background(), "1000")

	assert.True(t, apierror.EsTipo(err, apierror.KindConflicto))
	s := m.Actual()
	assert.Equal(t, Abierta, s.Estado)
	require.NotNil(t, s.Apertura)
	assert.Equal(t, "ap-otra", s.Apertura.ID)
}

// ── Cierre ───────────────────────────────────────────────────────────────────

func TestIniciarCierre_SugiereEfectivoEsperado(t *testing.T) {
	m, _, _ := enCierre(t, 50000)

	s := m.Actual()
	require.NotNil(t, s.Resumen)
	assert.Equal(t, "50000", s.MontoFinalSugerido.String())
}

func TestIniciarCierre_FalloQuedaAbierta(t *testing.T) {
	m, gw, _ := abierta(t)
	gw.errResumen = apierror.Transporte(errors.New("timeout"))

	err := m.IniciarCierre(context.Background())

	require.Error(t, err)
	s := m.Actual()
	assert.Equal(t, Abierta, s.Estado)
	assert.Nil(t, s.Resumen)
}

func TestConfirmarCierre_EscenarioD_DiferenciaExigeMotivo(t *testing.T) {
	m, gw, _ := enCierre(t, 50000)

	err := m.ConfirmarCierre(context.Background(), "49500", "   ")
	assert.True(t, apierror.EsTipo(err, apierror.KindValidacion))
	assert.Equal(t, CierrePrevio, m.Actual().Estado)
	assert.Empty(t, gw.cierres)

	require.NoError(t, m.ConfirmarCierre(context.Background(), "49500", "faltó vuelto"))
	require.Len(t, gw.cierres, 1)
	require.NotNil(t, gw.cierres[0].motivo)
	assert.Equal(t, "faltó vuelto", *gw.cierres[0].motivo)
}

func TestConfirmarCierre_SinDiferenciaNoExigeMotivo(t *testing.T) {
	m, gw, hints := enCierre(t, 50000)

	require.NoError(t, m.ConfirmarCierre(context.Background(), "50000", ""))

	s := m.Actual()
	assert.Equal(t, SinSeleccion, s.Estado)
	assert.Nil(t, s.Caja)
	assert.Nil(t, hints.actual())
	require.Len(t, gw.cierres, 1)
	assert.Nil(t, gw.cierres[0].motivo)
}

func TestConfirmarCierre_ConflictoResincroniza(t *testing.T) {
	m, gw, _ := enCierre(t, 100)
	gw.cerrar(caja1.ID)
	gw.errCerrar = apierror.Conflicto("La caja no tiene una apertura activa")

	err := m.ConfirmarCierre(context.Background(), "100", "")

	assert.True(t, apierror.EsTipo(err, apierror.KindConflicto))
	assert.Equal(t, SinSeleccion, m.Actual().Estado)
}

func TestCancelarCierre_VuelveAAbiertaSinBackend(t *testing.T) {
	m, gw, _ := enCierre(t, 100)
	antes := gw.llamadasActiva

	require.NoError(t, m.CancelarCierre())

	s := m.Actual()
	assert.Equal(t, Abierta, s.Estado)
	assert.Nil(t, s.Resumen)
	assert.Equal(t, antes, gw.llamadasActiva)
}

func TestCancelarCierre_SoloDesdeCierrePrevio(t *testing.T) {
	m, _, _ := abierta(t)
	assert.True(t, apierror.EsTipo(m.CancelarCierre(), apierror.KindValidacion))
}

// ── Restaurar ────────────────────────────────────────────────────────────────

func TestRestaurar_TurnoVigente(t *testing.T) {
	m, gw, hints := setup(t)
	gw.abrir(caja1.ID, "ap-1")
	require.NoError(t, hints.Guardar(Hint{CajaID: caja1.ID, CajaNombre: caja1.Nombre}))

	require.NoError(t, m.Restaurar(context.Background()))

	s := m.Actual()
	assert.Equal(t, Abierta, s.Estado)
	assert.Equal(t, "ap-1", s.Apertura.ID)
	assert.NotNil(t, hints.actual())
}

func TestRestaurar_TurnoCerradoRemotamenteDescartaHint(t *testing.T) {
	m, _, hints := setup(t)
	require.NoError(t, hints.Guardar(Hint{CajaID: caja1.ID, CajaNombre: caja1.Nombre}))

	require.NoError(t, m.Restaurar(context.Background()))

	assert.Equal(t, SinSeleccion, m.Actual().Estado)
	assert.Nil(t, hints.actual())
}

func TestRestaurar_FalloDeRedDescartaHint(t *testing.T) {
	m, gw, hints := setup(t)
	gw.errActiva = apierror.Transporte(errors.New("dns"))
	require.NoError(t, hints.Guardar(Hint{CajaID: caja1.ID}))

	require.NoError(t, m.Restaurar(context.Background()))

	assert.Equal(t, SinSeleccion, m.Actual().Estado)
	assert.Nil(t, hints.actual())
}

func TestRestaurar_HintIlegible(t *testing.T) {
	m, gw, hints := setup(t)
	hints.errLeer = errors.New("hint ilegible")

	require.NoError(t, m.Restaurar(context.Background()))

	assert.Equal(t, SinSeleccion, m.Actual().Estado)
	assert.Equal(t, 0, gw.llamadasActiva)
}

func TestRestaurar_SinHint(t *testing.T) {
	m, gw, _ := setup(t)

	require.NoError(t, m.Restaurar(context.Background()))

	assert.Equal(t, SinSeleccion, m.Actual().Estado)
	assert.Equal(t, 0, gw.llamadasActiva)
}

// ── Eventos ──────────────────────────────────────────────────────────────────

func TestEvento_EscenarioE_CierreRemotoDuranteCierrePrevio(t *testing.T) {
	m, _, hints := enCierre(t, 50000)

	m.ManejarEvento(cerradaRemota("usr-otro"))

	s := m.Actual()
	assert.Equal(t, SinSeleccion, s.Estado)
	assert.Nil(t, s.Resumen)
	assert.Nil(t, s.Caja)
	assert.True(t, apierror.EsTipo(s.Error, apierror.KindConflicto))
	assert.Nil(t, hints.actual())
}

// sinBloqueo fails when fn does not return, which happens if a hint write
// reads the machine while mu is still held.
func sinBloqueo(t *testing.T, fn func()) {
	t.Helper()
	listo := make(chan struct{})
	go func() {
		defer close(listo)
		fn()
	}()
	select {
	case <-listo:
	case <-time.After(2 * time.Second):
		t.Fatal("la escritura del hint corrió con la máquina bloqueada")
	}
}

func TestHint_SeEscribeSinSostenerElLock(t *testing.T) {
	t.Run("cierre remoto", func(t *testing.T) {
		m, _, hints := abierta(t)
		hints.alEscribir = func() { _ = m.Actual() }

		sinBloqueo(t, func() { m.ManejarEvento(cerradaRemota("usr-otro")) })

		assert.Equal(t, SinSeleccion, m.Actual().Estado)
		assert.Nil(t, hints.actual())
	})
	t.Run("seleccionar", func(t *testing.T) {
		m, gw, hints := setup(t)
		gw.abrir(caja1.ID, "ap-1")
		hints.alEscribir = func() { _ = m.Actual() }

		sinBloqueo(t, func() { assert.NoError(t, m.Seleccionar(context.Background(), caja1)) })

		assert.Equal(t, Abierta, m.Actual().Estado)
		assert.NotNil(t, hints.actual())
	})
	t.Run("cierre propio", func(t *testing.T) {
		m, _, hints := enCierre(t, 50000)
		hints.alEscribir = func() { _ = m.Actual() }

		sinBloqueo(t, func() { assert.NoError(t, m.ConfirmarCierre(context.Background(), "50000", "")) })

		assert.Equal(t, SinSeleccion, m.Actual().Estado)
		assert.Nil(t, hints.actual())
	})
}

func TestEvento_CierreRemotoDesdeAbierta(t *testing.T) {
	m, _, _ := abierta(t)

	m.ManejarEvento(cerradaRemota("usr-otro"))

	assert.Equal(t, SinSeleccion, m.Actual().Estado)
}

func TestEvento_FiltraSucursalCajaYApertura(t *testing.T) {
	m, _, _ := abierta(t)

	otraSucursal := cerradaRemota("usr-otro")
	otraSucursal.SucursalID = "suc-2"
	m.ManejarEvento(otraSucursal)

	otraCaja := cerradaRemota("usr-otro")
	otraCaja.CajaID = "caja-2"
	m.ManejarEvento(otraCaja)

	viejaApertura := cerradaRemota("usr-otro")
	viejaApertura.AperturaID = "ap-0"
	m.ManejarEvento(viejaApertura)

	assert.Equal(t, Abierta, m.Actual().Estado)
}

func TestEvento_EcoPropioSeIgnora(t *testing.T) {
	m, gw, _ := enCierre(t, 100)
	gw.bloquear = make(chan struct{})
	gw.entrando = make(chan struct{})

	done := make(chan error, 1)
	go func() { done <- m.ConfirmarCierre(context.Background(), "100", "") }()
	<-gw.entrando

	// The echo of this terminal's own close arrives before the HTTP response.
	m.ManejarEvento(cerradaRemota(usuario))
	s := m.Actual()
	assert.Equal(t, CierrePrevio, s.Estado)
	assert.True(t, s.Ocupado)
	assert.Nil(t, s.Error)

	close(gw.bloquear)
	require.NoError(t, <-done)
	assert.Equal(t, SinSeleccion, m.Actual().Estado)
}

func TestEvento_CierreDeOtroUsuarioDuranteConfirmacionPropia(t *testing.T) {
	m, gw, _ := enCierre(t, 100)
	gw.bloquear = make(chan struct{})
	gw.entrando = make(chan struct{})

	done := make(chan error, 1)
	go func() { done <- m.ConfirmarCierre(context.Background(), "100", "") }()
	<-gw.entrando

	m.ManejarEvento(cerradaRemota("usr-otro"))
	assert.Equal(t, SinSeleccion, m.Actual().Estado)

	close(gw.bloquear)
	assert.ErrorIs(t, <-done, ErrResultadoDescartado)
	assert.Equal(t, SinSeleccion, m.Actual().Estado)
}

func TestEvento_CajaAbiertaResincronizaSeleccionadaSinTurno(t *testing.T) {
	m, gw, _ := setup(t)
	require.NoError(t, m.Seleccionar(context.Background(), caja1))
	gw.abrir(caja1.ID, "ap-remota")

	m.ManejarEvento(realtime.Evento{Tipo: realtime.CajaAbierta, SucursalID: sucursal, CajaID: caja1.ID, AperturaID: "ap-remota"})
	m.resyncs.Wait()

	s := m.Actual()
	assert.Equal(t, Abierta, s.Estado)
	assert.Equal(t, "ap-remota", s.Apertura.ID)
}

func TestEvento_ReconexionResincroniza(t *testing.T) {
	m, gw, _ := abierta(t)
	// The close happened while the socket was down; no event was received.
	gw.cerrar(caja1.ID)

	m.ManejarEvento(realtime.Evento{Tipo: realtime.Reconexion})
	m.resyncs.Wait()

	assert.Equal(t, SinSeleccion, m.Actual().Estado)
}

func TestEvento_ReconexionSinCajaNoLlamaAlBackend(t *testing.T) {
	m, gw, _ := setup(t)

	m.ManejarEvento(realtime.Evento{Tipo: realtime.Reconexion})
	m.resyncs.Wait()

	assert.Equal(t, 0, gw.llamadasActiva)
}

func TestEscuchar_RecibeDelBus(t *testing.T) {
	m, _, _ := abierta(t)
	bus := realtime.NewBus()
	sub := m.Escuchar(bus)
	defer sub.Cancelar()

	bus.Despachar(cerradaRemota("usr-otro"))

	assert.Equal(t, SinSeleccion, m.Actual().Estado)
}

// ── Concurrencia ─────────────────────────────────────────────────────────────

func TestOcupado_RechazaSegundaTransicion(t *testing.T) {
	m, gw, _ := setup(t)
	require.NoError(t, m.Seleccionar(context.Background(), caja1))
	gw.bloquear = make(chan struct{})
	gw.entrando = make(chan struct{})

	done := make(chan error, 1)
	go func() { done <- m.AbrirTurno(context.Background(), "1000") }()
	<-gw.entrando

	err := m.AbrirTurno(context.Background(), "1000")
	assert.True(t, apierror.EsTipo(err, apierror.KindValidacion))

	close(gw.bloquear)
	require.NoError(t, <-done)
}

func TestDescartar_ResultadoTardioNoResucitaDialogo(t *testing.T) {
	m, gw, _ := setup(t)
	require.NoError(t, m.Seleccionar(context.Background(), caja1))
	gw.bloquear = make(chan struct{})
	gw.entrando = make(chan struct{})

	done := make(chan error, 1)
	go func() { done <- m.AbrirTurno(context.Background(), "1000") }()
	<-gw.entrando

	m.Descartar()
	assert.False(t, m.Actual().Ocupado)

	close(gw.bloquear)
	assert.ErrorIs(t, <-done, ErrResultadoDescartado)
	assert.Equal(t, SeleccionadaSinTurno, m.Actual().Estado)
}

func TestObservar_RecibeSnapshotsYSeDesuscribe(t *testing.T) {
	m, _, _ := setup(t)
	vistos := make(chan Estado, 16)
	quitar := m.Observar(func(s Snapshot) { vistos <- s.Estado })

	require.NoError(t, m.Seleccionar(context.Background(), caja1))
	quitar()
	require.NoError(t, m.AbrirTurno(context.Background(), "0"))

	close(vistos)
	var estados []Estado
	for e := range vistos {
		estados = append(estados, e)
	}
	require.NotEmpty(t, estados)
	assert.Equal(t, SeleccionadaSinTurno, estados[len(estados)-1])
	assert.NotContains(t, estados, Abierta)
}
