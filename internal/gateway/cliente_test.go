package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bersapos/internal/apierror"
	"bersapos/internal/dto"
	"bersapos/internal/infra"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func escribirJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestCliente_AperturaActiva(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/cajas/c1/apertura", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		escribirJSON(w, http.StatusOK, dto.AperturaResponse{ID: "a1", CajaID: "c1", Estado: "abierta", MontoInicial: decimal.NewFromInt(50000)})
	})
	mux.HandleFunc("/v1/cajas/c2/apertura", func(w http.ResponseWriter, r *http.Request) {
		escribirJSON(w, http.StatusNotFound, apierror.New("Sin apertura activa"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewCliente(srv.URL, "tok", time.Second, nil)

	ap, err := c.AperturaActiva(context.Background(), "c1")
	require.NoError(t, err)
	require.NotNil(t, ap)
	assert.Equal(t, "a1", ap.ID)
	assert.Equal(t, "50000", ap.MontoInicial.String())

	ap, err = c.AperturaActiva(context.Background(), "c2")
	require.NoError(t, err)
	assert.Nil(t, ap)
}

func TestCliente_MapeaRechazos(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/cajas/c1/abrir", func(w http.ResponseWriter, r *http.Request) {
		var req dto.AbrirCajaRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "1000", req.MontoInicial.String())
		escribirJSON(w, http.StatusConflict, apierror.New("La caja ya tiene una apertura activa"))
	})
	mux.HandleFunc("/v1/ventas/v1/anular", func(w http.ResponseWriter, r *http.Request) {
		escribirJSON(w, http.StatusUnprocessableEntity, apierror.New("motivo requerido"))
	})
	mux.HandleFunc("/v1/cajas/c1/resumen-previo", func(w http.ResponseWriter, r *http.Request) {
		escribirJSON(w, http.StatusInternalServerError, apierror.New("pq: connection refused"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewCliente(srv.URL, "", time.Second, nil)
	ctx := context.Background()

	_, err := c.AbrirCaja(ctx, "c1", decimal.NewFromInt(1000))
	assert.True(t, apierror.EsTipo(err, apierror.KindConflicto))
	assert.Equal(t, "La caja ya tiene una apertura activa", apierror.Mensaje(err))

	err = c.AnularVenta(ctx, "v1", "x")
	assert.True(t, apierror.EsTipo(err, apierror.KindValidacion))

	_, err = c.ResumenPrevio(ctx, "c1")
	assert.True(t, apierror.EsTipo(err, apierror.KindTransporte))
	assert.Equal(t, apierror.MensajeTransporte, apierror.Mensaje(err), "el detalle crudo nunca llega al operador")
}

func TestCliente_BackendCaidoAbreElBreaker(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	cb := infra.NewCircuitBreaker(infra.CircuitBreakerConfig{Name: "test", FailureThreshold: 2, OpenTimeout: time.Minute})
	c := NewCliente(base, "", 200*time.Millisecond, cb)

	for i := 0; i < 2; i++ {
		_, err := c.ListarCajas(context.Background(), "s1")
		assert.True(t, apierror.EsTipo(err, apierror.KindTransporte))
	}
	assert.Equal(t, infra.CBOpen, cb.State())

	_, err := c.ListarCajas(context.Background(), "s1")
	assert.ErrorIs(t, err, infra.ErrCircuitOpen)
}

func TestCliente_RechazosNoAbrenElBreaker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		escribirJSON(w, http.StatusConflict, apierror.New("La venta ya está anulada"))
	}))
	defer srv.Close()

	cb := infra.NewCircuitBreaker(infra.CircuitBreakerConfig{FailureThreshold: 1})
	c := NewCliente(srv.URL, "", time.Second, cb)
	for i := 0; i < 3; i++ {
		err := c.AnularVenta(context.Background(), "v1", "cliente se arrepintió")
		assert.True(t, apierror.EsTipo(err, apierror.KindConflicto))
	}
	assert.Equal(t, infra.CBClosed, cb.State())
}

func TestCliente_RegistrarVenta(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/ventas", r.URL.Path)
		var req dto.RegistrarVentaRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "mixto", req.Modo)
		assert.Len(t, req.Pagos, 2)
		escribirJSON(w, http.StatusCreated, dto.VentaResponse{ID: "v-123456", Numero: 1, Folio: "B-1", Total: decimal.NewFromInt(1240)})
	}))
	defer srv.Close()

	c := NewCliente(srv.URL, "", time.Second, nil)
	resp, err := c.RegistrarVenta(context.Background(), dto.RegistrarVentaRequest{
		Modo: "mixto",
		Pagos: []dto.PagoRequest{
			{Metodo: "efectivo", Monto: decimal.NewFromInt(800)},
			{Metodo: "debito", Monto: decimal.NewFromInt(440)},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "B-1", resp.Folio)
	assert.Nil(t, resp.TotalAPagar)
}
