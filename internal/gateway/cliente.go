package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"bersapos/internal/apierror"
	"bersapos/internal/dto"
	"bersapos/internal/infra"

	"github.com/shopspring/decimal"
)

// Cliente implements Gateway over the backend's HTTP API.
type Cliente struct {
	base  string
	token string
	hc    *http.Client
	cb    *infra.CircuitBreaker
}

func NewCliente(baseURL, token string, timeout time.Duration, cb *infra.CircuitBreaker) *Cliente {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if cb == nil {
		cb = infra.NewCircuitBreaker(infra.DefaultCBConfig("backend"))
	}
	return &Cliente{
		base:  strings.TrimRight(baseURL, "/"),
		token: token,
		hc:    &http.Client{Timeout: timeout},
		cb:    cb,
	}
}

var _ Gateway = (*Cliente)(nil)

func (c *Cliente) ListarCajas(ctx context.Context, sucursalID string) ([]dto.CajaResponse, error) {
	var out []dto.CajaResponse
	q := url.Values{"sucursal_id": {sucursalID}}
	err := c.do(ctx, http.MethodGet, "/v1/cajas?"+q.Encode(), nil, &out)
	return out, err
}

func (c *Cliente) AperturaActiva(ctx context.Context, cajaID string) (*dto.AperturaResponse, error) {
	var out dto.AperturaResponse
	err := c.do(ctx, http.MethodGet, "/v1/cajas/"+url.PathEscape(cajaID)+"/apertura", nil, &out)
	if apierror.EsTipo(err, apierror.KindNoEncontrado) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Cliente) AbrirCaja(ctx context.Context, cajaID string, montoInicial decimal.Decimal) (*dto.AperturaResponse, error) {
	var out dto.AperturaResponse
	body := dto.AbrirCajaRequest{MontoInicial: montoInicial}
	if err := c.do(ctx, http.MethodPost, "/v1/cajas/"+url.PathEscape(cajaID)+"/abrir", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Cliente) ResumenPrevio(ctx context.Context, cajaID string) (*dto.ResumenPrevioResponse, error) {
	var out dto.ResumenPrevioResponse
	if err := c.do(ctx, http.MethodGet, "/v1/cajas/"+url.PathEscape(cajaID)+"/resumen-previo", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Cliente) CerrarCaja(ctx context.Context, cajaID string, montoFinal decimal.Decimal, motivo *string) error {
	body := dto.CerrarCajaRequest{MontoFinal: montoFinal, Motivo: motivo}
	return c.do(ctx, http.MethodPost, "/v1/cajas/"+url.PathEscape(cajaID)+"/cerrar", body, nil)
}

func (c *Cliente) RegistrarVenta(ctx context.Context, req dto.RegistrarVentaRequest) (*dto.VentaResponse, error) {
	var out dto.VentaResponse
	if err := c.do(ctx, http.MethodPost, "/v1/ventas", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Cliente) AnularVenta(ctx context.Context, ventaID, motivo string) error {
	body := dto.AnularVentaRequest{Motivo: motivo}
	return c.do(ctx, http.MethodPost, "/v1/ventas/"+url.PathEscape(ventaID)+"/anular", body, nil)
}

func (c *Cliente) ListarVentasApertura(ctx context.Context, cajaID string) ([]dto.VentaResponse, error) {
	var out []dto.VentaResponse
	err := c.do(ctx, http.MethodGet, "/v1/cajas/"+url.PathEscape(cajaID)+"/ventas", nil, &out)
	return out, err
}

func (c *Cliente) StockSucursal(ctx context.Context, sucursalID string) (*dto.StockResponse, error) {
	var out dto.StockResponse
	if err := c.do(ctx, http.MethodGet, "/v1/sucursales/"+url.PathEscape(sucursalID)+"/stock", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// do sends one request through the breaker. Transport failures and 5xx count
// against the breaker; 4xx answers are business rejections and do not.
func (c *Cliente) do(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return apierror.Programacion("no se pudo serializar la solicitud", err)
		}
	}

	var rechazo error
	err := c.cb.Execute(func() error {
		var rdr io.Reader
		if payload != nil {
			rdr = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.base+path, rdr)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		resp, err := c.hc.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return err
		}

		if resp.StatusCode >= 500 {
			return fmt.Errorf("backend respondió %d: %s", resp.StatusCode, detalle(data))
		}
		if resp.StatusCode >= 400 {
			rechazo = apierror.DesdeStatus(resp.StatusCode, detalle(data))
			return nil
		}
		if out == nil || len(data) == 0 || resp.StatusCode == http.StatusNoContent {
			return nil
		}
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("respuesta inválida de %s %s: %w", method, path, err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return apierror.Transporte(err)
	}
	return rechazo
}

func detalle(data []byte) string {
	var e apierror.APIError
	if err := json.Unmarshal(data, &e); err == nil && e.Detail != "" {
		return e.Detail
	}
	return ""
}
