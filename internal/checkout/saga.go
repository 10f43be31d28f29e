package checkout

import (
	"context"
	"strings"
	"sync"

	"bersapos/internal/apierror"
	"bersapos/internal/cobro"
	"bersapos/internal/dto"
	"bersapos/internal/gateway"
	"bersapos/internal/readcache"
	"bersapos/internal/sesion"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// Sesion is the read side of the session machine the saga needs.
type Sesion interface {
	Actual() sesion.Snapshot
}

// EntradaCobro is what the operator typed in the payment dialog.
type EntradaCobro struct {
	Modo     cobro.ModoPago
	Efectivo decimal.Decimal
	Debito   decimal.Decimal
}

// Saga confirms the current cart as a sale. Local state (cart, document) is
// only touched after the backend accepted the sale.
type Saga struct {
	gw         gateway.Gateway
	sesion     Sesion
	calc       cobro.Calculadora
	inv        readcache.Invalidador
	sucursalID string
	carrito    *Carrito

	mu        sync.Mutex
	documento Documento
	enCurso   bool
}

func NewSaga(gw gateway.Gateway, ses Sesion, calc cobro.Calculadora, inv readcache.Invalidador, sucursalID string) *Saga {
	return &Saga{
		gw:         gw,
		sesion:     ses,
		calc:       calc,
		inv:        inv,
		sucursalID: sucursalID,
		carrito:    NewCarrito(),
		documento:  Boleta(),
	}
}

func (s *Saga) Carrito() *Carrito { return s.carrito }

func (s *Saga) Documento() Documento {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.documento
}

func (s *Saga) UsarDocumento(d Documento) {
	s.mu.Lock()
	s.documento = d
	s.mu.Unlock()
}

// Cotizar resolves the settlement for the current cart.
func (s *Saga) Cotizar(e EntradaCobro) cobro.EstadoCobro {
	return s.cotizar(s.carrito.Total(), e)
}

func (s *Saga) cotizar(total decimal.Decimal, e EntradaCobro) cobro.EstadoCobro {
	return s.calc.Calcular(cobro.Entrada{
		Total:    total,
		Modo:     e.Modo,
		Efectivo: e.Efectivo,
		Debito:   e.Debito,
	})
}

// Confirmar submits the cart as it was when called. On any failure nothing
// local changes and the operator may retry. Lines added while the sale is in
// flight stay in the cart.
func (s *Saga) Confirmar(ctx context.Context, e EntradaCobro) (*Recibo, error) {
	snap := s.sesion.Actual()
	if snap.Estado != sesion.Abierta || snap.Caja == nil || snap.Apertura == nil {
		return nil, apierror.Validacion("La caja no tiene un turno abierto")
	}
	lineas := s.carrito.Lineas()
	if len(lineas) == 0 {
		return nil, apierror.Validacion("El carrito está vacío")
	}
	if !e.Modo.Valido() {
		return nil, apierror.Validacion("Seleccione un medio de pago")
	}
	doc := s.Documento()
	if err := doc.Validar(); err != nil {
		return nil, err
	}

	estado := s.cotizar(totalLineas(lineas), e)
	if !estado.Confirmable {
		return nil, apierror.Validacion("Falta " + estado.Falta.String() + " para completar el pago")
	}
	pagos, err := cobro.ConstruirPagos(estado.TotalAPagar, estado.Modo, estado.Efectivo, estado.Debito)
	if err != nil {
		return nil, err
	}
	if len(pagos) == 0 {
		return nil, apierror.Validacion("Ingrese los montos del pago")
	}

	s.mu.Lock()
	if s.enCurso {
		s.mu.Unlock()
		return nil, apierror.Validacion("Ya hay una venta en proceso")
	}
	s.enCurso = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.enCurso = false
		s.mu.Unlock()
	}()

	req := dto.RegistrarVentaRequest{
		CajaID:     snap.Caja.ID,
		AperturaID: snap.Apertura.ID,
		Modo:       string(estado.Modo),
		Items:      make([]dto.ItemVentaRequest, 0, len(lineas)),
		Pagos:      make([]dto.PagoRequest, 0, len(pagos)),
		Documento:  doc.request(),
	}
	for _, l := range lineas {
		req.Items = append(req.Items, dto.ItemVentaRequest{
			ProductoID:     l.ProductoID,
			Cantidad:       l.Cantidad,
			PrecioUnitario: l.PrecioUnitario,
		})
	}
	for _, p := range pagos {
		req.Pagos = append(req.Pagos, dto.PagoRequest{Metodo: p.Metodo, Monto: p.Monto})
	}

	venta, err := s.gw.RegistrarVenta(ctx, req)
	if err != nil {
		log.Warn().Err(err).Str("caja_id", req.CajaID).Msg("checkout: venta rechazada")
		return nil, err
	}

	recibo := nuevoRecibo(venta, estado)
	s.invalidar(ctx, snap.Caja.ID)
	s.carrito.Descontar(lineas)
	s.UsarDocumento(Boleta())

	log.Info().Str("venta_id", venta.ID).Str("folio", recibo.Folio).Str("total", recibo.TotalAPagar.String()).
		Bool("conflicto_stock", venta.ConflictoStock).Msg("checkout: venta confirmada")
	return recibo, nil
}

// Anular voids a finalized sale. The backend refuses a second void.
func (s *Saga) Anular(ctx context.Context, ventaID, motivo string) error {
	if strings.TrimSpace(ventaID) == "" {
		return apierror.Validacion("Venta requerida")
	}
	motivo = strings.TrimSpace(motivo)
	if len([]rune(motivo)) < 5 {
		return apierror.Validacion("Indique el motivo de la anulación (mínimo 5 caracteres)")
	}
	if err := s.gw.AnularVenta(ctx, ventaID, motivo); err != nil {
		return err
	}
	cajaID := ""
	if snap := s.sesion.Actual(); snap.Caja != nil {
		cajaID = snap.Caja.ID
	}
	s.invalidar(ctx, cajaID)
	log.Info().Str("venta_id", ventaID).Msg("checkout: venta anulada")
	return nil
}

// Ventas lists the sales of the current apertura.
func (s *Saga) Ventas(ctx context.Context) ([]dto.VentaResponse, error) {
	snap := s.sesion.Actual()
	if snap.Caja == nil || snap.Estado != sesion.Abierta {
		return nil, apierror.Validacion("La caja no tiene un turno abierto")
	}
	return s.gw.ListarVentasApertura(ctx, snap.Caja.ID)
}

// RevisarStock refreshes the advisory stock flags of the cart.
func (s *Saga) RevisarStock(ctx context.Context) error {
	resp, err := s.gw.StockSucursal(ctx, s.sucursalID)
	if err != nil {
		return err
	}
	stock := make(map[string]int, len(resp.Items))
	for _, it := range resp.Items {
		stock[it.ProductoID] = it.Stock
	}
	s.carrito.MarcarStock(stock)
	return nil
}

// invalidar never fails the sale: it is already committed.
func (s *Saga) invalidar(ctx context.Context, cajaID string) {
	if s.inv == nil {
		return
	}
	if err := s.inv.InvalidarStock(ctx, s.sucursalID); err != nil {
		log.Warn().Err(err).Str("sucursal_id", s.sucursalID).Msg("checkout: no se pudo invalidar stock")
	}
	if cajaID == "" {
		return
	}
	if err := s.inv.InvalidarResumenCaja(ctx, cajaID); err != nil {
		log.Warn().Err(err).Str("caja_id", cajaID).Msg("checkout: no se pudo invalidar resumen de caja")
	}
}
