package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"bersapos/internal/apierror"
	"bersapos/internal/cobro"
	"bersapos/internal/dto"
	"bersapos/internal/model"
	"bersapos/internal/realtime"
	"bersapos/internal/repository"
	"bersapos/internal/worker"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type VentaService interface {
	Registrar(ctx context.Context, op Operador, req dto.RegistrarVentaRequest) (*dto.VentaResponse, error)
	Anular(ctx context.Context, op Operador, id uuid.UUID, motivo string) error
	// ListarPorCaja lists the sales of the caja's open apertura, newest first.
	ListarPorCaja(ctx context.Context, op Operador, cajaID uuid.UUID) ([]dto.VentaResponse, error)
	StockSucursal(ctx context.Context, sucursalID uuid.UUID) (*dto.StockResponse, error)
}

type ventaService struct {
	repo         repository.VentaRepository
	cajaRepo     repository.CajaRepository
	productoRepo repository.ProductoRepository
	calc         cobro.Calculadora
	pub          realtime.Publicador
	dispatcher   *worker.Dispatcher
	now          func() time.Time
}

func NewVentaService(
	repo repository.VentaRepository,
	cajaRepo repository.CajaRepository,
	productoRepo repository.ProductoRepository,
	calc cobro.Calculadora,
	pub realtime.Publicador,
	dispatcher *worker.Dispatcher,
) VentaService {
	return &ventaService{
		repo:         repo,
		cajaRepo:     cajaRepo,
		productoRepo: productoRepo,
		calc:         calc,
		pub:          pub,
		dispatcher:   dispatcher,
		now:          time.Now,
	}
}

// runTx executes fn inside a GORM transaction when db is available,
// or calls fn(nil) directly when db is nil (unit test mode).
func runTx(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	if db == nil {
		return fn(nil)
	}
	return db.WithContext(ctx).Transaction(fn)
}

// ── Registrar ─────────────────────────────────────────────────────────────────
//   1. Resolve products (pre-flight, outside TX); stock shortfall only flags
//   2. Recompute rounding and check the payment lines against the total to pay
//   3. BEGIN TX: lock apertura (must be open), next numero, create venta,
//      decrement stock
//   4. COMMIT, then publish STOCK_ACTUALIZADO + VENTA_REGISTRADA and enqueue
//      the ticket job

func (s *ventaService) Registrar(ctx context.Context, op Operador, req dto.RegistrarVentaRequest) (*dto.VentaResponse, error) {
	cajaID, err := uuid.Parse(req.CajaID)
	if err != nil {
		return nil, apierror.Validacion("caja_id inválido")
	}
	aperturaID, err := uuid.Parse(req.AperturaID)
	if err != nil {
		return nil, apierror.Validacion("apertura_id inválido")
	}
	if len(req.Items) == 0 {
		return nil, apierror.Validacion("La venta no tiene productos")
	}
	modo := cobro.ModoPago(req.Modo)
	if err := validarDocumento(req.Documento); err != nil {
		return nil, err
	}

	// 1. Resolve products
	type resolvedItem struct {
		productoID uuid.UUID
		nombre     string
		precio     decimal.Decimal
		cantidad   int
		subtotal   decimal.Decimal
	}
	ids := make([]uuid.UUID, 0, len(req.Items))
	for _, item := range req.Items {
		pid, err := uuid.Parse(item.ProductoID)
		if err != nil {
			return nil, apierror.Validacion("producto_id inválido: " + item.ProductoID)
		}
		ids = append(ids, pid)
	}
	productos, err := s.productoRepo.FindByIDs(ctx, nil, ids)
	if err != nil {
		return nil, err
	}
	porID := make(map[uuid.UUID]model.Producto, len(productos))
	for _, p := range productos {
		porID[p.ID] = p
	}

	resolved := make([]resolvedItem, 0, len(req.Items))
	pedido := make(map[uuid.UUID]int, len(req.Items))
	total := decimal.Zero
	for i, item := range req.Items {
		p, ok := porID[ids[i]]
		if !ok {
			return nil, apierror.Validacion(fmt.Sprintf("producto %s no encontrado", item.ProductoID))
		}
		if !p.Activo {
			return nil, apierror.Validacion(fmt.Sprintf("producto %s está inactivo y no puede venderse", p.Nombre))
		}
		if item.Cantidad < 1 || !item.PrecioUnitario.IsPositive() {
			return nil, apierror.Validacion(fmt.Sprintf("línea inválida para %s", p.Nombre))
		}
		sub := item.PrecioUnitario.Mul(decimal.NewFromInt(int64(item.Cantidad)))
		total = total.Add(sub)
		pedido[p.ID] += item.Cantidad
		resolved = append(resolved, resolvedItem{
			productoID: p.ID,
			nombre:     p.Nombre,
			precio:     item.PrecioUnitario,
			cantidad:   item.Cantidad,
			subtotal:   sub,
		})
	}
	conflictoStock := false
	for id, cant := range pedido {
		if porID[id].Stock < cant {
			conflictoStock = true
		}
	}

	// 2. Settlement
	ajuste := s.calc.AjusteRedondeo(total, modo)
	totalAPagar := total.Add(ajuste)
	pagos := make([]cobro.Pago, 0, len(req.Pagos))
	for _, p := range req.Pagos {
		pagos = append(pagos, cobro.Pago{Metodo: p.Metodo, Monto: p.Monto})
	}
	if err := cobro.ValidarPagos(modo, pagos, totalAPagar); err != nil {
		return nil, err
	}

	// 3. ACID transaction
	var venta model.Venta
	txErr := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		ap, err := s.cajaRepo.LockAperturaTx(ctx, tx, aperturaID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apierror.Conflicto("La apertura no existe")
		}
		if err != nil {
			return err
		}
		if ap.SucursalID != op.SucursalID {
			return apierror.NoEncontrado("La apertura no existe")
		}
		if ap.Estado != model.AperturaAbierta || ap.CajaID != cajaID {
			return apierror.Conflicto("La apertura ya no está abierta para esta caja")
		}
		for id := range pedido {
			if porID[id].SucursalID != ap.SucursalID {
				return apierror.Validacion(fmt.Sprintf("producto %s no pertenece a la sucursal", porID[id].Nombre))
			}
		}

		numero, err := s.repo.NextNumero(ctx, tx, aperturaID)
		if err != nil {
			return err
		}

		venta = model.Venta{
			ID:             uuid.New(),
			Numero:         numero,
			Folio:          folio(req.Documento.Tipo, aperturaID, numero),
			CajaID:         cajaID,
			AperturaID:     aperturaID,
			SucursalID:     ap.SucursalID,
			UsuarioID:      op.UsuarioID,
			ModoPago:       string(modo),
			Total:          total,
			AjusteRedondeo: ajuste,
			TotalAPagar:    totalAPagar,
			TipoDocumento:  req.Documento.Tipo,
			Estado:         model.VentaFinalizada,
			ConflictoStock: conflictoStock,
			CreatedAt:      s.now(),
		}
		if r := req.Documento.Receptor; req.Documento.Tipo == model.DocumentoFactura && r != nil {
			venta.ReceptorRut = &r.Rut
			venta.ReceptorRazonSocial = &r.RazonSocial
			venta.ReceptorGiro = &r.Giro
			venta.ReceptorDireccion = &r.Direccion
		}
		for _, r := range resolved {
			venta.Items = append(venta.Items, model.VentaItem{
				ProductoID:     r.productoID,
				Nombre:         r.nombre,
				Cantidad:       r.cantidad,
				PrecioUnitario: r.precio,
				Subtotal:       r.subtotal,
			})
		}
		for _, p := range pagos {
			venta.Pagos = append(venta.Pagos, model.VentaPago{Metodo: p.Metodo, Monto: p.Monto})
		}

		if err := s.repo.Create(ctx, tx, &venta); err != nil {
			return err
		}
		for _, r := range resolved {
			if err := s.productoRepo.UpdateStockTx(tx, r.productoID, -r.cantidad); err != nil {
				return fmt.Errorf("error descontando stock de %s: %w", r.nombre, err)
			}
		}
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}

	// 4. After commit (best-effort)
	log.Info().Str("venta_id", venta.ID.String()).Str("folio", venta.Folio).
		Str("total_a_pagar", venta.TotalAPagar.String()).Bool("conflicto_stock", conflictoStock).
		Msg("venta registrada")
	s.publicarVenta(ctx, realtime.VentaRegistrada, &venta)
	if s.dispatcher != nil {
		if err := s.dispatcher.EnqueueTicket(ctx, venta.ID.String()); err != nil {
			log.Warn().Err(err).Str("venta_id", venta.ID.String()).Msg("no se pudo encolar el ticket")
		}
	}

	return ventaToResponse(&venta), nil
}

// ── Anular ────────────────────────────────────────────────────────────────────
// Irreversible, legal only from finalizada. Stock is restored.

func (s *ventaService) Anular(ctx context.Context, op Operador, id uuid.UUID, motivo string) error {
	motivo = strings.TrimSpace(motivo)
	if motivo == "" {
		return apierror.Validacion("El motivo de anulación es obligatorio")
	}

	var anulada *model.Venta
	txErr := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		venta, err := s.repo.FindByIDForUpdate(ctx, tx, id)
		if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && venta.SucursalID != op.SucursalID) {
			return apierror.NoEncontrado("Venta no encontrada")
		}
		if err != nil {
			return err
		}
		if venta.Estado == model.VentaAnulada {
			return apierror.Conflicto("La venta ya está anulada")
		}
		anulada = venta

		for _, item := range venta.Items {
			if err := s.productoRepo.UpdateStockTx(tx, item.ProductoID, item.Cantidad); err != nil {
				return err
			}
		}
		return s.repo.AnularTx(ctx, tx, id, motivo, s.now())
	})
	if txErr != nil {
		return txErr
	}

	log.Info().Str("venta_id", id.String()).Str("motivo", motivo).Msg("venta anulada")
	s.publicarVenta(ctx, realtime.VentaAnulada, anulada)
	return nil
}

// ── Consultas ─────────────────────────────────────────────────────────────────

func (s *ventaService) ListarPorCaja(ctx context.Context, op Operador, cajaID uuid.UUID) ([]dto.VentaResponse, error) {
	ap, err := s.cajaRepo.FindAperturaAbierta(ctx, nil, cajaID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return []dto.VentaResponse{}, nil
	}
	if err != nil {
		return nil, err
	}
	if ap.SucursalID != op.SucursalID {
		return nil, errCajaNoEncontrada
	}
	ventas, err := s.repo.ListPorApertura(ctx, ap.ID)
	if err != nil {
		return nil, err
	}
	out := make([]dto.VentaResponse, 0, len(ventas))
	for i := range ventas {
		out = append(out, *ventaToResponse(&ventas[i]))
	}
	return out, nil
}

func (s *ventaService) StockSucursal(ctx context.Context, sucursalID uuid.UUID) (*dto.StockResponse, error) {
	productos, err := s.productoRepo.ListStock(ctx, sucursalID)
	if err != nil {
		return nil, err
	}
	resp := &dto.StockResponse{SucursalID: sucursalID.String(), Items: make([]dto.StockItem, 0, len(productos))}
	for _, p := range productos {
		resp.Items = append(resp.Items, dto.StockItem{ProductoID: p.ID.String(), Nombre: p.Nombre, Stock: p.Stock})
	}
	return resp, nil
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// publicarVenta announces the stock change to the sucursal and the sale change
// to the terminals holding that caja's sale list.
func (s *ventaService) publicarVenta(ctx context.Context, tipo realtime.Tipo, v *model.Venta) {
	if s.pub == nil {
		return
	}
	eventos := []realtime.Evento{
		{Tipo: realtime.StockActualizado, SucursalID: v.SucursalID.String(), CajaID: v.CajaID.String(), Fecha: s.now()},
		{
			Tipo:       tipo,
			SucursalID: v.SucursalID.String(),
			CajaID:     v.CajaID.String(),
			AperturaID: v.AperturaID.String(),
			UsuarioID:  v.UsuarioID.String(),
			VentaID:    v.ID.String(),
			Fecha:      s.now(),
		},
	}
	for _, e := range eventos {
		if err := s.pub.Publicar(ctx, e); err != nil {
			log.Warn().Err(err).Str("tipo", string(e.Tipo)).Str("venta_id", v.ID.String()).Msg("no se pudo publicar evento de venta")
		}
	}
}

func validarDocumento(d dto.DocumentoRequest) error {
	switch d.Tipo {
	case model.DocumentoBoleta:
		return nil
	case model.DocumentoFactura:
		r := d.Receptor
		if r == nil || strings.TrimSpace(r.Rut) == "" || strings.TrimSpace(r.RazonSocial) == "" ||
			strings.TrimSpace(r.Giro) == "" || strings.TrimSpace(r.Direccion) == "" {
			return apierror.Validacion("La factura requiere los datos del receptor")
		}
		return nil
	default:
		return apierror.Validacion("Tipo de documento inválido")
	}
}

// folio is B|F, the first block of the apertura id and the sale number.
func folio(tipo string, aperturaID uuid.UUID, numero int) string {
	prefijo := "B"
	if tipo == model.DocumentoFactura {
		prefijo = "F"
	}
	return fmt.Sprintf("%s-%s-%05d", prefijo, strings.ToUpper(aperturaID.String()[:8]), numero)
}

func ventaToResponse(v *model.Venta) *dto.VentaResponse {
	items := make([]dto.ItemVentaResponse, 0, len(v.Items))
	for _, item := range v.Items {
		items = append(items, dto.ItemVentaResponse{
			ProductoID:     item.ProductoID.String(),
			Producto:       item.Nombre,
			Cantidad:       item.Cantidad,
			PrecioUnitario: item.PrecioUnitario,
			Subtotal:       item.Subtotal,
		})
	}
	pagos := make([]dto.PagoRequest, 0, len(v.Pagos))
	for _, p := range v.Pagos {
		pagos = append(pagos, dto.PagoRequest{Metodo: p.Metodo, Monto: p.Monto})
	}
	doc := dto.DocumentoRequest{Tipo: v.TipoDocumento}
	if v.TipoDocumento == model.DocumentoFactura && v.ReceptorRut != nil {
		doc.Receptor = &dto.ReceptorRequest{Rut: *v.ReceptorRut}
		if v.ReceptorRazonSocial != nil {
			doc.Receptor.RazonSocial = *v.ReceptorRazonSocial
		}
		if v.ReceptorGiro != nil {
			doc.Receptor.Giro = *v.ReceptorGiro
		}
		if v.ReceptorDireccion != nil {
			doc.Receptor.Direccion = *v.ReceptorDireccion
		}
	}
	totalAPagar := v.TotalAPagar
	return &dto.VentaResponse{
		ID:             v.ID.String(),
		Numero:         v.Numero,
		Folio:          v.Folio,
		CajaID:         v.CajaID.String(),
		AperturaID:     v.AperturaID.String(),
		Modo:           v.ModoPago,
		Items:          items,
		Pagos:          pagos,
		Total:          v.Total,
		AjusteRedondeo: v.AjusteRedondeo,
		TotalAPagar:    &totalAPagar,
		Documento:      doc,
		Estado:         v.Estado,
		ConflictoStock: v.ConflictoStock,
		CreatedAt:      v.CreatedAt.UTC().Format(timeLayout),
	}
}
