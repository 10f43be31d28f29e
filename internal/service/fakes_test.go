package service_test

import (
	"context"
	"sort"
	"sync"
	"time"

	"bersapos/internal/model"
	"bersapos/internal/realtime"
	"bersapos/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ── In-memory store shared by the fake repositories ─────────────────────────

type memStore struct {
	cajas     map[uuid.UUID]*model.Caja
	aperturas map[uuid.UUID]*model.Apertura
	productos map[uuid.UUID]*model.Producto
	ventas    map[uuid.UUID]*model.Venta
}

func newMemStore() *memStore {
	return &memStore{
		cajas:     make(map[uuid.UUID]*model.Caja),
		aperturas: make(map[uuid.UUID]*model.Apertura),
		productos: make(map[uuid.UUID]*model.Producto),
		ventas:    make(map[uuid.UUID]*model.Venta),
	}
}

func (s *memStore) nuevaCaja(sucursalID uuid.UUID) *model.Caja {
	c := &model.Caja{ID: uuid.New(), Nombre: "Caja 1", SucursalID: sucursalID, Activa: true}
	s.cajas[c.ID] = c
	return c
}

func (s *memStore) nuevoProducto(sucursalID uuid.UUID, nombre string, precio int64, stock int) *model.Producto {
	p := &model.Producto{
		ID:          uuid.New(),
		SucursalID:  sucursalID,
		Nombre:      nombre,
		PrecioVenta: decimal.NewFromInt(precio),
		Stock:       stock,
		Activo:      true,
	}
	s.productos[p.ID] = p
	return p
}

// ── CajaRepository ───────────────────────────────────────────────────────────

type memCajaRepo struct{ s *memStore }

var _ repository.CajaRepository = (*memCajaRepo)(nil)

func (r *memCajaRepo) DB() *gorm.DB { return nil }

func (r *memCajaRepo) ListCajas(_ context.Context, sucursalID uuid.UUID) ([]model.Caja, error) {
	var out []model.Caja
	for _, c := range r.s.cajas {
		if c.SucursalID == sucursalID && c.Activa {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Nombre < out[j].Nombre })
	return out, nil
}

func (r *memCajaRepo) FindCaja(_ context.Context, id uuid.UUID) (*model.Caja, error) {
	c, ok := r.s.cajas[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return c, nil
}

func (r *memCajaRepo) LockCajaTx(ctx context.Context, _ *gorm.DB, id uuid.UUID) (*model.Caja, error) {
	return r.FindCaja(ctx, id)
}

func (r *memCajaRepo) FindAperturaAbierta(_ context.Context, _ *gorm.DB, cajaID uuid.UUID) (*model.Apertura, error) {
	for _, a := range r.s.aperturas {
		if a.CajaID == cajaID && a.Estado == model.AperturaAbierta {
			cp := *a
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *memCajaRepo) LockAperturaTx(_ context.Context, _ *gorm.DB, id uuid.UUID) (*model.Apertura, error) {
	a, ok := r.s.aperturas[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *memCajaRepo) CreateAperturaTx(_ context.Context, _ *gorm.DB, a *model.Apertura) error {
	for _, x := range r.s.aperturas {
		if x.CajaID == a.CajaID && x.Estado == model.AperturaAbierta {
			return gorm.ErrDuplicatedKey
		}
	}
	cp := *a
	r.s.aperturas[a.ID] = &cp
	return nil
}

func (r *memCajaRepo) UpdateAperturaTx(_ context.Context, _ *gorm.DB, a *model.Apertura) error {
	cp := *a
	r.s.aperturas[a.ID] = &cp
	return nil
}

func (r *memCajaRepo) ResumenPagos(_ context.Context, _ *gorm.DB, aperturaID uuid.UUID) (*repository.ResumenPagos, error) {
	res := &repository.ResumenPagos{PorMetodo: map[string]decimal.Decimal{}}
	for _, v := range r.s.ventas {
		if v.AperturaID != aperturaID || v.Estado != model.VentaFinalizada {
			continue
		}
		res.Cantidad++
		for _, p := range v.Pagos {
			res.PorMetodo[p.Metodo] = res.PorMetodo[p.Metodo].Add(p.Monto)
			res.Total = res.Total.Add(p.Monto)
		}
	}
	return res, nil
}

// ── VentaRepository ──────────────────────────────────────────────────────────

type memVentaRepo struct {
	s         *memStore
	errCreate error
}

var _ repository.VentaRepository = (*memVentaRepo)(nil)

func (r *memVentaRepo) DB() *gorm.DB { return nil }

func (r *memVentaRepo) Create(_ context.Context, _ *gorm.DB, v *model.Venta) error {
	if r.errCreate != nil {
		return r.errCreate
	}
	cp := *v
	r.s.ventas[v.ID] = &cp
	return nil
}

func (r *memVentaRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Venta, error) {
	v, ok := r.s.ventas[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *v
	return &cp, nil
}

func (r *memVentaRepo) FindByIDForUpdate(ctx context.Context, _ *gorm.DB, id uuid.UUID) (*model.Venta, error) {
	return r.FindByID(ctx, id)
}

func (r *memVentaRepo) AnularTx(_ context.Context, _ *gorm.DB, id uuid.UUID, motivo string, at time.Time) error {
	v := r.s.ventas[id]
	v.Estado = model.VentaAnulada
	v.MotivoAnulacion = &motivo
	v.AnuladaAt = &at
	return nil
}

func (r *memVentaRepo) NextNumero(_ context.Context, _ *gorm.DB, aperturaID uuid.UUID) (int, error) {
	ultimo := 0
	for _, v := range r.s.ventas {
		if v.AperturaID == aperturaID && v.Numero > ultimo {
			ultimo = v.Numero
		}
	}
	return ultimo + 1, nil
}

func (r *memVentaRepo) ListPorApertura(_ context.Context, aperturaID uuid.UUID) ([]model.Venta, error) {
	var out []model.Venta
	for _, v := range r.s.ventas {
		if v.AperturaID == aperturaID {
			out = append(out, *v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Numero > out[j].Numero })
	return out, nil
}

func (r *memVentaRepo) SetTicketPath(_ context.Context, id uuid.UUID, path string) error {
	r.s.ventas[id].TicketPath = &path
	return nil
}

// ── ProductoRepository ───────────────────────────────────────────────────────

type memProductoRepo struct{ s *memStore }

var _ repository.ProductoRepository = (*memProductoRepo)(nil)

func (r *memProductoRepo) Create(_ context.Context, p *model.Producto) error {
	cp := *p
	r.s.productos[p.ID] = &cp
	return nil
}

func (r *memProductoRepo) FindByIDs(_ context.Context, _ *gorm.DB, ids []uuid.UUID) ([]model.Producto, error) {
	var out []model.Producto
	for _, id := range ids {
		if p, ok := r.s.productos[id]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *memProductoRepo) ListStock(_ context.Context, sucursalID uuid.UUID) ([]model.Producto, error) {
	var out []model.Producto
	for _, p := range r.s.productos {
		if p.SucursalID == sucursalID && p.Activo {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Nombre < out[j].Nombre })
	return out, nil
}

func (r *memProductoRepo) UpdateStockTx(_ *gorm.DB, id uuid.UUID, delta int) error {
	p, ok := r.s.productos[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	p.Stock += delta
	return nil
}

// ── Publicador ───────────────────────────────────────────────────────────────

type spyPublicador struct {
	mu      sync.Mutex
	eventos []realtime.Evento
	err     error
}

func (p *spyPublicador) Publicar(_ context.Context, e realtime.Evento) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.eventos = append(p.eventos, e)
	return p.err
}

func (p *spyPublicador) tipos() []realtime.Tipo {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]realtime.Tipo, 0, len(p.eventos))
	for _, e := range p.eventos {
		out = append(out, e.Tipo)
	}
	return out
}
