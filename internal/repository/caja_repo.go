package repository

import (
	"context"

	"bersapos/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ResumenPagos aggregates the finalized sales of one apertura.
type ResumenPagos struct {
	PorMetodo map[string]decimal.Decimal
	Total     decimal.Decimal
	Cantidad  int
}

// CajaRepository covers cajas and their aperturas. Methods taking a tx run on
// it when non-nil; callers pass the tx from runTx.
type CajaRepository interface {
	ListCajas(ctx context.Context, sucursalID uuid.UUID) ([]model.Caja, error)
	FindCaja(ctx context.Context, id uuid.UUID) (*model.Caja, error)
	// LockCajaTx takes a row lock on the caja; open and close serialize on it.
	LockCajaTx(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Caja, error)
	FindAperturaAbierta(ctx context.Context, tx *gorm.DB, cajaID uuid.UUID) (*model.Apertura, error)
	LockAperturaTx(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Apertura, error)
	CreateAperturaTx(ctx context.Context, tx *gorm.DB, a *model.Apertura) error
	UpdateAperturaTx(ctx context.Context, tx *gorm.DB, a *model.Apertura) error
	ResumenPagos(ctx context.Context, tx *gorm.DB, aperturaID uuid.UUID) (*ResumenPagos, error)
	DB() *gorm.DB
}

type cajaRepo struct{ db *gorm.DB }

func NewCajaRepository(db *gorm.DB) CajaRepository { return &cajaRepo{db: db} }

func (r *cajaRepo) DB() *gorm.DB { return r.db }

func (r *cajaRepo) conn(ctx context.Context, tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx.WithContext(ctx)
	}
	return r.db.WithContext(ctx)
}

func (r *cajaRepo) ListCajas(ctx context.Context, sucursalID uuid.UUID) ([]model.Caja, error) {
	var cajas []model.Caja
	err := r.db.WithContext(ctx).
		Where("sucursal_id = ? AND activa = true", sucursalID).
		Order("nombre ASC").
		Find(&cajas).Error
	return cajas, err
}

func (r *cajaRepo) FindCaja(ctx context.Context, id uuid.UUID) (*model.Caja, error) {
	var c model.Caja
	err := r.db.WithContext(ctx).First(&c, "id = ?", id).Error
	return &c, err
}

func (r *cajaRepo) LockCajaTx(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Caja, error) {
	var c model.Caja
	err := r.conn(ctx, tx).Clauses(clause.Locking{Strength: "UPDATE"}).First(&c, "id = ?", id).Error
	return &c, err
}

func (r *cajaRepo) FindAperturaAbierta(ctx context.Context, tx *gorm.DB, cajaID uuid.UUID) (*model.Apertura, error) {
	var a model.Apertura
	err := r.conn(ctx, tx).
		Where("caja_id = ? AND estado = ?", cajaID, model.AperturaAbierta).
		First(&a).Error
	return &a, err
}

func (r *cajaRepo) LockAperturaTx(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Apertura, error) {
	var a model.Apertura
	err := r.conn(ctx, tx).Clauses(clause.Locking{Strength: "UPDATE"}).First(&a, "id = ?", id).Error
	return &a, err
}

func (r *cajaRepo) CreateAperturaTx(ctx context.Context, tx *gorm.DB, a *model.Apertura) error {
	return r.conn(ctx, tx).Create(a).Error
}

func (r *cajaRepo) UpdateAperturaTx(ctx context.Context, tx *gorm.DB, a *model.Apertura) error {
	return r.conn(ctx, tx).Save(a).Error
}

// ResumenPagos sums payment lines per method over finalized sales only.
func (r *cajaRepo) ResumenPagos(ctx context.Context, tx *gorm.DB, aperturaID uuid.UUID) (*ResumenPagos, error) {
	var filas []struct {
		Metodo string
		Total  decimal.Decimal
	}
	err := r.conn(ctx, tx).
		Table("venta_pagos").
		Select("venta_pagos.metodo AS metodo, COALESCE(SUM(venta_pagos.monto), 0) AS total").
		Joins("JOIN ventas ON ventas.id = venta_pagos.venta_id").
		Where("ventas.apertura_id = ? AND ventas.estado = ?", aperturaID, model.VentaFinalizada).
		Group("venta_pagos.metodo").
		Scan(&filas).Error
	if err != nil {
		return nil, err
	}

	var cantidad int64
	err = r.conn(ctx, tx).Model(&model.Venta{}).
		Where("apertura_id = ? AND estado = ?", aperturaID, model.VentaFinalizada).
		Count(&cantidad).Error
	if err != nil {
		return nil, err
	}

	res := &ResumenPagos{PorMetodo: make(map[string]decimal.Decimal, len(filas)), Total: decimal.Zero, Cantidad: int(cantidad)}
	for _, f := range filas {
		res.PorMetodo[f.Metodo] = f.Total
		res.Total = res.Total.Add(f.Total)
	}
	return res, nil
}
