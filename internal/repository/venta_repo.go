package repository

import (
	"context"
	"time"

	"bersapos/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type VentaRepository interface {
	Create(ctx context.Context, tx *gorm.DB, v *model.Venta) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Venta, error)
	FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Venta, error)
	AnularTx(ctx context.Context, tx *gorm.DB, id uuid.UUID, motivo string, at time.Time) error
	// NextNumero must run while the apertura row is locked.
	NextNumero(ctx context.Context, tx *gorm.DB, aperturaID uuid.UUID) (int, error)
	ListPorApertura(ctx context.Context, aperturaID uuid.UUID) ([]model.Venta, error)
	SetTicketPath(ctx context.Context, id uuid.UUID, path string) error
	DB() *gorm.DB // exposes the DB for transaction creation in service layer
}

type ventaRepo struct{ db *gorm.DB }

func NewVentaRepository(db *gorm.DB) VentaRepository { return &ventaRepo{db: db} }

func (r *ventaRepo) DB() *gorm.DB { return r.db }

func (r *ventaRepo) conn(ctx context.Context, tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx.WithContext(ctx)
	}
	return r.db.WithContext(ctx)
}

func (r *ventaRepo) Create(ctx context.Context, tx *gorm.DB, v *model.Venta) error {
	return r.conn(ctx, tx).Create(v).Error
}

func (r *ventaRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Venta, error) {
	var v model.Venta
	err := r.db.WithContext(ctx).Preload("Items").Preload("Pagos").First(&v, "id = ?", id).Error
	return &v, err
}

func (r *ventaRepo) FindByIDForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Venta, error) {
	var v model.Venta
	err := r.conn(ctx, tx).Clauses(clause.Locking{Strength: "UPDATE"}).First(&v, "id = ?", id).Error
	if err != nil {
		return &v, err
	}
	err = r.conn(ctx, tx).Where("venta_id = ?", id).Find(&v.Items).Error
	return &v, err
}

func (r *ventaRepo) AnularTx(ctx context.Context, tx *gorm.DB, id uuid.UUID, motivo string, at time.Time) error {
	return r.conn(ctx, tx).Model(&model.Venta{}).
		Where("id = ? AND estado = ?", id, model.VentaFinalizada).
		Updates(map[string]interface{}{
			"estado":           model.VentaAnulada,
			"motivo_anulacion": motivo,
			"anulada_at":       at,
		}).Error
}

func (r *ventaRepo) NextNumero(ctx context.Context, tx *gorm.DB, aperturaID uuid.UUID) (int, error) {
	var num int
	err := r.conn(ctx, tx).Model(&model.Venta{}).
		Select("COALESCE(MAX(numero), 0) + 1").
		Where("apertura_id = ?", aperturaID).
		Scan(&num).Error
	return num, err
}

func (r *ventaRepo) ListPorApertura(ctx context.Context, aperturaID uuid.UUID) ([]model.Venta, error) {
	var ventas []model.Venta
	err := r.db.WithContext(ctx).
		Preload("Items").Preload("Pagos").
		Where("apertura_id = ?", aperturaID).
		Order("numero DESC").
		Find(&ventas).Error
	return ventas, err
}

func (r *ventaRepo) SetTicketPath(ctx context.Context, id uuid.UUID, path string) error {
	return r.db.WithContext(ctx).Model(&model.Venta{}).Where("id = ?", id).Update("ticket_path", path).Error
}
