package repository

import (
	"context"

	"bersapos/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ProductoRepository is the register's read view of the catalog plus the
// stock delta applied by sales and voids.
type ProductoRepository interface {
	Create(ctx context.Context, p *model.Producto) error
	FindByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]model.Producto, error)
	ListStock(ctx context.Context, sucursalID uuid.UUID) ([]model.Producto, error)

	// Used inside transactions; callers pass the tx
	UpdateStockTx(tx *gorm.DB, id uuid.UUID, delta int) error
}

type productoRepo struct{ db *gorm.DB }

func NewProductoRepository(db *gorm.DB) ProductoRepository { return &productoRepo{db: db} }

func (r *productoRepo) Create(ctx context.Context, p *model.Producto) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *productoRepo) FindByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]model.Producto, error) {
	q := r.db
	if tx != nil {
		q = tx
	}
	var productos []model.Producto
	err := q.WithContext(ctx).Where("id IN ?", ids).Find(&productos).Error
	return productos, err
}

func (r *productoRepo) ListStock(ctx context.Context, sucursalID uuid.UUID) ([]model.Producto, error) {
	var productos []model.Producto
	err := r.db.WithContext(ctx).
		Where("sucursal_id = ? AND activo = true", sucursalID).
		Order("nombre ASC").
		Find(&productos).Error
	return productos, err
}

// UpdateStockTx applies delta without a floor: stock may go negative.
func (r *productoRepo) UpdateStockTx(tx *gorm.DB, id uuid.UUID, delta int) error {
	return tx.Model(&model.Producto{}).Where("id = ?", id).
		Update("stock", gorm.Expr("stock + ?", delta)).Error
}
