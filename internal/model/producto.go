package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Producto is the catalog entry as seen by the register. Catalog maintenance
// lives elsewhere; sales only read it and decrement Stock.
type Producto struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SucursalID  uuid.UUID       `gorm:"type:uuid;index;not null"`
	Nombre      string          `gorm:"index;not null"`
	PrecioVenta decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	// Stock may go negative: an insufficient stock flag never blocks a sale.
	Stock     int  `gorm:"not null;default:0"`
	Activo    bool `gorm:"not null;default:true"`
	UpdatedAt time.Time
}
