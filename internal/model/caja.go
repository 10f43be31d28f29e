package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Estados de una apertura.
const (
	AperturaAbierta = "abierta"
	AperturaCerrada = "cerrada"
)

// Caja is a physical register of a sucursal. Reference data.
type Caja struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Nombre     string    `gorm:"not null"`
	SucursalID uuid.UUID `gorm:"type:uuid;index;not null"`
	Activa     bool      `gorm:"not null;default:true"`
	CreatedAt  time.Time
}

// Apertura is one open-to-close shift of a Caja.
// Estado: "abierta" | "cerrada". At most one "abierta" per caja, enforced by a
// row lock on the caja and the partial index uq_aperturas_caja_abierta.
type Apertura struct {
	ID                uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	CajaID            uuid.UUID       `gorm:"type:uuid;index;not null"`
	SucursalID        uuid.UUID       `gorm:"type:uuid;index;not null"`
	UsuarioAperturaID uuid.UUID       `gorm:"type:uuid;not null"`
	FechaApertura     time.Time       `gorm:"not null"`
	MontoInicial      decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	UsuarioCierreID   *uuid.UUID      `gorm:"type:uuid"`
	FechaCierre       *time.Time
	// MontoFinal is the cash counted by the operator on close.
	MontoFinal *decimal.Decimal `gorm:"type:decimal(12,2)"`
	// Diferencia = MontoFinal - efectivo esperado.
	Diferencia       *decimal.Decimal `gorm:"type:decimal(12,2)"`
	MotivoDiferencia *string
	// ClasificacionDiferencia: "normal" | "advertencia" | "critico"
	ClasificacionDiferencia *string `gorm:"type:varchar(20)"`
	Estado                  string  `gorm:"type:varchar(20);not null;default:'abierta'"`

	Caja *Caja `gorm:"foreignKey:CajaID"`
}
