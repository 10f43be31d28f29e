package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Estados de una venta. The only transition is finalizada → anulada.
const (
	VentaFinalizada = "finalizada"
	VentaAnulada    = "anulada"
)

// Tipos de documento.
const (
	DocumentoBoleta  = "boleta"
	DocumentoFactura = "factura"
)

// Venta is a confirmed sale within an apertura.
type Venta struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	// Numero is sequential within the apertura.
	Numero     int       `gorm:"not null;uniqueIndex:uq_ventas_apertura_numero"`
	Folio      string    `gorm:"type:varchar(32);uniqueIndex;not null"`
	CajaID     uuid.UUID `gorm:"type:uuid;index;not null"`
	AperturaID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uq_ventas_apertura_numero"`
	SucursalID uuid.UUID `gorm:"type:uuid;index;not null"`
	UsuarioID  uuid.UUID `gorm:"type:uuid;not null"`
	ModoPago   string    `gorm:"type:varchar(20);not null"`

	Total          decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	AjusteRedondeo decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	TotalAPagar    decimal.Decimal `gorm:"type:decimal(12,2);not null"`

	TipoDocumento string `gorm:"type:varchar(10);not null;default:'boleta'"`
	// Receptor snapshot, only for facturas.
	ReceptorRut         *string `gorm:"type:varchar(12)"`
	ReceptorRazonSocial *string
	ReceptorGiro        *string
	ReceptorDireccion   *string

	Estado          string `gorm:"type:varchar(20);not null;default:'finalizada'"`
	MotivoAnulacion *string
	ConflictoStock  bool `gorm:"not null;default:false"`
	// TicketPath is filled by the ticket worker once the PDF exists.
	TicketPath *string
	CreatedAt  time.Time
	AnuladaAt  *time.Time

	Items []VentaItem `gorm:"foreignKey:VentaID"`
	Pagos []VentaPago `gorm:"foreignKey:VentaID"`
}

type VentaItem struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	VentaID        uuid.UUID       `gorm:"type:uuid;index;not null"`
	ProductoID     uuid.UUID       `gorm:"type:uuid;not null"`
	Nombre         string          `gorm:"not null"`
	Cantidad       int             `gorm:"not null"`
	PrecioUnitario decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Subtotal       decimal.Decimal `gorm:"type:decimal(12,2);not null"`
}

// VentaPago is one tender line. Monto > 0, lines add up to Venta.TotalAPagar.
type VentaPago struct {
	ID      uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	VentaID uuid.UUID       `gorm:"type:uuid;index;not null"`
	Metodo  string          `gorm:"type:varchar(20);not null"`
	Monto   decimal.Decimal `gorm:"type:decimal(12,2);not null"`
}
