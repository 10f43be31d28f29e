// Package checkout holds the terminal's cart, the document choice and the
// saga that turns a confirmable settlement into a persisted sale.
package checkout

import (
	"sync"

	"bersapos/internal/apierror"

	"github.com/shopspring/decimal"
)

// Linea is one cart line. Nombre and PrecioUnitario are snapshots taken when
// the product was added.
type Linea struct {
	ProductoID     string
	Nombre         string
	PrecioUnitario decimal.Decimal
	Cantidad       int
	// StockInsuficiente is advisory: the sale is never blocked by it.
	StockInsuficiente bool
}

func (l Linea) Subtotal() decimal.Decimal {
	return l.PrecioUnitario.Mul(decimal.NewFromInt(int64(l.Cantidad)))
}

// Carrito is safe for concurrent use.
type Carrito struct {
	mu     sync.Mutex
	lineas []Linea
}

func NewCarrito() *Carrito {
	return &Carrito{}
}

// Agregar adds cantidad units. A product already in the cart keeps its line
// and its original price snapshot.
func (c *Carrito) Agregar(productoID, nombre string, precio decimal.Decimal, cantidad int) error {
	if productoID == "" {
		return apierror.Validacion("Producto requerido")
	}
	if cantidad < 1 {
		return apierror.Validacion("La cantidad debe ser al menos 1")
	}
	if !precio.IsPositive() {
		return apierror.Validacion("El precio debe ser mayor a cero")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.lineas {
		if c.lineas[i].ProductoID == productoID {
			c.lineas[i].Cantidad += cantidad
			return nil
		}
	}
	c.lineas = append(c.lineas, Linea{
		ProductoID:     productoID,
		Nombre:         nombre,
		PrecioUnitario: precio,
		Cantidad:       cantidad,
	})
	return nil
}

func (c *Carrito) Quitar(productoID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.lineas {
		if c.lineas[i].ProductoID == productoID {
			c.lineas = append(c.lineas[:i], c.lineas[i+1:]...)
			return
		}
	}
}

func (c *Carrito) CambiarCantidad(productoID string, cantidad int) error {
	if cantidad < 1 {
		return apierror.Validacion("La cantidad debe ser al menos 1")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.lineas {
		if c.lineas[i].ProductoID == productoID {
			c.lineas[i].Cantidad = cantidad
			return nil
		}
	}
	return apierror.NoEncontrado("El producto no está en el carrito")
}

func (c *Carrito) Limpiar() {
	c.mu.Lock()
	c.lineas = nil
	c.mu.Unlock()
}

// Lineas returns a copy of the cart lines.
func (c *Carrito) Lineas() []Linea {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Linea, len(c.lineas))
	copy(out, c.lineas)
	return out
}

func (c *Carrito) Vacio() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.lineas) == 0
}

// Descontar removes the units of vendidas from the cart. Units added after
// vendidas was taken stay in the cart.
func (c *Carrito) Descontar(vendidas []Linea) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, v := range vendidas {
		for i := range c.lineas {
			if c.lineas[i].ProductoID != v.ProductoID {
				continue
			}
			c.lineas[i].Cantidad -= v.Cantidad
			if c.lineas[i].Cantidad < 1 {
				c.lineas = append(c.lineas[:i], c.lineas[i+1:]...)
			}
			break
		}
	}
}

func (c *Carrito) Total() decimal.Decimal {
	c.mu.Lock()
	defer c.mu.Unlock()
	return totalLineas(c.lineas)
}

func totalLineas(lineas []Linea) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lineas {
		total = total.Add(l.Subtotal())
	}
	return total
}

// MarcarStock flags lines asking for more units than stock reports. Products
// missing from stock are left unflagged.
func (c *Carrito) MarcarStock(stock map[string]int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.lineas {
		disponible, ok := stock[c.lineas[i].ProductoID]
		c.lineas[i].StockInsuficiente = ok && c.lineas[i].Cantidad > disponible
	}
}
