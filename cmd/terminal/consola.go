package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"bersapos/internal/apierror"
	"bersapos/internal/checkout"
	"bersapos/internal/cobro"
	"bersapos/internal/gateway"
	"bersapos/internal/sesion"

	"github.com/shopspring/decimal"
)

const ayuda = `comandos:
  estado | cajas | seleccionar <caja_id> | descartar
  abrir <monto_inicial> | cierre | confirmar <monto_final> [motivo] | cancelar
  agregar <producto_id> <precio> <cantidad> <nombre> | quitar <producto_id> | carrito | stock
  boleta | factura <rut>|<razón social>|<giro>|<dirección>
  cotizar <modo> [efectivo] [debito] | cobrar <modo> [efectivo] [debito]
  ventas | anular <venta_id> <motivo>
  ayuda | salir`

// consola is the operator's line interface of a headless terminal.
type consola struct {
	gw         gateway.Gateway
	maquina    *sesion.Maquina
	saga       *checkout.Saga
	sucursalID string
	out        io.Writer
}

// ejecutar reads commands until EOF, "salir" or ctx is cancelled.
func (c *consola) ejecutar(ctx context.Context, in io.Reader) {
	sc := bufio.NewScanner(in)
	fmt.Fprint(c.out, "> ")
	for sc.Scan() {
		if ctx.Err() != nil {
			return
		}
		linea := strings.TrimSpace(sc.Text())
		if linea == "salir" {
			return
		}
		if linea != "" {
			if err := c.comando(ctx, linea); err != nil {
				fmt.Fprintf(c.out, "error (%s): %s\n", apierror.TipoDe(err), apierror.Mensaje(err))
			}
		}
		fmt.Fprint(c.out, "> ")
	}
}

func (c *consola) comando(ctx context.Context, linea string) error {
	cmd, resto, _ := strings.Cut(linea, " ")
	resto = strings.TrimSpace(resto)
	args := strings.Fields(resto)

	switch cmd {
	case "ayuda":
		fmt.Fprintln(c.out, ayuda)
	case "estado":
		c.imprimirEstado(c.maquina.Actual())
	case "cajas":
		cajas, err := c.gw.ListarCajas(ctx, c.sucursalID)
		if err != nil {
			return err
		}
		for _, k := range cajas {
			fmt.Fprintf(c.out, "  %s  %s\n", k.ID, k.Nombre)
		}
	case "seleccionar":
		if len(args) != 1 {
			return apierror.Validacion("uso: seleccionar <caja_id>")
		}
		return c.seleccionar(ctx, args[0])
	case "descartar":
		c.maquina.Descartar()
	case "abrir":
		if len(args) != 1 {
			return apierror.Validacion("uso: abrir <monto_inicial>")
		}
		return c.maquina.AbrirTurno(ctx, args[0])
	case "cierre":
		if err := c.maquina.IniciarCierre(ctx); err != nil {
			return err
		}
		c.imprimirResumen(c.maquina.Actual())
	case "confirmar":
		if len(args) < 1 {
			return apierror.Validacion("uso: confirmar <monto_final> [motivo]")
		}
		motivo := strings.TrimSpace(strings.TrimPrefix(resto, args[0]))
		return c.maquina.ConfirmarCierre(ctx, args[0], motivo)
	case "cancelar":
		return c.maquina.CancelarCierre()
	case "agregar":
		return c.agregar(args)
	case "quitar":
		if len(args) != 1 {
			return apierror.Validacion("uso: quitar <producto_id>")
		}
		c.saga.Carrito().Quitar(args[0])
	case "carrito":
		c.imprimirCarrito()
	case "stock":
		if err := c.saga.RevisarStock(ctx); err != nil {
			return err
		}
		c.imprimirCarrito()
	case "boleta":
		c.saga.UsarDocumento(checkout.Boleta())
	case "factura":
		return c.factura(resto)
	case "cotizar":
		e, err := entradaCobro(args)
		if err != nil {
			return err
		}
		c.imprimirCobro(c.saga.Cotizar(e))
	case "cobrar":
		e, err := entradaCobro(args)
		if err != nil {
			return err
		}
		r, err := c.saga.Confirmar(ctx, e)
		if err != nil {
			return err
		}
		c.imprimirRecibo(r)
	case "ventas":
		ventas, err := c.saga.Ventas(ctx)
		if err != nil {
			return err
		}
		for _, v := range ventas {
			fmt.Fprintf(c.out, "  #%d %s %s %s %s\n", v.Numero, v.ID, v.Folio, v.Modo, v.Estado)
		}
	case "anular":
		if len(args) < 2 {
			return apierror.Validacion("uso: anular <venta_id> <motivo>")
		}
		return c.saga.Anular(ctx, args[0], strings.TrimSpace(strings.TrimPrefix(resto, args[0])))
	default:
		return apierror.Validacion("comando desconocido: " + cmd)
	}
	return nil
}

// seleccionar accepts a caja id; the name comes from the caja list.
func (c *consola) seleccionar(ctx context.Context, cajaID string) error {
	cajas, err := c.gw.ListarCajas(ctx, c.sucursalID)
	if err != nil {
		return err
	}
	for _, k := range cajas {
		if k.ID == cajaID {
			return c.maquina.Seleccionar(ctx, sesion.CajaRef{ID: k.ID, Nombre: k.Nombre})
		}
	}
	return apierror.NoEncontrado("Caja no encontrada en la sucursal")
}

func (c *consola) agregar(args []string) error {
	if len(args) < 4 {
		return apierror.Validacion("uso: agregar <producto_id> <precio> <cantidad> <nombre>")
	}
	precio, err := decimal.NewFromString(args[1])
	if err != nil {
		return apierror.Validacion("precio inválido")
	}
	cantidad, err := strconv.Atoi(args[2])
	if err != nil {
		return apierror.Validacion("cantidad inválida")
	}
	return c.saga.Carrito().Agregar(args[0], strings.Join(args[3:], " "), precio, cantidad)
}

func (c *consola) factura(resto string) error {
	partes := strings.Split(resto, "|")
	if len(partes) != 4 {
		return apierror.Validacion("uso: factura <rut>|<razón social>|<giro>|<dirección>")
	}
	d := checkout.Factura(checkout.Receptor{
		Rut:         strings.TrimSpace(partes[0]),
		RazonSocial: strings.TrimSpace(partes[1]),
		Giro:        strings.TrimSpace(partes[2]),
		Direccion:   strings.TrimSpace(partes[3]),
	})
	if err := d.Validar(); err != nil {
		return err
	}
	c.saga.UsarDocumento(d)
	return nil
}

// entradaCobro parses "<modo> [efectivo] [debito]". In pure cash mode a
// single amount is the cash tendered; in mixed mode both are expected.
func entradaCobro(args []string) (checkout.EntradaCobro, error) {
	if len(args) < 1 {
		return checkout.EntradaCobro{}, apierror.Validacion("uso: cobrar <modo> [efectivo] [debito]")
	}
	e := checkout.EntradaCobro{Modo: cobro.ModoPago(args[0])}
	if !e.Modo.Valido() {
		return e, apierror.Validacion("modo de pago inválido: " + args[0])
	}
	montos := make([]decimal.Decimal, 0, 2)
	for _, a := range args[1:] {
		d, err := decimal.NewFromString(a)
		if err != nil {
			return e, apierror.Validacion("monto inválido: " + a)
		}
		montos = append(montos, d)
	}
	if len(montos) > 0 {
		e.Efectivo = montos[0]
	}
	if len(montos) > 1 {
		e.Debito = montos[1]
	}
	return e, nil
}

func (c *consola) imprimirEstado(s sesion.Snapshot) {
	fmt.Fprintf(c.out, "estado: %s", s.Estado)
	if s.Caja != nil {
		fmt.Fprintf(c.out, "  caja: %s (%s)", s.Caja.Nombre, s.Caja.ID)
	}
	if s.Apertura != nil {
		fmt.Fprintf(c.out, "  apertura: %s desde %s", s.Apertura.ID, s.Apertura.FechaApertura)
	}
	if s.Ocupado {
		fmt.Fprint(c.out, "  [ocupado]")
	}
	fmt.Fprintln(c.out)
	if s.Error != nil {
		fmt.Fprintf(c.out, "  último error: %s\n", apierror.Mensaje(s.Error))
	}
}

func (c *consola) imprimirResumen(s sesion.Snapshot) {
	if s.Resumen == nil {
		return
	}
	r := s.Resumen
	fmt.Fprintf(c.out, "  ventas: %d  total: %s\n", r.CantidadVentas, r.TotalVentas)
	for metodo, monto := range r.PorMetodo {
		fmt.Fprintf(c.out, "    %-14s %s\n", metodo, monto)
	}
	fmt.Fprintf(c.out, "  inicial: %s  efectivo esperado: %s  sugerido: %s\n",
		r.MontoInicial, r.EfectivoEsperado, s.MontoFinalSugerido)
}

func (c *consola) imprimirCarrito() {
	for _, l := range c.saga.Carrito().Lineas() {
		aviso := ""
		if l.StockInsuficiente {
			aviso = "  (stock insuficiente)"
		}
		fmt.Fprintf(c.out, "  %s x%d %s = %s%s\n", l.Nombre, l.Cantidad, l.PrecioUnitario, l.Subtotal(), aviso)
	}
	fmt.Fprintf(c.out, "  total: %s  documento: %s\n", c.saga.Carrito().Total(), c.saga.Documento().Tipo)
}

func (c *consola) imprimirCobro(e cobro.EstadoCobro) {
	fmt.Fprintf(c.out, "  total: %s  ajuste: %s  a pagar: %s  pagado: %s  vuelto: %s  falta: %s  confirmable: %t\n",
		e.Total, e.Ajuste, e.TotalAPagar, e.Pagado, e.Vuelto, e.Falta, e.Confirmable)
}

func (c *consola) imprimirRecibo(r *checkout.Recibo) {
	fmt.Fprintf(c.out, "venta #%d folio %s (%s)\n", r.Numero, r.Folio, r.Documento.Tipo)
	for _, it := range r.Items {
		fmt.Fprintf(c.out, "  %s x%d = %s\n", it.Producto, it.Cantidad, it.Subtotal)
	}
	fmt.Fprintf(c.out, "  total: %s  ajuste: %s  a pagar: %s\n", r.Total, r.AjusteRedondeo, r.TotalAPagar)
	for _, p := range r.Pagos {
		fmt.Fprintf(c.out, "  %s: %s\n", p.Metodo, p.Monto)
	}
	if r.Vuelto.IsPositive() {
		fmt.Fprintf(c.out, "  vuelto: %s\n", r.Vuelto)
	}
	if r.ConflictoStock {
		fmt.Fprintln(c.out, "  aviso: la venta dejó stock negativo")
	}
}
