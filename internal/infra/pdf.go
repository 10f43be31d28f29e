package infra

// Non-fiscal ticket of a confirmed Venta using go-pdf/fpdf.
// Thermal receipt layout: business name, folio and timestamp, item table,
// rounding adjustment, total to pay and the payment lines.
//
// The output file is saved to storagePath/ticket_{folio}.pdf.

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"bersapos/internal/model"

	"github.com/go-pdf/fpdf"
)

// GenerateTicketPDF writes the ticket of venta and returns the file path.
// storagePath is created if needed.
func GenerateTicketPDF(venta *model.Venta, comercio, storagePath string) (string, error) {
	if err := os.MkdirAll(storagePath, 0755); err != nil {
		return "", fmt.Errorf("pdf: create storage dir: %w", err)
	}

	fileName := fmt.Sprintf("ticket_%s.pdf", nombreArchivo(venta.Folio))
	filePath := filepath.Join(storagePath, fileName)

	// 74mm wide, close to thermal receipt paper. Height grows with the items.
	alto := 90.0 + 5*float64(len(venta.Items)) + 4*float64(len(venta.Pagos))
	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "mm",
		Size:           fpdf.SizeType{Wd: 74, Ht: alto},
	})
	pdf.SetMargins(4, 4, 4)
	pdf.SetAutoPageBreak(false, 4)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pageW, _ := pdf.GetPageSize()
	contentW := pageW - 8

	// ── Header ───────────────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "B", 13)
	pdf.CellFormat(contentW, 7, tr(comercio), "", 1, "C", false, 0, "")

	pdf.SetFont("Helvetica", "", 8)
	titulo := "Boleta (copia no fiscal)"
	if venta.TipoDocumento == model.DocumentoFactura {
		titulo = "Factura (copia no fiscal)"
	}
	pdf.CellFormat(contentW, 5, titulo, "", 1, "C", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont("Helvetica", "B", 8)
	pdf.CellFormat(contentW, 5, tr(fmt.Sprintf("Folio %s  ·  N° %d", venta.Folio, venta.Numero)), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 7)
	pdf.CellFormat(contentW, 4, venta.CreatedAt.Format("02/01/2006  15:04"), "", 1, "L", false, 0, "")
	if venta.TipoDocumento == model.DocumentoFactura && venta.ReceptorRut != nil {
		pdf.CellFormat(contentW, 4, tr("RUT "+*venta.ReceptorRut), "", 1, "L", false, 0, "")
		if venta.ReceptorRazonSocial != nil {
			pdf.CellFormat(contentW, 4, tr(*venta.ReceptorRazonSocial), "", 1, "L", false, 0, "")
		}
	}
	pdf.Ln(2)

	pdf.Line(4, pdf.GetY(), pageW-4, pdf.GetY())
	pdf.Ln(2)

	// ── Items ─────────────────────────────────────────────────────────────────
	col1 := contentW * 0.52
	col2 := contentW * 0.16
	col3 := contentW * 0.32

	pdf.SetFont("Helvetica", "B", 7)
	pdf.CellFormat(col1, 5, "Producto", "B", 0, "L", false, 0, "")
	pdf.CellFormat(col2, 5, "Cant", "B", 0, "C", false, 0, "")
	pdf.CellFormat(col3, 5, "Subtotal", "B", 1, "R", false, 0, "")

	pdf.SetFont("Helvetica", "", 7)
	for _, item := range venta.Items {
		nombre := []rune(item.Nombre)
		if len(nombre) > 22 {
			nombre = append(nombre[:21], '.')
		}
		pdf.CellFormat(col1, 5, tr(string(nombre)), "", 0, "L", false, 0, "")
		pdf.CellFormat(col2, 5, fmt.Sprintf("x%d", item.Cantidad), "", 0, "C", false, 0, "")
		pdf.CellFormat(col3, 5, pesos(item.Subtotal.StringFixed(0)), "", 1, "R", false, 0, "")
	}

	pdf.Ln(2)
	pdf.Line(4, pdf.GetY(), pageW-4, pdf.GetY())
	pdf.Ln(2)

	// ── Totals ────────────────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "", 7)
	if !venta.AjusteRedondeo.IsZero() {
		pdf.CellFormat(col1+col2, 5, "Subtotal:", "", 0, "L", false, 0, "")
		pdf.CellFormat(col3, 5, pesos(venta.Total.StringFixed(0)), "", 1, "R", false, 0, "")
		pdf.CellFormat(col1+col2, 5, "Ajuste redondeo:", "", 0, "L", false, 0, "")
		pdf.CellFormat(col3, 5, pesos(venta.AjusteRedondeo.StringFixed(0)), "", 1, "R", false, 0, "")
	}

	pdf.SetFont("Helvetica", "B", 9)
	pdf.CellFormat(col1+col2, 6, "TOTAL:", "", 0, "L", false, 0, "")
	pdf.CellFormat(col3, 6, pesos(venta.TotalAPagar.StringFixed(0)), "", 1, "R", false, 0, "")

	pdf.Ln(2)
	pdf.SetFont("Helvetica", "", 7)
	for _, pago := range venta.Pagos {
		pdf.CellFormat(col1+col2, 4, "Pago ("+pago.Metodo+"):", "", 0, "L", false, 0, "")
		pdf.CellFormat(col3, 4, pesos(pago.Monto.StringFixed(0)), "", 1, "R", false, 0, "")
	}

	if venta.Estado == model.VentaAnulada {
		pdf.Ln(2)
		pdf.SetFont("Helvetica", "B", 9)
		pdf.CellFormat(contentW, 5, "ANULADA", "", 1, "C", false, 0, "")
	}

	pdf.Ln(3)
	pdf.SetFont("Helvetica", "I", 7)
	pdf.CellFormat(contentW, 4, tr("¡Gracias por su compra!"), "", 1, "C", false, 0, "")

	if err := pdf.OutputFileAndClose(filePath); err != nil {
		return "", fmt.Errorf("pdf: write file: %w", err)
	}

	return filePath, nil
}

func pesos(s string) string { return "$" + s }

func nombreArchivo(folio string) string {
	return strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == ' ' {
			return '_'
		}
		return r
	}, folio)
}
