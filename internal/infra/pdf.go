package infra

// pdf.go: pre-bill (prefactura) ticket for a closed table session, 74mm wide
// like thermal receipt paper. Written to storagePath/prefactura_{mesa}_{id}.pdf.

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LineaTicket is one aggregated product line on the ticket.
type LineaTicket struct {
	Producto string
	Cantidad int
	Subtotal decimal.Decimal
}

// TicketPrefactura is everything printed on a session pre-bill.
type TicketPrefactura struct {
	PrefacturaID uuid.UUID
	MesaNumero   int
	AbiertaAt    time.Time
	CerradaAt    time.Time
	Lineas       []LineaTicket
	Total        decimal.Decimal
	MetodoPago   string
	MontoPagado  decimal.Decimal
	Vuelto       decimal.Decimal
}

// GeneratePrefacturaPDF renders the ticket and returns the written file path.
func GeneratePrefacturaPDF(t TicketPrefactura, storagePath string) (string, error) {
	if err := os.MkdirAll(storagePath, 0o755); err != nil {
		return "", fmt.Errorf("pdf: create storage dir: %w", err)
	}

	fileName := fmt.Sprintf("prefactura_mesa%d_%s.pdf", t.MesaNumero, t.PrefacturaID.String()[:8])
	filePath := filepath.Join(storagePath, fileName)

	// height grows with the number of lines so long bills are not cut
	height := 80 + float64(len(t.Lineas))*5
	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "mm",
		Size:           fpdf.SizeType{Wd: 74, Ht: height},
	})
	pdf.SetMargins(4, 4, 4)
	pdf.SetAutoPageBreak(false, 4)
	pdf.AddPage()

	pageW, _ := pdf.GetPageSize()
	contentW := pageW - 8

	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(contentW, 6, fmt.Sprintf("Mesa %d", t.MesaNumero), "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 7)
	pdf.CellFormat(contentW, 4, "Prefactura - documento no valido como factura", "", 1, "C", false, 0, "")
	pdf.CellFormat(contentW, 4, fmt.Sprintf("%s - %s",
		t.AbiertaAt.Format("02/01/2006 15:04"), t.CerradaAt.Format("15:04")), "", 1, "C", false, 0, "")
	pdf.Ln(2)
	pdf.Line(4, pdf.GetY(), pageW-4, pdf.GetY())
	pdf.Ln(2)

	col1 := contentW * 0.52
	col2 := contentW * 0.16
	col3 := contentW * 0.32

	pdf.SetFont("Helvetica", "B", 7)
	pdf.CellFormat(col1, 5, "Producto", "B", 0, "L", false, 0, "")
	pdf.CellFormat(col2, 5, "Cant", "B", 0, "C", false, 0, "")
	pdf.CellFormat(col3, 5, "Subtotal", "B", 1, "R", false, 0, "")

	pdf.SetFont("Helvetica", "", 7)
	for _, l := range t.Lineas {
		nombre := l.Producto
		if len(nombre) > 22 {
			nombre = nombre[:21] + "."
		}
		pdf.CellFormat(col1, 5, nombre, "", 0, "L", false, 0, "")
		pdf.CellFormat(col2, 5, fmt.Sprintf("x%d", l.Cantidad), "", 0, "C", false, 0, "")
		pdf.CellFormat(col3, 5, "$"+l.Subtotal.StringFixed(2), "", 1, "R", false, 0, "")
	}

	pdf.Ln(2)
	pdf.Line(4, pdf.GetY(), pageW-4, pdf.GetY())
	pdf.Ln(2)

	pdf.SetFont("Helvetica", "B", 9)
	pdf.CellFormat(col1+col2, 6, "TOTAL:", "", 0, "L", false, 0, "")
	pdf.CellFormat(col3, 6, "$"+t.Total.StringFixed(2), "", 1, "R", false, 0, "")

	if t.MetodoPago != "" {
		pdf.SetFont("Helvetica", "", 7)
		pdf.CellFormat(col1+col2, 4, "Pago ("+t.MetodoPago+"):", "", 0, "L", false, 0, "")
		pdf.CellFormat(col3, 4, "$"+t.MontoPagado.StringFixed(2), "", 1, "R", false, 0, "")
		if t.Vuelto.IsPositive() {
			pdf.CellFormat(col1+col2, 4, "Vuelto:", "", 0, "L", false, 0, "")
			pdf.CellFormat(col3, 4, "$"+t.Vuelto.StringFixed(2), "", 1, "R", false, 0, "")
		}
	}

	if err := pdf.OutputFileAndClose(filePath); err != nil {
		return "", fmt.Errorf("pdf: write file: %w", err)
	}
	return filePath, nil
}
