// Package pdf genera el recibo de venta del punto de venta con Maroto v2.
//
// Layout de la página A5:
//
//	┌───────────────────────────────────────────────┐
//	│  HEADER: Spa + código de factura + fecha      │
//	│  CLIENTE: nombre + teléfono                   │
//	│  TABLA: Cant | Descripción | P.Unit | Total   │
//	│  TOTALES: subtotal / puntos / prepago /       │
//	│           impuesto / TOTAL / pagado / deuda   │
//	│  PAGOS: método + monto                        │
//	│  FOOTER: QR con el código + estado            │
//	└───────────────────────────────────────────────┘
package pdf

import (
	"context"
	"fmt"

	maroto "github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/code"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	appbilling "github.com/jhoicas/spa-ledger-api/internal/application/billing"
	"github.com/jhoicas/spa-ledger-api/internal/domain/entity"
)

var (
	colorPrimary = &props.Color{Red: 46, Green: 110, Blue: 90}
	colorGray    = &props.Color{Red: 100, Green: 100, Blue: 100}
)

var paymentLabels = map[string]string{
	entity.PaymentCash:     "Efectivo",
	entity.PaymentCard:     "Tarjeta",
	entity.PaymentTransfer: "Transferencia",
	entity.PaymentEWallet:  "Billetera",
	entity.PaymentDebt:     "Deuda",
}

var _ appbilling.ReceiptPDFGenerator = (*MarotoReceiptGenerator)(nil)

// MarotoReceiptGenerator implementa billing.ReceiptPDFGenerator.
type MarotoReceiptGenerator struct {
	shopName string
	printer  *message.Printer
}

// NewMarotoReceiptGenerator construye el generador. Los montos se imprimen en VND con separador
// de miles vietnamita (1.000.000).
func NewMarotoReceiptGenerator(shopName string) *MarotoReceiptGenerator {
	return &MarotoReceiptGenerator{shopName: shopName, printer: message.NewPrinter(language.Vietnamese)}
}

// GenerateReceiptPDF genera el PDF y devuelve sus bytes.
func (g *MarotoReceiptGenerator) GenerateReceiptPDF(
	_ context.Context,
	invoice *entity.Invoice,
	customer *entity.Customer,
	lines []appbilling.LineForPDF,
) ([]byte, error) {
	cfg := config.NewBuilder().
		WithPageSize(pagesize.A5).
		WithLeftMargin(8).WithRightMargin(8).
		WithTopMargin(8).WithBottomMargin(8).
		WithDefaultFont(&props.Font{Family: "helvetica", Size: 8}).
		WithTitle("Recibo "+invoice.Code, true).
		WithAuthor(g.shopName, true).
		Build()

	m := maroto.New(cfg)
	m.AddRows(g.headerRow(invoice))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.5}))
	m.AddRows(customerRow(customer))
	m.AddRows(tableHeaderRow())
	m.AddRows(g.lineRows(lines)...)
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))
	m.AddRows(g.totalRows(invoice)...)
	m.AddRows(g.paymentRows(invoice)...)
	m.AddRows(line.NewRow(3))
	m.AddRows(footerRow(invoice))

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("pdf: generar recibo: %w", err)
	}
	return doc.GetBytes(), nil
}

func (g *MarotoReceiptGenerator) headerRow(invoice *entity.Invoice) core.Row {
	return row.New(16).Add(
		col.New(6).Add(
			text.New(g.shopName, props.Text{Style: fontstyle.Bold, Size: 12, Color: colorPrimary, Top: 1}),
		),
		col.New(6).Add(
			text.New(invoice.Code, props.Text{Style: fontstyle.Bold, Size: 10, Align: align.Right, Top: 1}),
			text.New(invoice.CreatedAt.Format("02/01/2006 15:04"), props.Text{
				Size: 7, Align: align.Right, Top: 8, Color: colorGray,
			}),
		),
	)
}

func customerRow(customer *entity.Customer) core.Row {
	name := customer.Name
	if name == "" {
		name = customer.ID
	}
	return row.New(10).Add(col.New(12).Add(
		text.New("Cliente: "+name, props.Text{Style: fontstyle.Bold, Size: 8, Top: 2}),
		text.New(nonEmpty(customer.Phone, ""), props.Text{Size: 7, Top: 6, Color: colorGray}),
	))
}

func tableHeaderRow() core.Row {
	h := func(label string, size int, a align.Type) core.Col {
		return col.New(size).Add(text.New(label, props.Text{
			Style: fontstyle.Bold, Size: 7, Align: a, Color: colorPrimary, Top: 2,
		}))
	}
	return row.New(7).Add(
		h("Cant.", 1, align.Center),
		h("Descripción", 5, align.Left),
		h("P. unit.", 3, align.Right),
		h("Total", 3, align.Right),
	)
}

func (g *MarotoReceiptGenerator) lineRows(lines []appbilling.LineForPDF) []core.Row {
	rows := make([]core.Row, 0, len(lines))
	for _, l := range lines {
		rows = append(rows, row.New(6).Add(
			col.New(1).Add(text.New(fmt.Sprint(l.Quantity), props.Text{Size: 7, Align: align.Center, Top: 1})),
			col.New(5).Add(text.New(l.Name, props.Text{Size: 7, Top: 1})),
			col.New(3).Add(text.New(g.money(l.PricePerUnit), props.Text{Size: 7, Align: align.Right, Top: 1})),
			col.New(3).Add(text.New(g.money(l.LineTotal()), props.Text{Size: 7, Align: align.Right, Top: 1})),
		))
	}
	return rows
}

func (g *MarotoReceiptGenerator) totalRows(invoice *entity.Invoice) []core.Row {
	type entry struct {
		label string
		value decimal.Decimal
		bold  bool
	}
	entries := []entry{{label: "Subtotal", value: invoice.Subtotal}}
	if invoice.PointsUsed > 0 {
		entries = append(entries, entry{label: fmt.Sprintf("Puntos (%d)", invoice.PointsUsed), value: invoice.PointsValue.Neg()})
	}
	if invoice.PrepaidValue.IsPositive() {
		entries = append(entries, entry{label: "Tarjeta prepago " + invoice.PrepaidCardCode, value: invoice.PrepaidValue.Neg()})
	}
	entries = append(entries,
		entry{label: "Impuesto", value: invoice.TaxAmount},
		entry{label: "TOTAL", value: invoice.TotalAmount, bold: true},
		entry{label: "Pagado", value: invoice.PaidAmount},
	)
	if invoice.DebtAmount.IsPositive() {
		entries = append(entries, entry{label: "Deuda", value: invoice.DebtAmount, bold: true})
	}

	rows := make([]core.Row, 0, len(entries))
	for _, e := range entries {
		style := fontstyle.Normal
		if e.bold {
			style = fontstyle.Bold
		}
		rows = append(rows, row.New(5).Add(
			col.New(6),
			col.New(3).Add(text.New(e.label, props.Text{Style: style, Size: 7, Align: align.Right})),
			col.New(3).Add(text.New(g.money(e.value), props.Text{Style: style, Size: 7, Align: align.Right})),
		))
	}
	return rows
}

func (g *MarotoReceiptGenerator) paymentRows(invoice *entity.Invoice) []core.Row {
	rows := make([]core.Row, 0, len(invoice.PaymentRecords))
	for _, p := range invoice.PaymentRecords {
		rows = append(rows, row.New(5).Add(
			col.New(6),
			col.New(3).Add(text.New(nonEmpty(paymentLabels[p.Method], p.Method), props.Text{Size: 7, Align: align.Right, Color: colorGray})),
			col.New(3).Add(text.New(g.money(p.Amount), props.Text{Size: 7, Align: align.Right, Color: colorGray})),
		))
	}
	return rows
}

func footerRow(invoice *entity.Invoice) core.Row {
	status := "PAGADA"
	if invoice.Status == entity.InvoiceStatusPartial {
		status = "PAGO PARCIAL"
	}
	return row.New(30).Add(
		col.New(4).Add(code.NewQr(invoice.Code, props.Rect{Percent: 90, Center: true})),
		col.New(8).Add(
			text.New(status, props.Text{Style: fontstyle.Bold, Size: 9, Top: 6, Left: 3, Color: colorPrimary}),
			text.New("¡Gracias por su visita!", props.Text{Size: 8, Top: 14, Left: 3, Color: colorGray}),
		),
	)
}

// money formatea un monto VND sin decimales con separador de miles vi-VN.
func (g *MarotoReceiptGenerator) money(d decimal.Decimal) string {
	return g.printer.Sprintf("%d VND", d.Round(0).IntPart())
}

func nonEmpty(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}
