// Package excel exporta la planilla de conteo de una sesión de inventario físico.
package excel

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/xuri/excelize/v2"

	"github.com/jhoicas/spa-ledger-api/internal/application/inventory"
	"github.com/jhoicas/spa-ledger-api/internal/domain/entity"
)

var _ inventory.SheetExporter = (*StockTakeSheetExporter)(nil)

const sheetName = "Conteo"

var headings = []string{"SKU", "Producto", "Esperado", "Contado", "Diferencia"}

// StockTakeSheetExporter arma un xlsx con una fila por producto del snapshot, ordenado por nombre.
// Las columnas Contado y Diferencia quedan vacías si el producto aún no se contó.
type StockTakeSheetExporter struct{}

// NewStockTakeSheetExporter construye el exportador.
func NewStockTakeSheetExporter() *StockTakeSheetExporter { return &StockTakeSheetExporter{} }

// StockTakeSheet devuelve los bytes del libro xlsx.
func (StockTakeSheetExporter) StockTakeSheet(session *entity.StockTakeSession, products map[string]*entity.Product) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, err
	}
	if err := f.SetCellValue(sheetName, "A1", fmt.Sprintf("Inventario %s (%s)", session.Code, session.Status)); err != nil {
		return nil, err
	}
	for i, h := range headings {
		cell, _ := excelize.CoordinatesToCellName(i+1, 3)
		if err := f.SetCellValue(sheetName, cell, h); err != nil {
			return nil, err
		}
	}
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		_ = f.SetCellStyle(sheetName, "A1", "E3", style)
	}

	items := append([]entity.StockTakeItem(nil), session.Items...)
	name := func(id string) string {
		if p, ok := products[id]; ok && p != nil {
			return p.Name
		}
		return id
	}
	sort.Slice(items, func(i, j int) bool { return name(items[i].ProductID) < name(items[j].ProductID) })

	for i, it := range items {
		r := i + 4
		sku := ""
		if p, ok := products[it.ProductID]; ok && p != nil {
			sku = p.SKU
		}
		values := []interface{}{sku, name(it.ProductID), it.ExpectedQuantity}
		if it.ActualQuantity != nil {
			values = append(values, *it.ActualQuantity, *it.ActualQuantity-it.ExpectedQuantity)
		}
		cell, _ := excelize.CoordinatesToCellName(1, r)
		if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
			return nil, err
		}
	}
	_ = f.SetColWidth(sheetName, "B", "B", 36)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("excel: escribir planilla: %w", err)
	}
	return buf.Bytes(), nil
}
