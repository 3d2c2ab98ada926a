package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// SlipType tipo de comprobante de bodega.
type SlipType string

// Tipos de comprobante: IMPORT (entrada de proveedor) y EXPORT (consumo interno).
const (
	SlipImport SlipType = "IMPORT"
	SlipExport SlipType = "EXPORT"
)

// Valid indica si el tipo de comprobante es conocido.
func (t SlipType) Valid() bool {
	return t == SlipImport || t == SlipExport
}

// Sign devuelve +1 para IMPORT y -1 para EXPORT.
func (t SlipType) Sign() int {
	if t == SlipExport {
		return -1
	}
	return 1
}

// Estados de un comprobante de bodega.
const (
	SlipStatusDraft  = "draft"
	SlipStatusPosted = "posted"
)

// WarehouseSlip documento de entrada/salida de bodega con varias líneas.
// Una vez contabilizado (posted) cada línea tiene su StockAdjustment con ReferenceID = ID.
// Version crece con cada cambio de líneas; ReplaceItems y Delete la comparan.
type WarehouseSlip struct {
	ID         string
	Code       string
	Type       SlipType
	Status     string
	SupplierID string // solo IMPORT
	Notes      string
	Items      []WarehouseSlipItem
	Version    int64
	CreatedBy  string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// WarehouseSlipItem línea de un comprobante.
type WarehouseSlipItem struct {
	ProductID string
	Quantity  int
	UnitPrice *decimal.Decimal
}

// QuantitiesByProduct agrupa las cantidades de las líneas por producto.
func (s *WarehouseSlip) QuantitiesByProduct() map[string]int {
	out := make(map[string]int, len(s.Items))
	for _, it := range s.Items {
		out[it.ProductID] += it.Quantity
	}
	return out
}
