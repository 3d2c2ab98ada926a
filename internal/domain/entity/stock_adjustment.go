package entity

import "time"

// AdjustmentType clasifica un asiento del libro de stock.
type AdjustmentType string

// Tipos de ajuste de stock.
const (
	AdjustmentInitial            AdjustmentType = "initial"
	AdjustmentManual             AdjustmentType = "manual_adjustment"
	AdjustmentSale               AdjustmentType = "sale"
	AdjustmentServiceConsumption AdjustmentType = "service_consumption"
	AdjustmentReturn             AdjustmentType = "return"
	AdjustmentInventoryCheck     AdjustmentType = "inventory_check"
)

// Valid indica si el tipo pertenece al catálogo conocido.
func (t AdjustmentType) Valid() bool {
	switch t {
	case AdjustmentInitial, AdjustmentManual, AdjustmentSale,
		AdjustmentServiceConsumption, AdjustmentReturn, AdjustmentInventoryCheck:
		return true
	}
	return false
}

// StockAdjustment es un asiento inmutable del libro de stock (append-only).
// Para un producto: Stock == Σ QuantityChange y el NewStockLevel del último asiento == Stock.
type StockAdjustment struct {
	ID             string
	ProductID      string
	QuantityChange int // con signo
	NewStockLevel  int
	Type           AdjustmentType
	Notes          string
	ActorID        string
	ReferenceID    string // comprobante de bodega, sesión de inventario, factura o cita; vacío si no aplica
	ReversalOf     string // ID del asiento que este revierte; vacío si no es reversión
	CreatedAt      time.Time
}

// IsReversal indica si el asiento anula otro asiento.
func (a *StockAdjustment) IsReversal() bool {
	return a.ReversalOf != ""
}
