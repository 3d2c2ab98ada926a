package dto

import "github.com/shopspring/decimal"

// Motivos aceptados por POST /api/inventory/adjustments.
const (
	ReasonManual  = "manual"
	ReasonReturn  = "return"
	ReasonInitial = "initial"
)

// ManualAdjustmentRequest body para POST /api/inventory/adjustments.
// QuantityChange lleva signo para reason=manual; para return e initial debe ser positivo.
type ManualAdjustmentRequest struct {
	ProductID      string `json:"product_id" validate:"required"`
	Reason         string `json:"reason" validate:"required,oneof=manual return initial"`
	QuantityChange int    `json:"quantity_change" validate:"required"`
	Notes          string `json:"notes,omitempty" validate:"max=500"`
	ReferenceID    string `json:"reference_id,omitempty"`
}

// ReverseAdjustmentRequest body opcional para POST /api/inventory/adjustments/:id/reverse.
type ReverseAdjustmentRequest struct {
	Notes string `json:"notes,omitempty" validate:"max=500"`
}

// AdjustmentResponse asiento del libro de stock.
type AdjustmentResponse struct {
	ID             string `json:"id"`
	ProductID      string `json:"product_id"`
	QuantityChange int    `json:"quantity_change"`
	NewStockLevel  int    `json:"new_stock_level"`
	Type           string `json:"type"`
	Notes          string `json:"notes,omitempty"`
	ActorID        string `json:"actor_id,omitempty"`
	ReferenceID    string `json:"reference_id,omitempty"`
	ReversalOf     string `json:"reversal_of,omitempty"`
	CreatedAt      string `json:"created_at"`
}

// LedgerAuditResponse compara el stock del producto contra la suma del libro.
type LedgerAuditResponse struct {
	ProductID  string `json:"product_id"`
	Stock      int    `json:"stock"`
	LedgerSum  int    `json:"ledger_sum"`
	LastLevel  int    `json:"last_level"`
	Entries    int    `json:"entries"`
	Consistent bool   `json:"consistent"`
}

// LowStockItemDTO producto en o por debajo de su umbral, con sugerencia de reposición.
type LowStockItemDTO struct {
	ProductID          string          `json:"product_id"`
	SKU                string          `json:"sku"`
	ProductName        string          `json:"product_name"`
	CurrentStock       int             `json:"current_stock"`
	Threshold          int             `json:"low_stock_threshold"`
	IdealStock         int             `json:"ideal_stock"`         // Threshold * 1.5
	SuggestedOrderQty  int             `json:"suggested_order_qty"` // IdealStock - CurrentStock
	UnitCost           decimal.Decimal `json:"unit_cost"`           // costo promedio ponderado
	EstimatedOrderCost decimal.Decimal `json:"estimated_order_cost"`
	Priority           int             `json:"priority"` // 1 = más urgente
}

// SlipItemRequest línea de comprobante de bodega.
type SlipItemRequest struct {
	ProductID string           `json:"product_id" validate:"required"`
	Quantity  int              `json:"quantity" validate:"required,gt=0"`
	UnitPrice *decimal.Decimal `json:"unit_price,omitempty" validate:"omitempty,gte=0"`
}

// CreateSlipRequest body para POST /api/warehouse-slips.
type CreateSlipRequest struct {
	Type       string            `json:"type" validate:"required,oneof=IMPORT EXPORT"`
	SupplierID string            `json:"supplier_id,omitempty"`
	Notes      string            `json:"notes,omitempty" validate:"max=500"`
	Items      []SlipItemRequest `json:"items" validate:"required,min=1,dive"`
}

// UpdateSlipRequest body para PUT /api/warehouse-slips/:id.
type UpdateSlipRequest struct {
	Items []SlipItemRequest `json:"items" validate:"required,min=1,dive"`
}

// SlipListRequest filtros de GET /api/warehouse-slips.
type SlipListRequest struct {
	PageRequest
	Type string `query:"type" validate:"omitempty,oneof=IMPORT EXPORT"`
}

// SlipItemResponse línea de comprobante en respuestas.
type SlipItemResponse struct {
	ProductID string           `json:"product_id"`
	Quantity  int              `json:"quantity"`
	UnitPrice *decimal.Decimal `json:"unit_price,omitempty"`
}

// SlipResponse comprobante de bodega.
type SlipResponse struct {
	ID         string             `json:"id"`
	Code       string             `json:"code"`
	Type       string             `json:"type"`
	Status     string             `json:"status"`
	SupplierID string             `json:"supplier_id,omitempty"`
	Notes      string             `json:"notes,omitempty"`
	Items      []SlipItemResponse `json:"items"`
	CreatedBy  string             `json:"created_by"`
	CreatedAt  string             `json:"created_at"`
	UpdatedAt  string             `json:"updated_at"`
}

// CreateStockTakeRequest body para POST /api/stock-takes.
type CreateStockTakeRequest struct {
	Notes string `json:"notes,omitempty" validate:"max=500"`
}

// CountItemRequest conteo físico de un producto.
type CountItemRequest struct {
	ProductID      string `json:"product_id" validate:"required"`
	ActualQuantity int    `json:"actual_quantity" validate:"min=0"`
}

// RecordCountsRequest body para PUT /api/stock-takes/:id/items.
type RecordCountsRequest struct {
	Items []CountItemRequest `json:"items" validate:"required,min=1,dive"`
}

// StockTakeListRequest filtros de GET /api/stock-takes.
type StockTakeListRequest struct {
	PageRequest
	Status string `query:"status" validate:"omitempty,oneof=ongoing completed"`
}

// StockTakeItemResponse línea de inventario físico. Difference = actual - expected cuando hay conteo.
type StockTakeItemResponse struct {
	ProductID        string `json:"product_id"`
	ExpectedQuantity int    `json:"expected_quantity"`
	ActualQuantity   *int   `json:"actual_quantity,omitempty"`
	Difference       *int   `json:"difference,omitempty"`
}

// StockTakeResponse sesión de inventario físico.
type StockTakeResponse struct {
	ID          string                  `json:"id"`
	Code        string                  `json:"code"`
	Status      string                  `json:"status"`
	Notes       string                  `json:"notes,omitempty"`
	Items       []StockTakeItemResponse `json:"items"`
	CreatedBy   string                  `json:"created_by"`
	CreatedAt   string                  `json:"created_at"`
	CompletedAt string                  `json:"completed_at,omitempty"`
	CompletedBy string                  `json:"completed_by,omitempty"`
}

// CompleteStockTakeResponse sesión cerrada y los asientos inventory_check generados.
type CompleteStockTakeResponse struct {
	Session     StockTakeResponse    `json:"session"`
	Adjustments []AdjustmentResponse `json:"adjustments"`
}
