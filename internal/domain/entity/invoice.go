package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Estados de factura. La liquidación solo produce paid o partial; el resto
// lo mueven pagos o devoluciones posteriores.
const (
	InvoiceStatusPending   = "pending"
	InvoiceStatusPartial   = "partial"
	InvoiceStatusPaid      = "paid"
	InvoiceStatusCancelled = "cancelled"
	InvoiceStatusRefunded  = "refunded"
)

// Tipos de línea de factura.
const (
	InvoiceItemProduct = "product"
	InvoiceItemService = "service"
)

// Métodos de pago. PaymentDebt es un pseudo-método: el faltante cargado a la cuenta del cliente.
const (
	PaymentCash     = "cash"
	PaymentCard     = "card"
	PaymentTransfer = "transfer"
	PaymentEWallet  = "e_wallet"
	PaymentDebt     = "debt"
)

// Invoice factura de punto de venta. Inmutable una vez creada salvo transiciones de estado.
type Invoice struct {
	ID              string
	Code            string
	CustomerID      string
	Items           []InvoiceItem
	Subtotal        decimal.Decimal
	PointsUsed      int64
	PointsValue     decimal.Decimal
	PrepaidCardCode string
	PrepaidValue    decimal.Decimal
	DiscountAmount  decimal.Decimal
	TaxAmount       decimal.Decimal
	TotalAmount     decimal.Decimal
	PaidAmount      decimal.Decimal // Σ pagos sin contar debt
	DebtAmount      decimal.Decimal
	PaymentRecords  []PaymentRecord
	Status          string
	IdempotencyKey  string // Idempotency-Key del POS; única cuando no está vacía
	CreatedBy       string
	CreatedAt       time.Time
}

// InvoiceItem línea de factura: producto vendido o servicio (tratamiento).
// Consumables son los productos que el servicio gasta del inventario.
type InvoiceItem struct {
	RefID         string
	Type          string
	Quantity      int
	PricePerUnit  decimal.Decimal
	AppointmentID string
	Consumables   []Consumable
}

// LineTotal cantidad * precio unitario.
func (i InvoiceItem) LineTotal() decimal.Decimal {
	return i.PricePerUnit.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Consumable producto gastado por un servicio.
type Consumable struct {
	ProductID string
	Quantity  int
}

// PaymentRecord un tramo del pago.
type PaymentRecord struct {
	Method string
	Amount decimal.Decimal
}
