package dto

import "github.com/shopspring/decimal"

// CreateInvoiceRequest body para POST /api/invoices. El carrito del POS lo arma el cliente;
// el servidor solo liquida.
type CreateInvoiceRequest struct {
	CustomerID      string               `json:"customer_id" validate:"required"`
	Items           []InvoiceItemRequest `json:"items" validate:"required,min=1,dive"`
	PointsUsed      int64                `json:"points_used" validate:"min=0"`
	PrepaidCardCode string               `json:"prepaid_card_code,omitempty"`
	PrepaidAmount   decimal.Decimal      `json:"prepaid_amount" validate:"gte=0"`
	TaxAmount       decimal.Decimal      `json:"tax_amount" validate:"gte=0"`
	Payments        []PaymentRequest     `json:"payments" validate:"dive"`
	Notes           string               `json:"notes,omitempty" validate:"max=500"`

	// IdempotencyKey viene del header Idempotency-Key.
	IdempotencyKey string `json:"-"`
}

// InvoiceItemRequest línea de factura: producto o servicio. PricePerUnit 0 en un producto
// toma el precio del catálogo.
type InvoiceItemRequest struct {
	RefID         string              `json:"ref_id" validate:"required"`
	Type          string              `json:"type" validate:"required,oneof=product service"`
	Quantity      int                 `json:"quantity" validate:"required,gt=0"`
	PricePerUnit  decimal.Decimal     `json:"price_per_unit" validate:"gte=0"`
	AppointmentID string              `json:"appointment_id,omitempty"`
	Consumables   []ConsumableRequest `json:"consumables,omitempty" validate:"dive"`
}

// ConsumableRequest producto que un servicio gasta del inventario.
type ConsumableRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,gt=0"`
}

// PaymentRequest tramo de pago. method=debt carga el faltante a la cuenta del cliente.
type PaymentRequest struct {
	Method string          `json:"method" validate:"required,oneof=cash card transfer e_wallet debt"`
	Amount decimal.Decimal `json:"amount" validate:"gt=0"`
}

// InvoiceResponse factura liquidada.
type InvoiceResponse struct {
	ID              string                `json:"id"`
	Code            string                `json:"code"`
	CustomerID      string                `json:"customer_id"`
	Items           []InvoiceItemResponse `json:"items"`
	Subtotal        decimal.Decimal       `json:"subtotal"`
	PointsUsed      int64                 `json:"points_used"`
	PointsValue     decimal.Decimal       `json:"points_value"`
	PrepaidCardCode string                `json:"prepaid_card_code,omitempty"`
	PrepaidValue    decimal.Decimal       `json:"prepaid_value"`
	DiscountAmount  decimal.Decimal       `json:"discount_amount"`
	TaxAmount       decimal.Decimal       `json:"tax_amount"`
	TotalAmount     decimal.Decimal       `json:"total_amount"`
	PaidAmount      decimal.Decimal       `json:"paid_amount"`
	DebtAmount      decimal.Decimal       `json:"debt_amount"`
	Payments        []PaymentResponse     `json:"payments"`
	Status          string                `json:"status"`
	CreatedBy       string                `json:"created_by"`
	CreatedAt       string                `json:"created_at"`
}

// InvoiceItemResponse línea de factura en la respuesta.
type InvoiceItemResponse struct {
	RefID         string              `json:"ref_id"`
	Type          string              `json:"type"`
	Quantity      int                 `json:"quantity"`
	PricePerUnit  decimal.Decimal     `json:"price_per_unit"`
	LineTotal     decimal.Decimal     `json:"line_total"`
	AppointmentID string              `json:"appointment_id,omitempty"`
	Consumables   []ConsumableRequest `json:"consumables,omitempty"`
}

// PaymentResponse tramo de pago registrado.
type PaymentResponse struct {
	Method string          `json:"method"`
	Amount decimal.Decimal `json:"amount"`
}
