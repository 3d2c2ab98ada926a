package billing

import (
	"context"

	"github.com/jhoicas/spa-ledger-api/internal/domain/entity"
	"github.com/jhoicas/spa-ledger-api/internal/domain/repository"
)

// TxRunner ejecuta una función dentro de una transacción que incluye repos de inventario y facturación.
type TxRunner interface {
	Run(ctx context.Context, fn func(repos repository.Repositories) error) error
}

// IdempotencyGuard serializa envíos con la misma Idempotency-Key y recuerda la factura creada.
type IdempotencyGuard interface {
	// Lock toma el candado de la clave; release debe llamarse siempre.
	Lock(ctx context.Context, key string) (release func(), err error)
	// Lookup devuelve el ID de factura asociado a la clave, si existe.
	Lookup(ctx context.Context, key string) (invoiceID string, found bool, err error)
	Remember(ctx context.Context, key, invoiceID string) error
}

// LineForPDF línea de factura con el nombre a imprimir.
type LineForPDF struct {
	entity.InvoiceItem
	Name string
}

// ReceiptPDFGenerator genera el recibo PDF de una factura liquidada.
type ReceiptPDFGenerator interface {
	GenerateReceiptPDF(ctx context.Context, invoice *entity.Invoice, customer *entity.Customer, lines []LineForPDF) ([]byte, error)
}

// Metrics observaciones de liquidación.
type Metrics interface {
	ObserveInvoice(status string)
}

// NopMetrics descarta las observaciones.
type NopMetrics struct{}

func (NopMetrics) ObserveInvoice(string) {}

// NopIdempotencyGuard no serializa ni recuerda nada (sin Redis configurado).
type NopIdempotencyGuard struct{}

func (NopIdempotencyGuard) Lock(context.Context, string) (func(), error) { return func() {}, nil }

func (NopIdempotencyGuard) Lookup(context.Context, string) (string, bool, error) {
	return "", false, nil
}

func (NopIdempotencyGuard) Remember(context.Context, string, string) error { return nil }
