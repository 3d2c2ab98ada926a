package repository

import (
	"context"

	"github.com/jhoicas/spa-ledger-api/internal/domain/entity"
)

// InvoiceRepository persistencia de facturas con líneas y tramos de pago.
type InvoiceRepository interface {
	Create(ctx context.Context, invoice *entity.Invoice) error
	GetByID(ctx context.Context, id string) (*entity.Invoice, error)
	// GetByIdempotencyKey devuelve la factura creada con esa clave; nil si no hay ninguna.
	GetByIdempotencyKey(ctx context.Context, key string) (*entity.Invoice, error)
}
