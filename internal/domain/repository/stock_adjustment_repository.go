package repository

import (
	"context"

	"github.com/jhoicas/spa-ledger-api/internal/domain/entity"
)

// StockAdjustmentRepository libro de ajustes append-only: no hay Update ni Delete.
type StockAdjustmentRepository interface {
	Append(ctx context.Context, adj *entity.StockAdjustment) error
	GetByID(ctx context.Context, id string) (*entity.StockAdjustment, error)
	ListByProduct(ctx context.Context, productID string, limit, offset int) ([]*entity.StockAdjustment, error)
	// ListByReference devuelve los asientos de un documento en orden cronológico.
	ListByReference(ctx context.Context, referenceID string) ([]*entity.StockAdjustment, error)
	// IsReversed indica si existe un asiento con ReversalOf = id.
	IsReversed(ctx context.Context, id string) (bool, error)
	// Summary devuelve Σ quantity_change, el último new_stock_level y el número de asientos del producto.
	Summary(ctx context.Context, productID string) (LedgerSummary, error)
}

// LedgerSummary agregado del libro para auditar un producto.
type LedgerSummary struct {
	Sum       int
	LastLevel int
	Entries   int
}
