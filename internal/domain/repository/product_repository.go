package repository

import (
	"context"

	"github.com/jhoicas/spa-ledger-api/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// ProductRepository puerto hacia el catálogo de productos.
// Solo el Ledger llama CompareAndSwapStock; cualquier otra escritura de stock es un error.
type ProductRepository interface {
	GetByID(ctx context.Context, id string) (*entity.Product, error)
	// GetStocks devuelve stock+versión de los productos pedidos. Un id inexistente no aparece en el mapa.
	GetStocks(ctx context.Context, ids []string) (map[string]entity.ProductStock, error)
	ListActive(ctx context.Context) ([]*entity.Product, error)
	ListLowStock(ctx context.Context) ([]*entity.Product, error)
	// CompareAndSwapStock escribe el nuevo stock si la versión sigue siendo expectedVersion
	// e incrementa la versión. Devuelve ErrStaleVersion si no coincide.
	CompareAndSwapStock(ctx context.Context, id string, expectedVersion int64, newStock int) error
	UpdateCost(ctx context.Context, id string, cost decimal.Decimal) error
}
