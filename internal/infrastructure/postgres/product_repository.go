package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/spa-ledger-api/internal/domain"
	"github.com/jhoicas/spa-ledger-api/internal/domain/entity"
	"github.com/jhoicas/spa-ledger-api/internal/domain/repository"
)

var _ repository.ProductRepository = (*ProductRepo)(nil)

// ProductRepo implementación del puerto ProductRepository sobre PostgreSQL (usable con pool o tx).
type ProductRepo struct {
	q Querier
}

// NewProductRepository construye el adaptador. Pasar pool o tx (Querier).
func NewProductRepository(q Querier) *ProductRepo {
	return &ProductRepo{q: q}
}

const productColumns = `id, sku, name, price, cost, stock, low_stock_threshold, version, active, created_at, updated_at`

func scanProduct(row pgx.Row) (*entity.Product, error) {
	var p entity.Product
	err := row.Scan(&p.ID, &p.SKU, &p.Name, &p.Price, &p.Cost, &p.Stock, &p.LowStockThreshold,
		&p.Version, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetByID obtiene un producto por ID; nil si no existe.
func (r *ProductRepo) GetByID(ctx context.Context, id string) (*entity.Product, error) {
	p, err := scanProduct(r.q.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

// GetStocks lee stock y versión de varios productos en una sola consulta.
func (r *ProductRepo) GetStocks(ctx context.Context, ids []string) (map[string]entity.ProductStock, error) {
	rows, err := r.q.Query(ctx, `SELECT id, stock, version FROM products WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("get stocks: %w", err)
	}
	defer rows.Close()
	out := make(map[string]entity.ProductStock, len(ids))
	for rows.Next() {
		var s entity.ProductStock
		if err := rows.Scan(&s.ProductID, &s.Stock, &s.Version); err != nil {
			return nil, fmt.Errorf("scan stock: %w", err)
		}
		out[s.ProductID] = s
	}
	return out, rows.Err()
}

// ListActive productos activos ordenados por nombre.
func (r *ProductRepo) ListActive(ctx context.Context) ([]*entity.Product, error) {
	return r.list(ctx, `SELECT `+productColumns+` FROM products WHERE active ORDER BY name`)
}

// ListLowStock productos activos con stock <= umbral (umbral > 0).
func (r *ProductRepo) ListLowStock(ctx context.Context) ([]*entity.Product, error) {
	return r.list(ctx, `SELECT `+productColumns+` FROM products
		WHERE active AND low_stock_threshold > 0 AND stock <= low_stock_threshold ORDER BY name`)
}

func (r *ProductRepo) list(ctx context.Context, query string) ([]*entity.Product, error) {
	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()
	var list []*entity.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

// CompareAndSwapStock escribe el stock solo si la versión no cambió desde la lectura.
func (r *ProductRepo) CompareAndSwapStock(ctx context.Context, id string, expectedVersion int64, newStock int) error {
	cmd, err := r.q.Exec(ctx,
		`UPDATE products SET stock = $3, version = version + 1, updated_at = now()
		 WHERE id = $1 AND version = $2`,
		id, expectedVersion, newStock,
	)
	if err != nil {
		return fmt.Errorf("cas stock: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return r.missingOrStale(ctx, id)
	}
	return nil
}

// UpdateCost actualiza solo el costo promedio (comprobante de entrada). No toca la versión de stock.
func (r *ProductRepo) UpdateCost(ctx context.Context, id string, cost decimal.Decimal) error {
	cmd, err := r.q.Exec(ctx, `UPDATE products SET cost = $2, updated_at = now() WHERE id = $1`, id, cost)
	if err != nil {
		return fmt.Errorf("update product cost: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *ProductRepo) missingOrStale(ctx context.Context, id string) error {
	var exists bool
	if err := r.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check product: %w", err)
	}
	if !exists {
		return domain.ErrNotFound
	}
	return repository.ErrStaleVersion
}
