package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/spa-ledger-api/internal/domain/entity"
	"github.com/jhoicas/spa-ledger-api/internal/domain/repository"
)

var _ repository.StockAdjustmentRepository = (*StockAdjustmentRepo)(nil)

// StockAdjustmentRepo libro de ajustes sobre PostgreSQL. Solo INSERT y SELECT.
type StockAdjustmentRepo struct {
	q Querier
}

// NewStockAdjustmentRepository construye el adaptador. Pasar pool o tx (Querier).
func NewStockAdjustmentRepository(q Querier) *StockAdjustmentRepo {
	return &StockAdjustmentRepo{q: q}
}

const adjustmentColumns = `id, product_id, quantity_change, new_stock_level, type, notes, actor_id, reference_id, reversal_of, created_at`

func scanAdjustment(row pgx.Row) (*entity.StockAdjustment, error) {
	var a entity.StockAdjustment
	var typ string
	var notes, ref, reversalOf *string
	if err := row.Scan(&a.ID, &a.ProductID, &a.QuantityChange, &a.NewStockLevel, &typ,
		&notes, &a.ActorID, &ref, &reversalOf, &a.CreatedAt); err != nil {
		return nil, err
	}
	a.Type = entity.AdjustmentType(typ)
	a.Notes = derefString(notes)
	a.ReferenceID = derefString(ref)
	a.ReversalOf = derefString(reversalOf)
	return &a, nil
}

// Append inserta un asiento.
func (r *StockAdjustmentRepo) Append(ctx context.Context, adj *entity.StockAdjustment) error {
	if adj.ID == "" {
		adj.ID = uuid.New().String()
	}
	_, err := r.q.Exec(ctx, `
		INSERT INTO stock_adjustments (`+adjustmentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		adj.ID, adj.ProductID, adj.QuantityChange, adj.NewStockLevel, string(adj.Type),
		nullIfEmpty(adj.Notes), adj.ActorID, nullIfEmpty(adj.ReferenceID), nullIfEmpty(adj.ReversalOf), adj.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			// único parcial sobre reversal_of: el asiento ya fue revertido
			return repository.ErrStaleVersion
		}
		return fmt.Errorf("append stock adjustment: %w", err)
	}
	return nil
}

// GetByID obtiene un asiento; nil si no existe.
func (r *StockAdjustmentRepo) GetByID(ctx context.Context, id string) (*entity.StockAdjustment, error) {
	a, err := scanAdjustment(r.q.QueryRow(ctx, `SELECT `+adjustmentColumns+` FROM stock_adjustments WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get stock adjustment: %w", err)
	}
	return a, nil
}

// ListByProduct historial del producto, más recientes primero.
func (r *StockAdjustmentRepo) ListByProduct(ctx context.Context, productID string, limit, offset int) ([]*entity.StockAdjustment, error) {
	return r.list(ctx, `SELECT `+adjustmentColumns+` FROM stock_adjustments
		WHERE product_id = $1 ORDER BY seq DESC LIMIT $2 OFFSET $3`, productID, limit, offset)
}

// ListByReference asientos de un documento en orden cronológico.
func (r *StockAdjustmentRepo) ListByReference(ctx context.Context, referenceID string) ([]*entity.StockAdjustment, error) {
	return r.list(ctx, `SELECT `+adjustmentColumns+` FROM stock_adjustments
		WHERE reference_id = $1 ORDER BY seq`, referenceID)
}

func (r *StockAdjustmentRepo) list(ctx context.Context, query string, args ...any) ([]*entity.StockAdjustment, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list stock adjustments: %w", err)
	}
	defer rows.Close()
	var list []*entity.StockAdjustment
	for rows.Next() {
		a, err := scanAdjustment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stock adjustment: %w", err)
		}
		list = append(list, a)
	}
	return list, rows.Err()
}

// IsReversed indica si algún asiento revierte id.
func (r *StockAdjustmentRepo) IsReversed(ctx context.Context, id string) (bool, error) {
	var found bool
	err := r.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM stock_adjustments WHERE reversal_of = $1)`, id).Scan(&found)
	if err != nil {
		return false, fmt.Errorf("is reversed: %w", err)
	}
	return found, nil
}

// Summary agrega el libro del producto para la auditoría.
func (r *StockAdjustmentRepo) Summary(ctx context.Context, productID string) (repository.LedgerSummary, error) {
	var s repository.LedgerSummary
	err := r.q.QueryRow(ctx, `
		SELECT COALESCE(SUM(quantity_change), 0), COUNT(*),
		       COALESCE((SELECT new_stock_level FROM stock_adjustments
		                 WHERE product_id = $1 ORDER BY seq DESC LIMIT 1), 0)
		FROM stock_adjustments WHERE product_id = $1`, productID,
	).Scan(&s.Sum, &s.Entries, &s.LastLevel)
	if err != nil {
		return s, fmt.Errorf("ledger summary: %w", err)
	}
	return s, nil
}
