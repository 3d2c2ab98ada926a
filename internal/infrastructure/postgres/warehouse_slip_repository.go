package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/spa-ledger-api/internal/domain"
	"github.com/jhoicas/spa-ledger-api/internal/domain/entity"
	"github.com/jhoicas/spa-ledger-api/internal/domain/repository"
)

var _ repository.WarehouseSlipRepository = (*WarehouseSlipRepo)(nil)

// WarehouseSlipRepo comprobantes de bodega (cabecera + líneas) sobre PostgreSQL.
type WarehouseSlipRepo struct {
	q Querier
}

// NewWarehouseSlipRepository construye el adaptador. Pasar pool o tx (Querier).
func NewWarehouseSlipRepository(q Querier) *WarehouseSlipRepo {
	return &WarehouseSlipRepo{q: q}
}

const slipColumns = `id, code, type, status, supplier_id, notes, version, created_by, created_at, updated_at`

// Create inserta el comprobante con sus líneas.
func (r *WarehouseSlipRepo) Create(ctx context.Context, slip *entity.WarehouseSlip) error {
	_, err := r.q.Exec(ctx, `INSERT INTO warehouse_slips (`+slipColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		slip.ID, slip.Code, string(slip.Type), slip.Status, nullIfEmpty(slip.SupplierID), nullIfEmpty(slip.Notes),
		slip.Version, slip.CreatedBy, slip.CreatedAt, slip.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: comprobante %s ya existe", domain.ErrValidation, slip.Code)
		}
		return fmt.Errorf("insert warehouse slip: %w", err)
	}
	return r.insertItems(ctx, slip)
}

func (r *WarehouseSlipRepo) insertItems(ctx context.Context, slip *entity.WarehouseSlip) error {
	for i, it := range slip.Items {
		_, err := r.q.Exec(ctx, `
			INSERT INTO warehouse_slip_items (slip_id, line_no, product_id, quantity, unit_price)
			VALUES ($1, $2, $3, $4, $5)`,
			slip.ID, i+1, it.ProductID, it.Quantity, it.UnitPrice,
		)
		if err != nil {
			return fmt.Errorf("insert warehouse slip item: %w", err)
		}
	}
	return nil
}

func scanSlip(row pgx.Row) (*entity.WarehouseSlip, error) {
	var s entity.WarehouseSlip
	var typ string
	var supplier, notes *string
	if err := row.Scan(&s.ID, &s.Code, &typ, &s.Status, &supplier, &notes, &s.Version, &s.CreatedBy, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	s.Type = entity.SlipType(typ)
	s.SupplierID = derefString(supplier)
	s.Notes = derefString(notes)
	return &s, nil
}

// GetByID obtiene el comprobante con sus líneas; nil si no existe.
func (r *WarehouseSlipRepo) GetByID(ctx context.Context, id string) (*entity.WarehouseSlip, error) {
	s, err := scanSlip(r.q.QueryRow(ctx, `SELECT `+slipColumns+` FROM warehouse_slips WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get warehouse slip: %w", err)
	}
	if err := r.loadItems(ctx, []*entity.WarehouseSlip{s}); err != nil {
		return nil, err
	}
	return s, nil
}

// ReplaceItems sustituye las líneas del comprobante si la versión no cambió desde la lectura.
func (r *WarehouseSlipRepo) ReplaceItems(ctx context.Context, slip *entity.WarehouseSlip, expectedVersion int64) error {
	if err := r.cas(ctx, slip.ID, expectedVersion, `UPDATE warehouse_slips SET updated_at = $3, version = version + 1
		WHERE id = $1 AND version = $2`, slip.UpdatedAt); err != nil {
		return err
	}
	if _, err := r.q.Exec(ctx, `DELETE FROM warehouse_slip_items WHERE slip_id = $1`, slip.ID); err != nil {
		return fmt.Errorf("delete warehouse slip items: %w", err)
	}
	return r.insertItems(ctx, slip)
}

// Delete borra el comprobante; las líneas caen por ON DELETE CASCADE.
func (r *WarehouseSlipRepo) Delete(ctx context.Context, id string, expectedVersion int64) error {
	return r.cas(ctx, id, expectedVersion, `DELETE FROM warehouse_slips WHERE id = $1 AND version = $2`)
}

func (r *WarehouseSlipRepo) cas(ctx context.Context, id string, expectedVersion int64, query string, extra ...any) error {
	args := append([]any{id, expectedVersion}, extra...)
	cmd, err := r.q.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update warehouse slip: %w", err)
	}
	if cmd.RowsAffected() > 0 {
		return nil
	}
	var exists bool
	if err := r.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM warehouse_slips WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("check warehouse slip: %w", err)
	}
	if !exists {
		return domain.ErrNotFound
	}
	return repository.ErrStaleVersion
}

// List comprobantes más recientes primero; slipType vacío = todos.
func (r *WarehouseSlipRepo) List(ctx context.Context, slipType entity.SlipType, limit, offset int) ([]*entity.WarehouseSlip, error) {
	rows, err := r.q.Query(ctx, `SELECT `+slipColumns+` FROM warehouse_slips
		WHERE ($1 = '' OR type = $1) ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		string(slipType), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list warehouse slips: %w", err)
	}
	defer rows.Close()
	var list []*entity.WarehouseSlip
	for rows.Next() {
		s, err := scanSlip(rows)
		if err != nil {
			return nil, fmt.Errorf("scan warehouse slip: %w", err)
		}
		list = append(list, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.loadItems(ctx, list); err != nil {
		return nil, err
	}
	return list, nil
}

func (r *WarehouseSlipRepo) loadItems(ctx context.Context, slips []*entity.WarehouseSlip) error {
	if len(slips) == 0 {
		return nil
	}
	byID := make(map[string]*entity.WarehouseSlip, len(slips))
	ids := make([]string, 0, len(slips))
	for _, s := range slips {
		byID[s.ID] = s
		ids = append(ids, s.ID)
	}
	rows, err := r.q.Query(ctx, `
		SELECT slip_id, product_id, quantity, unit_price FROM warehouse_slip_items
		WHERE slip_id = ANY($1) ORDER BY slip_id, line_no`, ids)
	if err != nil {
		return fmt.Errorf("list warehouse slip items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var slipID string
		var it entity.WarehouseSlipItem
		if err := rows.Scan(&slipID, &it.ProductID, &it.Quantity, &it.UnitPrice); err != nil {
			return fmt.Errorf("scan warehouse slip item: %w", err)
		}
		byID[slipID].Items = append(byID[slipID].Items, it)
	}
	return rows.Err()
}
