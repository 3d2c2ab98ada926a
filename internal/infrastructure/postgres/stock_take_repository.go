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

var _ repository.StockTakeRepository = (*StockTakeRepo)(nil)

// StockTakeRepo sesiones de inventario físico sobre PostgreSQL.
type StockTakeRepo struct {
	q Querier
}

// NewStockTakeRepository construye el adaptador. Pasar pool o tx (Querier).
func NewStockTakeRepository(q Querier) *StockTakeRepo {
	return &StockTakeRepo{q: q}
}

const stockTakeColumns = `id, code, status, version, notes, created_by, created_at, completed_at, completed_by`

// Create inserta la sesión con el snapshot de cantidades esperadas.
func (r *StockTakeRepo) Create(ctx context.Context, s *entity.StockTakeSession) error {
	_, err := r.q.Exec(ctx, `INSERT INTO stock_takes (`+stockTakeColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		s.ID, s.Code, s.Status, s.Version, nullIfEmpty(s.Notes), s.CreatedBy, s.CreatedAt, s.CompletedAt, nullIfEmpty(s.CompletedBy),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: sesión %s ya existe", domain.ErrValidation, s.Code)
		}
		return fmt.Errorf("insert stock take: %w", err)
	}
	return r.insertItems(ctx, s)
}

func (r *StockTakeRepo) insertItems(ctx context.Context, s *entity.StockTakeSession) error {
	for _, it := range s.Items {
		_, err := r.q.Exec(ctx, `
			INSERT INTO stock_take_items (session_id, product_id, expected_quantity, actual_quantity)
			VALUES ($1, $2, $3, $4)`,
			s.ID, it.ProductID, it.ExpectedQuantity, it.ActualQuantity,
		)
		if err != nil {
			return fmt.Errorf("insert stock take item: %w", err)
		}
	}
	return nil
}

func scanStockTake(row pgx.Row) (*entity.StockTakeSession, error) {
	var s entity.StockTakeSession
	var notes, completedBy *string
	if err := row.Scan(&s.ID, &s.Code, &s.Status, &s.Version, &notes, &s.CreatedBy, &s.CreatedAt,
		&s.CompletedAt, &completedBy); err != nil {
		return nil, err
	}
	s.Notes = derefString(notes)
	s.CompletedBy = derefString(completedBy)
	return &s, nil
}

// GetByID obtiene la sesión con sus líneas; nil si no existe.
func (r *StockTakeRepo) GetByID(ctx context.Context, id string) (*entity.StockTakeSession, error) {
	s, err := scanStockTake(r.q.QueryRow(ctx, `SELECT `+stockTakeColumns+` FROM stock_takes WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get stock take: %w", err)
	}
	if err := r.loadItems(ctx, []*entity.StockTakeSession{s}); err != nil {
		return nil, err
	}
	return s, nil
}

// List sesiones más recientes primero; status vacío = todas.
func (r *StockTakeRepo) List(ctx context.Context, status string, limit, offset int) ([]*entity.StockTakeSession, error) {
	rows, err := r.q.Query(ctx, `SELECT `+stockTakeColumns+` FROM stock_takes
		WHERE ($1 = '' OR status = $1) ORDER BY created_at DESC LIMIT $2 OFFSET $3`, status, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list stock takes: %w", err)
	}
	defer rows.Close()
	var list []*entity.StockTakeSession
	for rows.Next() {
		s, err := scanStockTake(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stock take: %w", err)
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

// SaveCounts reescribe las líneas si la sesión sigue ongoing con la versión leída.
func (r *StockTakeRepo) SaveCounts(ctx context.Context, s *entity.StockTakeSession, expectedVersion int64) error {
	if err := r.cas(ctx, s.ID, expectedVersion, `UPDATE stock_takes SET version = version + 1
		WHERE id = $1 AND version = $2 AND status = 'ongoing'`); err != nil {
		return err
	}
	if _, err := r.q.Exec(ctx, `DELETE FROM stock_take_items WHERE session_id = $1`, s.ID); err != nil {
		return fmt.Errorf("delete stock take items: %w", err)
	}
	return r.insertItems(ctx, s)
}

// MarkCompleted ongoing -> completed con la misma semántica de errores que SaveCounts.
func (r *StockTakeRepo) MarkCompleted(ctx context.Context, s *entity.StockTakeSession, expectedVersion int64) error {
	return r.cas(ctx, s.ID, expectedVersion, `UPDATE stock_takes
		SET status = 'completed', version = version + 1, completed_at = COALESCE($3, now()), completed_by = $4
		WHERE id = $1 AND version = $2 AND status = 'ongoing'`, s.CompletedAt, nullIfEmpty(s.CompletedBy))
}

func (r *StockTakeRepo) cas(ctx context.Context, id string, expectedVersion int64, query string, extra ...any) error {
	args := append([]any{id, expectedVersion}, extra...)
	cmd, err := r.q.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update stock take: %w", err)
	}
	if cmd.RowsAffected() > 0 {
		return nil
	}
	var status string
	err = r.q.QueryRow(ctx, `SELECT status FROM stock_takes WHERE id = $1`, id).Scan(&status)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return domain.ErrNotFound
	case err != nil:
		return fmt.Errorf("check stock take: %w", err)
	case status != entity.StockTakeOngoing:
		return domain.ErrInvalidSessionState
	default:
		return repository.ErrStaleVersion
	}
}

func (r *StockTakeRepo) loadItems(ctx context.Context, sessions []*entity.StockTakeSession) error {
	if len(sessions) == 0 {
		return nil
	}
	byID := make(map[string]*entity.StockTakeSession, len(sessions))
	ids := make([]string, 0, len(sessions))
	for _, s := range sessions {
		byID[s.ID] = s
		ids = append(ids, s.ID)
	}
	rows, err := r.q.Query(ctx, `
		SELECT session_id, product_id, expected_quantity, actual_quantity FROM stock_take_items
		WHERE session_id = ANY($1) ORDER BY session_id, product_id`, ids)
	if err != nil {
		return fmt.Errorf("list stock take items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var sessionID string
		var it entity.StockTakeItem
		if err := rows.Scan(&sessionID, &it.ProductID, &it.ExpectedQuantity, &it.ActualQuantity); err != nil {
			return fmt.Errorf("scan stock take item: %w", err)
		}
		byID[sessionID].Items = append(byID[sessionID].Items, it)
	}
	return rows.Err()
}
