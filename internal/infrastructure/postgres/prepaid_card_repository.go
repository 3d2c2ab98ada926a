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

var _ repository.PrepaidCardRepository = (*PrepaidCardRepo)(nil)

// PrepaidCardRepo tarjetas prepago sobre PostgreSQL.
type PrepaidCardRepo struct {
	q Querier
}

// NewPrepaidCardRepository construye el adaptador. Pasar pool o tx (Querier).
func NewPrepaidCardRepository(q Querier) *PrepaidCardRepo {
	return &PrepaidCardRepo{q: q}
}

func (r *PrepaidCardRepo) GetByCode(ctx context.Context, code string) (*entity.PrepaidCard, error) {
	var c entity.PrepaidCard
	var customerID *string
	err := r.q.QueryRow(ctx, `
		SELECT code, customer_id, balance, status, expires_at, version, updated_at
		FROM prepaid_cards WHERE code = $1`, code,
	).Scan(&c.Code, &customerID, &c.Balance, &c.Status, &c.ExpiresAt, &c.Version, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get prepaid card: %w", err)
	}
	c.CustomerID = derefString(customerID)
	return &c, nil
}

func (r *PrepaidCardRepo) AdjustBalance(ctx context.Context, code string, expectedVersion int64, delta decimal.Decimal) error {
	cmd, err := r.q.Exec(ctx, `
		UPDATE prepaid_cards SET balance = balance + $3, version = version + 1, updated_at = now()
		WHERE code = $1 AND version = $2`,
		code, expectedVersion, delta,
	)
	if err != nil {
		return fmt.Errorf("adjust prepaid balance: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		var exists bool
		if err := r.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM prepaid_cards WHERE code = $1)`, code).Scan(&exists); err != nil {
			return fmt.Errorf("check prepaid card: %w", err)
		}
		if !exists {
			return domain.ErrNotFound
		}
		return repository.ErrStaleVersion
	}
	return nil
}
