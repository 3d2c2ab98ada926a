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

var _ repository.CustomerRepository = (*CustomerRepo)(nil)

// CustomerRepo implementación de CustomerRepository (usable con pool o tx).
type CustomerRepo struct {
	q Querier
}

// NewCustomerRepository construye el adaptador. Pasar pool o tx (Querier).
func NewCustomerRepository(q Querier) *CustomerRepo {
	return &CustomerRepo{q: q}
}

// GetByID obtiene un cliente por ID; nil si no existe.
func (r *CustomerRepo) GetByID(ctx context.Context, id string) (*entity.Customer, error) {
	var c entity.Customer
	var phone *string
	err := r.q.QueryRow(ctx, `
		SELECT id, name, phone, credit_limit, debt_amount, loyalty_points, version, updated_at
		FROM customers WHERE id = $1`, id,
	).Scan(&c.ID, &c.Name, &phone, &c.CreditLimit, &c.DebtAmount, &c.LoyaltyPoints, &c.Version, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get customer: %w", err)
	}
	c.Phone = derefString(phone)
	return &c, nil
}

// ApplyBalanceChange mueve puntos y deuda en un solo UPDATE condicionado por versión.
// Los CHECK de la tabla impiden puntos o deuda negativos.
func (r *CustomerRepo) ApplyBalanceChange(ctx context.Context, id string, expectedVersion int64, pointsDelta int64, debtDelta decimal.Decimal) error {
	cmd, err := r.q.Exec(ctx, `
		UPDATE customers
		SET loyalty_points = loyalty_points + $3,
		    debt_amount    = debt_amount + $4,
		    version        = version + 1,
		    updated_at     = now()
		WHERE id = $1 AND version = $2`,
		id, expectedVersion, pointsDelta, debtDelta,
	)
	if err != nil {
		return fmt.Errorf("apply balance change: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		var exists bool
		if err := r.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM customers WHERE id = $1)`, id).Scan(&exists); err != nil {
			return fmt.Errorf("check customer: %w", err)
		}
		if !exists {
			return domain.ErrNotFound
		}
		return repository.ErrStaleVersion
	}
	return nil
}
