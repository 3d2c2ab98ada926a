package repository

import (
	"context"

	"github.com/jhoicas/spa-ledger-api/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// CustomerRepository puerto hacia el servicio de clientes (saldo de puntos y deuda).
type CustomerRepository interface {
	GetByID(ctx context.Context, id string) (*entity.Customer, error)
	// ApplyBalanceChange suma pointsDelta a loyalty_points y debtDelta a debt_amount
	// si la versión sigue siendo expectedVersion. ErrStaleVersion si no.
	ApplyBalanceChange(ctx context.Context, id string, expectedVersion int64, pointsDelta int64, debtDelta decimal.Decimal) error
}
