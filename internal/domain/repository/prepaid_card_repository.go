package repository

import (
	"context"

	"github.com/jhoicas/spa-ledger-api/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// PrepaidCardRepository puerto hacia las tarjetas prepago.
type PrepaidCardRepository interface {
	GetByCode(ctx context.Context, code string) (*entity.PrepaidCard, error)
	// AdjustBalance suma delta al saldo comparando la versión. ErrStaleVersion si no coincide.
	AdjustBalance(ctx context.Context, code string, expectedVersion int64, delta decimal.Decimal) error
}
