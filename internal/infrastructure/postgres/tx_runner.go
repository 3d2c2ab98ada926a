package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jhoicas/spa-ledger-api/internal/application/billing"
	"github.com/jhoicas/spa-ledger-api/internal/application/inventory"
	"github.com/jhoicas/spa-ledger-api/internal/domain/repository"
)

var (
	_ inventory.TxRunner = (*TxRunner)(nil)
	_ billing.TxRunner   = (*TxRunner)(nil)
)

// TxRunner ejecuta callbacks dentro de una transacción PostgreSQL (READ COMMITTED; la
// consistencia la dan los UPDATE condicionados por versión).
type TxRunner struct {
	pool *pgxpool.Pool
}

// NewTxRunner construye el runner con el pool.
func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

// Run inicia una transacción, ejecuta fn con repos atados a la tx y hace Commit o Rollback.
func (r *TxRunner) Run(ctx context.Context, fn func(repos repository.Repositories) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(NewRepositories(tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// NewRepositories arma el conjunto de repositorios sobre q (pool o tx).
func NewRepositories(q Querier) repository.Repositories {
	return repository.Repositories{
		Products:     NewProductRepository(q),
		Adjustments:  NewStockAdjustmentRepository(q),
		Slips:        NewWarehouseSlipRepository(q),
		StockTakes:   NewStockTakeRepository(q),
		Customers:    NewCustomerRepository(q),
		PrepaidCards: NewPrepaidCardRepository(q),
		Invoices:     NewInvoiceRepository(q),
	}
}
