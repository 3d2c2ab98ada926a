package inventory

import (
	"context"

	"github.com/jhoicas/spa-ledger-api/internal/domain/entity"
	"github.com/jhoicas/spa-ledger-api/internal/domain/repository"
)

// TxRunner ejecuta una función dentro de una transacción de BD, pasando repositorios atados a esa tx.
// Garantiza atomicidad para el libro de stock: si fn devuelve error se hace Rollback.
type TxRunner interface {
	Run(ctx context.Context, fn func(repos repository.Repositories) error) error
}

// Metrics observaciones del libro (reintentos, conflictos, asientos escritos).
type Metrics interface {
	ObserveRetry(op string)
	ObserveConflict(op string)
	ObserveAdjustments(t entity.AdjustmentType, n int)
}

// SheetExporter genera la planilla de conteo de una sesión de inventario.
type SheetExporter interface {
	StockTakeSheet(session *entity.StockTakeSession, products map[string]*entity.Product) ([]byte, error)
}

// NopMetrics descarta todas las observaciones.
type NopMetrics struct{}

func (NopMetrics) ObserveRetry(string)                           {}
func (NopMetrics) ObserveConflict(string)                        {}
func (NopMetrics) ObserveAdjustments(entity.AdjustmentType, int) {}
