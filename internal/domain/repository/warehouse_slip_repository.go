package repository

import (
	"context"

	"github.com/jhoicas/spa-ledger-api/internal/domain/entity"
)

// WarehouseSlipRepository persistencia de comprobante de bodega y sus líneas.
type WarehouseSlipRepository interface {
	Create(ctx context.Context, slip *entity.WarehouseSlip) error
	GetByID(ctx context.Context, id string) (*entity.WarehouseSlip, error)
	// ReplaceItems sustituye las líneas, actualiza updated_at y aumenta la versión si sigue
	// siendo expectedVersion. ErrStaleVersion si otro escritor la cambió; domain.ErrNotFound si no existe.
	ReplaceItems(ctx context.Context, slip *entity.WarehouseSlip, expectedVersion int64) error
	// Delete borra el comprobante con la misma semántica de versión que ReplaceItems.
	Delete(ctx context.Context, id string, expectedVersion int64) error
	List(ctx context.Context, slipType entity.SlipType, limit, offset int) ([]*entity.WarehouseSlip, error)
}
