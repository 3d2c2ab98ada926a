package repository

import (
	"context"

	"github.com/jhoicas/spa-ledger-api/internal/domain/entity"
)

// StockTakeRepository persistencia de sesiones de inventario físico.
type StockTakeRepository interface {
	Create(ctx context.Context, session *entity.StockTakeSession) error
	GetByID(ctx context.Context, id string) (*entity.StockTakeSession, error)
	List(ctx context.Context, status string, limit, offset int) ([]*entity.StockTakeSession, error)
	// SaveCounts guarda las líneas de la sesión si sigue ongoing con expectedVersion.
	// ErrStaleVersion si la versión cambió; domain.ErrInvalidSessionState si ya no está ongoing.
	SaveCounts(ctx context.Context, session *entity.StockTakeSession, expectedVersion int64) error
	// MarkCompleted hace el CAS ongoing -> completed con la misma semántica de errores.
	MarkCompleted(ctx context.Context, session *entity.StockTakeSession, expectedVersion int64) error
}
