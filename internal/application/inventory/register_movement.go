package inventory

import (
	"context"
	"fmt"

	"github.com/jhoicas/spa-ledger-api/internal/application/dto"
	"github.com/jhoicas/spa-ledger-api/internal/domain"
	"github.com/jhoicas/spa-ledger-api/internal/domain/entity"
	domaininv "github.com/jhoicas/spa-ledger-api/internal/domain/inventory"
)

// RegisterAdjustmentFromRequest adapta el request HTTP de ajuste manual a una solicitud tipada
// (manual, return o initial) y la aplica en el libro.
func (l *Ledger) RegisterAdjustmentFromRequest(ctx context.Context, actorID string, in dto.ManualAdjustmentRequest) (*dto.AdjustmentResponse, error) {
	meta := domaininv.Meta{Notes: in.Notes, ActorID: actorID, ReferenceID: in.ReferenceID}
	var (
		req domaininv.AdjustmentRequest
		err error
	)
	switch in.Reason {
	case dto.ReasonManual:
		req, err = l.factory.Manual(in.ProductID, in.QuantityChange, meta)
	case dto.ReasonReturn:
		req, err = l.factory.Return(in.ProductID, in.QuantityChange, meta)
	case dto.ReasonInitial:
		req, err = l.factory.Initial(in.ProductID, in.QuantityChange, meta)
	default:
		return nil, fmt.Errorf("%w: reason %q", domain.ErrValidation, in.Reason)
	}
	if err != nil {
		return nil, err
	}
	adj, err := l.ApplyAdjustment(ctx, req)
	if err != nil {
		return nil, err
	}
	l.log.Info().
		Str("product_id", adj.ProductID).
		Str("type", string(adj.Type)).
		Int("quantity_change", adj.QuantityChange).
		Int("new_stock_level", adj.NewStockLevel).
		Msg("ajuste registrado")
	resp := ToAdjustmentResponse(adj)
	return &resp, nil
}

// History asientos de un producto, más recientes primero.
func (l *Ledger) History(ctx context.Context, productID string, page dto.PageRequest) ([]*entity.StockAdjustment, error) {
	page.DefaultPage()
	if _, err := l.product(ctx, productID); err != nil {
		return nil, err
	}
	return l.adjRepo.ListByProduct(ctx, productID, page.Limit, page.Offset)
}

// Audit verifica Stock == Σ quantity_change y que el último new_stock_level coincida con Stock.
func (l *Ledger) Audit(ctx context.Context, productID string) (*dto.LedgerAuditResponse, error) {
	p, err := l.product(ctx, productID)
	if err != nil {
		return nil, err
	}
	sum, err := l.adjRepo.Summary(ctx, productID)
	if err != nil {
		return nil, err
	}
	consistent := sum.Sum == p.Stock && (sum.Entries == 0 || sum.LastLevel == p.Stock)
	if !consistent {
		l.log.Error().
			Str("product_id", productID).
			Int("stock", p.Stock).
			Int("ledger_sum", sum.Sum).
			Int("last_level", sum.LastLevel).
			Msg("libro de stock descuadrado")
	}
	return &dto.LedgerAuditResponse{
		ProductID:  productID,
		Stock:      p.Stock,
		LedgerSum:  sum.Sum,
		LastLevel:  sum.LastLevel,
		Entries:    sum.Entries,
		Consistent: consistent,
	}, nil
}

func (l *Ledger) product(ctx context.Context, productID string) (*entity.Product, error) {
	if productID == "" {
		return nil, fmt.Errorf("%w: product_id requerido", domain.ErrValidation)
	}
	p, err := l.productRepo.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, domain.ErrNotFound
	}
	return p, nil
}
