package inventory

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/spa-ledger-api/internal/application/dto"
	"github.com/jhoicas/spa-ledger-api/internal/domain/repository"
)

// ReplenishmentUseCase genera el reporte de productos con stock bajo.
type ReplenishmentUseCase struct {
	productRepo repository.ProductRepository
}

// NewReplenishmentUseCase construye el caso de uso de reposición.
func NewReplenishmentUseCase(productRepo repository.ProductRepository) *ReplenishmentUseCase {
	return &ReplenishmentUseCase{productRepo: productRepo}
}

// GenerateLowStockReport devuelve los productos en o por debajo de su umbral con la cantidad
// sugerida de pedido, ordenados por déficit relativo (primero los agotados).
func (uc *ReplenishmentUseCase) GenerateLowStockReport(ctx context.Context) ([]dto.LowStockItemDTO, error) {
	products, err := uc.productRepo.ListLowStock(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]dto.LowStockItemDTO, 0, len(products))
	for _, p := range products {
		if !p.IsLowStock() {
			continue
		}
		ideal := (p.LowStockThreshold*3 + 1) / 2
		suggested := ideal - p.Stock
		if suggested < 0 {
			suggested = 0
		}
		out = append(out, dto.LowStockItemDTO{
			ProductID:          p.ID,
			SKU:                p.SKU,
			ProductName:        p.Name,
			CurrentStock:       p.Stock,
			Threshold:          p.LowStockThreshold,
			IdealStock:         ideal,
			SuggestedOrderQty:  suggested,
			UnitCost:           p.Cost,
			EstimatedOrderCost: p.Cost.Mul(decimal.NewFromInt(int64(suggested))),
		})
	}

	// Déficit relativo = (umbral - stock) / umbral; empate: mayor costo estimado primero.
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		ra := float64(a.Threshold-a.CurrentStock) / float64(a.Threshold)
		rb := float64(b.Threshold-b.CurrentStock) / float64(b.Threshold)
		if ra != rb {
			return ra > rb
		}
		return a.EstimatedOrderCost.GreaterThan(b.EstimatedOrderCost)
	})
	for i := range out {
		out[i].Priority = i + 1
	}
	return out, nil
}
