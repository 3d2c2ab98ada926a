package inventory

import (
	"time"

	"github.com/jhoicas/spa-ledger-api/internal/application/dto"
	"github.com/jhoicas/spa-ledger-api/internal/domain/entity"
)

// ToAdjustmentResponse mapea un asiento a su DTO.
func ToAdjustmentResponse(a *entity.StockAdjustment) dto.AdjustmentResponse {
	return dto.AdjustmentResponse{
		ID:             a.ID,
		ProductID:      a.ProductID,
		QuantityChange: a.QuantityChange,
		NewStockLevel:  a.NewStockLevel,
		Type:           string(a.Type),
		Notes:          a.Notes,
		ActorID:        a.ActorID,
		ReferenceID:    a.ReferenceID,
		ReversalOf:     a.ReversalOf,
		CreatedAt:      a.CreatedAt.Format(time.RFC3339),
	}
}

// ToAdjustmentResponses mapea una lista de asientos.
func ToAdjustmentResponses(list []*entity.StockAdjustment) []dto.AdjustmentResponse {
	out := make([]dto.AdjustmentResponse, 0, len(list))
	for _, a := range list {
		out = append(out, ToAdjustmentResponse(a))
	}
	return out
}

func toSlipResponse(s *entity.WarehouseSlip) *dto.SlipResponse {
	items := make([]dto.SlipItemResponse, 0, len(s.Items))
	for _, it := range s.Items {
		items = append(items, dto.SlipItemResponse{ProductID: it.ProductID, Quantity: it.Quantity, UnitPrice: it.UnitPrice})
	}
	return &dto.SlipResponse{
		ID:         s.ID,
		Code:       s.Code,
		Type:       string(s.Type),
		Status:     s.Status,
		SupplierID: s.SupplierID,
		Notes:      s.Notes,
		Items:      items,
		CreatedBy:  s.CreatedBy,
		CreatedAt:  s.CreatedAt.Format(time.RFC3339),
		UpdatedAt:  s.UpdatedAt.Format(time.RFC3339),
	}
}

func toStockTakeResponse(s *entity.StockTakeSession) *dto.StockTakeResponse {
	items := make([]dto.StockTakeItemResponse, 0, len(s.Items))
	for _, it := range s.Items {
		r := dto.StockTakeItemResponse{ProductID: it.ProductID, ExpectedQuantity: it.ExpectedQuantity}
		if it.ActualQuantity != nil {
			actual := *it.ActualQuantity
			diff := actual - it.ExpectedQuantity
			r.ActualQuantity = &actual
			r.Difference = &diff
		}
		items = append(items, r)
	}
	resp := &dto.StockTakeResponse{
		ID:          s.ID,
		Code:        s.Code,
		Status:      s.Status,
		Notes:       s.Notes,
		Items:       items,
		CreatedBy:   s.CreatedBy,
		CreatedAt:   s.CreatedAt.Format(time.RFC3339),
		CompletedBy: s.CompletedBy,
	}
	if s.CompletedAt != nil {
		resp.CompletedAt = s.CompletedAt.Format(time.RFC3339)
	}
	return resp
}
