package inventory

import (
	"fmt"

	"github.com/jhoicas/spa-ledger-api/internal/domain"
	"github.com/jhoicas/spa-ledger-api/internal/domain/entity"
)

// AdjustmentRequest solicitud tipada y validada de un asiento de stock.
// Delta lleva el signo definitivo; el Ledger solo suma.
type AdjustmentRequest struct {
	ProductID   string
	Delta       int
	Type        entity.AdjustmentType
	Notes       string
	ActorID     string
	ReferenceID string
	ReversalOf  string
}

// Meta datos comunes de contexto de una solicitud.
type Meta struct {
	Notes       string
	ActorID     string
	ReferenceID string
}

// AdjustmentFactory clasifica y construye solicitudes de ajuste aplicando las reglas de signo:
// entrada (IMPORT, manual "+", return) positiva; salida (EXPORT, sale, service_consumption)
// negativa; inventory_check = real - actual. Nunca acepta cantidad cero.
type AdjustmentFactory struct{}

// Initial stock de apertura de un producto.
func (AdjustmentFactory) Initial(productID string, qty int, m Meta) (AdjustmentRequest, error) {
	if err := positive(productID, qty); err != nil {
		return AdjustmentRequest{}, err
	}
	return build(productID, qty, entity.AdjustmentInitial, m), nil
}

// Manual ajuste manual con signo libre (formulario de ajuste).
func (AdjustmentFactory) Manual(productID string, delta int, m Meta) (AdjustmentRequest, error) {
	if productID == "" {
		return AdjustmentRequest{}, fmt.Errorf("%w: product_id requerido", domain.ErrValidation)
	}
	if delta == 0 {
		return AdjustmentRequest{}, fmt.Errorf("%w: quantity_change no puede ser cero", domain.ErrValidation)
	}
	return build(productID, delta, entity.AdjustmentManual, m), nil
}

// Return devolución de un cliente: siempre entra al stock.
func (AdjustmentFactory) Return(productID string, qty int, m Meta) (AdjustmentRequest, error) {
	if err := positive(productID, qty); err != nil {
		return AdjustmentRequest{}, err
	}
	return build(productID, qty, entity.AdjustmentReturn, m), nil
}

// Sale venta de un producto en el punto de venta.
func (AdjustmentFactory) Sale(productID string, qty int, m Meta) (AdjustmentRequest, error) {
	if err := positive(productID, qty); err != nil {
		return AdjustmentRequest{}, err
	}
	return build(productID, -qty, entity.AdjustmentSale, m), nil
}

// ServiceConsumption producto gastado durante un tratamiento.
func (AdjustmentFactory) ServiceConsumption(productID string, qty int, m Meta) (AdjustmentRequest, error) {
	if err := positive(productID, qty); err != nil {
		return AdjustmentRequest{}, err
	}
	return build(productID, -qty, entity.AdjustmentServiceConsumption, m), nil
}

// SlipLine línea de comprobante de bodega: IMPORT suma, EXPORT resta.
func (AdjustmentFactory) SlipLine(slipType entity.SlipType, productID string, qty int, m Meta) (AdjustmentRequest, error) {
	if !slipType.Valid() {
		return AdjustmentRequest{}, fmt.Errorf("%w: tipo de comprobante %q", domain.ErrValidation, slipType)
	}
	if err := positive(productID, qty); err != nil {
		return AdjustmentRequest{}, err
	}
	return build(productID, slipType.Sign()*qty, entity.AdjustmentManual, m), nil
}

// SlipCorrection corrección de un comprobante ya contabilizado: diff es new_qty - old_qty en
// unidades del comprobante. ok=false si no hay diferencia.
func (AdjustmentFactory) SlipCorrection(slipType entity.SlipType, productID string, diff int, m Meta) (req AdjustmentRequest, ok bool, err error) {
	if !slipType.Valid() {
		return AdjustmentRequest{}, false, fmt.Errorf("%w: tipo de comprobante %q", domain.ErrValidation, slipType)
	}
	if diff == 0 {
		return AdjustmentRequest{}, false, nil
	}
	return build(productID, slipType.Sign()*diff, entity.AdjustmentManual, m), true, nil
}

// InventoryCheck diferencia de conteo físico: actual - current. ok=false si cuadra.
func (AdjustmentFactory) InventoryCheck(productID string, actual, current int, m Meta) (req AdjustmentRequest, ok bool, err error) {
	if productID == "" {
		return AdjustmentRequest{}, false, fmt.Errorf("%w: product_id requerido", domain.ErrValidation)
	}
	if actual < 0 {
		return AdjustmentRequest{}, false, fmt.Errorf("%w: cantidad contada negativa", domain.ErrValidation)
	}
	delta := actual - current
	if delta == 0 {
		return AdjustmentRequest{}, false, nil
	}
	return build(productID, delta, entity.AdjustmentInventoryCheck, m), true, nil
}

// Reversal asiento que anula original. Se registra como manual_adjustment con back-reference.
func (AdjustmentFactory) Reversal(original *entity.StockAdjustment, m Meta) (AdjustmentRequest, error) {
	if original == nil || original.QuantityChange == 0 {
		return AdjustmentRequest{}, fmt.Errorf("%w: asiento a revertir inválido", domain.ErrValidation)
	}
	if original.IsReversal() {
		return AdjustmentRequest{}, fmt.Errorf("%w: no se revierte una reversión", domain.ErrValidation)
	}
	req := build(original.ProductID, -original.QuantityChange, entity.AdjustmentManual, m)
	if req.ReferenceID == "" {
		req.ReferenceID = original.ReferenceID
	}
	req.ReversalOf = original.ID
	return req, nil
}

func positive(productID string, qty int) error {
	if productID == "" {
		return fmt.Errorf("%w: product_id requerido", domain.ErrValidation)
	}
	if qty <= 0 {
		return fmt.Errorf("%w: la cantidad debe ser mayor que cero", domain.ErrValidation)
	}
	return nil
}

func build(productID string, delta int, t entity.AdjustmentType, m Meta) AdjustmentRequest {
	return AdjustmentRequest{
		ProductID:   productID,
		Delta:       delta,
		Type:        t,
		Notes:       m.Notes,
		ActorID:     m.ActorID,
		ReferenceID: m.ReferenceID,
	}
}
