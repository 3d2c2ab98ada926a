package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/spa-ledger-api/internal/application/dto"
	"github.com/jhoicas/spa-ledger-api/internal/application/inventory"
)

// InventoryHandler ajustes manuales y consultas del libro de stock (protegido).
type InventoryHandler struct {
	ledger        *inventory.Ledger
	replenishment *inventory.ReplenishmentUseCase
}

// NewInventoryHandler construye el handler.
func NewInventoryHandler(ledger *inventory.Ledger, replenishment *inventory.ReplenishmentUseCase) *InventoryHandler {
	return &InventoryHandler{ledger: ledger, replenishment: replenishment}
}

// RegisterAdjustment godoc
// @Summary      Registrar ajuste de stock
// @Description  reason=manual acepta cantidad con signo; return e initial solo positivas.
// @Description  initial solo se acepta sobre un producto sin asientos.
// @Tags         inventory
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.ManualAdjustmentRequest  true  "product_id, reason, quantity_change"
// @Success      201   {object}  dto.AdjustmentResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/inventory/adjustments [post]
func (h *InventoryHandler) RegisterAdjustment(c *fiber.Ctx) error {
	var in dto.ManualAdjustmentRequest
	if ok, err := parseBody(c, &in); !ok {
		return err
	}
	out, err := h.ledger.RegisterAdjustmentFromRequest(c.UserContext(), GetUserID(c), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

// Reverse godoc
// @Summary      Revertir un asiento
// @Description  Escribe un asiento reversal de signo contrario. Un asiento se revierte una sola vez.
// @Tags         inventory
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string                        true   "ID del asiento"
// @Param        body  body  dto.ReverseAdjustmentRequest  false  "notas"
// @Success      201   {object}  dto.AdjustmentResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/inventory/adjustments/{id}/reverse [post]
func (h *InventoryHandler) Reverse(c *fiber.Ctx) error {
	var in dto.ReverseAdjustmentRequest
	if len(c.Body()) > 0 {
		if ok, err := parseBody(c, &in); !ok {
			return err
		}
	}
	adj, err := h.ledger.Reverse(c.UserContext(), c.Params("id"), GetUserID(c), in.Notes)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(inventory.ToAdjustmentResponse(adj))
}

// History godoc
// @Summary      Historial del libro de un producto
// @Tags         inventory
// @Security     Bearer
// @Produce      json
// @Param        id      path   string  true   "ID del producto"
// @Param        limit   query  int     false  "Límite"  default(20)
// @Param        offset  query  int     false  "Offset"  default(0)
// @Success      200     {object}  dto.ListResponse[dto.AdjustmentResponse]
// @Failure      404     {object}  dto.ErrorResponse
// @Router       /api/inventory/products/{id}/adjustments [get]
func (h *InventoryHandler) History(c *fiber.Ctx) error {
	var page dto.PageRequest
	if ok, err := parseQuery(c, &page); !ok {
		return err
	}
	page.DefaultPage()
	list, err := h.ledger.History(c.UserContext(), c.Params("id"), page)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.ListResponse[dto.AdjustmentResponse]{
		Items: inventory.ToAdjustmentResponses(list),
		Page:  dto.PageResponse{Limit: page.Limit, Offset: page.Offset},
	})
}

// Audit godoc
// @Summary      Auditoría del libro de un producto
// @Description  Compara el stock del producto contra la suma de quantity_change de sus asientos.
// @Tags         inventory
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID del producto"
// @Success      200  {object}  dto.LedgerAuditResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/inventory/products/{id}/audit [get]
func (h *InventoryHandler) Audit(c *fiber.Ctx) error {
	out, err := h.ledger.Audit(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(out)
}

// LowStock godoc
// @Summary      Productos con stock bajo
// @Description  Productos activos con stock en o por debajo de su umbral, con la cantidad sugerida de pedido.
// @Tags         inventory
// @Security     Bearer
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      500  {object}  dto.ErrorResponse
// @Router       /api/inventory/low-stock [get]
func (h *InventoryHandler) LowStock(c *fiber.Ctx) error {
	list, err := h.replenishment.GenerateLowStockReport(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"total": len(list),
		"items": list,
	})
}
