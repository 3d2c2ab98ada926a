package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/spa-ledger-api/internal/application/dto"
	"github.com/jhoicas/spa-ledger-api/internal/application/inventory"
)

// SlipHandler comprobantes de bodega (protegido, admin y bodega).
type SlipHandler struct {
	uc *inventory.SlipUseCase
}

// NewSlipHandler construye el handler.
func NewSlipHandler(uc *inventory.SlipUseCase) *SlipHandler {
	return &SlipHandler{uc: uc}
}

// Create godoc
// @Summary      Crear comprobante de bodega
// @Description  IMPORT suma y EXPORT resta stock. Todas las líneas se aplican o ninguna.
// @Tags         warehouse-slips
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.CreateSlipRequest  true  "type, supplier_id (solo IMPORT), items"
// @Success      201   {object}  dto.SlipResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/warehouse-slips [post]
func (h *SlipHandler) Create(c *fiber.Ctx) error {
	var in dto.CreateSlipRequest
	if ok, err := parseBody(c, &in); !ok {
		return err
	}
	out, err := h.uc.CreateSlip(c.UserContext(), GetUserID(c), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

// List godoc
// @Summary      Listar comprobantes
// @Tags         warehouse-slips
// @Security     Bearer
// @Produce      json
// @Param        type    query  string  false  "IMPORT o EXPORT"
// @Param        limit   query  int     false  "Límite"  default(20)
// @Param        offset  query  int     false  "Offset"  default(0)
// @Success      200     {object}  dto.ListResponse[dto.SlipResponse]
// @Router       /api/warehouse-slips [get]
func (h *SlipHandler) List(c *fiber.Ctx) error {
	var in dto.SlipListRequest
	if ok, err := parseQuery(c, &in); !ok {
		return err
	}
	in.DefaultPage()
	list, err := h.uc.ListSlips(c.UserContext(), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.ListResponse[dto.SlipResponse]{
		Items: list,
		Page:  dto.PageResponse{Limit: in.Limit, Offset: in.Offset},
	})
}

// GetByID godoc
// @Summary      Obtener comprobante
// @Tags         warehouse-slips
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID del comprobante"
// @Success      200  {object}  dto.SlipResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/warehouse-slips/{id} [get]
func (h *SlipHandler) GetByID(c *fiber.Ctx) error {
	out, err := h.uc.GetSlip(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(out)
}

// Update godoc
// @Summary      Editar líneas de un comprobante
// @Description  Aplica solo la diferencia por producto como asientos slip_correction.
// @Tags         warehouse-slips
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string                 true  "ID del comprobante"
// @Param        body  body  dto.UpdateSlipRequest  true  "líneas nuevas"
// @Success      200   {object}  dto.SlipResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/warehouse-slips/{id} [put]
func (h *SlipHandler) Update(c *fiber.Ctx) error {
	var in dto.UpdateSlipRequest
	if ok, err := parseBody(c, &in); !ok {
		return err
	}
	out, err := h.uc.UpdateSlip(c.UserContext(), GetUserID(c), c.Params("id"), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(out)
}

// Delete godoc
// @Summary      Borrar comprobante
// @Description  Revierte el efecto de todas sus líneas en el libro y elimina el comprobante.
// @Tags         warehouse-slips
// @Security     Bearer
// @Param        id   path  string  true  "ID del comprobante"
// @Success      204
// @Failure      404  {object}  dto.ErrorResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/warehouse-slips/{id} [delete]
func (h *SlipHandler) Delete(c *fiber.Ctx) error {
	if err := h.uc.DeleteSlip(c.UserContext(), GetUserID(c), c.Params("id")); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
