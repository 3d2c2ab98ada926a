package http

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/spa-ledger-api/internal/application/dto"
	"github.com/jhoicas/spa-ledger-api/internal/application/inventory"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// StockTakeHandler sesiones de inventario físico (protegido, admin y bodega).
type StockTakeHandler struct {
	uc *inventory.StockTakeUseCase
}

// NewStockTakeHandler construye el handler.
func NewStockTakeHandler(uc *inventory.StockTakeUseCase) *StockTakeHandler {
	return &StockTakeHandler{uc: uc}
}

// Create godoc
// @Summary      Abrir inventario físico
// @Description  Toma un snapshot del stock de los productos activos.
// @Tags         stock-takes
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.CreateStockTakeRequest  false  "notas"
// @Success      201   {object}  dto.StockTakeResponse
// @Router       /api/stock-takes [post]
func (h *StockTakeHandler) Create(c *fiber.Ctx) error {
	var in dto.CreateStockTakeRequest
	if len(c.Body()) > 0 {
		if ok, err := parseBody(c, &in); !ok {
			return err
		}
	}
	out, err := h.uc.Create(c.UserContext(), GetUserID(c), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

// List godoc
// @Summary      Listar inventarios físicos
// @Tags         stock-takes
// @Security     Bearer
// @Produce      json
// @Param        status  query  string  false  "ongoing o completed"
// @Param        limit   query  int     false  "Límite"  default(20)
// @Param        offset  query  int     false  "Offset"  default(0)
// @Success      200     {object}  dto.ListResponse[dto.StockTakeResponse]
// @Router       /api/stock-takes [get]
func (h *StockTakeHandler) List(c *fiber.Ctx) error {
	var in dto.StockTakeListRequest
	if ok, err := parseQuery(c, &in); !ok {
		return err
	}
	in.DefaultPage()
	list, err := h.uc.List(c.UserContext(), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.ListResponse[dto.StockTakeResponse]{
		Items: list,
		Page:  dto.PageResponse{Limit: in.Limit, Offset: in.Offset},
	})
}

// GetByID godoc
// @Summary      Obtener inventario físico
// @Tags         stock-takes
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID de la sesión"
// @Success      200  {object}  dto.StockTakeResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/stock-takes/{id} [get]
func (h *StockTakeHandler) GetByID(c *fiber.Ctx) error {
	out, err := h.uc.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(out)
}

// RecordCounts godoc
// @Summary      Registrar conteos
// @Description  Upsert de cantidades contadas. No toca el stock.
// @Tags         stock-takes
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path  string                   true  "ID de la sesión"
// @Param        body  body  dto.RecordCountsRequest  true  "conteos"
// @Success      200   {object}  dto.StockTakeResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/stock-takes/{id}/items [put]
func (h *StockTakeHandler) RecordCounts(c *fiber.Ctx) error {
	var in dto.RecordCountsRequest
	if ok, err := parseBody(c, &in); !ok {
		return err
	}
	out, err := h.uc.RecordCounts(c.UserContext(), c.Params("id"), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(out)
}

// Complete godoc
// @Summary      Cerrar inventario físico
// @Description  Genera un asiento inventory_check por cada producto contado cuya cantidad difiere del stock actual.
// @Tags         stock-takes
// @Security     Bearer
// @Produce      json
// @Param        id   path  string  true  "ID de la sesión"
// @Success      200  {object}  dto.CompleteStockTakeResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/stock-takes/{id}/complete [post]
func (h *StockTakeHandler) Complete(c *fiber.Ctx) error {
	out, err := h.uc.Complete(c.UserContext(), GetUserID(c), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(out)
}

// Sheet godoc
// @Summary      Planilla de conteo (xlsx)
// @Tags         stock-takes
// @Security     Bearer
// @Produce      application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param        id   path  string  true  "ID de la sesión"
// @Success      200  {file}    binary
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/stock-takes/{id}/sheet [get]
func (h *StockTakeHandler) Sheet(c *fiber.Ctx) error {
	filename, data, err := h.uc.ExportSheet(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	c.Set(fiber.HeaderContentType, xlsxContentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, filename))
	return c.Send(data)
}
