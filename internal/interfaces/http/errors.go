package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/jhoicas/spa-ledger-api/internal/application/dto"
	"github.com/jhoicas/spa-ledger-api/internal/domain"
	"github.com/jhoicas/spa-ledger-api/pkg/validation"
)

// retryAfterSeconds valor del header Retry-After en CONCURRENCY_CONFLICT.
const retryAfterSeconds = "1"

type errorMapping struct {
	target error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{domain.ErrValidation, fiber.StatusBadRequest, "VALIDATION"},
	{domain.ErrNotFound, fiber.StatusNotFound, "NOT_FOUND"},
	{domain.ErrUnauthorized, fiber.StatusUnauthorized, "UNAUTHORIZED"},
	{domain.ErrForbidden, fiber.StatusForbidden, "FORBIDDEN"},
	{domain.ErrInsufficientStock, fiber.StatusConflict, "INSUFFICIENT_STOCK"},
	{domain.ErrInvalidDiscount, fiber.StatusUnprocessableEntity, "INVALID_DISCOUNT"},
	{domain.ErrCreditLimitExceeded, fiber.StatusUnprocessableEntity, "CREDIT_LIMIT_EXCEEDED"},
	{domain.ErrInvalidSessionState, fiber.StatusConflict, "INVALID_SESSION_STATE"},
	{domain.ErrConcurrencyConflict, fiber.StatusConflict, "CONCURRENCY_CONFLICT"},
}

// respondError traduce un error de dominio a su respuesta HTTP. El mensaje incluye el detalle
// que el caso de uso adjuntó con %w; los errores no mapeados salen como INTERNAL sin detalle.
func respondError(c *fiber.Ctx, err error) error {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			if m.target == domain.ErrConcurrencyConflict {
				c.Set(fiber.HeaderRetryAfter, retryAfterSeconds)
			}
			return c.Status(m.status).JSON(dto.ErrorResponse{Code: m.code, Message: err.Error()})
		}
	}
	zerolog.Ctx(c.UserContext()).Error().Err(err).Str("path", c.Path()).Msg("error interno")
	return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: "error interno"})
}

// parseBody decodifica el JSON y lo valida. Si devuelve false la respuesta ya está escrita.
func parseBody(c *fiber.Ctx, out interface{}) (bool, error) {
	if err := c.BodyParser(out); err != nil {
		return false, c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	return validate(c, out)
}

// parseQuery igual que parseBody para filtros en query string.
func parseQuery(c *fiber.Ctx, out interface{}) (bool, error) {
	if err := c.QueryParser(out); err != nil {
		return false, c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_QUERY", Message: "parámetros inválidos"})
	}
	return validate(c, out)
}

func validate(c *fiber.Ctx, out interface{}) (bool, error) {
	if err := validation.Struct(out); err != nil {
		return false, c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Code:    "VALIDATION",
			Message: "datos inválidos",
			Details: validation.Details(err),
		})
	}
	return true, nil
}
