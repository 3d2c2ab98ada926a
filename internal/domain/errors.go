package domain

import "errors"

// Errores de dominio (sin dependencias externas).
// Cada tipo se traduce a un código HTTP distinto en interfaces/http.
var (
	ErrNotFound     = errors.New("recurso no encontrado")
	ErrUnauthorized = errors.New("no autorizado")
	ErrForbidden    = errors.New("acceso denegado")

	// ErrValidation entrada mal formada (cantidades cero o negativas, campos faltantes...).
	ErrValidation = errors.New("entrada inválida")
	// ErrInsufficientStock el movimiento dejaría el stock en negativo.
	ErrInsufficientStock = errors.New("stock insuficiente")
	// ErrInvalidDiscount puntos o tarjeta prepago inválidos o por encima del saldo.
	ErrInvalidDiscount = errors.New("descuento inválido")
	// ErrCreditLimitExceeded la deuda del cliente superaría su cupo de crédito.
	ErrCreditLimitExceeded = errors.New("cupo de crédito excedido")
	// ErrConcurrencyConflict se agotaron los reintentos optimistas; el caller puede reintentar.
	ErrConcurrencyConflict = errors.New("conflicto de concurrencia, reintente la operación")
	// ErrInvalidSessionState operación no permitida en el estado actual (ej. completar dos veces un inventario).
	ErrInvalidSessionState = errors.New("estado de sesión inválido")
)
