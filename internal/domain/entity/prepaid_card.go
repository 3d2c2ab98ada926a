package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Estados de una tarjeta prepago.
const (
	PrepaidCardActive = "active"
	PrepaidCardLocked = "locked"
)

// PrepaidCard tarjeta de valor almacenado redimible contra facturas.
type PrepaidCard struct {
	Code       string
	CustomerID string
	Balance    decimal.Decimal
	Status     string
	ExpiresAt  *time.Time
	Version    int64
	UpdatedAt  time.Time
}

// Usable indica si la tarjeta está activa y vigente en el instante dado.
func (c *PrepaidCard) Usable(at time.Time) bool {
	if c.Status != PrepaidCardActive {
		return false
	}
	return c.ExpiresAt == nil || at.Before(*c.ExpiresAt)
}
