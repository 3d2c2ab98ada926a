package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Customer cliente del spa (lo administra el servicio de clientes).
// La liquidación solo lee/escribe DebtAmount y LoyaltyPoints, comparando Version.
type Customer struct {
	ID            string
	Name          string
	Phone         string
	CreditLimit   decimal.Decimal
	DebtAmount    decimal.Decimal
	LoyaltyPoints int64
	Version       int64
	UpdatedAt     time.Time
}

// AvailableCredit cupo disponible para nueva deuda.
func (c *Customer) AvailableCredit() decimal.Decimal {
	return c.CreditLimit.Sub(c.DebtAmount)
}
