package billing

import (
	"fmt"

	"github.com/jhoicas/spa-ledger-api/internal/domain"
	"github.com/jhoicas/spa-ledger-api/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// CreditPolicy regla de cupo: debt_amount + requested_debt <= credit_limit.
type CreditPolicy struct{}

// Check valida que el cliente pueda asumir requested como nueva deuda.
// requested <= 0 no consume cupo y siempre pasa.
func (CreditPolicy) Check(customer *entity.Customer, requested decimal.Decimal) error {
	if !requested.IsPositive() {
		return nil
	}
	if customer == nil {
		return fmt.Errorf("%w: cliente requerido para cargar deuda", domain.ErrValidation)
	}
	if customer.DebtAmount.Add(requested).GreaterThan(customer.CreditLimit) {
		return fmt.Errorf("%w: deuda actual %s + %s supera el cupo %s",
			domain.ErrCreditLimitExceeded,
			customer.DebtAmount.String(), requested.String(), customer.CreditLimit.String())
	}
	return nil
}
