package billing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/spa-ledger-api/internal/application/dto"
	"github.com/jhoicas/spa-ledger-api/internal/application/inventory"
	"github.com/jhoicas/spa-ledger-api/internal/domain"
	domainbilling "github.com/jhoicas/spa-ledger-api/internal/domain/billing"
	"github.com/jhoicas/spa-ledger-api/internal/domain/entity"
	domaininv "github.com/jhoicas/spa-ledger-api/internal/domain/inventory"
	"github.com/jhoicas/spa-ledger-api/internal/domain/repository"
)

// Valores por defecto de liquidación.
const (
	DefaultPointValue    = 1000 // VND por punto
	DefaultInvoicePrefix = "HD"
)

// SettlementConfig parámetros de liquidación.
type SettlementConfig struct {
	PointValue    decimal.Decimal
	InvoicePrefix string
}

// SettlementUseCase liquida una venta del POS: descuentos apilados (puntos, tarjeta prepago),
// pago en varios métodos y faltante a deuda dentro del cupo. Stock, saldos del cliente,
// tarjeta y factura se escriben en una sola transacción.
type SettlementUseCase struct {
	ledger       *inventory.Ledger
	txRunner     TxRunner
	productRepo  repository.ProductRepository
	customerRepo repository.CustomerRepository
	cardRepo     repository.PrepaidCardRepository
	invoiceRepo  repository.InvoiceRepository
	credit       domainbilling.CreditPolicy
	guard        IdempotencyGuard
	metrics      Metrics
	cfg          SettlementConfig
	log          zerolog.Logger
}

// NewSettlementUseCase construye el caso de uso. guard y metrics pueden ser nil.
func NewSettlementUseCase(
	ledger *inventory.Ledger,
	txRunner TxRunner,
	productRepo repository.ProductRepository,
	customerRepo repository.CustomerRepository,
	cardRepo repository.PrepaidCardRepository,
	invoiceRepo repository.InvoiceRepository,
	guard IdempotencyGuard,
	metrics Metrics,
	cfg SettlementConfig,
	log zerolog.Logger,
) *SettlementUseCase {
	if guard == nil {
		guard = NopIdempotencyGuard{}
	}
	if metrics == nil {
		metrics = NopMetrics{}
	}
	if !cfg.PointValue.IsPositive() {
		cfg.PointValue = decimal.NewFromInt(DefaultPointValue)
	}
	if cfg.InvoicePrefix == "" {
		cfg.InvoicePrefix = DefaultInvoicePrefix
	}
	return &SettlementUseCase{
		ledger:       ledger,
		txRunner:     txRunner,
		productRepo:  productRepo,
		customerRepo: customerRepo,
		cardRepo:     cardRepo,
		invoiceRepo:  invoiceRepo,
		guard:        guard,
		metrics:      metrics,
		cfg:          cfg,
		log:          log.With().Str("component", "settlement").Logger(),
	}
}

// CreateInvoice liquida el carrito y crea la factura con estado paid (sin faltante) o partial.
// Toda la validación ocurre antes de escribir; cualquier fallo en la transacción deshace todo.
func (uc *SettlementUseCase) CreateInvoice(ctx context.Context, actorID string, in dto.CreateInvoiceRequest) (*dto.InvoiceResponse, error) {
	if err := validateInvoiceRequest(in); err != nil {
		return nil, err
	}

	if in.IdempotencyKey != "" {
		release, err := uc.guard.Lock(ctx, in.IdempotencyKey)
		if err != nil {
			return nil, err
		}
		defer release()
		invoiceID, found, err := uc.guard.Lookup(ctx, in.IdempotencyKey)
		if err != nil {
			return nil, err
		}
		if found {
			uc.log.Info().Str("invoice_id", invoiceID).Msg("envío repetido, se devuelve la factura existente")
			return uc.GetInvoice(ctx, invoiceID)
		}
		// La clave viaja también en la fila de la factura: cubre un Remember que falló.
		prev, err := uc.invoiceRepo.GetByIdempotencyKey(ctx, in.IdempotencyKey)
		if err != nil {
			return nil, err
		}
		if prev != nil {
			uc.log.Info().Str("invoice_id", prev.ID).Msg("envío repetido, factura encontrada por su clave")
			uc.remember(ctx, in.IdempotencyKey, prev.ID)
			return toInvoiceResponse(prev), nil
		}
	}

	invoiceID := uuid.New().String()
	var inv *entity.Invoice
	var written []*entity.StockAdjustment
	err := uc.ledger.Retry(ctx, "create_invoice", func() error {
		q, err := uc.quote(ctx, actorID, invoiceID, in)
		if err != nil {
			return err
		}
		inv = q.invoice
		inv.IdempotencyKey = in.IdempotencyKey
		return uc.txRunner.Run(ctx, func(repos repository.Repositories) error {
			written, err = q.plan.Write(ctx, repos)
			if err != nil {
				return err
			}
			if inv.PointsUsed > 0 || inv.DebtAmount.IsPositive() {
				if err := repos.Customers.ApplyBalanceChange(ctx, q.customer.ID, q.customer.Version, -inv.PointsUsed, inv.DebtAmount); err != nil {
					return err
				}
			}
			if inv.PrepaidValue.IsPositive() {
				if err := repos.PrepaidCards.AdjustBalance(ctx, q.card.Code, q.card.Version, inv.PrepaidValue.Neg()); err != nil {
					return err
				}
			}
			return repos.Invoices.Create(ctx, inv)
		})
	})
	if err != nil {
		return nil, err
	}

	if in.IdempotencyKey != "" {
		uc.remember(ctx, in.IdempotencyKey, inv.ID)
	}
	uc.metrics.ObserveInvoice(inv.Status)
	uc.log.Info().
		Str("invoice_id", inv.ID).
		Str("code", inv.Code).
		Str("status", inv.Status).
		Str("total", inv.TotalAmount.String()).
		Str("debt", inv.DebtAmount.String()).
		Int("adjustments", len(written)).
		Msg("factura liquidada")
	return toInvoiceResponse(inv), nil
}

// remember guarda la clave en el guard; si falla, la fila de la factura sigue respondiendo reenvíos.
func (uc *SettlementUseCase) remember(ctx context.Context, key, invoiceID string) {
	if err := uc.guard.Remember(ctx, key, invoiceID); err != nil {
		uc.log.Warn().Err(err).Str("invoice_id", invoiceID).Msg("no se pudo guardar la clave de idempotencia")
	}
}

// GetInvoice obtiene una factura por ID.
func (uc *SettlementUseCase) GetInvoice(ctx context.Context, id string) (*dto.InvoiceResponse, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: id requerido", domain.ErrValidation)
	}
	inv, err := uc.invoiceRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, domain.ErrNotFound
	}
	return toInvoiceResponse(inv), nil
}

type quote struct {
	invoice  *entity.Invoice
	customer *entity.Customer
	card     *entity.PrepaidCard
	plan     *inventory.BatchPlan
}

// quote lee cliente, tarjeta, catálogo y stock y calcula la factura completa sin escribir nada.
func (uc *SettlementUseCase) quote(ctx context.Context, actorID, invoiceID string, in dto.CreateInvoiceRequest) (*quote, error) {
	customer, err := uc.customerRepo.GetByID(ctx, in.CustomerID)
	if err != nil {
		return nil, err
	}
	if customer == nil {
		return nil, fmt.Errorf("%w: cliente %s", domain.ErrNotFound, in.CustomerID)
	}

	// 1) Subtotal; líneas de producto con precio 0 toman el precio del catálogo.
	items := make([]entity.InvoiceItem, 0, len(in.Items))
	subtotal := decimal.Zero
	for _, it := range in.Items {
		item := entity.InvoiceItem{
			RefID:         it.RefID,
			Type:          it.Type,
			Quantity:      it.Quantity,
			PricePerUnit:  it.PricePerUnit,
			AppointmentID: it.AppointmentID,
		}
		if it.Type == entity.InvoiceItemProduct {
			product, err := uc.productRepo.GetByID(ctx, it.RefID)
			if err != nil {
				return nil, err
			}
			if product == nil {
				return nil, fmt.Errorf("%w: producto %s", domain.ErrNotFound, it.RefID)
			}
			if !product.Active {
				return nil, fmt.Errorf("%w: producto %s inactivo", domain.ErrValidation, it.RefID)
			}
			if item.PricePerUnit.IsZero() {
				item.PricePerUnit = product.Price
			}
		}
		for _, c := range it.Consumables {
			item.Consumables = append(item.Consumables, entity.Consumable{ProductID: c.ProductID, Quantity: c.Quantity})
		}
		subtotal = subtotal.Add(item.LineTotal())
		items = append(items, item)
	}

	// 2) Descuentos apilados: puntos primero, luego tarjeta prepago sobre lo que queda.
	if in.PointsUsed > customer.LoyaltyPoints {
		return nil, fmt.Errorf("%w: puntos solicitados %d, disponibles %d", domain.ErrInvalidDiscount, in.PointsUsed, customer.LoyaltyPoints)
	}
	pointsValue := uc.cfg.PointValue.Mul(decimal.NewFromInt(in.PointsUsed))
	if pointsValue.GreaterThan(subtotal) {
		return nil, fmt.Errorf("%w: el valor de los puntos (%s) supera el subtotal (%s)", domain.ErrInvalidDiscount, pointsValue, subtotal)
	}
	var card *entity.PrepaidCard
	prepaidValue := decimal.Zero
	if in.PrepaidAmount.IsPositive() {
		card, err = uc.cardRepo.GetByCode(ctx, in.PrepaidCardCode)
		if err != nil {
			return nil, err
		}
		if card == nil {
			return nil, fmt.Errorf("%w: tarjeta %s no existe", domain.ErrInvalidDiscount, in.PrepaidCardCode)
		}
		if !card.Usable(time.Now()) {
			return nil, fmt.Errorf("%w: tarjeta %s bloqueada o vencida", domain.ErrInvalidDiscount, card.Code)
		}
		if card.CustomerID != "" && card.CustomerID != customer.ID {
			return nil, fmt.Errorf("%w: tarjeta %s pertenece a otro cliente", domain.ErrInvalidDiscount, card.Code)
		}
		prepaidValue = decimal.Min(in.PrepaidAmount, card.Balance, subtotal.Sub(pointsValue))
		if prepaidValue.IsNegative() {
			prepaidValue = decimal.Zero
		}
	}
	discount := decimal.Min(pointsValue.Add(prepaidValue), subtotal)

	// 3) Total.
	total := subtotal.Sub(discount).Add(in.TaxAmount)

	// 4) Pagos y faltante.
	paid := decimal.Zero
	var debtRecord *dto.PaymentRequest
	records := make([]entity.PaymentRecord, 0, len(in.Payments))
	for i, p := range in.Payments {
		if p.Method == entity.PaymentDebt {
			debtRecord = &in.Payments[i]
		} else {
			paid = paid.Add(p.Amount)
		}
		records = append(records, entity.PaymentRecord{Method: p.Method, Amount: p.Amount})
	}
	shortfall := total.Sub(paid)
	switch {
	case shortfall.IsNegative():
		return nil, fmt.Errorf("%w: pago (%s) mayor que el total (%s)", domain.ErrValidation, paid, total)
	case shortfall.IsPositive():
		if debtRecord == nil {
			return nil, fmt.Errorf("%w: faltan %s y no hay registro de deuda", domain.ErrValidation, shortfall)
		}
		if !debtRecord.Amount.Equal(shortfall) {
			return nil, fmt.Errorf("%w: la deuda (%s) debe ser igual al faltante (%s)", domain.ErrValidation, debtRecord.Amount, shortfall)
		}
		if err := uc.credit.Check(customer, shortfall); err != nil {
			return nil, err
		}
	default:
		if debtRecord != nil {
			return nil, fmt.Errorf("%w: registro de deuda sin faltante", domain.ErrValidation)
		}
	}

	// 5) Asientos de stock: venta por producto, consumo por insumo de servicio.
	factory := uc.ledger.Factory()
	var reqs []domaininv.AdjustmentRequest
	for _, item := range items {
		if item.Type == entity.InvoiceItemProduct {
			req, err := factory.Sale(item.RefID, item.Quantity, domaininv.Meta{Notes: "Venta", ActorID: actorID, ReferenceID: invoiceID})
			if err != nil {
				return nil, err
			}
			reqs = append(reqs, req)
			continue
		}
		ref := item.AppointmentID
		if ref == "" {
			ref = invoiceID
		}
		for _, c := range item.Consumables {
			req, err := factory.ServiceConsumption(c.ProductID, c.Quantity, domaininv.Meta{Notes: "Consumo servicio " + item.RefID, ActorID: actorID, ReferenceID: ref})
			if err != nil {
				return nil, err
			}
			reqs = append(reqs, req)
		}
	}
	plan := &inventory.BatchPlan{}
	if len(reqs) > 0 {
		if plan, err = uc.ledger.Prepare(ctx, reqs); err != nil {
			return nil, err
		}
	}

	status := entity.InvoiceStatusPaid
	if shortfall.IsPositive() {
		status = entity.InvoiceStatusPartial
	}
	cardCode := ""
	if card != nil && prepaidValue.IsPositive() {
		cardCode = card.Code
	}
	now := time.Now().UTC()
	return &quote{
		invoice: &entity.Invoice{
			ID:              invoiceID,
			Code:            newInvoiceCode(uc.cfg.InvoicePrefix, now),
			CustomerID:      customer.ID,
			Items:           items,
			Subtotal:        subtotal,
			PointsUsed:      in.PointsUsed,
			PointsValue:     pointsValue,
			PrepaidCardCode: cardCode,
			PrepaidValue:    prepaidValue,
			DiscountAmount:  discount,
			TaxAmount:       in.TaxAmount,
			TotalAmount:     total,
			PaidAmount:      paid,
			DebtAmount:      shortfall,
			PaymentRecords:  records,
			Status:          status,
			CreatedBy:       actorID,
			CreatedAt:       now,
		},
		customer: customer,
		card:     card,
		plan:     plan,
	}, nil
}

func validateInvoiceRequest(in dto.CreateInvoiceRequest) error {
	if in.CustomerID == "" {
		return fmt.Errorf("%w: customer_id requerido", domain.ErrValidation)
	}
	if len(in.Items) == 0 {
		return fmt.Errorf("%w: la factura requiere al menos una línea", domain.ErrValidation)
	}
	for i, it := range in.Items {
		if it.RefID == "" {
			return fmt.Errorf("%w: línea %d sin ref_id", domain.ErrValidation, i+1)
		}
		if it.Type != entity.InvoiceItemProduct && it.Type != entity.InvoiceItemService {
			return fmt.Errorf("%w: línea %d con tipo %q", domain.ErrValidation, i+1, it.Type)
		}
		if it.Quantity <= 0 {
			return fmt.Errorf("%w: línea %d con cantidad %d", domain.ErrValidation, i+1, it.Quantity)
		}
		if it.PricePerUnit.IsNegative() {
			return fmt.Errorf("%w: línea %d con precio negativo", domain.ErrValidation, i+1)
		}
		if it.Type == entity.InvoiceItemProduct && len(it.Consumables) > 0 {
			return fmt.Errorf("%w: línea %d: solo los servicios llevan insumos", domain.ErrValidation, i+1)
		}
		for _, c := range it.Consumables {
			if c.ProductID == "" || c.Quantity <= 0 {
				return fmt.Errorf("%w: línea %d con insumo inválido", domain.ErrValidation, i+1)
			}
		}
	}
	if in.PointsUsed < 0 {
		return fmt.Errorf("%w: points_used negativo", domain.ErrValidation)
	}
	if in.PrepaidAmount.IsNegative() {
		return fmt.Errorf("%w: prepaid_amount negativo", domain.ErrValidation)
	}
	if in.PrepaidAmount.IsPositive() && in.PrepaidCardCode == "" {
		return fmt.Errorf("%w: prepaid_card_code requerido", domain.ErrValidation)
	}
	if in.TaxAmount.IsNegative() {
		return fmt.Errorf("%w: tax_amount negativo", domain.ErrValidation)
	}
	debts := 0
	for i, p := range in.Payments {
		switch p.Method {
		case entity.PaymentCash, entity.PaymentCard, entity.PaymentTransfer, entity.PaymentEWallet:
		case entity.PaymentDebt:
			debts++
		default:
			return fmt.Errorf("%w: pago %d con método %q", domain.ErrValidation, i+1, p.Method)
		}
		if !p.Amount.IsPositive() {
			return fmt.Errorf("%w: pago %d con monto %s", domain.ErrValidation, i+1, p.Amount)
		}
	}
	if debts > 1 {
		return fmt.Errorf("%w: solo se admite un registro de deuda", domain.ErrValidation)
	}
	return nil
}

func newInvoiceCode(prefix string, now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:6])
	return fmt.Sprintf("%s-%s-%s", prefix, now.Format("20060102"), suffix)
}

func toInvoiceResponse(inv *entity.Invoice) *dto.InvoiceResponse {
	items := make([]dto.InvoiceItemResponse, 0, len(inv.Items))
	for _, it := range inv.Items {
		r := dto.InvoiceItemResponse{
			RefID:         it.RefID,
			Type:          it.Type,
			Quantity:      it.Quantity,
			PricePerUnit:  it.PricePerUnit,
			LineTotal:     it.LineTotal(),
			AppointmentID: it.AppointmentID,
		}
		for _, c := range it.Consumables {
			r.Consumables = append(r.Consumables, dto.ConsumableRequest{ProductID: c.ProductID, Quantity: c.Quantity})
		}
		items = append(items, r)
	}
	payments := make([]dto.PaymentResponse, 0, len(inv.PaymentRecords))
	for _, p := range inv.PaymentRecords {
		payments = append(payments, dto.PaymentResponse{Method: p.Method, Amount: p.Amount})
	}
	return &dto.InvoiceResponse{
		ID:              inv.ID,
		Code:            inv.Code,
		CustomerID:      inv.CustomerID,
		Items:           items,
		Subtotal:        inv.Subtotal,
		PointsUsed:      inv.PointsUsed,
		PointsValue:     inv.PointsValue,
		PrepaidCardCode: inv.PrepaidCardCode,
		PrepaidValue:    inv.PrepaidValue,
		DiscountAmount:  inv.DiscountAmount,
		TaxAmount:       inv.TaxAmount,
		TotalAmount:     inv.TotalAmount,
		PaidAmount:      inv.PaidAmount,
		DebtAmount:      inv.DebtAmount,
		Payments:        payments,
		Status:          inv.Status,
		CreatedBy:       inv.CreatedBy,
		CreatedAt:       inv.CreatedAt.Format(time.RFC3339),
	}
}
