package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/spa-ledger-api/internal/domain"
	"github.com/jhoicas/spa-ledger-api/internal/domain/entity"
	"github.com/jhoicas/spa-ledger-api/internal/domain/repository"
)

var _ repository.InvoiceRepository = (*InvoiceRepo)(nil)

// InvoiceRepo implementación de InvoiceRepository (usable con pool o tx).
type InvoiceRepo struct {
	q Querier
}

// NewInvoiceRepository construye el adaptador. Pasar pool o tx (Querier).
func NewInvoiceRepository(q Querier) *InvoiceRepo {
	return &InvoiceRepo{q: q}
}

// Create persiste cabecera, líneas y tramos de pago. Debe llamarse dentro de una tx.
func (r *InvoiceRepo) Create(ctx context.Context, inv *entity.Invoice) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO invoices (id, code, customer_id, subtotal, points_used, points_value, prepaid_card_code,
			prepaid_value, discount_amount, tax_amount, total_amount, paid_amount, debt_amount, status,
			idempotency_key, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		inv.ID, inv.Code, inv.CustomerID, inv.Subtotal, inv.PointsUsed, inv.PointsValue,
		nullIfEmpty(inv.PrepaidCardCode), inv.PrepaidValue, inv.DiscountAmount, inv.TaxAmount,
		inv.TotalAmount, inv.PaidAmount, inv.DebtAmount, inv.Status, nullIfEmpty(inv.IdempotencyKey),
		inv.CreatedBy, inv.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: factura %s ya existe o la clave de idempotencia ya se usó", domain.ErrValidation, inv.Code)
		}
		return fmt.Errorf("insert invoice: %w", err)
	}

	for i, it := range inv.Items {
		consumables := it.Consumables
		if consumables == nil {
			consumables = []entity.Consumable{}
		}
		_, err := r.q.Exec(ctx, `
			INSERT INTO invoice_items (invoice_id, line_no, ref_id, type, quantity, price_per_unit, appointment_id, consumables)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			inv.ID, i+1, it.RefID, it.Type, it.Quantity, it.PricePerUnit, nullIfEmpty(it.AppointmentID), consumables,
		)
		if err != nil {
			return fmt.Errorf("insert invoice item: %w", err)
		}
	}
	for i, p := range inv.PaymentRecords {
		if _, err := r.q.Exec(ctx,
			`INSERT INTO invoice_payments (invoice_id, line_no, method, amount) VALUES ($1, $2, $3, $4)`,
			inv.ID, i+1, p.Method, p.Amount,
		); err != nil {
			return fmt.Errorf("insert invoice payment: %w", err)
		}
	}
	return nil
}

// GetByID obtiene la factura completa; nil si no existe.
func (r *InvoiceRepo) GetByID(ctx context.Context, id string) (*entity.Invoice, error) {
	var inv entity.Invoice
	var cardCode, key *string
	err := r.q.QueryRow(ctx, `
		SELECT id, code, customer_id, subtotal, points_used, points_value, prepaid_card_code, prepaid_value,
			discount_amount, tax_amount, total_amount, paid_amount, debt_amount, status, idempotency_key,
			created_by, created_at
		FROM invoices WHERE id = $1`, id,
	).Scan(&inv.ID, &inv.Code, &inv.CustomerID, &inv.Subtotal, &inv.PointsUsed, &inv.PointsValue, &cardCode,
		&inv.PrepaidValue, &inv.DiscountAmount, &inv.TaxAmount, &inv.TotalAmount, &inv.PaidAmount,
		&inv.DebtAmount, &inv.Status, &key, &inv.CreatedBy, &inv.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get invoice: %w", err)
	}
	inv.PrepaidCardCode = derefString(cardCode)
	inv.IdempotencyKey = derefString(key)

	rows, err := r.q.Query(ctx, `
		SELECT ref_id, type, quantity, price_per_unit, appointment_id, consumables
		FROM invoice_items WHERE invoice_id = $1 ORDER BY line_no`, id)
	if err != nil {
		return nil, fmt.Errorf("list invoice items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var it entity.InvoiceItem
		var appointment *string
		if err := rows.Scan(&it.RefID, &it.Type, &it.Quantity, &it.PricePerUnit, &appointment, &it.Consumables); err != nil {
			return nil, fmt.Errorf("scan invoice item: %w", err)
		}
		it.AppointmentID = derefString(appointment)
		inv.Items = append(inv.Items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	payments, err := r.q.Query(ctx,
		`SELECT method, amount FROM invoice_payments WHERE invoice_id = $1 ORDER BY line_no`, id)
	if err != nil {
		return nil, fmt.Errorf("list invoice payments: %w", err)
	}
	defer payments.Close()
	for payments.Next() {
		var p entity.PaymentRecord
		if err := payments.Scan(&p.Method, &p.Amount); err != nil {
			return nil, fmt.Errorf("scan invoice payment: %w", err)
		}
		inv.PaymentRecords = append(inv.PaymentRecords, p)
	}
	return &inv, payments.Err()
}

// GetByIdempotencyKey busca la factura por la clave única del POS; nil si no existe.
func (r *InvoiceRepo) GetByIdempotencyKey(ctx context.Context, key string) (*entity.Invoice, error) {
	var id string
	err := r.q.QueryRow(ctx, `SELECT id FROM invoices WHERE idempotency_key = $1`, key).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get invoice by idempotency key: %w", err)
	}
	return r.GetByID(ctx, id)
}
