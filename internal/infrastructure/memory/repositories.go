package memory

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/spa-ledger-api/internal/domain"
	"github.com/jhoicas/spa-ledger-api/internal/domain/entity"
	"github.com/jhoicas/spa-ledger-api/internal/domain/repository"
)

// ProductRepository implementa repository.ProductRepository.
type ProductRepository struct{ *view }

func (r *ProductRepository) GetByID(_ context.Context, id string) (*entity.Product, error) {
	var out *entity.Product
	r.read(func(st *state) {
		if p, ok := st.products[id]; ok {
			out = &p
		}
	})
	return out, nil
}

func (r *ProductRepository) GetStocks(_ context.Context, ids []string) (map[string]entity.ProductStock, error) {
	out := make(map[string]entity.ProductStock, len(ids))
	r.read(func(st *state) {
		for _, id := range ids {
			if p, ok := st.products[id]; ok {
				out[id] = entity.ProductStock{ProductID: id, Stock: p.Stock, Version: p.Version}
			}
		}
	})
	return out, nil
}

func (r *ProductRepository) ListActive(_ context.Context) ([]*entity.Product, error) {
	return r.list(func(p entity.Product) bool { return p.Active }), nil
}

func (r *ProductRepository) ListLowStock(_ context.Context) ([]*entity.Product, error) {
	return r.list(func(p entity.Product) bool { return p.Active && p.IsLowStock() }), nil
}

func (r *ProductRepository) list(keep func(entity.Product) bool) []*entity.Product {
	var out []*entity.Product
	r.read(func(st *state) {
		for _, p := range st.products {
			if keep(p) {
				out = append(out, &p)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (r *ProductRepository) CompareAndSwapStock(_ context.Context, id string, expectedVersion int64, newStock int) error {
	return r.write(func(st *state) error {
		p, ok := st.products[id]
		if !ok {
			return domain.ErrNotFound
		}
		if p.Version != expectedVersion {
			return repository.ErrStaleVersion
		}
		p.Stock = newStock
		p.Version++
		p.UpdatedAt = time.Now().UTC()
		st.products[id] = p
		return nil
	})
}

func (r *ProductRepository) UpdateCost(_ context.Context, id string, cost decimal.Decimal) error {
	return r.write(func(st *state) error {
		p, ok := st.products[id]
		if !ok {
			return domain.ErrNotFound
		}
		p.Cost = cost
		st.products[id] = p
		return nil
	})
}

// StockAdjustmentRepository implementa repository.StockAdjustmentRepository (append-only).
type StockAdjustmentRepository struct{ *view }

func (r *StockAdjustmentRepository) Append(_ context.Context, adj *entity.StockAdjustment) error {
	return r.write(func(st *state) error {
		st.adjustments = append(st.adjustments, *adj)
		return nil
	})
}

func (r *StockAdjustmentRepository) GetByID(_ context.Context, id string) (*entity.StockAdjustment, error) {
	var out *entity.StockAdjustment
	r.read(func(st *state) {
		for i := range st.adjustments {
			if st.adjustments[i].ID == id {
				a := st.adjustments[i]
				out = &a
				return
			}
		}
	})
	return out, nil
}

// ListByProduct más recientes primero.
func (r *StockAdjustmentRepository) ListByProduct(_ context.Context, productID string, limit, offset int) ([]*entity.StockAdjustment, error) {
	var all []*entity.StockAdjustment
	r.read(func(st *state) {
		for i := len(st.adjustments) - 1; i >= 0; i-- {
			if st.adjustments[i].ProductID == productID {
				a := st.adjustments[i]
				all = append(all, &a)
			}
		}
	})
	return page(all, limit, offset), nil
}

func (r *StockAdjustmentRepository) ListByReference(_ context.Context, referenceID string) ([]*entity.StockAdjustment, error) {
	var out []*entity.StockAdjustment
	r.read(func(st *state) {
		for i := range st.adjustments {
			if st.adjustments[i].ReferenceID == referenceID {
				a := st.adjustments[i]
				out = append(out, &a)
			}
		}
	})
	return out, nil
}

func (r *StockAdjustmentRepository) IsReversed(_ context.Context, id string) (bool, error) {
	found := false
	r.read(func(st *state) {
		for i := range st.adjustments {
			if st.adjustments[i].ReversalOf == id {
				found = true
				return
			}
		}
	})
	return found, nil
}

func (r *StockAdjustmentRepository) Summary(_ context.Context, productID string) (repository.LedgerSummary, error) {
	var sum repository.LedgerSummary
	r.read(func(st *state) {
		for i := range st.adjustments {
			a := st.adjustments[i]
			if a.ProductID != productID {
				continue
			}
			sum.Sum += a.QuantityChange
			sum.LastLevel = a.NewStockLevel
			sum.Entries++
		}
	})
	return sum, nil
}

// WarehouseSlipRepository implementa repository.WarehouseSlipRepository.
type WarehouseSlipRepository struct{ *view }

func (r *WarehouseSlipRepository) Create(_ context.Context, slip *entity.WarehouseSlip) error {
	return r.write(func(st *state) error {
		if _, ok := st.slips[slip.ID]; ok {
			return domain.ErrValidation
		}
		st.slips[slip.ID] = cloneSlip(*slip)
		return nil
	})
}

func (r *WarehouseSlipRepository) GetByID(_ context.Context, id string) (*entity.WarehouseSlip, error) {
	var out *entity.WarehouseSlip
	r.read(func(st *state) {
		if s, ok := st.slips[id]; ok {
			s = cloneSlip(s)
			out = &s
		}
	})
	return out, nil
}

func (r *WarehouseSlipRepository) ReplaceItems(_ context.Context, slip *entity.WarehouseSlip, expectedVersion int64) error {
	return r.write(func(st *state) error {
		cur, ok := st.slips[slip.ID]
		if !ok {
			return domain.ErrNotFound
		}
		if cur.Version != expectedVersion {
			return repository.ErrStaleVersion
		}
		cur.Items = append([]entity.WarehouseSlipItem(nil), slip.Items...)
		cur.UpdatedAt = slip.UpdatedAt
		cur.Version++
		st.slips[slip.ID] = cur
		return nil
	})
}

func (r *WarehouseSlipRepository) Delete(_ context.Context, id string, expectedVersion int64) error {
	return r.write(func(st *state) error {
		cur, ok := st.slips[id]
		if !ok {
			return domain.ErrNotFound
		}
		if cur.Version != expectedVersion {
			return repository.ErrStaleVersion
		}
		delete(st.slips, id)
		return nil
	})
}

func (r *WarehouseSlipRepository) List(_ context.Context, slipType entity.SlipType, limit, offset int) ([]*entity.WarehouseSlip, error) {
	var all []*entity.WarehouseSlip
	r.read(func(st *state) {
		for _, s := range st.slips {
			if slipType != "" && s.Type != slipType {
				continue
			}
			s = cloneSlip(s)
			all = append(all, &s)
		}
	})
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return page(all, limit, offset), nil
}

// StockTakeRepository implementa repository.StockTakeRepository.
type StockTakeRepository struct{ *view }

func (r *StockTakeRepository) Create(_ context.Context, session *entity.StockTakeSession) error {
	return r.write(func(st *state) error {
		if _, ok := st.stockTakes[session.ID]; ok {
			return domain.ErrValidation
		}
		st.stockTakes[session.ID] = cloneSession(*session)
		return nil
	})
}

func (r *StockTakeRepository) GetByID(_ context.Context, id string) (*entity.StockTakeSession, error) {
	var out *entity.StockTakeSession
	r.read(func(st *state) {
		if s, ok := st.stockTakes[id]; ok {
			s = cloneSession(s)
			out = &s
		}
	})
	return out, nil
}

func (r *StockTakeRepository) List(_ context.Context, status string, limit, offset int) ([]*entity.StockTakeSession, error) {
	var all []*entity.StockTakeSession
	r.read(func(st *state) {
		for _, s := range st.stockTakes {
			if status != "" && s.Status != status {
				continue
			}
			s = cloneSession(s)
			all = append(all, &s)
		}
	})
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return page(all, limit, offset), nil
}

func (r *StockTakeRepository) SaveCounts(_ context.Context, session *entity.StockTakeSession, expectedVersion int64) error {
	return r.casSession(session.ID, expectedVersion, func(cur *entity.StockTakeSession) {
		cur.Items = cloneSession(*session).Items
	})
}

func (r *StockTakeRepository) MarkCompleted(_ context.Context, session *entity.StockTakeSession, expectedVersion int64) error {
	return r.casSession(session.ID, expectedVersion, func(cur *entity.StockTakeSession) {
		cur.Status = entity.StockTakeCompleted
		completed := session.CompletedAt
		if completed == nil {
			now := time.Now().UTC()
			completed = &now
		}
		t := *completed
		cur.CompletedAt = &t
		cur.CompletedBy = session.CompletedBy
	})
}

func (r *StockTakeRepository) casSession(id string, expectedVersion int64, apply func(cur *entity.StockTakeSession)) error {
	return r.write(func(st *state) error {
		cur, ok := st.stockTakes[id]
		if !ok {
			return domain.ErrNotFound
		}
		if cur.Status != entity.StockTakeOngoing {
			return domain.ErrInvalidSessionState
		}
		if cur.Version != expectedVersion {
			return repository.ErrStaleVersion
		}
		apply(&cur)
		cur.Version++
		st.stockTakes[id] = cur
		return nil
	})
}

// CustomerRepository implementa repository.CustomerRepository.
type CustomerRepository struct{ *view }

func (r *CustomerRepository) GetByID(_ context.Context, id string) (*entity.Customer, error) {
	var out *entity.Customer
	r.read(func(st *state) {
		if c, ok := st.customers[id]; ok {
			out = &c
		}
	})
	return out, nil
}

func (r *CustomerRepository) ApplyBalanceChange(_ context.Context, id string, expectedVersion int64, pointsDelta int64, debtDelta decimal.Decimal) error {
	return r.write(func(st *state) error {
		c, ok := st.customers[id]
		if !ok {
			return domain.ErrNotFound
		}
		if c.Version != expectedVersion {
			return repository.ErrStaleVersion
		}
		c.LoyaltyPoints += pointsDelta
		c.DebtAmount = c.DebtAmount.Add(debtDelta)
		c.Version++
		c.UpdatedAt = time.Now().UTC()
		st.customers[id] = c
		return nil
	})
}

// PrepaidCardRepository implementa repository.PrepaidCardRepository.
type PrepaidCardRepository struct{ *view }

func (r *PrepaidCardRepository) GetByCode(_ context.Context, code string) (*entity.PrepaidCard, error) {
	var out *entity.PrepaidCard
	r.read(func(st *state) {
		if c, ok := st.cards[code]; ok {
			out = &c
		}
	})
	return out, nil
}

func (r *PrepaidCardRepository) AdjustBalance(_ context.Context, code string, expectedVersion int64, delta decimal.Decimal) error {
	return r.write(func(st *state) error {
		c, ok := st.cards[code]
		if !ok {
			return domain.ErrNotFound
		}
		if c.Version != expectedVersion {
			return repository.ErrStaleVersion
		}
		c.Balance = c.Balance.Add(delta)
		c.Version++
		c.UpdatedAt = time.Now().UTC()
		st.cards[code] = c
		return nil
	})
}

// InvoiceRepository implementa repository.InvoiceRepository.
type InvoiceRepository struct{ *view }

func (r *InvoiceRepository) Create(_ context.Context, invoice *entity.Invoice) error {
	return r.write(func(st *state) error {
		if _, ok := st.invoices[invoice.ID]; ok {
			return domain.ErrValidation
		}
		if invoice.IdempotencyKey != "" {
			for _, inv := range st.invoices {
				if inv.IdempotencyKey == invoice.IdempotencyKey {
					return domain.ErrValidation
				}
			}
		}
		st.invoices[invoice.ID] = cloneInvoice(*invoice)
		return nil
	})
}

func (r *InvoiceRepository) GetByID(_ context.Context, id string) (*entity.Invoice, error) {
	var out *entity.Invoice
	r.read(func(st *state) {
		if inv, ok := st.invoices[id]; ok {
			inv = cloneInvoice(inv)
			out = &inv
		}
	})
	return out, nil
}

func (r *InvoiceRepository) GetByIdempotencyKey(_ context.Context, key string) (*entity.Invoice, error) {
	var out *entity.Invoice
	r.read(func(st *state) {
		for _, inv := range st.invoices {
			if key != "" && inv.IdempotencyKey == key {
				inv = cloneInvoice(inv)
				out = &inv
				return
			}
		}
	})
	return out, nil
}

func page[T any](all []T, limit, offset int) []T {
	if offset >= len(all) {
		return []T{}
	}
	all = all[offset:]
	if limit > 0 && limit < len(all) {
		all = all[:limit]
	}
	return all
}
