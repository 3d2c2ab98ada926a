// Package memory implementa todos los repositorios en memoria. Se usa en pruebas y en modo
// demo (sin DATABASE_URL). Las transacciones trabajan sobre una copia del estado que se publica
// al confirmar, así una lectura fuera de la tx nunca ve escrituras sin confirmar.
package memory

import (
	"context"
	"sync"

	"github.com/jhoicas/spa-ledger-api/internal/domain/entity"
	"github.com/jhoicas/spa-ledger-api/internal/domain/repository"
)

type state struct {
	products    map[string]entity.Product
	adjustments []entity.StockAdjustment
	slips       map[string]entity.WarehouseSlip
	stockTakes  map[string]entity.StockTakeSession
	customers   map[string]entity.Customer
	cards       map[string]entity.PrepaidCard
	invoices    map[string]entity.Invoice
}

func newState() *state {
	return &state{
		products:   make(map[string]entity.Product),
		slips:      make(map[string]entity.WarehouseSlip),
		stockTakes: make(map[string]entity.StockTakeSession),
		customers:  make(map[string]entity.Customer),
		cards:      make(map[string]entity.PrepaidCard),
		invoices:   make(map[string]entity.Invoice),
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.products {
		c.products[k] = v
	}
	c.adjustments = append([]entity.StockAdjustment(nil), s.adjustments...)
	for k, v := range s.slips {
		c.slips[k] = cloneSlip(v)
	}
	for k, v := range s.stockTakes {
		c.stockTakes[k] = cloneSession(v)
	}
	for k, v := range s.customers {
		c.customers[k] = v
	}
	for k, v := range s.cards {
		c.cards[k] = v
	}
	for k, v := range s.invoices {
		c.invoices[k] = cloneInvoice(v)
	}
	return c
}

// Store estado compartido. writeMu serializa escritores (transacciones y escrituras sueltas);
// mu protege el puntero al estado publicado.
type Store struct {
	writeMu sync.Mutex
	mu      sync.RWMutex
	st      *state
}

// NewStore crea un store vacío.
func NewStore() *Store {
	return &Store{st: newState()}
}

// Repositories devuelve repositorios fuera de transacción: cada escritura se confirma sola.
func (s *Store) Repositories() repository.Repositories {
	return s.reposFor(nil)
}

// TxRunner devuelve el ejecutor de transacciones del store.
func (s *Store) TxRunner() *TxRunner {
	return &TxRunner{store: s}
}

func (s *Store) reposFor(tx *state) repository.Repositories {
	v := &view{store: s, tx: tx}
	return repository.Repositories{
		Products:     &ProductRepository{v},
		Adjustments:  &StockAdjustmentRepository{v},
		Slips:        &WarehouseSlipRepository{v},
		StockTakes:   &StockTakeRepository{v},
		Customers:    &CustomerRepository{v},
		PrepaidCards: &PrepaidCardRepository{v},
		Invoices:     &InvoiceRepository{v},
	}
}

// TxRunner implementa la interfaz TxRunner de los casos de uso.
type TxRunner struct {
	store *Store
}

// Run ejecuta fn sobre una copia del estado y la publica si fn no devuelve error.
func (r *TxRunner) Run(ctx context.Context, fn func(repos repository.Repositories) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s := r.store
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.RLock()
	work := s.st.clone()
	s.mu.RUnlock()

	if err := fn(s.reposFor(work)); err != nil {
		return err
	}
	s.mu.Lock()
	s.st = work
	s.mu.Unlock()
	return nil
}

// view resuelve sobre qué estado opera un repositorio.
type view struct {
	store *Store
	tx    *state
}

func (v *view) read(fn func(st *state)) {
	if v.tx != nil {
		fn(v.tx)
		return
	}
	v.store.mu.RLock()
	defer v.store.mu.RUnlock()
	fn(v.store.st)
}

func (v *view) write(fn func(st *state) error) error {
	if v.tx != nil {
		return fn(v.tx)
	}
	s := v.store
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.mu.RLock()
	work := s.st.clone()
	s.mu.RUnlock()
	if err := fn(work); err != nil {
		return err
	}
	s.mu.Lock()
	s.st = work
	s.mu.Unlock()
	return nil
}

// SeedProduct carga un producto del catálogo (el catálogo es externo).
func (s *Store) SeedProduct(p entity.Product) {
	_ = (&view{store: s}).write(func(st *state) error {
		st.products[p.ID] = p
		return nil
	})
}

// SeedCustomer carga un cliente.
func (s *Store) SeedCustomer(c entity.Customer) {
	_ = (&view{store: s}).write(func(st *state) error {
		st.customers[c.ID] = c
		return nil
	})
}

// SeedPrepaidCard carga una tarjeta prepago.
func (s *Store) SeedPrepaidCard(c entity.PrepaidCard) {
	_ = (&view{store: s}).write(func(st *state) error {
		st.cards[c.Code] = c
		return nil
	})
}

func cloneSlip(s entity.WarehouseSlip) entity.WarehouseSlip {
	s.Items = append([]entity.WarehouseSlipItem(nil), s.Items...)
	return s
}

func cloneSession(s entity.StockTakeSession) entity.StockTakeSession {
	items := make([]entity.StockTakeItem, len(s.Items))
	for i, it := range s.Items {
		if it.ActualQuantity != nil {
			q := *it.ActualQuantity
			it.ActualQuantity = &q
		}
		items[i] = it
	}
	s.Items = items
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		s.CompletedAt = &t
	}
	return s
}

func cloneInvoice(inv entity.Invoice) entity.Invoice {
	items := make([]entity.InvoiceItem, len(inv.Items))
	for i, it := range inv.Items {
		it.Consumables = append([]entity.Consumable(nil), it.Consumables...)
		items[i] = it
	}
	inv.Items = items
	inv.PaymentRecords = append([]entity.PaymentRecord(nil), inv.PaymentRecords...)
	return inv
}
