package inventory_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/spa-ledger-api/internal/application/dto"
	"github.com/jhoicas/spa-ledger-api/internal/application/inventory"
	"github.com/jhoicas/spa-ledger-api/internal/domain"
	"github.com/jhoicas/spa-ledger-api/internal/domain/entity"
	domaininv "github.com/jhoicas/spa-ledger-api/internal/domain/inventory"
	"github.com/jhoicas/spa-ledger-api/internal/domain/repository"
	"github.com/jhoicas/spa-ledger-api/internal/infrastructure/memory"
)

const actor = "user-1"

type fixture struct {
	store  *memory.Store
	repos  repository.Repositories
	ledger *inventory.Ledger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	repos := store.Repositories()
	ledger := inventory.NewLedger(store.TxRunner(), repos.Products, repos.Adjustments, 3, nil, zerolog.Nop())
	return &fixture{store: store, repos: repos, ledger: ledger}
}

// product registra un producto y su stock inicial a través del libro.
func (f *fixture) product(t *testing.T, id string, opening int) {
	t.Helper()
	f.store.SeedProduct(entity.Product{ID: id, SKU: "SKU-" + id, Name: "Producto " + id, Active: true})
	if opening == 0 {
		return
	}
	req, err := f.ledger.Factory().Initial(id, opening, domaininv.Meta{ActorID: actor})
	require.NoError(t, err)
	_, err = f.ledger.ApplyAdjustment(context.Background(), req)
	require.NoError(t, err)
}

func (f *fixture) stock(t *testing.T, id string) int {
	t.Helper()
	p, err := f.repos.Products.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, p)
	return p.Stock
}

func (f *fixture) assertConsistent(t *testing.T, id string) {
	t.Helper()
	audit, err := f.ledger.Audit(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, audit.Consistent, "stock %d, suma del libro %d, último nivel %d", audit.Stock, audit.LedgerSum, audit.LastLevel)
}

func TestLedger_ApplyAdjustment_MantieneInvarianteDelLibro(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.product(t, "p1", 100)

	sale, err := f.ledger.Factory().Sale("p1", 30, domaininv.Meta{ActorID: actor})
	require.NoError(t, err)
	adj, err := f.ledger.ApplyAdjustment(ctx, sale)
	require.NoError(t, err)
	assert.Equal(t, -30, adj.QuantityChange)
	assert.Equal(t, 70, adj.NewStockLevel)
	assert.Equal(t, entity.AdjustmentSale, adj.Type)

	manual, err := f.ledger.Factory().Manual("p1", -5, domaininv.Meta{ActorID: actor, Notes: "rotura"})
	require.NoError(t, err)
	_, err = f.ledger.ApplyAdjustment(ctx, manual)
	require.NoError(t, err)

	assert.Equal(t, 65, f.stock(t, "p1"))
	f.assertConsistent(t, "p1")

	history, err := f.ledger.History(ctx, "p1", dto.PageRequest{})
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, entity.AdjustmentManual, history[0].Type, "el más reciente primero")
	assert.Equal(t, entity.AdjustmentInitial, history[2].Type)
}

func TestLedger_ApplyAdjustment_StockInsuficiente(t *testing.T) {
	f := newFixture(t)
	f.product(t, "p1", 10)

	sale, err := f.ledger.Factory().Sale("p1", 11, domaininv.Meta{})
	require.NoError(t, err)
	_, err = f.ledger.ApplyAdjustment(context.Background(), sale)
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.Equal(t, 10, f.stock(t, "p1"))
	f.assertConsistent(t, "p1")
}

func TestLedger_ApplyAdjustment_ProductoInexistente(t *testing.T) {
	f := newFixture(t)
	req, err := f.ledger.Factory().Return("nope", 1, domaininv.Meta{})
	require.NoError(t, err)
	_, err = f.ledger.ApplyAdjustment(context.Background(), req)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestLedger_StockInicial_SoloUnaVez(t *testing.T) {
	f := newFixture(t)
	f.product(t, "p1", 5)

	req, err := f.ledger.Factory().Initial("p1", 5, domaininv.Meta{})
	require.NoError(t, err)
	_, err = f.ledger.ApplyAdjustment(context.Background(), req)
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, 5, f.stock(t, "p1"))
}

func TestLedger_StockInicial_DosEnElMismoLote(t *testing.T) {
	f := newFixture(t)
	f.product(t, "p1", 0)
	fac := f.ledger.Factory()

	first, err := fac.Initial("p1", 5, domaininv.Meta{})
	require.NoError(t, err)
	second, err := fac.Initial("p1", 7, domaininv.Meta{})
	require.NoError(t, err)
	_, err = f.ledger.ApplyBatch(context.Background(), []domaininv.AdjustmentRequest{first, second})
	assert.ErrorIs(t, err, domain.ErrValidation)

	assert.Equal(t, 0, f.stock(t, "p1"))
	history, err := f.ledger.History(context.Background(), "p1", dto.PageRequest{})
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestLedger_ApplyBatch_TodoONada(t *testing.T) {
	f := newFixture(t)
	f.product(t, "a", 50)
	f.product(t, "b", 3)
	fac := f.ledger.Factory()

	ra, _ := fac.Sale("a", 10, domaininv.Meta{})
	rb, _ := fac.Sale("b", 4, domaininv.Meta{})
	_, err := f.ledger.ApplyBatch(context.Background(), []domaininv.AdjustmentRequest{ra, rb})
	require.ErrorIs(t, err, domain.ErrInsufficientStock)

	assert.Equal(t, 50, f.stock(t, "a"))
	assert.Equal(t, 3, f.stock(t, "b"))
	history, err := f.ledger.History(context.Background(), "a", dto.PageRequest{})
	require.NoError(t, err)
	assert.Len(t, history, 1, "solo el stock inicial")
}

func TestLedger_ApplyBatch_AcumulaMismoProducto(t *testing.T) {
	f := newFixture(t)
	f.product(t, "p1", 5)
	fac := f.ledger.Factory()

	in, _ := fac.Return("p1", 5, domaininv.Meta{})
	out, _ := fac.Sale("p1", 8, domaininv.Meta{})
	adjs, err := f.ledger.ApplyBatch(context.Background(), []domaininv.AdjustmentRequest{in, out})
	require.NoError(t, err)
	require.Len(t, adjs, 2)
	assert.Equal(t, 10, adjs[0].NewStockLevel)
	assert.Equal(t, 2, adjs[1].NewStockLevel)
	assert.Equal(t, 2, f.stock(t, "p1"))
	f.assertConsistent(t, "p1")

	// Orden inverso: el nivel intermedio sería -3.
	out2, _ := fac.Sale("p1", 3, domaininv.Meta{})
	in2, _ := fac.Return("p1", 10, domaininv.Meta{})
	_, err = f.ledger.ApplyBatch(context.Background(), []domaininv.AdjustmentRequest{out2, in2})
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.Equal(t, 2, f.stock(t, "p1"))
}

func TestLedger_VentasConcurrentes_SoloUnaGana(t *testing.T) {
	f := newFixture(t)
	f.product(t, "p1", 100)
	sale, err := f.ledger.Factory().Sale("p1", 60, domaininv.Meta{})
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	start := make(chan struct{})
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = f.ledger.ApplyAdjustment(context.Background(), sale)
		}(i)
	}
	close(start)
	wg.Wait()

	ok, insufficient := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, domain.ErrInsufficientStock):
			insufficient++
		default:
			t.Fatalf("error inesperado: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, insufficient)
	assert.Equal(t, 40, f.stock(t, "p1"))
	f.assertConsistent(t, "p1")
}

func TestLedger_Reverse(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.product(t, "p1", 20)

	sale, _ := f.ledger.Factory().Sale("p1", 7, domaininv.Meta{ReferenceID: "inv-1"})
	adj, err := f.ledger.ApplyAdjustment(ctx, sale)
	require.NoError(t, err)

	rev, err := f.ledger.Reverse(ctx, adj.ID, actor, "")
	require.NoError(t, err)
	assert.Equal(t, 7, rev.QuantityChange)
	assert.Equal(t, adj.ID, rev.ReversalOf)
	assert.Equal(t, "inv-1", rev.ReferenceID)
	assert.Equal(t, entity.AdjustmentManual, rev.Type)
	assert.Equal(t, 20, f.stock(t, "p1"))

	_, err = f.ledger.Reverse(ctx, adj.ID, actor, "")
	assert.ErrorIs(t, err, domain.ErrValidation, "ya revertido")

	_, err = f.ledger.Reverse(ctx, rev.ID, actor, "")
	assert.ErrorIs(t, err, domain.ErrValidation, "no se revierte una reversión")

	_, err = f.ledger.Reverse(ctx, "missing", actor, "")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	f.assertConsistent(t, "p1")
}

// staleTx simula un escritor concurrente que siempre gana la carrera.
type staleTx struct{ calls int }

func (s *staleTx) Run(context.Context, func(repository.Repositories) error) error {
	s.calls++
	return repository.ErrStaleVersion
}

func TestLedger_ReintentosAgotados_ConflictoDeConcurrencia(t *testing.T) {
	store := memory.NewStore()
	repos := store.Repositories()
	store.SeedProduct(entity.Product{ID: "p1", Stock: 10, Version: 1, Active: true})
	tx := &staleTx{}
	ledger := inventory.NewLedger(tx, repos.Products, repos.Adjustments, 3, nil, zerolog.Nop())

	req, _ := ledger.Factory().Sale("p1", 1, domaininv.Meta{})
	_, err := ledger.ApplyAdjustment(context.Background(), req)
	assert.ErrorIs(t, err, domain.ErrConcurrencyConflict)
	assert.Equal(t, 3, tx.calls)
}

func TestLedger_RegisterAdjustmentFromRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.SeedProduct(entity.Product{ID: "p1", Active: true})

	resp, err := f.ledger.RegisterAdjustmentFromRequest(ctx, actor, dto.ManualAdjustmentRequest{
		ProductID: "p1", Reason: dto.ReasonInitial, QuantityChange: 12,
	})
	require.NoError(t, err)
	assert.Equal(t, "initial", resp.Type)
	assert.Equal(t, actor, resp.ActorID)

	resp, err = f.ledger.RegisterAdjustmentFromRequest(ctx, actor, dto.ManualAdjustmentRequest{
		ProductID: "p1", Reason: dto.ReasonReturn, QuantityChange: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, 14, resp.NewStockLevel)

	_, err = f.ledger.RegisterAdjustmentFromRequest(ctx, actor, dto.ManualAdjustmentRequest{
		ProductID: "p1", Reason: dto.ReasonReturn, QuantityChange: -2,
	})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.ledger.RegisterAdjustmentFromRequest(ctx, actor, dto.ManualAdjustmentRequest{
		ProductID: "p1", Reason: dto.ReasonManual, QuantityChange: 0,
	})
	assert.ErrorIs(t, err, domain.ErrValidation)
	f.assertConsistent(t, "p1")
}

func TestReplenishment_GenerateLowStockReport(t *testing.T) {
	f := newFixture(t)
	f.store.SeedProduct(entity.Product{ID: "a", Name: "A", Stock: 0, LowStockThreshold: 10, Active: true})
	f.store.SeedProduct(entity.Product{ID: "b", Name: "B", Stock: 5, LowStockThreshold: 10, Active: true})
	f.store.SeedProduct(entity.Product{ID: "c", Name: "C", Stock: 50, LowStockThreshold: 10, Active: true})
	f.store.SeedProduct(entity.Product{ID: "d", Name: "D", Stock: 1, LowStockThreshold: 0, Active: true})

	uc := inventory.NewReplenishmentUseCase(f.repos.Products)
	report, err := uc.GenerateLowStockReport(context.Background())
	require.NoError(t, err)
	require.Len(t, report, 2)
	assert.Equal(t, "a", report[0].ProductID)
	assert.Equal(t, 1, report[0].Priority)
	assert.Equal(t, 15, report[0].IdealStock)
	assert.Equal(t, 15, report[0].SuggestedOrderQty)
	assert.Equal(t, "b", report[1].ProductID)
	assert.Equal(t, 10, report[1].SuggestedOrderQty)
}
