package inventory_test

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/spa-ledger-api/internal/application/dto"
	"github.com/jhoicas/spa-ledger-api/internal/application/inventory"
	"github.com/jhoicas/spa-ledger-api/internal/domain"
	"github.com/jhoicas/spa-ledger-api/internal/domain/entity"
	domaininv "github.com/jhoicas/spa-ledger-api/internal/domain/inventory"
	"github.com/jhoicas/spa-ledger-api/internal/domain/repository"
)

func newSlipUseCase(f *fixture) *inventory.SlipUseCase {
	return inventory.NewSlipUseCase(f.ledger, f.store.TxRunner(), f.repos.Slips, f.repos.Products, zerolog.Nop())
}

// pausedSlips ejecuta afterGet una sola vez, justo después de la primera lectura del comprobante.
type pausedSlips struct {
	repository.WarehouseSlipRepository
	afterGet func()
}

func (p *pausedSlips) GetByID(ctx context.Context, id string) (*entity.WarehouseSlip, error) {
	slip, err := p.WarehouseSlipRepository.GetByID(ctx, id)
	if fn := p.afterGet; fn != nil {
		p.afterGet = nil
		fn()
	}
	return slip, err
}

// pausedAdjustments igual que pausedSlips, para la lectura de asientos por referencia.
type pausedAdjustments struct {
	repository.StockAdjustmentRepository
	afterList func()
}

func (p *pausedAdjustments) ListByReference(ctx context.Context, referenceID string) ([]*entity.StockAdjustment, error) {
	adjs, err := p.StockAdjustmentRepository.ListByReference(ctx, referenceID)
	if fn := p.afterList; fn != nil {
		p.afterList = nil
		fn()
	}
	return adjs, err
}

// ledgerQuantities suma por producto los asientos que referencian al comprobante IMPORT.
func ledgerQuantities(t *testing.T, f *fixture, slipID string) map[string]int {
	t.Helper()
	adjs, err := f.repos.Adjustments.ListByReference(context.Background(), slipID)
	require.NoError(t, err)
	out := make(map[string]int)
	for _, a := range adjs {
		out[a.ProductID] += a.QuantityChange
	}
	for id, qty := range out {
		if qty == 0 {
			delete(out, id)
		}
	}
	return out
}

func slipQuantities(t *testing.T, uc *inventory.SlipUseCase, slipID string) map[string]int {
	t.Helper()
	slip, err := uc.GetSlip(context.Background(), slipID)
	require.NoError(t, err)
	out := make(map[string]int)
	for _, it := range slip.Items {
		out[it.ProductID] += it.Quantity
	}
	return out
}

func TestSlip_CrearYBorrar_RestauraStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.product(t, "a", 10)
	f.product(t, "b", 4)
	uc := newSlipUseCase(f)

	slip, err := uc.CreateSlip(ctx, actor, dto.CreateSlipRequest{
		Type:       "IMPORT",
		SupplierID: "sup-1",
		Items: []dto.SlipItemRequest{
			{ProductID: "a", Quantity: 5},
			{ProductID: "b", Quantity: 6},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, entity.SlipStatusPosted, slip.Status)
	assert.Regexp(t, `^PN-\d{8}-[0-9A-F]{4}$`, slip.Code)
	assert.Equal(t, 15, f.stock(t, "a"))
	assert.Equal(t, 10, f.stock(t, "b"))

	adjs, err := f.repos.Adjustments.ListByReference(ctx, slip.ID)
	require.NoError(t, err)
	require.Len(t, adjs, 2)
	for _, a := range adjs {
		assert.Equal(t, entity.AdjustmentManual, a.Type)
	}

	require.NoError(t, uc.DeleteSlip(ctx, actor, slip.ID))
	assert.Equal(t, 10, f.stock(t, "a"))
	assert.Equal(t, 4, f.stock(t, "b"))
	f.assertConsistent(t, "a")
	f.assertConsistent(t, "b")

	_, err = uc.GetSlip(ctx, slip.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSlip_ExportSinStock_NoEscribeNada(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.product(t, "a", 10)
	f.product(t, "b", 2)
	uc := newSlipUseCase(f)

	_, err := uc.CreateSlip(ctx, actor, dto.CreateSlipRequest{
		Type: "EXPORT",
		Items: []dto.SlipItemRequest{
			{ProductID: "a", Quantity: 3},
			{ProductID: "b", Quantity: 3},
		},
	})
	require.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.Equal(t, 10, f.stock(t, "a"))
	assert.Equal(t, 2, f.stock(t, "b"))

	list, err := uc.ListSlips(ctx, dto.SlipListRequest{})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestSlip_Validaciones(t *testing.T) {
	f := newFixture(t)
	f.product(t, "a", 10)
	uc := newSlipUseCase(f)
	ctx := context.Background()

	cases := map[string]dto.CreateSlipRequest{
		"tipo desconocido":    {Type: "MOVE", Items: []dto.SlipItemRequest{{ProductID: "a", Quantity: 1}}},
		"sin líneas":          {Type: "IMPORT"},
		"cantidad cero":       {Type: "IMPORT", Items: []dto.SlipItemRequest{{ProductID: "a", Quantity: 0}}},
		"proveedor en EXPORT": {Type: "EXPORT", SupplierID: "sup", Items: []dto.SlipItemRequest{{ProductID: "a", Quantity: 1}}},
		"línea sin producto":  {Type: "IMPORT", Items: []dto.SlipItemRequest{{Quantity: 1}}},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := uc.CreateSlip(ctx, actor, in)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
	assert.Equal(t, 10, f.stock(t, "a"))
}

func TestSlip_Update_AplicaSoloLaDiferencia(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.product(t, "a", 20)
	f.product(t, "b", 20)
	f.product(t, "c", 20)
	uc := newSlipUseCase(f)

	slip, err := uc.CreateSlip(ctx, actor, dto.CreateSlipRequest{
		Type: "EXPORT",
		Items: []dto.SlipItemRequest{
			{ProductID: "a", Quantity: 5},
			{ProductID: "b", Quantity: 5},
		},
	})
	require.NoError(t, err)
	assert.Regexp(t, `^PX-`, slip.Code)

	updated, err := uc.UpdateSlip(ctx, actor, slip.ID, dto.UpdateSlipRequest{
		Items: []dto.SlipItemRequest{
			{ProductID: "a", Quantity: 8},
			{ProductID: "c", Quantity: 2},
		},
	})
	require.NoError(t, err)
	require.Len(t, updated.Items, 2)

	assert.Equal(t, 12, f.stock(t, "a"))
	assert.Equal(t, 20, f.stock(t, "b"))
	assert.Equal(t, 18, f.stock(t, "c"))

	adjs, err := f.repos.Adjustments.ListByReference(ctx, slip.ID)
	require.NoError(t, err)
	assert.Len(t, adjs, 5, "2 líneas originales + 3 correcciones")

	// Borrar después de editar deja todo como al principio.
	require.NoError(t, uc.DeleteSlip(ctx, actor, slip.ID))
	for _, id := range []string{"a", "b", "c"} {
		assert.Equal(t, 20, f.stock(t, id))
		f.assertConsistent(t, id)
	}
}

func TestSlip_Delete_ImportYaConsumido(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.product(t, "a", 0)
	uc := newSlipUseCase(f)

	slip, err := uc.CreateSlip(ctx, actor, dto.CreateSlipRequest{
		Type:  "IMPORT",
		Items: []dto.SlipItemRequest{{ProductID: "a", Quantity: 10}},
	})
	require.NoError(t, err)

	sale, _ := f.ledger.Factory().Sale("a", 8, domaininv.Meta{ActorID: actor})
	_, err = f.ledger.ApplyAdjustment(ctx, sale)
	require.NoError(t, err)

	err = uc.DeleteSlip(ctx, actor, slip.ID)
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	got, err := uc.GetSlip(ctx, slip.ID)
	require.NoError(t, err, "el comprobante sigue existiendo")
	assert.Equal(t, slip.ID, got.ID)
	assert.Equal(t, 2, f.stock(t, "a"))
}

func TestSlip_Import_ActualizaCostoPromedio(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.SeedProduct(entity.Product{ID: "a", Name: "Sérum", Active: true, Cost: decimal.NewFromInt(100)})
	req, _ := f.ledger.Factory().Initial("a", 10, domaininv.Meta{ActorID: actor})
	_, err := f.ledger.ApplyAdjustment(ctx, req)
	require.NoError(t, err)
	uc := newSlipUseCase(f)

	price := decimal.NewFromInt(200)
	_, err = uc.CreateSlip(ctx, actor, dto.CreateSlipRequest{
		Type:  "IMPORT",
		Items: []dto.SlipItemRequest{{ProductID: "a", Quantity: 10, UnitPrice: &price}},
	})
	require.NoError(t, err)

	p, err := f.repos.Products.GetByID(ctx, "a")
	require.NoError(t, err)
	assert.True(t, p.Cost.Equal(decimal.NewFromInt(150)), "costo %s", p.Cost)
	assert.Equal(t, 20, p.Stock)
}

func TestSlip_UpdatesConcurrentes_LineasYLibroCoinciden(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.product(t, "x", 100)
	f.product(t, "y", 100)
	uc := newSlipUseCase(f)

	slip, err := uc.CreateSlip(ctx, actor, dto.CreateSlipRequest{
		Type:  "IMPORT",
		Items: []dto.SlipItemRequest{{ProductID: "x", Quantity: 5}, {ProductID: "y", Quantity: 5}},
	})
	require.NoError(t, err)

	// La otra edición se confirma entre la lectura y la escritura de la primera.
	paused := &pausedSlips{WarehouseSlipRepository: f.repos.Slips}
	paused.afterGet = func() {
		_, err := uc.UpdateSlip(ctx, actor, slip.ID, dto.UpdateSlipRequest{
			Items: []dto.SlipItemRequest{{ProductID: "x", Quantity: 5}, {ProductID: "y", Quantity: 9}},
		})
		require.NoError(t, err)
	}
	slow := inventory.NewSlipUseCase(f.ledger, f.store.TxRunner(), paused, f.repos.Products, zerolog.Nop())
	_, err = slow.UpdateSlip(ctx, actor, slip.ID, dto.UpdateSlipRequest{
		Items: []dto.SlipItemRequest{{ProductID: "x", Quantity: 8}, {ProductID: "y", Quantity: 5}},
	})
	require.NoError(t, err)

	assert.Equal(t, map[string]int{"x": 8, "y": 5}, slipQuantities(t, uc, slip.ID))
	assert.Equal(t, slipQuantities(t, uc, slip.ID), ledgerQuantities(t, f, slip.ID))
	assert.Equal(t, 108, f.stock(t, "x"))
	assert.Equal(t, 105, f.stock(t, "y"))
	f.assertConsistent(t, "x")
	f.assertConsistent(t, "y")

	require.NoError(t, uc.DeleteSlip(ctx, actor, slip.ID))
	assert.Equal(t, 100, f.stock(t, "x"))
	assert.Equal(t, 100, f.stock(t, "y"))
}

func TestSlip_DeleteConcurrenteConUpdate_NoDejaStockHuerfano(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.product(t, "x", 100)
	f.product(t, "z", 100)
	uc := newSlipUseCase(f)

	slip, err := uc.CreateSlip(ctx, actor, dto.CreateSlipRequest{
		Type:  "IMPORT",
		Items: []dto.SlipItemRequest{{ProductID: "x", Quantity: 5}},
	})
	require.NoError(t, err)

	// La edición agrega z después de que la anulación leyó los asientos del comprobante.
	paused := &pausedAdjustments{StockAdjustmentRepository: f.repos.Adjustments}
	paused.afterList = func() {
		_, err := uc.UpdateSlip(ctx, actor, slip.ID, dto.UpdateSlipRequest{
			Items: []dto.SlipItemRequest{{ProductID: "x", Quantity: 5}, {ProductID: "z", Quantity: 7}},
		})
		require.NoError(t, err)
	}
	ledger := inventory.NewLedger(f.store.TxRunner(), f.repos.Products, paused, 3, nil, zerolog.Nop())
	deleter := inventory.NewSlipUseCase(ledger, f.store.TxRunner(), f.repos.Slips, f.repos.Products, zerolog.Nop())

	require.NoError(t, deleter.DeleteSlip(ctx, actor, slip.ID))
	assert.Equal(t, 100, f.stock(t, "z"), "la corrección de z también se anuló")
	assert.Equal(t, 100, f.stock(t, "x"))
	assert.Empty(t, ledgerQuantities(t, f, slip.ID))
	f.assertConsistent(t, "x")
	f.assertConsistent(t, "z")

	_, err = uc.GetSlip(ctx, slip.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSlip_CrearYBorrar_ConMovimientosIntercalados(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.product(t, "a", 10)
	f.product(t, "b", 4)
	f.product(t, "c", 30)
	f.product(t, "d", 12)
	uc := newSlipUseCase(f)
	fac := f.ledger.Factory()

	slip, err := uc.CreateSlip(ctx, actor, dto.CreateSlipRequest{
		Type:  "IMPORT",
		Items: []dto.SlipItemRequest{{ProductID: "a", Quantity: 5}, {ProductID: "b", Quantity: 6}},
	})
	require.NoError(t, err)

	sale, _ := fac.Sale("c", 7, domaininv.Meta{ActorID: actor})
	manual, _ := fac.Manual("d", -2, domaininv.Meta{ActorID: actor, Notes: "rotura"})
	ret, _ := fac.Return("c", 1, domaininv.Meta{ActorID: actor})
	for _, req := range []domaininv.AdjustmentRequest{sale, manual, ret} {
		_, err := f.ledger.ApplyAdjustment(ctx, req)
		require.NoError(t, err)
	}
	other, err := uc.CreateSlip(ctx, actor, dto.CreateSlipRequest{
		Type:  "EXPORT",
		Items: []dto.SlipItemRequest{{ProductID: "d", Quantity: 3}},
	})
	require.NoError(t, err)

	require.NoError(t, uc.DeleteSlip(ctx, actor, slip.ID))
	assert.Equal(t, 10, f.stock(t, "a"))
	assert.Equal(t, 4, f.stock(t, "b"))
	assert.Equal(t, 24, f.stock(t, "c"))
	assert.Equal(t, 7, f.stock(t, "d"))
	for _, id := range []string{"a", "b", "c", "d"} {
		f.assertConsistent(t, id)
	}

	_, err = uc.GetSlip(ctx, other.ID)
	require.NoError(t, err, "el otro comprobante no se toca")
}
