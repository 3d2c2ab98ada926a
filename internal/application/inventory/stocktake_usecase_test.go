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
)

type fakeSheet struct {
	session  *entity.StockTakeSession
	products map[string]*entity.Product
}

func (f *fakeSheet) StockTakeSheet(s *entity.StockTakeSession, p map[string]*entity.Product) ([]byte, error) {
	f.session, f.products = s, p
	return []byte("xlsx"), nil
}

func newStockTakeUseCase(f *fixture, exporter inventory.SheetExporter) *inventory.StockTakeUseCase {
	return inventory.NewStockTakeUseCase(f.ledger, f.store.TxRunner(), f.repos.StockTakes, f.repos.Products, exporter, zerolog.Nop())
}

func count(id string, qty int) dto.CountItemRequest {
	return dto.CountItemRequest{ProductID: id, ActualQuantity: qty}
}

func TestStockTake_EscenarioA_UnAjustePorDiferencia(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.product(t, "p1", 100)
	f.product(t, "p2", 7)
	uc := newStockTakeUseCase(f, nil)

	session, err := uc.Create(ctx, actor, dto.CreateStockTakeRequest{Notes: "cierre de mes"})
	require.NoError(t, err)
	assert.Equal(t, entity.StockTakeOngoing, session.Status)
	assert.Regexp(t, `^KK-\d{8}-[0-9A-F]{4}$`, session.Code)
	require.Len(t, session.Items, 2)

	_, err = uc.RecordCounts(ctx, session.ID, dto.RecordCountsRequest{Items: []dto.CountItemRequest{count("p1", 95), count("p2", 7)}})
	require.NoError(t, err)
	assert.Equal(t, 100, f.stock(t, "p1"), "contar no toca el stock")

	done, err := uc.Complete(ctx, actor, session.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StockTakeCompleted, done.Session.Status)
	assert.NotEmpty(t, done.Session.CompletedAt)
	require.Len(t, done.Adjustments, 1)
	adj := done.Adjustments[0]
	assert.Equal(t, "p1", adj.ProductID)
	assert.Equal(t, -5, adj.QuantityChange)
	assert.Equal(t, string(entity.AdjustmentInventoryCheck), adj.Type)
	assert.Equal(t, session.ID, adj.ReferenceID)

	assert.Equal(t, 95, f.stock(t, "p1"))
	f.assertConsistent(t, "p1")
	f.assertConsistent(t, "p2")
}

func TestStockTake_CompletarDosVeces(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.product(t, "p1", 100)
	uc := newStockTakeUseCase(f, nil)

	session, err := uc.Create(ctx, actor, dto.CreateStockTakeRequest{})
	require.NoError(t, err)
	_, err = uc.RecordCounts(ctx, session.ID, dto.RecordCountsRequest{Items: []dto.CountItemRequest{count("p1", 90)}})
	require.NoError(t, err)

	_, err = uc.Complete(ctx, actor, session.ID)
	require.NoError(t, err)
	_, err = uc.Complete(ctx, actor, session.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidSessionState)

	assert.Equal(t, 90, f.stock(t, "p1"))
	refs, err := f.repos.Adjustments.ListByReference(ctx, session.ID)
	require.NoError(t, err)
	assert.Len(t, refs, 1, "el segundo cierre no escribe en el libro")

	_, err = uc.RecordCounts(ctx, session.ID, dto.RecordCountsRequest{Items: []dto.CountItemRequest{count("p1", 1)}})
	assert.ErrorIs(t, err, domain.ErrInvalidSessionState)
}

func TestStockTake_CompletarConcurrente_SoloUnoEscribe(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.product(t, "p1", 100)
	uc := newStockTakeUseCase(f, nil)

	session, err := uc.Create(ctx, actor, dto.CreateStockTakeRequest{})
	require.NoError(t, err)
	_, err = uc.RecordCounts(ctx, session.ID, dto.RecordCountsRequest{Items: []dto.CountItemRequest{count("p1", 90)}})
	require.NoError(t, err)

	const workers = 8
	start := make(chan struct{})
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = uc.Complete(ctx, actor, session.ID)
		}(i)
	}
	close(start)
	wg.Wait()

	ok := 0
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, domain.ErrInvalidSessionState), errors.Is(err, domain.ErrConcurrencyConflict):
		default:
			t.Fatalf("error inesperado: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 90, f.stock(t, "p1"))
	refs, err := f.repos.Adjustments.ListByReference(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, entity.AdjustmentInventoryCheck, refs[0].Type)
	f.assertConsistent(t, "p1")
}

func TestStockTake_VentaDuranteElConteo_UsaStockAlCierre(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.product(t, "p1", 100)
	uc := newStockTakeUseCase(f, nil)

	session, err := uc.Create(ctx, actor, dto.CreateStockTakeRequest{})
	require.NoError(t, err)
	_, err = uc.RecordCounts(ctx, session.ID, dto.RecordCountsRequest{Items: []dto.CountItemRequest{count("p1", 95)}})
	require.NoError(t, err)

	sale, _ := f.ledger.Factory().Sale("p1", 3, domaininv.Meta{})
	_, err = f.ledger.ApplyAdjustment(ctx, sale)
	require.NoError(t, err)

	done, err := uc.Complete(ctx, actor, session.ID)
	require.NoError(t, err)
	require.Len(t, done.Adjustments, 1)
	assert.Equal(t, -2, done.Adjustments[0].QuantityChange)
	assert.Equal(t, 95, f.stock(t, "p1"))
	f.assertConsistent(t, "p1")
}

func TestStockTake_RecordCounts_Upsert_y_ProductoFueraDelSnapshot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.product(t, "p1", 10)
	uc := newStockTakeUseCase(f, nil)

	session, err := uc.Create(ctx, actor, dto.CreateStockTakeRequest{})
	require.NoError(t, err)
	require.Len(t, session.Items, 1)

	f.product(t, "p2", 4) // alta posterior al snapshot

	_, err = uc.RecordCounts(ctx, session.ID, dto.RecordCountsRequest{Items: []dto.CountItemRequest{count("p1", 8)}})
	require.NoError(t, err)
	got, err := uc.RecordCounts(ctx, session.ID, dto.RecordCountsRequest{Items: []dto.CountItemRequest{count("p1", 9), count("p2", 4)}})
	require.NoError(t, err)
	require.Len(t, got.Items, 2)

	byID := map[string]dto.StockTakeItemResponse{}
	for _, it := range got.Items {
		byID[it.ProductID] = it
	}
	require.NotNil(t, byID["p1"].ActualQuantity)
	assert.Equal(t, 9, *byID["p1"].ActualQuantity)
	assert.Equal(t, -1, *byID["p1"].Difference)
	assert.Equal(t, 4, byID["p2"].ExpectedQuantity)

	_, err = uc.RecordCounts(ctx, session.ID, dto.RecordCountsRequest{Items: []dto.CountItemRequest{count("p1", -1)}})
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = uc.RecordCounts(ctx, session.ID, dto.RecordCountsRequest{Items: []dto.CountItemRequest{count("ghost", 1)}})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = uc.RecordCounts(ctx, "missing", dto.RecordCountsRequest{Items: []dto.CountItemRequest{count("p1", 1)}})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	done, err := uc.Complete(ctx, actor, session.ID)
	require.NoError(t, err)
	require.Len(t, done.Adjustments, 1)
	assert.Equal(t, 9, f.stock(t, "p1"))
	assert.Equal(t, 4, f.stock(t, "p2"))
}

func TestStockTake_SinConteos_CierraSinAjustes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.product(t, "p1", 10)
	uc := newStockTakeUseCase(f, nil)

	session, err := uc.Create(ctx, actor, dto.CreateStockTakeRequest{})
	require.NoError(t, err)
	done, err := uc.Complete(ctx, actor, session.ID)
	require.NoError(t, err)
	assert.Empty(t, done.Adjustments)
	assert.Equal(t, 10, f.stock(t, "p1"))

	list, err := uc.List(ctx, dto.StockTakeListRequest{Status: "completed"})
	require.NoError(t, err)
	assert.Len(t, list, 1)
	list, err = uc.List(ctx, dto.StockTakeListRequest{Status: "ongoing"})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestStockTake_ExportSheet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.product(t, "p1", 10)
	sheet := &fakeSheet{}
	uc := newStockTakeUseCase(f, sheet)

	session, err := uc.Create(ctx, actor, dto.CreateStockTakeRequest{})
	require.NoError(t, err)
	name, data, err := uc.ExportSheet(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, session.Code+".xlsx", name)
	assert.Equal(t, []byte("xlsx"), data)
	require.NotNil(t, sheet.session)
	assert.Contains(t, sheet.products, "p1")
}
