package billing_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/spa-ledger-api/internal/application/billing"
	"github.com/jhoicas/spa-ledger-api/internal/application/dto"
	"github.com/jhoicas/spa-ledger-api/internal/application/inventory"
	"github.com/jhoicas/spa-ledger-api/internal/domain"
	"github.com/jhoicas/spa-ledger-api/internal/domain/entity"
	domaininv "github.com/jhoicas/spa-ledger-api/internal/domain/inventory"
	"github.com/jhoicas/spa-ledger-api/internal/domain/repository"
	"github.com/jhoicas/spa-ledger-api/internal/infrastructure/memory"
)

const cashier = "cashier-1"

var d = decimal.NewFromInt

type fixture struct {
	store  *memory.Store
	repos  repository.Repositories
	ledger *inventory.Ledger
	uc     *billing.SettlementUseCase
}

func newFixture(t *testing.T, guard billing.IdempotencyGuard) *fixture {
	t.Helper()
	store := memory.NewStore()
	repos := store.Repositories()
	ledger := inventory.NewLedger(store.TxRunner(), repos.Products, repos.Adjustments, 3, nil, zerolog.Nop())
	uc := billing.NewSettlementUseCase(ledger, store.TxRunner(), repos.Products, repos.Customers, repos.PrepaidCards,
		repos.Invoices, guard, nil, billing.SettlementConfig{}, zerolog.Nop())
	return &fixture{store: store, repos: repos, ledger: ledger, uc: uc}
}

func (f *fixture) product(t *testing.T, id string, price int64, opening int) {
	t.Helper()
	f.store.SeedProduct(entity.Product{ID: id, Name: "Producto " + id, Price: d(price), Active: true})
	if opening == 0 {
		return
	}
	req, err := f.ledger.Factory().Initial(id, opening, domaininv.Meta{ActorID: cashier})
	require.NoError(t, err)
	_, err = f.ledger.ApplyAdjustment(context.Background(), req)
	require.NoError(t, err)
}

func (f *fixture) customer(t *testing.T, id string) *entity.Customer {
	t.Helper()
	c, err := f.repos.Customers.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, c)
	return c
}

func (f *fixture) stock(t *testing.T, id string) int {
	t.Helper()
	p, err := f.repos.Products.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, p)
	return p.Stock
}

func service(id string, price int64) dto.InvoiceItemRequest {
	return dto.InvoiceItemRequest{RefID: id, Type: entity.InvoiceItemService, Quantity: 1, PricePerUnit: d(price)}
}

func pay(method string, amount int64) dto.PaymentRequest {
	return dto.PaymentRequest{Method: method, Amount: d(amount)}
}

func TestCreateInvoice_EscenarioB_FaltanteADeuda(t *testing.T) {
	f := newFixture(t, nil)
	f.store.SeedCustomer(entity.Customer{ID: "c1", Name: "Lan", CreditLimit: d(300000), LoyaltyPoints: 80})

	inv, err := f.uc.CreateInvoice(context.Background(), cashier, dto.CreateInvoiceRequest{
		CustomerID: "c1",
		Items:      []dto.InvoiceItemRequest{service("massage-90", 500000)},
		PointsUsed: 50,
		Payments:   []dto.PaymentRequest{pay(entity.PaymentCash, 200000), pay(entity.PaymentDebt, 250000)},
	})
	require.NoError(t, err)

	assert.Equal(t, entity.InvoiceStatusPartial, inv.Status)
	assert.True(t, inv.Subtotal.Equal(d(500000)))
	assert.True(t, inv.PointsValue.Equal(d(50000)))
	assert.True(t, inv.DiscountAmount.Equal(d(50000)))
	assert.True(t, inv.TotalAmount.Equal(d(450000)))
	assert.True(t, inv.PaidAmount.Equal(d(200000)))
	assert.True(t, inv.DebtAmount.Equal(d(250000)))
	assert.Regexp(t, `^HD-\d{8}-[0-9A-F]{6}$`, inv.Code)
	assert.Len(t, inv.Payments, 2)

	c := f.customer(t, "c1")
	assert.True(t, c.DebtAmount.Equal(d(250000)), "deuda %s", c.DebtAmount)
	assert.Equal(t, int64(30), c.LoyaltyPoints)

	stored, err := f.uc.GetInvoice(context.Background(), inv.ID)
	require.NoError(t, err)
	assert.Equal(t, inv.Code, stored.Code)
}

func TestCreateInvoice_EscenarioC_CupoExcedido_NoEscribeNada(t *testing.T) {
	f := newFixture(t, nil)
	f.product(t, "p1", 100000, 5)
	f.store.SeedCustomer(entity.Customer{ID: "c1", CreditLimit: d(100000), LoyaltyPoints: 80})

	_, err := f.uc.CreateInvoice(context.Background(), cashier, dto.CreateInvoiceRequest{
		CustomerID: "c1",
		Items: []dto.InvoiceItemRequest{
			service("massage-90", 300000),
			{RefID: "p1", Type: entity.InvoiceItemProduct, Quantity: 2},
		},
		PointsUsed: 50,
		Payments:   []dto.PaymentRequest{pay(entity.PaymentCash, 200000), pay(entity.PaymentDebt, 250000)},
	})
	require.ErrorIs(t, err, domain.ErrCreditLimitExceeded)

	c := f.customer(t, "c1")
	assert.True(t, c.DebtAmount.IsZero())
	assert.Equal(t, int64(80), c.LoyaltyPoints)
	assert.Equal(t, 5, f.stock(t, "p1"))
}

func TestCreateInvoice_PagadaConVentaYConsumoDeServicio(t *testing.T) {
	f := newFixture(t, nil)
	f.product(t, "serum", 250000, 10)
	f.product(t, "oil", 0, 20)
	f.store.SeedCustomer(entity.Customer{ID: "c1"})
	ctx := context.Background()

	inv, err := f.uc.CreateInvoice(ctx, cashier, dto.CreateInvoiceRequest{
		CustomerID: "c1",
		Items: []dto.InvoiceItemRequest{
			{RefID: "serum", Type: entity.InvoiceItemProduct, Quantity: 2},
			{
				RefID: "facial", Type: entity.InvoiceItemService, Quantity: 1, PricePerUnit: d(400000),
				AppointmentID: "apt-7",
				Consumables:   []dto.ConsumableRequest{{ProductID: "oil", Quantity: 3}},
			},
		},
		TaxAmount: d(45000),
		Payments:  []dto.PaymentRequest{pay(entity.PaymentCard, 900000), pay(entity.PaymentCash, 45000)},
	})
	require.NoError(t, err)

	assert.Equal(t, entity.InvoiceStatusPaid, inv.Status)
	assert.True(t, inv.Subtotal.Equal(d(900000)), "precio 0 toma el del catálogo")
	assert.True(t, inv.TotalAmount.Equal(d(945000)))
	assert.True(t, inv.DebtAmount.IsZero())
	assert.Equal(t, 8, f.stock(t, "serum"))
	assert.Equal(t, 17, f.stock(t, "oil"))

	sales, err := f.repos.Adjustments.ListByReference(ctx, inv.ID)
	require.NoError(t, err)
	require.Len(t, sales, 1)
	assert.Equal(t, entity.AdjustmentSale, sales[0].Type)

	consumed, err := f.repos.Adjustments.ListByReference(ctx, "apt-7")
	require.NoError(t, err)
	require.Len(t, consumed, 1)
	assert.Equal(t, entity.AdjustmentServiceConsumption, consumed[0].Type)
	assert.Equal(t, -3, consumed[0].QuantityChange)
}

func TestCreateInvoice_StockInsuficiente_Rollback(t *testing.T) {
	f := newFixture(t, nil)
	f.product(t, "a", 1000, 5)
	f.product(t, "b", 1000, 1)
	f.store.SeedCustomer(entity.Customer{ID: "c1", LoyaltyPoints: 10, CreditLimit: d(100000)})

	_, err := f.uc.CreateInvoice(context.Background(), cashier, dto.CreateInvoiceRequest{
		CustomerID: "c1",
		Items: []dto.InvoiceItemRequest{
			{RefID: "a", Type: entity.InvoiceItemProduct, Quantity: 2},
			{RefID: "b", Type: entity.InvoiceItemProduct, Quantity: 2},
		},
		PointsUsed: 1,
		Payments:   []dto.PaymentRequest{pay(entity.PaymentCash, 3000)},
	})
	require.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.Equal(t, 5, f.stock(t, "a"))
	assert.Equal(t, 1, f.stock(t, "b"))
	assert.Equal(t, int64(10), f.customer(t, "c1").LoyaltyPoints)
}

func TestCreateInvoice_TarjetaPrepago_TomaElMinimo(t *testing.T) {
	f := newFixture(t, nil)
	f.store.SeedCustomer(entity.Customer{ID: "c1", LoyaltyPoints: 100})
	f.store.SeedPrepaidCard(entity.PrepaidCard{Code: "GC-1", CustomerID: "c1", Balance: d(1000000), Status: entity.PrepaidCardActive})

	// subtotal 300000, puntos 100000: la tarjeta solo puede cubrir 200000 aunque pidan 500000.
	inv, err := f.uc.CreateInvoice(context.Background(), cashier, dto.CreateInvoiceRequest{
		CustomerID:      "c1",
		Items:           []dto.InvoiceItemRequest{service("nails", 300000)},
		PointsUsed:      100,
		PrepaidCardCode: "GC-1",
		PrepaidAmount:   d(500000),
	})
	require.NoError(t, err)
	assert.True(t, inv.PrepaidValue.Equal(d(200000)))
	assert.True(t, inv.DiscountAmount.Equal(d(300000)))
	assert.True(t, inv.TotalAmount.IsZero())
	assert.Equal(t, entity.InvoiceStatusPaid, inv.Status)

	card, err := f.repos.PrepaidCards.GetByCode(context.Background(), "GC-1")
	require.NoError(t, err)
	assert.True(t, card.Balance.Equal(d(800000)))
	assert.Equal(t, int64(1), card.Version)
}

func TestCreateInvoice_DescuentosInvalidos(t *testing.T) {
	f := newFixture(t, nil)
	past := time.Now().Add(-time.Hour)
	f.store.SeedCustomer(entity.Customer{ID: "c1", LoyaltyPoints: 500})
	f.store.SeedCustomer(entity.Customer{ID: "c2"})
	f.store.SeedPrepaidCard(entity.PrepaidCard{Code: "LOCK", CustomerID: "c1", Balance: d(100000), Status: entity.PrepaidCardLocked})
	f.store.SeedPrepaidCard(entity.PrepaidCard{Code: "OLD", CustomerID: "c1", Balance: d(100000), Status: entity.PrepaidCardActive, ExpiresAt: &past})
	f.store.SeedPrepaidCard(entity.PrepaidCard{Code: "OTHER", CustomerID: "c2", Balance: d(100000), Status: entity.PrepaidCardActive})

	base := func() dto.CreateInvoiceRequest {
		return dto.CreateInvoiceRequest{
			CustomerID: "c1",
			Items:      []dto.InvoiceItemRequest{service("spa", 100000)},
			Payments:   []dto.PaymentRequest{pay(entity.PaymentCash, 100000)},
		}
	}
	withCard := func(code string) dto.CreateInvoiceRequest {
		in := base()
		in.PrepaidCardCode = code
		in.PrepaidAmount = d(10000)
		return in
	}
	morePoints := base()
	morePoints.PointsUsed = 501
	pointsOverSubtotal := base()
	pointsOverSubtotal.PointsUsed = 101

	cases := map[string]dto.CreateInvoiceRequest{
		"puntos insuficientes":     morePoints,
		"puntos sobre el subtotal": pointsOverSubtotal,
		"tarjeta bloqueada":        withCard("LOCK"),
		"tarjeta vencida":          withCard("OLD"),
		"tarjeta de otro cliente":  withCard("OTHER"),
		"tarjeta inexistente":      withCard("NOPE"),
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.uc.CreateInvoice(context.Background(), cashier, in)
			assert.ErrorIs(t, err, domain.ErrInvalidDiscount)
		})
	}
	assert.Equal(t, int64(500), f.customer(t, "c1").LoyaltyPoints)
}

func TestCreateInvoice_PagosInvalidos(t *testing.T) {
	f := newFixture(t, nil)
	f.store.SeedCustomer(entity.Customer{ID: "c1", CreditLimit: d(1000000)})
	items := []dto.InvoiceItemRequest{service("spa", 100000)}

	cases := map[string][]dto.PaymentRequest{
		"sobrepago":           {pay(entity.PaymentCash, 150000)},
		"faltante sin deuda":  {pay(entity.PaymentCash, 50000)},
		"deuda distinta":      {pay(entity.PaymentCash, 50000), pay(entity.PaymentDebt, 40000)},
		"deuda sin faltante":  {pay(entity.PaymentCash, 100000), pay(entity.PaymentDebt, 1)},
		"dos registros deuda": {pay(entity.PaymentDebt, 50000), pay(entity.PaymentDebt, 50000)},
		"monto cero":          {pay(entity.PaymentCash, 0)},
		"método desconocido":  {pay("crypto", 100000)},
	}
	for name, payments := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.uc.CreateInvoice(context.Background(), cashier, dto.CreateInvoiceRequest{CustomerID: "c1", Items: items, Payments: payments})
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
	assert.True(t, f.customer(t, "c1").DebtAmount.IsZero())
}

func TestCreateInvoice_Validaciones(t *testing.T) {
	f := newFixture(t, nil)
	f.store.SeedCustomer(entity.Customer{ID: "c1"})
	f.store.SeedProduct(entity.Product{ID: "off", Price: d(1000), Active: false})

	_, err := f.uc.CreateInvoice(context.Background(), cashier, dto.CreateInvoiceRequest{CustomerID: "c1"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.uc.CreateInvoice(context.Background(), cashier, dto.CreateInvoiceRequest{
		CustomerID: "c1",
		Items: []dto.InvoiceItemRequest{{
			RefID: "off", Type: entity.InvoiceItemProduct, Quantity: 1,
			Consumables: []dto.ConsumableRequest{{ProductID: "off", Quantity: 1}},
		}},
	})
	assert.ErrorIs(t, err, domain.ErrValidation, "los productos no llevan insumos")

	_, err = f.uc.CreateInvoice(context.Background(), cashier, dto.CreateInvoiceRequest{
		CustomerID: "c1",
		Items:      []dto.InvoiceItemRequest{{RefID: "off", Type: entity.InvoiceItemProduct, Quantity: 1}},
		Payments:   []dto.PaymentRequest{pay(entity.PaymentCash, 1000)},
	})
	assert.ErrorIs(t, err, domain.ErrValidation, "producto inactivo")

	_, err = f.uc.CreateInvoice(context.Background(), cashier, dto.CreateInvoiceRequest{
		CustomerID: "ghost",
		Items:      []dto.InvoiceItemRequest{service("spa", 1000)},
		Payments:   []dto.PaymentRequest{pay(entity.PaymentCash, 1000)},
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// memGuard guarda en memoria las claves de idempotencia.
type memGuard struct {
	mu          sync.Mutex
	keys        map[string]string
	locks       int
	rememberErr error
}

func (g *memGuard) Lock(context.Context, string) (func(), error) {
	g.mu.Lock()
	g.locks++
	g.mu.Unlock()
	return func() {}, nil
}

func (g *memGuard) Lookup(_ context.Context, key string) (string, bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	id, ok := g.keys[key]
	return id, ok, nil
}

func (g *memGuard) Remember(_ context.Context, key, invoiceID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.rememberErr != nil {
		return g.rememberErr
	}
	g.keys[key] = invoiceID
	return nil
}

func TestCreateInvoice_Idempotencia_DevuelveLaMismaFactura(t *testing.T) {
	guard := &memGuard{keys: map[string]string{}}
	f := newFixture(t, guard)
	f.product(t, "p1", 50000, 3)
	f.store.SeedCustomer(entity.Customer{ID: "c1"})

	in := dto.CreateInvoiceRequest{
		CustomerID:     "c1",
		Items:          []dto.InvoiceItemRequest{{RefID: "p1", Type: entity.InvoiceItemProduct, Quantity: 1}},
		Payments:       []dto.PaymentRequest{pay(entity.PaymentCash, 50000)},
		IdempotencyKey: "pos-1-0001",
	}
	first, err := f.uc.CreateInvoice(context.Background(), cashier, in)
	require.NoError(t, err)
	second, err := f.uc.CreateInvoice(context.Background(), cashier, in)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 2, f.stock(t, "p1"), "el reenvío no vuelve a descontar")
	assert.Equal(t, 2, guard.locks)
}

func TestCreateInvoice_Idempotencia_ClaveGuardadaEnLaFactura(t *testing.T) {
	guards := map[string]billing.IdempotencyGuard{
		"remember falla": &memGuard{keys: map[string]string{}, rememberErr: errors.New("redis caído")},
		"sin guard":      nil,
	}
	for name, guard := range guards {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, guard)
			f.product(t, "p1", 50000, 3)
			f.store.SeedCustomer(entity.Customer{ID: "c1"})

			in := dto.CreateInvoiceRequest{
				CustomerID:     "c1",
				Items:          []dto.InvoiceItemRequest{{RefID: "p1", Type: entity.InvoiceItemProduct, Quantity: 1}},
				Payments:       []dto.PaymentRequest{pay(entity.PaymentCash, 50000)},
				IdempotencyKey: "pos-1-0002",
			}
			first, err := f.uc.CreateInvoice(context.Background(), cashier, in)
			require.NoError(t, err)
			second, err := f.uc.CreateInvoice(context.Background(), cashier, in)
			require.NoError(t, err)

			assert.Equal(t, first.ID, second.ID)
			assert.Equal(t, first.Code, second.Code)
			assert.Equal(t, 2, f.stock(t, "p1"), "el reenvío no vuelve a cobrar")

			stored, err := f.repos.Invoices.GetByIdempotencyKey(context.Background(), "pos-1-0002")
			require.NoError(t, err)
			require.NotNil(t, stored)
			assert.Equal(t, first.ID, stored.ID)
		})
	}
}

type fakeReceipt struct {
	lines []billing.LineForPDF
}

func (g *fakeReceipt) GenerateReceiptPDF(_ context.Context, _ *entity.Invoice, _ *entity.Customer, lines []billing.LineForPDF) ([]byte, error) {
	g.lines = lines
	return []byte("%PDF"), nil
}

func TestDownloadReceiptPDF(t *testing.T) {
	f := newFixture(t, nil)
	f.product(t, "p1", 50000, 3)
	f.store.SeedCustomer(entity.Customer{ID: "c1", Name: "Mai"})
	inv, err := f.uc.CreateInvoice(context.Background(), cashier, dto.CreateInvoiceRequest{
		CustomerID: "c1",
		Items:      []dto.InvoiceItemRequest{{RefID: "p1", Type: entity.InvoiceItemProduct, Quantity: 1}, service("spa", 1000)},
		Payments:   []dto.PaymentRequest{pay(entity.PaymentCash, 51000)},
	})
	require.NoError(t, err)

	gen := &fakeReceipt{}
	uc := billing.NewPDFUseCase(f.repos.Invoices, f.repos.Customers, f.repos.Products, gen)
	data, name, err := uc.DownloadReceiptPDF(context.Background(), inv.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF"), data)
	assert.Equal(t, "recibo_"+inv.Code+".pdf", name)
	require.Len(t, gen.lines, 2)
	assert.Equal(t, "Producto p1", gen.lines[0].Name)
	assert.Equal(t, "Servicio spa", gen.lines[1].Name)

	_, _, err = uc.DownloadReceiptPDF(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
