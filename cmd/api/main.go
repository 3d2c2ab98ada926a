// @title           Spa Ledger API
// @version         1.0
// @description     Libro de stock, comprobantes de bodega, inventario físico y liquidación de facturas del spa.
// @BasePath        /
// @securityDefinitions.apikey  Bearer
// @in                          header
// @name                        Authorization
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/spa-ledger-api/docs"
	"github.com/jhoicas/spa-ledger-api/internal/application/billing"
	"github.com/jhoicas/spa-ledger-api/internal/application/inventory"
	"github.com/jhoicas/spa-ledger-api/internal/domain/repository"
	infraexcel "github.com/jhoicas/spa-ledger-api/internal/infrastructure/excel"
	"github.com/jhoicas/spa-ledger-api/internal/infrastructure/memory"
	"github.com/jhoicas/spa-ledger-api/internal/infrastructure/metrics"
	infrapdf "github.com/jhoicas/spa-ledger-api/internal/infrastructure/pdf"
	"github.com/jhoicas/spa-ledger-api/internal/infrastructure/postgres"
	infraredis "github.com/jhoicas/spa-ledger-api/internal/infrastructure/redis"
	httpRouter "github.com/jhoicas/spa-ledger-api/internal/interfaces/http"
	"github.com/jhoicas/spa-ledger-api/pkg/config"
	"github.com/jhoicas/spa-ledger-api/pkg/logger"
)

// storage repositorios y ejecutor de transacciones del backend elegido.
type storage struct {
	repos    repository.Repositories
	txRunner inventory.TxRunner
	memory   *memory.Store // nil con PostgreSQL
	close    func()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:     cfg.App.Env,
		Level:   cfg.App.LogLevel,
		Service: cfg.App.Name,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Msg("iniciando aplicación")

	ctx := context.Background()
	store, err := openStorage(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer store.close()

	var guard billing.IdempotencyGuard = memory.NewIdempotencyGuard(cfg.Redis.IdempotencyTTL)
	if cfg.Redis.Enabled() {
		rdb, err := infraredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			log.Fatal().Err(err).Msg("conexión a Redis")
		}
		defer rdb.Close()
		guard = infraredis.NewIdempotencyGuard(rdb, cfg.Redis.IdempotencyTTL)
		log.Info().Str("addr", cfg.Redis.Addr).Msg("idempotencia de facturas en Redis")
	}

	registry := metrics.NewRegistry()
	m := metrics.New(registry)

	repos := store.repos
	ledger := inventory.NewLedger(store.txRunner, repos.Products, repos.Adjustments, cfg.Ledger.MaxAttempts, m, log)
	replenishmentUC := inventory.NewReplenishmentUseCase(repos.Products)
	slipUC := inventory.NewSlipUseCase(ledger, store.txRunner, repos.Slips, repos.Products, log)
	stockTakeUC := inventory.NewStockTakeUseCase(ledger, store.txRunner, repos.StockTakes, repos.Products,
		infraexcel.NewStockTakeSheetExporter(), log)
	settlementUC := billing.NewSettlementUseCase(ledger, store.txRunner, repos.Products, repos.Customers,
		repos.PrepaidCards, repos.Invoices, guard, m, billing.SettlementConfig{
			PointValue:    decimal.NewFromInt(cfg.Billing.LoyaltyPointValue),
			InvoicePrefix: cfg.Billing.InvoicePrefix,
		}, log)
	receiptUC := billing.NewPDFUseCase(repos.Invoices, repos.Customers, repos.Products,
		infrapdf.NewMarotoReceiptGenerator(cfg.App.Name))

	if store.memory != nil {
		if err := seedDemo(ctx, store.memory, ledger, cfg, log); err != nil {
			log.Fatal().Err(err).Msg("seed demo")
		}
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	// Swagger UI en local: http://localhost:<port>/docs
	docs.SwaggerInfo.Title = cfg.App.Name
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    cfg.App.Name,
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name, "storage": store.name()})
	})

	deps := httpRouter.RouterDeps{
		Ledger:        ledger,
		Replenishment: replenishmentUC,
		Slips:         slipUC,
		StockTakes:    stockTakeUC,
		Settlement:    settlementUC,
		ReceiptPDF:    receiptUC,
		JWTSecret:     cfg.JWT.Secret,
		JWTIssuer:     cfg.JWT.Issuer,
		Log:           log,
	}
	if cfg.Metrics.Enabled {
		deps.Metrics = promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry})
	}
	httpRouter.Router(app, deps)

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("aplicación detenida")
}

// openStorage PostgreSQL si hay base configurada; si no, el store en memoria.
func openStorage(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*storage, error) {
	if !cfg.DB.Enabled() {
		log.Warn().Msg("sin DATABASE_URL: store en memoria con datos demo")
		s := memory.NewStore()
		return &storage{repos: s.Repositories(), txRunner: s.TxRunner(), memory: s, close: func() {}}, nil
	}
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		return nil, err
	}
	return &storage{
		repos:    postgres.NewRepositories(pool),
		txRunner: postgres.NewTxRunner(pool),
		close:    pool.Close,
	}, nil
}

func (s *storage) name() string {
	if s.memory != nil {
		return "memory"
	}
	return "postgres"
}
