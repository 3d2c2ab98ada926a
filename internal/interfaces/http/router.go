package http

import (
	nethttp "net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/rs/zerolog"

	"github.com/jhoicas/spa-ledger-api/internal/application/billing"
	"github.com/jhoicas/spa-ledger-api/internal/application/inventory"
	"github.com/jhoicas/spa-ledger-api/pkg/jwt"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	Ledger        *inventory.Ledger
	Replenishment *inventory.ReplenishmentUseCase
	Slips         *inventory.SlipUseCase
	StockTakes    *inventory.StockTakeUseCase
	Settlement    *billing.SettlementUseCase
	ReceiptPDF    *billing.PDFUseCase
	JWTSecret     string
	JWTIssuer     string
	// Metrics se expone en GET /metrics si no es nil.
	Metrics nethttp.Handler
	Log     zerolog.Logger
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	app.Use(func(c *fiber.Ctx) error {
		c.SetUserContext(deps.Log.WithContext(c.UserContext()))
		return c.Next()
	})
	if deps.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(deps.Metrics))
	}

	api := app.Group("/api", AuthMiddleware(deps.JWTSecret, deps.JWTIssuer))
	stockRoles := RequireRole(jwt.RoleAdmin, jwt.RoleWarehouse)
	cashRoles := RequireRole(jwt.RoleAdmin, jwt.RoleCashier)

	// Libro de stock
	inv := api.Group("/inventory", stockRoles)
	inventoryHandler := NewInventoryHandler(deps.Ledger, deps.Replenishment)
	inv.Post("/adjustments", inventoryHandler.RegisterAdjustment)
	inv.Post("/adjustments/:id/reverse", inventoryHandler.Reverse)
	inv.Get("/products/:id/adjustments", inventoryHandler.History)
	inv.Get("/products/:id/audit", inventoryHandler.Audit)
	inv.Get("/low-stock", inventoryHandler.LowStock)

	// Comprobantes de bodega
	slips := api.Group("/warehouse-slips", stockRoles)
	slipHandler := NewSlipHandler(deps.Slips)
	slips.Post("/", slipHandler.Create)
	slips.Get("/", slipHandler.List)
	slips.Get("/:id", slipHandler.GetByID)
	slips.Put("/:id", slipHandler.Update)
	slips.Delete("/:id", slipHandler.Delete)

	// Inventario físico
	takes := api.Group("/stock-takes", stockRoles)
	stockTakeHandler := NewStockTakeHandler(deps.StockTakes)
	takes.Post("/", stockTakeHandler.Create)
	takes.Get("/", stockTakeHandler.List)
	takes.Get("/:id", stockTakeHandler.GetByID)
	takes.Put("/:id/items", stockTakeHandler.RecordCounts)
	takes.Post("/:id/complete", stockTakeHandler.Complete)
	takes.Get("/:id/sheet", stockTakeHandler.Sheet)

	// Facturación
	invoices := api.Group("/invoices", cashRoles)
	invoiceHandler := NewInvoiceHandler(deps.Settlement, deps.ReceiptPDF)
	invoices.Post("/", invoiceHandler.Create)
	invoices.Get("/:id", invoiceHandler.GetByID)
	invoices.Get("/:id/receipt", invoiceHandler.Receipt)
}
