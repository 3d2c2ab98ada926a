package main

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/spa-ledger-api/internal/application/inventory"
	"github.com/jhoicas/spa-ledger-api/internal/domain/entity"
	domaininv "github.com/jhoicas/spa-ledger-api/internal/domain/inventory"
	"github.com/jhoicas/spa-ledger-api/internal/infrastructure/memory"
	"github.com/jhoicas/spa-ledger-api/pkg/config"
	"github.com/jhoicas/spa-ledger-api/pkg/jwt"
)

const seedActor = "seed"

type demoProduct struct {
	id, sku, name    string
	price, cost      int64
	opening, minimum int
}

var demoProducts = []demoProduct{
	{"prd-oil", "OIL-500", "Aceite de masaje 500ml", 180000, 95000, 40, 10},
	{"prd-serum", "SRM-030", "Sérum vitamina C 30ml", 450000, 210000, 12, 5},
	{"prd-mask", "MSK-010", "Mascarilla de arcilla", 90000, 35000, 4, 8},
	{"prd-towel", "TWL-001", "Toalla desechable", 5000, 1500, 300, 100},
}

// seedDemo carga catálogo, clientes y una tarjeta prepago en el store en memoria.
// El stock inicial entra por el libro como asientos initial.
func seedDemo(ctx context.Context, store *memory.Store, ledger *inventory.Ledger, cfg *config.Config, log zerolog.Logger) error {
	for _, p := range demoProducts {
		store.SeedProduct(entity.Product{
			ID:                p.id,
			SKU:               p.sku,
			Name:              p.name,
			Price:             decimal.NewFromInt(p.price),
			Cost:              decimal.NewFromInt(p.cost),
			LowStockThreshold: p.minimum,
			Active:            true,
			CreatedAt:         time.Now(),
		})
		req, err := ledger.Factory().Initial(p.id, p.opening, domaininv.Meta{ActorID: seedActor, Notes: "stock demo"})
		if err != nil {
			return err
		}
		if _, err := ledger.ApplyAdjustment(ctx, req); err != nil {
			return err
		}
	}

	store.SeedCustomer(entity.Customer{ID: "cus-lan", Name: "Nguyễn Thị Lan", Phone: "0901234567",
		CreditLimit: decimal.NewFromInt(300000), LoyaltyPoints: 80})
	store.SeedCustomer(entity.Customer{ID: "cus-minh", Name: "Trần Văn Minh", Phone: "0912345678",
		CreditLimit: decimal.NewFromInt(100000)})
	store.SeedPrepaidCard(entity.PrepaidCard{Code: "GIFT-0001", CustomerID: "cus-lan",
		Balance: decimal.NewFromInt(1000000), Status: entity.PrepaidCardActive})

	ev := log.Info().Int("products", len(demoProducts))
	if cfg.App.Env == "development" && cfg.JWT.Secret != "" {
		for _, role := range []string{jwt.RoleAdmin, jwt.RoleWarehouse, jwt.RoleCashier} {
			tok, err := jwt.Generate(cfg.JWT.Secret, "demo-"+role, role, cfg.JWT.Issuer, 12*time.Hour)
			if err != nil {
				return err
			}
			ev = ev.Str("token_"+role, tok)
		}
	}
	ev.Msg("datos demo cargados")
	return nil
}
