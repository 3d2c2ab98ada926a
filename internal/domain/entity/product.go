package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product representa un producto del catálogo (el catálogo es dueño del registro).
// Stock es una columna derivada del libro de ajustes: solo el Ledger la escribe,
// siempre comparando Version (concurrencia optimista).
type Product struct {
	ID                string
	SKU               string
	Name              string
	Price             decimal.Decimal // precio de venta (VND)
	Cost              decimal.Decimal // costo promedio ponderado, se actualiza con comprobante de entrada
	Stock             int
	LowStockThreshold int
	Version           int64
	Active            bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// IsLowStock indica si el stock está en o por debajo del umbral de alerta.
func (p *Product) IsLowStock() bool {
	return p.LowStockThreshold > 0 && p.Stock <= p.LowStockThreshold
}

// ProductStock es la lectura mínima que necesita el Ledger: stock + sello de versión.
type ProductStock struct {
	ProductID string
	Stock     int
	Version   int64
}
