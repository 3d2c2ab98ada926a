package entity

import "time"

// Estados de una sesión de inventario físico. completed es terminal.
const (
	StockTakeOngoing   = "ongoing"
	StockTakeCompleted = "completed"
)

// StockTakeSession sesión de conteo físico conciliada contra el stock registrado.
type StockTakeSession struct {
	ID          string
	Code        string
	Status      string
	Version     int64
	Notes       string
	Items       []StockTakeItem
	CreatedBy   string
	CreatedAt   time.Time
	CompletedAt *time.Time
	CompletedBy string
}

// StockTakeItem cantidad esperada (snapshot al crear) y contada por producto.
type StockTakeItem struct {
	ProductID        string
	ExpectedQuantity int
	ActualQuantity   *int
}

// IsOngoing indica si la sesión todavía acepta conteos.
func (s *StockTakeSession) IsOngoing() bool {
	return s.Status == StockTakeOngoing
}

// Item devuelve la línea del producto, o nil.
func (s *StockTakeSession) Item(productID string) *StockTakeItem {
	for i := range s.Items {
		if s.Items[i].ProductID == productID {
			return &s.Items[i]
		}
	}
	return nil
}
