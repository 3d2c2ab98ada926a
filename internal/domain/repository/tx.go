package repository

// Repositories agrupa los repositorios atados a una misma transacción.
// Lo entrega el TxRunner al callback; todo lo escrito con ellos se confirma o se descarta junto.
type Repositories struct {
	Products     ProductRepository
	Adjustments  StockAdjustmentRepository
	Slips        WarehouseSlipRepository
	StockTakes   StockTakeRepository
	Customers    CustomerRepository
	PrepaidCards PrepaidCardRepository
	Invoices     InvoiceRepository
}
