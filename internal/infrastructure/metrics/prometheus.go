// Package metrics publica en Prometheus las observaciones del libro y de la liquidación.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/jhoicas/spa-ledger-api/internal/application/billing"
	"github.com/jhoicas/spa-ledger-api/internal/application/inventory"
	"github.com/jhoicas/spa-ledger-api/internal/domain/entity"
)

var (
	_ inventory.Metrics = (*Metrics)(nil)
	_ billing.Metrics   = (*Metrics)(nil)
)

// Metrics contadores del servicio.
type Metrics struct {
	// LedgerRetries reintentos por versión obsoleta. Labels: op
	LedgerRetries *prometheus.CounterVec
	// LedgerConflicts operaciones que agotaron los reintentos. Labels: op
	LedgerConflicts *prometheus.CounterVec
	// Adjustments asientos escritos. Labels: type
	Adjustments *prometheus.CounterVec
	// Invoices facturas liquidadas. Labels: status
	Invoices *prometheus.CounterVec
}

// NewRegistry registro propio con los collectors de proceso y runtime de Go.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

// New registra los contadores en registry (DefaultRegisterer si es nil).
func New(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)
	return &Metrics{
		LedgerRetries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_retries_total",
			Help: "Reintentos de escritura del libro por versión obsoleta",
		}, []string{"op"}),
		LedgerConflicts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_conflicts_total",
			Help: "Operaciones que agotaron los reintentos (CONCURRENCY_CONFLICT)",
		}, []string{"op"}),
		Adjustments: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "stock_adjustments_total",
			Help: "Asientos de stock escritos por tipo",
		}, []string{"type"}),
		Invoices: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "invoices_settled_total",
			Help: "Facturas liquidadas por estado",
		}, []string{"status"}),
	}
}

func (m *Metrics) ObserveRetry(op string) { m.LedgerRetries.WithLabelValues(op).Inc() }

func (m *Metrics) ObserveConflict(op string) { m.LedgerConflicts.WithLabelValues(op).Inc() }

func (m *Metrics) ObserveAdjustments(t entity.AdjustmentType, n int) {
	m.Adjustments.WithLabelValues(string(t)).Add(float64(n))
}

func (m *Metrics) ObserveInvoice(status string) { m.Invoices.WithLabelValues(status).Inc() }
