package metrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/jhoicas/spa-ledger-api/internal/domain/entity"
	"github.com/jhoicas/spa-ledger-api/internal/infrastructure/metrics"
)

func TestMetrics_Observe(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())

	m.ObserveRetry("apply_batch")
	m.ObserveRetry("apply_batch")
	m.ObserveConflict("apply_batch")
	m.ObserveAdjustments(entity.AdjustmentSale, 3)
	m.ObserveInvoice(entity.InvoiceStatusPartial)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.LedgerRetries.WithLabelValues("apply_batch")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LedgerConflicts.WithLabelValues("apply_batch")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.Adjustments.WithLabelValues("sale")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Invoices.WithLabelValues("partial")))
}

func TestNewRegistry_Gather(t *testing.T) {
	reg := metrics.NewRegistry()
	metrics.New(reg).ObserveInvoice("paid")
	families, err := reg.Gather()
	assert.NoError(t, err)
	assert.NotEmpty(t, families)
}
