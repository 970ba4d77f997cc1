package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// SettlementComputationsTotal counts summary computations by final state.
	SettlementComputationsTotal *prometheus.CounterVec
	// FXFetchTotal counts reference-rate lookups by outcome.
	FXFetchTotal *prometheus.CounterVec
	// FXFetchLatency records rate lookup latency in milliseconds.
	FXFetchLatency prometheus.Histogram
	// LedgerLookupTotal counts client ledger lookups by outcome.
	LedgerLookupTotal *prometheus.CounterVec
	// InventoryHoldTotal counts inventory hold requests by outcome.
	InventoryHoldTotal *prometheus.CounterVec
	// DocumentsRenderedTotal counts exported documents by outcome.
	DocumentsRenderedTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		SettlementComputationsTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settlement_computations_total",
			Help:      "Count of settlement summary computations by resulting state.",
		}, []string{"state"}))
		FXFetchTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fx_fetch_total",
			Help:      "Count of daily FX rate lookups by outcome.",
		}, []string{"result"}))
		FXFetchLatency = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fx_fetch_duration_ms",
			Help:      "Latency of daily FX rate lookups in milliseconds.",
			Buckets:   []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}))
		LedgerLookupTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_lookup_total",
			Help:      "Count of client ledger lookups by outcome.",
		}, []string{"result"}))
		InventoryHoldTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inventory_hold_total",
			Help:      "Count of inventory hold requests by outcome.",
		}, []string{"result"}))
		DocumentsRenderedTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_rendered_total",
			Help:      "Count of rendered settlement documents by outcome.",
		}, []string{"result"}))
	})
}

// Count increments vec for the given label values when metrics are registered.
func Count(vec *prometheus.CounterVec, labels ...string) {
	if vec == nil {
		return
	}
	vec.WithLabelValues(labels...).Inc()
}

// Observe records v on h when metrics are registered.
func Observe(h prometheus.Histogram, v float64) {
	if h == nil {
		return
	}
	h.Observe(v)
}
