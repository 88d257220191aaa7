package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for ledger operations.
type Metrics struct {
	ServicesRegistered prometheus.Counter
	ServiceUses        prometheus.Counter
	EarningsCredited   prometheus.Counter
	RefundsIssued      prometheus.Counter
	Withdrawals        prometheus.Counter
	AmountWithdrawn    prometheus.Counter
	EscrowHeld         prometheus.Gauge
	UseLatency         prometheus.Histogram
}

// New registers and returns ledger metrics collectors.
func New() *Metrics {
	return &Metrics{
		ServicesRegistered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "poolpay_services_registered_total",
			Help: "Total number of services registered",
		}),
		ServiceUses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "poolpay_service_uses_total",
			Help: "Total number of paid service uses",
		}),
		EarningsCredited: promauto.NewCounter(prometheus.CounterOpts{
			Name: "poolpay_ledger_earnings_credited_units",
			Help: "Total settlement units credited to provider earnings",
		}),
		RefundsIssued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "poolpay_ledger_refunds_issued_units",
			Help: "Total settlement units refunded to callers on overpayment",
		}),
		Withdrawals: promauto.NewCounter(prometheus.CounterOpts{
			Name: "poolpay_ledger_withdrawals_total",
			Help: "Total number of successful withdrawals",
		}),
		AmountWithdrawn: promauto.NewCounter(prometheus.CounterOpts{
			Name: "poolpay_ledger_amount_withdrawn_units",
			Help: "Total settlement units paid out through withdrawals",
		}),
		EscrowHeld: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "poolpay_ledger_escrow_held_units",
			Help: "Settlement units currently held in ledger escrow",
		}),
		UseLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "poolpay_ledger_use_latency_seconds",
			Help:    "Latency of service use settlement in seconds",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) ObserveUseLatency(durationSeconds float64) {
	m.UseLatency.Observe(durationSeconds)
}
