package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for pool operations.
type Metrics struct {
	PoolsCreated        prometheus.Counter
	MembersAdded        prometheus.Counter
	MembersRemoved      prometheus.Counter
	Purchases           prometheus.Counter
	PurchaseVolume      prometheus.Counter
	OperatorFees        prometheus.Counter
	DistributedEarnings prometheus.Counter
	RefundsIssued       prometheus.Counter
	Withdrawals         prometheus.Counter
	AmountWithdrawn     prometheus.Counter
	EscrowHeld          prometheus.Gauge
	PurchaseLatency     prometheus.Histogram
}

// New registers and returns pool metrics collectors.
func New() *Metrics {
	return &Metrics{
		PoolsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "poolpay_pools_created_total",
			Help: "Total number of pools created",
		}),
		MembersAdded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "poolpay_pool_members_added_total",
			Help: "Total number of members added to pools",
		}),
		MembersRemoved: promauto.NewCounter(prometheus.CounterOpts{
			Name: "poolpay_pool_members_removed_total",
			Help: "Total number of members removed from pools",
		}),
		Purchases: promauto.NewCounter(prometheus.CounterOpts{
			Name: "poolpay_pool_purchases_total",
			Help: "Total number of settled pool purchases",
		}),
		PurchaseVolume: promauto.NewCounter(prometheus.CounterOpts{
			Name: "poolpay_pool_purchase_volume_units",
			Help: "Total settlement units charged across pool purchases",
		}),
		OperatorFees: promauto.NewCounter(prometheus.CounterOpts{
			Name: "poolpay_pool_operator_fees_units",
			Help: "Total settlement units credited to pool operators",
		}),
		DistributedEarnings: promauto.NewCounter(prometheus.CounterOpts{
			Name: "poolpay_pool_distributed_units",
			Help: "Total settlement units distributed to member providers",
		}),
		RefundsIssued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "poolpay_pool_refunds_issued_units",
			Help: "Total settlement units refunded to buyers on overpayment",
		}),
		Withdrawals: promauto.NewCounter(prometheus.CounterOpts{
			Name: "poolpay_pool_withdrawals_total",
			Help: "Total number of successful pool escrow withdrawals",
		}),
		AmountWithdrawn: promauto.NewCounter(prometheus.CounterOpts{
			Name: "poolpay_pool_amount_withdrawn_units",
			Help: "Total settlement units paid out of pool escrow",
		}),
		EscrowHeld: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "poolpay_pool_escrow_held_units",
			Help: "Settlement units currently held in pool escrow",
		}),
		PurchaseLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "poolpay_pool_purchase_latency_seconds",
			Help:    "Latency of pool purchase settlement in seconds",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) ObservePurchaseLatency(durationSeconds float64) {
	m.PurchaseLatency.Observe(durationSeconds)
}
