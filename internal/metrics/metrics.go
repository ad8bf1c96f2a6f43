package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"route", "method", "status"},
	)

	// Bid lifecycle
	BidTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bid_transitions_total",
			Help: "Applied bid status transitions",
		},
		[]string{"status"},
	)

	// Payouts
	PayoutsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "payouts_total",
			Help: "Settled bid payouts",
		},
	)
	PayoutsFailed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "payouts_failed_total",
			Help: "Payout settle attempts that errored",
		},
	)

	// Withdrawals
	Withdrawals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "withdrawals_total",
			Help: "Withdrawal status changes",
		},
		[]string{"status"},
	)
	GatewayFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gateway_transfer_failures_total",
			Help: "Failed or timed out gateway transfers",
		},
	)

	// Worker queue
	WorkerQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "worker_queue_depth",
			Help: "Current worker queue depth",
		},
	)
)

// Handler serves the /metrics endpoint.
var Handler = promhttp.Handler

func Init() {
	prometheus.MustRegister(RequestsTotal)
	prometheus.MustRegister(BidTransitions)
	prometheus.MustRegister(PayoutsTotal)
	prometheus.MustRegister(PayoutsFailed)
	prometheus.MustRegister(Withdrawals)
	prometheus.MustRegister(GatewayFailures)
	prometheus.MustRegister(WorkerQueueDepth)
}
