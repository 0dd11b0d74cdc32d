// Package metrics exposes Prometheus instruments of the arbitrage engine.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	Cycles = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "arb_cycles_total",
		Help: "Trade cycles by side and terminal phase",
	}, []string{"side", "phase"})

	ProfitPercent = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "arb_profit_percent",
		Help: "Last evaluated profit percent per side",
	}, []string{"side"})

	RealizedProfit = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "arb_realized_profit",
		Help: "Cumulative realised profit per currency since start",
	}, []string{"currency"})

	RecoveryAttempts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "arb_recovery_attempts_total",
		Help: "Second-leg recovery attempts",
	})

	ReconciliationAmbiguous = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "arb_reconciliation_ambiguous_total",
		Help: "Trade-history lookups that could neither confirm nor deny a leg",
	})

	Degraded = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "arb_degraded",
		Help: "1 when the side is degraded",
	}, []string{"side"})

	HadLoss = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "arb_had_loss",
		Help: "1 while the last completed cycle realised a loss",
	})

	ConfirmLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "arb_confirm_latency_seconds",
		Help:    "Time to confirm both legs of a cycle",
		Buckets: prometheus.DefBuckets,
	})
)

func init() {
	prometheus.MustRegister(
		Cycles,
		ProfitPercent,
		RealizedProfit,
		RecoveryAttempts,
		ReconciliationAmbiguous,
		Degraded,
		HadLoss,
		ConfirmLatency,
	)
}

// BoolGauge converts a flag to a gauge value.
func BoolGauge(v bool) float64 {
	if v {
		return 1
	}
	return 0
}
