// Package metrics exposes the Prometheus series published at /metrics.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	ticksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "market_ticks_total",
			Help: "Market simulator ticks applied while a round is running.",
		},
	)

	tradesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "market_trades_total",
			Help: "Trade attempts by side and result.",
		},
		[]string{"side", "result"},
	)

	roundTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "market_round_transitions_total",
			Help: "Round lifecycle transitions by destination status.",
		},
		[]string{"to"},
	)

	portfolioValueUSD = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "market_portfolio_value_usd",
			Help: "Sum of all portfolios' mark-to-market value, refreshed each time the leaderboard is computed.",
		},
	)

	observersConnected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "market_observers_connected",
			Help: "Number of clients currently attached to the ops stream.",
		},
	)
)

func init() {
	prometheus.MustRegister(ticksTotal, tradesTotal, roundTransitionsTotal, portfolioValueUSD, observersConnected)
}

// IncTick records one market simulator tick.
func IncTick() { ticksTotal.Inc() }

// IncTrade records a trade attempt, result being "ok" or a taxonomy code.
func IncTrade(side, result string) { tradesTotal.WithLabelValues(side, result).Inc() }

// IncRoundTransition records a round lifecycle transition.
func IncRoundTransition(to string) { roundTransitionsTotal.WithLabelValues(to).Inc() }

// SetPortfolioValue records the combined mark-to-market value across every
// portfolio, not labeled per-team to avoid label explosion as teams join.
func SetPortfolioValue(total float64) { portfolioValueUSD.Set(total) }

// SetObserversConnected records the current ops-stream client count.
func SetObserversConnected(n int) { observersConnected.Set(float64(n)) }
