package web

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"namiokai/config"
	"namiokai/debt"
	"namiokai/mq/mq"
)

var (
	debtRecomputations = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: config.AppName,
		Name:      "debt_recomputations_total",
		Help:      "Number of debt views computed.",
	})
	debtRecomputeSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: config.AppName,
		Name:      "debt_recompute_seconds",
		Help:      "Time spent resolving debts for one update.",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
	})
	debtSpaces = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: config.AppName,
		Name:      "debt_spaces_with_debts",
		Help:      "Spaces with outstanding debts in the latest computation.",
	})
	billWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: config.AppName,
		Name:      "bill_writes_total",
		Help:      "Bill writes by kind and action.",
	}, []string{"kind", "action"})
	debtSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: config.AppName,
		Name:      "debt_ws_subscribers",
		Help:      "Open websocket debt subscriptions.",
	})
)

// observeDebts is the debt.Service observer feeding the metrics above.
var observeDebts debt.Observer = func(elapsed time.Duration, spaces int) {
	debtRecomputations.Inc()
	debtRecomputeSeconds.Observe(elapsed.Seconds())
	debtSpaces.Set(float64(spaces))
}

func countBillWrite(kind string, action mq.Action) {
	billWrites.WithLabelValues(kind, action.String()).Inc()
}
