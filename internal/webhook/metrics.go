package webhook

import "github.com/prometheus/client_golang/prometheus"

// deliveriesTotal counts individual delivery attempts by outcome:
// success (2xx), rejected (non-2xx), error (transport failure).
var deliveriesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "webhook_deliveries_total",
		Help: "Total number of webhook delivery attempts by outcome.",
	},
	[]string{"outcome"},
)

func init() {
	prometheus.MustRegister(deliveriesTotal)
}
