package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"net/http"
)

var (
	ErrorsCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_errors_total",
			Help: "Total number of occurred errors.",
		},
		[]string{"type"},
	)
	HandledUpdatesCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_updates_handled_total",
			Help: "Total number of handled telegram updates.",
		},
		[]string{"kind"},
	)
	StepTransitionsCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_script_step_transitions_total",
			Help: "Total number of transitions into each script step.",
		},
		[]string{"step"},
	)
	UnmatchedRepliesCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bot_script_unmatched_replies_total",
			Help: "Total number of replies that matched no button of the current step.",
		},
	)
	BroadcastDeliveriesCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_broadcast_deliveries_total",
			Help: "Total number of broadcast messages per delivery result.",
		},
		[]string{"result"},
	)
)

func StartMetricsServer() {

	prometheus.MustRegister(ErrorsCounter)
	prometheus.MustRegister(HandledUpdatesCounter)
	prometheus.MustRegister(StepTransitionsCounter)
	prometheus.MustRegister(UnmatchedRepliesCounter)
	prometheus.MustRegister(BroadcastDeliveriesCounter)

	http.Handle("/metrics", promhttp.Handler())
	go func() {
		log.Fatal(http.ListenAndServe(":8080", nil))
	}()
}
