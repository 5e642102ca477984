package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TicksAppended = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "pairs_ticks_appended_total", Help: "Ticks written to the store"},
		[]string{"symbol"},
	)
	FeedMessagesDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "pairs_feed_messages_dropped_total", Help: "Malformed feed messages dropped at the boundary"},
		[]string{"source"},
	)
	AlertsTriggered = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "pairs_alerts_triggered_total", Help: "Alert rules that fired"},
		[]string{"metric"},
	)
	AnalyticsDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pairs_analytics_duration_seconds",
			Help:    "Time spent computing analytics requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
)

func init() {
	prometheus.MustRegister(TicksAppended, FeedMessagesDropped, AlertsTriggered, AnalyticsDuration)
}

// Handler exposes the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve starts a dedicated metrics listener on addr
func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
