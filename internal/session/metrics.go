package session

import "github.com/prometheus/client_golang/prometheus"

var (
	loadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "localchat",
			Subsystem: "session",
			Name:      "loads_total",
			Help:      "Model loads by result",
		},
		[]string{"result"},
	)

	loadDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "localchat",
			Subsystem: "session",
			Name:      "load_duration_seconds",
			Help:      "Time from load start to ready or failed",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	generationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "localchat",
			Subsystem: "session",
			Name:      "generations_total",
			Help:      "Generate calls by result",
		},
		[]string{"result"},
	)

	generateDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "localchat",
			Subsystem: "session",
			Name:      "generate_duration_seconds",
			Help:      "Duration of admitted generate calls",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		},
	)

	stateGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "localchat",
			Subsystem: "session",
			Name:      "state",
			Help:      "1 for the current session state, 0 otherwise",
		},
		[]string{"state"},
	)
)

func init() {
	prometheus.MustRegister(loadsTotal, loadDuration, generationsTotal, generateDuration, stateGauge)
	setStateGauge(StateUnloaded)
}

func setStateGauge(cur State) {
	for _, s := range []State{StateUnloaded, StateLoading, StateReady, StateFailed} {
		v := 0.0
		if s == cur {
			v = 1
		}
		stateGauge.WithLabelValues(string(s)).Set(v)
	}
}
