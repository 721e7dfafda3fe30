package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "octoflex"

// Metrics records coordinator and API activity. A nil *Metrics is a valid no-op.
type Metrics struct {
	fetchDuration  *prometheus.HistogramVec
	fetches        *prometheus.CounterVec
	lastSuccess    *prometheus.GaugeVec
	snapshotSeq    *prometheus.GaugeVec
	logins         *prometheus.CounterVec
	commands       *prometheus.CounterVec
	apiRequests    *prometheus.CounterVec
	pendingActions prometheus.Gauge
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// Default registers the collectors once on the default registerer.
func Default() *Metrics {
	defaultOnce.Do(func() {
		defaultMetrics = New(prometheus.DefaultRegisterer)
	})
	return defaultMetrics
}

func New(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		fetchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "snapshot_fetch_duration_seconds",
				Help:      "Duration of account snapshot fetches.",
				Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"result"}, // success | failure
		),
		fetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "snapshot_fetches_total",
				Help:      "Snapshot fetch attempts by result.",
			},
			[]string{"result"}, // success | failure | throttled
		),
		lastSuccess: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "snapshot_last_success_timestamp_seconds",
				Help:      "Unix time of the last published snapshot per account.",
			},
			[]string{"account"},
		),
		snapshotSeq: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "snapshot_sequence",
				Help:      "Sequence number of the last published snapshot per account.",
			},
			[]string{"account"},
		),
		logins: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "login_attempts_total",
				Help:      "Kraken token login attempts by result.",
			},
			[]string{"result"}, // success | retry | failure
		),
		commands: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "commands_total",
				Help:      "Device commands by kind and result.",
			},
			[]string{"kind", "result"},
		),
		apiRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_requests_total",
				Help:      "GraphQL requests by operation and outcome.",
			},
			[]string{"operation", "outcome"},
		),
		pendingActions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "pending_actions",
				Help:      "Optimistic device states waiting for confirmation.",
			},
		),
	}

	registerer.MustRegister(
		m.fetchDuration,
		m.fetches,
		m.lastSuccess,
		m.snapshotSeq,
		m.logins,
		m.commands,
		m.apiRequests,
		m.pendingActions,
	)

	return m
}

func (m *Metrics) ObserveFetch(duration time.Duration, err error) {
	if m == nil {
		return
	}

	result := "success"
	if err != nil {
		result = "failure"
	}
	m.fetchDuration.WithLabelValues(result).Observe(duration.Seconds())
	m.fetches.WithLabelValues(result).Inc()
}

func (m *Metrics) IncThrottled() {
	if m == nil {
		return
	}
	m.fetches.WithLabelValues("throttled").Inc()
}

func (m *Metrics) SetPublished(account string, seq uint64, at time.Time) {
	if m == nil {
		return
	}
	m.lastSuccess.WithLabelValues(account).Set(float64(at.Unix()))
	m.snapshotSeq.WithLabelValues(account).Set(float64(seq))
}

func (m *Metrics) IncLogin(result string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(result).Inc()
}

func (m *Metrics) IncCommand(kind, result string) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) IncAPIRequest(operation, outcome string) {
	if m == nil {
		return
	}
	if operation == "" {
		operation = "unnamed"
	}
	m.apiRequests.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) SetPendingActions(count int) {
	if m == nil {
		return
	}
	m.pendingActions.Set(float64(count))
}
