package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "hhbot"

// Metrics holds the bot's Prometheus collectors on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	EventsTotal        *prometheus.CounterVec
	EventDuration      *prometheus.HistogramVec
	ErrorsTotal        *prometheus.CounterVec
	AutoReplyOutcomes  *prometheus.CounterVec
	ExternalDuration   *prometheus.HistogramVec
	QueueReplacedTotal prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		EventsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Chat events handled by kind.",
		}, []string{"kind"}),

		EventDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "event_duration_seconds",
			Help:      "Duration of chat event handling.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),

		ErrorsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Errors converted to user notices, by component.",
		}, []string{"component"}),

		AutoReplyOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "autoreply_outcomes_total",
			Help:      "Auto-reply candidates by result (sent, failed, skipped).",
		}, []string{"result"}),

		ExternalDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "external_request_duration_seconds",
			Help:      "Latency of calls to hh.ru and the letter generator.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"service", "op"}),

		QueueReplacedTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queue_replaced_total",
			Help:      "Vacancy queues rebuilt by /browse.",
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveEvent(kind string, started time.Time) {
	if m == nil {
		return
	}
	m.EventsTotal.WithLabelValues(kind).Inc()
	m.EventDuration.WithLabelValues(kind).Observe(time.Since(started).Seconds())
}

func (m *Metrics) IncError(component string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(component).Inc()
}

func (m *Metrics) IncOutcome(result string) {
	if m == nil {
		return
	}
	m.AutoReplyOutcomes.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveExternal(service, op string, started time.Time) {
	if m == nil {
		return
	}
	m.ExternalDuration.WithLabelValues(service, op).Observe(time.Since(started).Seconds())
}

func (m *Metrics) IncQueueReplaced() {
	if m == nil {
		return
	}
	m.QueueReplacedTotal.Inc()
}
