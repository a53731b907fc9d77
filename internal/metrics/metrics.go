package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the service's Prometheus collectors. A nil *Metrics is valid and records
// nothing, so components can take one optionally.
type Metrics struct {
	QueueActions   *prometheus.CounterVec
	QueueDuration  *prometheus.HistogramVec
	QueueDepth     prometheus.Gauge
	LikeWrites     *prometheus.CounterVec
	StatsSessions  prometheus.Gauge
	HTTPRequests   *prometheus.CounterVec
	HTTPDuration   *prometheus.HistogramVec
	PurchasesTotal *prometheus.CounterVec
	UploadsTotal   *prometheus.CounterVec
}

// New registers the collectors with reg. Pass prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		QueueActions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "save_queue_actions_total",
				Help: "Save queue items by action and outcome",
			},
			[]string{"action", "outcome"},
		),
		QueueDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "save_queue_action_duration_seconds",
				Help:    "Backend call duration per save queue item",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"action"},
		),
		QueueDepth: f.NewGauge(prometheus.GaugeOpts{
			Name: "save_queue_pending_items",
			Help: "Items waiting in all save queues",
		}),
		LikeWrites: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "like_writes_total",
				Help: "Like set writes by outcome",
			},
			[]string{"outcome"},
		),
		StatsSessions: f.NewGauge(prometheus.GaugeOpts{
			Name: "post_stats_sessions",
			Help: "Live post stats sessions",
		}),
		HTTPRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "HTTP requests by method, route and status",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		PurchasesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "purchases_total",
				Help: "Resource purchases by outcome",
			},
			[]string{"outcome"},
		),
		UploadsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "uploads_total",
				Help: "File uploads by kind",
			},
			[]string{"kind"},
		),
	}
}

func (m *Metrics) ObserveQueueAction(action, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.QueueActions.WithLabelValues(action, outcome).Inc()
	m.QueueDuration.WithLabelValues(action).Observe(d.Seconds())
}

func (m *Metrics) AddQueueDepth(delta float64) {
	if m == nil {
		return
	}
	m.QueueDepth.Add(delta)
}

func (m *Metrics) LikeWrite(outcome string) {
	if m == nil {
		return
	}
	m.LikeWrites.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SetSessions(n int) {
	if m == nil {
		return
	}
	m.StatsSessions.Set(float64(n))
}

func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (m *Metrics) Purchase(outcome string) {
	if m == nil {
		return
	}
	m.PurchasesTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Upload(kind string) {
	if m == nil {
		return
	}
	m.UploadsTotal.WithLabelValues(kind).Inc()
}
