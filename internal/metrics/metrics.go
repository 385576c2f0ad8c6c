// Package metrics exposes Prometheus collectors for the HTTP layer and the engines.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector. A nil *Metrics is valid and records nothing.
type Metrics struct {
	gatherer prometheus.Gatherer

	httpRequests        *prometheus.CounterVec
	httpDuration        *prometheus.HistogramVec
	consultationsStart  prometheus.Counter
	consultationsEnd    prometheus.Counter
	consultationSeconds prometheus.Histogram
	orderTransitions    *prometheus.CounterVec
	outboxPublished     *prometheus.CounterVec
}

// New registers the collectors on reg.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		gatherer: reg,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
		consultationsStart: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "consultations_started_total",
			Help: "Consultations started.",
		}),
		consultationsEnd: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "consultations_completed_total",
			Help: "Consultations completed.",
		}),
		consultationSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "consultation_active_seconds",
			Help:    "Active (unpaused) time of completed consultations.",
			Buckets: []float64{300, 600, 900, 1800, 2700, 3600, 5400, 7200},
		}),
		orderTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "prosthetic_order_transitions_total",
			Help: "Prosthetic order status changes.",
		}, []string{"from", "to"}),
		outboxPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "outbox_events_published_total",
			Help: "Outbox events relayed to the broker.",
		}, []string{"result"}),
	}
	reg.MustRegister(
		m.httpRequests, m.httpDuration,
		m.consultationsStart, m.consultationsEnd, m.consultationSeconds,
		m.orderTransitions, m.outboxPublished,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency per route template.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.httpRequests.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpDuration.WithLabelValues(route, c.Request.Method).Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) ConsultationStarted() {
	if m != nil {
		m.consultationsStart.Inc()
	}
}

func (m *Metrics) ConsultationCompleted(activeSeconds int64) {
	if m != nil {
		m.consultationsEnd.Inc()
		m.consultationSeconds.Observe(float64(activeSeconds))
	}
}

func (m *Metrics) OrderTransition(from, to string) {
	if m != nil {
		m.orderTransitions.WithLabelValues(from, to).Inc()
	}
}

func (m *Metrics) OutboxPublished(ok bool) {
	if m == nil {
		return
	}
	result := "success"
	if !ok {
		result = "failure"
	}
	m.outboxPublished.WithLabelValues(result).Inc()
}
