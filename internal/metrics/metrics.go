package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shenikar/emergency_response_system/internal/models"
)

const namespace = "emergency_response"

type Metrics struct {
	registry *prometheus.Registry

	RequestsTotal        *prometheus.CounterVec
	RequestDuration      *prometheus.HistogramVec
	IncidentTransitions  *prometheus.CounterVec
	IncidentAssignments  prometheus.Counter
	NotificationFailures prometheus.Counter
	IncidentsByStatus    *prometheus.GaugeVec
}

// New создает набор метрик на отдельном реестре
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.RequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests processed, by method, route and status",
	}, []string{"method", "route", "status"})
	m.RequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})
	m.IncidentTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "incident_transitions_total",
		Help:      "Incident status transitions",
	}, []string{"from", "to"})
	m.IncidentAssignments = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "incident_assignments_total",
		Help:      "Responder assignments applied to incidents",
	})
	m.NotificationFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notification_failures_total",
		Help:      "Incident events that could not be published",
	})
	m.IncidentsByStatus = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "incidents_by_status",
		Help:      "Stored incidents per status",
	}, []string{"status"})

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.RequestsTotal,
		m.RequestDuration,
		m.IncidentTransitions,
		m.IncidentAssignments,
		m.NotificationFailures,
		m.IncidentsByStatus,
	)
	return m
}

// Handler отдает метрики в формате Prometheus
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveTransition учитывает смену статуса инцидента
func (m *Metrics) ObserveTransition(from, to models.IncidentStatus) {
	m.IncidentTransitions.WithLabelValues(string(from), string(to)).Inc()
}

// SetStatusCounts обновляет gauge по статусам; отсутствующие статусы обнуляются
func (m *Metrics) SetStatusCounts(counts map[models.IncidentStatus]int) {
	for _, s := range models.IncidentStatuses {
		m.IncidentsByStatus.WithLabelValues(string(s)).Set(float64(counts[s]))
	}
}

// GinMiddleware считает запросы и их длительность. В route попадает шаблон маршрута,
// чтобы идентификаторы не раздували кардинальность.
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.RequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.RequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
