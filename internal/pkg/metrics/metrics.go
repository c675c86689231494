// Package metrics exposes Prometheus collectors for ticket issuance,
// delivery, validation and the HTTP API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "campuspass"

// Metrics holds every collector. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	ticketsIssued     *prometheus.CounterVec
	deliveryOutcomes  *prometheus.CounterVec
	deliveryRuns      *prometheus.CounterVec
	deliveryInFlight  prometheus.Gauge
	mailSendDuration  *prometheus.HistogramVec
	validationResults *prometheus.CounterVec
	gateClients       *prometheus.GaugeVec
	httpRequests      *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		ticketsIssued: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tickets_issued_total",
				Help:      "Tickets issued, by outcome",
			},
			[]string{"outcome"},
		),
		deliveryOutcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ticket_deliveries_total",
				Help:      "Ticket email deliveries, by category and error type",
			},
			[]string{"category", "error_type"},
		),
		deliveryRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "delivery_runs_total",
				Help:      "Bulk delivery runs, by final status",
			},
			[]string{"status"},
		),
		deliveryInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "delivery_run_in_progress",
				Help:      "1 while a bulk delivery run is active",
			},
		),
		mailSendDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "mail_send_duration_seconds",
				Help:      "Duration of a single ticket email send",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
			},
			[]string{"success"},
		),
		validationResults: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ticket_validations_total",
				Help:      "Gate validations, by result",
			},
			[]string{"result"},
		),
		gateClients: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "gate_feed_clients",
				Help:      "Connected gate feed clients per event",
			},
			[]string{"event"},
		),
		httpRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests, by route and status",
			},
			[]string{"method", "route", "status"},
		),
		httpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// TicketIssued counts one ticket generation attempt by outcome.
func (m *Metrics) TicketIssued(outcome string) {
	if m == nil {
		return
	}
	m.ticketsIssued.WithLabelValues(outcome).Inc()
}

// DeliveryOutcome counts one processed ticket of a delivery run by report
// category and error type.
func (m *Metrics) DeliveryOutcome(category, errorType string) {
	if m == nil {
		return
	}
	m.deliveryOutcomes.WithLabelValues(category, errorType).Inc()
}

// DeliveryRunStarted marks a run active. The returned func records its final status.
func (m *Metrics) DeliveryRunStarted() func(status string) {
	if m == nil {
		return func(string) {}
	}
	m.deliveryInFlight.Set(1)
	return func(status string) {
		m.deliveryInFlight.Set(0)
		m.deliveryRuns.WithLabelValues(status).Inc()
	}
}

// MailSent observes the duration of one SMTP send.
func (m *Metrics) MailSent(d time.Duration, success bool) {
	if m == nil {
		return
	}
	label := "false"
	if success {
		label = "true"
	}
	m.mailSendDuration.WithLabelValues(label).Observe(d.Seconds())
}

// TicketValidated counts one gate validation by result.
func (m *Metrics) TicketValidated(result string) {
	if m == nil {
		return
	}
	m.validationResults.WithLabelValues(result).Inc()
}

// GateClients sets the number of scanners watching event.
func (m *Metrics) GateClients(event string, n int) {
	if m == nil {
		return
	}
	m.gateClients.WithLabelValues(event).Set(float64(n))
}

// HTTPRequest records one served request. route is the matched pattern,
// not the raw path.
func (m *Metrics) HTTPRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
