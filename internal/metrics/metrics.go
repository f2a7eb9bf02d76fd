// Package metrics exposes Prometheus counters for the dispatch loop
// and an optional local status server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus metrics for a dispatch run
type Metrics struct {
	EmailsSentTotal   *prometheus.CounterVec
	EmailsFailedTotal *prometheus.CounterVec

	SendDurationSeconds prometheus.Histogram

	DispatchInFlight  prometheus.Gauge
	RecipientsTotal   prometheus.Gauge
	RecipientsPending prometheus.Gauge

	registry *prometheus.Registry
}

// New creates a new Metrics instance with all metrics registered
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		EmailsSentTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailcannon_emails_sent_total",
				Help: "Total number of emails accepted by the backend",
			},
			[]string{"account"},
		),
		EmailsFailedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailcannon_emails_failed_total",
				Help: "Total number of emails the backend rejected",
			},
			[]string{"account"},
		),
		SendDurationSeconds: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "mailcannon_send_duration_seconds",
				Help:    "Duration of individual send requests in seconds",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
			},
		),
		DispatchInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "mailcannon_dispatch_in_flight",
				Help: "1 while a dispatch loop is running",
			},
		),
		RecipientsTotal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "mailcannon_recipients_total",
				Help: "Number of recipients in the current run",
			},
		),
		RecipientsPending: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "mailcannon_recipients_pending",
				Help: "Number of recipients not yet attempted",
			},
		),
		registry: reg,
	}

	reg.MustRegister(
		m.EmailsSentTotal,
		m.EmailsFailedTotal,
		m.SendDurationSeconds,
		m.DispatchInFlight,
		m.RecipientsTotal,
		m.RecipientsPending,
	)

	return m
}

// Registry returns the underlying Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
