package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the payment collectors. A nil *Metrics is valid and records
// nothing, which keeps tests free of registry setup.
type Metrics struct {
	registry      *prometheus.Registry
	sessions      *prometheus.CounterVec
	verifications *prometheus.CounterVec
	providerCalls *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "payment",
			Name:      "sessions_created_total",
			Help:      "Payment sessions persisted after a successful provider initialization.",
		}, []string{"payment_type", "provider"}),
		verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "payment",
			Name:      "verifications_total",
			Help:      "Verification outcomes: success, failed, cached or error.",
		}, []string{"outcome"}),
		providerCalls: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "payment",
			Name:      "provider_request_duration_seconds",
			Help:      "Latency of outbound provider calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider", "operation", "result"}),
	}

	m.registry.MustRegister(
		m.sessions,
		m.verifications,
		m.providerCalls,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) SessionCreated(paymentType, provider string) {
	if m == nil {
		return
	}
	m.sessions.WithLabelValues(paymentType, provider).Inc()
}

func (m *Metrics) Verification(outcome string) {
	if m == nil {
		return
	}
	m.verifications.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ProviderCall(provider, operation string, err error, d time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.providerCalls.WithLabelValues(provider, operation, result).Observe(d.Seconds())
}

// Handler exposes the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

type Timer struct {
	start time.Time
}

func StartTimer() *Timer {
	return &Timer{start: time.Now()}
}

func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
