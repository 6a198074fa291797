package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Token check outcomes.
const (
	CheckValid   = "valid"
	CheckInvalid = "invalid"
	CheckRevoked = "revoked"
	CheckUnknown = "unknown"
	CheckError   = "error"
)

const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultError   = "error"
)

// Metrics groups the service collectors. A nil *Metrics is a valid no-op.
type Metrics struct {
	Logins      *prometheus.CounterVec
	Logouts     *prometheus.CounterVec
	TokenChecks *prometheus.CounterVec

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		Logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "auth",
			Name:      "logins_total",
			Help:      "Login attempts partitioned by result.",
		}, []string{"result"}),
		Logouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "auth",
			Name:      "logouts_total",
			Help:      "Logout attempts partitioned by result.",
		}, []string{"result"}),
		TokenChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "auth",
			Name:      "token_checks_total",
			Help:      "Access token checks partitioned by outcome.",
		}, []string{"result"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "auth",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests partitioned by method, route and status code.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "auth",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latencies in seconds partitioned by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	for _, c := range []prometheus.Collector{m.Logins, m.Logouts, m.TokenChecks, m.HTTPRequests, m.HTTPDuration} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register collector: %w", err)
		}
	}
	return m, nil
}

func (m *Metrics) TokenChecked(result string) {
	if m == nil {
		return
	}
	m.TokenChecks.WithLabelValues(result).Inc()
}

func (m *Metrics) LoginAttempted(result string) {
	if m == nil {
		return
	}
	m.Logins.WithLabelValues(result).Inc()
}

func (m *Metrics) LogoutAttempted(result string) {
	if m == nil {
		return
	}
	m.Logouts.WithLabelValues(result).Inc()
}
