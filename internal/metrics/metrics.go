// Package metrics collects and exposes Prometheus metrics for the
// account-security subsystem.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector gathers counters for authentication outcomes, rate limiting,
// and the audit pipeline.
type Collector struct {
	registry *prometheus.Registry

	loginAttempts        *prometheus.CounterVec
	rateLimitDenied      *prometheus.CounterVec
	rateLimitFailOpen    prometheus.Counter
	securityEvents       *prometheus.CounterVec
	suspiciousActivities *prometheus.CounterVec
}

// NewCollector creates a Collector and registers its metrics on a fresh
// registry.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		loginAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "civicauth_login_attempts_total",
			Help: "Login attempts by outcome.",
		}, []string{"outcome"}),
		rateLimitDenied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "civicauth_rate_limit_denied_total",
			Help: "Requests denied by the rate limiter, by purpose.",
		}, []string{"kind"}),
		rateLimitFailOpen: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "civicauth_rate_limit_fail_open_total",
			Help: "Rate-limit checks allowed because the counter store was unreachable.",
		}),
		securityEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "civicauth_security_events_total",
			Help: "Security events written, by type.",
		}, []string{"event_type"}),
		suspiciousActivities: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "civicauth_suspicious_activities_total",
			Help: "Suspicious activities detected, by severity.",
		}, []string{"severity"}),
	}

	c.registry.MustRegister(
		c.loginAttempts,
		c.rateLimitDenied,
		c.rateLimitFailOpen,
		c.securityEvents,
		c.suspiciousActivities,
	)
	return c
}

// RecordLoginAttempt counts one login attempt by outcome
// ("success", "failure", "locked").
func (c *Collector) RecordLoginAttempt(outcome string) {
	c.loginAttempts.WithLabelValues(outcome).Inc()
}

// RecordRateLimitDenied counts one denied request for a purpose.
func (c *Collector) RecordRateLimitDenied(kind string) {
	c.rateLimitDenied.WithLabelValues(kind).Inc()
}

// RecordRateLimitFailOpen counts one fail-open allowance.
func (c *Collector) RecordRateLimitFailOpen() {
	c.rateLimitFailOpen.Inc()
}

// RecordSecurityEvent counts one audit record by type.
func (c *Collector) RecordSecurityEvent(eventType string) {
	c.securityEvents.WithLabelValues(eventType).Inc()
}

// RecordSuspiciousActivity counts one detection by severity.
func (c *Collector) RecordSuspiciousActivity(severity string) {
	c.suspiciousActivities.WithLabelValues(severity).Inc()
}

// Handler returns the HTTP handler serving the /metrics endpoint.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
