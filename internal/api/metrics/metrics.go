// Package metrics exposes Prometheus collectors for the REST API.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// EnrollmentsTotal counts enrollment requests by outcome.
	EnrollmentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mtlsid_enrollments_total",
		Help: "Enrollment requests processed, by outcome.",
	}, []string{"outcome"})

	// CertificatesIssuedTotal counts issued certificates by role.
	CertificatesIssuedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mtlsid_certificates_issued_total",
		Help: "Certificates issued, by role.",
	}, []string{"role"})

	// RequestDuration observes HTTP request latency by route and status.
	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mtlsid_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

// Handler returns the /metrics endpoint handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
