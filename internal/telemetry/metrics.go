package telemetry

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	JobsSubmitted    = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "gateway_jobs_submitted_total", Help: "Jobs accepted by the engine, by request kind"}, []string{"kind"})
	SubmitFailures   = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "gateway_job_submit_failures_total", Help: "Rejected or failed job submissions, by reason"}, []string{"reason"})
	MonitorPolls     = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "gateway_job_monitor_polls_total", Help: "Monitor requests, by observed job status"}, []string{"status"})
	ResultFetches    = prometheus.NewCounter(prometheus.CounterOpts{Name: "gateway_job_result_fetches_total", Help: "Job results retrieved from the engine"})
	HTTPResponses    = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "gateway_http_responses_total", Help: "HTTP responses, by status class"}, []string{"class"})
	RequestLatency   = prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: "gateway_http_request_seconds", Help: "HTTP request latency", Buckets: prometheus.DefBuckets}, []string{"route"})
	IntakeDepthGauge = prometheus.NewGauge(prometheus.GaugeOpts{Name: "gateway_intake_queue_depth", Help: "Jobs waiting in the engine intake queues"})
)

// Handler exposes /metrics HTTP handler with a singleton registry.
func Handler() http.Handler {
	once.Do(func() {
		prometheus.MustRegister(
			JobsSubmitted,
			SubmitFailures,
			MonitorPolls,
			ResultFetches,
			HTTPResponses,
			RequestLatency,
			IntakeDepthGauge,
		)
	})
	return promhttp.Handler()
}

// StatusClass buckets an HTTP status code as "2xx", "4xx" and so on.
func StatusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	case code >= 200:
		return "2xx"
	}
	return "1xx"
}
