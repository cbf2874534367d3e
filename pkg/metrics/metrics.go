package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Dispatch metrics
	MailDispatched = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mailme_dispatched_total",
		Help: "Total number of notification deliveries handed to the dispatcher",
	}, []string{"host", "mode"})

	// Delivery metrics
	MailSendSuccess = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mailme_send_success_total",
		Help: "Total number of successful mail sends",
	}, []string{"host"})
	MailSendFailure = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mailme_send_failure_total",
		Help: "Total number of failed mail send attempts",
	}, []string{"host"})
	MailRetryScheduled = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mailme_retry_scheduled_total",
		Help: "Total number of retries scheduled after a transient send failure",
	}, []string{"host"})
	MailDeliveryExhausted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mailme_delivery_exhausted_total",
		Help: "Total number of deliveries abandoned after the retry budget ran out",
	}, []string{"host"})
	MailDeliveryFatal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mailme_delivery_fatal_total",
		Help: "Total number of deliveries aborted on a non-retryable failure",
	}, []string{"host"})
)

func init() {
	prometheus.MustRegister(MailDispatched)
	prometheus.MustRegister(MailSendSuccess)
	prometheus.MustRegister(MailSendFailure)
	prometheus.MustRegister(MailRetryScheduled)
	prometheus.MustRegister(MailDeliveryExhausted)
	prometheus.MustRegister(MailDeliveryFatal)
}

// MetricsHandler returns an http.Handler exposing Prometheus metrics.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
