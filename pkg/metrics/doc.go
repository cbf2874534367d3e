// Package metrics defines Prometheus metrics for the notification core,
// covering dispatches, send attempts, retries, and terminal delivery outcomes.
package metrics
