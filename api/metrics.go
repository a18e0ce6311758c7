package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"hookdeploy/runner"
)

var histogramBuckets = []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10}

// Metrics holds the service's prometheus collectors.
type Metrics struct {
	gatherer          prometheus.Gatherer
	requestTotal      *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
	webhookResults    *prometheus.CounterVec
	deploymentResults *prometheus.CounterVec
	deploymentSeconds *prometheus.HistogramVec
}

// NewMetrics registers the collectors on reg. liveJobs, when set, backs a
// gauge of currently running deployments.
func NewMetrics(reg *prometheus.Registry, liveJobs func() int) *Metrics {
	m := &Metrics{
		gatherer: reg,
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hookdeploy",
			Name:      "http_requests_total",
			Help:      "Count of processed HTTP requests",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "hookdeploy",
			Name:      "http_request_duration_seconds",
			Help:      "Latency distribution of HTTP handlers",
			Buckets:   histogramBuckets,
		}, []string{"method", "route", "status"}),
		webhookResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hookdeploy",
			Name:      "webhook_results_total",
			Help:      "Number of webhook handler outcomes",
		}, []string{"outcome"}),
		deploymentResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hookdeploy",
			Name:      "deployment_results_total",
			Help:      "Number of finished deployments by status",
		}, []string{"project", "status"}),
		deploymentSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "hookdeploy",
			Name:      "deployment_duration_seconds",
			Help:      "Wall time of deployment scripts",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}, []string{"status"}),
	}
	reg.MustRegister(m.requestTotal, m.requestDuration, m.webhookResults, m.deploymentResults, m.deploymentSeconds)
	if liveJobs != nil {
		reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "hookdeploy",
			Name:      "live_jobs",
			Help:      "Deployments currently running",
		}, func() float64 { return float64(liveJobs()) }))
	}
	return m
}

// Handler exposes the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) recordRequest(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labels := prometheus.Labels{
		"method": method,
		"route":  route,
		"status": strconv.Itoa(status),
	}
	m.requestTotal.With(labels).Inc()
	m.requestDuration.With(labels).Observe(duration.Seconds())
}

func (m *Metrics) recordWebhook(outcome string) {
	if m == nil {
		return
	}
	m.webhookResults.With(prometheus.Labels{"outcome": outcome}).Inc()
}

// RecordDeployment counts a finished deployment. It matches Service.OnFinish.
func (m *Metrics) RecordDeployment(result runner.Result) {
	if m == nil {
		return
	}
	m.deploymentResults.With(prometheus.Labels{"project": result.Project, "status": result.Status}).Inc()
	m.deploymentSeconds.With(prometheus.Labels{"status": result.Status}).Observe(result.Duration().Seconds())
}
