package metrics

import (
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once             sync.Once
	buildDuration    *prom.HistogramVec
	buildOutcome     *prom.CounterVec
	attempts         *prom.CounterVec
	retries          *prom.CounterVec
	retriesExhausted *prom.CounterVec
}

// NewPrometheusRecorder constructs and registers Prometheus metrics (idempotent).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{}
	pr.once.Do(func() {
		pr.buildDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "flutterbuild",
			Name:      "build_duration_seconds",
			Help:      "Total duration of one build run, including retries",
			Buckets:   prom.DefBuckets,
		}, []string{"artifact"})
		pr.buildOutcome = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "flutterbuild",
			Name:      "build_outcomes_total",
			Help:      "Build outcomes by terminal status",
		}, []string{"artifact", "outcome"})
		pr.attempts = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "flutterbuild",
			Name:      "build_attempts_total",
			Help:      "Gradle invocations, counting every retry",
		}, []string{"artifact"})
		pr.retries = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "flutterbuild",
			Name:      "build_retries_total",
			Help:      "Retries triggered by a matched failure signature",
		}, []string{"signature"})
		pr.retriesExhausted = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "flutterbuild",
			Name:      "build_retry_exhausted_total",
			Help:      "Runs where the retry budget ran out",
		}, []string{"signature"})
		reg.MustRegister(pr.buildDuration, pr.buildOutcome, pr.attempts, pr.retries, pr.retriesExhausted)
	})
	return pr
}

func (p *PrometheusRecorder) ObserveBuildDuration(artifact string, d time.Duration) {
	if p == nil || p.buildDuration == nil {
		return
	}
	p.buildDuration.WithLabelValues(artifact).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncBuildOutcome(artifact string, outcome OutcomeLabel) {
	if p == nil || p.buildOutcome == nil {
		return
	}
	p.buildOutcome.WithLabelValues(artifact, string(outcome)).Inc()
}

func (p *PrometheusRecorder) IncAttempt(artifact string) {
	if p == nil || p.attempts == nil {
		return
	}
	p.attempts.WithLabelValues(artifact).Inc()
}

func (p *PrometheusRecorder) IncRetry(signature string) {
	if p == nil || p.retries == nil {
		return
	}
	p.retries.WithLabelValues(signature).Inc()
}

func (p *PrometheusRecorder) IncRetryExhausted(signature string) {
	if p == nil || p.retriesExhausted == nil {
		return
	}
	p.retriesExhausted.WithLabelValues(signature).Inc()
}
