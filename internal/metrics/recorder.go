package metrics

import "time"

// OutcomeLabel enumerates terminal build outcomes for counters.
type OutcomeLabel string

const (
	OutcomeSuccess   OutcomeLabel = "success"
	OutcomeRecovered OutcomeLabel = "recovered"
	OutcomeFailed    OutcomeLabel = "failed"
)

// Recorder defines observability hooks for build runs. Implementations may
// forward to Prometheus, OpenTelemetry, etc. All methods must be safe for
// zero-value receivers when using the NoopRecorder (allowing optional injection).
type Recorder interface {
	ObserveBuildDuration(artifact string, d time.Duration)
	IncBuildOutcome(artifact string, outcome OutcomeLabel)
	IncAttempt(artifact string)
	IncRetry(signature string)
	IncRetryExhausted(signature string)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveBuildDuration(string, time.Duration) {}
func (NoopRecorder) IncBuildOutcome(string, OutcomeLabel)       {}
func (NoopRecorder) IncAttempt(string)                          {}
func (NoopRecorder) IncRetry(string)                            {}
func (NoopRecorder) IncRetryExhausted(string)                   {}
