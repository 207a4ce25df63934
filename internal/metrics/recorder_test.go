package metrics

import (
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestNoopRecorderIsSafe(t *testing.T) {
	var r Recorder = NoopRecorder{}
	r.ObserveBuildDuration("apk", time.Second)
	r.IncBuildOutcome("apk", OutcomeSuccess)
	r.IncAttempt("apk")
	r.IncRetry("network")
	r.IncRetryExhausted("network")
}

func TestPrometheusRecorderRegisters(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)

	pr.IncAttempt("appbundle")
	pr.IncAttempt("appbundle")
	pr.IncRetry("network")
	pr.IncBuildOutcome("appbundle", OutcomeRecovered)
	pr.ObserveBuildDuration("appbundle", 2*time.Second)

	families, err := reg.Gather()
	require.NoError(t, err)

	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	require.True(t, names["flutterbuild_build_attempts_total"])
	require.True(t, names["flutterbuild_build_retries_total"])
	require.True(t, names["flutterbuild_build_outcomes_total"])
	require.True(t, names["flutterbuild_build_duration_seconds"])
}

func TestPrometheusRecorderNilSafe(t *testing.T) {
	var pr *PrometheusRecorder
	pr.IncAttempt("apk")
	pr.IncRetry("network")
	pr.IncRetryExhausted("network")
	pr.IncBuildOutcome("apk", OutcomeFailed)
	pr.ObserveBuildDuration("apk", time.Second)
}
