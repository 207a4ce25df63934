package gradle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ConnectionMaster/flutter/internal/config"
	berrors "github.com/ConnectionMaster/flutter/internal/errors"
	"github.com/ConnectionMaster/flutter/internal/retry"
	"github.com/ConnectionMaster/flutter/internal/telemetry"
)

// scriptedInvoker yields one scripted attempt per call.
type scriptedInvoker struct {
	attempts []scriptedAttempt
	calls    int
}

type scriptedAttempt struct {
	exitCode int
	lines    []string
	err      error
}

func (s *scriptedInvoker) Run(_ context.Context, _ BuildTarget, attemptIndex int) (*Attempt, error) {
	i := s.calls
	s.calls++
	if i >= len(s.attempts) {
		i = len(s.attempts) - 1
	}
	a := s.attempts[i]
	if a.err != nil {
		return nil, a.err
	}
	return &Attempt{Index: attemptIndex, ExitCode: a.exitCode, Lines: a.lines}, nil
}

// captureEmitter records emitted events in order.
type captureEmitter struct {
	events []telemetry.Event
}

func (c *captureEmitter) Emit(e telemetry.Event) { c.events = append(c.events, e) }

func linearPolicy(maxRetries int) retry.Policy {
	return retry.NewPolicy(config.RetryBackoffLinear, 100*time.Millisecond, 10*time.Second, maxRetries)
}

func newTestController(inv attemptRunner, sigs []Signature, maxRetries int) (*Controller, *captureEmitter, *[]time.Duration) {
	emitter := &captureEmitter{}
	delays := &[]time.Duration{}
	c := NewController(inv, sigs, linearPolicy(maxRetries), nil, emitter)
	c.sleep = func(d time.Duration) { *delays = append(*delays, d) }
	return c, emitter, delays
}

func apkTarget() BuildTarget {
	return BuildTarget{Artifact: ArtifactApk, Mode: ModeRelease, Archs: []AndroidArch{ArchArm64}}
}

func TestSuccessOnFirstAttempt(t *testing.T) {
	inv := &scriptedInvoker{attempts: []scriptedAttempt{{exitCode: 0}}}
	c, emitter, delays := newTestController(inv, DefaultSignatures(), 2)

	result, err := c.Run(context.Background(), "run-1", apkTarget())
	require.NoError(t, err)
	require.Equal(t, 1, inv.calls)
	require.Len(t, result.Attempts, 1)
	require.False(t, result.Recovered)
	require.Empty(t, *delays)
	require.Empty(t, emitter.events, "no remediation bookkeeping on clean success")
}

func TestRetriesThenRecovers(t *testing.T) {
	network := "java.net.SocketException: Connection reset"
	inv := &scriptedInvoker{attempts: []scriptedAttempt{
		{exitCode: 1, lines: []string{network}},
		{exitCode: 1, lines: []string{network}},
		{exitCode: 0},
	}}
	c, emitter, delays := newTestController(inv, DefaultSignatures(), 2)

	result, err := c.Run(context.Background(), "run-1", apkTarget())
	require.NoError(t, err)
	require.Equal(t, 3, inv.calls)
	require.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}, *delays)
	require.True(t, result.Recovered)
	require.Equal(t, "network", result.Signature)

	require.Len(t, emitter.events, 1)
	require.Equal(t, telemetry.EventRecovered, emitter.events[0].Kind)
	require.Equal(t, "network", emitter.events[0].Signature)
	require.Equal(t, 3, emitter.events[0].Attempts)
}

func TestRetryBudgetExhaustedAttributedToSignature(t *testing.T) {
	network := "java.net.SocketException: Connection reset"
	inv := &scriptedInvoker{attempts: []scriptedAttempt{
		{exitCode: 1, lines: []string{network}},
	}}
	c, _, delays := newTestController(inv, DefaultSignatures(), 2)

	_, err := c.Run(context.Background(), "run-1", apkTarget())
	require.Error(t, err)
	require.Equal(t, 3, inv.calls, "maxRetries=2 means at most 3 attempts")
	require.Len(t, *delays, 2)

	var be *berrors.BuildError
	require.ErrorAs(t, err, &be)
	require.Contains(t, be.Message, "retry budget exhausted")
	require.Equal(t, "network", be.Context["signature"], "exhaustion is attributed, not unclassified")
	require.Equal(t, 1, be.ExitCode)
}

func TestUnclassifiedFailureIsImmediatelyFatal(t *testing.T) {
	inv := &scriptedInvoker{attempts: []scriptedAttempt{
		{exitCode: 7, lines: []string{"something nobody has seen before"}},
	}}
	c, emitter, delays := newTestController(inv, DefaultSignatures(), 2)

	_, err := c.Run(context.Background(), "run-1", apkTarget())
	require.Error(t, err)
	require.Equal(t, 1, inv.calls)
	require.Empty(t, *delays)

	var be *berrors.BuildError
	require.ErrorAs(t, err, &be)
	require.Equal(t, 7, be.ExitCode)
	require.Contains(t, be.Context["output"], "something nobody has seen before")

	require.Len(t, emitter.events, 1, "exactly one failure event per terminal outcome")
	require.Equal(t, telemetry.EventBuildFailure, emitter.events[0].Kind)
	require.Empty(t, emitter.events[0].Signature)
	require.Equal(t, 1, emitter.events[0].Attempts)
}

func TestAbortDecisionSurfacesLabel(t *testing.T) {
	inv := &scriptedInvoker{attempts: []scriptedAttempt{
		{exitCode: 1, lines: []string{"You have not accepted the license agreements"}},
	}}
	c, emitter, _ := newTestController(inv, DefaultSignatures(), 2)

	_, err := c.Run(context.Background(), "run-1", apkTarget())
	require.Error(t, err)
	require.Equal(t, 1, inv.calls)

	var be *berrors.BuildError
	require.ErrorAs(t, err, &be)
	require.Equal(t, "license-not-accepted", be.Context["signature"])

	require.Len(t, emitter.events, 1)
	require.Equal(t, telemetry.EventBuildFailure, emitter.events[0].Kind)
	require.Equal(t, "license-not-accepted", emitter.events[0].Signature)
}

func TestIgnoreDecisionTreatsFailureAsSuccess(t *testing.T) {
	inv := &scriptedInvoker{attempts: []scriptedAttempt{
		{exitCode: 1, lines: []string{"Unable to list file systems to check whether they can be watched"}},
	}}
	c, _, delays := newTestController(inv, DefaultSignatures(), 2)

	result, err := c.Run(context.Background(), "run-1", apkTarget())
	require.NoError(t, err)
	require.True(t, result.Ignored)
	require.Equal(t, 1, inv.calls)
	require.Empty(t, *delays)
}

func TestSpawnFailurePassesThroughUnmatched(t *testing.T) {
	spawnErr := berrors.Wrap(errors.New("exec: not found"), berrors.CategorySpawn, berrors.SeverityFatal, "could not start the Gradle wrapper")
	inv := &scriptedInvoker{attempts: []scriptedAttempt{{err: spawnErr}}}
	c, _, delays := newTestController(inv, DefaultSignatures(), 2)

	_, err := c.Run(context.Background(), "run-1", apkTarget())
	require.Error(t, err)
	require.True(t, berrors.IsCategory(err, berrors.CategorySpawn))
	require.Equal(t, 1, inv.calls)
	require.Empty(t, *delays, "spawn failures are never retried")
}

func TestAttemptIndicesAreMonotonic(t *testing.T) {
	network := "java.net.SocketException: Connection reset"
	inv := &scriptedInvoker{attempts: []scriptedAttempt{
		{exitCode: 1, lines: []string{network}},
		{exitCode: 1, lines: []string{network}},
		{exitCode: 0},
	}}
	c, _, _ := newTestController(inv, DefaultSignatures(), 2)

	result, err := c.Run(context.Background(), "run-1", apkTarget())
	require.NoError(t, err)
	for i, att := range result.Attempts {
		require.Equal(t, i, att.Index)
	}
	require.Equal(t, time.Duration(0), result.Attempts[0].Backoff)
	require.Equal(t, 100*time.Millisecond, result.Attempts[1].Backoff)
	require.Equal(t, 200*time.Millisecond, result.Attempts[2].Backoff)
}
