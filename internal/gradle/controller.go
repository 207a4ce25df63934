package gradle

import (
	"context"
	"log/slog"
	"strings"
	"time"

	berrors "github.com/ConnectionMaster/flutter/internal/errors"
	"github.com/ConnectionMaster/flutter/internal/metrics"
	"github.com/ConnectionMaster/flutter/internal/retry"
	"github.com/ConnectionMaster/flutter/internal/telemetry"
)

// attemptRunner is the slice of Invoker the controller needs; narrowed for tests.
type attemptRunner interface {
	Run(ctx context.Context, target BuildTarget, attemptIndex int) (*Attempt, error)
}

// AttemptRecord is the append-only log entry for one attempt within a run.
type AttemptRecord struct {
	Index     int // 0-based, monotonically increasing within a run
	ExitCode  int
	Signature string        // matched signature label, empty when none
	Backoff   time.Duration // delay that preceded this attempt
}

// RunResult summarizes a successful (or ignored-failure) controller run.
type RunResult struct {
	Attempts  []AttemptRecord
	Recovered bool   // success came after one or more signature-triggered retries
	Signature string // signature credited with the retries, when Recovered
	Ignored   bool   // a signature handler downgraded the failure to success
}

// Controller turns failed attempts plus matched signatures into retry, abort,
// or ignore outcomes. Attempts are strictly sequential: each classification
// depends on the prior attempt's fully drained output. State is per-run; a
// Controller may be reused across runs.
type Controller struct {
	invoker    attemptRunner
	signatures []Signature
	policy     retry.Policy
	recorder   metrics.Recorder
	emitter    telemetry.Emitter
	sleep      func(time.Duration) // injectable scheduling suspension
}

// NewController assembles a controller. A nil recorder or emitter falls back
// to the no-op implementations.
func NewController(invoker attemptRunner, signatures []Signature, policy retry.Policy, recorder metrics.Recorder, emitter telemetry.Emitter) *Controller {
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	if emitter == nil {
		emitter = telemetry.NoopEmitter{}
	}
	return &Controller{
		invoker:    invoker,
		signatures: signatures,
		policy:     policy,
		recorder:   recorder,
		emitter:    emitter,
		sleep:      time.Sleep,
	}
}

// Run drives attempts for one target until success, an abort decision, an
// unmatched failure, or retry budget exhaustion. The attempt index resets to
// zero for every call.
func (c *Controller) Run(ctx context.Context, runID string, target BuildTarget) (*RunResult, error) {
	result := &RunResult{}
	var pendingBackoff time.Duration
	var retrySignature string

	for attempt := 0; ; attempt++ {
		att, err := c.invoker.Run(ctx, target, attempt)
		if err != nil {
			// Spawn failure: fatal, never signature-matched.
			return nil, err
		}
		c.recorder.IncAttempt(string(target.Artifact))
		result.Attempts = append(result.Attempts, AttemptRecord{
			Index:    attempt,
			ExitCode: att.ExitCode,
			Backoff:  pendingBackoff,
		})

		if att.ExitCode == 0 {
			if attempt > 0 && retrySignature != "" {
				result.Recovered = true
				result.Signature = retrySignature
				slog.Info("Build recovered after retries", "signature", retrySignature, "attempts", attempt+1)
				c.emitter.Emit(telemetry.Event{
					Kind:      telemetry.EventRecovered,
					RunID:     runID,
					Artifact:  string(target.Artifact),
					Mode:      string(target.Mode),
					Signature: retrySignature,
					Attempts:  attempt + 1,
				})
			}
			return result, nil
		}

		sig, line, matched := Match(c.signatures, att.Lines)
		if !matched {
			return nil, c.unclassified(runID, target, att, attempt+1)
		}
		result.Attempts[len(result.Attempts)-1].Signature = sig.Label

		switch sig.Handle(ctx, line) {
		case DecisionIgnore:
			slog.Info("Ignoring non-fatal toolchain failure", "signature", sig.Label, "exit_code", att.ExitCode)
			result.Ignored = true
			return result, nil
		case DecisionAbort:
			c.emitter.Emit(telemetry.Event{
				Kind:      telemetry.EventBuildFailure,
				RunID:     runID,
				Artifact:  string(target.Artifact),
				Mode:      string(target.Mode),
				Signature: sig.Label,
				Attempts:  attempt + 1,
			})
			return nil, berrors.New(berrors.CategoryToolchain, berrors.SeverityFatal,
				"gradle build failed: "+sig.Label).
				WithExitCode(att.ExitCode).
				WithContext("signature", sig.Label)
		case DecisionRetry:
			if attempt == c.policy.MaxRetries {
				c.recorder.IncRetryExhausted(sig.Label)
				c.emitter.Emit(telemetry.Event{
					Kind:      telemetry.EventBuildFailure,
					RunID:     runID,
					Artifact:  string(target.Artifact),
					Mode:      string(target.Mode),
					Signature: sig.Label,
					Attempts:  attempt + 1,
				})
				return nil, berrors.New(berrors.CategoryToolchain, berrors.SeverityFatal,
					"retry budget exhausted: "+sig.Label).
					WithExitCode(att.ExitCode).
					WithContext("signature", sig.Label).
					WithContext("attempts", attempt+1)
			}
			retrySignature = sig.Label
			pendingBackoff = c.policy.Delay(attempt + 1)
			c.recorder.IncRetry(sig.Label)
			slog.Warn("Retrying Gradle build", "signature", sig.Label, "attempt", attempt+1, "backoff", pendingBackoff)
			c.sleep(pendingBackoff)
		}
	}
}

// unclassified surfaces the raw exit code and the captured output verbatim.
// It emits the run's failure event; no signature label is attached.
func (c *Controller) unclassified(runID string, target BuildTarget, att *Attempt, attempts int) error {
	c.emitter.Emit(telemetry.Event{
		Kind:     telemetry.EventBuildFailure,
		RunID:    runID,
		Artifact: string(target.Artifact),
		Mode:     string(target.Mode),
		Attempts: attempts,
	})
	return berrors.New(berrors.CategoryToolchain, berrors.SeverityFatal,
		"gradle exited with an unrecognized error").
		WithExitCode(att.ExitCode).
		WithContext("output", strings.Join(att.Lines, "\n"))
}
