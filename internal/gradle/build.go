package gradle

import (
	"context"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	berrors "github.com/ConnectionMaster/flutter/internal/errors"
	"github.com/ConnectionMaster/flutter/internal/metrics"
	"github.com/ConnectionMaster/flutter/internal/observability"
	"github.com/ConnectionMaster/flutter/internal/project"
	"github.com/ConnectionMaster/flutter/internal/retry"
	"github.com/ConnectionMaster/flutter/internal/telemetry"
)

// Outcome is the terminal status of one build run.
type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomeRecovered Outcome = "recovered"
	OutcomeFailed    Outcome = "failed"
)

// RunSummary records one build run for history persistence and telemetry.
type RunSummary struct {
	RunID    string
	Artifact ArtifactKind
	Mode     BuildMode
	Outcome  Outcome
	Attempts []AttemptRecord
	Duration time.Duration
	Commit   string // project HEAD fingerprint, may be empty
}

// Orchestrator composes the invoker, retry controller, variant scheduler, and
// symbol validator into the three public build operations. It holds no
// per-run state.
type Orchestrator struct {
	project    *project.Project
	controller *Controller
	scheduler  *VariantScheduler
	lister     FileLister
	recorder   metrics.Recorder
	emitter    telemetry.Emitter
}

// Options carries the collaborator set for an Orchestrator. Zero-value fields
// fall back to production implementations.
type Options struct {
	Runner     ProcessRunner
	Lister     FileLister
	Signatures []Signature
	Policy     retry.Policy
	Recorder   metrics.Recorder
	Emitter    telemetry.Emitter
}

// NewOrchestrator builds the orchestrator for one project.
func NewOrchestrator(p *project.Project, invoker *Invoker, opts Options) *Orchestrator {
	if opts.Signatures == nil {
		opts.Signatures = DefaultSignatures()
	}
	if opts.Policy == (retry.Policy{}) {
		opts.Policy = retry.DefaultPolicy()
	}
	if opts.Recorder == nil {
		opts.Recorder = metrics.NoopRecorder{}
	}
	if opts.Emitter == nil {
		opts.Emitter = telemetry.NoopEmitter{}
	}
	if opts.Lister == nil {
		opts.Lister = UnzipLister{Runner: opts.Runner}
	}
	controller := NewController(invoker, opts.Signatures, opts.Policy, opts.Recorder, opts.Emitter)
	return &Orchestrator{
		project:    p,
		controller: controller,
		scheduler:  NewVariantScheduler(controller, p),
		lister:     opts.Lister,
		recorder:   opts.Recorder,
		emitter:    opts.Emitter,
	}
}

// BuildApp builds an installable application package.
func (o *Orchestrator) BuildApp(ctx context.Context, target BuildTarget) (*RunSummary, error) {
	target.Artifact = ArtifactApk
	return o.run(ctx, target, func(ctx context.Context, runID string) ([]AttemptRecord, bool, error) {
		result, err := o.controller.Run(ctx, runID, target)
		if err != nil {
			return nil, false, err
		}
		return result.Attempts, result.Recovered, nil
	})
}

// BuildAppBundle builds a distributable bundle and, for release mode only,
// verifies the produced bundle carries native debug symbols. Debug and
// profile bundles never touch the file-listing tool.
func (o *Orchestrator) BuildAppBundle(ctx context.Context, target BuildTarget) (*RunSummary, error) {
	target.Artifact = ArtifactAppBundle
	return o.run(ctx, target, func(ctx context.Context, runID string) ([]AttemptRecord, bool, error) {
		result, err := o.controller.Run(ctx, runID, target)
		if err != nil {
			return nil, false, err
		}
		if target.Mode == ModeRelease && !result.Ignored {
			if err := ValidateDebugSymbols(ctx, o.lister, o.bundlePath(target.Mode), target.Archs); err != nil {
				return result.Attempts, result.Recovered, err
			}
		}
		return result.Attempts, result.Recovered, nil
	})
}

// BuildAar builds a reusable library archive for each requested mode, in the
// supplied order, invoking the tooling callback after each variant.
func (o *Orchestrator) BuildAar(ctx context.Context, target BuildTarget, modes []BuildMode, generate ToolingCallback) (*RunSummary, error) {
	target.Artifact = ArtifactAar
	return o.run(ctx, target, func(ctx context.Context, runID string) ([]AttemptRecord, bool, error) {
		attempts, err := o.scheduler.Run(ctx, runID, target, modes, generate)
		return attempts, false, err
	})
}

// run wraps one operation with run identity, timing, metrics, and telemetry.
func (o *Orchestrator) run(ctx context.Context, target BuildTarget, op func(context.Context, string) ([]AttemptRecord, bool, error)) (*RunSummary, error) {
	if err := target.Validate(); err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	ctx = observability.WithRunID(ctx, runID)
	ctx = observability.WithArtifact(ctx, string(target.Artifact))
	ctx = observability.WithMode(ctx, string(target.Mode))
	observability.InfoContext(ctx, "Starting Gradle build")

	commit := o.project.HeadCommit()
	start := time.Now()
	attempts, recovered, err := op(ctx, runID)
	elapsed := time.Since(start)

	summary := &RunSummary{
		RunID:    runID,
		Artifact: target.Artifact,
		Mode:     target.Mode,
		Attempts: attempts,
		Duration: elapsed,
		Commit:   commit,
	}

	o.recorder.ObserveBuildDuration(string(target.Artifact), elapsed)
	o.emitter.Emit(telemetry.Event{
		Kind:     telemetry.EventTiming,
		RunID:    runID,
		Artifact: string(target.Artifact),
		Mode:     string(target.Mode),
		Attempts: len(attempts),
		Elapsed:  elapsed,
		Commit:   commit,
	})

	if err != nil {
		summary.Outcome = OutcomeFailed
		o.recorder.IncBuildOutcome(string(target.Artifact), metrics.OutcomeFailed)
		// Toolchain failures (classified or not) already carry their failure
		// event from the controller.
		if !berrors.IsCategory(err, berrors.CategoryToolchain) {
			o.emitter.Emit(telemetry.Event{
				Kind:     telemetry.EventBuildFailure,
				RunID:    runID,
				Artifact: string(target.Artifact),
				Mode:     string(target.Mode),
				Attempts: len(attempts),
				Commit:   commit,
			})
		}
		observability.ErrorContext(ctx, "Gradle build failed")
		return summary, err
	}

	summary.Outcome = OutcomeSuccess
	outcome := metrics.OutcomeSuccess
	if recovered {
		summary.Outcome = OutcomeRecovered
		outcome = metrics.OutcomeRecovered
	}
	o.recorder.IncBuildOutcome(string(target.Artifact), outcome)
	o.emitter.Emit(telemetry.Event{
		Kind:     telemetry.EventBuildSuccess,
		RunID:    runID,
		Artifact: string(target.Artifact),
		Mode:     string(target.Mode),
		Attempts: len(attempts),
		Commit:   commit,
	})
	observability.InfoContext(ctx, "Gradle build complete")
	return summary, nil
}

// bundlePath locates the produced .aab for the given mode.
func (o *Orchestrator) bundlePath(mode BuildMode) string {
	name := "app-" + string(mode) + ".aab"
	return filepath.Join(o.project.AndroidDir, "app", "build", "outputs", "bundle", string(mode), name)
}
