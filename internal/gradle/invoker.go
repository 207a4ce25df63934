package gradle

import (
	"context"
	"errors"

	"github.com/ConnectionMaster/flutter/internal/config"
	berrors "github.com/ConnectionMaster/flutter/internal/errors"
	"github.com/ConnectionMaster/flutter/internal/project"
)

// CommandSpec is one fully rendered toolchain invocation.
type CommandSpec struct {
	Path string   // executable (the gradlew wrapper)
	Args []string // argument list, task name last
	Dir  string   // working directory (the android/ subproject)
}

// ExecResult is the outcome of a spawned process that ran to completion.
// Lines holds the fully drained stdout+stderr stream in arrival order.
type ExecResult struct {
	ExitCode int
	Lines    []string
}

// ProcessRunner spawns one process and waits for it. A returned error means
// the process could not be started, or started but could not be waited on
// cleanly; a non-zero exit is reported through ExecResult, not the error.
// Implementations must drain both output streams before returning so callers
// never classify truncated output.
type ProcessRunner interface {
	Run(ctx context.Context, spec CommandSpec) (*ExecResult, error)
}

// Attempt captures one build attempt's exit code and output.
type Attempt struct {
	Index    int
	ExitCode int
	Lines    []string
}

// Invoker issues single build attempts against the Gradle wrapper.
type Invoker struct {
	project *project.Project
	gradle  config.GradleConfig
	runner  ProcessRunner
}

// NewInvoker wires an invoker to a project and a process runner.
func NewInvoker(p *project.Project, gradle config.GradleConfig, runner ProcessRunner) *Invoker {
	return &Invoker{project: p, gradle: gradle, runner: runner}
}

// Command renders the deterministic invocation for a target. Exposed for the
// orchestrator's dry-run logging and for tests.
func (inv *Invoker) Command(target BuildTarget) CommandSpec {
	args := []string{}
	if inv.gradle.NoDaemon {
		args = append(args, "--no-daemon")
	}
	if inv.gradle.ProjectCacheDir != "" {
		args = append(args, "--project-cache-dir", inv.gradle.ProjectCacheDir)
	}
	if target.Verbose {
		args = append(args, "--full-stacktrace", "-Pverbose=true")
	} else {
		args = append(args, "-q")
	}
	if target.EntryPoint != "" {
		args = append(args, "-Ptarget="+target.EntryPoint)
	}
	if len(target.Archs) > 0 {
		args = append(args, "-Ptarget-platform="+target.platformList())
	}
	if inv.gradle.LocalEngine != "" {
		args = append(args, "-Plocal-engine-out="+inv.gradle.LocalEngine)
	}
	if inv.gradle.LocalEngineHost != "" {
		args = append(args, "-Plocal-engine-host-out="+inv.gradle.LocalEngineHost)
	}
	args = append(args, target.sortedFlags()...)
	args = append(args, target.Task())

	return CommandSpec{Path: inv.project.Wrapper, Args: args, Dir: inv.project.AndroidDir}
}

// Run executes one attempt. A spawn failure (wrapper missing, not executable)
// is fatal and never matched against failure signatures.
func (inv *Invoker) Run(ctx context.Context, target BuildTarget, attemptIndex int) (*Attempt, error) {
	spec := inv.Command(target)
	res, err := inv.runner.Run(ctx, spec)
	if err != nil {
		msg := "could not start the Gradle wrapper"
		if errors.Is(err, errWait) {
			msg = "the Gradle wrapper started but did not complete cleanly"
		}
		return nil, berrors.Wrap(err, berrors.CategorySpawn, berrors.SeverityFatal,
			msg).WithContext("wrapper", spec.Path)
	}
	return &Attempt{Index: attemptIndex, ExitCode: res.ExitCode, Lines: res.Lines}, nil
}
