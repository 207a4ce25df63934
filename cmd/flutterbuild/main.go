package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/alecthomas/kong"
	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/ConnectionMaster/flutter/internal/config"
	berrors "github.com/ConnectionMaster/flutter/internal/errors"
	"github.com/ConnectionMaster/flutter/internal/gradle"
	"github.com/ConnectionMaster/flutter/internal/history"
	"github.com/ConnectionMaster/flutter/internal/metrics"
	"github.com/ConnectionMaster/flutter/internal/project"
	"github.com/ConnectionMaster/flutter/internal/retry"
	"github.com/ConnectionMaster/flutter/internal/telemetry"
	"github.com/ConnectionMaster/flutter/internal/version"
)

var CLI struct {
	Config      string           `short:"c" help:"Configuration file path" default:"flutterbuild.yaml"`
	Verbose     bool             `short:"v" help:"Enable verbose logging"`
	MetricsAddr string           `help:"Serve Prometheus metrics on this address for the duration of the build"`
	Version     kong.VersionFlag `help:"Show version and exit"`

	Apk struct {
		Project string   `short:"p" help:"Flutter project root" default:"."`
		Mode    string   `short:"m" help:"Build mode (debug, profile, release)" default:"release"`
		Target  string   `short:"t" help:"Dart entry point" default:"lib/main.dart"`
		Arch    []string `help:"Target architectures" default:"arm64-v8a"`
	} `cmd:"" help:"Build an installable application package"`

	Appbundle struct {
		Project string   `short:"p" help:"Flutter project root" default:"."`
		Mode    string   `short:"m" help:"Build mode (debug, profile, release)" default:"release"`
		Target  string   `short:"t" help:"Dart entry point" default:"lib/main.dart"`
		Arch    []string `help:"Target architectures" default:"arm64-v8a,armeabi-v7a,x86_64"`
	} `cmd:"" help:"Build a distributable app bundle"`

	Aar struct {
		Project string   `short:"p" help:"Flutter module root" default:"."`
		Modes   []string `help:"Build modes, built in order" default:"debug,profile,release"`
		Target  string   `short:"t" help:"Dart entry point" default:"lib/main.dart"`
		Arch    []string `help:"Target architectures" default:"arm64-v8a"`
	} `cmd:"" help:"Build a reusable library archive per mode"`

	History struct {
		Limit int `short:"n" help:"Number of runs to show" default:"20"`
	} `cmd:"" help:"Show recent build runs"`
}

func main() {
	ctx := kong.Parse(&CLI, kong.Vars{"version": version.Version})

	// Set up logging
	logLevel := slog.LevelInfo
	if CLI.Verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(CLI.Config)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	switch ctx.Command() {
	case "apk":
		target := buildTarget(CLI.Apk.Mode, CLI.Apk.Target, CLI.Apk.Arch)
		runBuild(cfg, CLI.Apk.Project, func(o *gradle.Orchestrator) (*gradle.RunSummary, error) {
			return o.BuildApp(context.Background(), target)
		})
	case "appbundle":
		target := buildTarget(CLI.Appbundle.Mode, CLI.Appbundle.Target, CLI.Appbundle.Arch)
		runBuild(cfg, CLI.Appbundle.Project, func(o *gradle.Orchestrator) (*gradle.RunSummary, error) {
			return o.BuildAppBundle(context.Background(), target)
		})
	case "aar":
		target := buildTarget("debug", CLI.Aar.Target, CLI.Aar.Arch)
		modes := make([]gradle.BuildMode, 0, len(CLI.Aar.Modes))
		for _, m := range CLI.Aar.Modes {
			modes = append(modes, gradle.BuildMode(strings.ToLower(m)))
		}
		runBuild(cfg, CLI.Aar.Project, func(o *gradle.Orchestrator) (*gradle.RunSummary, error) {
			return o.BuildAar(context.Background(), target, modes, func(p *project.Project, isRelease bool) error {
				slog.Info("Generated archive consumer tooling", "project", p.Root, "is_release", isRelease)
				return nil
			})
		})
	case "history":
		if err := runHistory(cfg, CLI.History.Limit); err != nil {
			slog.Error("History failed", "error", err)
			os.Exit(1)
		}
	default:
		slog.Error("Unknown command", "command", ctx.Command())
		os.Exit(1)
	}
}

func buildTarget(mode, entryPoint string, archs []string) gradle.BuildTarget {
	target := gradle.BuildTarget{
		Mode:       gradle.BuildMode(strings.ToLower(mode)),
		EntryPoint: entryPoint,
		Verbose:    CLI.Verbose,
	}
	for _, a := range archs {
		target.Archs = append(target.Archs, gradle.AndroidArch(a))
	}
	return target
}

// runBuild assembles the orchestrator for one project and executes the
// operation, persisting the run summary and mirroring the toolchain exit code.
func runBuild(cfg *config.Config, projectRoot string, op func(*gradle.Orchestrator) (*gradle.RunSummary, error)) {
	proj, err := project.Open(projectRoot, cfg.Gradle.Wrapper)
	if err != nil {
		slog.Error("Failed to open project", "error", err)
		os.Exit(1)
	}

	recorder, registry := newRecorder()
	stopMetrics := maybeServeMetrics(registry)
	defer stopMetrics()

	emitter := newEmitter(cfg.Telemetry)
	runner := gradle.ExecRunner{}
	invoker := gradle.NewInvoker(proj, cfg.Gradle, runner)
	orchestrator := gradle.NewOrchestrator(proj, invoker, gradle.Options{
		Runner:   runner,
		Policy:   retry.FromConfig(cfg.Retry),
		Recorder: recorder,
		Emitter:  emitter,
	})

	summary, buildErr := op(orchestrator)
	persistRun(cfg.History, summary)

	if buildErr != nil {
		slog.Error("Build failed", "error", buildErr)
		os.Exit(berrors.GetExitCode(buildErr))
	}
	slog.Info("Build succeeded", "run_id", summary.RunID, "attempts", len(summary.Attempts), "duration", summary.Duration)
}

func newRecorder() (metrics.Recorder, *prom.Registry) {
	if CLI.MetricsAddr == "" {
		return metrics.NoopRecorder{}, nil
	}
	registry := prom.NewRegistry()
	return metrics.NewPrometheusRecorder(registry), registry
}

// maybeServeMetrics exposes the registry over HTTP while the build runs.
func maybeServeMetrics(registry *prom.Registry) func() {
	if registry == nil {
		return func() {}
	}
	srv := &http.Server{Addr: CLI.MetricsAddr, Handler: metrics.HTTPHandler(registry)}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Warn("Metrics server stopped", "error", err)
		}
	}()
	return func() { _ = srv.Close() }
}

func newEmitter(tc config.TelemetryConfig) telemetry.Emitter {
	if !tc.Enabled {
		return telemetry.NoopEmitter{}
	}
	emitter, err := telemetry.NewNATSEmitter(tc)
	if err != nil {
		// Telemetry must never fail the build; degrade to log-only.
		slog.Warn("Telemetry unavailable, falling back to log emitter", "error", err)
		return telemetry.SlogEmitter{}
	}
	return emitter
}

func persistRun(hc config.HistoryConfig, summary *gradle.RunSummary) {
	if hc.Path == "" || summary == nil {
		return
	}
	store, err := history.Open(hc.Path)
	if err != nil {
		slog.Warn("Could not open history store", "error", err)
		return
	}
	defer store.Close()
	if err := store.Append(context.Background(), summary); err != nil {
		slog.Warn("Could not record build history", "error", err)
	}
}

func runHistory(cfg *config.Config, limit int) error {
	if cfg.History.Path == "" {
		return fmt.Errorf("history.path is not configured")
	}
	store, err := history.Open(cfg.History.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.Recent(context.Background(), limit)
	if err != nil {
		return err
	}
	for _, r := range runs {
		fmt.Printf("%s  %-9s %-7s %-9s attempts=%d duration=%s commit=%s\n",
			r.CreatedAt.Format("2006-01-02 15:04:05"), r.Artifact, r.Mode, r.Outcome, r.Attempts, r.Duration, shortCommit(r.Commit))
	}
	return nil
}

func shortCommit(commit string) string {
	if len(commit) > 8 {
		return commit[:8]
	}
	if commit == "" {
		return "-"
	}
	return commit
}
