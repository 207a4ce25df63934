package gradle

import (
	"context"
	"fmt"
	"log/slog"

	berrors "github.com/ConnectionMaster/flutter/internal/errors"
	"github.com/ConnectionMaster/flutter/internal/observability"
	"github.com/ConnectionMaster/flutter/internal/project"
)

// VariantPlan describes one build-mode-specific invocation within a library
// archive build.
type VariantPlan struct {
	Mode      BuildMode
	IsRelease bool
}

// ToolingCallback generates per-variant consumer tooling after a variant
// builds successfully. Release variants suppress debug metadata generation.
type ToolingCallback func(p *project.Project, isRelease bool) error

// PlanVariants expands the requested modes, in supplied order, into plans.
func PlanVariants(modes []BuildMode) []VariantPlan {
	plans := make([]VariantPlan, 0, len(modes))
	for _, m := range modes {
		plans = append(plans, VariantPlan{Mode: m, IsRelease: m == ModeRelease})
	}
	return plans
}

// VariantScheduler runs one library-archive build per requested mode.
// Variants execute sequentially and fail fast: a failure aborts the remainder
// without rolling back variants already completed.
type VariantScheduler struct {
	controller *Controller
	project    *project.Project
}

// NewVariantScheduler wires the scheduler to a controller and project handle.
func NewVariantScheduler(controller *Controller, p *project.Project) *VariantScheduler {
	return &VariantScheduler{controller: controller, project: p}
}

// Run builds every requested variant end-to-end, each with the full retry
// budget, and invokes the tooling callback after each success.
func (s *VariantScheduler) Run(ctx context.Context, runID string, base BuildTarget, modes []BuildMode, generate ToolingCallback) ([]AttemptRecord, error) {
	var all []AttemptRecord
	for _, plan := range PlanVariants(modes) {
		vctx := observability.WithVariant(ctx, string(plan.Mode))
		observability.InfoContext(vctx, "Building archive variant")

		result, err := s.controller.Run(vctx, runID, base.WithMode(plan.Mode))
		if err != nil {
			return all, err
		}
		all = append(all, result.Attempts...)

		if err := s.generateTooling(generate, plan.IsRelease); err != nil {
			return all, berrors.Wrap(err, berrors.CategoryCallback, berrors.SeverityFatal,
				"tooling generation failed for variant").
				WithContext("variant", string(plan.Mode))
		}
		slog.Info("Archive variant complete", "variant", string(plan.Mode), "is_release", plan.IsRelease)
	}
	return all, nil
}

// generateTooling invokes the callback, converting a panic into an error so a
// misbehaving callback aborts the variant instead of the process.
func (s *VariantScheduler) generateTooling(generate ToolingCallback, isRelease bool) (err error) {
	if generate == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tooling callback panicked: %v", r)
		}
	}()
	return generate(s.project, isRelease)
}
