package build

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/cruciblehq/pybox/internal/buildctx"
	"github.com/cruciblehq/pybox/internal/fault"
	"github.com/cruciblehq/pybox/internal/manifest"
	"github.com/cruciblehq/pybox/internal/runtime"
)

// Container operations that steps are executed with.
type container interface {
	MkdirAll(ctx context.Context, path string) error
	CopyTo(ctx context.Context, r io.Reader, destDir string) error
	Exec(ctx context.Context, shell, command string, env []string, workdir string) (*runtime.ExecResult, error)
}

// Executes a list of steps in order against the build container.
//
// first is the position of steps[0] in the stage, used in error messages.
// Execution stops at the first failing step.
func executeSteps(ctx context.Context, ctr container, steps []manifest.Step, first int, sc *scope, bctx *buildctx.Context) error {
	for i, step := range steps {
		if err := executeStep(ctx, ctr, step, sc, bctx); err != nil {
			return fault.Wrapf(ErrBuild, "step %d (%s): %w", first+i+1, step, err)
		}
	}
	return nil
}

// Executes a single step.
//
// A step with an operation runs in the current scope overlaid with its own
// modifiers. A step with modifiers only changes the scope for later steps.
func executeStep(ctx context.Context, ctr container, step manifest.Step, sc *scope, bctx *buildctx.Context) error {
	if isOperation(step) {
		return executeOperation(ctx, ctr, step, sc.with(step), bctx)
	}
	*sc = sc.with(step)
	return nil
}

// Replays the modifiers of steps whose operations a cached layer already
// covers.
func skipSteps(steps []manifest.Step, sc *scope) {
	for _, step := range steps {
		if !isOperation(step) {
			*sc = sc.with(step)
		}
	}
}

func isOperation(step manifest.Step) bool {
	return step.Run != "" || step.Copy != ""
}

// Executes a run or copy operation in the resolved scope.
func executeOperation(ctx context.Context, ctr container, step manifest.Step, resolved scope, bctx *buildctx.Context) error {

	if resolved.workdir != "" {
		if err := ctr.MkdirAll(ctx, resolved.workdir); err != nil {
			return err
		}
	}

	switch {
	case step.Run != "":
		slog.Info("run", "command", step.Run)
		result, err := ctr.Exec(ctx, resolved.shell, step.Run, resolved.environ(), resolved.workdir)
		if err != nil {
			return err
		}
		if out := strings.TrimSpace(result.Stdout); out != "" {
			slog.Debug("run output", "command", step.Run, "stdout", out)
		}
		if result.ExitCode != 0 {
			return fault.Wrapf(ErrCommandFailed, "%q exited with code %d: %s", step.Run, result.ExitCode, strings.TrimSpace(result.Stderr))
		}

	case step.Copy != "":
		if err := executeCopy(ctx, ctr, step.Copy, resolved.workdir, bctx); err != nil {
			return err
		}
	}

	return nil
}
