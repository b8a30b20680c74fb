package build

import (
	"maps"
	"slices"

	"github.com/cruciblehq/pybox/internal/manifest"
)

// Shell that run steps use unless a step sets its own.
const defaultShell = "/bin/sh"

// Execution settings in effect for a step.
//
// A scope is never modified in place. [scope.with] returns a copy, so a
// step-level override can be applied for one operation and then dropped.
type scope struct {
	shell   string
	workdir string
	env     map[string]string
}

// Returns the scope a stage starts in.
//
// pip runs as root with a read-only view of its own version, so its upgrade
// notice and root warning are silenced.
func stageScope() scope {
	return scope{
		shell: defaultShell,
		env: map[string]string{
			"PIP_DISABLE_PIP_VERSION_CHECK": "1",
			"PIP_ROOT_USER_ACTION":          "ignore",
		},
	}
}

// Returns a copy of s with the step's shell, workdir and env laid over it.
func (s scope) with(step manifest.Step) scope {
	next := scope{shell: s.shell, workdir: s.workdir, env: maps.Clone(s.env)}
	if next.env == nil {
		next.env = make(map[string]string, len(step.Env))
	}
	maps.Copy(next.env, step.Env)

	if step.Shell != "" {
		next.shell = step.Shell
	}
	if step.Workdir != "" {
		next.workdir = step.Workdir
	}
	return next
}

// Returns the environment as "key=value" entries sorted by key.
func (s scope) environ() []string {
	env := make([]string, 0, len(s.env))
	for _, k := range slices.Sorted(maps.Keys(s.env)) {
		env = append(env, k+"="+s.env[k])
	}
	return env
}
