package manifest

import "strings"

// Compiled build steps of a manifest.
type Recipe struct {
	Stages []Stage
}

// A build stage backed by a container started from From.
type Stage struct {
	Name  string // Optional stage name.
	From  string // Base image reference.
	Steps []Step // Steps executed in order.
}

// A single build step.
//
// A step carries at most one operation (Run or Copy). Modifiers (Workdir,
// Env, Shell) on a step without an operation persist for the rest of the
// stage; on an operation they apply to that operation only.
type Step struct {
	Run        string            // Shell command.
	Copy       string            // "src dest" copy from the build context.
	Workdir    string            // Working directory modifier.
	Env        map[string]string // Environment modifier.
	Shell      string            // Shell modifier.
	Checkpoint bool              // Ends the cacheable install layer.
}

// Returns the cacheable description of the step.
//
// Two steps with the same description perform the same operation given the
// same inputs.
func (s Step) String() string {
	var b strings.Builder
	switch {
	case s.Run != "":
		b.WriteString("RUN " + s.Run)
	case s.Copy != "":
		b.WriteString("COPY " + s.Copy)
	default:
		b.WriteString("SET")
	}
	if s.Workdir != "" {
		b.WriteString(" workdir=" + s.Workdir)
	}
	if s.Shell != "" {
		b.WriteString(" shell=" + s.Shell)
	}
	for _, kv := range environ(s.Env) {
		b.WriteString(" env:" + kv)
	}
	return b.String()
}

// Compiles the build directives into a single-stage recipe.
//
// Expose, label, and launch directives carry image metadata only and produce
// no steps; the build package applies them to the exported image config. The
// last install or setup step is flagged as the checkpoint.
func (m *Manifest) Recipe() *Recipe {
	stage := Stage{Name: "app", From: m.Base}
	checkpoint := -1
	env := map[string]string{}

	for _, d := range m.Directives() {
		switch d.Kind {
		case KindWorkdir:
			stage.Steps = append(stage.Steps, Step{Workdir: d.Args[0]})
		case KindEnv:
			env[d.Args[0]] = d.Args[1]
		case KindStageManifest, KindStageProject:
			if len(env) > 0 {
				stage.Steps = append(stage.Steps, Step{Env: env})
				env = map[string]string{}
			}
			stage.Steps = append(stage.Steps, Step{Copy: d.Args[0] + " " + d.Args[1]})
		case KindInstall, KindSetup:
			stage.Steps = append(stage.Steps, Step{Run: d.Args[0]})
			checkpoint = len(stage.Steps) - 1
		}
	}

	if checkpoint >= 0 {
		stage.Steps[checkpoint].Checkpoint = true
	}

	return &Recipe{Stages: []Stage{stage}}
}
