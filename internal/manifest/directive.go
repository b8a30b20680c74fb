package manifest

import (
	"maps"
	"slices"
)

// Kind of a build or launch directive.
type Kind string

const (
	KindFrom          Kind = "from"           // Select the base environment.
	KindWorkdir       Kind = "workdir"        // Set the working directory.
	KindEnv           Kind = "env"            // Set an image environment variable.
	KindLabel         Kind = "label"          // Set an image label.
	KindStageManifest Kind = "stage-manifest" // Copy the dependency manifest alone.
	KindInstall       Kind = "install"        // Install the declared dependencies.
	KindSetup         Kind = "setup"          // Run a post-install command.
	KindStageProject  Kind = "stage-project"  // Copy the rest of the project tree.
	KindExpose        Kind = "expose"         // Declare the exposed port.
	KindLaunch        Kind = "launch"         // Launch the application process.
)

// A single directive with its literal arguments.
//
// Argument layout depends on the kind:
//
//	from            [image]
//	workdir         [path]
//	env, label      [key, value]
//	stage-manifest  [src, dest]
//	install, setup  [shell command]
//	stage-project   [src, dest]
//	expose          [port/proto]
//	launch          argv
type Directive struct {
	Kind Kind
	Args []string
}

// Returns the directives of the manifest in execution order.
//
// The stock manifest yields exactly seven directives: from, workdir,
// stage-manifest, install, stage-project, expose, launch. Env, label, and
// setup directives appear only when configured.
func (m *Manifest) Directives() []Directive {
	ds := []Directive{
		{Kind: KindFrom, Args: []string{m.Base}},
		{Kind: KindWorkdir, Args: []string{m.Workdir}},
	}

	for _, k := range slices.Sorted(maps.Keys(m.Env)) {
		ds = append(ds, Directive{Kind: KindEnv, Args: []string{k, m.Env[k]}})
	}
	for _, k := range slices.Sorted(maps.Keys(m.Labels)) {
		ds = append(ds, Directive{Kind: KindLabel, Args: []string{k, m.Labels[k]}})
	}

	ds = append(ds,
		Directive{Kind: KindStageManifest, Args: []string{m.Requirements, m.StagedRequirements()}},
		Directive{Kind: KindInstall, Args: []string{m.InstallCommand()}},
	)

	for _, cmd := range m.Setup {
		ds = append(ds, Directive{Kind: KindSetup, Args: []string{cmd}})
	}

	return append(ds,
		Directive{Kind: KindStageProject, Args: []string{".", "."}},
		Directive{Kind: KindExpose, Args: []string{m.ExposedPort()}},
		Directive{Kind: KindLaunch, Args: m.Command()},
	)
}
