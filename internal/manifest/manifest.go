package manifest

import (
	"maps"
	"path"
	"slices"
	"strconv"
)

const (

	// Schema version written by this release.
	CurrentVersion = 1

	// Version-pinned Python runtime image.
	DefaultBase = "python:3.11-slim"

	// Working directory inside the image.
	DefaultWorkdir = "/app"

	// Dependency manifest at the root of the build context.
	DefaultRequirements = "requirements.txt"

	// Port the Streamlit server binds. Used for both EXPOSE and --server.port.
	DefaultPort = 8501

	// Bind address for the Streamlit server (all interfaces).
	DefaultAddress = "0.0.0.0"

	// Launch executable and the script it runs.
	DefaultExecutable = "streamlit"
	DefaultTarget     = "app_v2.py"

	// Streamlit subcommand that serves a script.
	runSubcommand = "run"

	// Streamlit options carrying the port and bind address.
	PortOption    = "--server.port"
	AddressOption = "--server.address"
)

// Build Manifest of a packaged application.
type Manifest struct {
	Version      int               `yaml:"version" json:"version"`                     // Schema version.
	Base         string            `yaml:"base" json:"base"`                           // Base runtime image reference.
	Workdir      string            `yaml:"workdir" json:"workdir"`                     // Absolute working directory.
	Requirements string            `yaml:"requirements" json:"requirements"`           // Dependency manifest, relative to the build context.
	Port         int               `yaml:"port" json:"port"`                           // Exposed and bound TCP port.
	Address      string            `yaml:"address" json:"address"`                     // Bind address of the launched process.
	Launch       Launch            `yaml:"launch" json:"launch"`                       // Launch command.
	Install      string            `yaml:"install,omitempty" json:"install,omitempty"` // Install command override.
	Setup        []string          `yaml:"setup,omitempty" json:"setup,omitempty"`     // Commands run after install, in the install layer.
	Env          map[string]string `yaml:"env,omitempty" json:"env,omitempty"`         // Image environment.
	Labels       map[string]string `yaml:"labels,omitempty" json:"labels,omitempty"`   // Image labels.
}

// Launch command of the application process.
type Launch struct {
	Executable string   `yaml:"executable" json:"executable"`         // Program started as the foreground process.
	Target     string   `yaml:"target" json:"target"`                 // Script passed to "run", relative to the workdir.
	Args       []string `yaml:"args,omitempty" json:"args,omitempty"` // Extra options appended after the fixed ones.
}

// Returns the manifest describing the stock Streamlit image.
func Default() *Manifest {
	return &Manifest{
		Version:      CurrentVersion,
		Base:         DefaultBase,
		Workdir:      DefaultWorkdir,
		Requirements: DefaultRequirements,
		Port:         DefaultPort,
		Address:      DefaultAddress,
		Launch: Launch{
			Executable: DefaultExecutable,
			Target:     DefaultTarget,
		},
	}
}

// Returns the launch argv.
//
// The result is the executable, "run", the target, the port and address
// options, then any extra arguments, in that order.
func (m *Manifest) Command() []string {
	argv := []string{
		m.Launch.Executable,
		runSubcommand,
		m.Launch.Target,
		PortOption + "=" + strconv.Itoa(m.Port),
		AddressOption + "=" + m.Address,
	}
	return append(argv, m.Launch.Args...)
}

// Returns the exposed port in OCI form (e.g., "8501/tcp").
func (m *Manifest) ExposedPort() string {
	return strconv.Itoa(m.Port) + "/tcp"
}

// Returns the install command run against the staged dependency manifest.
func (m *Manifest) InstallCommand() string {
	if m.Install != "" {
		return m.Install
	}
	return "pip install --no-cache-dir -r " + m.StagedRequirements()
}

// Returns the name of the staged dependency manifest, relative to the workdir.
//
// The manifest is staged flat into the working directory regardless of where
// it lives in the build context.
func (m *Manifest) StagedRequirements() string {
	return path.Base(m.Requirements)
}

// Returns the image environment as sorted "KEY=value" entries.
func (m *Manifest) Environ() []string {
	return environ(m.Env)
}

// Formats an environment map as sorted "KEY=value" entries.
func environ(vars map[string]string) []string {
	env := make([]string, 0, len(vars))
	for _, k := range slices.Sorted(maps.Keys(vars)) {
		env = append(env, k+"="+vars[k])
	}
	return env
}

// Returns a deep copy of the manifest.
func (m *Manifest) Clone() *Manifest {
	c := *m
	c.Launch.Args = slices.Clone(m.Launch.Args)
	c.Setup = slices.Clone(m.Setup)
	c.Env = maps.Clone(m.Env)
	c.Labels = maps.Clone(m.Labels)
	return &c
}
