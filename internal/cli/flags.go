package cli

import (
	"errors"
	"log/slog"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/cruciblehq/pybox/internal/build"
	"github.com/cruciblehq/pybox/internal/fault"
	"github.com/cruciblehq/pybox/internal/manifest"
	"github.com/cruciblehq/pybox/internal/runtime"
	"github.com/cruciblehq/pybox/internal/server"
)

// Backend names accepted by --backend.
const (
	backendContainerd = "containerd"
	backendDocker     = "docker"
)

// Locates the manifest and the build context.
type ProjectFlags struct {
	Manifest string `short:"f" default:"pybox.yaml" env:"PYBOX_MANIFEST" help:"Build manifest, relative to the context." placeholder:"FILE"`
	Context  string `short:"C" default:"." env:"PYBOX_CONTEXT" help:"Build context directory." placeholder:"DIR"`
}

// Returns the absolute build context directory.
func (p *ProjectFlags) contextDir() (string, error) {
	dir, err := filepath.Abs(p.Context)
	if err != nil {
		return "", fault.Wrap(ErrUsage, err)
	}
	return dir, nil
}

// Returns the manifest path, resolved against the context.
func (p *ProjectFlags) manifestPath(dir string) string {
	if filepath.IsAbs(p.Manifest) {
		return p.Manifest
	}
	return filepath.Join(dir, p.Manifest)
}

// Loads the manifest.
//
// A missing manifest at the default location falls back to
// [manifest.Default]; a missing manifest given explicitly is an error.
func (p *ProjectFlags) load(fsys afero.Fs, dir string) (*manifest.Manifest, error) {
	path := p.manifestPath(dir)

	m, err := manifest.Load(fsys, path)
	if errors.Is(err, manifest.ErrNotFound) && p.Manifest == manifest.DefaultFile {
		slog.Debug("no manifest found, using defaults", "path", path)
		return manifest.Default(), nil
	}
	if err != nil {
		return nil, err
	}

	slog.Debug("manifest loaded", "path", path)
	return m, nil
}

// Selects and connects to containerd.
type ContainerdFlags struct {
	ContainerdAddress string `default:"${containerdAddress}" env:"PYBOX_CONTAINERD_ADDRESS" help:"Containerd socket address." placeholder:"PATH"`
	Namespace         string `default:"${namespace}" env:"PYBOX_NAMESPACE" help:"Containerd namespace."`
	Snapshotter       string `default:"${snapshotter}" env:"PYBOX_SNAPSHOTTER" help:"Containerd snapshotter."`
}

// Selects the build and launch backend.
type EngineFlags struct {
	ContainerdFlags `embed:""`
	Backend         string `enum:"containerd,docker" default:"containerd" env:"PYBOX_BACKEND" help:"Build and launch backend (${enum})."`
}

// Returns the kong variables for flag defaults.
func flagVars() map[string]string {
	return map[string]string{
		"containerdAddress": server.DefaultContainerdAddress,
		"namespace":         server.DefaultContainerdNamespace,
		"snapshotter":       runtime.DefaultSnapshotter,
		"tag":               build.DefaultTag,
	}
}
