package cli

import (
	"testing"

	"github.com/alecthomas/kong"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cruciblehq/pybox/internal/build"
	"github.com/cruciblehq/pybox/internal/manifest"
	"github.com/cruciblehq/pybox/internal/runtime"
)

// Creates a parser over root with the variables Execute provides.
func newParser(t *testing.T, root any) *kong.Kong {
	t.Helper()

	parser, err := kong.New(root,
		kong.Name("pybox"),
		kong.Vars{"version": "test", "logFormat": "console"},
		kong.Vars(flagVars()),
	)
	require.NoError(t, err)
	return parser
}

func TestParseBuildDefaults(t *testing.T) {
	root := RootCmd
	_, err := newParser(t, &root).Parse([]string{"build"})
	require.NoError(t, err)

	cmd := root.Build
	assert.Equal(t, manifest.DefaultFile, cmd.Manifest)
	assert.Equal(t, ".", cmd.Context)
	assert.Equal(t, backendContainerd, cmd.Backend)
	assert.Equal(t, build.DefaultTag, cmd.Tag)
	assert.Equal(t, "overlayfs", cmd.Snapshotter)
	assert.False(t, cmd.NoCache)
	assert.Equal(t, "console", root.LogFormat)
}

func TestParseRunFlags(t *testing.T) {
	root := RootCmd
	kctx, err := newParser(t, &root).Parse([]string{
		"run", "-C", "/src/resume-parser", "--backend", "docker",
		"-V", "data:/app/data", "-e", "PYTHONUNBUFFERED=1", "--no-cache",
	})
	require.NoError(t, err)
	assert.Equal(t, "run", kctx.Command())

	cmd := root.Run
	assert.Equal(t, "/src/resume-parser", cmd.Context)
	assert.Equal(t, backendDocker, cmd.Backend)
	assert.Equal(t, []string{"data:/app/data"}, cmd.Volume)
	assert.Equal(t, []string{"PYTHONUNBUFFERED=1"}, cmd.Env)
	assert.True(t, cmd.NoCache)
}

func TestParseRejectsUnknownBackend(t *testing.T) {
	root := RootCmd
	_, err := newParser(t, &root).Parse([]string{"build", "--backend", "podman"})
	assert.Error(t, err)
}

func TestLoadDefaultManifest(t *testing.T) {
	fsys := afero.NewMemMapFs()
	p := ProjectFlags{Manifest: manifest.DefaultFile, Context: "/src"}

	m, err := p.load(fsys, "/src")
	require.NoError(t, err)
	assert.Equal(t, manifest.Default(), m)
}

func TestLoadExplicitManifestMissing(t *testing.T) {
	fsys := afero.NewMemMapFs()
	p := ProjectFlags{Manifest: "deploy/pybox.yaml", Context: "/src"}

	_, err := p.load(fsys, "/src")
	assert.ErrorIs(t, err, manifest.ErrNotFound)
}

func TestLoadManifestRelativeToContext(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/src/pybox.yaml", []byte("version: 1\nport: 9000\n"), 0o644))
	p := ProjectFlags{Manifest: manifest.DefaultFile, Context: "/src"}

	m, err := p.load(fsys, "/src")
	require.NoError(t, err)
	assert.Equal(t, 9000, m.Port)
}

func TestOutputDir(t *testing.T) {
	assert.Equal(t, "/src/dist", (&BuildFlags{}).outputDir("/src"))
	assert.Equal(t, "/src/out", (&BuildFlags{Output: "out"}).outputDir("/src"))
	assert.Equal(t, "/tmp/out", (&BuildFlags{Output: "/tmp/out"}).outputDir("/src"))
}

func TestMountSpec(t *testing.T) {
	assert.Equal(t, "/srv/data:/app/data", mountSpec(runtime.Mount{Source: "/srv/data", Destination: "/app/data"}))
	assert.Equal(t, "/srv/models:/models:ro", mountSpec(runtime.Mount{Source: "/srv/models", Destination: "/models", ReadOnly: true}))
}

func TestParseContainerCommands(t *testing.T) {
	root := RootCmd
	kctx, err := newParser(t, &root).Parse([]string{"container", "status", "pybox-1a2b3c4d"})
	require.NoError(t, err)

	assert.Equal(t, "container status <id>", kctx.Command())
	assert.Equal(t, "pybox-1a2b3c4d", root.Container.Status.ID)
}
