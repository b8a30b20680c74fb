package build

import (
	"strings"
	"testing"

	"github.com/opencontainers/go-digest"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cruciblehq/pybox/internal/buildctx"
	"github.com/cruciblehq/pybox/internal/cache"
	"github.com/cruciblehq/pybox/internal/manifest"
	"github.com/cruciblehq/pybox/internal/runtime"
)

var testBase = &runtime.Base{
	Name:     "docker.io/library/python:3.11-slim",
	Digest:   digest.FromString("python:3.11-slim"),
	Platform: "linux/amd64",
}

func TestLayerKey(t *testing.T) {
	fsys := newFs(t, map[string]string{
		"app_v2.py":        "print('v1')",
		"requirements.txt": "streamlit\n",
	})
	head, _ := splitCheckpoint(defaultSteps())

	key := func() cache.Key {
		t.Helper()
		bctx, err := buildctx.Open(fsys, contextDir)
		require.NoError(t, err)
		k, err := layerKey(bctx, testBase, head)
		require.NoError(t, err)
		return k
	}

	first := key()
	assert.Equal(t, first, key(), "key is not stable")

	require.NoError(t, afero.WriteFile(fsys, contextDir+"/app_v2.py", []byte("print('v2')"), 0o644))
	assert.Equal(t, first, key(), "project file changed the install layer key")

	require.NoError(t, afero.WriteFile(fsys, contextDir+"/requirements.txt", []byte("streamlit\npandas\n"), 0o644))
	assert.NotEqual(t, first, key(), "requirements change kept the install layer key")
}

func TestLayerKeyManifestChanges(t *testing.T) {
	bctx := openContext(t, map[string]string{"requirements.txt": "streamlit\n"})

	keyOf := func(m *manifest.Manifest, base *runtime.Base) cache.Key {
		t.Helper()
		head, _ := splitCheckpoint(m.Recipe().Stages[0].Steps)
		k, err := layerKey(bctx, base, head)
		require.NoError(t, err)
		return k
	}

	def := keyOf(manifest.Default(), testBase)

	setup := manifest.Default()
	setup.Setup = []string{"python -m spacy download en_core_web_sm"}
	assert.NotEqual(t, def, keyOf(setup, testBase))

	arm := *testBase
	arm.Platform = "linux/arm64"
	assert.NotEqual(t, def, keyOf(manifest.Default(), &arm))

	port := manifest.Default()
	port.Port = 9000
	assert.Equal(t, def, keyOf(port, testBase), "launch settings are not part of the install layer")
}

func TestImageConfig(t *testing.T) {
	m := manifest.Default()
	m.Env = map[string]string{"PYTHONUNBUFFERED": "1"}
	m.Labels = map[string]string{"org.opencontainers.image.title": "resume parser"}

	r := &recipe{manifest: m, tag: DefaultTag}
	_, tail := splitCheckpoint(m.Recipe().Stages[0].Steps)

	cfg := r.imageConfig(testBase, tail)

	assert.Equal(t, DefaultTag, cfg.Name)
	assert.Equal(t, m.Command(), cfg.Cmd)
	assert.Equal(t, "/app", cfg.WorkingDir)
	assert.Equal(t, []string{"8501/tcp"}, cfg.ExposedPorts)
	assert.Equal(t, []string{"PYTHONUNBUFFERED=1"}, cfg.Env)
	assert.Equal(t, "resume parser", cfg.Labels["org.opencontainers.image.title"])
	assert.Equal(t, "python:3.11-slim", cfg.Labels["org.opencontainers.image.base.name"])
	assert.Equal(t, testBase.Digest.String(), cfg.Labels["org.opencontainers.image.base.digest"])
	assert.Equal(t, "pybox: COPY . .", cfg.CreatedBy)
}

func TestContainerID(t *testing.T) {
	r := &recipe{id: "pybox-abc", platform: "linux/amd64"}

	assert.Equal(t, "pybox-abc-linux-amd64-stage-app", r.containerID("app", 0))
	assert.Equal(t, "pybox-abc-linux-amd64-stage-2", r.containerID("", 1))
}

func TestBuildID(t *testing.T) {
	a := buildID("/src/resume-parser")
	assert.Equal(t, a, buildID("/src/resume-parser"))
	assert.NotEqual(t, a, buildID("/src/other"))
	assert.True(t, strings.HasPrefix(a, "pybox-"))
}

func TestSnapshotName(t *testing.T) {
	key := cache.NewKey(testBase.Digest, testBase.Platform)
	name := snapshotName(key)

	assert.Equal(t, "pybox-layer-"+key.Digest().Encoded(), name)
	assert.NotContains(t, name, ":")
}
