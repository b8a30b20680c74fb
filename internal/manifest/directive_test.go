package manifest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultDirectives(t *testing.T) {
	ds := Default().Directives()

	want := []Directive{
		{Kind: KindFrom, Args: []string{"python:3.11-slim"}},
		{Kind: KindWorkdir, Args: []string{"/app"}},
		{Kind: KindStageManifest, Args: []string{"requirements.txt", "requirements.txt"}},
		{Kind: KindInstall, Args: []string{"pip install --no-cache-dir -r requirements.txt"}},
		{Kind: KindStageProject, Args: []string{".", "."}},
		{Kind: KindExpose, Args: []string{"8501/tcp"}},
		{Kind: KindLaunch, Args: []string{"streamlit", "run", "app_v2.py", "--server.port=8501", "--server.address=0.0.0.0"}},
	}
	assert.Equal(t, want, ds)
}

func TestManifestStagedBeforeProject(t *testing.T) {
	m := Default()
	m.Setup = []string{"python -m spacy download en_core_web_sm"}
	m.Env = map[string]string{"PYTHONUNBUFFERED": "1"}

	index := map[Kind]int{}
	for i, d := range m.Directives() {
		if _, seen := index[d.Kind]; !seen {
			index[d.Kind] = i
		}
	}

	require.Contains(t, index, KindSetup)
	assert.Less(t, index[KindFrom], index[KindWorkdir])
	assert.Less(t, index[KindWorkdir], index[KindStageManifest])
	assert.Less(t, index[KindStageManifest], index[KindInstall])
	assert.Less(t, index[KindInstall], index[KindSetup])
	assert.Less(t, index[KindSetup], index[KindStageProject])
	assert.Less(t, index[KindStageProject], index[KindExpose])
	assert.Less(t, index[KindExpose], index[KindLaunch])
}
