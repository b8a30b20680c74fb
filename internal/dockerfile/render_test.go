package dockerfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cruciblehq/pybox/internal/manifest"
)

const defaultDockerfile = `# syntax=docker/dockerfile:1
FROM python:3.11-slim
WORKDIR /app
COPY requirements.txt requirements.txt
RUN pip install --no-cache-dir -r requirements.txt
COPY . .
EXPOSE 8501
CMD ["streamlit","run","app_v2.py","--server.port=8501","--server.address=0.0.0.0"]
`

func TestRenderDefault(t *testing.T) {
	data, err := Render(manifest.Default())
	require.NoError(t, err)
	assert.Equal(t, defaultDockerfile, string(data))
}

func TestRenderOptional(t *testing.T) {
	m := manifest.Default()
	m.Port = 8080
	m.Requirements = "deps/requirements.txt"
	m.Setup = []string{"python -m spacy download en_core_web_sm"}
	m.Env = map[string]string{"PYTHONUNBUFFERED": "1"}
	m.Labels = map[string]string{"org.opencontainers.image.title": "resume parser"}

	data, err := Render(m)
	require.NoError(t, err)

	got := string(data)
	assert.Contains(t, got, "ENV PYTHONUNBUFFERED=\"1\"\n")
	assert.Contains(t, got, "LABEL org.opencontainers.image.title=\"resume parser\"\n")
	assert.Contains(t, got, "COPY deps/requirements.txt requirements.txt\n")
	assert.Contains(t, got, "RUN pip install --no-cache-dir -r requirements.txt\nRUN python -m spacy download en_core_web_sm\nCOPY . .\n")
	assert.Contains(t, got, "EXPOSE 8080\n")
	assert.Contains(t, got, `"--server.port=8080"`)
}

func TestRenderEscapesDollar(t *testing.T) {
	m := manifest.Default()
	m.Env = map[string]string{"MODEL_DIR": "$HOME/models"}
	m.Labels = map[string]string{"price": "5$"}

	data, err := Render(m)
	require.NoError(t, err)

	got := string(data)
	assert.Contains(t, got, "ENV MODEL_DIR=\"\\$HOME/models\"\n")
	assert.Contains(t, got, "LABEL price=\"5\\$\"\n")
}

func TestWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFile)

	require.NoError(t, Write(path, manifest.Default(), 0o644))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, defaultDockerfile, string(data))
}
