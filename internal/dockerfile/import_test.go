package dockerfile

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cruciblehq/pybox/internal/manifest"
)

func TestImportRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*manifest.Manifest)
	}{
		{"default", func(*manifest.Manifest) {}},
		{"port", func(m *manifest.Manifest) { m.Port = 9000 }},
		{"setup", func(m *manifest.Manifest) {
			m.Setup = []string{"python -m spacy download en_core_web_sm"}
		}},
		{"install", func(m *manifest.Manifest) { m.Install = "pip install -r requirements.txt" }},
		{"env and labels", func(m *manifest.Manifest) {
			m.Env = map[string]string{"GREETING": "hello world"}
			m.Labels = map[string]string{"maintainer": "pybox"}
		}},
		{"args", func(m *manifest.Manifest) { m.Launch.Args = []string{"--server.headless=true"} }},
		{"dollar", func(m *manifest.Manifest) {
			m.Env = map[string]string{"MODEL_DIR": "$HOME/models", "PATTERN": `C:\$x`}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			want := manifest.Default()
			tt.modify(want)

			data, err := Render(want)
			require.NoError(t, err)

			res, err := Import(bytes.NewReader(data))
			require.NoError(t, err)
			assert.Empty(t, res.Warnings)
			assert.Equal(t, want, res.Manifest)
		})
	}
}

func TestImportHandwritten(t *testing.T) {
	src := `FROM python:3.11-slim
WORKDIR /app
COPY requirements.txt .
RUN pip install --no-cache-dir -r requirements.txt
COPY . .
EXPOSE 8501
CMD ["streamlit", "run", "app_v2.py", "--server.port=8501", "--server.address=0.0.0.0"]
`
	res, err := Import(strings.NewReader(src))
	require.NoError(t, err)
	assert.Empty(t, res.Warnings)
	assert.Equal(t, manifest.Default(), res.Manifest)
}

func TestImportPortMismatch(t *testing.T) {
	src := `FROM python:3.11-slim
WORKDIR /app
COPY requirements.txt .
RUN pip install --no-cache-dir -r requirements.txt
COPY . .
EXPOSE 8501
CMD ["streamlit", "run", "app_v2.py", "--server.port", "8080", "--server.address=0.0.0.0"]
`
	res, err := Import(strings.NewReader(src))
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)
	assert.ErrorIs(t, res.Warnings[0], manifest.ErrPortMismatch)
	assert.Equal(t, 8080, res.Manifest.Port)
}

func TestImportShellForm(t *testing.T) {
	src := `FROM python:3.11-slim
WORKDIR /srv
COPY requirements.txt .
RUN pip install -r requirements.txt
COPY . .
EXPOSE 8501
CMD streamlit run main.py --server.address=127.0.0.1
`
	res, err := Import(strings.NewReader(src))
	require.NoError(t, err)

	m := res.Manifest
	assert.Equal(t, "/srv", m.Workdir)
	assert.Equal(t, "main.py", m.Launch.Target)
	assert.Equal(t, "127.0.0.1", m.Address)
	assert.Equal(t, 8501, m.Port)
	assert.Equal(t, "pip install -r requirements.txt", m.Install)
}

func TestImportUnsupported(t *testing.T) {
	src := `FROM python:3.11-slim
WORKDIR /app
USER nobody
COPY requirements.txt .
RUN pip install --no-cache-dir -r requirements.txt
COPY . .
RUN python compile.py
EXPOSE 8501
CMD ["streamlit", "run", "app_v2.py"]
`
	res, err := Import(strings.NewReader(src))
	require.NoError(t, err)
	require.Len(t, res.Warnings, 2)
	for _, w := range res.Warnings {
		assert.ErrorIs(t, w, ErrUnsupportedInstruction)
	}
}

func TestImportErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		err  error
	}{
		{
			name: "multi-stage",
			src:  "FROM python:3.11 AS build\nFROM python:3.11-slim\n",
			err:  ErrUnsupportedInstruction,
		},
		{
			name: "launch without run",
			src:  "FROM python:3.11-slim\nCMD [\"python\", \"app.py\"]\n",
			err:  ErrUnsupportedInstruction,
		},
		{
			name: "unpinned base",
			src:  "FROM python:latest\nCMD [\"streamlit\", \"run\", \"app.py\"]\n",
			err:  manifest.ErrUnpinnedBase,
		},
		{
			name: "bad port",
			src:  "FROM python:3.11-slim\nCMD [\"streamlit\", \"run\", \"app.py\", \"--server.port=http\"]\n",
			err:  manifest.ErrInvalidManifest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Import(strings.NewReader(tt.src))
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.err), "got %v", err)
		})
	}
}
