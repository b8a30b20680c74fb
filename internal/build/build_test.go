package build

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cruciblehq/pybox/internal/manifest"
)

const contextDir = "/src/resume-parser"

// Creates an in-memory build context holding the given files.
func newFs(t *testing.T, files map[string]string) afero.Fs {
	t.Helper()

	fsys := afero.NewMemMapFs()
	require.NoError(t, fsys.MkdirAll(contextDir, 0o755))
	for name, content := range files {
		require.NoError(t, afero.WriteFile(fsys, contextDir+"/"+name, []byte(content), 0o644))
	}
	return fsys
}

func TestPreflight(t *testing.T) {
	fsys := newFs(t, map[string]string{
		"app_v2.py":        "import streamlit as st",
		"requirements.txt": "streamlit\npdfminer.six\nspacy\n",
	})

	bctx, err := Preflight(fsys, manifest.Default(), contextDir)
	require.NoError(t, err)
	assert.Equal(t, contextDir, bctx.Root())
}

func TestPreflightFailures(t *testing.T) {
	tests := []struct {
		name   string
		files  map[string]string
		dirs   []string
		modify func(*manifest.Manifest)
		err    error
	}{
		{
			name:  "missing requirements",
			files: map[string]string{"app_v2.py": ""},
			err:   ErrMissingRequirements,
		},
		{
			name: "requirements is a directory",
			dirs: []string{"requirements.txt"},
			err:  ErrMissingRequirements,
		},
		{
			name: "requirements ignored",
			files: map[string]string{
				".dockerignore":    "*.txt\n",
				"requirements.txt": "streamlit\n",
			},
			err: ErrMissingRequirements,
		},
		{
			name:   "unpinned base",
			files:  map[string]string{"requirements.txt": ""},
			modify: func(m *manifest.Manifest) { m.Base = "python:latest" },
			err:    manifest.ErrUnpinnedBase,
		},
		{
			name:   "relative workdir",
			files:  map[string]string{"requirements.txt": ""},
			modify: func(m *manifest.Manifest) { m.Workdir = "app" },
			err:    ErrPreflight,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fsys := newFs(t, tt.files)
			for _, d := range tt.dirs {
				require.NoError(t, fsys.MkdirAll(contextDir+"/"+d, 0o755))
			}

			m := manifest.Default()
			if tt.modify != nil {
				tt.modify(m)
			}

			_, err := Preflight(fsys, m, contextDir)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestPreflightMissingContext(t *testing.T) {
	_, err := Preflight(afero.NewMemMapFs(), manifest.Default(), "/nowhere")
	assert.ErrorIs(t, err, ErrPreflight)
}

func TestRunFailsBeforeRuntime(t *testing.T) {
	fsys := newFs(t, map[string]string{"app_v2.py": ""})

	// A nil runtime would panic if the build got past pre-flight.
	_, err := Run(context.Background(), nil, Options{
		Manifest: manifest.Default(),
		Context:  contextDir,
		Fs:       fsys,
		Output:   t.TempDir(),
	})
	assert.ErrorIs(t, err, ErrMissingRequirements)
}
