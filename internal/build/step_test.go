package build

import (
	"archive/tar"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cruciblehq/pybox/internal/buildctx"
	"github.com/cruciblehq/pybox/internal/manifest"
	"github.com/cruciblehq/pybox/internal/paths"
	"github.com/cruciblehq/pybox/internal/runtime"
)

// Records container operations instead of performing them.
type fakeContainer struct {
	ops  []string       // "copy <dir> <entries>" and "run <command> @<workdir>", in order.
	dirs []string       // Directories created.
	exit map[string]int // Exit code per run command.
}

func (f *fakeContainer) MkdirAll(_ context.Context, path string) error {
	f.dirs = append(f.dirs, path)
	return nil
}

func (f *fakeContainer) CopyTo(_ context.Context, r io.Reader, destDir string) error {
	var names []string
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		names = append(names, hdr.Name)
	}
	f.ops = append(f.ops, "copy "+destDir+" "+strings.Join(names, ","))
	return nil
}

func (f *fakeContainer) Exec(_ context.Context, shell, command string, env []string, workdir string) (*runtime.ExecResult, error) {
	f.ops = append(f.ops, "run "+command+" @"+workdir)
	code := f.exit[command]
	result := &runtime.ExecResult{ExitCode: code}
	if code != 0 {
		result.Stderr = "ERROR: No matching distribution found\n"
	}
	return result, nil
}

// Opens an in-memory build context holding the given files.
func openContext(t *testing.T, files map[string]string) *buildctx.Context {
	t.Helper()

	bctx, err := buildctx.Open(newFs(t, files), contextDir)
	require.NoError(t, err)
	return bctx
}

func defaultSteps() []manifest.Step {
	return manifest.Default().Recipe().Stages[0].Steps
}

func startScope() *scope {
	sc := stageScope()
	return &sc
}

func TestExecuteDefaultRecipe(t *testing.T) {
	bctx := openContext(t, map[string]string{
		"app_v2.py":        "import streamlit as st",
		"requirements.txt": "streamlit\n",
	})

	ctr := &fakeContainer{}
	err := executeSteps(context.Background(), ctr, defaultSteps(), 0, startScope(), bctx)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"copy /app requirements.txt",
		"run pip install --no-cache-dir -r requirements.txt @/app",
		"copy / app/,app/app_v2.py,app/requirements.txt",
	}, ctr.ops)
	assert.Contains(t, ctr.dirs, "/app")
}

func TestProjectCopySkipsOutputDir(t *testing.T) {
	fsys := newFs(t, map[string]string{
		"app_v2.py":        "import streamlit as st",
		"requirements.txt": "streamlit\n",
		"dist/image.tar":   "previous build",
	})

	bctx, err := Preflight(fsys, manifest.Default(), contextDir, paths.Output(contextDir))
	require.NoError(t, err)

	ctr := &fakeContainer{}
	require.NoError(t, executeSteps(context.Background(), ctr, defaultSteps(), 0, startScope(), bctx))

	assert.Equal(t, "copy / app/,app/app_v2.py,app/requirements.txt", ctr.ops[len(ctr.ops)-1])
	for _, op := range ctr.ops {
		assert.NotContains(t, op, "dist")
	}
}

func TestMissingRequirementsStopsBeforeProjectCopy(t *testing.T) {
	bctx := openContext(t, map[string]string{"app_v2.py": ""})

	ctr := &fakeContainer{}
	err := executeSteps(context.Background(), ctr, defaultSteps(), 0, startScope(), bctx)

	assert.ErrorIs(t, err, ErrCopy)
	assert.ErrorIs(t, err, ErrBuild)
	assert.Empty(t, ctr.ops)
}

func TestInstallFailure(t *testing.T) {
	bctx := openContext(t, map[string]string{
		"app_v2.py":        "",
		"requirements.txt": "nonexistent-package==0.0.0\n",
	})

	ctr := &fakeContainer{exit: map[string]int{
		"pip install --no-cache-dir -r requirements.txt": 1,
	}}
	err := executeSteps(context.Background(), ctr, defaultSteps(), 0, startScope(), bctx)

	require.ErrorIs(t, err, ErrCommandFailed)
	assert.Contains(t, err.Error(), "No matching distribution")
	for _, op := range ctr.ops {
		assert.False(t, strings.HasPrefix(op, "copy / "), "project copied after failed install: %s", op)
	}
}

func TestSetupRunsAfterInstall(t *testing.T) {
	bctx := openContext(t, map[string]string{"requirements.txt": "spacy\n"})

	m := manifest.Default()
	m.Setup = []string{"python -m spacy download en_core_web_sm"}
	head, _ := splitCheckpoint(m.Recipe().Stages[0].Steps)

	ctr := &fakeContainer{}
	require.NoError(t, executeSteps(context.Background(), ctr, head, 0, startScope(), bctx))

	assert.Equal(t, []string{
		"copy /app requirements.txt",
		"run pip install --no-cache-dir -r requirements.txt @/app",
		"run python -m spacy download en_core_web_sm @/app",
	}, ctr.ops)
}

func TestSkipSteps(t *testing.T) {
	m := manifest.Default()
	m.Env = map[string]string{"PYTHONUNBUFFERED": "1"}
	head, _ := splitCheckpoint(m.Recipe().Stages[0].Steps)

	var sc scope
	skipSteps(head, &sc)

	assert.Equal(t, "/app", sc.workdir)
	assert.Equal(t, []string{"PYTHONUNBUFFERED=1"}, sc.environ())
}

func TestSplitCheckpoint(t *testing.T) {
	head, tail := splitCheckpoint(defaultSteps())

	require.Len(t, head, 3)
	assert.True(t, head[2].Checkpoint)
	assert.Equal(t, "pip install --no-cache-dir -r requirements.txt", head[2].Run)
	require.Len(t, tail, 1)
	assert.Equal(t, ". .", tail[0].Copy)

	head, tail = splitCheckpoint([]manifest.Step{{Run: "true"}})
	assert.Empty(t, head)
	assert.Len(t, tail, 1)
}
