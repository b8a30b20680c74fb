package manifest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRecipe(t *testing.T) {
	r := Default().Recipe()
	require.Len(t, r.Stages, 1)

	stage := r.Stages[0]
	assert.Equal(t, DefaultBase, stage.From)

	want := []Step{
		{Workdir: "/app"},
		{Copy: "requirements.txt requirements.txt"},
		{Run: "pip install --no-cache-dir -r requirements.txt", Checkpoint: true},
		{Copy: ". ."},
	}
	assert.Equal(t, want, stage.Steps)
}

func TestRecipeCheckpointAfterSetup(t *testing.T) {
	m := Default()
	m.Setup = []string{"python -m spacy download en_core_web_sm"}

	steps := m.Recipe().Stages[0].Steps
	require.Len(t, steps, 5)

	assert.False(t, steps[2].Checkpoint, "install should not be the checkpoint when setup follows")
	assert.Equal(t, "python -m spacy download en_core_web_sm", steps[3].Run)
	assert.True(t, steps[3].Checkpoint)
	assert.Equal(t, ". .", steps[4].Copy)
}

func TestRecipeEnvPersistsBeforeCopies(t *testing.T) {
	m := Default()
	m.Env = map[string]string{"PIP_DISABLE_PIP_VERSION_CHECK": "1"}

	steps := m.Recipe().Stages[0].Steps
	require.Len(t, steps, 5)
	assert.Equal(t, map[string]string{"PIP_DISABLE_PIP_VERSION_CHECK": "1"}, steps[1].Env)
	assert.Empty(t, steps[1].Run)
	assert.Empty(t, steps[1].Copy)
}

func TestStepString(t *testing.T) {
	tests := []struct {
		step Step
		want string
	}{
		{Step{Run: "pip install -r r.txt"}, "RUN pip install -r r.txt"},
		{Step{Copy: ". ."}, "COPY . ."},
		{Step{Workdir: "/app"}, "SET workdir=/app"},
		{Step{Env: map[string]string{"B": "2", "A": "1"}}, "SET env:A=1 env:B=2"},
		{Step{Run: "true", Shell: "/bin/bash"}, "RUN true shell=/bin/bash"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.step.String())
	}
}
