package runtime

import (
	"maps"
	"slices"
	"testing"

	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

func TestManifestGCLabels(t *testing.T) {
	m := ocispec.Manifest{
		Config: ocispec.Descriptor{Digest: digest.FromString("config")},
		Layers: []ocispec.Descriptor{
			{Digest: digest.FromString("base")},
			{Digest: digest.FromString("install")},
			{Digest: digest.FromString("project")},
		},
	}

	labels := manifestGCLabels(m)

	if got := labels["containerd.io/gc.ref.content.config"]; got != m.Config.Digest.String() {
		t.Fatalf("config label = %q, want %q", got, m.Config.Digest)
	}
	for i, key := range []string{
		"containerd.io/gc.ref.content.l.0",
		"containerd.io/gc.ref.content.l.1",
		"containerd.io/gc.ref.content.l.2",
	} {
		if got := labels[key]; got != m.Layers[i].Digest.String() {
			t.Fatalf("labels[%q] = %q, want %q", key, got, m.Layers[i].Digest)
		}
	}
	if len(labels) != 4 {
		t.Fatalf("len(labels) = %d, want 4", len(labels))
	}
}

func TestApplyConfig(t *testing.T) {
	dst := ocispec.ImageConfig{
		Entrypoint: []string{"python3"},
		Cmd:        []string{"-i"},
		WorkingDir: "/",
		Env:        []string{"PATH=/usr/local/bin:/usr/bin", "LANG=C.UTF-8"},
		Labels:     map[string]string{"base": "python"},
	}

	applyConfig(&dst, ImageConfig{
		Cmd:          []string{"streamlit", "run", "app_v2.py", "--server.port=8501", "--server.address=0.0.0.0"},
		WorkingDir:   "/app",
		ExposedPorts: []string{"8501/tcp"},
		Env:          []string{"PYTHONUNBUFFERED=1"},
		Labels:       map[string]string{"org.opencontainers.image.title": "app"},
	})

	if dst.Entrypoint != nil {
		t.Fatalf("Entrypoint = %v, want nil", dst.Entrypoint)
	}
	if dst.Cmd[0] != "streamlit" || len(dst.Cmd) != 5 {
		t.Fatalf("Cmd = %v", dst.Cmd)
	}
	if dst.WorkingDir != "/app" {
		t.Fatalf("WorkingDir = %q, want /app", dst.WorkingDir)
	}
	if _, ok := dst.ExposedPorts["8501/tcp"]; !ok || len(dst.ExposedPorts) != 1 {
		t.Fatalf("ExposedPorts = %v, want 8501/tcp", dst.ExposedPorts)
	}
	wantEnv := []string{"LANG=C.UTF-8", "PATH=/usr/local/bin:/usr/bin", "PYTHONUNBUFFERED=1"}
	if !slices.Equal(dst.Env, wantEnv) {
		t.Fatalf("Env = %v, want %v", dst.Env, wantEnv)
	}
	wantLabels := map[string]string{"base": "python", "org.opencontainers.image.title": "app"}
	if !maps.Equal(dst.Labels, wantLabels) {
		t.Fatalf("Labels = %v, want %v", dst.Labels, wantLabels)
	}
}
