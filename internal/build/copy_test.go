package build

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cruciblehq/pybox/internal/buildctx"
)

func TestParseCopy(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		workdir string
		src     string
		dest    string
		wantErr bool
	}{
		{name: "requirements into workdir", input: "requirements.txt requirements.txt", workdir: "/app", src: "requirements.txt", dest: "/app/requirements.txt"},
		{name: "project tree", input: ". .", workdir: "/app", src: ".", dest: "/app"},
		{name: "absolute destination", input: "app_v2.py /srv/app.py", src: "app_v2.py", dest: "/srv/app.py"},
		{name: "trailing slash cleaned", input: "static static/", workdir: "/app", src: "static", dest: "/app/static"},
		{name: "relative destination needs workdir", input: "app_v2.py app.py", wantErr: true},
		{name: "single token", input: "requirements.txt", wantErr: true},
		{name: "three tokens", input: "a b c", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, dest, err := parseCopy(tt.input, tt.workdir)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.src, src)
			assert.Equal(t, tt.dest, dest)
		})
	}
}

func TestExecuteCopyIgnoredSource(t *testing.T) {
	bctx := openContext(t, map[string]string{
		"app_v2.py":         "",
		"requirements.txt":  "flask\n",
		".env":              "SECRET=1",
		buildctx.IgnoreFile: ".env\n",
	})

	ctr := &fakeContainer{}
	err := executeCopy(context.Background(), ctr, ".env .env", "/app", bctx)

	assert.ErrorIs(t, err, ErrCopy)
	assert.Empty(t, ctr.ops)
}

func TestExecuteCopyTreeSkipsIgnored(t *testing.T) {
	bctx := openContext(t, map[string]string{
		"app_v2.py":         "",
		"requirements.txt":  "flask\n",
		".env":              "SECRET=1",
		buildctx.IgnoreFile: ".env\n",
	})

	ctr := &fakeContainer{}
	require.NoError(t, executeCopy(context.Background(), ctr, ". .", "/app", bctx))

	require.Len(t, ctr.ops, 1)
	assert.NotContains(t, ctr.ops[0], ".env")
	assert.Contains(t, ctr.ops[0], "app/app_v2.py")
	assert.Equal(t, []string{"/"}, ctr.dirs)
}

func TestExecuteCopyMissingSource(t *testing.T) {
	bctx := openContext(t, map[string]string{"app_v2.py": ""})

	err := executeCopy(context.Background(), &fakeContainer{}, "requirements.txt requirements.txt", "/app", bctx)
	require.ErrorIs(t, err, ErrCopy)
	assert.Contains(t, err.Error(), "requirements.txt not found")
}
