package runtime

import (
	"io"
	"slices"
	"strings"
	"testing"
)

func TestMergeEnv(t *testing.T) {
	tests := []struct {
		name      string
		base      []string
		overrides []string
		want      []string
	}{
		{
			name:      "override existing key",
			base:      []string{"PATH=/usr/bin", "LANG=C.UTF-8"},
			overrides: []string{"LANG=en_US.UTF-8"},
			want:      []string{"LANG=en_US.UTF-8", "PATH=/usr/bin"},
		},
		{
			name:      "add new key",
			base:      []string{"PATH=/usr/bin"},
			overrides: []string{"PYTHONUNBUFFERED=1"},
			want:      []string{"PATH=/usr/bin", "PYTHONUNBUFFERED=1"},
		},
		{
			name:      "empty base",
			overrides: []string{"A=1"},
			want:      []string{"A=1"},
		},
		{
			name: "both empty",
			want: []string{},
		},
		{
			name: "value with equals sign",
			base: []string{"OPTS=--server.port=8501"},
			want: []string{"OPTS=--server.port=8501"},
		},
		{
			name:      "malformed entries skipped",
			base:      []string{"NOEQUALS", "A=1"},
			overrides: []string{"ALSO_BAD", "B=2"},
			want:      []string{"A=1", "B=2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mergeEnv(tt.base, tt.overrides)
			if !slices.Equal(got, tt.want) {
				t.Fatalf("mergeEnv = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNextExecID(t *testing.T) {
	a := nextExecID()
	b := nextExecID()
	if a == b {
		t.Fatalf("nextExecID returned duplicate: %q", a)
	}
	if !strings.HasPrefix(a, "pybox-exec-") {
		t.Fatalf("nextExecID = %q, want pybox-exec- prefix", a)
	}
}

func TestTailBuffer(t *testing.T) {
	tb := &tailBuffer{limit: 8}
	io.WriteString(tb, "Collecting")
	io.WriteString(tb, " flask\n")
	if got := tb.String(); got != "...g flask\n" {
		t.Fatalf("String = %q", got)
	}

	short := &tailBuffer{limit: 64}
	io.WriteString(short, "ERROR: No matching distribution")
	if got := short.String(); got != "ERROR: No matching distribution" {
		t.Fatalf("String = %q", got)
	}
}

func TestEOFReader(t *testing.T) {
	r := &eofReader{r: strings.NewReader("requirements"), eof: make(chan struct{})}

	select {
	case <-r.eof:
		t.Fatal("eof closed before read")
	default:
	}

	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "requirements" {
		t.Fatalf("read %q", data)
	}

	// A second EOF must not close the channel again.
	if _, err := r.Read(make([]byte, 1)); err != io.EOF {
		t.Fatalf("err = %v, want EOF", err)
	}
	<-r.eof
}
