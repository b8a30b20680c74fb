package dockerfile

import (
	"bytes"
	"encoding/json"
	"os"
	"strconv"
	"strings"
	"text/template"

	"github.com/google/renameio/v2"

	"github.com/cruciblehq/pybox/internal/fault"
	"github.com/cruciblehq/pybox/internal/manifest"
)

// Default file name of the rendered Dockerfile.
const DefaultFile = "Dockerfile"

var dockerfileTemplate = template.Must(template.New("Dockerfile").Parse(`# syntax=docker/dockerfile:1
FROM {{.Base}}
WORKDIR {{.Workdir}}
{{range .Env}}ENV {{.}}
{{end}}{{range .Labels}}LABEL {{.}}
{{end}}COPY {{.StageManifest}}
{{range .Run}}RUN {{.}}
{{end}}COPY {{.StageProject}}
EXPOSE {{.Port}}
CMD {{.Cmd}}
`))

// Template input, built from the manifest's directives.
type view struct {
	Base          string
	Workdir       string
	Env           []string
	Labels        []string
	StageManifest string
	Run           []string
	StageProject  string
	Port          string
	Cmd           string
}

// Renders the manifest as a Dockerfile.
func Render(m *manifest.Manifest) ([]byte, error) {
	v, err := newView(m)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := dockerfileTemplate.Execute(&buf, v); err != nil {
		return nil, fault.Wrap(ErrRender, err)
	}
	return buf.Bytes(), nil
}

// Renders the manifest and atomically writes it to path.
func Write(path string, m *manifest.Manifest, perm os.FileMode) error {
	data, err := Render(m)
	if err != nil {
		return err
	}
	if err := renameio.WriteFile(path, data, perm); err != nil {
		return fault.Wrap(ErrRender, err)
	}
	return nil
}

// Maps directives onto template fields.
func newView(m *manifest.Manifest) (*view, error) {
	v := &view{}

	for _, d := range m.Directives() {
		switch d.Kind {
		case manifest.KindFrom:
			v.Base = d.Args[0]
		case manifest.KindWorkdir:
			v.Workdir = d.Args[0]
		case manifest.KindEnv:
			v.Env = append(v.Env, keyValue(d.Args[0], d.Args[1]))
		case manifest.KindLabel:
			v.Labels = append(v.Labels, keyValue(d.Args[0], d.Args[1]))
		case manifest.KindStageManifest:
			v.StageManifest = strings.Join(d.Args, " ")
		case manifest.KindInstall, manifest.KindSetup:
			v.Run = append(v.Run, d.Args[0])
		case manifest.KindStageProject:
			v.StageProject = strings.Join(d.Args, " ")
		case manifest.KindExpose:
			v.Port = strings.TrimSuffix(d.Args[0], "/tcp")
		case manifest.KindLaunch:
			cmd, err := json.Marshal(d.Args)
			if err != nil {
				return nil, fault.Wrap(ErrRender, err)
			}
			v.Cmd = string(cmd)
		}
	}

	return v, nil
}

// Formats an ENV or LABEL pair with a quoted value. Dollar signs are escaped
// so the builder keeps them literal instead of substituting variables.
func keyValue(k, v string) string {
	return k + "=" + strings.ReplaceAll(strconv.Quote(v), "$", `\$`)
}
