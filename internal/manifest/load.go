package manifest

import (
	_ "embed"
	"errors"
	"io/fs"
	"strings"

	"github.com/spf13/afero"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/cruciblehq/pybox/internal/fault"
)

// Default manifest file name, looked up in the build context.
const DefaultFile = "pybox.yaml"

//go:embed schema.json
var schemaJSON []byte

// Compiled manifest schema.
var schema = mustSchema()

// Reads, validates, and returns the manifest at path.
//
// Returns [ErrNotFound] if the file does not exist.
func Load(fsys afero.Fs, path string) (*Manifest, error) {
	data, err := afero.ReadFile(fsys, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fault.Wrapf(ErrNotFound, "%s", path)
		}
		return nil, fault.Wrap(ErrInvalidManifest, err)
	}

	m, err := Parse(data)
	if err != nil {
		return nil, fault.Wrapf(ErrInvalidManifest, "%s: %w", path, err)
	}
	return m, nil
}

// Decodes a YAML manifest.
//
// The document is checked against the manifest schema, decoded over
// [Default] so omitted fields keep their stock values, then validated.
func Parse(data []byte) (*Manifest, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fault.Wrap(ErrInvalidManifest, err)
	}
	if doc == nil {
		doc = map[string]any{}
	}

	if err := checkSchema(doc); err != nil {
		return nil, err
	}

	m := Default()
	if err := yaml.Unmarshal(data, m); err != nil {
		return nil, fault.Wrap(ErrInvalidManifest, err)
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Encodes the manifest as YAML.
func Encode(m *Manifest) ([]byte, error) {
	return yaml.Marshal(m)
}

// Validates a decoded YAML document against the manifest schema.
func checkSchema(doc any) error {
	result, err := schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fault.Wrap(ErrInvalidManifest, err)
	}
	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		msgs = append(msgs, desc.String())
	}
	return fault.Wrapf(ErrInvalidManifest, "%s", strings.Join(msgs, "; "))
}

// Compiles the embedded schema, panicking if it is malformed.
func mustSchema() *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemaJSON))
	if err != nil {
		panic("manifest: invalid embedded schema: " + err.Error())
	}
	return s
}
