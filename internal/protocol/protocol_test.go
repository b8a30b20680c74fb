package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cruciblehq/pybox/internal/manifest"
)

func TestEncodeDecode(t *testing.T) {
	req := &BuildRequest{
		Manifest: manifest.Default(),
		Context:  "/src/resume-parser",
		Output:   "/src/resume-parser/dist",
		NoCache:  true,
	}

	data, err := Encode(CmdBuild, req)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "\n")

	env, payload, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, CmdBuild, env.Command)
	assert.Equal(t, Version, env.Version)

	got, err := DecodePayload[BuildRequest](payload)
	require.NoError(t, err)
	assert.Equal(t, req, got)
}

func TestEncodeNilPayload(t *testing.T) {
	data, err := Encode(CmdShutdown, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"version":1,"command":"shutdown"}`, string(data))

	_, payload, err := Decode(data)
	require.NoError(t, err)

	_, err = DecodePayload[ContainerRequest](payload)
	assert.ErrorIs(t, err, ErrNoPayload)
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
		err  error
	}{
		{"not json", `build`, ErrMalformed},
		{"wrong version", `{"version":2,"command":"build"}`, ErrVersion},
		{"no command", `{"version":1}`, ErrMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Decode([]byte(tt.data))
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestDecodePayloadMalformed(t *testing.T) {
	_, err := DecodePayload[ContainerRequest]([]byte(`{"id":7}`))
	assert.ErrorIs(t, err, ErrMalformed)
}
