package protocol

import (
	"encoding/json"

	"github.com/cruciblehq/pybox/internal/fault"
)

// Protocol version written into every envelope.
const Version = 1

// Name of a daemon command or response kind.
type Command string

const (
	CmdBuild            Command = "build"             // Build an image from a manifest.
	CmdLaunch           Command = "launch"            // Start a built image detached.
	CmdContainerStop    Command = "container-stop"    // Stop a launched container.
	CmdContainerStatus  Command = "container-status"  // Query a launched container.
	CmdContainerDestroy Command = "container-destroy" // Remove a launched container.
	CmdStatus           Command = "status"            // Query the daemon.
	CmdShutdown         Command = "shutdown"          // Stop the daemon.
	CmdOK               Command = "ok"                // Successful response.
	CmdError            Command = "error"             // Failed response.
)

// Wire envelope of every message.
type Envelope struct {
	Version int             `json:"version"`           // Protocol version.
	Command Command         `json:"command"`           // Command or response kind.
	Payload json.RawMessage `json:"payload,omitempty"` // Command-specific body.
}

// Encodes a command and payload into an envelope.
//
// A nil payload is omitted. The result carries no trailing newline.
func Encode(cmd Command, payload any) ([]byte, error) {
	env := Envelope{Version: Version, Command: cmd}

	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fault.Wrap(ErrMalformed, err)
		}
		env.Payload = raw
	}

	data, err := json.Marshal(env)
	if err != nil {
		return nil, fault.Wrap(ErrMalformed, err)
	}
	return data, nil
}

// Decodes an envelope, returning it with its raw payload.
func Decode(data []byte) (*Envelope, json.RawMessage, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, nil, fault.Wrap(ErrMalformed, err)
	}
	if env.Version != Version {
		return nil, nil, fault.Wrapf(ErrVersion, "got %d, want %d", env.Version, Version)
	}
	if env.Command == "" {
		return nil, nil, fault.Wrapf(ErrMalformed, "missing command")
	}
	return &env, env.Payload, nil
}

// Decodes a raw payload into T.
func DecodePayload[T any](payload json.RawMessage) (*T, error) {
	if len(payload) == 0 {
		return nil, ErrNoPayload
	}

	var v T
	if err := json.Unmarshal(payload, &v); err != nil {
		return nil, fault.Wrap(ErrMalformed, err)
	}
	return &v, nil
}
