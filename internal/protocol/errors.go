package protocol

import "errors"

var (
	ErrMalformed   = errors.New("malformed message")
	ErrVersion     = errors.New("unsupported protocol version")
	ErrNoPayload   = errors.New("missing payload")
	ErrRemoteError = errors.New("daemon error")
)
