package client

import "errors"

var (
	ErrConnect    = errors.New("cannot reach daemon")
	ErrUnexpected = errors.New("unexpected response")
)
