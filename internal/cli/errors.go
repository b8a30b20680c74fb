package cli

import "errors"

var (
	ErrUsage  = errors.New("invalid usage")
	ErrExists = errors.New("file already exists")
)
