package buildctx

import "errors"

var (
	ErrInvalidContext = errors.New("invalid build context")
	ErrIgnoreFile     = errors.New("invalid ignore file")
	ErrArchive        = errors.New("archive failed")
)
