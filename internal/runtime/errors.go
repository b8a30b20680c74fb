package runtime

import "errors"

var (
	ErrRuntime        = errors.New("runtime error")
	ErrBaseImage      = errors.New("base image unavailable")
	ErrEmptyArchive   = errors.New("archive contains no image")
	ErrMultipleImages = errors.New("archive contains more than one image")
	ErrInvalidMount   = errors.New("invalid mount")
)
