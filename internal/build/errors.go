package build

import "errors"

var (
	ErrBuild               = errors.New("build failed")
	ErrPreflight           = errors.New("pre-flight check failed")
	ErrMissingRequirements = errors.New("dependency manifest missing from build context")
	ErrFileSystemOperation = errors.New("file system operation failed")
	ErrCopy                = errors.New("copy failed")
	ErrCommandFailed       = errors.New("command failed")
)
