package manifest

import "errors"

var (
	ErrNotFound        = errors.New("manifest not found")
	ErrInvalidManifest = errors.New("invalid manifest")
	ErrUnpinnedBase    = errors.New("base image is not version pinned")
	ErrPortMismatch    = errors.New("declared port does not match launch port")
)
