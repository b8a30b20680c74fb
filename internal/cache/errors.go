package cache

import "errors"

var (
	ErrCache = errors.New("layer cache failed")
	ErrEntry = errors.New("malformed cache entry")
)
