// Package fault wraps causes under package-level sentinel errors.
//
// Every package declares its sentinels in errors.go. Call sites wrap the
// underlying cause with [Wrap] or add context with [Wrapf], so callers can
// match the sentinel with errors.Is while the message keeps the cause.
package fault

import (
	"errors"
	"fmt"
)

// Wraps err under sentinel.
//
// The result matches both sentinel and err with errors.Is. A nil err yields
// the sentinel itself.
func Wrap(sentinel, err error) error {
	if err == nil {
		return sentinel
	}
	if errors.Is(err, sentinel) {
		return err
	}
	return fmt.Errorf("%w: %w", sentinel, err)
}

// Wraps a formatted message under sentinel.
//
// The format may contain %w verbs; wrapped errors remain matchable.
func Wrapf(sentinel error, format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{sentinel}, args...)...)
}
