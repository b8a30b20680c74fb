package fault

import (
	"errors"
	"io"
	"testing"
)

var errSentinel = errors.New("sentinel")

func TestWrap(t *testing.T) {
	err := Wrap(errSentinel, io.EOF)
	if !errors.Is(err, errSentinel) {
		t.Fatal("wrapped error does not match sentinel")
	}
	if !errors.Is(err, io.EOF) {
		t.Fatal("wrapped error does not match cause")
	}
	if err.Error() != "sentinel: EOF" {
		t.Fatalf("Error() = %q, want %q", err.Error(), "sentinel: EOF")
	}
}

func TestWrapNil(t *testing.T) {
	if err := Wrap(errSentinel, nil); err != errSentinel {
		t.Fatalf("Wrap(nil) = %v, want sentinel", err)
	}
}

func TestWrapAlreadyWrapped(t *testing.T) {
	inner := Wrap(errSentinel, io.EOF)
	if got := Wrap(errSentinel, inner); got != inner {
		t.Fatalf("double wrap = %q, want %q", got, inner)
	}
}

func TestWrapf(t *testing.T) {
	err := Wrapf(errSentinel, "step %d: %w", 3, io.ErrUnexpectedEOF)
	if !errors.Is(err, errSentinel) || !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("Wrapf lost a cause: %v", err)
	}
	if err.Error() != "sentinel: step 3: unexpected EOF" {
		t.Fatalf("Error() = %q", err.Error())
	}
}
