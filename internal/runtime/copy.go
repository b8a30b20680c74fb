package runtime

import (
	"context"
	"io"
	"strings"

	"github.com/cruciblehq/pybox/internal/fault"
)

// Creates a directory inside the container, including parents.
func (c *Container) MkdirAll(ctx context.Context, path string) error {
	return c.system(ctx, nil, "mkdir", "-p", path)
}

// Extracts a tar stream into destDir inside the container.
//
// Extraction runs the image's own tar, so the base image must ship one; every
// python image does. Existing files with the same names are overwritten.
func (c *Container) CopyTo(ctx context.Context, r io.Reader, destDir string) error {
	return c.system(ctx, r, "tar", "-x", "-f", "-", "-C", destDir)
}

// Runs a housekeeping command and turns a non-zero exit into an error
// carrying the command line and the end of its stderr.
func (c *Container) system(ctx context.Context, stdin io.Reader, args ...string) error {
	stderr := &tailBuffer{limit: 1 << 10}
	code, err := c.exec(ctx, execSpec{args: args, stdin: stdin, stderr: stderr})
	if err != nil {
		return err
	}
	if code != 0 {
		return fault.Wrapf(ErrRuntime, "%q exited with %d: %s", strings.Join(args, " "), code, strings.TrimSpace(stderr.String()))
	}
	return nil
}
