package build

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"strings"

	"github.com/cruciblehq/pybox/internal/buildctx"
	"github.com/cruciblehq/pybox/internal/fault"
)

// Executes a copy operation, transferring context files into the container.
//
// The copy string has the format "src dest". Sources are resolved relative to
// the build context and must exist and not be excluded by the ignore file;
// a directory source copies its non-ignored tree. The destination is resolved
// against workdir. Existing files at the destination are overwritten.
func executeCopy(ctx context.Context, ctr container, copyStr, workdir string, bctx *buildctx.Context) error {
	src, dest, err := parseCopy(copyStr, workdir)
	if err != nil {
		return fault.Wrap(ErrCopy, err)
	}

	info, err := bctx.Stat(src)
	if errors.Is(err, fs.ErrNotExist) {
		return fault.Wrapf(ErrCopy, "%s not found in build context", src)
	}
	if err != nil {
		return fault.Wrap(ErrCopy, err)
	}

	if path.Clean(src) != "." {
		ignored, err := bctx.Ignored(src)
		if err != nil {
			return fault.Wrap(ErrCopy, err)
		}
		if ignored {
			return fault.Wrapf(ErrCopy, "%s is excluded by %s", src, buildctx.IgnoreFile)
		}
	}

	destDir := path.Dir(dest)
	if err := ctr.MkdirAll(ctx, destDir); err != nil {
		return fault.Wrap(ErrCopy, err)
	}

	slog.Debug("copy", "src", src, "dest", dest, "dir", info.IsDir())

	rc := bctx.Tar(src, path.Base(dest))
	defer rc.Close()

	if err := ctr.CopyTo(ctx, rc, destDir); err != nil {
		return fault.Wrap(ErrCopy, err)
	}

	return nil
}

// Parses a copy string into source and destination paths.
//
// The string must contain exactly two whitespace-separated tokens. If dest
// is not absolute, it is joined with workdir.
func parseCopy(s, workdir string) (src, dest string, err error) {
	parts := strings.Fields(s)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("expected source and destination, got %q", s)
	}

	src = parts[0]
	dest = parts[1]

	if !path.IsAbs(dest) {
		if workdir == "" {
			return "", "", fmt.Errorf("relative dest %q requires workdir", dest)
		}
		dest = path.Join(workdir, dest)
	}

	return src, path.Clean(dest), nil
}
