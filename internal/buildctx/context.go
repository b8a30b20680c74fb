package buildctx

import (
	"bufio"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	ignore "github.com/codeskyblue/dockerignore"
	"github.com/spf13/afero"

	"github.com/cruciblehq/pybox/internal/fault"
)

// Name of the ignore file at the context root.
const IgnoreFile = ".dockerignore"

// Build context rooted at a directory.
type Context struct {
	fs       afero.Fs // Filesystem holding the context.
	root     string   // Context root directory.
	patterns []string // Ignore patterns from the ignore file.
	excluded []string // Slash-separated paths always left out of the context.
}

// Opens the build context at root.
//
// The root must be a directory. Ignore patterns are read from the root's
// .dockerignore if one exists. Each exclude path that lies strictly inside
// the root is left out of the context regardless of the ignore file, so a
// build's own output directory never ends up in its image.
func Open(fsys afero.Fs, root string, exclude ...string) (*Context, error) {
	info, err := fsys.Stat(root)
	if err != nil {
		return nil, fault.Wrap(ErrInvalidContext, err)
	}
	if !info.IsDir() {
		return nil, fault.Wrapf(ErrInvalidContext, "%s is not a directory", root)
	}

	patterns, err := readPatterns(fsys, filepath.Join(root, IgnoreFile))
	if err != nil {
		return nil, err
	}

	c := &Context{fs: fsys, root: root, patterns: patterns}
	for _, p := range exclude {
		if rel, ok := within(root, p); ok {
			c.excluded = append(c.excluded, rel)
		}
	}
	return c, nil
}

// Returns the context root.
func (c *Context) Root() string {
	return c.root
}

// Returns the ignore patterns in file order.
func (c *Context) Patterns() []string {
	return c.patterns
}

// Returns file information for a path relative to the root.
func (c *Context) Stat(rel string) (os.FileInfo, error) {
	return c.fs.Stat(c.path(rel))
}

// Reports whether a path relative to the root is excluded from the context.
func (c *Context) Ignored(rel string) (bool, error) {
	rel = filepath.ToSlash(filepath.Clean(rel))
	if c.excludes(rel) {
		return true, nil
	}
	if len(c.patterns) == 0 {
		return false, nil
	}
	matched, err := ignore.Matches(rel, c.patterns)
	if err != nil {
		return false, fault.Wrap(ErrIgnoreFile, err)
	}
	return matched, nil
}

// Reports whether a slash-separated relative path is, or is under, an
// excluded path.
func (c *Context) excludes(rel string) bool {
	for _, ex := range c.excluded {
		if rel == ex || strings.HasPrefix(rel, ex+"/") {
			return true
		}
	}
	return false
}

// Returns p relative to root when p lies strictly inside it.
func within(root, p string) (string, bool) {
	rel, err := filepath.Rel(filepath.Clean(root), filepath.Clean(p))
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

// Resolves a relative path against the root.
func (c *Context) path(rel string) string {
	return filepath.Join(c.root, filepath.FromSlash(rel))
}

// Reads ignore patterns, skipping blank lines and comments.
func readPatterns(fsys afero.Fs, path string) ([]string, error) {
	f, err := fsys.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fault.Wrap(ErrIgnoreFile, err)
	}
	defer f.Close()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fault.Wrap(ErrIgnoreFile, err)
	}

	return patterns, nil
}
