package buildctx

import (
	"archive/tar"
	"io"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/opencontainers/go-digest"
	"github.com/spf13/afero"

	"github.com/cruciblehq/pybox/internal/fault"
)

// Returns a tar stream of src, rooted at name.
//
// A file source produces a single entry called name. A directory source
// produces its non-ignored tree with every entry prefixed by name; a name
// of "." keeps paths relative to the directory. Errors raised while
// writing surface from Read on the returned stream.
func (c *Context) Tar(src, name string) io.ReadCloser {
	pr, pw := io.Pipe()

	go func() {
		pw.CloseWithError(c.WriteTar(pw, src, name))
	}()

	return pr
}

// Writes a tar stream of src, rooted at name, to w.
func (c *Context) WriteTar(w io.Writer, src, name string) error {
	return c.writeTar(w, src, name, false)
}

// Returns the content digest of src.
//
// The digest covers the paths, modes, link targets, and file contents of
// the non-ignored tree. Timestamps and ownership are excluded.
func (c *Context) Digest(src string) (digest.Digest, error) {
	digester := digest.Canonical.Digester()
	if err := c.writeTar(digester.Hash(), src, ".", true); err != nil {
		return "", err
	}
	return digester.Digest(), nil
}

// Writes the entries of src, rooted at name, to an open tar stream.
//
// The stream is not closed, so the caller can add entries of its own.
func (c *Context) AppendTar(tw *tar.Writer, src, name string) error {
	return c.appendTar(&archiver{fs: c.fs, tw: tw}, src, name)
}

func (c *Context) writeTar(w io.Writer, src, name string, normalize bool) error {
	tw := tar.NewWriter(w)
	if err := c.appendTar(&archiver{fs: c.fs, tw: tw, normalize: normalize}, src, name); err != nil {
		return err
	}
	if err := tw.Close(); err != nil {
		return fault.Wrap(ErrArchive, err)
	}
	return nil
}

func (c *Context) appendTar(a *archiver, src, name string) error {
	info, err := c.lstat(c.path(src))
	if err != nil {
		return fault.Wrap(ErrArchive, err)
	}

	if info.IsDir() {
		err = c.writeDir(a, src, name)
	} else {
		err = a.writeEntry(c.path(src), path.Clean(name), info)
	}
	if err != nil {
		return fault.Wrap(ErrArchive, err)
	}
	return nil
}

// Walks a directory tree in lexical order, skipping ignored paths.
func (c *Context) writeDir(a *archiver, src, prefix string) error {
	base := c.path(src)

	return afero.Walk(c.fs, base, func(hostPath string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(base, hostPath)
		if err != nil {
			return err
		}

		// The root itself is only written when it has a name of its own.
		if rel == "." && path.Clean(prefix) == "." {
			return nil
		}

		ctxRel, err := filepath.Rel(c.root, hostPath)
		if err != nil {
			return err
		}
		ignored, err := c.Ignored(ctxRel)
		if err != nil {
			return err
		}
		if ignored {
			if info.IsDir() && (c.excludes(filepath.ToSlash(ctxRel)) || !c.hasExceptions()) {
				return filepath.SkipDir
			}
			return nil
		}

		return a.writeEntry(hostPath, path.Join(prefix, filepath.ToSlash(rel)), info)
	})
}

// Reports whether any pattern re-includes paths with "!".
func (c *Context) hasExceptions() bool {
	for _, p := range c.patterns {
		if len(p) > 0 && p[0] == '!' {
			return true
		}
	}
	return false
}

func (c *Context) lstat(p string) (os.FileInfo, error) {
	if l, ok := c.fs.(afero.Lstater); ok {
		info, _, err := l.LstatIfPossible(p)
		return info, err
	}
	return c.fs.Stat(p)
}

// Writes host entries into a tar stream.
type archiver struct {
	fs        afero.Fs
	tw        *tar.Writer
	normalize bool // Drop timestamps and ownership.
}

// Writes a single file, directory, or symlink entry.
func (a *archiver) writeEntry(hostPath, archivePath string, info os.FileInfo) error {
	var link string
	if info.Mode()&os.ModeSymlink != 0 {
		lr, ok := a.fs.(afero.LinkReader)
		if !ok {
			return nil
		}
		target, err := lr.ReadlinkIfPossible(hostPath)
		if err != nil {
			return err
		}
		link = target
	}

	header, err := tar.FileInfoHeader(info, link)
	if err != nil {
		return err
	}
	header.Name = archivePath
	if info.IsDir() {
		header.Name += "/"
	}

	if a.normalize {
		header.ModTime = time.Unix(0, 0)
		header.AccessTime = time.Time{}
		header.ChangeTime = time.Time{}
		header.Uid, header.Gid = 0, 0
		header.Uname, header.Gname = "", ""
	}

	if err := a.tw.WriteHeader(header); err != nil {
		return err
	}

	if !info.Mode().IsRegular() {
		return nil
	}

	f, err := a.fs.Open(hostPath)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = io.Copy(a.tw, f)
	return err
}
