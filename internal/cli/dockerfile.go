package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
	"github.com/spf13/afero"

	"github.com/cruciblehq/pybox/internal/dockerfile"
	"github.com/cruciblehq/pybox/internal/fault"
	"github.com/cruciblehq/pybox/internal/manifest"
	"github.com/cruciblehq/pybox/internal/paths"
)

// Represents the 'pybox render' command.
type RenderCmd struct {
	ProjectFlags `embed:""`
	Output       string `short:"o" default:"Dockerfile" help:"Output path, relative to the context, or - for stdout." placeholder:"FILE"`
}

// Executes the render command.
func (c *RenderCmd) Run(ctx context.Context) error {
	dir, err := c.contextDir()
	if err != nil {
		return err
	}

	m, err := c.load(afero.NewOsFs(), dir)
	if err != nil {
		return err
	}

	if c.Output == "-" {
		data, err := dockerfile.Render(m)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(data)
		return err
	}

	out := resolve(dir, c.Output)
	if err := dockerfile.Write(out, m, paths.DefaultFileMode); err != nil {
		return err
	}

	slog.Info("dockerfile written", "path", out)
	return nil
}

// Represents the 'pybox import' command.
type ImportCmd struct {
	Dockerfile string `arg:"" default:"Dockerfile" help:"Dockerfile to convert."`
	Output     string `short:"o" default:"pybox.yaml" help:"Manifest to write, or - for stdout." placeholder:"FILE"`
	Force      bool   `help:"Overwrite an existing manifest."`
}

// Executes the import command.
//
// Instructions the manifest cannot express are reported as warnings and
// dropped; a port that disagrees with the launch command is reported the
// same way.
func (c *ImportCmd) Run(ctx context.Context) error {
	f, err := os.Open(c.Dockerfile)
	if err != nil {
		return err
	}
	defer f.Close()

	result, err := dockerfile.Import(f)
	if err != nil {
		return err
	}

	for _, w := range result.Warnings {
		slog.Warn(w.Error(), "file", c.Dockerfile)
	}

	data, err := manifest.Encode(result.Manifest)
	if err != nil {
		return err
	}

	if c.Output == "-" {
		_, err = os.Stdout.Write(data)
		return err
	}

	if !c.Force {
		if _, err := os.Stat(c.Output); err == nil {
			return fault.Wrapf(ErrExists, "%s, use --force to overwrite", c.Output)
		}
	}

	if err := renameio.WriteFile(c.Output, data, paths.DefaultFileMode); err != nil {
		return err
	}

	slog.Info("manifest written", "path", c.Output, "warnings", len(result.Warnings))
	return nil
}

// Represents the 'pybox check' command.
type CheckCmd struct {
	ProjectFlags `embed:""`
}

// Executes the check command.
//
// Runs the build pre-flight without touching a backend and prints the
// directives the manifest compiles to.
func (c *CheckCmd) Run(ctx context.Context) error {
	dir, err := c.contextDir()
	if err != nil {
		return err
	}

	fsys := afero.NewOsFs()
	m, err := c.load(fsys, dir)
	if err != nil {
		return err
	}

	bctx, err := preflight(fsys, m, dir, paths.Output(dir))
	if err != nil {
		return err
	}
	slog.Debug("build context", "root", bctx.Root(), "ignore", bctx.Patterns())

	for _, d := range m.Directives() {
		fmt.Printf("%-16s %q\n", d.Kind, d.Args)
	}
	return nil
}

// Joins a relative path onto dir.
func resolve(dir, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}
