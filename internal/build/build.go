package build

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"

	"github.com/spf13/afero"

	"github.com/cruciblehq/pybox/internal/buildctx"
	"github.com/cruciblehq/pybox/internal/cache"
	"github.com/cruciblehq/pybox/internal/fault"
	"github.com/cruciblehq/pybox/internal/manifest"
	"github.com/cruciblehq/pybox/internal/paths"
	"github.com/cruciblehq/pybox/internal/runtime"
)

// Reference annotation of the exported archive when none is given.
const DefaultTag = "localhost/pybox:latest"

// Controls a build.
type Options struct {
	Manifest *manifest.Manifest // Build manifest.
	Context  string             // Build context directory.
	Fs       afero.Fs           // Filesystem holding the context. Nil uses the host filesystem.
	Output   string             // Directory for the exported image.
	Platform string             // Target platform (e.g., "linux/amd64"). Empty uses the host.
	Tag      string             // Reference annotation of the archive. Empty uses [DefaultTag].
	ID       string             // Build container ID. Empty derives one from the context.
	Cache    *cache.Index       // Layer cache index. Nil disables caching.
	NoCache  bool               // Neither read nor write the layer cache.
}

// Returned after a successful build.
type Result struct {
	Output   string // Directory containing the exported image.
	Archive  string // Path of the OCI archive.
	CacheHit bool   // Whether the install layer came from the cache.
}

// Builds the manifest's image against the container runtime.
//
// The manifest and build context are checked before any container work (see
// [Preflight]). The single stage then runs in a build container: steps up to
// the checkpoint come from the layer cache when their inputs are unchanged,
// the rest always run. The result is exported as an OCI archive in the output
// directory. The build container is destroyed whether or not the build
// succeeds, and nothing is exported on failure.
func Run(ctx context.Context, rt *runtime.Runtime, opts Options) (*Result, error) {
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.Platform == "" {
		opts.Platform = runtime.DefaultPlatform()
	}
	if opts.Tag == "" {
		opts.Tag = DefaultTag
	}

	bctx, err := Preflight(opts.Fs, opts.Manifest, opts.Context, opts.Output)
	if err != nil {
		return nil, err
	}

	recipe := opts.Manifest.Recipe()

	slog.Info("executing recipe",
		"context", opts.Context,
		"output", opts.Output,
		"base", opts.Manifest.Base,
		"platform", opts.Platform,
		"steps", len(recipe.Stages[0].Steps),
	)

	if err := os.MkdirAll(opts.Output, paths.DefaultDirMode); err != nil {
		return nil, fault.Wrap(ErrFileSystemOperation, err)
	}

	return newRecipe(rt, bctx, opts).build(ctx, recipe.Stages)
}

// Checks that a build can start.
//
// The manifest must be valid, the context must be a directory, and the
// dependency manifest must be a regular file inside the context that the
// ignore file does not exclude. Paths in exclude that lie inside the context,
// such as the output directory, are left out of it. Returns the opened build
// context.
func Preflight(fsys afero.Fs, m *manifest.Manifest, dir string, exclude ...string) (*buildctx.Context, error) {
	if m == nil {
		return nil, fault.Wrapf(ErrPreflight, "no manifest")
	}
	if err := m.Validate(); err != nil {
		return nil, fault.Wrap(ErrPreflight, err)
	}

	bctx, err := buildctx.Open(fsys, dir, exclude...)
	if err != nil {
		return nil, fault.Wrap(ErrPreflight, err)
	}

	info, err := bctx.Stat(m.Requirements)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fault.Wrapf(ErrMissingRequirements, "%s not found in %s", m.Requirements, dir)
	}
	if err != nil {
		return nil, fault.Wrap(ErrPreflight, err)
	}
	if !info.Mode().IsRegular() {
		return nil, fault.Wrapf(ErrMissingRequirements, "%s is not a regular file", m.Requirements)
	}

	ignored, err := bctx.Ignored(m.Requirements)
	if err != nil {
		return nil, fault.Wrap(ErrPreflight, err)
	}
	if ignored {
		return nil, fault.Wrapf(ErrMissingRequirements, "%s is excluded by %s", m.Requirements, buildctx.IgnoreFile)
	}

	return bctx, nil
}
