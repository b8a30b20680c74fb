package cli

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/afero"

	"github.com/cruciblehq/pybox/internal/build"
	"github.com/cruciblehq/pybox/internal/buildctx"
	"github.com/cruciblehq/pybox/internal/cache"
	"github.com/cruciblehq/pybox/internal/docker"
	"github.com/cruciblehq/pybox/internal/launch"
	"github.com/cruciblehq/pybox/internal/manifest"
	"github.com/cruciblehq/pybox/internal/paths"
	"github.com/cruciblehq/pybox/internal/runtime"
)

// Builds a manifest into something a [launch.Launcher] can start.
type engine interface {

	// Builds the image and returns what to launch: an archive path for
	// containerd, an image tag for docker.
	build(ctx context.Context, m *manifest.Manifest, dir string, opts *BuildFlags) (string, error)

	// Returns the launcher for built images.
	launcher(tag string) launch.Launcher

	// Releases the backend connection.
	Close() error
}

// Connects to the backend selected by flags.
func (f *EngineFlags) connect() (engine, error) {
	if f.Backend == backendDocker {
		c, err := docker.New()
		if err != nil {
			return nil, err
		}
		return &dockerEngine{client: c}, nil
	}

	rt, err := runtime.New(runtime.Options{
		Address:     f.ContainerdAddress,
		Namespace:   f.Namespace,
		Snapshotter: f.Snapshotter,
	})
	if err != nil {
		return nil, err
	}
	return &containerdEngine{rt: rt}, nil
}

// Builds through the containerd recipe executor.
type containerdEngine struct {
	rt *runtime.Runtime
}

func (e *containerdEngine) build(ctx context.Context, m *manifest.Manifest, dir string, opts *BuildFlags) (string, error) {
	var index *cache.Index
	if !opts.NoCache {
		var err error
		if index, err = cache.Open(paths.CacheDB()); err != nil {
			slog.Warn("layer cache unavailable, building without it", "error", err)
			index = nil
		} else {
			defer index.Close()
		}
	}

	result, err := build.Run(ctx, e.rt, build.Options{
		Manifest: m,
		Context:  dir,
		Fs:       afero.NewOsFs(),
		Output:   opts.outputDir(dir),
		Platform: opts.Platform,
		Tag:      opts.Tag,
		Cache:    index,
		NoCache:  opts.NoCache,
	})
	if err != nil {
		return "", err
	}

	slog.Info("image built", "archive", result.Archive, "cached", result.CacheHit)
	return result.Archive, nil
}

func (e *containerdEngine) launcher(tag string) launch.Launcher {
	return &launch.Containerd{Runtime: e.rt, Tag: tag}
}

func (e *containerdEngine) Close() error {
	return e.rt.Close()
}

// Builds through a Docker Engine.
type dockerEngine struct {
	client *docker.Client
}

func (e *dockerEngine) build(ctx context.Context, m *manifest.Manifest, dir string, opts *BuildFlags) (string, error) {
	bctx, err := preflight(afero.NewOsFs(), m, dir, opts.outputDir(dir))
	if err != nil {
		return "", err
	}

	id, err := e.client.Build(ctx, docker.BuildOptions{
		Manifest: m,
		Context:  bctx,
		Tag:      opts.Tag,
		Platform: opts.Platform,
		NoCache:  opts.NoCache,
		Progress: os.Stderr,
	})
	if err != nil {
		return "", err
	}

	slog.Info("image built", "tag", opts.Tag, "id", id)
	return opts.Tag, nil
}

func (e *dockerEngine) launcher(string) launch.Launcher {
	return &launch.Docker{Client: e.client}
}

func (e *dockerEngine) Close() error {
	return e.client.Close()
}

// Runs the build pre-flight, leaving output out of the context.
func preflight(fsys afero.Fs, m *manifest.Manifest, dir, output string) (*buildctx.Context, error) {
	return build.Preflight(fsys, m, dir, output)
}
