package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/afero"

	"github.com/cruciblehq/pybox/internal/client"
	"github.com/cruciblehq/pybox/internal/fault"
	"github.com/cruciblehq/pybox/internal/launch"
	"github.com/cruciblehq/pybox/internal/manifest"
	"github.com/cruciblehq/pybox/internal/paths"
	"github.com/cruciblehq/pybox/internal/protocol"
)

// Options shared by the commands that build.
type BuildFlags struct {
	Output   string `short:"o" env:"PYBOX_OUTPUT" help:"Output directory for the OCI archive. Defaults to dist in the context." placeholder:"DIR"`
	Platform string `env:"PYBOX_PLATFORM" help:"Target platform (e.g. linux/amd64). Defaults to the host."`
	Tag      string `short:"t" default:"${tag}" env:"PYBOX_TAG" help:"Image reference."`
	NoCache  bool   `env:"PYBOX_NO_CACHE" help:"Do not reuse or record the install layer."`
}

// Returns the output directory for a build of dir.
func (f *BuildFlags) outputDir(dir string) string {
	if f.Output == "" {
		return paths.Output(dir)
	}
	return resolve(dir, f.Output)
}

// Represents the 'pybox build' command.
type BuildCmd struct {
	ProjectFlags `embed:""`
	EngineFlags  `embed:""`
	BuildFlags   `embed:""`
	Daemon       bool `env:"PYBOX_DAEMON" help:"Build through the running daemon (containerd only)."`
}

// Executes the build command.
func (c *BuildCmd) Run(ctx context.Context) error {
	dir, err := c.contextDir()
	if err != nil {
		return err
	}

	m, err := c.load(afero.NewOsFs(), dir)
	if err != nil {
		return err
	}

	if c.Daemon {
		return c.remote(ctx, m, dir)
	}

	eng, err := c.connect()
	if err != nil {
		return err
	}
	defer eng.Close()

	image, err := eng.build(ctx, m, dir, &c.BuildFlags)
	if err != nil {
		return err
	}

	fmt.Println(image)
	return nil
}

// Sends the build to the daemon.
func (c *BuildCmd) remote(ctx context.Context, m *manifest.Manifest, dir string) error {
	if c.Backend != backendContainerd {
		return fault.Wrapf(ErrUsage, "--daemon requires the %s backend", backendContainerd)
	}

	result, err := client.New(RootCmd.Socket).Build(ctx, &protocol.BuildRequest{
		Manifest: m,
		Context:  dir,
		Output:   c.outputDir(dir),
		Platform: c.Platform,
		NoCache:  c.NoCache,
	})
	if err != nil {
		return err
	}

	slog.Info("image built", "archive", result.Archive, "cached", result.CacheHit)
	fmt.Println(result.Archive)
	return nil
}

// Represents the 'pybox run' command.
type RunCmd struct {
	ProjectFlags `embed:""`
	EngineFlags  `embed:""`
	BuildFlags   `embed:""`
	Name         string   `short:"n" env:"PYBOX_NAME" help:"Container name. Defaults to a generated one."`
	Volume       []string `short:"V" env:"PYBOX_VOLUME" help:"Bind mount a host directory (host:container[:ro])." placeholder:"SPEC"`
	Env          []string `short:"e" help:"Set an environment variable in the container (KEY=value)." placeholder:"KEY=VALUE"`
}

// Executes the run command.
//
// Builds the image, then runs its launch process in the foreground with its
// output on the terminal. The command exits with the process's exit status.
func (c *RunCmd) Run(ctx context.Context) error {
	dir, err := c.contextDir()
	if err != nil {
		return err
	}

	m, err := c.load(afero.NewOsFs(), dir)
	if err != nil {
		return err
	}

	eng, err := c.connect()
	if err != nil {
		return err
	}
	defer eng.Close()

	image, err := eng.build(ctx, m, dir, &c.BuildFlags)
	if err != nil {
		return err
	}

	return launch.Run(ctx, eng.launcher(c.Tag), launch.Options{
		Manifest: m,
		Image:    image,
		Name:     c.Name,
		Volumes:  c.Volume,
		Dir:      dir,
		Env:      c.Env,
		Stdout:   os.Stdout,
		Stderr:   os.Stderr,
	})
}
