package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/cruciblehq/pybox/internal/client"
	"github.com/cruciblehq/pybox/internal/fault"
	"github.com/cruciblehq/pybox/internal/protocol"
	"github.com/cruciblehq/pybox/internal/runtime"
)

// Represents the 'pybox status' command.
type StatusCmd struct{}

// Executes the status command.
func (c *StatusCmd) Run(ctx context.Context) error {
	status, err := client.New(RootCmd.Socket).Status(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("running  %t\n", status.Running)
	fmt.Printf("version  %s\n", status.Version)
	fmt.Printf("pid      %d\n", status.Pid)
	fmt.Printf("uptime   %s\n", status.Uptime)
	fmt.Printf("builds   %d\n", status.Builds)
	return nil
}

// Represents the 'pybox shutdown' command.
type ShutdownCmd struct{}

// Executes the shutdown command.
func (c *ShutdownCmd) Run(ctx context.Context) error {
	return client.New(RootCmd.Socket).Shutdown(ctx)
}

// Represents the 'pybox launch' command.
type LaunchCmd struct {
	Archive string   `arg:"" help:"OCI archive produced by a build."`
	Name    string   `short:"n" help:"Container name. Defaults to a generated one."`
	Volume  []string `short:"V" help:"Bind mount a host directory (host:container[:ro])." placeholder:"SPEC"`
	Env     []string `short:"e" help:"Set an environment variable in the container (KEY=value)." placeholder:"KEY=VALUE"`
}

// Executes the launch command.
//
// The daemon imports the archive and starts it detached. Relative host paths
// are resolved here, since the daemon does not share the working directory.
func (c *LaunchCmd) Run(ctx context.Context) error {
	archive, err := filepath.Abs(c.Archive)
	if err != nil {
		return fault.Wrap(ErrUsage, err)
	}

	wd, err := os.Getwd()
	if err != nil {
		return err
	}

	volumes := make([]string, 0, len(c.Volume))
	for _, v := range c.Volume {
		m, err := runtime.ParseMount(v, wd)
		if err != nil {
			return err
		}
		volumes = append(volumes, mountSpec(m))
	}

	result, err := client.New(RootCmd.Socket).Launch(ctx, &protocol.LaunchRequest{
		Archive: archive,
		ID:      c.Name,
		Volumes: volumes,
		Env:     c.Env,
	})
	if err != nil {
		return err
	}

	slog.Info("container started", "id", result.ID, "log", result.Log)
	fmt.Println(result.ID)
	return nil
}

// Formats a mount back into a volume specification.
func mountSpec(m runtime.Mount) string {
	spec := m.Source + ":" + m.Destination
	if m.ReadOnly {
		spec += ":ro"
	}
	return spec
}

// Represents the 'pybox container' command group.
type ContainerCmd struct {
	Stop    ContainerStopCmd    `cmd:"" help:"Stop a launched container."`
	Status  ContainerStatusCmd  `cmd:"" help:"Show the state of a launched container."`
	Destroy ContainerDestroyCmd `cmd:"" help:"Remove a launched container."`
}

// Represents the 'pybox container stop' command.
type ContainerStopCmd struct {
	ID string `arg:"" help:"Container ID."`
}

// Executes the container stop command.
func (c *ContainerStopCmd) Run(ctx context.Context) error {
	return client.New(RootCmd.Socket).StopContainer(ctx, c.ID)
}

// Represents the 'pybox container status' command.
type ContainerStatusCmd struct {
	ID string `arg:"" help:"Container ID."`
}

// Executes the container status command.
func (c *ContainerStatusCmd) Run(ctx context.Context) error {
	status, err := client.New(RootCmd.Socket).ContainerStatus(ctx, c.ID)
	if err != nil {
		return err
	}
	fmt.Printf("%s  %s\n", status.ID, status.State)
	return nil
}

// Represents the 'pybox container destroy' command.
type ContainerDestroyCmd struct {
	ID string `arg:"" help:"Container ID."`
}

// Executes the container destroy command.
func (c *ContainerDestroyCmd) Run(ctx context.Context) error {
	return client.New(RootCmd.Socket).DestroyContainer(ctx, c.ID)
}
