package docker

import (
	"context"
	"io"
	"log/slog"
	"strconv"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/docker/go-connections/nat"

	"github.com/cruciblehq/pybox/internal/fault"
	"github.com/cruciblehq/pybox/internal/runtime"
)

// Seconds the engine waits after SIGTERM before killing the process.
const stopTimeout = 10

// Options for launching an image.
type RunOptions struct {
	Image  string          // Image tag or ID.
	Name   string          // Container name.
	Port   int             // Container port published on the same host port.
	Env    []string        // Entries merged over the image environment.
	Mounts []runtime.Mount // Bind mounts.
	Stdout io.Writer       // Receives the process's standard output. Nil discards it.
	Stderr io.Writer       // Receives the process's standard error. Nil discards it.
}

// Runs an image's default command as a foreground process.
//
// The call blocks until the process exits and returns its exit status.
// Cancelling ctx stops the container, sending SIGTERM first, and still waits
// for the exit. The container is removed before returning; there is no
// restart policy.
func (c *Client) Run(ctx context.Context, opts RunOptions) (int, error) {
	exposed, bindings, err := portBindings(opts.Port)
	if err != nil {
		return 0, fault.Wrap(ErrContainer, err)
	}

	created, err := c.api.ContainerCreate(ctx,
		&container.Config{
			Image:        opts.Image,
			Env:          opts.Env,
			ExposedPorts: exposed,
			AttachStdout: true,
			AttachStderr: true,
		},
		&container.HostConfig{
			PortBindings:  bindings,
			Mounts:        bindMounts(opts.Mounts),
			RestartPolicy: container.RestartPolicy{Name: container.RestartPolicyDisabled},
		},
		&network.NetworkingConfig{}, nil, opts.Name)
	if err != nil {
		return 0, fault.Wrap(ErrContainer, err)
	}
	id := created.ID
	defer c.api.ContainerRemove(context.Background(), id, container.RemoveOptions{Force: true})

	// Wait is registered before start so a fast exit is not missed.
	waitCtx := context.WithoutCancel(ctx)
	statusC, errC := c.api.ContainerWait(waitCtx, id, container.WaitConditionNextExit)

	if err := c.api.ContainerStart(ctx, id, container.StartOptions{}); err != nil {
		return 0, fault.Wrap(ErrContainer, err)
	}

	slog.Info("process started", "name", opts.Name, "id", shortID(id), "port", opts.Port)

	logsDone := c.streamLogs(waitCtx, id, opts.Stdout, opts.Stderr)

	var status container.WaitResponse
	select {
	case status = <-statusC:
	case err := <-errC:
		return 0, fault.Wrap(ErrContainer, err)
	case <-ctx.Done():
		slog.Info("stopping process", "name", opts.Name)
		timeout := stopTimeout
		if err := c.api.ContainerStop(waitCtx, id, container.StopOptions{Timeout: &timeout}); err != nil {
			slog.Warn("failed to stop container", "name", opts.Name, "error", err)
		}
		select {
		case status = <-statusC:
		case err := <-errC:
			return 0, fault.Wrap(ErrContainer, err)
		}
	}
	<-logsDone

	if status.Error != nil {
		return 0, fault.Wrapf(ErrContainer, "%s", status.Error.Message)
	}

	slog.Info("process exited", "name", opts.Name, "code", status.StatusCode)
	return int(status.StatusCode), nil
}

// Follows the container's output until it exits. The returned channel is
// closed when the stream ends.
func (c *Client) streamLogs(ctx context.Context, id string, stdout, stderr io.Writer) <-chan struct{} {
	done := make(chan struct{})
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}

	go func() {
		defer close(done)

		rc, err := c.api.ContainerLogs(ctx, id, container.LogsOptions{
			ShowStdout: true,
			ShowStderr: true,
			Follow:     true,
		})
		if err != nil {
			slog.Warn("failed to attach to container output", "id", shortID(id), "error", err)
			return
		}
		defer rc.Close()

		if _, err := stdcopy.StdCopy(stdout, stderr, rc); err != nil {
			slog.Debug("container output ended", "id", shortID(id), "error", err)
		}
	}()

	return done
}

// Returns the exposed port set and the bindings that publish port on the
// same host port on all interfaces.
func portBindings(port int) (nat.PortSet, nat.PortMap, error) {
	p := strconv.Itoa(port)
	exposed, bindings, err := nat.ParsePortSpecs([]string{"0.0.0.0:" + p + ":" + p + "/tcp"})
	if err != nil {
		return nil, nil, err
	}
	return nat.PortSet(exposed), nat.PortMap(bindings), nil
}

// Converts mounts to engine bind mounts.
func bindMounts(mounts []runtime.Mount) []mount.Mount {
	out := make([]mount.Mount, 0, len(mounts))
	for _, m := range mounts {
		out = append(out, mount.Mount{
			Type:     mount.TypeBind,
			Source:   m.Source,
			Target:   m.Destination,
			ReadOnly: m.ReadOnly,
		})
	}
	return out
}

// Returns the abbreviated form of a container ID.
func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
