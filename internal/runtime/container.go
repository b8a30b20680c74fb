package runtime

import (
	"context"
	"log/slog"
	"syscall"

	containerd "github.com/containerd/containerd/v2/client"
	"github.com/containerd/containerd/v2/pkg/cio"
	"github.com/containerd/containerd/v2/pkg/oci"
	"github.com/containerd/errdefs"
	specs "github.com/opencontainers/runtime-spec/specs-go"

	"github.com/cruciblehq/pybox/internal/fault"
	"github.com/cruciblehq/pybox/internal/protocol"
)

// A build or application container managed through containerd.
type Container struct {
	client      *containerd.Client
	snapshotter string
	id          string  // Container ID, also the key of its active snapshot.
	platform    string  // OCI platform, e.g. "linux/amd64".
	image       string  // Image reference the container was created from.
	layers      []Layer // Layers committed by Checkpoint, oldest first.
}

// Returns the container ID.
func (c *Container) ID() string {
	return c.id
}

// Reports whether the container exists and whether its task is running.
func (c *Container) Status(ctx context.Context) (protocol.ContainerState, error) {
	ctr, err := c.client.LoadContainer(ctx, c.id)
	if errdefs.IsNotFound(err) {
		return protocol.ContainerNotCreated, nil
	}
	if err != nil {
		return "", fault.Wrap(ErrRuntime, err)
	}

	task, err := ctr.Task(ctx, nil)
	if errdefs.IsNotFound(err) {
		return protocol.ContainerStopped, nil
	}
	if err != nil {
		return "", fault.Wrap(ErrRuntime, err)
	}

	st, err := task.Status(ctx)
	if err != nil {
		return "", fault.Wrap(ErrRuntime, err)
	}
	if st.Status != containerd.Running {
		return protocol.ContainerStopped, nil
	}
	return protocol.ContainerRunning, nil
}

// Kills the container's task and keeps the container record.
//
// Stopping a container that is gone or already stopped succeeds.
func (c *Container) Stop(ctx context.Context) error {
	ctr, err := c.client.LoadContainer(ctx, c.id)
	if errdefs.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return fault.Wrap(ErrRuntime, err)
	}
	return killTask(ctx, ctr)
}

// Deletes the container and its active snapshot. Committed layers survive.
func (c *Container) Destroy(ctx context.Context) {
	if err := c.teardown(ctx); err != nil {
		slog.Warn("container not fully removed", "id", c.id, "error", err)
	}
}

// Removes a container left over under this ID, e.g. by an interrupted build.
func (c *Container) remove(ctx context.Context) {
	if err := c.teardown(ctx); err != nil {
		slog.Debug("stale container not removed", "id", c.id, "error", err)
	}
}

// Kills the task, then deletes the container with its snapshot. A missing
// container is not an error.
func (c *Container) teardown(ctx context.Context) error {
	ctr, err := c.client.LoadContainer(ctx, c.id)
	if errdefs.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := killTask(ctx, ctr); err != nil {
		return err
	}
	if err := ctr.Delete(ctx, containerd.WithSnapshotCleanup); err != nil && !errdefs.IsNotFound(err) {
		return err
	}
	return nil
}

// Creates the container record. The root filesystem comes from snapshot,
// either a fresh view of the image or an active snapshot over cached layers.
//
// Containers share the host network, so a server listening on its port is
// reachable on the host without port mapping. The init process only idles;
// work is attached to it as execs.
func (c *Container) create(ctx context.Context, image containerd.Image, snapshot containerd.NewContainerOpts) (containerd.Container, error) {
	spec := containerd.WithNewSpec(
		oci.WithDefaultSpecForPlatform(c.platform),
		oci.WithImageConfig(image),
		oci.WithHostNamespace(specs.NetworkNamespace),
		oci.WithHostResolvconf,
		oci.WithProcessArgs("sleep", "infinity"),
	)
	return c.client.NewContainer(ctx, c.id,
		containerd.WithImage(image),
		containerd.WithSnapshotter(c.snapshotter),
		snapshot,
		containerd.WithRuntime(ociRuntime, nil),
		spec,
	)
}

// Starts the idle init process with no attached IO.
func (c *Container) startTask(ctx context.Context, ctr containerd.Container) error {
	task, err := ctr.NewTask(ctx, cio.NullIO)
	if err != nil {
		return err
	}
	if err = task.Start(ctx); err != nil {
		task.Delete(ctx)
	}
	return err
}

// Kills and deletes a container's task. A missing task is not an error.
func killTask(ctx context.Context, ctr containerd.Container) error {
	task, err := ctr.Task(ctx, nil)
	if errdefs.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return fault.Wrap(ErrRuntime, err)
	}

	task.Kill(ctx, syscall.SIGKILL)
	if _, err := task.Delete(ctx, containerd.WithProcessKill); err != nil && !errdefs.IsNotFound(err) {
		return fault.Wrap(ErrRuntime, err)
	}
	return nil
}
