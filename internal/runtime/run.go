package runtime

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"syscall"

	containerd "github.com/containerd/containerd/v2/client"
	"github.com/containerd/containerd/v2/pkg/cio"
	"github.com/containerd/containerd/v2/pkg/oci"
	specs "github.com/opencontainers/runtime-spec/specs-go"

	"github.com/cruciblehq/pybox/internal/fault"
)

// A host directory bind-mounted into a launched container.
type Mount struct {
	Source      string // Absolute host path.
	Destination string // Absolute container path.
	ReadOnly    bool   // Mount read-only.
}

// Options for launching an image.
type RunOptions struct {
	Stdout io.Writer // Receives the process's standard output. Nil discards it.
	Stderr io.Writer // Receives the process's standard error. Nil discards it.
	Env    []string  // Entries merged over the image environment.
	Mounts []Mount   // Bind mounts.
}

// Parses a "host:container[:ro]" volume specification.
//
// Relative host paths are resolved against base. The container path must be
// absolute.
func ParseMount(spec, base string) (Mount, error) {
	parts := strings.Split(spec, ":")
	if len(parts) < 2 || len(parts) > 3 || parts[0] == "" || parts[1] == "" {
		return Mount{}, fault.Wrapf(ErrInvalidMount, "%q, want host:container[:ro]", spec)
	}

	m := Mount{Source: parts[0], Destination: parts[1]}
	if len(parts) == 3 {
		if parts[2] != "ro" && parts[2] != "rw" {
			return Mount{}, fault.Wrapf(ErrInvalidMount, "%q: unknown mode %q", spec, parts[2])
		}
		m.ReadOnly = parts[2] == "ro"
	}

	if !filepath.IsAbs(m.Source) {
		m.Source = filepath.Join(base, m.Source)
	}
	if !strings.HasPrefix(m.Destination, "/") {
		return Mount{}, fault.Wrapf(ErrInvalidMount, "%q: container path must be absolute", spec)
	}

	return m, nil
}

// Runs an imported image's default command as a foreground process.
//
// The container shares the host network namespace, so the process's port is
// reachable on the host without any mapping. The call blocks until the
// process exits and returns its exit status. Cancelling ctx sends SIGTERM to
// the process and still waits for it to exit. The container and its snapshot
// are removed before returning; there is no restart.
func (rt *Runtime) Run(ctx context.Context, tag, id string, opts RunOptions) (int, error) {
	c := rt.newContainer(id, DefaultPlatform())
	c.remove(ctx)

	ctr, err := rt.createLaunch(ctx, c, tag, opts)
	if err != nil {
		return 0, err
	}
	defer ctr.Delete(context.Background(), containerd.WithSnapshotCleanup)

	stdout, stderr := opts.Stdout, opts.Stderr
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}

	task, err := ctr.NewTask(ctx, cio.NewCreator(cio.WithStreams(nil, stdout, stderr)))
	if err != nil {
		return 0, fault.Wrap(ErrRuntime, err)
	}
	defer task.Delete(context.Background(), containerd.WithProcessKill)

	// Wait is registered before Start so a fast exit is not missed, and
	// uses a context that survives cancellation so the exit is still seen.
	statusC, err := task.Wait(context.WithoutCancel(ctx))
	if err != nil {
		return 0, fault.Wrap(ErrRuntime, err)
	}

	if err := task.Start(ctx); err != nil {
		return 0, fault.Wrap(ErrRuntime, err)
	}

	slog.Info("process started", "id", id, "pid", task.Pid())

	var status containerd.ExitStatus
	select {
	case status = <-statusC:
	case <-ctx.Done():
		slog.Info("stopping process", "id", id)
		if err := task.Kill(context.Background(), syscall.SIGTERM); err != nil {
			slog.Warn("failed to signal process", "id", id, "error", err)
		}
		status = <-statusC
	}

	code, _, err := status.Result()
	if err != nil {
		return 0, fault.Wrap(ErrRuntime, err)
	}

	slog.Info("process exited", "id", id, "code", code)
	return int(code), nil
}

// Starts an imported image's default command detached.
//
// Output is appended to logPath. The container is left running until it is
// stopped or destroyed through the returned handle.
func (rt *Runtime) RunDetached(ctx context.Context, tag, id, logPath string, opts RunOptions) (*Container, error) {
	c := rt.newContainer(id, DefaultPlatform())
	c.remove(ctx)

	ctr, err := rt.createLaunch(ctx, c, tag, opts)
	if err != nil {
		return nil, err
	}

	task, err := ctr.NewTask(ctx, cio.LogFile(logPath))
	if err != nil {
		ctr.Delete(ctx, containerd.WithSnapshotCleanup)
		return nil, fault.Wrap(ErrRuntime, err)
	}

	if err := task.Start(ctx); err != nil {
		task.Delete(ctx)
		ctr.Delete(ctx, containerd.WithSnapshotCleanup)
		return nil, fault.Wrap(ErrRuntime, err)
	}

	slog.Info("process started", "id", id, "pid", task.Pid(), "log", logPath)
	return c, nil
}

// Creates the container record of a launch.
//
// Unlike build containers, the process is the image's own command.
func (rt *Runtime) createLaunch(ctx context.Context, c *Container, tag string, opts RunOptions) (containerd.Container, error) {
	image, err := rt.resolveImage(ctx, tag, c.platform)
	if err != nil {
		return nil, fault.Wrap(ErrRuntime, err)
	}
	c.image = tag

	specOpts := []oci.SpecOpts{
		oci.WithDefaultSpecForPlatform(c.platform),
		oci.WithImageConfig(image),
		oci.WithHostNamespace(specs.NetworkNamespace),
		oci.WithHostHostsFile,
		oci.WithHostResolvconf,
	}
	if len(opts.Env) > 0 {
		specOpts = append(specOpts, oci.WithEnv(opts.Env))
	}
	if len(opts.Mounts) > 0 {
		specOpts = append(specOpts, oci.WithMounts(bindMounts(opts.Mounts)))
	}

	ctr, err := rt.client.NewContainer(ctx, c.id,
		containerd.WithImage(image),
		containerd.WithSnapshotter(rt.snapshotter),
		containerd.WithNewSnapshot(c.id, image),
		containerd.WithRuntime(ociRuntime, nil),
		containerd.WithNewSpec(specOpts...),
	)
	if err != nil {
		return nil, fault.Wrap(ErrRuntime, err)
	}
	return ctr, nil
}

// Converts mounts to OCI bind mounts.
func bindMounts(mounts []Mount) []specs.Mount {
	out := make([]specs.Mount, 0, len(mounts))
	for _, m := range mounts {
		options := []string{"rbind", "rw"}
		if m.ReadOnly {
			options = []string{"rbind", "ro"}
		}
		out = append(out, specs.Mount{
			Type:        "bind",
			Source:      m.Source,
			Destination: m.Destination,
			Options:     options,
		})
	}
	return out
}
