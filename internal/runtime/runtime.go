package runtime

import (
	"context"
	"log/slog"
	"os"
	goruntime "runtime"

	containerd "github.com/containerd/containerd/v2/client"
	"github.com/containerd/containerd/v2/core/content"
	"github.com/containerd/containerd/v2/core/images"
	"github.com/containerd/errdefs"
	"github.com/containerd/platforms"
	"github.com/distribution/reference"
	"github.com/opencontainers/go-digest"

	"github.com/cruciblehq/pybox/internal/fault"
)

const (

	// Default snapshotter for container filesystems.
	DefaultSnapshotter = "overlayfs"

	// OCI runtime shim for running containers.
	ociRuntime = "io.containerd.runc.v2"

	// Label that protects content and snapshots from garbage collection.
	gcRootLabel = "containerd.io/gc.root"
)

// Manages the containerd client and provides image and container operations.
type Runtime struct {
	client      *containerd.Client // Containerd client for managing containers and images.
	snapshotter string             // Snapshotter for unpacked layers and container filesystems.
}

// Options for connecting to containerd.
type Options struct {
	Address     string // Containerd socket address.
	Namespace   string // Namespace scoping every image, container, and snapshot.
	Snapshotter string // Snapshotter name. Empty uses [DefaultSnapshotter].
}

// A base image pulled for a platform.
type Base struct {
	Name     string        // Normalized reference the image is stored under.
	Digest   digest.Digest // Digest of the image's root descriptor.
	Platform string        // Platform the image was unpacked for.
}

// Creates a runtime connected to the containerd socket at the given address.
//
// The runtime must be closed when no longer needed.
func New(opts Options) (*Runtime, error) {
	client, err := containerd.New(opts.Address, containerd.WithDefaultNamespace(opts.Namespace))
	if err != nil {
		return nil, fault.Wrap(ErrRuntime, err)
	}

	snapshotter := opts.Snapshotter
	if snapshotter == "" {
		snapshotter = DefaultSnapshotter
	}

	return &Runtime{client: client, snapshotter: snapshotter}, nil
}

// Closes the containerd client connection.
func (rt *Runtime) Close() error {
	return rt.client.Close()
}

// Pulls a base image and unpacks it for the target platform.
//
// Short references are normalized the way the Docker CLI does it, so
// "python:3.11-slim" resolves to "docker.io/library/python:3.11-slim". An
// image already present in the content store is only re-resolved, not
// re-downloaded. Any failure is reported as [ErrBaseImage].
func (rt *Runtime) PullBase(ctx context.Context, ref, platform string) (*Base, error) {
	named, err := reference.ParseDockerRef(ref)
	if err != nil {
		return nil, fault.Wrap(ErrBaseImage, err)
	}

	p, err := platforms.Parse(platform)
	if err != nil {
		return nil, fault.Wrap(ErrBaseImage, err)
	}

	slog.Info("pulling base image", "ref", named.String(), "platform", platform)

	img, err := rt.client.Pull(ctx, named.String(),
		containerd.WithPlatformMatcher(platforms.Only(p)),
		containerd.WithPullUnpack,
		containerd.WithPullSnapshotter(rt.snapshotter),
	)
	if err != nil {
		return nil, fault.Wrapf(ErrBaseImage, "%s: %w", named.String(), err)
	}

	return &Base{
		Name:     img.Name(),
		Digest:   img.Target().Digest,
		Platform: platform,
	}, nil
}

// Creates a build container from a pulled base image and starts it.
//
// A long-running task (sleep infinity) is started so that subsequent Exec
// calls have a running process to attach to. Any existing container with the
// same ID is removed before the new one is created.
func (rt *Runtime) StartContainer(ctx context.Context, base *Base, id string) (*Container, error) {
	c := rt.newContainer(id, base.Platform)
	c.remove(ctx)

	image, err := rt.resolveImage(ctx, base.Name, base.Platform)
	if err != nil {
		return nil, fault.Wrap(ErrRuntime, err)
	}
	c.image = base.Name

	ctr, err := c.create(ctx, image, containerd.WithNewSnapshot(id, image))
	if err != nil {
		return nil, fault.Wrap(ErrRuntime, err)
	}

	if err := c.startTask(ctx, ctr); err != nil {
		ctr.Delete(ctx, containerd.WithSnapshotCleanup)
		return nil, fault.Wrap(ErrRuntime, err)
	}

	slog.Debug("container started", "id", id, "image", base.Name)
	return c, nil
}

// Creates a build container on top of a committed layer and starts it.
//
// The container's filesystem is a fresh active snapshot whose parent is the
// layer's snapshot, so the container sees the base image plus every change
// recorded up to the layer's checkpoint. The layer is carried into the
// exported image.
func (rt *Runtime) StartFromLayer(ctx context.Context, base *Base, layer *Layer, id string) (*Container, error) {
	c := rt.newContainer(id, base.Platform)
	c.remove(ctx)
	c.image = base.Name

	if err := c.resume(ctx, layer.Snapshot); err != nil {
		return nil, fault.Wrap(ErrRuntime, err)
	}

	c.layers = append(c.layers, *layer)

	slog.Debug("container started from layer", "id", id, "snapshot", layer.Snapshot)
	return c, nil
}

// Reports whether a committed layer is still usable.
//
// Both the committed snapshot and the layer blob must exist. Either may
// have been removed by hand or by an image prune since the layer was cached.
func (rt *Runtime) HasLayer(ctx context.Context, layer *Layer) (bool, error) {
	if _, err := rt.client.SnapshotService(rt.snapshotter).Stat(ctx, layer.Snapshot); err != nil {
		if errdefs.IsNotFound(err) {
			return false, nil
		}
		return false, fault.Wrap(ErrRuntime, err)
	}

	if _, err := rt.client.ContentStore().Info(ctx, layer.Desc.Digest); err != nil {
		if errdefs.IsNotFound(err) {
			return false, nil
		}
		return false, fault.Wrap(ErrRuntime, err)
	}

	return true, nil
}

// Removes a committed layer.
//
// The committed snapshot is removed and the layer blob loses its GC root
// label, so the next garbage collection reclaims it. A layer that is already
// gone is not an error.
func (rt *Runtime) RemoveLayer(ctx context.Context, layer *Layer) error {
	err := rt.client.SnapshotService(rt.snapshotter).Remove(ctx, layer.Snapshot)
	if err != nil && !errdefs.IsNotFound(err) {
		return fault.Wrap(ErrRuntime, err)
	}

	_, err = rt.client.ContentStore().Update(ctx, content.Info{
		Digest: layer.Desc.Digest,
		Labels: map[string]string{gcRootLabel: ""},
	}, "labels."+gcRootLabel)
	if err != nil && !errdefs.IsNotFound(err) {
		return fault.Wrap(ErrRuntime, err)
	}

	return nil
}

// Imports an OCI archive, tags it under the given name, and unpacks it for
// the host platform.
func (rt *Runtime) ImportImage(ctx context.Context, path, tag string) error {
	source, err := rt.importArchive(ctx, path)
	if err != nil {
		return fault.Wrap(ErrRuntime, err)
	}

	if err := rt.tagImage(ctx, source, tag); err != nil {
		return fault.Wrap(ErrRuntime, err)
	}

	image, err := rt.resolveImage(ctx, tag, DefaultPlatform())
	if err != nil {
		return fault.Wrap(ErrRuntime, err)
	}
	if err := image.Unpack(ctx, rt.snapshotter); err != nil {
		return fault.Wrap(ErrRuntime, err)
	}

	slog.Debug("image imported", "tag", tag)
	return nil
}

// Removes an image record. Removing a missing image is not an error.
func (rt *Runtime) DeleteImage(ctx context.Context, tag string) error {
	if err := rt.client.ImageService().Delete(ctx, tag); err != nil && !errdefs.IsNotFound(err) {
		return fault.Wrap(ErrRuntime, err)
	}
	return nil
}

// Returns a handle for an existing container.
//
// The container is not loaded or verified; the handle resolves the container
// lazily on subsequent calls.
func (rt *Runtime) Container(id string) *Container {
	return rt.newContainer(id, DefaultPlatform())
}

func (rt *Runtime) newContainer(id, platform string) *Container {
	return &Container{
		client:      rt.client,
		snapshotter: rt.snapshotter,
		id:          id,
		platform:    platform,
	}
}

// Imports an OCI archive into the content store.
//
// The archive must contain exactly one image.
func (rt *Runtime) importArchive(ctx context.Context, path string) (images.Image, error) {
	fh, err := os.Open(path)
	if err != nil {
		return images.Image{}, err
	}
	defer fh.Close()

	imported, err := rt.client.Import(ctx, fh)
	if err != nil {
		return images.Image{}, err
	}

	if len(imported) == 0 {
		return images.Image{}, ErrEmptyArchive
	} else if len(imported) > 1 {
		return images.Image{}, ErrMultipleImages
	}

	return imported[0], nil
}

// Tags an imported image under the given name.
//
// Updates the tag if it already exists. Removes the source record when its
// name differs from the tag to avoid duplicates.
func (rt *Runtime) tagImage(ctx context.Context, source images.Image, tag string) error {
	is := rt.client.ImageService()

	img := images.Image{
		Name:   tag,
		Target: source.Target,
	}

	if _, err := is.Create(ctx, img); err != nil {
		if !errdefs.IsAlreadyExists(err) {
			return err
		}
		if _, err := is.Update(ctx, img, "target"); err != nil {
			return err
		}
	}

	if source.Name != tag {
		_ = is.Delete(ctx, source.Name)
	}

	return nil
}

// Looks up a stored image and selects the manifest for the given platform.
func (rt *Runtime) resolveImage(ctx context.Context, name, platform string) (containerd.Image, error) {
	p, err := platforms.Parse(platform)
	if err != nil {
		return nil, err
	}

	img, err := rt.client.ImageService().Get(ctx, name)
	if err != nil {
		return nil, err
	}

	return containerd.NewImageWithPlatform(rt.client, img, platforms.Only(p)), nil
}

// Returns the default OCI platform for the host architecture.
func DefaultPlatform() string {
	return "linux/" + goruntime.GOARCH
}
