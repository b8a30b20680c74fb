package runtime

import (
	"context"
	"log/slog"
	"time"

	containerd "github.com/containerd/containerd/v2/client"
	"github.com/containerd/containerd/v2/core/containers"
	"github.com/containerd/containerd/v2/core/diff"
	"github.com/containerd/containerd/v2/core/images"
	"github.com/containerd/containerd/v2/core/snapshots"
	"github.com/containerd/containerd/v2/pkg/rootfs"
	"github.com/containerd/errdefs"
	"github.com/containerd/platforms"
	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/cruciblehq/pybox/internal/fault"
)

// A committed filesystem layer.
type Layer struct {
	Snapshot  string             // Committed snapshot name.
	Desc      ocispec.Descriptor // Compressed layer blob.
	DiffID    digest.Digest      // Digest of the uncompressed layer.
	CreatedBy string             // History entry for the exported image.
}

// Commits the container's filesystem changes as a reusable layer.
//
// The task is stopped, the changes since the last layer are diffed into a
// blob, and the active snapshot is committed under name. Both the blob and
// the committed snapshot are labelled as GC roots so they outlive the build.
// The container is then recreated on a new active snapshot of the commit and
// its task restarted, so later steps continue from the committed state.
//
// Committing under a name that already exists reuses the existing commit.
func (c *Container) Checkpoint(ctx context.Context, name, createdBy string) (*Layer, error) {
	loaded, err := c.client.LoadContainer(ctx, c.id)
	if err != nil {
		return nil, fault.Wrap(ErrRuntime, err)
	}

	info, err := loaded.Info(ctx)
	if err != nil {
		return nil, fault.Wrap(ErrRuntime, err)
	}

	if err := killTask(ctx, loaded); err != nil {
		return nil, err
	}

	labels := map[string]string{gcRootLabel: time.Now().UTC().Format(time.RFC3339)}

	desc, diffID, err := c.snapshotDiff(ctx, info, diff.WithLabels(labels))
	if err != nil {
		return nil, fault.Wrap(ErrRuntime, err)
	}

	sn := c.client.SnapshotService(c.snapshotter)
	if err := sn.Commit(ctx, name, info.SnapshotKey, snapshots.WithLabels(labels)); err != nil {
		if !errdefs.IsAlreadyExists(err) {
			return nil, fault.Wrap(ErrRuntime, err)
		}
		if err := sn.Remove(ctx, info.SnapshotKey); err != nil && !errdefs.IsNotFound(err) {
			return nil, fault.Wrap(ErrRuntime, err)
		}
	}

	// The commit consumed the active snapshot; only the record remains.
	if err := loaded.Delete(ctx); err != nil && !errdefs.IsNotFound(err) {
		return nil, fault.Wrap(ErrRuntime, err)
	}

	if err := c.resume(ctx, name); err != nil {
		return nil, fault.Wrap(ErrRuntime, err)
	}

	layer := Layer{
		Snapshot:  name,
		Desc:      desc,
		DiffID:    diffID,
		CreatedBy: createdBy,
	}
	c.layers = append(c.layers, layer)

	slog.Debug("layer committed", "snapshot", name, "digest", desc.Digest, "size", desc.Size)
	return &layer, nil
}

// Recreates the container on a new active snapshot of parent and starts it.
func (c *Container) resume(ctx context.Context, parent string) error {
	p, err := platforms.Parse(c.platform)
	if err != nil {
		return err
	}

	img, err := c.client.ImageService().Get(ctx, c.image)
	if err != nil {
		return err
	}
	image := containerd.NewImageWithPlatform(c.client, img, platforms.Only(p))

	// A stale active snapshot left by an interrupted build blocks Prepare.
	sn := c.client.SnapshotService(c.snapshotter)
	sn.Remove(ctx, c.id)

	if _, err := sn.Prepare(ctx, c.id, parent); err != nil {
		return err
	}

	ctr, err := c.create(ctx, image, containerd.WithSnapshot(c.id))
	if err != nil {
		sn.Remove(ctx, c.id)
		return err
	}

	if err := c.startTask(ctx, ctr); err != nil {
		ctr.Delete(ctx, containerd.WithSnapshotCleanup)
		return err
	}
	return nil
}

// Computes the diff between the container's snapshot and its parent, returning
// the layer descriptor and its diff ID.
func (c *Container) snapshotDiff(ctx context.Context, info containers.Container, opts ...diff.Opt) (ocispec.Descriptor, digest.Digest, error) {
	layer, err := rootfs.CreateDiff(ctx,
		info.SnapshotKey,
		c.client.SnapshotService(info.Snapshotter),
		c.client.DiffService(),
		opts...,
	)
	if err != nil {
		return ocispec.Descriptor{}, "", err
	}

	diffID, err := images.GetDiffID(ctx, c.client.ContentStore(), layer)
	if err != nil {
		return ocispec.Descriptor{}, "", err
	}

	return layer, diffID, nil
}
