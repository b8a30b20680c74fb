package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"time"

	"github.com/containerd/containerd/v2/core/images"
	"github.com/containerd/containerd/v2/core/images/archive"
	"github.com/containerd/platforms"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/cruciblehq/pybox/internal/fault"
)

// Filename of the OCI archive produced by Export.
const ExportFilename = "image.tar"

// Runtime configuration written into the exported image.
type ImageConfig struct {
	Name         string   // Reference annotation of the archive entry.
	Cmd          []string // Replaces the base image's entrypoint and command.
	WorkingDir   string
	ExposedPorts []string          // "port/proto".
	Env          []string          // Merged over the base image's environment.
	Labels       map[string]string // Merged over the base image's labels.
	CreatedBy    string            // History entry of the final layer.
}

// Commits the container's remaining changes and writes the image to
// output/image.tar.
//
// The image is the base image's layers for the container's platform, the
// layers committed by [Container.Checkpoint] or carried in by
// [Runtime.StartFromLayer], and one final layer with everything since. The
// archive holds a single-platform manifest even when the base was pulled
// through an index. The new manifest and config are written under a lease
// and never registered as an image, so containerd collects them once the
// archive exists.
func (c *Container) Export(ctx context.Context, output string, cfg ImageConfig) (string, error) {
	ctr, err := c.client.LoadContainer(ctx, c.id)
	if err != nil {
		return "", fault.Wrap(ErrRuntime, err)
	}
	info, err := ctr.Info(ctx)
	if err != nil {
		return "", fault.Wrap(ErrRuntime, err)
	}

	ctx, release, err := c.client.WithLease(ctx)
	if err != nil {
		return "", fault.Wrap(ErrRuntime, err)
	}
	defer release(context.WithoutCancel(ctx))

	final, diffID, err := c.snapshotDiff(ctx, info)
	if err != nil {
		return "", fault.Wrap(ErrRuntime, err)
	}
	layers := append(c.layers, Layer{Desc: final, DiffID: diffID, CreatedBy: cfg.CreatedBy})

	target, err := c.writeManifest(ctx, info.Image, layers, cfg)
	if err != nil {
		return "", fault.Wrap(ErrRuntime, err)
	}

	name := cfg.Name
	if name == "" {
		name = info.Image
	}
	path := filepath.Join(output, ExportFilename)
	if err := c.writeArchive(ctx, target, name, path); err != nil {
		return "", fault.Wrap(ErrRuntime, err)
	}

	slog.Info("image exported", "path", path, "layers", len(layers))
	return path, nil
}

// Stores a manifest and config for the base image extended with layers and
// returns the manifest's descriptor.
func (c *Container) writeManifest(ctx context.Context, base string, layers []Layer, cfg ImageConfig) (ocispec.Descriptor, error) {
	img, err := c.client.ImageService().Get(ctx, base)
	if err != nil {
		return ocispec.Descriptor{}, err
	}
	p, err := platforms.Parse(c.platform)
	if err != nil {
		return ocispec.Descriptor{}, err
	}

	store := blobStore{c.client.ContentStore()}

	// Resolves through an index, including entries that only declare their
	// platform in the config.
	manifest, err := images.Manifest(ctx, store.Store, img.Target, platforms.OnlyStrict(p))
	if err != nil {
		return ocispec.Descriptor{}, fault.Wrapf(ErrBaseImage, "%s has no %s manifest: %w", base, c.platform, err)
	}

	var config ocispec.Image
	if err := store.readJSON(ctx, manifest.Config, &config); err != nil {
		return ocispec.Descriptor{}, err
	}

	created := time.Now().UTC()
	for _, l := range layers {
		manifest.Layers = append(manifest.Layers, l.Desc)
		config.RootFS.DiffIDs = append(config.RootFS.DiffIDs, l.DiffID)
		config.History = append(config.History, ocispec.History{Created: &created, CreatedBy: l.CreatedBy})
	}
	config.Created = &created
	applyConfig(&config.Config, cfg)

	manifest.Config, err = store.writeJSON(ctx, manifest.Config.MediaType, config, nil)
	if err != nil {
		return ocispec.Descriptor{}, err
	}

	mediaType := manifest.MediaType
	if mediaType == "" {
		mediaType = ocispec.MediaTypeImageManifest
	}
	return store.writeJSON(ctx, mediaType, manifest, manifestGCLabels(manifest))
}

// Applies the launch configuration to an image config.
func applyConfig(dst *ocispec.ImageConfig, cfg ImageConfig) {
	dst.Entrypoint = nil
	dst.Cmd = cfg.Cmd

	if cfg.WorkingDir != "" {
		dst.WorkingDir = cfg.WorkingDir
	}
	if len(cfg.ExposedPorts) > 0 && dst.ExposedPorts == nil {
		dst.ExposedPorts = make(map[string]struct{}, len(cfg.ExposedPorts))
	}
	for _, p := range cfg.ExposedPorts {
		dst.ExposedPorts[p] = struct{}{}
	}
	if len(cfg.Env) > 0 {
		dst.Env = mergeEnv(dst.Env, cfg.Env)
	}
	if len(cfg.Labels) > 0 && dst.Labels == nil {
		dst.Labels = make(map[string]string, len(cfg.Labels))
	}
	maps.Copy(dst.Labels, cfg.Labels)
}

// Writes the manifest at target, with its config and layers, to an OCI
// archive at path.
func (c *Container) writeArchive(ctx context.Context, target ocispec.Descriptor, name, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := c.client.Export(ctx, f, archive.WithManifest(target, name)); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}

// Returns the containerd GC references from a manifest to its config and
// layers, which keep them alive for as long as the manifest is.
func manifestGCLabels(m ocispec.Manifest) map[string]string {
	labels := map[string]string{
		"containerd.io/gc.ref.content.config": m.Config.Digest.String(),
	}
	for i, layer := range m.Layers {
		labels[fmt.Sprintf("containerd.io/gc.ref.content.l.%d", i)] = layer.Digest.String()
	}
	return labels
}
