package build

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/cruciblehq/pybox/internal"
	"github.com/cruciblehq/pybox/internal/buildctx"
	"github.com/cruciblehq/pybox/internal/cache"
	"github.com/cruciblehq/pybox/internal/fault"
	"github.com/cruciblehq/pybox/internal/manifest"
	"github.com/cruciblehq/pybox/internal/runtime"
)

// Holds shared state for building the stages of a recipe.
type recipe struct {
	rt         *runtime.Runtime     // Container runtime for image and container operations.
	bctx       *buildctx.Context    // Build context, the root for resolving copy sources.
	manifest   *manifest.Manifest   // Manifest supplying the image configuration.
	output     string               // Output directory for the exported archive.
	platform   string               // Target platform.
	tag        string               // Reference annotation of the archive.
	id         string               // Build container ID prefix.
	index      *cache.Index         // Layer cache, nil when caching is off.
	containers []*runtime.Container // Stage containers, destroyed after the build completes.
}

// Creates a new [recipe] from the given options.
func newRecipe(rt *runtime.Runtime, bctx *buildctx.Context, opts Options) *recipe {
	r := &recipe{
		rt:       rt,
		bctx:     bctx,
		manifest: opts.Manifest,
		output:   opts.Output,
		platform: opts.Platform,
		tag:      opts.Tag,
		id:       opts.ID,
	}
	if !opts.NoCache {
		r.index = opts.Cache
	}
	if r.id == "" {
		r.id = buildID(opts.Context)
	}
	return r
}

// Builds the recipe end-to-end against the container runtime.
//
// Stages are built in declaration order; the last one is exported. All stage
// containers are destroyed when the build completes.
func (r *recipe) build(ctx context.Context, stages []manifest.Stage) (*Result, error) {
	defer r.destroyContainers(ctx)

	var result *Result
	for i, stage := range stages {
		res, err := r.buildStage(ctx, stage, i, i == len(stages)-1)
		if err != nil {
			return nil, fault.Wrapf(ErrBuild, "stage %s: %w", stageLabel(stage.Name, i), err)
		}
		result = res
	}

	return result, nil
}

// Builds a single stage.
//
// Pulls the stage's base image, prepares a build container up to the
// checkpoint (from the cache when possible), runs the remaining steps, and
// exports the container when export is set.
func (r *recipe) buildStage(ctx context.Context, stage manifest.Stage, index int, export bool) (*Result, error) {
	slog.Info(fmt.Sprintf("building stage %s", stageLabel(stage.Name, index)), "platform", r.platform)

	base, err := r.rt.PullBase(ctx, stage.From, r.platform)
	if err != nil {
		return nil, err
	}

	head, tail := splitCheckpoint(stage.Steps)
	sc := stageScope()
	id := r.containerID(stage.Name, index)

	ctr, hit, err := r.prepare(ctx, base, id, head, &sc)
	if err != nil {
		return nil, err
	}

	if err := executeSteps(ctx, ctr, tail, len(head), &sc, r.bctx); err != nil {
		return nil, err
	}

	if !export {
		return &Result{CacheHit: hit}, nil
	}

	if err := ctr.Stop(ctx); err != nil {
		return nil, err
	}

	archive, err := ctr.Export(ctx, r.output, r.imageConfig(base, tail))
	if err != nil {
		return nil, err
	}

	return &Result{Output: r.output, Archive: archive, CacheHit: hit}, nil
}

// Starts the stage container with the steps up to the checkpoint applied.
//
// On a cache hit the container starts from the committed layer and only the
// modifiers of the skipped steps are replayed into sc. On a miss the steps
// run, and when caching is on their result is checkpointed and recorded.
func (r *recipe) prepare(ctx context.Context, base *runtime.Base, id string, head []manifest.Step, sc *scope) (*runtime.Container, bool, error) {
	if r.index == nil || len(head) == 0 {
		ctr, err := r.start(ctx, base, id)
		if err != nil {
			return nil, false, err
		}
		return ctr, false, executeSteps(ctx, ctr, head, 0, sc, r.bctx)
	}

	key, err := layerKey(r.bctx, base, head)
	if err != nil {
		return nil, false, err
	}

	if layer, err := r.lookup(ctx, key); err != nil {
		return nil, false, err
	} else if layer != nil {
		slog.Info("using cached install layer", "key", key.String(), "snapshot", layer.Snapshot)

		ctr, err := r.rt.StartFromLayer(ctx, base, layer, id)
		if err != nil {
			return nil, false, err
		}
		r.containers = append(r.containers, ctr)

		skipSteps(head, sc)
		return ctr, true, nil
	}

	ctr, err := r.start(ctx, base, id)
	if err != nil {
		return nil, false, err
	}
	if err := executeSteps(ctx, ctr, head, 0, sc, r.bctx); err != nil {
		return nil, false, err
	}

	layer, err := ctr.Checkpoint(ctx, snapshotName(key), describeSteps(head))
	if err != nil {
		return nil, false, err
	}

	err = r.index.Put(key, &cache.Entry{
		Snapshot:  layer.Snapshot,
		Layer:     layer.Desc,
		DiffID:    layer.DiffID,
		CreatedBy: layer.CreatedBy,
		Created:   time.Now().UTC(),
	})
	if err != nil {
		slog.Warn("failed to record install layer", "key", key.String(), "error", err)
	}

	return ctr, false, nil
}

// Returns the cached layer for key if it is still usable.
func (r *recipe) lookup(ctx context.Context, key cache.Key) (*runtime.Layer, error) {
	entry, err := r.index.Get(key)
	if err != nil || entry == nil {
		return nil, err
	}

	layer := &runtime.Layer{
		Snapshot:  entry.Snapshot,
		Desc:      entry.Layer,
		DiffID:    entry.DiffID,
		CreatedBy: entry.CreatedBy,
	}

	ok, err := r.rt.HasLayer(ctx, layer)
	if err != nil {
		return nil, err
	}
	if !ok {
		slog.Warn("cached install layer is gone, rebuilding", "key", key.String(), "snapshot", entry.Snapshot)
		return nil, nil
	}

	return layer, nil
}

// Starts a fresh stage container from the base image.
func (r *recipe) start(ctx context.Context, base *runtime.Base, id string) (*runtime.Container, error) {
	ctr, err := r.rt.StartContainer(ctx, base, id)
	if err != nil {
		return nil, err
	}
	r.containers = append(r.containers, ctr)
	return ctr, nil
}

// Returns the image configuration of the exported image.
func (r *recipe) imageConfig(base *runtime.Base, tail []manifest.Step) runtime.ImageConfig {
	m := r.manifest

	labels := map[string]string{
		ocispec.AnnotationBaseImageName:   m.Base,
		ocispec.AnnotationBaseImageDigest: base.Digest.String(),
		"io.pybox.version":                internal.VersionString(),
	}
	for k, v := range m.Labels {
		labels[k] = v
	}

	return runtime.ImageConfig{
		Name:         r.tag,
		Cmd:          m.Command(),
		WorkingDir:   m.Workdir,
		ExposedPorts: []string{m.ExposedPort()},
		Env:          m.Environ(),
		Labels:       labels,
		CreatedBy:    describeSteps(tail),
	}
}

// Destroys all stage containers.
func (r *recipe) destroyContainers(ctx context.Context) {
	for _, ctr := range r.containers {
		ctr.Destroy(context.WithoutCancel(ctx))
	}
}

// Returns a container ID for a stage, scoped to this build.
func (r *recipe) containerID(name string, index int) string {
	slug := platformSlug(r.platform)
	if name != "" {
		return fmt.Sprintf("%s-%s-stage-%s", r.id, slug, name)
	}
	return fmt.Sprintf("%s-%s-stage-%d", r.id, slug, index+1)
}

// Splits steps after the checkpoint step. Without a checkpoint every step is
// in the tail.
func splitCheckpoint(steps []manifest.Step) (head, tail []manifest.Step) {
	for i, s := range steps {
		if s.Checkpoint {
			return steps[:i+1], steps[i+1:]
		}
	}
	return nil, steps
}

// Returns a history description of a list of steps.
func describeSteps(steps []manifest.Step) string {
	parts := make([]string, 0, len(steps))
	for _, s := range steps {
		if s.Run != "" || s.Copy != "" {
			parts = append(parts, s.String())
		}
	}
	return "pybox: " + strings.Join(parts, " && ")
}

// Returns the snapshot name a layer is committed under.
func snapshotName(key cache.Key) string {
	return "pybox-layer-" + key.Digest().Encoded()
}

// Derives a build ID from the absolute context path, so concurrent builds of
// different projects do not share containers.
func buildID(dir string) string {
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	h := sha256.Sum256([]byte(dir))
	return "pybox-" + hex.EncodeToString(h[:6])
}

// Converts a platform string to an ID-safe slug.
func platformSlug(platform string) string {
	return strings.ReplaceAll(platform, "/", "-")
}

// Returns a label for a stage, preferring the name when available and falling
// back to the 1-based index.
func stageLabel(name string, index int) string {
	if name != "" {
		return fmt.Sprintf("%q", name)
	}
	return fmt.Sprintf("%d", index+1)
}
