// Package build executes a manifest's recipe against containerd.
//
// A build first runs [Preflight]: the manifest must validate, the context
// must be a directory, and the dependency manifest must be present in it.
// Only then is the base image pulled and a build container started.
//
// The recipe is split at its checkpoint step. Steps up to the checkpoint
// (working directory, dependency manifest copy, install, setup) form the
// install layer, keyed in the layer cache by the base image, the steps, and
// the dependency manifest's content. A hit starts the container from the
// committed layer and skips those steps; a miss runs them and commits the
// result. The remaining steps (the project copy) always run, and the
// container is exported as an OCI archive carrying the manifest's launch
// configuration.
//
// Modifier steps change the scope later steps run in, while modifiers on an
// operation step apply to that operation only. A step that fails stops the
// build; a run step that exits non-zero fails with [ErrCommandFailed]. The
// build container is destroyed in every case and no archive is written on
// failure.
//
// Example usage:
//
//	result, err := build.Run(ctx, rt, build.Options{
//	    Manifest: manifest.Default(),
//	    Context:  ".",
//	    Output:   "dist",
//	    Cache:    index,
//	})
//	if err != nil {
//	    return err
//	}
package build
