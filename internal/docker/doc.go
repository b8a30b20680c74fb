// Package docker builds and launches manifests through a Docker Engine.
//
// It is the alternative to the containerd backend for hosts that run a
// Docker daemon. Builds send the build context, filtered by its ignore file,
// together with a Dockerfile rendered from the manifest; the engine's own
// layer cache then reuses the install layer while the dependency manifest is
// unchanged. Launches publish the manifest's port on the same host port and
// block until the process exits.
//
// The client honours the usual DOCKER_HOST, DOCKER_API_VERSION,
// DOCKER_CERT_PATH, and DOCKER_TLS_VERIFY environment variables.
//
// Example usage:
//
//	c, err := docker.New()
//	if err != nil {
//	    return err
//	}
//	defer c.Close()
//
//	id, err := c.Build(ctx, docker.BuildOptions{
//	    Manifest: m,
//	    Context:  bctx,
//	    Tag:      "localhost/pybox:latest",
//	})
package docker
