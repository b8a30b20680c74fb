package launch

import (
	"context"

	"github.com/cruciblehq/pybox/internal/docker"
	"github.com/cruciblehq/pybox/internal/runtime"
)

// Launches OCI archives through containerd.
type Containerd struct {
	Runtime *runtime.Runtime // Connected runtime.
	Tag     string           // Reference the archive is imported under.
}

// Imports the archive in req.Image under the tag and runs it.
//
// The container shares the host network namespace, so the manifest's port is
// reachable on the host as declared.
func (c *Containerd) Launch(ctx context.Context, req *Request) (int, error) {
	if err := c.Runtime.ImportImage(ctx, req.Image, c.Tag); err != nil {
		return 0, err
	}

	return c.Runtime.Run(ctx, c.Tag, req.Name, runtime.RunOptions{
		Stdout: req.Stdout,
		Stderr: req.Stderr,
		Env:    req.Env,
		Mounts: req.Mounts,
	})
}

// Launches engine images through Docker.
type Docker struct {
	Client *docker.Client // Connected client.
}

// Runs the image in req.Image with the manifest's port published.
func (d *Docker) Launch(ctx context.Context, req *Request) (int, error) {
	return d.Client.Run(ctx, docker.RunOptions{
		Image:  req.Image,
		Name:   req.Name,
		Port:   req.Manifest.Port,
		Env:    req.Env,
		Mounts: req.Mounts,
		Stdout: req.Stdout,
		Stderr: req.Stderr,
	})
}
