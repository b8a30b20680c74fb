package docker

import (
	"archive/tar"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/pkg/jsonmessage"
	"github.com/moby/term"

	"github.com/cruciblehq/pybox/internal/buildctx"
	"github.com/cruciblehq/pybox/internal/dockerfile"
	"github.com/cruciblehq/pybox/internal/fault"
	"github.com/cruciblehq/pybox/internal/manifest"
)

// Name of the rendered Dockerfile inside the build context archive. It does
// not collide with a Dockerfile the project may carry.
const contextDockerfile = ".pybox.Dockerfile"

// Options for building an image.
type BuildOptions struct {
	Manifest *manifest.Manifest // Manifest to render.
	Context  *buildctx.Context  // Build context, already through pre-flight.
	Tag      string             // Image tag.
	Platform string             // Target platform. Empty uses the engine's.
	NoCache  bool               // Disable the engine's layer cache.
	Progress io.Writer          // Receives build progress. Nil discards it.
}

// Builds an image from the manifest and returns its ID.
//
// The build fails with [ErrImageBuild] when any instruction fails, including
// a non-zero exit of the install command.
func (c *Client) Build(ctx context.Context, opts BuildOptions) (string, error) {
	df, err := dockerfile.Render(opts.Manifest)
	if err != nil {
		return "", fault.Wrap(ErrImageBuild, err)
	}

	archive := contextArchive(opts.Context, df)
	defer archive.Close()

	slog.Info("building image", "tag", opts.Tag, "context", opts.Context.Root())

	resp, err := c.api.ImageBuild(ctx, archive, types.ImageBuildOptions{
		Tags:        []string{opts.Tag},
		Dockerfile:  contextDockerfile,
		Platform:    opts.Platform,
		NoCache:     opts.NoCache,
		Remove:      true,
		ForceRemove: true,
		PullParent:  false,
	})
	if err != nil {
		return "", fault.Wrap(ErrDocker, err)
	}
	defer resp.Body.Close()

	return displayBuild(resp.Body, opts.Progress)
}

// Renders the engine's build stream and returns the built image ID.
func displayBuild(stream io.Reader, out io.Writer) (string, error) {
	if out == nil {
		out = io.Discard
	}
	fd, isTerm := term.GetFdInfo(out)

	var id string
	aux := func(msg jsonmessage.JSONMessage) {
		var result types.BuildResult
		if msg.Aux != nil && json.Unmarshal(*msg.Aux, &result) == nil && result.ID != "" {
			id = result.ID
		}
	}

	if err := jsonmessage.DisplayJSONMessagesStream(stream, out, fd, isTerm, aux); err != nil {
		return "", fault.Wrap(ErrImageBuild, err)
	}
	return id, nil
}

// Returns a tar stream of the build context with the rendered Dockerfile
// appended.
func contextArchive(bctx *buildctx.Context, df []byte) io.ReadCloser {
	pr, pw := io.Pipe()

	go func() {
		tw := tar.NewWriter(pw)
		err := bctx.AppendTar(tw, ".", ".")
		if err == nil {
			err = tw.WriteHeader(&tar.Header{
				Name:     contextDockerfile,
				Mode:     int64(os.FileMode(0o644)),
				Size:     int64(len(df)),
				ModTime:  time.Now(),
				Typeflag: tar.TypeReg,
			})
		}
		if err == nil {
			_, err = tw.Write(df)
		}
		if err == nil {
			err = tw.Close()
		}
		pw.CloseWithError(err)
	}()

	return pr
}
