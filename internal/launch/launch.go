package launch

import (
	"context"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/cruciblehq/pybox/internal/fault"
	"github.com/cruciblehq/pybox/internal/manifest"
	"github.com/cruciblehq/pybox/internal/runtime"
)

// Prefix of generated container names.
const namePrefix = "pybox-"

// Starts an image and waits for its process to exit.
type Launcher interface {

	// Runs the process described by req and returns its exit status.
	Launch(ctx context.Context, req *Request) (int, error)
}

// Describes a launch.
type Request struct {
	Manifest *manifest.Manifest // Manifest the image was built from.
	Image    string             // Image reference or archive to launch.
	Name     string             // Container name.
	Env      []string           // Entries merged over the image environment.
	Mounts   []runtime.Mount    // Bind mounts.
	Stdout   io.Writer          // Receives the process's standard output.
	Stderr   io.Writer          // Receives the process's standard error.
}

// Options for [Run].
type Options struct {
	Manifest *manifest.Manifest // Manifest the image was built from.
	Image    string             // Image reference or archive to launch.
	Name     string             // Container name. Empty generates one.
	Volumes  []string           // Bind mounts as "host:container[:ro]".
	Dir      string             // Base for relative host paths in Volumes.
	Env      []string           // Extra environment entries.
	Stdout   io.Writer          // Receives the process's standard output.
	Stderr   io.Writer          // Receives the process's standard error.
}

// Launches an image through l and waits for the process to exit.
//
// Returns nil when the process exits with status 0 and an [*ExitError]
// carrying the status otherwise.
func Run(ctx context.Context, l Launcher, opts Options) error {
	req, err := newRequest(opts)
	if err != nil {
		return err
	}

	slog.Info("launching", "image", req.Image, "name", req.Name, "argv", req.Manifest.Command())

	code, err := l.Launch(ctx, req)
	if err != nil {
		return fault.Wrap(ErrLaunch, err)
	}
	if code != 0 {
		return &ExitError{Code: code}
	}
	return nil
}

// Resolves launch options into a request.
func newRequest(opts Options) (*Request, error) {
	if opts.Manifest == nil {
		return nil, fault.Wrapf(ErrLaunch, "no manifest")
	}

	mounts := make([]runtime.Mount, 0, len(opts.Volumes))
	for _, v := range opts.Volumes {
		m, err := runtime.ParseMount(v, opts.Dir)
		if err != nil {
			return nil, fault.Wrap(ErrLaunch, err)
		}
		mounts = append(mounts, m)
	}

	name := opts.Name
	if name == "" {
		name = NewName()
	}

	return &Request{
		Manifest: opts.Manifest,
		Image:    opts.Image,
		Name:     name,
		Env:      opts.Env,
		Mounts:   mounts,
		Stdout:   opts.Stdout,
		Stderr:   opts.Stderr,
	}, nil
}

// Returns a fresh container name.
func NewName() string {
	return namePrefix + uuid.NewString()[:8]
}
