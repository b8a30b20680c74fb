package cli

import (
	"context"
	"log/slog"

	"github.com/cruciblehq/pybox/internal/runtime"
	"github.com/cruciblehq/pybox/internal/server"
)

// Represents the 'pybox start' command.
type StartCmd struct {
	ContainerdFlags `embed:""`
}

// Executes the start command.
//
// Starts the daemon on a Unix domain socket and blocks until the context
// is cancelled (e.g. via SIGINT or SIGTERM) or a shutdown command arrives.
func (c *StartCmd) Run(ctx context.Context) error {
	srv, err := server.New(server.Config{
		SocketPath: RootCmd.Socket,
		Runtime: runtime.Options{
			Address:     c.ContainerdAddress,
			Namespace:   c.Namespace,
			Snapshotter: c.Snapshotter,
		},
	})
	if err != nil {
		return err
	}

	if err := srv.Start(); err != nil {
		return err
	}

	slog.Info("pybox daemon is running")

	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case <-srv.Done():
	}

	return srv.Stop()
}
