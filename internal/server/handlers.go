package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"github.com/cruciblehq/pybox/internal"
	"github.com/cruciblehq/pybox/internal/build"
	"github.com/cruciblehq/pybox/internal/cache"
	"github.com/cruciblehq/pybox/internal/fault"
	"github.com/cruciblehq/pybox/internal/launch"
	"github.com/cruciblehq/pybox/internal/paths"
	"github.com/cruciblehq/pybox/internal/protocol"
	"github.com/cruciblehq/pybox/internal/runtime"
)

// Builds an archive from the request's manifest and context.
//
// Builds of the same context run one at a time, since they share a build
// container and an output archive. The layer cache is held open only while
// the build runs so that CLI builds without --daemon can take the bbolt lock
// in between.
func (s *Server) build(ctx context.Context, req *protocol.BuildRequest) (any, error) {
	release, err := s.claimBuild(ctx, contextKey(req.Context))
	if err != nil {
		return nil, err
	}
	defer release()

	opts := build.Options{
		Manifest: req.Manifest,
		Context:  req.Context,
		Fs:       afero.NewOsFs(),
		Output:   req.Output,
		Platform: req.Platform,
		NoCache:  req.NoCache,
	}
	if !req.NoCache {
		if index, err := cache.Open(s.cachePath); err != nil {
			slog.Warn("building without layer cache", "path", s.cachePath, "error", err)
		} else {
			defer index.Close()
			opts.Cache = index
		}
	}

	result, err := build.Run(ctx, s.runtime, opts)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.builds++
	s.mu.Unlock()

	return &protocol.BuildResult{
		Output:   result.Output,
		Archive:  result.Archive,
		CacheHit: result.CacheHit,
	}, nil
}

// Waits until no build holds key, then claims it. The returned function
// releases the claim. Fails with the context's error if ctx ends first.
func (s *Server) claimBuild(ctx context.Context, key string) (func(), error) {
	for {
		s.mu.Lock()
		if s.building == nil {
			s.building = make(map[string]chan struct{})
		}
		running, busy := s.building[key]
		if !busy {
			done := make(chan struct{})
			s.building[key] = done
			s.mu.Unlock()

			return func() {
				s.mu.Lock()
				delete(s.building, key)
				s.mu.Unlock()
				close(done)
			}, nil
		}
		s.mu.Unlock()

		slog.Info("waiting for running build of the same context", "context", key)
		select {
		case <-running:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Returns the absolute, cleaned form of a context path.
func contextKey(dir string) string {
	if abs, err := filepath.Abs(dir); err == nil {
		return abs
	}
	return filepath.Clean(dir)
}

// Imports an archive and starts it detached.
//
// The container outlives the request, so the client hanging up does not
// cancel it. Output goes to a per-container log under the state directory.
func (s *Server) launch(ctx context.Context, req *protocol.LaunchRequest) (any, error) {
	ctx = context.WithoutCancel(ctx)

	id := req.ID
	if id == "" {
		id = launch.NewName()
	}

	var mounts []runtime.Mount
	for _, v := range req.Volumes {
		m, err := runtime.ParseMount(v, filepath.Dir(req.Archive))
		if err != nil {
			return nil, err
		}
		mounts = append(mounts, m)
	}

	logPath := paths.ContainerLog(id)
	if err := os.MkdirAll(filepath.Dir(logPath), paths.DefaultDirMode); err != nil {
		return nil, fault.Wrap(ErrServer, err)
	}

	tag := launchTag(id)
	if err := s.runtime.ImportImage(ctx, req.Archive, tag); err != nil {
		return nil, err
	}

	ctr, err := s.runtime.RunDetached(ctx, tag, id, logPath, runtime.RunOptions{Env: req.Env, Mounts: mounts})
	if err != nil {
		return nil, err
	}
	return &protocol.LaunchResult{ID: ctr.ID(), Log: logPath}, nil
}

func (s *Server) stopContainer(ctx context.Context, req *protocol.ContainerRequest) (any, error) {
	return nil, s.runtime.Container(req.ID).Stop(ctx)
}

func (s *Server) containerStatus(ctx context.Context, req *protocol.ContainerRequest) (any, error) {
	state, err := s.runtime.Container(req.ID).Status(ctx)
	if err != nil {
		return nil, err
	}
	return &protocol.ContainerStatusResult{ID: req.ID, State: state}, nil
}

// Removes a launched container together with its imported image.
func (s *Server) destroyContainer(ctx context.Context, req *protocol.ContainerRequest) (any, error) {
	s.runtime.Container(req.ID).Destroy(ctx)
	if err := s.runtime.DeleteImage(ctx, launchTag(req.ID)); err != nil {
		slog.Warn("launch image not deleted", "id", req.ID, "error", err)
	}
	return nil, nil
}

func (s *Server) status(context.Context, json.RawMessage) (any, error) {
	s.mu.Lock()
	builds := s.builds
	s.mu.Unlock()

	return &protocol.StatusResult{
		Running: true,
		Version: internal.VersionString(),
		Pid:     os.Getpid(),
		Uptime:  time.Since(s.startedAt).Truncate(time.Second).String(),
		Builds:  builds,
	}, nil
}

// Acknowledges a shutdown. The server stops once the reply is written.
func (s *Server) shutdown(context.Context, json.RawMessage) (any, error) {
	slog.Info("shutdown requested")
	return nil, nil
}

// Returns the image name a launched archive is imported under.
func launchTag(id string) string {
	return "localhost/" + internal.Name + "/" + id + ":latest"
}
