package server

import (
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/cruciblehq/pybox/internal"
	"github.com/cruciblehq/pybox/internal/fault"
	"github.com/cruciblehq/pybox/internal/paths"
	"github.com/cruciblehq/pybox/internal/runtime"
)

const (
	DefaultContainerdAddress   = "/run/containerd/containerd.sock"
	DefaultContainerdNamespace = internal.Name
)

// Holds server configuration. Empty fields fall back to the XDG defaults.
type Config struct {
	SocketPath string
	PIDFile    string
	CachePath  string          // bbolt layer cache index.
	Runtime    runtime.Options // Containerd connection.
}

// The pybox daemon.
//
// One connection carries one request. Builds run concurrently, each in its
// own build container, and share a single containerd client.
type Server struct {
	socketPath string
	pidFile    string
	cachePath  string
	runtime    *runtime.Runtime
	listener   net.Listener
	startedAt  time.Time

	mu       sync.Mutex
	builds   int                      // Successful builds since start.
	building map[string]chan struct{} // Running builds by context, closed on completion.

	stopOnce sync.Once
	done     chan struct{}
}

// Connects to containerd and returns a server ready to [Server.Start].
func New(cfg Config) (*Server, error) {
	opts := cfg.Runtime
	opts.Address = or(opts.Address, DefaultContainerdAddress)
	opts.Namespace = or(opts.Namespace, DefaultContainerdNamespace)

	rt, err := runtime.New(opts)
	if err != nil {
		return nil, fault.Wrap(ErrServer, err)
	}

	return &Server{
		socketPath: or(cfg.SocketPath, paths.Socket()),
		pidFile:    or(cfg.PIDFile, paths.PIDFile()),
		cachePath:  or(cfg.CachePath, paths.CacheDB()),
		runtime:    rt,
		done:       make(chan struct{}),
	}, nil
}

// Binds the socket, records the PID and starts serving in the background.
//
// Fails with [ErrAlreadyRunning] when another daemon answers on the socket.
func (s *Server) Start() error {
	ln, err := listen(s.socketPath)
	if err != nil {
		return err
	}
	s.listener = ln
	s.startedAt = time.Now()

	if err := writePID(s.pidFile); err != nil {
		slog.Warn("PID file not written", "path", s.pidFile, "error", err)
	}

	slog.Info("daemon listening", "socket", s.socketPath, "pid", os.Getpid())
	go s.serve()
	return nil
}

// Closes the listener and the containerd client and removes the socket and
// PID files. Requests in flight are not waited for. Safe to call repeatedly.
func (s *Server) Stop() error {
	s.stopOnce.Do(func() {
		if s.listener != nil {
			s.listener.Close()
		}
		if s.runtime != nil {
			s.runtime.Close()
		}
		os.Remove(s.socketPath)
		os.Remove(s.pidFile)
		close(s.done)
	})
	return nil
}

// Returns a channel closed once the server has stopped.
func (s *Server) Done() <-chan struct{} {
	return s.done
}

func or(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
