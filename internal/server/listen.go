package server

import (
	"log/slog"
	"net"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/renameio/v2"

	"github.com/cruciblehq/pybox/internal"
	"github.com/cruciblehq/pybox/internal/fault"
	"github.com/cruciblehq/pybox/internal/paths"
)

const (

	// Members of this group may connect to the socket.
	socketGroup = internal.Name

	// Owner and group need write permission to connect.
	socketMode = 0660
)

// Binds the Unix socket at path.
//
// A socket file that nothing answers on is left over from a crashed daemon
// and is replaced.
func listen(path string) (net.Listener, error) {
	if err := os.MkdirAll(filepath.Dir(path), paths.DefaultDirMode); err != nil {
		return nil, fault.Wrap(ErrServer, err)
	}

	if conn, err := net.DialTimeout("unix", path, time.Second); err == nil {
		conn.Close()
		return nil, fault.Wrapf(ErrAlreadyRunning, "%s", path)
	}
	os.Remove(path)

	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fault.Wrap(ErrServer, err)
	}

	if err := os.Chmod(path, socketMode); err != nil {
		ln.Close()
		return nil, fault.Wrap(ErrServer, err)
	}
	shareWithGroup(path)

	return ln, nil
}

// Hands the socket to the pybox group when the group exists. Otherwise only
// the daemon's own user can connect.
func shareWithGroup(path string) {
	g, err := user.LookupGroup(socketGroup)
	if err != nil {
		slog.Debug("no socket group, socket is owner-only", "group", socketGroup)
		return
	}
	gid, err := strconv.Atoi(g.Gid)
	if err != nil {
		return
	}
	if err := os.Chown(path, -1, gid); err != nil {
		slog.Warn("socket group not applied", "group", socketGroup, "error", err)
	}
}

// Atomically writes the current PID to path.
func writePID(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), paths.DefaultDirMode); err != nil {
		return err
	}
	return renameio.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), paths.DefaultFileMode)
}
