package paths

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

const (

	// Name used for directory and file naming.
	programName = "pybox"

	// Default permission mode for directories.
	DefaultDirMode os.FileMode = 0755

	// Default permission mode for files.
	DefaultFileMode os.FileMode = 0644
)

// Path to the directory for runtime files (sockets, PIDs).
//
//	Linux:   $XDG_RUNTIME_DIR/pybox or /run/user/<uid>/pybox
//	macOS:   ~/Library/Caches/pybox/run
func Runtime() string {
	if xdg.RuntimeDir != "" {
		return filepath.Join(xdg.RuntimeDir, programName)
	}
	return filepath.Join(xdg.CacheHome, programName, "run")
}

// Default path to the Unix domain socket for CLI-to-daemon communication.
func Socket() string {
	return filepath.Join(Runtime(), "pybox.sock")
}

// Default path to the PID file.
func PIDFile() string {
	return filepath.Join(Runtime(), "pybox.pid")
}

// Path to the cache directory.
//
//	Linux:   $XDG_CACHE_HOME/pybox
//	macOS:   ~/Library/Caches/pybox
func Cache() string {
	return filepath.Join(xdg.CacheHome, programName)
}

// Path to the layer cache index database.
func CacheDB() string {
	return filepath.Join(Cache(), "layers.db")
}

// Path to the state directory.
//
//	Linux:   $XDG_STATE_HOME/pybox
//	macOS:   ~/Library/Application Support/pybox
func State() string {
	return filepath.Join(xdg.StateHome, programName)
}

// Path to the output log of a detached container.
func ContainerLog(id string) string {
	return filepath.Join(State(), "logs", id+".log")
}

// Default output directory of a build, relative to the build context.
func Output(context string) string {
	return filepath.Join(context, "dist")
}
