// Parses flags, configures logging, and runs the pybox commands.
//
// Global flags:
//
//	-q, --quiet        Suppress informational output.
//	-v, --verbose      Enable verbose output.
//	-d, --debug        Enable debug output.
//	    --log-format   Log encoding, console or json.
//	-s, --socket       Daemon Unix socket path.
//
// Commands:
//
//	render     Write the Dockerfile for a manifest.
//	import     Convert a Dockerfile into a manifest.
//	check      Validate a manifest and its build context.
//	build      Build an image.
//	run        Build an image and run its launch process in the foreground.
//	cache      List or remove cached install layers.
//	start      Start the daemon.
//	launch     Start a built archive detached on the daemon.
//	container  Stop, query, or remove a launched container.
//	status     Show daemon status.
//	shutdown   Stop the daemon.
//	version    Show version information.
//
// Every flag can also be set through a PYBOX_* environment variable. Flags
// override build-time defaults set via linker flags. After parsing, the
// global logger is rebuilt to reflect the final level, encoding, and
// verbosity before the command runs.
package cli
