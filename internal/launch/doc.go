// Package launch starts a built image's launch argv as a foreground process.
//
// The process runs until it exits on its own or the context is cancelled,
// in which case it receives SIGTERM and is waited on. A non-zero exit status
// is returned as an [*ExitError] so the command line can exit with the same
// status. Nothing is restarted.
//
// A [Launcher] hides the backend. [Containerd] imports the OCI archive a
// build produced and runs it in the host network namespace; [Docker] runs an
// engine image with the manifest's port published on the same host port.
package launch
