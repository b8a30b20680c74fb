package protocol

import "github.com/cruciblehq/pybox/internal/manifest"

// Lifecycle state of a launched container.
type ContainerState string

const (
	ContainerRunning    ContainerState = "running"     // Task is active.
	ContainerStopped    ContainerState = "stopped"     // Container exists without a running task.
	ContainerNotCreated ContainerState = "not-created" // No container with the ID exists.
)

// Payload of [CmdBuild].
type BuildRequest struct {
	Manifest *manifest.Manifest `json:"manifest"`           // Build manifest.
	Context  string             `json:"context"`            // Absolute build context directory.
	Output   string             `json:"output"`             // Directory receiving image.tar.
	Platform string             `json:"platform,omitempty"` // Target platform. Empty uses the host.
	NoCache  bool               `json:"noCache,omitempty"`  // Skip the layer cache.
}

// Response payload of [CmdBuild].
type BuildResult struct {
	Output   string `json:"output"`   // Directory containing the archive.
	Archive  string `json:"archive"`  // Path of the exported OCI archive.
	CacheHit bool   `json:"cacheHit"` // Whether the install layer was reused.
}

// Payload of [CmdLaunch].
type LaunchRequest struct {
	Archive string   `json:"archive"`           // OCI archive produced by a build.
	ID      string   `json:"id"`                // Container ID to create.
	Volumes []string `json:"volumes,omitempty"` // Bind mounts as "host:container".
	Env     []string `json:"env,omitempty"`     // Extra environment entries.
}

// Response payload of [CmdLaunch].
type LaunchResult struct {
	ID  string `json:"id"`  // Container ID.
	Log string `json:"log"` // Host file receiving the process output.
}

// Payload of the container lifecycle commands.
type ContainerRequest struct {
	ID string `json:"id"` // Container ID.
}

// Response payload of [CmdContainerStatus].
type ContainerStatusResult struct {
	ID    string         `json:"id"`    // Container ID.
	State ContainerState `json:"state"` // Current state.
}

// Response payload of [CmdStatus].
type StatusResult struct {
	Running bool   `json:"running"` // Always true when the daemon answers.
	Version string `json:"version"` // Daemon version string.
	Pid     int    `json:"pid"`     // Daemon process ID.
	Uptime  string `json:"uptime"`  // Time since the daemon started.
	Builds  int    `json:"builds"`  // Builds completed since start.
}

// Response payload of [CmdError].
type ErrorResult struct {
	Message string `json:"message"` // Error description.
}
