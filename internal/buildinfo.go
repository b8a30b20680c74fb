package internal

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
)

// Program name, used for logging, paths, the daemon socket and image labels.
const Name = "pybox"

// Release identity, set by the release pipeline with -ldflags -X.
var (
	version   = ""
	stage     = "" // Branch or channel; "main" is omitted from version strings.
	gitCommit = ""
)

// Identifies the running binary.
type BuildInfo struct {
	Version string `json:"version,omitempty"`
	Stage   string `json:"stage,omitempty"`
	Commit  string `json:"commit,omitempty"`
	Dirty   bool   `json:"dirty,omitempty"` // Local build from a modified tree.
	Arch    string `json:"arch"`
	Local   bool   `json:"local"` // Built without the release linker flags.
}

// Returns the identity of the running binary.
//
// A build missing any release flag is local. Local builds take the commit
// from the VCS stamp the go tool embeds, when there is one.
func Build() BuildInfo {
	b := BuildInfo{
		Version: strings.TrimPrefix(strings.ToLower(strings.TrimSpace(version)), "v"),
		Stage:   strings.ToLower(strings.TrimSpace(stage)),
		Commit:  strings.TrimSpace(gitCommit),
		Arch:    runtime.GOARCH,
	}
	b.Local = b.Version == "" || b.Stage == "" || b.Commit == ""
	if !b.Local {
		return b
	}

	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				if b.Commit == "" {
					b.Commit = s.Value
				}
			case "vcs.modified":
				b.Dirty = s.Value == "true"
			}
		}
	}
	return b
}

// Formats the identity as "<version>[+<stage>] <commit> [<arch>]".
//
// Local builds format as "(local)", followed by the short commit when known.
func (b BuildInfo) String() string {
	if b.Local {
		if b.Commit == "" {
			return "(local)"
		}
		commit := b.Commit
		if len(commit) > 12 {
			commit = commit[:12]
		}
		if b.Dirty {
			commit += "-dirty"
		}
		return "(local) " + commit
	}

	channel := ""
	if b.Stage != "main" {
		channel = "+" + b.Stage
	}
	return fmt.Sprintf("%s%s %s [%s]", b.Version, channel, b.Commit, b.Arch)
}

// Returns [Build] formatted as a string.
func VersionString() string {
	return Build().String()
}
