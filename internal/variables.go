package internal

import (
	"strconv"
	"strings"
	"sync/atomic"
)

// Default output modes, overridable at link time with -X.
var (
	rawQuiet     = "false"
	rawDebug     = "false"
	rawVerbose   = "false"
	rawLogFormat = "console" // "console" or "json".
)

var (
	quietMode   atomic.Bool // Whether quiet mode is enabled.
	debugMode   atomic.Bool // Whether debug logging is enabled.
	verboseMode atomic.Bool // Whether verbose logging is enabled.
	jsonLogs    atomic.Bool // Whether logs are encoded as JSON lines.
)

// Parses the linker flags into runtime variables.
//
// Unparseable values leave the corresponding mode disabled.
func init() {
	if v, err := strconv.ParseBool(rawQuiet); err == nil {
		quietMode.Store(v)
	}
	if v, err := strconv.ParseBool(rawDebug); err == nil {
		debugMode.Store(v)
	}
	if v, err := strconv.ParseBool(rawVerbose); err == nil {
		verboseMode.Store(v)
	}
	jsonLogs.Store(strings.EqualFold(strings.TrimSpace(rawLogFormat), "json"))
}

// Enables or disables quiet mode.
func SetQuiet(enabled bool) {
	quietMode.Store(enabled)
}

// Returns true if quiet mode is enabled.
func IsQuiet() bool {
	return quietMode.Load()
}

// Enables or disables debug mode.
func SetDebug(enabled bool) {
	debugMode.Store(enabled)
}

// Returns true if debug mode is enabled.
func IsDebug() bool {
	return debugMode.Load()
}

// Enables or disables verbose logging.
func SetVerbose(enabled bool) {
	verboseMode.Store(enabled)
}

// Returns true if verbose logging is enabled.
func IsVerbose() bool {
	return verboseMode.Load()
}

// Switches log encoding between JSON lines and console output.
func SetJSONLogs(enabled bool) {
	jsonLogs.Store(enabled)
}

// Returns true if logs are encoded as JSON lines.
func IsJSONLogs() bool {
	return jsonLogs.Load()
}
