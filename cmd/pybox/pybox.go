package main

import (
	"errors"
	"log/slog"
	"os"

	"github.com/cruciblehq/pybox/internal"
	"github.com/cruciblehq/pybox/internal/cli"
	"github.com/cruciblehq/pybox/internal/launch"
	"github.com/cruciblehq/pybox/internal/logging"
)

func main() {
	slog.SetDefault(bootstrapLogger())
	slog.Debug("starting", "version", internal.VersionString(), "pid", os.Getpid(), "args", os.Args)

	os.Exit(exitCode(cli.Execute()))
}

// Maps the command's result to a process exit status.
//
// `pybox run` exits with the status of the application it ran, so a crashing
// app fails a shell pipeline the same way it would outside the container.
func exitCode(err error) int {
	if err == nil {
		return 0
	}

	var exit *launch.ExitError
	if errors.As(err, &exit) {
		slog.Debug("application exited", "code", exit.Code)
		return exit.Code
	}

	slog.Error(err.Error())
	return 1
}

// Returns the logger used until flags are parsed, configured from the link
// time defaults. cli.Execute replaces it.
func bootstrapLogger() *slog.Logger {
	level := slog.LevelInfo
	switch {
	case internal.IsDebug():
		level = slog.LevelDebug
	case internal.IsQuiet():
		level = slog.LevelWarn
	}
	logging.SetLevel(level)

	return logging.New(internal.Name, logging.Options{
		JSON:  internal.IsJSONLogs(),
		Color: logging.IsTerminal(os.Stderr),
	})
}
