package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/cruciblehq/pybox/internal"
	"github.com/cruciblehq/pybox/internal/logging"
)

// Represents the root command for pybox.
var RootCmd struct {
	Quiet     bool   `short:"q" env:"PYBOX_QUIET" help:"Suppress informational output."`
	Verbose   bool   `short:"v" env:"PYBOX_VERBOSE" help:"Enable verbose output."`
	Debug     bool   `short:"d" env:"PYBOX_DEBUG" help:"Enable debug output."`
	LogFormat string `enum:"console,json" default:"${logFormat}" env:"PYBOX_LOG_FORMAT" help:"Log encoding (${enum})."`
	Socket    string `short:"s" env:"PYBOX_SOCKET" help:"Override the default daemon socket path." placeholder:"PATH"`

	Render    RenderCmd    `cmd:"" help:"Write the Dockerfile for a manifest."`
	Import    ImportCmd    `cmd:"" help:"Convert a Dockerfile into a manifest."`
	Check     CheckCmd     `cmd:"" help:"Validate a manifest and its build context."`
	Build     BuildCmd     `cmd:"" help:"Build an image."`
	Run       RunCmd       `cmd:"" help:"Build an image and run it in the foreground."`
	Cache     CacheCmd     `cmd:"" help:"Manage the install layer cache."`
	Start     StartCmd     `cmd:"" help:"Start the daemon."`
	Launch    LaunchCmd    `cmd:"" help:"Start a built archive detached on the daemon."`
	Container ContainerCmd `cmd:"" help:"Manage containers launched on the daemon."`
	Status    StatusCmd    `cmd:"" help:"Show daemon status."`
	Shutdown  ShutdownCmd  `cmd:"" help:"Stop the daemon."`
	Version   VersionCmd   `cmd:"" help:"Show version information."`
}

// Parses arguments, configures logging, and runs the selected subcommand.
func Execute() error {

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	kongCtx := kong.Parse(&RootCmd,
		kong.Name(internal.Name),
		kong.Description("Builds and launches containerized Streamlit applications.\n\nA build manifest (pybox.yaml) describes the image; without one the stock\nmanifest for app_v2.py and requirements.txt is used."),
		kong.UsageOnError(),
		kong.Vars{
			"version":   internal.VersionString(),
			"logFormat": logFormat(),
		},
		kong.Vars(flagVars()),
		kong.BindTo(ctx, (*context.Context)(nil)),
	)

	configureLogger()

	return kongCtx.Run()
}

// Returns the default log encoding from linker flags.
func logFormat() string {
	if internal.IsJSONLogs() {
		return "json"
	}
	return "console"
}

// Configures the global logger based on CLI flags.
func configureLogger() {
	internal.SetDebug(RootCmd.Debug || internal.IsDebug())
	internal.SetQuiet(RootCmd.Quiet || internal.IsQuiet())
	internal.SetVerbose(RootCmd.Verbose || internal.IsVerbose())
	internal.SetJSONLogs(RootCmd.LogFormat == "json")

	// Configure level
	if internal.IsDebug() {
		logging.SetLevel(slog.LevelDebug)
	} else if internal.IsQuiet() {
		logging.SetLevel(slog.LevelWarn)
	} else {
		logging.SetLevel(slog.LevelInfo)
	}

	// Commit
	slog.SetDefault(logging.New(internal.Name, logging.Options{
		JSON:    internal.IsJSONLogs(),
		Color:   logging.IsTerminal(os.Stderr),
		Verbose: internal.IsVerbose(),
		Stream:  os.Stderr,
	}))
}
