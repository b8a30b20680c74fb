// Package logging backs log/slog with a zap core.
//
// Call sites use the slog package functions. The process installs a logger
// built by [New] as the slog default at startup and rebuilds it once flags are
// parsed. The level is shared by every logger built here, so [SetLevel] takes
// effect immediately, including for loggers created before the call.
package logging

import (
	"io"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"
	"go.uber.org/zap/zapcore"
)

// Shared level for all loggers created by this package.
var level = zap.NewAtomicLevelAt(zapcore.InfoLevel)

// Controls how log records are encoded.
type Options struct {
	JSON    bool      // Encode records as JSON lines instead of console text.
	Color   bool      // Colorize levels (console only).
	Verbose bool      // Include timestamps and caller locations.
	Stream  io.Writer // Destination. Defaults to os.Stderr.
}

// Creates a logger named after the program.
func New(name string, opts Options) *slog.Logger {
	stream := opts.Stream
	if stream == nil {
		stream = os.Stderr
	}

	core := zapcore.NewCore(encoder(opts), zapcore.Lock(zapcore.AddSync(stream)), level)

	return slog.New(zapslog.NewHandler(core,
		zapslog.WithName(name),
		zapslog.WithCaller(opts.Verbose),
	))
}

// Sets the level shared by every logger built by this package.
func SetLevel(l slog.Level) {
	level.SetLevel(zapLevel(l))
}

// Returns the current shared level.
func Level() slog.Level {
	switch level.Level() {
	case zapcore.DebugLevel:
		return slog.LevelDebug
	case zapcore.InfoLevel:
		return slog.LevelInfo
	case zapcore.WarnLevel:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

// Whether the given file is an interactive terminal.
func IsTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Builds the zap encoder for the given options.
func encoder(opts Options) zapcore.Encoder {
	if opts.JSON {
		cfg := zap.NewProductionEncoderConfig()
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
		if !opts.Verbose {
			cfg.CallerKey = zapcore.OmitKey
		}
		return zapcore.NewJSONEncoder(cfg)
	}

	cfg := zap.NewDevelopmentEncoderConfig()
	if !opts.Verbose {
		cfg.TimeKey = zapcore.OmitKey
		cfg.CallerKey = zapcore.OmitKey
	}
	if opts.Color {
		cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	return zapcore.NewConsoleEncoder(cfg)
}

// Maps a slog level onto the nearest zap level.
func zapLevel(l slog.Level) zapcore.Level {
	switch {
	case l < slog.LevelInfo:
		return zapcore.DebugLevel
	case l < slog.LevelWarn:
		return zapcore.InfoLevel
	case l < slog.LevelError:
		return zapcore.WarnLevel
	default:
		return zapcore.ErrorLevel
	}
}
