package commands

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/livepreview/internal/config"
)

// Global carries state shared by every subcommand.
type Global struct {
	Logger *slog.Logger
}

// CLI definition & global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"livepreview.yaml" type:"path"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Serve ServeCmd `cmd:"" default:"withargs" help:"Serve one or more roots with live reload"`
	Init  InitCmd  `cmd:"" help:"Write a default configuration file"`
}

// AfterApply sets up a provisional logger; serve replaces it once the config is loaded.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply(g *Global) error {
	g.Logger = NewLogger(config.LogLevelInfo, config.LogFormatText, c.Verbose)
	slog.SetDefault(g.Logger)
	return nil
}

// NewLogger builds the process logger. Verbose forces debug level.
func NewLogger(level config.LogLevel, format config.LogFormat, verbose bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level.SlogLevel()}
	if verbose {
		opts.Level = slog.LevelDebug
	}
	if format == config.LogFormatJSON {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
