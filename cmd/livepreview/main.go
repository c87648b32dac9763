package main

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/livepreview/cmd/livepreview/commands"
	ferrors "git.home.luguber.info/inful/livepreview/internal/foundation/errors"
	"git.home.luguber.info/inful/livepreview/internal/version"
)

func main() {
	var cli commands.CLI
	global := &commands.Global{Logger: slog.Default()}
	ctx := kong.Parse(&cli,
		kong.Bind(global),
		kong.Name("livepreview"),
		kong.Description("Serve local files over HTTP with live reload."),
		kong.Vars{"version": version.String()},
	)

	err := ctx.Run(&cli)
	if err != nil {
		adapter := ferrors.NewCLIErrorAdapter(cli.Verbose, global.Logger)
		os.Exit(adapter.Report(os.Stderr, err))
	}
}
