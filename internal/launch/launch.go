// Package launch opens preview URIs in a browser.
package launch

import (
	"context"
	"log/slog"
	"os/exec"
	"runtime"

	ferrors "git.home.luguber.info/inful/livepreview/internal/foundation/errors"
	"git.home.luguber.info/inful/livepreview/internal/logfields"
)

// Launcher shows a preview to the user.
type Launcher interface {
	OpenExternal(ctx context.Context, uri string, debug bool) error
	OpenEmbedded(ctx context.Context, uri, panel string) error
}

// Browser opens external previews with the platform's URL handler. There is no embedded
// panel outside an editor, so embedded requests are logged only.
type Browser struct {
	logger  *slog.Logger
	command func(ctx context.Context, uri string) *exec.Cmd
}

func NewBrowser(logger *slog.Logger) *Browser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Browser{logger: logger, command: systemCommand}
}

func systemCommand(ctx context.Context, uri string) *exec.Cmd {
	switch runtime.GOOS {
	case "darwin":
		return exec.CommandContext(ctx, "open", uri)
	case "windows":
		return exec.CommandContext(ctx, "rundll32", "url.dll,FileProtocolHandler", uri)
	default:
		return exec.CommandContext(ctx, "xdg-open", uri)
	}
}

func (b *Browser) OpenExternal(ctx context.Context, uri string, debug bool) error {
	cmd := b.command(ctx, uri)
	if err := cmd.Start(); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryRuntime, "failed to open browser").
			WithContext("uri", uri).
			WithContext("command", cmd.Path).
			Build()
	}
	// reap the opener without blocking the caller
	go func() { _ = cmd.Wait() }()
	b.logger.Info("Opened preview in browser", logfields.URL(uri), slog.Bool("debug", debug))
	return nil
}

func (b *Browser) OpenEmbedded(_ context.Context, uri, panel string) error {
	b.logger.Info("Embedded preview ready", logfields.URL(uri), slog.String("panel", panel))
	return nil
}
