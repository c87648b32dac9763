// Package content produces response bodies for the preview HTTP server: file streams with the
// live-reload client prepended to HTML, and the synthesized listing and error pages.
package content

import (
	"bufio"
	"io"
	"os"
	"strings"

	"git.home.luguber.info/inful/livepreview/internal/documents"
	ferrors "git.home.luguber.info/inful/livepreview/internal/foundation/errors"
	"git.home.luguber.info/inful/livepreview/internal/metrics"
)

// Stream is a response body and its media type. Callers must Close it.
type Stream struct {
	Body        io.ReadCloser
	ContentType string
	Injected    bool
}

func (s *Stream) Read(p []byte) (int, error) { return s.Body.Read(p) }
func (s *Stream) Close() error               { return s.Body.Close() }

// Loader builds response streams. It is safe for concurrent use.
type Loader struct {
	injector *Injector
	docs     documents.Lookup
	recorder metrics.Recorder
}

func NewLoader(injector *Injector, docs documents.Lookup, recorder metrics.Recorder) *Loader {
	if docs == nil {
		docs = documents.Empty{}
	}
	return &Loader{injector: injector, docs: docs, recorder: metrics.OrNoop(recorder)}
}

// Injector returns the script injector bound to this loader.
func (l *Loader) Injector() *Injector { return l.injector }

// FileStream opens absPath, preferring unsaved editor text over disk content. The file is
// opened and its first byte read before returning so that a failure can still become a
// proper error response.
func (l *Loader) FileStream(absPath string) (*Stream, error) {
	contentType := ContentTypeFor(absPath)
	if text, ok := l.docs.DirtyText(absPath); ok {
		return l.textStream(text, contentType, IsInjectable(absPath)), nil
	}

	f, err := os.Open(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ferrors.NotFoundError("file does not exist").WithContext("path", absPath).Build()
		}
		return nil, ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to open file").
			WithContext("path", absPath).
			Build()
	}
	br := bufio.NewReader(f)
	if _, err := br.Peek(1); err != nil && err != io.EOF {
		_ = f.Close()
		return nil, ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to read file").
			WithContext("path", absPath).
			Build()
	}
	body := readCloser{Reader: br, Closer: f}
	if !IsInjectable(absPath) {
		return &Stream{Body: body, ContentType: contentType}, nil
	}
	return &Stream{
		Body:        readCloser{Reader: io.MultiReader(strings.NewReader(l.injector.Tag()), br), Closer: f},
		ContentType: contentType,
		Injected:    true,
	}, nil
}

// UntitledStream serves the text of an untitled document by display name.
func (l *Loader) UntitledStream(name string) (*Stream, bool) {
	text, ok := l.docs.UntitledText(name)
	if !ok {
		return nil, false
	}
	return l.textStream(text, ContentTypeFor(name), IsInjectable(name)), true
}

// ScriptStream serves the live-reload client itself.
func (l *Loader) ScriptStream() *Stream {
	return &Stream{
		Body:        io.NopCloser(strings.NewReader(l.injector.Script())),
		ContentType: "text/javascript",
	}
}

func (l *Loader) textStream(text, contentType string, inject bool) *Stream {
	if inject {
		text = l.injector.Tag() + text
	}
	return &Stream{
		Body:        io.NopCloser(strings.NewReader(text)),
		ContentType: contentType,
		Injected:    inject,
	}
}

type readCloser struct {
	io.Reader
	io.Closer
}
