package httpserver

import (
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/julienschmidt/httprouter"

	"git.home.luguber.info/inful/livepreview/internal/content"
	ferrors "git.home.luguber.info/inful/livepreview/internal/foundation/errors"
	"git.home.luguber.info/inful/livepreview/internal/logfields"
	"git.home.luguber.info/inful/livepreview/internal/resolve"
	smw "git.home.luguber.info/inful/livepreview/internal/server/middleware"
)

// serve routes one request: injected script, no-root page, untitled documents, workspace and
// loose files, directory canonicalization, index.html and generated listings.
func (s *Server) serve(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if r.URL == nil {
		s.errorAdapter.WriteErrorResponse(w, r, ferrors.ValidationError("request has no URL").Build())
		return
	}
	urlPath := r.URL.Path

	if urlPath == content.ScriptPath {
		s.writeStream(w, r, s.opts.Loader.ScriptStream(), http.StatusOK)
		return
	}

	if s.opts.Resolver.Root() == "" && urlPath == "/" {
		s.writeStream(w, r, s.opts.Loader.NoRootServer(), http.StatusNotFound)
		return
	}

	target := s.opts.Resolver.Resolve(urlPath)
	switch target.Kind {
	case resolve.Untitled:
		stream, ok := s.opts.Loader.UntitledStream(target.Name)
		if !ok {
			s.notFound(w, r)
			return
		}
		s.writeStream(w, r, stream, http.StatusOK)

	case resolve.Directory:
		if !strings.HasSuffix(urlPath, "/") {
			location := r.URL.EscapedPath() + "/"
			if r.URL.RawQuery != "" {
				location += "?" + r.URL.RawQuery
			}
			w.Header().Set("Location", location)
			w.WriteHeader(http.StatusFound)
			return
		}
		index := filepath.Join(target.AbsPath, "index.html")
		if info, err := os.Stat(index); err == nil && !info.IsDir() {
			s.serveFile(w, r, index)
			return
		}
		stream, err := s.opts.Loader.IndexPage(target.AbsPath, urlPath)
		if err != nil {
			s.errorAdapter.WriteErrorResponse(w, r, err)
			return
		}
		s.writeStream(w, r, stream, http.StatusOK)

	case resolve.File:
		s.serveFile(w, r, target.AbsPath)

	default:
		s.notFound(w, r)
	}
}

func (s *Server) serveFile(w http.ResponseWriter, r *http.Request, absPath string) {
	stream, err := s.opts.Loader.FileStream(absPath)
	if err != nil {
		if ferrors.HasCategory(err, ferrors.CategoryNotFound) {
			s.notFound(w, r)
			return
		}
		s.errorAdapter.WriteErrorResponse(w, r, err)
		return
	}
	s.markServed(absPath)
	s.writeStream(w, r, stream, http.StatusOK)
}

func (s *Server) notFound(w http.ResponseWriter, r *http.Request) {
	s.writeStream(w, r, s.opts.Loader.PageDoesNotExist(r.URL.Path), http.StatusNotFound)
}

// writeStream sends headers then copies the body. Once headers are out a copy failure can only
// be logged; the request is still reported as a 500.
func (s *Server) writeStream(w http.ResponseWriter, r *http.Request, stream *content.Stream, status int) {
	defer stream.Close()

	h := w.Header()
	h.Set("Accept-Ranges", "bytes")
	h.Set("Content-Type", stream.ContentType+"; charset=UTF-8")
	w.WriteHeader(status)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.Copy(w, stream); err != nil {
		s.logger.Warn("Response stream failed", logfields.URL(r.URL.RequestURI()), logfields.Error(err))
		smw.MarkStatus(w, http.StatusInternalServerError)
	}
}
