// Package resolve maps request URL paths onto workspace files, loose-file endpoints and
// untitled documents. The HTTP and WebSocket servers share it so both agree on what a URL
// points at.
package resolve

import (
	"os"
	"path"
	"path/filepath"

	"git.home.luguber.info/inful/livepreview/internal/content"
	"git.home.luguber.info/inful/livepreview/internal/documents"
	"git.home.luguber.info/inful/livepreview/internal/endpoint"
)

// Kind classifies a resolved target.
type Kind int

const (
	Missing Kind = iota
	File
	Directory
	Untitled
)

func (k Kind) String() string {
	switch k {
	case File:
		return "file"
	case Directory:
		return "directory"
	case Untitled:
		return "untitled"
	default:
		return "missing"
	}
}

// Target is the outcome of resolving one URL path.
type Target struct {
	Kind Kind
	// AbsPath is set for File and Directory.
	AbsPath string
	// Name is the untitled document name for Untitled.
	Name string
	// Loose is true when the path was decoded from a loose-file endpoint.
	Loose bool
}

// Injectable reports whether the live-reload client can run on the target.
func (t Target) Injectable() bool {
	switch t.Kind {
	case Directory:
		return true
	case File:
		return content.IsInjectable(t.AbsPath)
	case Untitled:
		return content.IsInjectable(t.Name)
	}
	return false
}

// Resolver resolves URL paths for one serving root. An empty root means no workspace.
type Resolver struct {
	root  string
	codec *endpoint.Codec
	docs  documents.Lookup
}

func New(root string, codec *endpoint.Codec, docs documents.Lookup) *Resolver {
	if docs == nil {
		docs = documents.Empty{}
	}
	if root != "" {
		root = filepath.Clean(root)
	}
	return &Resolver{root: root, codec: codec, docs: docs}
}

// Root returns the serving root, or "" without a workspace.
func (r *Resolver) Root() string { return r.root }

// Resolve follows workspace root first, then the loose-file endpoints. urlPath must already be
// URL-decoded and carry no query string.
func (r *Resolver) Resolve(urlPath string) Target {
	clean := path.Clean("/" + urlPath)

	if endpoint.IsUntitled(clean) {
		name, ok := r.codec.DecodeUntitled(clean)
		if !ok {
			return Target{Kind: Missing}
		}
		if _, ok := r.docs.UntitledText(name); !ok {
			return Target{Kind: Missing}
		}
		return Target{Kind: Untitled, Name: name}
	}

	if r.root != "" {
		candidate := filepath.Join(r.root, filepath.FromSlash(clean))
		if t, ok := r.stat(candidate); ok {
			return t
		}
	}

	if decoded, ok := r.codec.Decode(clean); ok {
		if t, ok := r.stat(decoded); ok {
			t.Loose = true
			return t
		}
	}
	return Target{Kind: Missing}
}

func (r *Resolver) stat(absPath string) (Target, bool) {
	info, err := os.Stat(absPath)
	if err != nil {
		// unsaved editor text for a file that was never written still resolves
		if _, ok := r.docs.DirtyText(absPath); ok {
			return Target{Kind: File, AbsPath: absPath}, true
		}
		return Target{}, false
	}
	if info.IsDir() {
		return Target{Kind: Directory, AbsPath: absPath}, true
	}
	return Target{Kind: File, AbsPath: absPath}, true
}
