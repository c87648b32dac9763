// Package endpoint maps files that live outside every workspace root ("loose" files) to
// synthetic URL endpoints and back.
//
// An endpoint is the first URL path segment, shaped endpoint_<parent>_<n>, and is bound to
// exactly one absolute parent directory for the lifetime of the Codec. Untitled documents,
// which have no parent directory, share the fixed endpoint_unsaved segment.
package endpoint

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"sync"
)

const (
	// Prefix starts every generated endpoint segment.
	Prefix = "endpoint_"
	// UnsavedSegment is the reserved endpoint for untitled documents.
	UnsavedSegment = Prefix + "unsaved"
)

// Codec is a bidirectional registry of loose-file endpoints. Entries are never pruned.
// It is safe for concurrent use; only Encode mutates it.
type Codec struct {
	mu    sync.RWMutex
	roots map[string]string // endpoint segment -> absolute parent directory
}

// NewCodec returns an empty registry.
func NewCodec() *Codec {
	return &Codec{roots: make(map[string]string)}
}

// Encode returns the URL path that serves absPath, registering a fresh endpoint for its
// parent directory on first use. Encoding the same parent twice reuses the endpoint.
func (c *Codec) Encode(absPath string) string {
	fullParent := filepath.Clean(filepath.Dir(absPath))
	child := filepath.Base(absPath)
	parentName := labelFor(fullParent)

	c.mu.Lock()
	defer c.mu.Unlock()
	for i := 0; ; i++ {
		segment := fmt.Sprintf("%s%s_%d", Prefix, parentName, i)
		bound, exists := c.roots[segment]
		if !exists {
			c.roots[segment] = fullParent
			return "/" + segment + "/" + child
		}
		if bound == fullParent {
			return "/" + segment + "/" + child
		}
	}
}

// EncodeUntitled returns the URL path for an untitled (never saved) document.
func (c *Codec) EncodeUntitled(name string) string {
	return "/" + UnsavedSegment + "/" + name
}

// Decode resolves a URL path previously produced by Encode. It is a pure lookup: an
// unregistered endpoint, or a remainder that climbs out of the bound directory, yields false.
func (c *Codec) Decode(urlPath string) (string, bool) {
	segment, rest := split(urlPath)
	if segment == "" || segment == UnsavedSegment {
		return "", false
	}

	c.mu.RLock()
	parent, ok := c.roots[segment]
	c.mu.RUnlock()
	if !ok {
		return "", false
	}

	resolved := filepath.Join(parent, filepath.FromSlash(rest))
	rel, err := filepath.Rel(parent, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return resolved, true
}

// DecodeUntitled returns the document name addressed by an unsaved endpoint URL.
func (c *Codec) DecodeUntitled(urlPath string) (string, bool) {
	segment, rest := split(urlPath)
	if segment != UnsavedSegment || rest == "" {
		return "", false
	}
	return rest, true
}

// EndpointParent returns a human readable label for the endpoint in urlPath: the name of
// the bound parent directory, or "." for untitled documents.
func (c *Codec) EndpointParent(urlPath string) string {
	segment, _ := split(urlPath)
	if segment == UnsavedSegment {
		return "."
	}
	c.mu.RLock()
	parent, ok := c.roots[segment]
	c.mu.RUnlock()
	if ok {
		return filepath.Base(parent)
	}
	// Unregistered: recover the label from the segment shape.
	label := strings.TrimPrefix(segment, Prefix)
	if i := strings.LastIndex(label, "_"); i > 0 {
		label = label[:i]
	}
	return label
}

// IsUntitled reports whether urlPath addresses the unsaved endpoint.
func IsUntitled(urlPath string) bool {
	segment, _ := split(urlPath)
	return segment == UnsavedSegment
}

// Parents returns every registered parent directory.
func (c *Codec) Parents() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.roots))
	for _, p := range c.roots {
		out = append(out, p)
	}
	return out
}

// split separates the endpoint segment from the rest of a URL path.
func split(urlPath string) (segment, rest string) {
	trimmed := strings.TrimPrefix(path.Clean("/"+urlPath), "/")
	segment, rest, _ = strings.Cut(trimmed, "/")
	if !strings.HasPrefix(segment, Prefix) {
		return "", ""
	}
	return segment, rest
}

func labelFor(dir string) string {
	name := filepath.Base(dir)
	if name == string(filepath.Separator) || name == "." || name == "" || strings.HasSuffix(name, ":"+string(filepath.Separator)) {
		return "root"
	}
	return strings.ReplaceAll(name, "/", "_")
}
