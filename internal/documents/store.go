// Package documents holds the text of documents that are open in an editor but not (yet)
// persisted, so the preview can serve what the user sees rather than what is on disk.
package documents

import (
	"path/filepath"
	"sync"
)

// Lookup is the read-only view the content layer needs.
type Lookup interface {
	// DirtyText returns the in-memory text of an on-disk document with unsaved edits.
	DirtyText(absPath string) (string, bool)
	// UntitledText returns the text of an untitled document by its display name.
	UntitledText(name string) (string, bool)
}

// ChangeFunc observes edits made through a Store.
type ChangeFunc func(absPath string)

// Store is a concurrency-safe Lookup populated by the embedding host.
type Store struct {
	mu       sync.RWMutex
	dirty    map[string]string
	untitled map[string]string
	onChange ChangeFunc
}

// NewStore creates an empty store. onChange may be nil.
func NewStore(onChange ChangeFunc) *Store {
	return &Store{
		dirty:    make(map[string]string),
		untitled: make(map[string]string),
		onChange: onChange,
	}
}

// SetDirty records unsaved text for an on-disk document.
func (s *Store) SetDirty(absPath, text string) {
	absPath = filepath.Clean(absPath)
	s.mu.Lock()
	s.dirty[absPath] = text
	cb := s.onChange
	s.mu.Unlock()
	if cb != nil {
		cb(absPath)
	}
}

// MarkSaved forgets the in-memory text once the document matches disk again.
func (s *Store) MarkSaved(absPath string) {
	s.mu.Lock()
	delete(s.dirty, filepath.Clean(absPath))
	s.mu.Unlock()
}

// SetUntitled records the text of an untitled document.
func (s *Store) SetUntitled(name, text string) {
	s.mu.Lock()
	s.untitled[name] = text
	cb := s.onChange
	s.mu.Unlock()
	if cb != nil {
		cb(name)
	}
}

// Close removes a document of either kind.
func (s *Store) Close(key string) {
	s.mu.Lock()
	delete(s.untitled, key)
	delete(s.dirty, filepath.Clean(key))
	s.mu.Unlock()
}

func (s *Store) DirtyText(absPath string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	text, ok := s.dirty[filepath.Clean(absPath)]
	return text, ok
}

func (s *Store) UntitledText(name string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	text, ok := s.untitled[name]
	return text, ok
}

// Empty is a Lookup with no open documents.
type Empty struct{}

func (Empty) DirtyText(string) (string, bool)    { return "", false }
func (Empty) UntitledText(string) (string, bool) { return "", false }
