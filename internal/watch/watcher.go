// Package watch reports debounced file changes below a set of workspace roots.
package watch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	ferrors "git.home.luguber.info/inful/livepreview/internal/foundation/errors"
	"git.home.luguber.info/inful/livepreview/internal/logfields"
)

// DefaultDebounce coalesces bursts of events such as an editor's write-rename-chmod save.
const DefaultDebounce = 300 * time.Millisecond

// ChangeFunc receives the distinct paths changed during one debounce window, sorted.
type ChangeFunc func(paths []string)

// Watcher recursively watches directories and reports changed files. Single files added with
// AddFile are watched through their parent directory without descending into it.
type Watcher struct {
	fs       *fsnotify.Watcher
	debounce time.Duration
	onChange ChangeFunc
	logger   *slog.Logger

	mu      sync.Mutex
	pending map[string]struct{}
	timer   *time.Timer
	tree    map[string]struct{}
	files   map[string]map[string]struct{}
}

// New starts watching every root. A root that is a file is watched as with AddFile. Unreadable sub-directories are skipped with a warning.
func New(roots []string, debounce time.Duration, onChange ChangeFunc, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to create file watcher").Build()
	}
	w := &Watcher{
		fs:       fw,
		debounce: debounce,
		onChange: onChange,
		logger:   logger,
		pending:  make(map[string]struct{}),
		tree:     make(map[string]struct{}),
		files:    make(map[string]map[string]struct{}),
	}
	for _, root := range roots {
		if err := w.addRecursive(root); err != nil {
			_ = fw.Close()
			return nil, err
		}
	}
	return w, nil
}

// Run consumes events until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Warn("File watcher error", logfields.Error(err))
		}
	}
}

// AddFile watches a single file. Its parent directory is watched so that editors saving by
// rename keep reporting, but siblings and sub-directories are not.
func (w *Watcher) AddFile(path string) error {
	path = filepath.Clean(path)
	info, err := os.Stat(path)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "cannot watch file").
			WithContext("path", path).
			Build()
	}
	if info.IsDir() {
		return w.addRecursive(path)
	}
	dir, base := filepath.Dir(path), filepath.Base(path)
	w.mu.Lock()
	names, ok := w.files[dir]
	if !ok {
		names = make(map[string]struct{})
		w.files[dir] = names
	}
	names[base] = struct{}{}
	_, inTree := w.tree[dir]
	w.mu.Unlock()
	if inTree || ok {
		return nil
	}
	if err := w.fs.Add(dir); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "cannot watch file").
			WithContext("path", path).
			Build()
	}
	return nil
}

// Close stops watching and drops any pending change.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.pending = make(map[string]struct{})
	w.mu.Unlock()
	return w.fs.Close()
}

// relevant reports whether path lies directly in a recursively watched directory (inTree), and
// otherwise whether it is one of the files added with AddFile.
func (w *Watcher) relevant(path string) (inTree, ok bool) {
	dir := filepath.Dir(path)
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, t := w.tree[dir]; t {
		return true, true
	}
	_, f := w.files[dir][filepath.Base(path)]
	return false, f
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if ShouldIgnore(ev.Name) {
		return
	}
	inTree, ok := w.relevant(ev.Name)
	if !ok {
		return
	}
	if inTree && ev.Op&fsnotify.Create == fsnotify.Create {
		if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
			_ = w.addRecursive(ev.Name)
		}
	}
	if ev.Op == fsnotify.Chmod {
		return
	}
	w.logger.Debug("File change detected", logfields.Path(ev.Name), slog.String("op", ev.Op.String()))

	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending[filepath.Clean(ev.Name)] = struct{}{}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.flush)
}

func (w *Watcher) flush() {
	w.mu.Lock()
	if len(w.pending) == 0 {
		w.mu.Unlock()
		return
	}
	paths := make([]string, 0, len(w.pending))
	for p := range w.pending {
		paths = append(paths, p)
	}
	w.pending = make(map[string]struct{})
	w.mu.Unlock()

	sort.Strings(paths)
	if w.onChange != nil {
		w.onChange(paths)
	}
}

func (w *Watcher) addRecursive(root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "cannot watch root").
			WithContext("path", root).
			Build()
	}
	if !info.IsDir() {
		return w.AddFile(root)
	}
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.fs.Add(path); err != nil {
			w.logger.Warn("Watch add failed", logfields.Path(path), logfields.Error(err))
			return nil
		}
		w.mu.Lock()
		w.tree[filepath.Clean(path)] = struct{}{}
		w.mu.Unlock()
		return nil
	})
}

// ShouldIgnore returns true for paths that never trigger a refresh: hidden files, editor
// swap/backup files and OS metadata.
func ShouldIgnore(path string) bool {
	base := filepath.Base(path)

	if strings.HasPrefix(base, ".") {
		return true
	}
	if strings.HasSuffix(base, "~") ||
		strings.HasSuffix(base, ".swp") ||
		strings.HasSuffix(base, ".swx") ||
		strings.HasSuffix(base, ".tmp") ||
		strings.HasPrefix(base, "#") && strings.HasSuffix(base, "#") {
		return true
	}
	return base == "Thumbs.db" || base == "4913"
}
