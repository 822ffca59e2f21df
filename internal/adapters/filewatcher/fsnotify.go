// Package filewatcher reports knowledge-base file changes.
// Clean Architecture: Adapter implementing ports.FileWatcher.
package filewatcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/0xcro3dile/contextrag-go/internal/domain/ports"
	"github.com/0xcro3dile/contextrag-go/internal/infrastructure/logging"
)

// DefaultExtensions are the knowledge-base file types.
var DefaultExtensions = []string{".txt", ".md"}

// FSNotifyWatcher implements ports.FileWatcher using fsnotify. It watches
// a directory tree and follows subdirectories created later.
type FSNotifyWatcher struct {
	watcher    *fsnotify.Watcher
	extensions map[string]struct{}
	logger     *zap.Logger

	stopOnce sync.Once
}

// NewFSNotifyWatcher creates a watcher for the given extensions
// (case-insensitive, with leading dot).
func NewFSNotifyWatcher(extensions []string, logger *zap.Logger) (*FSNotifyWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	exts := make(map[string]struct{}, len(extensions))
	for _, e := range extensions {
		exts[strings.ToLower(e)] = struct{}{}
	}
	return &FSNotifyWatcher{
		watcher:    w,
		extensions: exts,
		logger:     logging.OrNop(logger).Named("filewatcher"),
	}, nil
}

// Watch adds dir and every subdirectory, then emits events for matching
// files until ctx is done or Stop is called.
func (w *FSNotifyWatcher) Watch(ctx context.Context, dir string) (<-chan ports.FileEvent, error) {
	if err := w.addTree(dir); err != nil {
		return nil, err
	}

	events := make(chan ports.FileEvent, 100)
	go func() {
		defer close(events)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if event.Has(fsnotify.Create) && isDir(event.Name) {
					if err := w.addTree(event.Name); err != nil {
						w.logger.Warn("cannot watch new directory", zap.String("dir", event.Name), zap.Error(err))
					}
					continue
				}
				op, ok := w.classify(event)
				if !ok {
					continue
				}
				select {
				case events <- ports.FileEvent{Path: event.Name, Operation: op}:
				case <-ctx.Done():
					return
				}
			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				w.logger.Warn("watch error", zap.Error(err))
			}
		}
	}()

	return events, nil
}

// Stop stops the watcher. Calling it twice is safe.
func (w *FSNotifyWatcher) Stop() error {
	var err error
	w.stopOnce.Do(func() { err = w.watcher.Close() })
	return err
}

func (w *FSNotifyWatcher) classify(event fsnotify.Event) (ports.FileOperation, bool) {
	if _, ok := w.extensions[strings.ToLower(filepath.Ext(event.Name))]; !ok {
		return 0, false
	}
	switch {
	case event.Has(fsnotify.Create):
		return ports.FileCreated, true
	case event.Has(fsnotify.Write):
		return ports.FileModified, true
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		return ports.FileDeleted, true
	}
	return 0, false
}

func (w *FSNotifyWatcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.watcher.Add(path); err != nil {
			return err
		}
		w.logger.Debug("watching", zap.String("dir", path))
		return nil
	})
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
