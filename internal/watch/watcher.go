// Package watch turns a directory into a drop box: manuals copied into it
// are uploaded once they stop changing.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/raphaelgruber/manualdesk/internal/models"
)

// Watcher reports files with an accepted extension that were created or
// written in a directory, after they have been quiet for the settle delay.
type Watcher struct {
	watcher *fsnotify.Watcher
	settle  time.Duration
	logger  *slog.Logger
}

// New creates a watcher. A zero settle delay defaults to 500ms.
func New(settle time.Duration, logger *slog.Logger) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if settle <= 0 {
		settle = 500 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{watcher: w, settle: settle, logger: logger}, nil
}

// Watch starts monitoring dir. The returned channel yields absolute paths
// and is closed when ctx is done or the watcher is stopped.
func (w *Watcher) Watch(ctx context.Context, dir string) (<-chan string, error) {
	if err := w.watcher.Add(dir); err != nil {
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	out := make(chan string, 16)
	var (
		mu      sync.Mutex
		pending = make(map[string]*time.Timer)
		wg      sync.WaitGroup
	)

	emit := func(path string) {
		defer wg.Done()
		mu.Lock()
		delete(pending, path)
		mu.Unlock()
		select {
		case out <- path:
		case <-ctx.Done():
		}
	}

	go func() {
		defer func() {
			mu.Lock()
			for _, t := range pending {
				if t.Stop() {
					wg.Done()
				}
			}
			mu.Unlock()
			wg.Wait()
			close(out)
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if !accepted(event.Name) {
					continue
				}
				if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
					continue
				}
				path, err := filepath.Abs(event.Name)
				if err != nil {
					path = event.Name
				}
				// Restart the settle timer on every write.
				mu.Lock()
				if t, ok := pending[path]; ok && t.Stop() {
					wg.Done()
				}
				wg.Add(1)
				pending[path] = time.AfterFunc(w.settle, func() { emit(path) })
				mu.Unlock()
			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				w.logger.Warn("file watcher error", "error", err)
			}
		}
	}()

	return out, nil
}

// Stop releases the underlying watcher.
func (w *Watcher) Stop() error {
	return w.watcher.Close()
}

func accepted(path string) bool {
	base := filepath.Base(path)
	// Editors and browsers write partial files under hidden names.
	if strings.HasPrefix(base, ".") {
		return false
	}
	return models.IsAllowedExtension(strings.ToLower(filepath.Ext(path)))
}
