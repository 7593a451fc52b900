package companion

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const debounce = 100 * time.Millisecond

// watch reports created, changed and removed files below root. Events for
// a path are collected until the folder has been quiet for debounce; the
// first kind seen for a path wins.
func watch(ctx context.Context, root string, logger *zap.Logger, notify func(name, path string)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := addTree(watcher, root); err != nil {
		return err
	}

	pending := make(map[string]string)
	var order []string
	var debounceTimeout <-chan time.Time
	for {
		select {
		case e, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			name := eventName(e)
			if name == "" || strings.HasPrefix(filepath.Base(e.Name), ".") {
				continue
			}
			if name == "created" {
				if fi, err := os.Stat(e.Name); err == nil && fi.IsDir() {
					if err := addTree(watcher, e.Name); err != nil {
						logger.Warn("watch directory", zap.String("path", e.Name), zap.Error(err))
					}
				}
			}
			if _, seen := pending[e.Name]; !seen {
				pending[e.Name] = name
				order = append(order, e.Name)
			}
			debounceTimeout = time.After(debounce)

		case <-debounceTimeout:
			for _, path := range order {
				notify(pending[path], path)
			}
			pending = make(map[string]string)
			order = nil
			debounceTimeout = nil

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return err

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func eventName(e fsnotify.Event) string {
	switch {
	case e.Has(fsnotify.Create):
		return "created"
	case e.Has(fsnotify.Remove), e.Has(fsnotify.Rename):
		return "removed"
	case e.Has(fsnotify.Write):
		return "changed"
	}
	return "" // chmod
}

func addTree(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}
