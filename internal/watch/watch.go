// Package watch regenerates the navigation hub when Markdown files change.
package watch

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/laguz/internal/scanner"
)

// Debounce is the quiet period before the hub is regenerated.
const Debounce = 500 * time.Millisecond

// EventCallback is called for every relevant file change.
// kind is one of "created", "updated", "deleted".
type EventCallback func(kind string, path string)

// RegenerateFunc rebuilds the hub under the watched root.
type RegenerateFunc func(ctx context.Context) error

// Watch starts an fsnotify watcher on root and calls regenerate once changes
// to Markdown files have settled. Events for ignore (the hub file itself)
// are dropped so a regeneration does not trigger another one.
//
// New directories created at runtime are added to the watch list.
func Watch(ctx context.Context, root, ignore string, regenerate RegenerateFunc, logger *slog.Logger, cb EventCallback) error {
	if logger == nil {
		logger = slog.Default()
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := addDirsRecursive(w, root); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("root", root))

	var timer *time.Timer
	var timerCh <-chan time.Time
	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(Debounce)
			timerCh = timer.C
		} else {
			timer.Reset(Debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-timerCh:
			if err := regenerate(ctx); err != nil {
				logger.Warn("watcher: regenerate failed", slog.String("error", err.Error()))
			} else {
				logger.Debug("watcher: hub regenerated")
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			absPath := ev.Name

			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(absPath); statErr == nil && info.IsDir() {
					if watched(root, absPath) {
						if addErr := addDirsRecursive(w, absPath); addErr != nil {
							logger.Warn("watcher: add new dir failed",
								slog.String("path", absPath),
								slog.String("error", addErr.Error()))
						}
						schedule()
					}
					continue
				}
			}

			if !strings.HasSuffix(strings.ToLower(absPath), ".md") {
				continue
			}
			rel, relErr := filepath.Rel(root, absPath)
			if relErr != nil || filepath.ToSlash(rel) == ignore {
				continue
			}

			kind := ""
			switch {
			case ev.Op&fsnotify.Create != 0:
				kind = "created"
			case ev.Op&fsnotify.Write != 0:
				kind = "updated"
			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				kind = "deleted"
			default:
				continue
			}
			logger.Debug("watcher: change", slog.String("path", rel), slog.String("op", kind))
			if cb != nil {
				cb(kind, filepath.ToSlash(rel))
			}
			schedule()

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

func watched(root, dir string) bool {
	rel, err := filepath.Rel(root, dir)
	if err != nil {
		return false
	}
	if rel == "." {
		return true
	}
	for _, seg := range strings.Split(filepath.ToSlash(rel), "/") {
		if strings.HasPrefix(seg, ".") {
			return false
		}
	}
	return !scanner.Excluded(filepath.ToSlash(rel), scanner.DefaultExcludes)
}

// addDirsRecursive adds root and its non-excluded subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if !watched(root, path) {
			return fs.SkipDir
		}
		return w.Add(path)
	})
}
