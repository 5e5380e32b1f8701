package validate

import (
	"context"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"

	"github.com/jingkaihe/agentkit/pkg/logger"
)

// DefaultDebounce is the quiet period after the last change before a
// re-run starts.
const DefaultDebounce = 300 * time.Millisecond

// Watch runs the validator once, then again after every burst of file
// changes under the root, until ctx is cancelled. Each report is passed to
// onReport.
func (v *Validator) Watch(ctx context.Context, debounce time.Duration, onReport func(*Report)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "failed to create file watcher")
	}
	defer watcher.Close()

	if err := v.addTree(ctx, watcher, v.root); err != nil {
		return errors.Wrap(err, "failed to watch directories")
	}

	onReport(v.Run(ctx))

	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if v.skipEvent(event.Name) {
				continue
			}
			logger.G(ctx).WithField("file", event.Name).WithField("operation", event.Op.String()).Debug("change detected")

			if event.Op&fsnotify.Create != 0 {
				if err := v.addTree(ctx, watcher, event.Name); err != nil {
					logger.G(ctx).WithError(err).WithField("path", event.Name).Warn("failed to watch new path")
				}
			}
			timer.Reset(debounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.G(ctx).WithError(err).Error("error watching files")
		case <-timer.C:
			onReport(v.Run(ctx))
		case <-ctx.Done():
			return nil
		}
	}
}

func (v *Validator) rel(path string) string {
	rel, err := filepath.Rel(v.root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

func (v *Validator) skipEvent(path string) bool {
	rel := v.rel(path)
	if rel == ".git" || strings.HasPrefix(rel, ".git/") {
		return true
	}
	return v.ignored(rel)
}

// addTree registers path and, when it is a directory, every directory
// beneath it that is not ignored.
func (v *Validator) addTree(ctx context.Context, watcher *fsnotify.Watcher, path string) error {
	return filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == path {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		rel := v.rel(p)
		if rel != "." && (d.Name() == ".git" || v.ignored(rel+"/")) {
			return filepath.SkipDir
		}
		logger.G(ctx).WithField("directory", p).Debug("adding directory to watcher")
		return watcher.Add(p)
	})
}
