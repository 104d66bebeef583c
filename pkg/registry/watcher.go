package registry

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"

	"github.com/opus67/skillctx/pkg/logger"
)

// Watcher reloads the registry when the corpus changes on disk. Events are
// debounced so bulk edits (git checkout, corpus regeneration) trigger a
// single reload.
type Watcher struct {
	reg      *Registry
	debounce time.Duration
	fsw      *fsnotify.Watcher
}

// NewWatcher creates a watcher over the registry's skill directories.
// Directories that do not exist yet are skipped.
func NewWatcher(reg *Registry, debounce time.Duration) (*Watcher, error) {
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create fsnotify watcher")
	}

	watched := 0
	for _, dir := range reg.dirs {
		if _, err := os.Stat(dir); err != nil {
			continue
		}
		if err := fsw.Add(dir); err != nil {
			_ = fsw.Close()
			return nil, errors.Wrapf(err, "failed to watch %s", dir)
		}
		watched++
	}
	if watched == 0 {
		_ = fsw.Close()
		return nil, errors.New("no existing skill directories to watch")
	}

	return &Watcher{reg: reg, debounce: debounce, fsw: fsw}, nil
}

// Start blocks, reloading the registry after corpus changes, until ctx is
// cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	defer w.fsw.Close()
	log := logger.G(ctx)

	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !isMarkdownEvent(event) {
				continue
			}
			log.WithField("event", event.String()).Debug("corpus change detected")
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				fire = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			log.WithError(err).Warn("fsnotify error")
		case <-fire:
			timer = nil
			fire = nil
			report, err := w.reg.Load(ctx)
			if err != nil {
				log.WithError(err).Error("registry reload failed")
				continue
			}
			log.WithFields(map[string]interface{}{
				"loaded":  report.Loaded,
				"skipped": len(report.Skipped),
			}).Info("registry reloaded after corpus change")
		}
	}
}

func isMarkdownEvent(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	return strings.HasSuffix(strings.ToLower(event.Name), ".md")
}
