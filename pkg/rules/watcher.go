package rules

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/gridwork/hubcap/pkg/compat"
)

// ApplyFunc receives a freshly compiled rule set. The engine's SetRules is
// the usual target.
type ApplyFunc func([]compat.Rule)

// Watcher reloads a rule file whenever it changes on disk, so rule edits
// take effect without a restart.
type Watcher struct {
	path    string
	apply   ApplyFunc
	logger  *logrus.Logger
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewWatcher creates a watcher for one rule file. It loads and applies the
// file once before returning, so a broken file fails startup instead of
// silently running with no rules.
func NewWatcher(path string, apply ApplyFunc, logger *logrus.Logger) (*Watcher, error) {
	if logger == nil {
		logger = logrus.New()
	}

	w := &Watcher{
		path:   path,
		apply:  apply,
		logger: logger,
		done:   make(chan struct{}),
	}
	if err := w.reload(); err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Watch the directory, not the file: editors replace files on save and
	// the inode-level watch would be lost.
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, err
	}
	w.watcher = fsw

	go w.loop()
	return w, nil
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}

func (w *Watcher) loop() {
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if err := w.reload(); err != nil {
				// A bad edit keeps the previous rules in effect.
				w.logger.WithError(err).WithField("path", w.path).Warn("rule reload failed, keeping previous rules")
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.WithError(err).Warn("rule watcher error")
		}
	}
}

func (w *Watcher) reload() error {
	set, err := Load(w.path)
	if err != nil {
		return err
	}
	compiled, err := set.Compile()
	if err != nil {
		return err
	}
	w.apply(compiled)
	w.logger.WithFields(logrus.Fields{
		"path":  w.path,
		"rules": len(compiled),
	}).Info("rule set applied")
	return nil
}
