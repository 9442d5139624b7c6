// Copyright 2026 The Remapd Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// Watcher re-parses the configuration file when it changes and hands
// the new configuration to a callback.  Parse failures keep the last
// good configuration; the callback is only invoked with valid ones.
type Watcher struct {
	path     string
	log      *logrus.Logger
	onChange func(*CoreConfiguration)

	// Editors save via rename; debounce coalesces the event bursts.
	debounce time.Duration
}

// NewWatcher makes a watcher for the given configuration path.
func NewWatcher(path string, log *logrus.Logger, onChange func(*CoreConfiguration)) *Watcher {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Watcher{
		path:     path,
		log:      log,
		onChange: onChange,
		debounce: 100 * time.Millisecond,
	}
}

// Run watches until the context is canceled.  The parent directory is
// watched rather than the file so that rename-based saves keep
// working.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	dir := filepath.Dir(w.path)
	if err := watcher.Add(dir); err != nil {
		return err
	}

	log := w.log.WithField("component", "config_watcher")
	log.WithField("path", w.path).Info("watching configuration")

	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			timerC = timer.C

		case <-timerC:
			timerC = nil
			w.reload(log)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.WithError(err).Warn("watch error")
		}
	}
}

func (w *Watcher) reload(log *logrus.Entry) {
	cfg, err := Load(w.path)
	if err != nil {
		log.WithError(err).Warn("configuration reload failed; keeping last good profile")
		return
	}
	log.Info("configuration reloaded")
	w.onChange(cfg)
}
