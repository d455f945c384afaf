/*
Copyright 2026 The Crate Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

     http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package browser

import (
	"context"
	"log"
	"time"

	"github.com/fsnotify/fsnotify"
)

// PollInterval is how often Watch checks for pending generations.
var PollInterval = 2 * time.Second

// Watch calls refresh when the listing of the current directory may
// have changed: once after pending thumbnail generations drain, and
// whenever an entry is created, removed or renamed in the directory.
// refresh is called from Watch's goroutine. Watch returns when ctx is
// done.
func (m *Model) Watch(ctx context.Context, refresh func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	var watched string
	rewatch := func() {
		dir := m.Dir()
		if dir == watched {
			return
		}
		if watched != "" {
			w.Remove(watched)
			watched = ""
		}
		if err := w.Add(dir); err != nil {
			log.Printf("browser: watching %s: %v", dir, err)
			return
		}
		watched = dir
	}
	rewatch()

	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()

	pending := m.thumbs.Pending() > 0
	var idle <-chan struct{}
	check := func() {
		if m.thumbs.Pending() > 0 {
			pending = true
			return
		}
		if pending {
			pending = false
			refresh()
		}
	}
	for {
		if pending && idle == nil {
			if i, ok := m.thumbs.(Idler); ok {
				idle = i.Idle()
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-m.changed:
			rewatch()
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				refresh()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Printf("browser: watch: %v", err)
		case <-idle:
			idle = nil
			check()
		case <-ticker.C:
			check()
		}
	}
}
