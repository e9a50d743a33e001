package watcher

import (
	"sort"
	"sync"
	"time"
)

// debouncer collects paths and hands them to flush once no new event has
// arrived for window. Editors often write a note as a burst of create,
// write and rename events; each path is reconciled once per burst against
// the current state of the file, so the order of the events does not matter.
type debouncer struct {
	window time.Duration
	flush  func(path string)

	mu      sync.Mutex
	pending map[string]struct{}
	timer   *time.Timer
	stopped bool
	running sync.WaitGroup
}

func newDebouncer(window time.Duration, flush func(path string)) *debouncer {
	return &debouncer{
		window:  window,
		flush:   flush,
		pending: make(map[string]struct{}),
	}
}

func (d *debouncer) add(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.pending[path] = struct{}{}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.fire)
}

func (d *debouncer) fire() {
	d.mu.Lock()
	if d.stopped || len(d.pending) == 0 {
		d.mu.Unlock()
		return
	}
	paths := make([]string, 0, len(d.pending))
	for path := range d.pending {
		paths = append(paths, path)
	}
	d.pending = make(map[string]struct{})
	d.running.Add(1)
	d.mu.Unlock()
	defer d.running.Done()

	sort.Strings(paths)
	for _, path := range paths {
		d.flush(path)
	}
}

// stop discards pending paths and waits for a running flush to finish.
func (d *debouncer) stop() {
	d.mu.Lock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
	d.pending = nil
	d.mu.Unlock()
	d.running.Wait()
}
