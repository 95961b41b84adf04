package store

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/semihalev/zlog/v2"
	"golang.org/x/sync/singleflight"

	"github.com/coredomain/authnsd/zone"
	"github.com/coredomain/authnsd/zonefile"
)

// ZoneSource names one zone file to (re-)load at a given origin, the
// on-disk counterpart of a config.ZoneConfig entry.
type ZoneSource struct {
	Name string
	File string
}

// Reloader re-parses every configured zone file on trigger and publishes
// a fresh Store to idx. It watches each zone file's containing directory
// (not the file itself, so editor atomic-rename survives) and additionally
// accepts an external trigger channel, coalescing bursts of either source
// through a singleflight.Group so concurrent triggers perform one reload.
type Reloader struct {
	idx     *Index
	sources []ZoneSource

	watcher *fsnotify.Watcher
	group   singleflight.Group

	stop chan struct{}
}

// NewReloader performs the initial load (failure here is fatal to
// startup per §6's exit-code contract) and starts watching zone
// directories for changes. The resulting Index is available via Index().
func NewReloader(sources []ZoneSource) (*Reloader, error) {
	r := &Reloader{
		sources: sources,
		stop:    make(chan struct{}),
	}

	if err := r.reloadOnce(); err != nil {
		return nil, fmt.Errorf("initial zone load: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating zone watcher: %w", err)
	}
	r.watcher = watcher

	watched := map[string]bool{}
	for _, src := range sources {
		dir := filepath.Dir(src.File)
		if watched[dir] {
			continue
		}
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			return nil, fmt.Errorf("watching zone directory %s: %w", dir, err)
		}
		watched[dir] = true
	}

	return r, nil
}

// Watch runs the fsnotify/ticker event loop until Stop is called. Run it
// in its own goroutine.
func (r *Reloader) Watch(external <-chan struct{}) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	defer r.watcher.Close()

	for {
		select {
		case <-r.stop:
			return

		case event, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			zlog.Debug("zone directory event", "event", event.String())
			r.triggerReload()

		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			zlog.Error("zone watcher error", "error", err.Error())

		case <-external:
			r.triggerReload()

		case <-ticker.C:
			r.triggerReload()
		}
	}
}

// Stop ends the watch loop. The published store remains live.
func (r *Reloader) Stop() {
	close(r.stop)
}

// Index returns the live store index queries should snapshot from.
func (r *Reloader) Index() *Index {
	return r.idx
}

func (r *Reloader) triggerReload() {
	_, _, _ = r.group.Do("reload", func() (any, error) {
		if err := r.reloadOnce(); err != nil {
			zlog.Error("zone reload failed, keeping previous generation", "error", err.Error())
		}
		return nil, nil
	})
}

func (r *Reloader) reloadOnce() error {
	zones := make([]*zone.Zone, 0, len(r.sources))

	for _, src := range r.sources {
		z, err := zonefile.ParseFile(src.File, src.Name)
		if err != nil {
			return fmt.Errorf("zone %s (%s): %w", src.Name, src.File, err)
		}
		zones = append(zones, z)
	}

	next, err := Build(zones)
	if err != nil {
		return err
	}

	if r.idx == nil {
		r.idx = NewIndex(next)
	} else {
		r.idx.Publish(next)
	}

	zlog.Info("zones loaded", "count", len(zones))

	return nil
}
