package dispatch

import (
	"context"
	"log"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

const DefaultAlertSubject = "vms.alerts.fired"

// RouteTable maps delivery-channel identifiers to NATS subjects. Loaded
// from a yaml file and hot-reloaded so operators can re-route channels
// without restarting the engine. Unknown channels resolve to the default
// subject.
type RouteTable struct {
	mu       sync.RWMutex
	path     string
	routes   map[string]string
	fallback string
}

type routesFile struct {
	DefaultSubject string            `yaml:"default_subject"`
	Channels       map[string]string `yaml:"channels"`
}

// NewRouteTable builds a table backed by the given file. A missing or
// unreadable file is not fatal: everything routes to the default subject.
func NewRouteTable(path string) *RouteTable {
	t := &RouteTable{
		path:     path,
		routes:   map[string]string{},
		fallback: DefaultAlertSubject,
	}
	if path != "" {
		if err := t.Reload(); err != nil {
			log.Printf("RouteTable: initial load of %s failed (%v), using defaults", path, err)
		}
	}
	return t
}

func (t *RouteTable) Reload() error {
	raw, err := os.ReadFile(t.path)
	if err != nil {
		return err
	}
	var f routesFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if f.DefaultSubject != "" {
		t.fallback = f.DefaultSubject
	}
	t.routes = make(map[string]string, len(f.Channels))
	for ch, subject := range f.Channels {
		if subject != "" {
			t.routes[ch] = subject
		}
	}
	return nil
}

func (t *RouteTable) Resolve(channel string) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if s, ok := t.routes[channel]; ok {
		return s
	}
	return t.fallback
}

func (t *RouteTable) Default() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.fallback
}

// StartWatcher monitors the route file for changes and reloads.
// Supports both fsnotify and polling as fallback.
func (t *RouteTable) StartWatcher(ctx context.Context) {
	if t.path == "" {
		return
	}

	watcher, err := fsnotify.NewWatcher()
	usePolling := false

	if err != nil {
		log.Printf("RouteTable: fsnotify failed (%v), falling back to polling", err)
		usePolling = true
	} else {
		if err := watcher.Add(t.path); err != nil {
			log.Printf("RouteTable: failed to watch %s (%v), falling back to polling", t.path, err)
			usePolling = true
			watcher.Close()
		}
	}

	if !usePolling {
		go func() {
			defer watcher.Close()
			for {
				select {
				case <-ctx.Done():
					return
				case event, ok := <-watcher.Events:
					if !ok {
						return
					}
					if event.Op&fsnotify.Write == fsnotify.Write || event.Op&fsnotify.Create == fsnotify.Create {
						// Debounce: editors often emit write bursts.
						time.Sleep(100 * time.Millisecond)
						if err := t.Reload(); err != nil {
							log.Printf("RouteTable: reload failed: %v", err)
						} else {
							log.Printf("RouteTable: reloaded %s", t.path)
						}
					}
				case err, ok := <-watcher.Errors:
					if !ok {
						return
					}
					log.Printf("RouteTable watcher error: %v", err)
				}
			}
		}()
		return
	}

	// Polling fallback, slow cadence.
	go func() {
		ticker := time.NewTicker(60 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := t.Reload(); err != nil {
					log.Printf("RouteTable: poll reload failed: %v", err)
				}
			}
		}
	}()
}
