// Package registry is the process-wide index of live window handles. It is
// an index, not an owner: entries are added when creation completes and
// removed when the OS reports the handle destroyed. All access is confined
// to the coordinator run loop, so no locking is needed.
package registry

import (
	"github.com/mullionhq/mullion/internal/config"
	"github.com/mullionhq/mullion/internal/logger"
	"github.com/mullionhq/mullion/internal/platform"
	"github.com/rs/zerolog"
)

// Entry pairs a window handle with its metadata side-table record.
type Entry struct {
	ID     int
	Window platform.Window
	Config *config.WindowConfig
}

// Registry maps process-lifetime-unique integer ids to live window entries.
type Registry struct {
	nextID  int
	entries map[int]*Entry
	order   []int // creation order, oldest first
	onClose map[int]func()
	log     *zerolog.Logger
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		nextID:  1,
		entries: make(map[int]*Entry),
		onClose: make(map[int]func()),
		log:     logger.WithComponent("registry"),
	}
}

// Register indexes a newly created handle and returns its entry. Ids are
// never reused within a process lifetime.
func (r *Registry) Register(win platform.Window, cfg *config.WindowConfig) *Entry {
	id := r.nextID
	r.nextID++

	e := &Entry{ID: id, Window: win, Config: cfg}
	r.entries[id] = e
	r.order = append(r.order, id)

	r.log.Debug().Int("window", id).Str("title", cfg.Title).Msg("Window registered")
	return e
}

// Deregister drops an entry after the OS reported the handle destroyed, and
// fires the one-shot close callback registered for that id, if any.
func (r *Registry) Deregister(id int) {
	if _, ok := r.entries[id]; !ok {
		return
	}
	delete(r.entries, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}

	if fn, ok := r.onClose[id]; ok {
		delete(r.onClose, id)
		fn()
	}

	r.log.Debug().Int("window", id).Int("remaining", len(r.entries)).Msg("Window deregistered")
}

// Get returns the entry for id, or nil if the id is not live.
func (r *Registry) Get(id int) *Entry {
	return r.entries[id]
}

// Window returns the handle for id.
func (r *Registry) Window(id int) (platform.Window, bool) {
	if e, ok := r.entries[id]; ok {
		return e.Window, true
	}
	return nil, false
}

// All returns the live entries in creation order.
func (r *Registry) All() []*Entry {
	out := make([]*Entry, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.entries[id])
	}
	return out
}

// IDs returns the live ids in creation order.
func (r *Registry) IDs() []int {
	return append([]int(nil), r.order...)
}

// Count returns the number of live entries.
func (r *Registry) Count() int {
	return len(r.entries)
}

// Main resolves the current main window: scanning from most-recently created
// to oldest, the first entry flagged isMainWin wins; with none flagged the
// most-recently created entry is the fallback. This lets a later window
// promote itself to main without the original main closing.
func (r *Registry) Main() *Entry {
	if len(r.order) == 0 {
		return nil
	}
	for i := len(r.order) - 1; i >= 0; i-- {
		e := r.entries[r.order[i]]
		if e.Config != nil && e.Config.IsMainWin {
			return e
		}
	}
	return r.entries[r.order[len(r.order)-1]]
}

// OnClosed registers a one-shot callback invoked synchronously by the
// deregistration path. Used for the parent-focus-return rule.
func (r *Registry) OnClosed(id int, fn func()) {
	if _, ok := r.entries[id]; !ok {
		return
	}
	r.onClose[id] = fn
}

// UpdateConfig replaces an entry's config wholesale. Returns false when the
// id is not live.
func (r *Registry) UpdateConfig(id int, cfg *config.WindowConfig) bool {
	e, ok := r.entries[id]
	if !ok {
		return false
	}
	e.Config = cfg
	return true
}
