// Package registry keeps the client-side record of known gestures, their
// observation counts and display colours.
package registry

import (
	"errors"
	"hash/fnv"
	"sort"
	"sync"
)

// ErrNotFound is returned when a gesture is not in the registry.
var ErrNotFound = errors.New("gesture not found")

// Color is a display colour in #RRGGBB form.
type Color string

// Colours used for gestures.
const (
	ColorGreen   Color = "#00C853"
	ColorBlue    Color = "#2962FF"
	ColorOrange  Color = "#FF9100"
	ColorRed     Color = "#D50000"
	ColorMagenta Color = "#D500F9"
	ColorBlack   Color = "#000000"
)

// defaultColors are the colours of the gestures shipped with the recognizer.
var defaultColors = map[string]Color{
	"thumbs_up": ColorGreen,
	"victory":   ColorBlue,
	"ok":        ColorOrange,
	"pointing":  ColorRed,
	"five":      ColorMagenta,
}

// palette is used for gestures without a fixed colour.
var palette = []Color{
	"#00897B", "#5E35B1", "#F4511E", "#3949AB",
	"#C0CA33", "#6D4C41", "#00ACC1", "#8E24AA",
}

// DefaultGestures returns the names of the recognizer's built-in gestures.
func DefaultGestures() []string {
	return []string{"thumbs_up", "victory", "ok", "pointing", "five"}
}

// ColorFor returns the display colour for a gesture name.
func ColorFor(name string) Color {
	if c, ok := defaultColors[name]; ok {
		return c
	}
	if name == "" {
		return ColorBlack
	}
	h := fnv.New32a()
	h.Write([]byte(name))
	return palette[h.Sum32()%uint32(len(palette))]
}

// Entry is a snapshot of a single gesture.
type Entry struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
	Color Color  `json:"color"`
}

// Registry maps gesture names to observation counts and colours.
// It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{entries: make(map[string]*Entry)}
}

// NewDefault creates a registry seeded with the built-in gestures.
func NewDefault() *Registry {
	r := New()
	r.Replace(DefaultGestures())
	return r
}

// Replace discards all entries and installs names with zero counts.
func (r *Registry) Replace(names []string) {
	entries := make(map[string]*Entry, len(names))
	for _, name := range names {
		if name == "" {
			continue
		}
		entries[name] = &Entry{Name: name, Color: ColorFor(name)}
	}

	r.mu.Lock()
	r.entries = entries
	r.mu.Unlock()
}

// Add inserts name with a zero count, resetting the count if it already exists.
func (r *Registry) Add(name string) {
	if name == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[name] = &Entry{Name: name, Color: ColorFor(name)}
}

// Set inserts or overwrites an entry with the given count.
func (r *Registry) Set(name string, count int) {
	if name == "" {
		return
	}
	if count < 0 {
		count = 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[name] = &Entry{Name: name, Count: count, Color: ColorFor(name)}
}

// Remove deletes name. It returns ErrNotFound if name was not present.
func (r *Registry) Remove(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[name]; !ok {
		return ErrNotFound
	}
	delete(r.entries, name)
	return nil
}

// Observe increments the count of a known gesture and returns the new count.
// Unknown names are not added.
func (r *Registry) Observe(name string) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[name]
	if !ok {
		return 0, false
	}
	e.Count++
	return e.Count, true
}

// Get returns a copy of the entry for name.
func (r *Registry) Get(name string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Snapshot returns copies of all entries sorted by name.
func (r *Registry) Snapshot() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the number of registered gestures.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
