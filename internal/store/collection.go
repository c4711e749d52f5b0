package store

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/marcus/bam/internal/delayed"
	"github.com/marcus/bam/internal/models"
)

// Collection keeps one Entity per name for a family of records. Entities
// are created on first use.
type Collection[T Cloner[T]] struct {
	Kind models.EntityKind

	load    func(ctx context.Context, name string) (T, error)
	persist delayed.PersistFunc[T]
	cfg     delayed.Config

	mu       sync.Mutex
	entities map[string]*Entity[T]
	onChange func(Event)
}

// NewCollection creates a collection. load fetches one record by name,
// persist writes one back.
func NewCollection[T Cloner[T]](kind models.EntityKind, load func(ctx context.Context, name string) (T, error), persist delayed.PersistFunc[T], cfg delayed.Config) *Collection[T] {
	return &Collection[T]{
		Kind:     kind,
		load:     load,
		persist:  persist,
		cfg:      cfg,
		entities: make(map[string]*Entity[T]),
	}
}

// OnChange registers a callback for state changes of every entity,
// including ones created later.
func (c *Collection[T]) OnChange(fn func(Event)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChange = fn
	for _, e := range c.entities {
		e.OnChange(fn)
	}
}

// Get returns the entity for name, creating it if needed
func (c *Collection[T]) Get(name string) *Entity[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entities[name]; ok {
		return e
	}
	load := func(ctx context.Context) (T, error) { return c.load(ctx, name) }
	e := NewEntity(string(c.Kind)+":"+name, load, c.persist, c.cfg)
	if c.onChange != nil {
		e.OnChange(c.onChange)
	}
	c.entities[name] = e
	return e
}

// Seed installs listed values as loaded baselines. Entities with unsaved
// edits keep their state.
func (c *Collection[T]) Seed(items []T, name func(T) string) {
	for _, v := range items {
		e := c.Get(name(v))
		if e.queue.Busy() {
			continue
		}
		e.Seed(v)
	}
}

// Update edits the named entity; it must have been loaded or seeded
func (c *Collection[T]) Update(name string, fn func(T) (T, error)) error {
	return c.Get(name).Update(fn)
}

// Names returns the sorted names of known entities
func (c *Collection[T]) Names() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, 0, len(c.entities))
	for n := range c.entities {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Saving returns the names of entities with queued or in-flight edits
func (c *Collection[T]) Saving() []string {
	var out []string
	for _, n := range c.Names() {
		if c.Get(n).State() == StateSaving {
			out = append(out, n)
		}
	}
	return out
}

// Flush sends every entity's queued edits immediately
func (c *Collection[T]) Flush() {
	for _, e := range c.all() {
		e.Flush()
	}
}

// Wait blocks until every entity is drained and returns their save errors
func (c *Collection[T]) Wait(ctx context.Context) error {
	var errs []error
	for _, e := range c.all() {
		if err := e.Wait(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close discards queued edits of every entity
func (c *Collection[T]) Close() {
	for _, e := range c.all() {
		e.Close()
	}
}

func (c *Collection[T]) all() []*Entity[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Entity[T], 0, len(c.entities))
	for _, e := range c.entities {
		out = append(out, e)
	}
	return out
}
