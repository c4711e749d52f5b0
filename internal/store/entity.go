// Package store holds the editable entities of a session: the settings
// singleton and the per-name block and pattern records. Every entity owns
// one delayed.Queue, so edits to different entities never interfere and
// rapid edits to the same one coalesce into few writes.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/marcus/bam/internal/delayed"
)

var (
	// ErrNotLoaded is returned when editing an entity before Load
	ErrNotLoaded = errors.New("store: entity not loaded")
	// ErrBusy is returned when loading an entity that has unsaved edits
	ErrBusy = errors.New("store: entity has unsaved changes")
)

// State is the lifecycle state of an entity
type State string

const (
	StateLoading State = "loading"
	StateIdle    State = "idle"
	StateSaving  State = "saving"
)

// transitions lists the allowed state changes
var transitions = map[State][]State{
	StateLoading: {StateIdle},
	StateIdle:    {StateLoading, StateSaving, StateIdle},
	StateSaving:  {StateIdle, StateSaving},
}

func canTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Cloner is satisfied by the model types
type Cloner[T any] interface {
	Clone() T
}

// Loader fetches the stored entity
type Loader[T any] func(ctx context.Context) (T, error)

// Event reports a state change of one entity
type Event struct {
	Name  string
	State State
	Err   error
}

// Entity is one editable record. The zero value is not usable; use NewEntity.
type Entity[T Cloner[T]] struct {
	name  string
	load  Loader[T]
	queue *delayed.Queue[T]

	mu       sync.Mutex
	current  T
	stored   T
	seq      uint64
	loaded   bool
	state    State
	err      error
	onChange func(Event)
}

// NewEntity creates an entity called name. Edits are written with persist
// through a delayed queue configured by cfg.
func NewEntity[T Cloner[T]](name string, load Loader[T], persist delayed.PersistFunc[T], cfg delayed.Config) *Entity[T] {
	e := &Entity[T]{
		name:  name,
		load:  load,
		queue: delayed.New(name, persist, cfg),
		state: StateIdle,
	}
	e.queue.OnPersisted(e.persisted)
	e.queue.OnError(e.failed)
	return e
}

// Name returns the entity name
func (e *Entity[T]) Name() string {
	return e.name
}

// OnChange registers a callback for state changes. It runs with the entity
// unlocked and must not block.
func (e *Entity[T]) OnChange(fn func(Event)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onChange = fn
}

// Load fetches the entity and makes it the baseline for later edits
func (e *Entity[T]) Load(ctx context.Context) error {
	e.mu.Lock()
	if e.queue.Busy() {
		e.mu.Unlock()
		return fmt.Errorf("load %s: %w", e.name, ErrBusy)
	}
	ev := e.setStateLocked(StateLoading)
	e.mu.Unlock()
	e.emit(ev)

	v, err := e.load(ctx)

	e.mu.Lock()
	if err != nil {
		e.err = fmt.Errorf("load %s: %w", e.name, err)
		ev = e.setStateLocked(StateIdle)
		e.mu.Unlock()
		e.emit(ev)
		return e.err
	}
	e.seed(v)
	ev = e.setStateLocked(StateIdle)
	e.mu.Unlock()
	e.emit(ev)
	return nil
}

// seed installs v as the loaded baseline; e.mu must be held
func (e *Entity[T]) seed(v T) {
	e.current = v.Clone()
	e.stored = v.Clone()
	e.loaded = true
	e.err = nil
	e.queue.SetInitialData(v)
}

// Seed marks the entity as loaded from a value fetched elsewhere, such as
// a collection listing.
func (e *Entity[T]) Seed(v T) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.seed(v)
}

// Update applies fn to a copy of the current value and queues the result.
// fn must return the new value; it may freely modify its argument.
func (e *Entity[T]) Update(fn func(T) (T, error)) error {
	e.mu.Lock()
	if !e.loaded {
		e.mu.Unlock()
		return fmt.Errorf("update %s: %w", e.name, ErrNotLoaded)
	}
	next, err := fn(e.current.Clone())
	if err != nil {
		e.mu.Unlock()
		return fmt.Errorf("update %s: %w", e.name, err)
	}
	e.current = next
	e.err = nil
	state := StateIdle
	if e.queue.EnqueueChanges(next) > 0 {
		state = StateSaving
	}
	ev := e.setStateLocked(state)
	e.mu.Unlock()
	e.emit(ev)
	return nil
}

// Current returns a copy of the latest edited value
func (e *Entity[T]) Current() T {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current.Clone()
}

// Stored returns a copy of the last value known to be on the server
func (e *Entity[T]) Stored() T {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stored.Clone()
}

// Loaded reports whether the entity has a baseline
func (e *Entity[T]) Loaded() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loaded
}

// State returns the lifecycle state
func (e *Entity[T]) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Err returns the last load or save error, nil once a later save succeeds
func (e *Entity[T]) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

// Flush sends queued edits without waiting for the debounce
func (e *Entity[T]) Flush() {
	e.queue.Flush()
}

// Wait blocks until every queued edit is saved or saving failed
func (e *Entity[T]) Wait(ctx context.Context) error {
	return e.queue.Wait(ctx)
}

// Close discards queued edits and stops any write in flight
func (e *Entity[T]) Close() {
	e.queue.Close()
}

// persisted records the server's copy. A callback that arrives after a newer
// one has been applied leaves stored alone.
func (e *Entity[T]) persisted(stored T, seq uint64) {
	e.mu.Lock()
	if seq > e.seq {
		e.stored = stored.Clone()
		e.seq = seq
	}
	e.err = nil
	state := StateSaving
	if !e.queue.Busy() {
		state = StateIdle
	}
	ev := e.setStateLocked(state)
	e.mu.Unlock()
	e.emit(ev)
}

func (e *Entity[T]) failed(err error) {
	e.mu.Lock()
	e.err = err
	ev := e.setStateLocked(StateIdle)
	e.mu.Unlock()
	e.emit(ev)
}

// setStateLocked moves to s and returns the event to emit once unlocked.
// A disallowed transition leaves the state unchanged.
func (e *Entity[T]) setStateLocked(s State) *Event {
	if !canTransition(e.state, s) {
		return nil
	}
	e.state = s
	if e.onChange == nil {
		return nil
	}
	return &Event{Name: e.name, State: s, Err: e.err}
}

func (e *Entity[T]) emit(ev *Event) {
	if ev == nil {
		return
	}
	e.mu.Lock()
	fn := e.onChange
	e.mu.Unlock()
	if fn != nil {
		fn(*ev)
	}
}
