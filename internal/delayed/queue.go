// Package delayed debounces and coalesces writes of a single named entity.
//
// A Queue holds at most two snapshots: slot 0 is in flight (or about to be),
// slot 1 is the next pending replacement. Each EnqueueChanges call carries the
// full current state of the entity; edits made before the debounce fires
// collapse into one write, and edits that return to an already covered state
// are dropped without a network call. At most one persist call is in flight
// per queue.
package delayed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/marcus/bam/internal/merge"
)

// DefaultDelay is the debounce period before the first snapshot is sent
const DefaultDelay = 2 * time.Second

// maxPending bounds the queue: in flight plus one replacement
const maxPending = 2

// PersistFunc writes a snapshot to the remote side and returns the stored
// entity. It must not mutate its input and should be idempotent.
type PersistFunc[T any] func(ctx context.Context, snapshot T) (T, error)

// Config holds the non-generic queue settings
type Config struct {
	Delay  time.Duration
	Retry  RetryPolicy
	Logger *slog.Logger
}

// cloner is implemented by the model types; other types are deep-copied
// through JSON.
type cloner[T any] interface {
	Clone() T
}

// Queue is a per-entity delayed change queue. A Queue must not be shared by
// two editors of the same entity.
type Queue[T any] struct {
	name    string
	persist PersistFunc[T]
	delay   time.Duration
	retry   RetryPolicy
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	initial     T
	hasInitial  bool
	pending     []T
	started     bool
	sending     bool
	failed      bool
	lastErr     error
	timer       *time.Timer
	gen         uint64
	stored      uint64
	idle        chan struct{}
	onPersisted func(T, uint64)
	onError     func(error)
}

// New creates a queue for the entity called name
func New[T any](name string, persist PersistFunc[T], cfg Config) *Queue[T] {
	if cfg.Delay <= 0 {
		cfg.Delay = DefaultDelay
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = DefaultRetryPolicy()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	idle := make(chan struct{})
	close(idle)
	return &Queue[T]{
		name:    name,
		persist: persist,
		delay:   cfg.Delay,
		retry:   cfg.Retry,
		logger:  cfg.Logger.With("entity", name),
		ctx:     ctx,
		cancel:  cancel,
		idle:    idle,
	}
}

// OnPersisted registers a callback invoked with each stored entity and its
// sequence number, which grows by one per successful persist. The callback
// for one persist can run after the next persist's callback has started, so
// receivers drop values older than the newest they have seen.
func (q *Queue[T]) OnPersisted(fn func(stored T, seq uint64)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.onPersisted = fn
}

// OnError registers a callback invoked when a snapshot could not be
// persisted after all retry attempts.
func (q *Queue[T]) OnError(fn func(error)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.onError = fn
}

// Name returns the entity name the queue was created for
func (q *Queue[T]) Name() string {
	return q.name
}

// SetInitialData records the baseline the entity started this editing
// session from. It must be called before EnqueueChanges.
func (q *Queue[T]) SetInitialData(snapshot T) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.initial = cloneSnapshot(snapshot)
	q.hasInitial = true
}

// EnqueueChanges applies the queue update rules to the full current
// snapshot and returns the resulting queue length (0, 1 or 2).
func (q *Queue[T]) EnqueueChanges(snapshot T) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.hasInitial {
		q.logger.Warn("delayed: enqueue before initial data, comparing against zero value")
		q.hasInitial = true
	}

	next := cloneSnapshot(snapshot)
	n := len(q.pending)
	sameAsInitial := merge.Equal(next, q.initial)

	switch {
	case n == 1 && !q.sending && !sameAsInitial:
		// Collapse repeated edits made before the debounce fires.
		q.pending[0] = next
	case (n == 2 && merge.Equal(next, q.pending[0])) || (n == 1 && !q.sending && sameAsInitial):
		// Reverted to a state already covered.
		q.pending = q.pending[:n-1]
	case (n == 0 && !sameAsInitial) || (n == 1 && !merge.Equal(next, q.pending[0])):
		q.pending = append(q.pending, next)
	case n == 2:
		q.pending[1] = next
	}

	q.failed = false
	q.scheduleLocked()
	q.logger.Debug("delayed: enqueued", "queue", len(q.pending), "sending", q.sending)
	return len(q.pending)
}

// Len returns the number of queued snapshots
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Busy reports whether a snapshot is queued or in flight
func (q *Queue[T]) Busy() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending) > 0 && !q.failed
}

// Err returns the error of the last failed persist, nil after a success
func (q *Queue[T]) Err() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.lastErr
}

// Flush skips the remaining debounce period and sends immediately
func (q *Queue[T]) Flush() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 || q.started {
		return
	}
	q.stopTimerLocked()
	q.started = true
	q.scheduleLocked()
}

// Wait blocks until the queue drains, a persist fails for good, or ctx ends.
// It returns the persist error in the second case.
func (q *Queue[T]) Wait(ctx context.Context) error {
	q.mu.Lock()
	idle := q.idle
	q.mu.Unlock()

	select {
	case <-idle:
		return q.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close cancels any in-flight persist and pending timer. Queued snapshots
// are discarded.
func (q *Queue[T]) Close() {
	q.cancel()
	q.mu.Lock()
	defer q.mu.Unlock()
	q.stopTimerLocked()
	q.pending = nil
	q.started = false
	q.settleLocked()
}

// scheduleLocked arms the debounce timer, sends the head snapshot, or stops,
// depending on queue state.
func (q *Queue[T]) scheduleLocked() {
	switch {
	case len(q.pending) == 0:
		q.stopTimerLocked()
		q.started = false
	case !q.started:
		q.stopTimerLocked()
		q.gen++
		gen := q.gen
		q.timer = time.AfterFunc(q.delay, func() { q.fire(gen) })
	case !q.sending:
		// A previous send just completed and more work is queued.
		q.sending = true
		go q.send()
	}
	q.settleLocked()
}

func (q *Queue[T]) fire(gen uint64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if gen != q.gen || q.started || len(q.pending) == 0 {
		return
	}
	q.timer = nil
	q.started = true
	q.scheduleLocked()
}

func (q *Queue[T]) send() {
	q.mu.Lock()
	head := cloneSnapshot(q.pending[0])
	q.mu.Unlock()

	var stored T
	attempts, err := q.retry.do(q.ctx, func(attempt int) error {
		var perr error
		stored, perr = q.persist(q.ctx, cloneSnapshot(head))
		if perr != nil {
			q.logger.Debug("delayed: persist failed", "attempt", attempt, "err", perr)
		}
		return perr
	})

	q.mu.Lock()
	q.sending = false
	if err != nil {
		err = fmt.Errorf("persist %s: %w", q.name, err)
		q.started = false
		q.failed = true
		q.lastErr = err
		onError := q.onError
		q.settleLocked()
		q.mu.Unlock()

		q.logger.Warn("delayed: giving up", "attempts", attempts, "err", err)
		if onError != nil {
			onError(err)
		}
		return
	}

	if len(q.pending) > 0 {
		q.pending = q.pending[1:]
	}
	q.initial = head
	q.lastErr = nil
	q.stored++
	seq := q.stored
	onPersisted := q.onPersisted
	q.scheduleLocked()
	q.mu.Unlock()

	q.logger.Debug("delayed: persisted", "attempts", attempts, "seq", seq)
	if onPersisted != nil {
		onPersisted(stored, seq)
	}
}

func (q *Queue[T]) stopTimerLocked() {
	if q.timer != nil {
		q.timer.Stop()
		q.timer = nil
	}
	q.gen++
}

// settleLocked keeps the idle channel in step with queue state
func (q *Queue[T]) settleLocked() {
	quiet := len(q.pending) == 0 || q.failed
	select {
	case <-q.idle:
		if !quiet {
			q.idle = make(chan struct{})
		}
	default:
		if quiet {
			close(q.idle)
		}
	}
}

func cloneSnapshot[T any](v T) T {
	if c, ok := any(v).(cloner[T]); ok {
		return c.Clone()
	}
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("delayed: snapshot of type %T is not serializable: %v", v, err))
	}
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		panic(fmt.Sprintf("delayed: snapshot of type %T does not round-trip: %v", v, err))
	}
	return out
}
