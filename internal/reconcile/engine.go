// Package reconcile synchronizes the live editor block registry with the
// blocks registered on the site.
//
// A run fetches the registered set, diffs it against the live registry and
// writes the difference back in chunked batches:
//
//	idle -> fetching-registered -> diffing -> batch-creating
//	     -> batch-updating -> batch-deleting -> done
//
// Per-item write failures do not stop a run; they are collected in
// Result.Failures. Only failing to read either side aborts it.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/marcus/bam/internal/editor"
	"github.com/marcus/bam/internal/models"
)

// ErrAlreadyRan is returned by a second Run on the same engine
var ErrAlreadyRan = errors.New("reconcile: engine already ran")

// Phase is a reconciliation run state
type Phase string

const (
	PhaseIdle     Phase = "idle"
	PhaseFetching Phase = "fetching-registered"
	PhaseDiffing  Phase = "diffing"
	PhaseCreating Phase = "batch-creating"
	PhaseUpdating Phase = "batch-updating"
	PhaseDeleting Phase = "batch-deleting"
	PhaseDone     Phase = "done"
)

// Op is a write operation kind
type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Remote is the registered-blocks collection on the site
type Remote interface {
	ListBlocks(ctx context.Context) ([]models.Block, error)
	CreateBlock(ctx context.Context, b models.Block) (*models.Block, error)
	UpdateBlock(ctx context.Context, u models.BlockUpdate) (*models.Block, error)
	DeleteBlock(ctx context.Context, name string) error
}

// Progress is a snapshot of a run's state, handed to OnProgress after every
// change. Total and Done count items of the current phase.
type Progress struct {
	Phase   Phase
	Total   int
	Done    int
	Created int
	Updated int
	Deleted int
	Failed  int
}

// Failure is a single write that did not succeed
type Failure struct {
	Op   Op
	Name string
	Err  error
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s %s: %v", f.Op, f.Name, f.Err)
}

// Result summarizes a run
type Result struct {
	RunID      string
	DryRun     bool
	Diff       Diff
	Created    []models.Block
	Updated    []models.Block
	Deleted    []string
	Failures   []Failure
	Display    []models.Block
	Progress   Progress
	StartedAt  time.Time
	FinishedAt time.Time
}

// Err joins the per-item failures, nil when every write succeeded
func (r *Result) Err() error {
	errs := make([]error, len(r.Failures))
	for i, f := range r.Failures {
		errs[i] = f
	}
	return errors.Join(errs...)
}

// Engine runs one reconciliation. Build a new Engine for every run.
type Engine struct {
	Remote   Remote
	Registry editor.Registry
	Batch    Batcher

	// DefaultAccess, when not zero, is given to newly created blocks
	DefaultAccess models.Access

	// DryRun computes the diff without writing anything
	DryRun bool

	Logger     *slog.Logger
	OnProgress func(Progress)

	mu       sync.Mutex
	ran      bool
	progress Progress
}

// Run performs the reconciliation. It returns an error when either side
// could not be read, or with a partial Result when ctx ends mid-write.
// Individual write failures are reported in Result.Failures.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	e.mu.Lock()
	if e.ran {
		e.mu.Unlock()
		return nil, ErrAlreadyRan
	}
	e.ran = true
	e.progress = Progress{Phase: PhaseIdle}
	e.mu.Unlock()

	logger := e.Logger
	if logger == nil {
		logger = slog.Default()
	}
	res := &Result{
		RunID:     uuid.NewString(),
		DryRun:    e.DryRun,
		StartedAt: time.Now(),
	}
	logger = logger.With("run", res.RunID)

	e.enter(PhaseFetching, 0)
	registered, err := e.Remote.ListBlocks(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch registered blocks: %w", err)
	}
	live, err := e.Registry.Blocks(ctx)
	if err != nil {
		return nil, fmt.Errorf("read editor registry: %w", err)
	}
	logger.Debug("reconcile: fetched", "registered", len(registered), "live", len(live))

	e.enter(PhaseDiffing, 0)
	res.Diff = Detect(registered, live)
	logger.Info("reconcile: diff",
		"create", len(res.Diff.Create),
		"update", len(res.Diff.Update),
		"delete", len(res.Diff.Delete),
		"unchanged", len(res.Diff.Unchanged))

	written := make(map[string]models.Block)
	if e.DryRun {
		for _, b := range res.Diff.Create {
			written[b.Name] = b
		}
		for _, u := range res.Diff.Update {
			written[u.Name] = u.Block
		}
	} else {
		if err := e.writeAll(ctx, res, written, logger); err != nil {
			res.Progress = e.snapshot()
			res.FinishedAt = time.Now()
			return res, err
		}
	}

	res.Display = DisplayMerge(live, registered, written)
	e.enter(PhaseDone, 0)
	res.Progress = e.snapshot()
	res.FinishedAt = time.Now()
	return res, nil
}

func (e *Engine) writeAll(ctx context.Context, res *Result, written map[string]models.Block, logger *slog.Logger) error {
	var mu sync.Mutex
	record := func(op Op, name string, stored *models.Block, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			logger.Warn("reconcile: write failed", "op", op, "block", name, "err", err)
			res.Failures = append(res.Failures, Failure{Op: op, Name: name, Err: err})
			e.advance(op, false)
			return
		}
		switch op {
		case OpCreate:
			res.Created = append(res.Created, *stored)
			written[name] = *stored
		case OpUpdate:
			res.Updated = append(res.Updated, *stored)
			written[name] = *stored
		case OpDelete:
			res.Deleted = append(res.Deleted, name)
		}
		e.advance(op, true)
	}

	creates := res.Diff.Create
	if !e.DefaultAccess.IsZero() {
		creates = make([]models.Block, len(res.Diff.Create))
		for i, b := range res.Diff.Create {
			if b.Access.IsZero() {
				b.Access = e.DefaultAccess.Clone()
			}
			creates[i] = b
		}
	}

	e.enter(PhaseCreating, len(creates))
	if _, err := Dispatch(ctx, e.Batch, creates, func(ctx context.Context, b models.Block) error {
		stored, err := e.Remote.CreateBlock(ctx, b)
		if err == nil && stored == nil {
			stored = &b
		}
		record(OpCreate, b.Name, stored, err)
		return err
	}); err != nil {
		return fmt.Errorf("create blocks: %w", err)
	}

	e.enter(PhaseUpdating, len(res.Diff.Update))
	if _, err := Dispatch(ctx, e.Batch, res.Diff.Update, func(ctx context.Context, u models.BlockUpdate) error {
		stored, err := e.Remote.UpdateBlock(ctx, u)
		if err == nil && stored == nil {
			stored = &u.Block
		}
		record(OpUpdate, u.Name, stored, err)
		return err
	}); err != nil {
		return fmt.Errorf("update blocks: %w", err)
	}

	e.enter(PhaseDeleting, len(res.Diff.Delete))
	if _, err := Dispatch(ctx, e.Batch, res.Diff.Delete, func(ctx context.Context, name string) error {
		err := e.Remote.DeleteBlock(ctx, name)
		record(OpDelete, name, nil, err)
		return err
	}); err != nil {
		return fmt.Errorf("delete blocks: %w", err)
	}
	return nil
}

// enter moves the run to phase with total items to process
func (e *Engine) enter(phase Phase, total int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.progress.Phase = phase
	e.progress.Total = total
	e.progress.Done = 0
	e.notifyLocked()
}

func (e *Engine) advance(op Op, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.progress.Done++
	switch {
	case !ok:
		e.progress.Failed++
	case op == OpCreate:
		e.progress.Created++
	case op == OpUpdate:
		e.progress.Updated++
	case op == OpDelete:
		e.progress.Deleted++
	}
	e.notifyLocked()
}

func (e *Engine) notifyLocked() {
	if e.OnProgress != nil {
		e.OnProgress(e.progress)
	}
}

func (e *Engine) snapshot() Progress {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.progress
}
