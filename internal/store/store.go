package store

import (
	"context"
	"errors"
	"log/slog"

	"github.com/marcus/bam/internal/delayed"
	"github.com/marcus/bam/internal/models"
)

// SettingsName is the entity name of the settings singleton
const SettingsName = "settings"

// Remote is the site API the store reads from and writes to
type Remote interface {
	GetSettings(ctx context.Context) (*models.Settings, error)
	UpdateSettings(ctx context.Context, s models.Settings) (*models.Settings, error)
	ListBlocks(ctx context.Context) ([]models.Block, error)
	GetBlock(ctx context.Context, name string) (*models.Block, error)
	UpdateBlock(ctx context.Context, u models.BlockUpdate) (*models.Block, error)
	ListPatterns(ctx context.Context) ([]models.Pattern, error)
	GetPattern(ctx context.Context, name string) (*models.Pattern, error)
	UpdatePattern(ctx context.Context, p models.Pattern) (*models.Pattern, error)
}

// SaveRecorder receives the outcome of every persist attempt
type SaveRecorder interface {
	RecordSave(kind models.EntityKind, name string, err error)
}

// Store is an editing session over one site
type Store struct {
	Settings *Entity[models.Settings]
	Blocks   *Collection[models.Block]
	Patterns *Collection[models.Pattern]

	remote Remote
}

// New builds a store whose writes go through delayed queues configured by cfg.
// rec may be nil.
func New(remote Remote, cfg delayed.Config, rec SaveRecorder) *Store {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	record := func(kind models.EntityKind, name string, err error) {
		if err != nil {
			logger.Debug("store: save failed", "kind", kind, "name", name, "err", err)
		}
		if rec != nil {
			rec.RecordSave(kind, name, err)
		}
	}

	s := &Store{remote: remote}
	s.Settings = NewEntity(SettingsName,
		func(ctx context.Context) (models.Settings, error) {
			return deref(remote.GetSettings(ctx))
		},
		func(ctx context.Context, v models.Settings) (models.Settings, error) {
			out, err := deref(remote.UpdateSettings(ctx, v))
			record(models.KindSettings, SettingsName, err)
			return out, err
		}, cfg)

	s.Blocks = NewCollection(models.KindBlock,
		func(ctx context.Context, name string) (models.Block, error) {
			return deref(remote.GetBlock(ctx, name))
		},
		func(ctx context.Context, b models.Block) (models.Block, error) {
			out, err := deref(remote.UpdateBlock(ctx, models.BlockUpdate{Block: b}))
			record(models.KindBlock, b.Name, err)
			return out, err
		}, cfg)

	s.Patterns = NewCollection(models.KindPattern,
		func(ctx context.Context, name string) (models.Pattern, error) {
			return deref(remote.GetPattern(ctx, name))
		},
		func(ctx context.Context, p models.Pattern) (models.Pattern, error) {
			out, err := deref(remote.UpdatePattern(ctx, p))
			record(models.KindPattern, p.Name, err)
			return out, err
		}, cfg)

	return s
}

// LoadAll loads settings and seeds every block and pattern from the list
// endpoints. Patterns are skipped when settings disable pattern management.
func (s *Store) LoadAll(ctx context.Context) error {
	if err := s.Settings.Load(ctx); err != nil {
		return err
	}
	blocks, err := s.remote.ListBlocks(ctx)
	if err != nil {
		return err
	}
	s.Blocks.Seed(blocks, func(b models.Block) string { return b.Name })

	if !s.Settings.Current().ManagePatterns {
		return nil
	}
	patterns, err := s.remote.ListPatterns(ctx)
	if err != nil {
		return err
	}
	s.Patterns.Seed(patterns, func(p models.Pattern) string { return p.Name })
	return nil
}

// EditBlock applies one field edit to a loaded block
func (s *Store) EditBlock(name string, e Edit) error {
	return s.Blocks.Update(name, func(b models.Block) (models.Block, error) {
		return ApplyEdit(b, e)
	})
}

// EditPattern applies one access edit to a loaded pattern
func (s *Store) EditPattern(name string, e Edit) error {
	return s.Patterns.Update(name, func(p models.Pattern) (models.Pattern, error) {
		return ApplyPatternEdit(p, e)
	})
}

// Flush sends every queued edit immediately
func (s *Store) Flush() {
	s.Settings.Flush()
	s.Blocks.Flush()
	s.Patterns.Flush()
}

// Wait blocks until all entities are drained
func (s *Store) Wait(ctx context.Context) error {
	return errors.Join(s.Settings.Wait(ctx), s.Blocks.Wait(ctx), s.Patterns.Wait(ctx))
}

// Close discards all queued edits
func (s *Store) Close() {
	s.Settings.Close()
	s.Blocks.Close()
	s.Patterns.Close()
}

func deref[T any](v *T, err error) (T, error) {
	var zero T
	if err != nil {
		return zero, err
	}
	if v == nil {
		return zero, nil
	}
	return *v, nil
}
