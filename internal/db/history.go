package db

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/marcus/bam/internal/models"
	"github.com/marcus/bam/internal/reconcile"
)

const timeLayout = "2006-01-02 15:04:05"

// Run is a row of reconcile_runs
type Run struct {
	ID         string
	Site       string
	DryRun     bool
	Phase      string
	Created    int
	Updated    int
	Deleted    int
	Failed     int
	Unchanged  int
	StartedAt  time.Time
	FinishedAt time.Time
}

// RunItem is one write of a run
type RunItem struct {
	Op    string
	Block string
	OK    bool
	Error string
}

// SaveEntry is a row of save_log
type SaveEntry struct {
	ID        int64
	Kind      models.EntityKind
	Name      string
	Attempt   int
	OK        bool
	Error     string
	Timestamp time.Time
}

// parseTimestamp tries common SQLite timestamp formats.
func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range []string{
		timeLayout,
		time.RFC3339,
		time.RFC3339Nano,
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, &time.ParseError{Layout: timeLayout, Value: s}
}

func formatTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(timeLayout)
}

// RecordRun stores a reconciliation result and its per-item outcomes.
// Waiting for another writer stops when ctx is done.
func (db *DB) RecordRun(ctx context.Context, site string, res *reconcile.Result) error {
	return db.withWriteLock(ctx, res.RunID, func() error {
		tx, err := db.conn.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()

		p := res.Progress
		_, err = tx.Exec(`
			INSERT INTO reconcile_runs (id, site, dry_run, phase, created, updated, deleted, failed, unchanged, started_at, finished_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, res.RunID, site, res.DryRun, string(p.Phase), p.Created, p.Updated, p.Deleted, p.Failed,
			len(res.Diff.Unchanged), formatTime(res.StartedAt), formatTime(res.FinishedAt))
		if err != nil {
			return fmt.Errorf("insert run: %w", err)
		}

		stmt, err := tx.Prepare(`INSERT INTO run_items (run_id, op, block, ok, error) VALUES (?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		insert := func(op reconcile.Op, name string, ferr error) error {
			msg := ""
			if ferr != nil {
				msg = ferr.Error()
			}
			_, err := stmt.Exec(res.RunID, string(op), name, ferr == nil, msg)
			return err
		}
		for _, b := range res.Created {
			if err := insert(reconcile.OpCreate, b.Name, nil); err != nil {
				return err
			}
		}
		for _, b := range res.Updated {
			if err := insert(reconcile.OpUpdate, b.Name, nil); err != nil {
				return err
			}
		}
		for _, name := range res.Deleted {
			if err := insert(reconcile.OpDelete, name, nil); err != nil {
				return err
			}
		}
		for _, f := range res.Failures {
			if err := insert(f.Op, f.Name, f.Err); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
}

// ListRuns returns the latest runs, newest first
func (db *DB) ListRuns(limit int) ([]Run, error) {
	rows, err := db.conn.Query(`
		SELECT id, site, dry_run, phase, created, updated, deleted, failed, unchanged,
		       started_at, COALESCE(finished_at, '')
		FROM reconcile_runs
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var started, finished string
		if err := rows.Scan(&r.ID, &r.Site, &r.DryRun, &r.Phase, &r.Created, &r.Updated, &r.Deleted,
			&r.Failed, &r.Unchanged, &started, &finished); err != nil {
			return nil, err
		}
		if t, err := parseTimestamp(started); err == nil {
			r.StartedAt = t
		}
		if t, err := parseTimestamp(finished); err == nil {
			r.FinishedAt = t
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRunItems returns the writes of one run in insertion order
func (db *DB) GetRunItems(runID string) ([]RunItem, error) {
	rows, err := db.conn.Query(`SELECT op, block, ok, error FROM run_items WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []RunItem
	for rows.Next() {
		var it RunItem
		if err := rows.Scan(&it.Op, &it.Block, &it.OK, &it.Error); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// RecordSave logs one persist attempt. Consecutive failures of the same
// entity count up the attempt number; a success resets it.
func (db *DB) RecordSave(kind models.EntityKind, name string, saveErr error) {
	key := string(kind) + ":" + name
	db.mu.Lock()
	db.attempts[key]++
	attempt := db.attempts[key]
	if saveErr == nil {
		delete(db.attempts, key)
	}
	db.mu.Unlock()

	msg := ""
	if saveErr != nil {
		msg = saveErr.Error()
	}
	// Saves are logged while the session drains on shutdown, after the
	// command context is cancelled.
	err := db.withWriteLock(context.Background(), "", func() error {
		_, err := db.conn.Exec(`
			INSERT INTO save_log (kind, name, attempt, ok, error, timestamp)
			VALUES (?, ?, ?, ?, ?, ?)
		`, string(kind), name, attempt, saveErr == nil, msg, formatTime(time.Now()))
		return err
	})
	if err != nil {
		slog.Debug("db: save log", "entity", key, "err", err)
	}
}

// ListSaves returns the last limit saves in chronological order (oldest first)
func (db *DB) ListSaves(limit int) ([]SaveEntry, error) {
	rows, err := db.conn.Query(`
		SELECT id, kind, name, attempt, ok, error, timestamp
		FROM save_log
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []SaveEntry
	for rows.Next() {
		var e SaveEntry
		var kind, ts string
		if err := rows.Scan(&e.ID, &kind, &e.Name, &e.Attempt, &e.OK, &e.Error, &ts); err != nil {
			return nil, err
		}
		e.Kind = models.EntityKind(kind)
		if t, err := parseTimestamp(ts); err == nil {
			e.Timestamp = t
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}
