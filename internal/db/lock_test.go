//go:build unix

package db

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/marcus/bam/internal/reconcile"
)

func lockDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, stateDir), 0755); err != nil {
		t.Fatalf("create .bam dir: %v", err)
	}
	return dir
}

func holdLock(t *testing.T, dir string, holder LockHolder) *writeLocker {
	t.Helper()
	l := newWriteLocker(dir, holder)
	if err := l.acquire(context.Background(), time.Second); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	t.Cleanup(l.release)
	return l
}

func TestLockRecordsHolder(t *testing.T) {
	dir := lockDir(t)
	l := newWriteLocker(dir, LockHolder{Command: "bam reconcile", RunID: "run-7"})
	if err := l.acquire(context.Background(), time.Second); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	h := readHolder(l.lockPath)
	if h == nil {
		t.Fatal("no holder recorded")
	}
	if h.PID != os.Getpid() || h.Command != "bam reconcile" || h.RunID != "run-7" || h.Since.IsZero() {
		t.Errorf("holder: got %+v", h)
	}

	l.release()
	if h := readHolder(l.lockPath); h != nil {
		t.Errorf("holder after release: got %+v", h)
	}
}

func TestLockTimeoutNamesHolder(t *testing.T) {
	dir := lockDir(t)
	holdLock(t, dir, LockHolder{Command: "bam edit"})

	start := time.Now()
	err := newWriteLocker(dir, LockHolder{Command: "bam reconcile"}).acquire(context.Background(), 100*time.Millisecond)
	elapsed := time.Since(start)

	if !errors.Is(err, ErrLocked) {
		t.Fatalf("got %v, want ErrLocked", err)
	}
	var lerr *LockError
	if !errors.As(err, &lerr) || lerr.Holder == nil || lerr.Holder.Command != "bam edit" {
		t.Errorf("holder: got %#v", lerr)
	}
	if elapsed < 80*time.Millisecond || elapsed > time.Second {
		t.Errorf("waited %v, want ~100ms", elapsed)
	}
}

func TestLockWaitStopsOnCancel(t *testing.T) {
	dir := lockDir(t)
	holdLock(t, dir, LockHolder{Command: "bam edit"})

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	start := time.Now()
	err := newWriteLocker(dir, LockHolder{}).acquire(ctx, 10*time.Second)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("cancelled wait took %v", elapsed)
	}
}

func TestLockUncontendedAfterCancel(t *testing.T) {
	dir := lockDir(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	l := newWriteLocker(dir, LockHolder{})
	if err := l.acquire(ctx, time.Second); err != nil {
		t.Fatalf("free lock should be taken despite cancelled ctx: %v", err)
	}
	l.release()
}

func TestLockSerializesWriters(t *testing.T) {
	dir := lockDir(t)

	const writers, rounds = 5, 10
	var counter int64
	var wg sync.WaitGroup
	for range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range rounds {
				l := newWriteLocker(dir, LockHolder{Command: "bam apply"})
				if err := l.acquire(context.Background(), 5*time.Second); err != nil {
					t.Errorf("acquire: %v", err)
					return
				}
				v := atomic.LoadInt64(&counter)
				time.Sleep(time.Millisecond)
				atomic.StoreInt64(&counter, v+1)
				l.release()
			}
		}()
	}
	wg.Wait()

	if counter != writers*rounds {
		t.Errorf("counter = %d, want %d", counter, writers*rounds)
	}
}

func TestRecordRunReportsLockHolder(t *testing.T) {
	db := setupDB(t)
	db.SetCommand("bam reconcile")
	holdLock(t, db.BaseDir(), LockHolder{Command: "bam edit"})

	err := db.RecordRun(context.Background(), "https://example.test", &reconcile.Result{RunID: "run-9"})
	var lerr *LockError
	if !errors.As(err, &lerr) || lerr.Holder == nil || lerr.Holder.Command != "bam edit" {
		t.Fatalf("got %v, want LockError naming bam edit", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := db.RecordRun(ctx, "https://example.test", &reconcile.Result{RunID: "run-9"}); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled: got %v", err)
	}
	if runs, _ := db.ListRuns(5); len(runs) != 0 {
		t.Errorf("runs recorded while locked: %+v", runs)
	}
}
