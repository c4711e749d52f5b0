package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	lockFileName   = "db.lock"
	defaultTimeout = 500 * time.Millisecond
	initialBackoff = 5 * time.Millisecond
	maxBackoff     = 50 * time.Millisecond
)

// ErrLocked matches a history write that gave up waiting for another bam
// process.
var ErrLocked = errors.New("history is locked")

// LockHolder identifies the bam process writing to the history. It is kept
// in .bam/db.lock as JSON while the lock is held.
type LockHolder struct {
	PID     int       `json:"pid"`
	Command string    `json:"command,omitempty"`
	RunID   string    `json:"run_id,omitempty"`
	Since   time.Time `json:"since"`
}

func (h LockHolder) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "pid %d", h.PID)
	if h.Command != "" {
		fmt.Fprintf(&b, " (%s", h.Command)
		if h.RunID != "" {
			fmt.Fprintf(&b, ", run %s", h.RunID)
		}
		b.WriteString(")")
	}
	if !h.Since.IsZero() {
		fmt.Fprintf(&b, " since %s", h.Since.Local().Format(time.TimeOnly))
	}
	if !isProcessAlive(h.PID) {
		b.WriteString(", process gone")
	}
	return b.String()
}

// LockError is returned when the write lock stays busy past the timeout
type LockError struct {
	Timeout time.Duration
	Holder  *LockHolder // nil when the lock file names no holder
}

func (e *LockError) Error() string {
	if e.Holder == nil {
		return fmt.Sprintf("%v after %v", ErrLocked, e.Timeout)
	}
	return fmt.Sprintf("%v by %s after %v", ErrLocked, e.Holder, e.Timeout)
}

func (e *LockError) Is(target error) bool { return target == ErrLocked }

// writeLocker serializes history writers across bam processes sharing a
// working directory, typically an interactive `bam edit` and a scripted
// `bam reconcile`. The OS drops the lock when the holder exits.
type writeLocker struct {
	lockPath string
	holder   LockHolder
	lockFile *os.File
}

func newWriteLocker(baseDir string, holder LockHolder) *writeLocker {
	return &writeLocker{
		lockPath: filepath.Join(baseDir, stateDir, lockFileName),
		holder:   holder,
	}
}

// acquire polls for the lock with capped exponential backoff. It stops at
// timeout with a *LockError, or as soon as ctx is done. The first attempt is
// made even when ctx is already done, so an uncontended write still lands
// after an interrupt.
func (l *writeLocker) acquire(ctx context.Context, timeout time.Duration) error {
	f, err := os.OpenFile(l.lockPath, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return fmt.Errorf("open lock file: %w", err)
	}
	l.lockFile = f

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	backoff := initialBackoff

	for {
		if err := l.tryLock(); err == nil {
			l.writeHolder()
			return nil
		}

		wait := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			wait.Stop()
			l.closeFile()
			return fmt.Errorf("wait for history lock: %w", ctx.Err())
		case <-deadline.C:
			wait.Stop()
			l.closeFile()
			return &LockError{Timeout: timeout, Holder: readHolder(l.lockPath)}
		case <-wait.C:
		}
		backoff = min(backoff*2, maxBackoff)
	}
}

// release clears the holder record and unlocks
func (l *writeLocker) release() {
	if l.lockFile == nil {
		return
	}
	l.lockFile.Truncate(0)
	l.unlock()
	l.closeFile()
}

func (l *writeLocker) closeFile() {
	l.lockFile.Close()
	l.lockFile = nil
}

func (l *writeLocker) writeHolder() {
	h := l.holder
	h.PID = os.Getpid()
	h.Since = time.Now().UTC()

	l.lockFile.Truncate(0)
	l.lockFile.Seek(0, 0)
	json.NewEncoder(l.lockFile).Encode(h)
	l.lockFile.Sync()
}

// readHolder returns the holder recorded at path, or nil when the file is
// empty or unreadable.
func readHolder(path string) *LockHolder {
	data, err := os.ReadFile(path)
	if err != nil || len(data) == 0 {
		return nil
	}
	var h LockHolder
	if err := json.Unmarshal(data, &h); err != nil || h.PID == 0 {
		return nil
	}
	return &h
}
