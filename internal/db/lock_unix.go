//go:build unix

package db

import (
	"errors"
	"syscall"
)

func (l *writeLocker) tryLock() error {
	return flock(l, syscall.LOCK_EX|syscall.LOCK_NB)
}

func (l *writeLocker) unlock() {
	flock(l, syscall.LOCK_UN)
}

func flock(l *writeLocker, how int) error {
	if l.lockFile == nil {
		return syscall.EBADF
	}
	return syscall.Flock(int(l.lockFile.Fd()), how)
}

// isProcessAlive sends signal 0. EPERM means the pid exists under another user.
func isProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := syscall.Kill(pid, 0)
	return err == nil || errors.Is(err, syscall.EPERM)
}
