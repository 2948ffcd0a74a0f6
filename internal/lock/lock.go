// Package lock provides an advisory file lock shared by every queuectl
// process on the machine.
package lock

import (
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// ErrBusy is returned when the lock cannot be acquired within the timeout.
var ErrBusy = errors.New("lock busy")

const retryInterval = 25 * time.Millisecond

// FileLock is an exclusive flock(2) on a well-known path. Each transaction
// acquires and releases its own FileLock; flock serializes both across
// processes and across goroutines, since every acquisition opens its own
// file description.
type FileLock struct {
	path string
	file *os.File
}

func New(path string) *FileLock {
	return &FileLock{path: path}
}

// TryLock attempts a non-blocking acquisition.
func (fl *FileLock) TryLock() error {
	f, err := os.OpenFile(fl.path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return fmt.Errorf("open lock file: %w", err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return ErrBusy
		}
		return fmt.Errorf("acquire lock: %w", err)
	}

	fl.file = f
	return nil
}

// Acquire retries TryLock until it succeeds or the timeout elapses, in which
// case it returns ErrBusy.
func (fl *FileLock) Acquire(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		err := fl.TryLock()
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrBusy) {
			return err
		}
		if time.Now().After(deadline) {
			return ErrBusy
		}
		time.Sleep(retryInterval)
	}
}

// Unlock releases the lock. The lock file itself is never removed: unlinking
// it would let a waiter flock a stale inode while a newcomer locks a fresh
// file, breaking mutual exclusion.
func (fl *FileLock) Unlock() error {
	if fl.file == nil {
		return nil
	}

	if err := unix.Flock(int(fl.file.Fd()), unix.LOCK_UN); err != nil {
		fl.file.Close()
		fl.file = nil
		return fmt.Errorf("release lock: %w", err)
	}

	err := fl.file.Close()
	fl.file = nil
	if err != nil {
		return fmt.Errorf("close lock file: %w", err)
	}
	return nil
}
