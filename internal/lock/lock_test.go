package lock

import (
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestFileLock_TryLock(t *testing.T) {
	dir := t.TempDir()
	fl := New(filepath.Join(dir, "queue.lock"))
	if err := fl.TryLock(); err != nil {
		t.Fatalf("TryLock failed: %v", err)
	}
	defer fl.Unlock()
}

func TestFileLock_SecondHolderRejected(t *testing.T) {
	dir := t.TempDir()
	lockPath := filepath.Join(dir, "queue.lock")

	fl1 := New(lockPath)
	if err := fl1.TryLock(); err != nil {
		t.Fatalf("first TryLock failed: %v", err)
	}
	defer fl1.Unlock()

	fl2 := New(lockPath)
	if err := fl2.TryLock(); !errors.Is(err, ErrBusy) {
		t.Errorf("second TryLock: got %v, want ErrBusy", err)
	}
}

func TestFileLock_AcquireTimesOut(t *testing.T) {
	dir := t.TempDir()
	lockPath := filepath.Join(dir, "queue.lock")

	fl1 := New(lockPath)
	if err := fl1.TryLock(); err != nil {
		t.Fatalf("TryLock failed: %v", err)
	}
	defer fl1.Unlock()

	fl2 := New(lockPath)
	start := time.Now()
	err := fl2.Acquire(100 * time.Millisecond)
	if !errors.Is(err, ErrBusy) {
		t.Fatalf("Acquire: got %v, want ErrBusy", err)
	}
	if elapsed := time.Since(start); elapsed < 100*time.Millisecond {
		t.Errorf("Acquire returned after %s, before the timeout", elapsed)
	}
}

func TestFileLock_AcquireAfterRelease(t *testing.T) {
	dir := t.TempDir()
	lockPath := filepath.Join(dir, "queue.lock")

	fl1 := New(lockPath)
	if err := fl1.TryLock(); err != nil {
		t.Fatalf("TryLock failed: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		fl2 := New(lockPath)
		done <- fl2.Acquire(2 * time.Second)
	}()

	time.Sleep(50 * time.Millisecond)
	if err := fl1.Unlock(); err != nil {
		t.Fatalf("Unlock failed: %v", err)
	}

	if err := <-done; err != nil {
		t.Errorf("Acquire after release failed: %v", err)
	}
}

func TestFileLock_SerializesGoroutines(t *testing.T) {
	dir := t.TempDir()
	lockPath := filepath.Join(dir, "queue.lock")

	var counter int64
	var inCritical atomic.Int32

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fl := New(lockPath)
			if err := fl.Acquire(5 * time.Second); err != nil {
				t.Errorf("Acquire: %v", err)
				return
			}
			if inCritical.Add(1) != 1 {
				t.Error("two holders inside the critical section")
			}
			counter++
			inCritical.Add(-1)
			_ = fl.Unlock()
		}()
	}
	wg.Wait()

	if counter != 20 {
		t.Errorf("expected counter=20, got %d", counter)
	}
}
