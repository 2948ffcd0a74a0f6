package worker

import (
	"errors"

	"golang.org/x/sys/unix"

	"github.com/queuectl/queuectl/internal/model"
	"github.com/queuectl/queuectl/internal/storage"
)

// Register adds a worker to the registry.
func Register(store *storage.Store, info model.WorkerInfo) error {
	return store.WithTransaction(func(st *storage.State) error {
		st.Workers = append(st.Workers, info)
		return nil
	})
}

// Deregister removes a worker from the registry on clean exit.
func Deregister(store *storage.Store, workerID string) error {
	return store.WithTransaction(func(st *storage.State) error {
		kept := make([]model.WorkerInfo, 0, len(st.Workers))
		for _, wi := range st.Workers {
			if wi.WorkerID != workerID {
				kept = append(kept, wi)
			}
		}
		st.Workers = kept
		return nil
	})
}

// PruneStale drops registry entries whose process no longer exists, e.g.
// workers that were killed without a chance to deregister.
func PruneStale(store *storage.Store) (int, error) {
	pruned := 0
	err := store.WithTransaction(func(st *storage.State) error {
		kept := make([]model.WorkerInfo, 0, len(st.Workers))
		for _, wi := range st.Workers {
			if !IsProcessRunning(wi.PID) {
				pruned++
				continue
			}
			kept = append(kept, wi)
		}
		st.Workers = kept
		return nil
	})
	if err != nil {
		return 0, err
	}
	return pruned, nil
}

// StopAll signals every live registered worker with SIGTERM and marks it as
// stopping; stale entries are pruned. Workers finish their in-flight job
// before exiting, so this returns as soon as the signals are delivered.
func StopAll(store *storage.Store) (int, error) {
	signalled := 0
	err := store.WithTransaction(func(st *storage.State) error {
		kept := make([]model.WorkerInfo, 0, len(st.Workers))
		for _, wi := range st.Workers {
			if !IsProcessRunning(wi.PID) {
				continue
			}
			if err := unix.Kill(wi.PID, unix.SIGTERM); err == nil {
				signalled++
			}
			wi.Running = false
			kept = append(kept, wi)
		}
		st.Workers = kept
		return nil
	})
	if err != nil {
		return 0, err
	}
	return signalled, nil
}

// IsProcessRunning probes a PID with signal 0. EPERM still means the
// process exists.
func IsProcessRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}
