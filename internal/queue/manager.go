// Package queue implements the queue operations on top of the storage
// transaction protocol: enqueue, claim, completion, failure with retry or
// dead-lettering, and the DLQ views.
package queue

import (
	"fmt"
	"strings"
	"time"

	"github.com/queuectl/queuectl/internal/config"
	"github.com/queuectl/queuectl/internal/model"
	"github.com/queuectl/queuectl/internal/storage"
)

type Manager struct {
	store *storage.Store
	cfg   *config.Store
}

func New(store *storage.Store, cfg *config.Store) *Manager {
	return &Manager{store: store, cfg: cfg}
}

// Enqueue validates and persists a new pending job. When id is empty a
// generated ID is assigned; when maxRetries is nil the configured default is
// read at call time.
func (m *Manager) Enqueue(command, id string, maxRetries *int) (*model.Job, error) {
	if strings.TrimSpace(command) == "" {
		return nil, fmt.Errorf("%w: command must be a non-empty string", ErrInvalidJob)
	}
	if maxRetries != nil && *maxRetries < 0 {
		return nil, fmt.Errorf("%w: max_retries must be non-negative", ErrInvalidJob)
	}

	retries := 0
	if maxRetries != nil {
		retries = *maxRetries
	} else {
		retries = m.cfg.MaxRetries()
	}

	if id == "" {
		generated, err := model.GenerateJobID()
		if err != nil {
			return nil, fmt.Errorf("generate job id: %w", err)
		}
		id = generated
	}

	now := time.Now().UTC().Format(time.RFC3339)
	job := model.Job{
		ID:         id,
		Command:    command,
		State:      model.StatePending,
		Attempts:   0,
		MaxRetries: retries,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err := m.store.WithTransaction(func(st *storage.State) error {
		if st.FindJob(id) != nil {
			return fmt.Errorf("%w: duplicate job id %q", ErrInvalidJob, id)
		}
		st.AddJob(job)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// ClaimNext atomically claims the first pending job in insertion order for
// workerID, returning (nil, nil) when nothing is claimable. Within the same
// transaction, failed jobs whose retry gate has passed are promoted back to
// pending first, so a retry is never stranded by a worker that crashed
// during its backoff sleep.
func (m *Manager) ClaimNext(workerID string) (*model.Job, error) {
	var claimed *model.Job

	err := m.store.WithTransaction(func(st *storage.State) error {
		now := time.Now().UTC()
		nowStr := now.Format(time.RFC3339)

		for i := range st.Jobs {
			j := &st.Jobs[i]
			if j.State != model.StateFailed || !j.RetryReady(now) {
				continue
			}
			if err := model.ValidateTransition(j.State, model.StatePending); err != nil {
				return err
			}
			j.State = model.StatePending
			j.WorkerID = nil
			j.NextRetryAt = nil
			j.UpdatedAt = nowStr
		}

		for i := range st.Jobs {
			j := &st.Jobs[i]
			if j.State != model.StatePending {
				continue
			}
			if err := model.ValidateTransition(j.State, model.StateProcessing); err != nil {
				return err
			}
			j.State = model.StateProcessing
			j.WorkerID = &workerID
			j.UpdatedAt = nowStr

			cp := *j
			claimed = &cp
			return nil
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// Complete marks a processing job as completed, recording captured output.
func (m *Manager) Complete(jobID, output string) error {
	return m.store.WithTransaction(func(st *storage.State) error {
		j := st.FindJob(jobID)
		if j == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, jobID)
		}
		if err := model.ValidateTransition(j.State, model.StateCompleted); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrNotFound, jobID, err)
		}
		j.State = model.StateCompleted
		j.WorkerID = nil
		j.NextRetryAt = nil
		if output != "" {
			j.Output = &output
		}
		j.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
		return nil
	})
}

// FailResult tells the worker what the failure transaction decided.
type FailResult struct {
	Job   model.Job
	Dead  bool
	Delay time.Duration
}

// Fail records a failed attempt for a processing job. The attempt counter
// and the retry gate are persisted before the worker sleeps its backoff, so
// a crash mid-backoff loses neither. Retries left → failed with
// next_retry_at = now + backoff_base^attempts; exhausted → dead.
func (m *Manager) Fail(jobID, errText string) (*FailResult, error) {
	base := m.cfg.BackoffBase()
	var result FailResult

	err := m.store.WithTransaction(func(st *storage.State) error {
		j := st.FindJob(jobID)
		if j == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, jobID)
		}
		if err := model.ValidateTransition(j.State, model.StateFailed); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrNotFound, jobID, err)
		}

		now := time.Now().UTC()
		nowStr := now.Format(time.RFC3339)

		j.State = model.StateFailed
		j.Attempts++
		j.LastError = &errText
		j.WorkerID = nil
		j.UpdatedAt = nowStr

		if j.ShouldRetry() {
			delay := j.BackoffDelay(base)
			gate := now.Add(delay).Format(time.RFC3339)
			j.NextRetryAt = &gate
			result = FailResult{Job: *j, Delay: delay}
			return nil
		}

		if err := model.ValidateTransition(j.State, model.StateDead); err != nil {
			return err
		}
		j.State = model.StateDead
		j.NextRetryAt = nil
		result = FailResult{Job: *j, Dead: true}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Get returns a snapshot of one job.
func (m *Manager) Get(jobID string) (*model.Job, error) {
	st, err := m.store.Load()
	if err != nil {
		return nil, err
	}
	j := st.FindJob(jobID)
	if j == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, jobID)
	}
	cp := *j
	return &cp, nil
}

// List returns jobs in stored (insertion) order, optionally filtered by
// state. It reads a lock-free snapshot.
func (m *Manager) List(filter *model.State) ([]model.Job, error) {
	st, err := m.store.Load()
	if err != nil {
		return nil, err
	}
	if filter == nil {
		return st.Jobs, nil
	}
	var jobs []model.Job
	for i := range st.Jobs {
		if st.Jobs[i].State == *filter {
			jobs = append(jobs, st.Jobs[i])
		}
	}
	return jobs, nil
}

// DLQList returns the dead letter queue: every job in the dead state.
func (m *Manager) DLQList() ([]model.Job, error) {
	dead := model.StateDead
	return m.List(&dead)
}

// DLQRetry resets a dead job to pending with a fresh attempt budget. This is
// a manual replay, not a state-machine transition: the terminal record is
// rebuilt as a runnable one. last_error is kept for inspection.
func (m *Manager) DLQRetry(jobID string) error {
	return m.store.WithTransaction(func(st *storage.State) error {
		j := st.FindJob(jobID)
		if j == nil || j.State != model.StateDead {
			return fmt.Errorf("%w: no dead job with id %s", ErrNotFound, jobID)
		}
		j.State = model.StatePending
		j.Attempts = 0
		j.WorkerID = nil
		j.NextRetryAt = nil
		j.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
		return nil
	})
}

// Status summarizes the queue for reporting: job counts per state plus the
// worker registry.
type Status struct {
	Counts  map[model.State]int
	Workers []model.WorkerInfo
}

func (m *Manager) Status() (*Status, error) {
	st, err := m.store.Load()
	if err != nil {
		return nil, err
	}
	return &Status{
		Counts:  st.JobCounts(),
		Workers: st.Workers,
	}, nil
}
