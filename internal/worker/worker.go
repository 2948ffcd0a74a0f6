// Package worker runs the poll-claim-execute-retry loop. Worker units share
// nothing with each other; all coordination happens through the storage
// transaction lock.
package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"github.com/queuectl/queuectl/internal/config"
	"github.com/queuectl/queuectl/internal/model"
	"github.com/queuectl/queuectl/internal/queue"
	"github.com/queuectl/queuectl/internal/storage"
)

const (
	// execTimeout is the hard cap on a single command execution. A timeout
	// is handled as an ordinary job failure.
	execTimeout = 5 * time.Minute

	// maxOutputBytes bounds how much captured output is persisted per job.
	maxOutputBytes = 8192
)

type Worker struct {
	id     string
	store  *storage.Store
	queue  *queue.Manager
	cfg    *config.Store
	logger *Logger
}

func New(store *storage.Store, qm *queue.Manager, cfg *config.Store, logger *Logger) *Worker {
	return &Worker{
		id:     uuid.NewString(),
		store:  store,
		queue:  qm,
		cfg:    cfg,
		logger: logger,
	}
}

func (w *Worker) ID() string {
	return w.id
}

// Run registers the worker and processes jobs until ctx is cancelled. A
// cancellation between jobs exits the loop; a cancellation during execution
// lets the in-flight command finish first. The worker deregisters on the
// way out.
func (w *Worker) Run(ctx context.Context) error {
	now := time.Now().UTC().Format(time.RFC3339)
	info := model.WorkerInfo{
		WorkerID:  w.id,
		PID:       os.Getpid(),
		StartedAt: now,
		Running:   true,
	}
	if err := Register(w.store, info); err != nil {
		return fmt.Errorf("register worker: %w", err)
	}
	defer func() {
		if err := Deregister(w.store, w.id); err != nil {
			w.logger.Logf(LogLevelError, "%s deregister error=%v", w.id, err)
		}
	}()

	w.logger.Logf(LogLevelInfo, "%s started pid=%d", w.id, os.Getpid())

	wake := make(chan struct{}, 1)
	watcher, err := fsnotify.NewWatcher()
	if err == nil {
		defer watcher.Close()
		if err := watcher.Add(w.store.DataDir()); err == nil {
			go w.watchJobs(ctx, watcher, wake)
		}
	}
	// Watcher failure is non-fatal: polling alone drives the loop, the
	// watcher only wakes an idle worker early.

	for {
		select {
		case <-ctx.Done():
			w.logger.Logf(LogLevelInfo, "%s shutting down", w.id)
			return nil
		default:
		}

		job, err := w.queue.ClaimNext(w.id)
		if err != nil {
			// Storage errors abort this poll cycle, never the loop.
			level := LogLevelError
			if errors.Is(err, storage.ErrBusy) {
				level = LogLevelWarn
			}
			w.logger.Logf(level, "%s claim error=%v", w.id, err)
			w.waitForWork(ctx, nil)
			continue
		}
		if job == nil {
			w.waitForWork(ctx, wake)
			continue
		}

		w.process(ctx, job)
	}
}

// watchJobs forwards jobs-file change events to the wake channel. Atomic
// store writes land as a rename, so Create is watched alongside Write.
func (w *Worker) watchJobs(ctx context.Context, watcher *fsnotify.Watcher, wake chan<- struct{}) {
	jobsPath := w.store.JobsPath()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if ev.Name != jobsPath {
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			select {
			case wake <- struct{}{}:
			default:
			}
		case _, ok := <-watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

// waitForWork sleeps until the poll interval elapses, the watcher reports a
// jobs-file change, or shutdown is requested.
func (w *Worker) waitForWork(ctx context.Context, wake <-chan struct{}) {
	t := time.NewTimer(w.cfg.PollInterval())
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	case <-wake:
	}
}

func (w *Worker) process(ctx context.Context, job *model.Job) {
	w.logger.Logf(LogLevelInfo, "%s processing job=%s command=%q", w.id, job.ID, job.Command)

	output, execErr := runCommand(job.Command)

	if execErr == nil {
		if err := w.queue.Complete(job.ID, output); err != nil {
			w.logger.Logf(LogLevelError, "%s complete job=%s error=%v", w.id, job.ID, err)
			return
		}
		w.logger.Logf(LogLevelInfo, "%s completed job=%s", w.id, job.ID)
		return
	}

	errText := execErr.Error()
	if tail := lastLine(output); tail != "" {
		errText = errText + ": " + tail
	}

	res, err := w.queue.Fail(job.ID, errText)
	if err != nil {
		w.logger.Logf(LogLevelError, "%s fail job=%s error=%v", w.id, job.ID, err)
		return
	}

	if res.Dead {
		w.logger.Logf(LogLevelWarn, "%s dead_letter job=%s attempts=%d error=%s",
			w.id, job.ID, res.Job.Attempts, errText)
		return
	}

	w.logger.Logf(LogLevelInfo, "%s failed job=%s attempt=%d/%d retry_in=%s",
		w.id, job.ID, res.Job.Attempts, res.Job.MaxRetries, res.Delay)

	// The attempt counter and retry gate are already persisted, so this
	// sleep can be cut short by shutdown without losing the retry: the next
	// claim by any worker promotes the job once the gate passes.
	w.sleep(ctx, res.Delay)
}

func (w *Worker) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// runCommand executes the job command through the shell and returns its
// combined output. The shutdown context is deliberately not used here: a
// stop request must not kill an in-flight command.
func runCommand(command string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), execTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	out, err := cmd.CombinedOutput()
	output := truncate(string(out), maxOutputBytes)

	if ctx.Err() == context.DeadlineExceeded {
		return output, fmt.Errorf("command timed out after %s", execTimeout)
	}
	if err != nil {
		return output, err
	}
	return output, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	const maxLen = 200
	return truncate(strings.TrimSpace(s), maxLen)
}
