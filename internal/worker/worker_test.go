package worker

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/queuectl/queuectl/internal/config"
	"github.com/queuectl/queuectl/internal/model"
	"github.com/queuectl/queuectl/internal/queue"
	"github.com/queuectl/queuectl/internal/storage"
)

func newTestHarness(t *testing.T) (*storage.Store, *queue.Manager, *config.Store) {
	t.Helper()
	store, err := storage.New(t.TempDir())
	require.NoError(t, err)
	cfg := config.New(store.DataDir())
	// Fast polling and no backoff keep the end-to-end tests snappy.
	require.NoError(t, cfg.Set(config.KeyPollInterval, 0.05))
	require.NoError(t, cfg.Set(config.KeyBackoffBase, 0))
	return store, queue.New(store, cfg), cfg
}

func discardLogger() *Logger {
	return NewLogger(io.Discard, LogLevelError)
}

func TestWorker_CompletesJob(t *testing.T) {
	store, qm, cfg := newTestHarness(t)

	j, err := qm.Enqueue("echo hi", "", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := New(store, qm, cfg, discardLogger())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool {
		got, err := qm.Get(j.ID)
		return err == nil && got.State == model.StateCompleted
	}, 5*time.Second, 20*time.Millisecond, "job should complete")

	got, err := qm.Get(j.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Output)
	assert.Equal(t, "hi\n", *got.Output)
	assert.Nil(t, got.WorkerID)

	cancel()
	require.NoError(t, <-done)
}

func TestWorker_ExhaustedJobEndsDead(t *testing.T) {
	store, qm, cfg := newTestHarness(t)

	maxRetries := 1
	j, err := qm.Enqueue("exit 1", "", &maxRetries)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := New(store, qm, cfg, discardLogger())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool {
		got, err := qm.Get(j.ID)
		return err == nil && got.State == model.StateDead
	}, 5*time.Second, 20*time.Millisecond, "job should exhaust its retries")

	got, err := qm.Get(j.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Attempts, "initial attempt plus one retry")
	require.NotNil(t, got.LastError)
	assert.Contains(t, *got.LastError, "exit status 1")

	dead, err := qm.DLQList()
	require.NoError(t, err)
	require.Len(t, dead, 1)
	assert.Equal(t, j.ID, dead[0].ID)

	cancel()
	require.NoError(t, <-done)
}

func TestWorker_GracefulShutdownDeregisters(t *testing.T) {
	store, qm, cfg := newTestHarness(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := New(store, qm, cfg, discardLogger())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool {
		st, err := store.Load()
		return err == nil && len(st.Workers) == 1
	}, 5*time.Second, 20*time.Millisecond, "worker should register itself")

	st, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, w.ID(), st.Workers[0].WorkerID)
	assert.True(t, st.Workers[0].Running)

	cancel()
	require.NoError(t, <-done)

	st, err = store.Load()
	require.NoError(t, err)
	assert.Empty(t, st.Workers, "clean shutdown must deregister")
}

func TestStartPool_DrainsQueue(t *testing.T) {
	store, qm, cfg := newTestHarness(t)

	const jobs = 6
	ids := make([]string, 0, jobs)
	for i := 0; i < jobs; i++ {
		j, err := qm.Enqueue(fmt.Sprintf("echo job%d", i), "", nil)
		require.NoError(t, err)
		ids = append(ids, j.ID)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- StartPool(ctx, 3, store, qm, cfg, discardLogger()) }()

	require.Eventually(t, func() bool {
		status, err := qm.Status()
		return err == nil && status.Counts[model.StateCompleted] == jobs
	}, 10*time.Second, 20*time.Millisecond, "the pool should drain the queue")

	for _, id := range ids {
		got, err := qm.Get(id)
		require.NoError(t, err)
		assert.Equal(t, model.StateCompleted, got.State)
	}

	cancel()
	require.NoError(t, <-done)
}

func TestRegistry_PruneStale(t *testing.T) {
	store, _, _ := newTestHarness(t)

	require.NoError(t, Register(store, model.WorkerInfo{WorkerID: "live", PID: 1, Running: true}))
	require.NoError(t, Register(store, model.WorkerInfo{WorkerID: "gone", PID: 999999999, Running: true}))

	pruned, err := PruneStale(store)
	require.NoError(t, err)
	assert.Equal(t, 1, pruned)

	st, err := store.Load()
	require.NoError(t, err)
	require.Len(t, st.Workers, 1)
	assert.Equal(t, "live", st.Workers[0].WorkerID)
}

func TestRunCommand(t *testing.T) {
	out, err := runCommand("echo hello")
	require.NoError(t, err)
	assert.Equal(t, "hello\n", out)

	out, err = runCommand("echo oops >&2; exit 3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exit status 3")
	assert.Equal(t, "oops\n", out, "stderr is captured alongside stdout")
}

func TestLastLine(t *testing.T) {
	assert.Equal(t, "", lastLine(""))
	assert.Equal(t, "only", lastLine("only\n"))
	assert.Equal(t, "tail", lastLine("head\nmiddle\ntail\n"))
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, LogLevelDebug, ParseLogLevel("debug"))
	assert.Equal(t, LogLevelWarn, ParseLogLevel("WARNING"))
	assert.Equal(t, LogLevelInfo, ParseLogLevel("bogus"))
}
