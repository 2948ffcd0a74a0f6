package worker

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/queuectl/queuectl/internal/config"
	"github.com/queuectl/queuectl/internal/queue"
	"github.com/queuectl/queuectl/internal/storage"
)

// StartPool runs count independent worker units against the same store and
// blocks until all have shut down. Each unit gets its own worker ID and
// registry entry; the units coordinate only through the storage lock.
func StartPool(ctx context.Context, count int, store *storage.Store, qm *queue.Manager, cfg *config.Store, logger *Logger) error {
	if count < 1 {
		count = 1
	}

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < count; i++ {
		w := New(store, qm, cfg, logger)
		g.Go(func() error {
			return w.Run(ctx)
		})
	}
	return g.Wait()
}
