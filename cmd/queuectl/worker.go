package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/queuectl/queuectl/internal/config"
	"github.com/queuectl/queuectl/internal/queue"
	"github.com/queuectl/queuectl/internal/storage"
	"github.com/queuectl/queuectl/internal/worker"
)

func newWorkerCmd(store *storage.Store, qm *queue.Manager, cfg *config.Store) *cobra.Command {
	workerCmd := &cobra.Command{
		Use:   "worker",
		Short: "Manage worker processes",
	}

	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start one or more worker units, running until stopped",
		RunE: func(cmd *cobra.Command, args []string) error {
			count, _ := cmd.Flags().GetInt("count")

			if pruned, err := worker.PruneStale(store); err == nil && pruned > 0 {
				fmt.Printf("Pruned %d stale worker registration(s)\n", pruned)
			}

			logFile, err := worker.OpenLogFile(store.DataDir())
			if err != nil {
				return err
			}
			defer logFile.Close()
			logger := worker.NewLogger(
				io.MultiWriter(os.Stderr, logFile),
				worker.ParseLogLevel(cfg.LogLevel()),
			)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			fmt.Printf("Starting %d worker(s). Press Ctrl+C to shut down gracefully.\n", count)
			if err := worker.StartPool(ctx, count, store, qm, cfg, logger); err != nil {
				return err
			}
			fmt.Println("All workers have shut down.")
			return nil
		},
	}
	startCmd.Flags().Int("count", 1, "Number of workers to start")

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Signal all running workers to shut down gracefully",
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := worker.StopAll(store)
			if err != nil {
				return err
			}
			if n == 0 {
				fmt.Println("No workers are currently running")
				return nil
			}
			fmt.Printf("Signalled %d worker(s) to stop\n", n)
			return nil
		},
	}

	workerCmd.AddCommand(startCmd, stopCmd)
	return workerCmd
}
