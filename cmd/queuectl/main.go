package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/queuectl/queuectl/internal/config"
	"github.com/queuectl/queuectl/internal/queue"
	"github.com/queuectl/queuectl/internal/storage"
)

func main() {
	dataDir, err := storage.DefaultDataDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	store, err := storage.New(dataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	cfg := config.New(dataDir)
	qm := queue.New(store, cfg)

	root := &cobra.Command{
		Use:          "queuectl",
		Short:        "CLI-based background job queue",
		SilenceUsage: true,
	}
	root.AddCommand(
		newEnqueueCmd(qm),
		newWorkerCmd(store, qm, cfg),
		newStatusCmd(qm),
		newListCmd(qm),
		newDLQCmd(qm),
		newConfigCmd(cfg),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
