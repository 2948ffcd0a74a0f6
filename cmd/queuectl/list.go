package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/queuectl/queuectl/internal/model"
	"github.com/queuectl/queuectl/internal/queue"
	"github.com/queuectl/queuectl/internal/worker"
)

func newListCmd(qm *queue.Manager) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs, optionally filtered by state",
		RunE: func(cmd *cobra.Command, args []string) error {
			stateFlag, _ := cmd.Flags().GetString("state")

			var filter *model.State
			if stateFlag != "" {
				st, err := model.ParseState(stateFlag)
				if err != nil {
					return err
				}
				filter = &st
			}

			jobs, err := qm.List(filter)
			if err != nil {
				return err
			}
			if len(jobs) == 0 {
				fmt.Println("No jobs found")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTATE\tATTEMPTS\tCOMMAND\tCREATED")
			for _, j := range jobs {
				fmt.Fprintf(w, "%s\t%s\t%d/%d\t%s\t%s\n",
					j.ID, j.State, j.Attempts, j.MaxRetries, clip(j.Command, 40), j.CreatedAt)
			}
			return w.Flush()
		},
	}
	cmd.Flags().String("state", "", "Filter jobs by state (pending, processing, completed, failed, dead)")
	return cmd
}

func newStatusCmd(qm *queue.Manager) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show job counts per state and the worker registry",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := qm.Status()
			if err != nil {
				return err
			}

			fmt.Println("Jobs:")
			for _, st := range model.AllStates {
				fmt.Printf("  %-12s %d\n", st, status.Counts[st])
			}

			fmt.Printf("\nWorkers: %d\n", len(status.Workers))
			for _, wi := range status.Workers {
				state := "dead"
				if worker.IsProcessRunning(wi.PID) {
					if wi.Running {
						state = "running"
					} else {
						state = "stopping"
					}
				}
				fmt.Printf("  %s pid=%d started=%s %s\n", wi.WorkerID, wi.PID, wi.StartedAt, state)
			}
			return nil
		},
	}
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
