package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/queuectl/queuectl/internal/queue"
)

func newDLQCmd(qm *queue.Manager) *cobra.Command {
	dlqCmd := &cobra.Command{
		Use:   "dlq",
		Short: "Manage the dead letter queue",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs in the dead letter queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			jobs, err := qm.DLQList()
			if err != nil {
				return err
			}
			if len(jobs) == 0 {
				fmt.Println("Dead letter queue is empty")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tATTEMPTS\tCOMMAND\tLAST ERROR")
			for _, j := range jobs {
				lastErr := ""
				if j.LastError != nil {
					lastErr = clip(*j.LastError, 60)
				}
				fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", j.ID, j.Attempts, clip(j.Command, 40), lastErr)
			}
			return w.Flush()
		},
	}

	retryCmd := &cobra.Command{
		Use:   "retry <job-id>",
		Short: "Reset a dead job to pending for another run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := qm.DLQRetry(args[0]); err != nil {
				return err
			}
			fmt.Printf("Job %s moved back to pending\n", args[0])
			return nil
		},
	}

	dlqCmd.AddCommand(listCmd, retryCmd)
	return dlqCmd
}
