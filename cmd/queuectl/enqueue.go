package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/queuectl/queuectl/internal/queue"
)

type enqueueSpec struct {
	ID         string `json:"id"`
	Command    string `json:"command"`
	MaxRetries *int   `json:"max_retries"`
}

func newEnqueueCmd(qm *queue.Manager) *cobra.Command {
	return &cobra.Command{
		Use:   "enqueue <job-json>",
		Short: "Add a job to the queue",
		Long: `Add a job to the queue.

Example: queuectl enqueue '{"id":"job1","command":"sleep 2"}'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dec := json.NewDecoder(strings.NewReader(args[0]))
			dec.DisallowUnknownFields()

			var spec enqueueSpec
			if err := dec.Decode(&spec); err != nil {
				return fmt.Errorf("invalid job JSON: %v", err)
			}

			job, err := qm.Enqueue(spec.Command, spec.ID, spec.MaxRetries)
			if err != nil {
				return err
			}

			fmt.Printf("Job enqueued: %s\n", job.ID)
			data, err := json.MarshalIndent(job, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		},
	}
}
