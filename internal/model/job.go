// Package model defines the data structures for queuectl's jobs, worker
// registry, and configuration defaults.
package model

import (
	"fmt"
	"math"
	"time"
)

type State string

const (
	StatePending    State = "pending"
	StateProcessing State = "processing"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
	StateDead       State = "dead"
)

// AllStates lists every job state in reporting order.
var AllStates = []State{
	StatePending,
	StateProcessing,
	StateCompleted,
	StateFailed,
	StateDead,
}

var terminalStates = map[State]bool{
	StateCompleted: true,
	StateDead:      true,
}

// Job state transitions: pending → processing → {completed|failed};
// failed → pending (retry) or failed → dead (retries exhausted).
var validJobTransitions = map[State]map[State]bool{
	StatePending: {
		StateProcessing: true,
	},
	StateProcessing: {
		StateCompleted: true,
		StateFailed:    true,
	},
	StateFailed: {
		StatePending: true,
		StateDead:    true,
	},
}

func IsTerminal(s State) bool {
	return terminalStates[s]
}

func ValidateTransition(from, to State) error {
	if IsTerminal(from) {
		return fmt.Errorf("cannot transition from terminal state %q", from)
	}
	allowed, ok := validJobTransitions[from]
	if !ok {
		return fmt.Errorf("unknown state %q", from)
	}
	if !allowed[to] {
		return fmt.Errorf("invalid job transition: %q → %q", from, to)
	}
	return nil
}

// ParseState validates a user-supplied state name (e.g. the --state flag).
func ParseState(s string) (State, error) {
	for _, st := range AllStates {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown state %q", s)
}

// Job is a single unit of work: a shell command plus its retry bookkeeping.
// Timestamps are RFC3339 strings in UTC.
type Job struct {
	ID          string  `yaml:"id" json:"id"`
	Command     string  `yaml:"command" json:"command"`
	State       State   `yaml:"state" json:"state"`
	Attempts    int     `yaml:"attempts" json:"attempts"`
	MaxRetries  int     `yaml:"max_retries" json:"max_retries"`
	CreatedAt   string  `yaml:"created_at" json:"created_at"`
	UpdatedAt   string  `yaml:"updated_at" json:"updated_at"`
	LastError   *string `yaml:"last_error" json:"last_error,omitempty"`
	WorkerID    *string `yaml:"worker_id" json:"worker_id,omitempty"`
	Output      *string `yaml:"output,omitempty" json:"output,omitempty"`
	NextRetryAt *string `yaml:"next_retry_at,omitempty" json:"next_retry_at,omitempty"`
}

// ShouldRetry reports whether a failed job has retries left. Attempts has
// already been incremented for the failure being handled, so a job may reach
// max_retries+1 attempts before dead-lettering.
func (j *Job) ShouldRetry() bool {
	return j.Attempts <= j.MaxRetries
}

// BackoffDelay computes the retry delay after the current attempt:
// base^attempts seconds.
func (j *Job) BackoffDelay(base float64) time.Duration {
	secs := math.Pow(base, float64(j.Attempts))
	return time.Duration(secs * float64(time.Second))
}

// RetryReady reports whether the job's retry gate has passed at t.
// A failed job without a gate is ready immediately.
func (j *Job) RetryReady(t time.Time) bool {
	if j.NextRetryAt == nil {
		return true
	}
	gate, err := time.Parse(time.RFC3339, *j.NextRetryAt)
	if err != nil {
		return true
	}
	return !t.Before(gate)
}
