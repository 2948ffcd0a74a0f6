package queue

import "errors"

var (
	// ErrInvalidJob rejects malformed enqueue input: empty command,
	// negative retry budget, or a duplicate ID.
	ErrInvalidJob = errors.New("invalid job")

	// ErrNotFound covers operations on a job that does not exist or is not
	// in the state the operation requires.
	ErrNotFound = errors.New("job not found")
)
