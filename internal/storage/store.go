// Package storage persists the job set and worker registry. Every mutation
// goes through WithTransaction, a locked read-modify-write over the store
// files; ad hoc writes are not exposed.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	yamlv3 "gopkg.in/yaml.v3"

	"github.com/queuectl/queuectl/internal/lock"
	"github.com/queuectl/queuectl/internal/model"
	atomicyaml "github.com/queuectl/queuectl/internal/yaml"
)

var (
	// ErrBusy means the transaction lock was not acquired within the
	// timeout. The caller may retry.
	ErrBusy = errors.New("storage busy")

	// ErrCorrupt means a store file exists but cannot be parsed. The file
	// is left in place untouched.
	ErrCorrupt = errors.New("storage corrupt")
)

const (
	schemaVersion = 1

	jobsFileName    = "jobs.yaml"
	workersFileName = "workers.yaml"
	lockFileName    = "queue.lock"

	// DefaultLockTimeout bounds how long a transaction waits for the lock
	// before failing with ErrBusy.
	DefaultLockTimeout = 5 * time.Second
)

type jobsFile struct {
	SchemaVersion int         `yaml:"schema_version"`
	FileType      string      `yaml:"file_type"`
	Jobs          []model.Job `yaml:"jobs"`
}

type workersFile struct {
	SchemaVersion int                `yaml:"schema_version"`
	FileType      string             `yaml:"file_type"`
	Workers       []model.WorkerInfo `yaml:"workers"`
}

// State is the full persisted state handed to a transaction function. Jobs
// keep insertion order; the per-ID uniqueness invariant is the caller's to
// uphold via FindJob before AddJob.
type State struct {
	Jobs    []model.Job
	Workers []model.WorkerInfo
}

// FindJob returns a pointer into the state's job slice, or nil.
func (s *State) FindJob(id string) *model.Job {
	for i := range s.Jobs {
		if s.Jobs[i].ID == id {
			return &s.Jobs[i]
		}
	}
	return nil
}

func (s *State) AddJob(j model.Job) {
	s.Jobs = append(s.Jobs, j)
}

// JobCounts returns the number of jobs per state, with every state present.
func (s *State) JobCounts() map[model.State]int {
	counts := make(map[model.State]int, len(model.AllStates))
	for _, st := range model.AllStates {
		counts[st] = 0
	}
	for i := range s.Jobs {
		counts[s.Jobs[i].State]++
	}
	return counts
}

// Store is the durable job/worker store rooted at a data directory.
type Store struct {
	dataDir     string
	lockTimeout time.Duration
}

// DefaultDataDir resolves the queuectl data directory: $QUEUECTL_HOME if
// set, otherwise ~/.queuectl.
func DefaultDataDir() (string, error) {
	if dir := os.Getenv("QUEUECTL_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".queuectl"), nil
}

// New creates a Store rooted at dataDir, creating the directory if needed.
func New(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	return &Store{
		dataDir:     dataDir,
		lockTimeout: DefaultLockTimeout,
	}, nil
}

// SetLockTimeout overrides the transaction lock timeout (used by tests).
func (s *Store) SetLockTimeout(d time.Duration) {
	s.lockTimeout = d
}

func (s *Store) DataDir() string {
	return s.dataDir
}

// JobsPath is the jobs store file; workers watch it for wakeups.
func (s *Store) JobsPath() string {
	return filepath.Join(s.dataDir, jobsFileName)
}

func (s *Store) workersPath() string {
	return filepath.Join(s.dataDir, workersFileName)
}

func (s *Store) lockPath() string {
	return filepath.Join(s.dataDir, lockFileName)
}

// WithTransaction acquires the store lock, loads the current state, invokes
// fn with mutable access, and persists the result if fn succeeds. The lock
// is released on every exit path. A lock timeout surfaces as ErrBusy, an
// unparsable store file as ErrCorrupt; in both cases nothing is written.
func (s *Store) WithTransaction(fn func(*State) error) error {
	fl := lock.New(s.lockPath())
	if err := fl.Acquire(s.lockTimeout); err != nil {
		if errors.Is(err, lock.ErrBusy) {
			return fmt.Errorf("%w: %s not acquired within %s", ErrBusy, lockFileName, s.lockTimeout)
		}
		return err
	}
	defer func() { _ = fl.Unlock() }()

	st, err := s.load()
	if err != nil {
		return err
	}

	if err := fn(st); err != nil {
		return err
	}

	return s.persist(st)
}

// Load returns a read-only snapshot without taking the lock. Reporting
// commands use it; eventual consistency with in-flight transactions is
// acceptable there.
func (s *Store) Load() (*State, error) {
	return s.load()
}

func (s *Store) load() (*State, error) {
	st := &State{}

	if err := readYAMLFile(s.JobsPath(), func(data []byte) error {
		var jf jobsFile
		if err := yamlv3.Unmarshal(data, &jf); err != nil {
			return err
		}
		st.Jobs = jf.Jobs
		return nil
	}); err != nil {
		return nil, err
	}

	if err := readYAMLFile(s.workersPath(), func(data []byte) error {
		var wf workersFile
		if err := yamlv3.Unmarshal(data, &wf); err != nil {
			return err
		}
		st.Workers = wf.Workers
		return nil
	}); err != nil {
		return nil, err
	}

	return st, nil
}

// readYAMLFile treats a missing file as an empty store and wraps parse
// failures in ErrCorrupt without touching the file.
func readYAMLFile(path string, parse func([]byte) error) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := parse(data); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCorrupt, path, err)
	}
	return nil
}

func (s *Store) persist(st *State) error {
	jf := jobsFile{
		SchemaVersion: schemaVersion,
		FileType:      "jobs",
		Jobs:          st.Jobs,
	}
	if err := atomicyaml.AtomicWrite(s.JobsPath(), jf); err != nil {
		return fmt.Errorf("persist jobs: %w", err)
	}

	wf := workersFile{
		SchemaVersion: schemaVersion,
		FileType:      "workers",
		Workers:       st.Workers,
	}
	if err := atomicyaml.AtomicWrite(s.workersPath(), wf); err != nil {
		return fmt.Errorf("persist workers: %w", err)
	}
	return nil
}
