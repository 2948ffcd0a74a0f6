// Package config manages queuectl's persisted tunables. Values are read
// from disk on every access so a concurrent `config set` applies to
// subsequent operations without restarting workers.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	yamlv3 "gopkg.in/yaml.v3"

	atomicyaml "github.com/queuectl/queuectl/internal/yaml"
)

const configFileName = "config.yaml"

// Known keys and their defaults. Unknown keys are stored verbatim.
const (
	KeyMaxRetries   = "max_retries"
	KeyBackoffBase  = "backoff_base"
	KeyPollInterval = "worker_poll_interval"
	KeyLogLevel     = "log_level"
)

func defaults() map[string]any {
	return map[string]any{
		KeyMaxRetries:   3,
		KeyBackoffBase:  2,
		KeyPollInterval: 1,
		KeyLogLevel:     "info",
	}
}

// Store reads and writes config.yaml under the data directory. Writes go
// through the same temp-and-rename path as the job store; reads never cache.
type Store struct {
	path string
}

func New(dataDir string) *Store {
	return &Store{path: filepath.Join(dataDir, configFileName)}
}

func (s *Store) read() (map[string]any, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := map[string]any{}
	if err := yamlv3.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", s.path, err)
	}
	return cfg, nil
}

// Get returns the stored value for key, falling back to the default.
// The second return is false when the key is neither stored nor known.
func (s *Store) Get(key string) (any, bool, error) {
	cfg, err := s.read()
	if err != nil {
		return nil, false, err
	}
	if v, ok := cfg[key]; ok {
		return v, true, nil
	}
	if v, ok := defaults()[key]; ok {
		return v, true, nil
	}
	return nil, false, nil
}

// All returns defaults overlaid with every stored value.
func (s *Store) All() (map[string]any, error) {
	cfg, err := s.read()
	if err != nil {
		return nil, err
	}
	merged := defaults()
	for k, v := range cfg {
		merged[k] = v
	}
	return merged, nil
}

// Set persists a single key. Only explicitly set keys are written; defaults
// stay implicit so future releases can change them.
func (s *Store) Set(key string, value any) error {
	cfg, err := s.read()
	if err != nil {
		return err
	}
	cfg[key] = value
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return atomicyaml.AtomicWrite(s.path, cfg)
}

// MaxRetries returns the default retry budget for jobs that do not carry
// their own max_retries.
func (s *Store) MaxRetries() int {
	if v, ok, err := s.Get(KeyMaxRetries); err == nil && ok {
		if n, ok := asInt(v); ok && n >= 0 {
			return n
		}
	}
	return 3
}

// BackoffBase returns the exponential backoff base in seconds.
func (s *Store) BackoffBase() float64 {
	if v, ok, err := s.Get(KeyBackoffBase); err == nil && ok {
		if f, ok := asFloat(v); ok && f >= 0 {
			return f
		}
	}
	return 2
}

// PollInterval returns how long an idle worker sleeps between claim
// attempts. Fractional seconds are allowed.
func (s *Store) PollInterval() time.Duration {
	if v, ok, err := s.Get(KeyPollInterval); err == nil && ok {
		if f, ok := asFloat(v); ok && f > 0 {
			return time.Duration(f * float64(time.Second))
		}
	}
	return time.Second
}

// LogLevel returns the worker logger verbosity.
func (s *Store) LogLevel() string {
	if v, ok, err := s.Get(KeyLogLevel); err == nil && ok {
		if lvl, ok := v.(string); ok && lvl != "" {
			return lvl
		}
	}
	return "info"
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
