package model

// WorkerInfo is one entry in the worker registry. A worker registers itself
// on start and deregisters on clean exit; `worker stop` flips Running to
// false before signalling the process.
type WorkerInfo struct {
	WorkerID  string `yaml:"worker_id" json:"worker_id"`
	PID       int    `yaml:"pid" json:"pid"`
	StartedAt string `yaml:"started_at" json:"started_at"`
	Running   bool   `yaml:"running" json:"running"`
}
