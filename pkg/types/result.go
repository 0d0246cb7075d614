package types

import "time"

// TaskStatus is the terminal state of one handover.
type TaskStatus string

const (
	StatusCompleted TaskStatus = "completed"
	StatusFailed    TaskStatus = "failed"
	StatusPending   TaskStatus = "pending"
)

// TaskResult is produced by one handover once the child process has exited.
// A nonzero exit is represented here as StatusFailed, not as a Go error.
type TaskResult struct {
	TaskID        string        `json:"task_id" yaml:"task_id"`
	Status        TaskStatus    `json:"status" yaml:"status"`
	Output        string        `json:"output,omitempty" yaml:"output,omitempty"`
	Artifacts     []string      `json:"artifacts,omitempty" yaml:"artifacts,omitempty"`
	ExecutionTime time.Duration `json:"execution_time" yaml:"execution_time"`
	Error         string        `json:"error,omitempty" yaml:"error,omitempty"`
}
