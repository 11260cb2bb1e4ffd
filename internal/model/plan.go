package model

import "time"

// Metadata holds standard object metadata
type Metadata struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	RunID       string `yaml:"runId,omitempty" json:"runId,omitempty"`
}

// Plan is the ordered, execution-ready set of invocations for one run
type Plan struct {
	APIVersion  string        `yaml:"apiVersion" json:"apiVersion"`
	Kind        string        `yaml:"kind" json:"kind"`
	Metadata    Metadata      `yaml:"metadata" json:"metadata"`
	Parameters  JobParameters `yaml:"parameters" json:"parameters"`
	Invocations []Invocation  `yaml:"invocations" json:"invocations"`
}

// State is the lifecycle state of a submitted invocation.
type State string

const (
	StateQueued  State = "queued"
	StateRunning State = "running"
	StateSuccess State = "success"
	StateFailed  State = "failed"
	StateUnknown State = "unknown"
)

// Terminal reports whether no further transitions are expected.
func (s State) Terminal() bool {
	return s == StateSuccess || s == StateFailed
}

// Outcome is what a drained handle reports
type Outcome struct {
	InvocationID string    `json:"invocation_id"`
	Index        int       `json:"index"`
	State        State     `json:"state"`
	ExitCode     int       `json:"exit_code"`
	SchedulerID  string    `json:"scheduler_id,omitempty"`
	Error        string    `json:"error,omitempty"`
	StartedAt    time.Time `json:"started_at"`
	EndedAt      time.Time `json:"ended_at"`
}
