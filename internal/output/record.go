// Package output provides JSONL run events for the launcher.
//
// Each line is a self-contained record envelope whose type field
// determines how to interpret the data payload.
package output

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/parallelworks/gaussian-workflow-demo/internal/model"
)

// Record type constants, following fanout.<type>.v<version>.
const (
	TypeSubmit  = "fanout.submit.v1"
	TypeOutcome = "fanout.outcome.v1"
	TypeSummary = "fanout.summary.v1"
)

// Record is the envelope for all JSONL output.
type Record struct {
	Type     string          `json:"type"`
	TS       time.Time       `json:"ts"`
	RunID    string          `json:"run_id"`
	Executor string          `json:"executor"`
	Data     json.RawMessage `json:"data"`
}

// SubmitRecord is emitted once per accepted submission.
type SubmitRecord struct {
	InvocationID string   `json:"invocation_id"`
	Index        int      `json:"index"`
	Stage        string   `json:"stage"`
	SchedulerID  string   `json:"scheduler_id,omitempty"`
	DependsOn    []string `json:"depends_on,omitempty"`
}

// OutcomeRecord is emitted when a handle is drained.
type OutcomeRecord struct {
	model.Outcome
	DurationMs int64 `json:"duration_ms"`
}

// SummaryRecord closes a run.
type SummaryRecord struct {
	Total      int    `json:"total"`
	Succeeded  int    `json:"succeeded"`
	Failed     int    `json:"failed"`
	Pending    int    `json:"pending"`
	WaitPolicy string `json:"wait_policy"`
	DurationMs int64  `json:"duration_ms"`
}

// ErrWriterClosed is returned when writing to a closed writer.
var ErrWriterClosed = errors.New("output: writer closed")

// WriteError wraps a marshal or write failure.
type WriteError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *WriteError) Error() string {
	return "output: " + e.Op + ": " + e.Err.Error()
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *WriteError) Unwrap() error {
	return e.Err
}

// NewRunID returns a fresh correlation ID for one launch.
func NewRunID() string {
	return uuid.New().String()
}
