package output

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"
)

// Writer outputs JSONL records for a run.
//
// Implementations must be safe for concurrent use: deferred dependents
// submit from their own goroutines.
type Writer interface {
	WriteSubmit(ctx context.Context, rec *SubmitRecord) error
	WriteOutcome(ctx context.Context, rec *OutcomeRecord) error
	WriteSummary(ctx context.Context, rec *SummaryRecord) error
	Close() error
}

// JSONLWriter writes records as newline-delimited JSON to an io.Writer.
// Writes are serialized so lines never interleave.
type JSONLWriter struct {
	w        io.Writer
	runID    string
	executor string
	mu       sync.Mutex
	closed   bool
}

// NewJSONLWriter creates a new JSONL writer.
func NewJSONLWriter(w io.Writer, runID, executor string) *JSONLWriter {
	return &JSONLWriter{
		w:        w,
		runID:    runID,
		executor: executor,
	}
}

// WriteSubmit emits a submit record.
func (jw *JSONLWriter) WriteSubmit(ctx context.Context, rec *SubmitRecord) error {
	return jw.writeRecord(ctx, TypeSubmit, rec)
}

// WriteOutcome emits an outcome record.
func (jw *JSONLWriter) WriteOutcome(ctx context.Context, rec *OutcomeRecord) error {
	return jw.writeRecord(ctx, TypeOutcome, rec)
}

// WriteSummary emits a summary record.
func (jw *JSONLWriter) WriteSummary(ctx context.Context, rec *SummaryRecord) error {
	return jw.writeRecord(ctx, TypeSummary, rec)
}

// Close marks the writer as closed. The underlying writer is left open.
func (jw *JSONLWriter) Close() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	jw.closed = true
	return nil
}

func (jw *JSONLWriter) writeRecord(ctx context.Context, recordType string, data any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dataBytes, err := json.Marshal(data)
	if err != nil {
		return &WriteError{Op: "marshal_data", Err: err}
	}

	jw.mu.Lock()
	defer jw.mu.Unlock()

	if jw.closed {
		return ErrWriterClosed
	}

	record := Record{
		Type:     recordType,
		TS:       time.Now().UTC(),
		RunID:    jw.runID,
		Executor: jw.executor,
		Data:     dataBytes,
	}

	recordBytes, err := json.Marshal(record)
	if err != nil {
		return &WriteError{Op: "marshal_record", Err: err}
	}

	// io.Writer may report a short write with a nil error.
	recordBytes = append(recordBytes, '\n')
	if err := writeAll(jw.w, recordBytes); err != nil {
		return &WriteError{Op: "write", Err: err}
	}
	return nil
}

func writeAll(w io.Writer, p []byte) error {
	for len(p) > 0 {
		n, err := w.Write(p)
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
		p = p[n:]
	}
	return nil
}

// NopWriter discards every record.
type NopWriter struct{}

func (NopWriter) WriteSubmit(context.Context, *SubmitRecord) error   { return nil }
func (NopWriter) WriteOutcome(context.Context, *OutcomeRecord) error { return nil }
func (NopWriter) WriteSummary(context.Context, *SummaryRecord) error { return nil }
func (NopWriter) Close() error                                       { return nil }

var (
	_ Writer = (*JSONLWriter)(nil)
	_ Writer = NopWriter{}
)
