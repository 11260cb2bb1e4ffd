// Package staging moves invocation inputs to the compute side and results
// back out. Locations are URLs: file:// for shared filesystems, s3:// for
// object storage.
package staging

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/parallelworks/gaussian-workflow-demo/internal/model"
)

// ErrNotFound is returned when a staging source does not exist.
var ErrNotFound = errors.New("source not found")

// Stager copies a staged file between its URL and its local path
type Stager interface {
	StageIn(ctx context.Context, f model.StagedFile) error
	StageOut(ctx context.Context, f model.StagedFile) error
}

// StagingError records which transfer failed
type StagingError struct {
	URL string
	Op  string
	Err error
}

// Error implements the error interface.
func (e *StagingError) Error() string {
	return fmt.Sprintf("staging %s %s: %v", e.Op, e.URL, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *StagingError) Unwrap() error {
	return e.Err
}

// Router dispatches transfers to a stager by URL scheme. Identical stage-ins
// run once per router, so many invocations can share one read-only input.
type Router struct {
	stagers map[string]Stager

	group singleflight.Group
	mu    sync.Mutex
	done  map[string]bool
}

// NewRouter creates a router with the local stager registered for file URLs.
func NewRouter() *Router {
	return &Router{
		stagers: map[string]Stager{"file": LocalStager{}},
		done:    make(map[string]bool),
	}
}

// Register adds or replaces the stager for a URL scheme.
func (r *Router) Register(scheme string, s Stager) *Router {
	r.stagers[scheme] = s
	return r
}

// StageIn copies f from its URL to its local path. Missing optional
// inputs are skipped.
func (r *Router) StageIn(ctx context.Context, f model.StagedFile) error {
	s, err := r.stager(f.URL, "in")
	if err != nil {
		return err
	}

	key := f.URL + "\x00" + f.LocalPath
	r.mu.Lock()
	staged := r.done[key]
	r.mu.Unlock()
	if staged {
		return nil
	}

	_, err, _ = r.group.Do(key, func() (any, error) {
		if err := s.StageIn(ctx, f); err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.done[key] = true
		r.mu.Unlock()
		return nil, nil
	})
	if err != nil && f.Optional && errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

// StageOut copies f from its local path to its URL.
func (r *Router) StageOut(ctx context.Context, f model.StagedFile) error {
	s, err := r.stager(f.URL, "out")
	if err != nil {
		return err
	}
	return s.StageOut(ctx, f)
}

func (r *Router) stager(raw, op string) (Stager, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, &StagingError{URL: raw, Op: op, Err: err}
	}
	s, ok := r.stagers[u.Scheme]
	if !ok {
		return nil, &StagingError{URL: raw, Op: op, Err: fmt.Errorf("unsupported scheme %q", u.Scheme)}
	}
	return s, nil
}
