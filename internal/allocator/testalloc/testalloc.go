// Package testalloc is an in-memory Allocator used for local development and
// the scheduler's own test suite (selected by VIZSCHED_ALLOCATOR=TEST).
// Jobs become ready after a configurable delay, letting tests exercise the
// ALLOCATED -> READY transition deterministically.
package testalloc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vizsched/vizsched/internal/allocator"
)

// record is the in-memory state for one job, keyed by id.
type record struct {
	host      string
	createdAt time.Time
}

// Allocator is safe for concurrent use by multiple goroutines — mirroring
// agentmanager.Manager's mutex-guarded map-of-entries shape.
//
// The zero value is not usable — create instances with New.
type Allocator struct {
	mu          sync.RWMutex
	jobs        map[string]*record
	readyAfter  time.Duration
	defaultHost string
}

// New creates an in-memory Allocator. readyAfter controls how long
// GetJobDetails reports ready=false before reporting the configured host;
// zero means "ready immediately".
func New(readyAfter time.Duration, defaultHost string) *Allocator {
	if defaultHost == "" {
		defaultHost = "127.0.0.1"
	}
	return &Allocator{
		jobs:        make(map[string]*record),
		readyAfter:  readyAfter,
		defaultHost: defaultHost,
	}
}

// CreateJob mints a uuid job id and tracks it in memory.
func (a *Allocator) CreateJob(_ context.Context, _ string, _ allocator.CreateJobPayload) (string, error) {
	id := uuid.NewString()

	a.mu.Lock()
	a.jobs[id] = &record{createdAt: time.Now()}
	a.mu.Unlock()

	return id, nil
}

// DestroyJob removes the in-memory record. Destroying an unknown id is
// ErrInvalidJobID, matching ecsalloc's StopTask-on-unknown-id behavior.
func (a *Allocator) DestroyJob(_ context.Context, jobID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.jobs[jobID]; !ok {
		return fmt.Errorf("%w: %s", allocator.ErrInvalidJobID, jobID)
	}
	delete(a.jobs, jobID)
	return nil
}

// GetJobDetails reports ready=true (with defaultHost) once readyAfter has
// elapsed since creation; until then it reports an empty host.
func (a *Allocator) GetJobDetails(_ context.Context, _, jobID string) (allocator.JobDetails, error) {
	a.mu.RLock()
	rec, ok := a.jobs[jobID]
	a.mu.RUnlock()

	if !ok {
		return allocator.JobDetails{}, fmt.Errorf("%w: %s", allocator.ErrJobNotFound, jobID)
	}

	if time.Since(rec.createdAt) < a.readyAfter {
		return allocator.JobDetails{}, nil
	}
	return allocator.JobDetails{Host: a.defaultHost}, nil
}

// Close is a no-op — there is nothing to release.
func (a *Allocator) Close() error { return nil }

var _ allocator.Allocator = (*Allocator)(nil)
