package allocator

import "errors"

// Sentinel errors returned by Allocator implementations. Callers should use
// errors.Is for comparison, mirroring the registry package's convention.
var (
	// ErrInvalidJobID is returned when the cluster rejects an operation
	// because the job id is malformed or unknown to it (spec.md §4.2.1's
	// "bad-request (invalid job id)"). A task ARN that breaks the 32-char
	// task-id rule is ErrInternal instead.
	ErrInvalidJobID = errors.New("allocator: invalid job id")

	// ErrAllocationFailed is returned when the cluster refuses to create a
	// job (spec.md §4.2.2: HTTP >= 400 on job submission).
	ErrAllocationFailed = errors.New("allocator: allocation failed")

	// ErrJobNotFound is returned when the cluster no longer knows about a
	// job that get_job_details was asked to describe (spec.md §4.2.2: 404
	// fetching stdout).
	ErrJobNotFound = errors.New("allocator: job not found")

	// ErrUnsupported is returned by variants that cannot perform an
	// operation at all — unicorealloc's DestroyJob (spec.md §4.2.2, §9).
	// The stop handler translates this to a clean 400; the reaper logs it
	// and skips the row.
	ErrUnsupported = errors.New("allocator: operation not supported by this variant")

	// ErrInternal wraps unexpected cluster responses that are neither a
	// clean rejection nor a recognizable not-found (e.g. a task ARN whose
	// final path segment isn't exactly 32 characters).
	ErrInternal = errors.New("allocator: internal error")
)
