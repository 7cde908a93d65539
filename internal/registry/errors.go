package registry

import "errors"

// Sentinel errors returned by Registry implementations. Callers should use
// errors.Is for comparison, mirroring the teacher's repositories.ErrNotFound
// convention.
var (
	// ErrNotFound is returned when the requested job id does not exist.
	ErrNotFound = errors.New("registry: job not found")

	// ErrConflict is returned by Insert when the id already exists
	// (invariant 1: id is unique).
	ErrConflict = errors.New("registry: job id already exists")
)
