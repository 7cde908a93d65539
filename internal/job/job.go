// Package job defines the Job type shared by the registry backends (which
// persist it), the scheduler and the proxy, in a package of its own so that
// none of them has to import another for it.
package job

import "time"

// SandboxUser is substituted for the caller's identity on insert when the
// identity provider is disabled (spec: authenticator resolves to no user id).
const SandboxUser = "SANDBOX_USER"

// Job is the central registry entity. ID is allocator-issued (or a
// generated UUID for variants that don't mint their own) — always an
// opaque string, never a database-native type.
type Job struct {
	ID        string
	User      string
	StartTime time.Time
	EndTime   time.Time
	Host      string
}

// Ready reports whether the job has an assigned backend host.
func (j Job) Ready() bool { return j.Host != "" }

// Details is a transient read-model of a job's allocator-side state, with
// the same fields as allocator.JobDetails (which is what Allocator
// implementations return). EndTime and Host are both optional — a zero
// EndTime means "fall back to the registry row's end_time"; an empty Host
// means "not yet reachable".
type Details struct {
	EndTime time.Time
	Host    string
}

// Ready reports whether the allocator considers the backend reachable.
func (d Details) Ready() bool { return d.Host != "" }
