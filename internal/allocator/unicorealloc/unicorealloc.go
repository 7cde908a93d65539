// Package unicorealloc implements the job-submission allocator variant
// (spec.md §4.2.2), submitting named use-case templates to a UNICORE-style
// REST job service. The job-submission and job-details calls are wrapped in
// the same cenkalti/backoff/v4 exponential-backoff policy used by
// internal/authn's Remote authenticator; the stdout fetch is made once,
// without retry. There is no close teacher analogue for this call shape
// (see DESIGN.md), so the retry idiom is what's carried over.
package unicorealloc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/vizsched/vizsched/internal/allocator"
)

// Config holds the per-allocator network parameters spec.md §6 enumerates
// for the UNICORE variant.
type Config struct {
	BaseURL    string
	DNSSuffix  string
	UseCases   map[string]UseCase
	HTTPClient *http.Client
	Backoff    BackoffConfig
}

// BackoffConfig configures the retry policy wrapping each outbound call.
type BackoffConfig struct {
	MaxElapsedTime  time.Duration
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
}

// DefaultBackoffConfig returns reasonable defaults for a same-datacenter
// UNICORE gateway.
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		MaxElapsedTime:  10 * time.Second,
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     2 * time.Second,
		Multiplier:      2.0,
	}
}

// Allocator is the job-submission Allocator variant. DestroyJob is
// unsupported — callers get allocator.ErrUnsupported (spec.md §9).
type Allocator struct {
	cfg        Config
	hostRegexp *regexp.Regexp
}

// New constructs an Allocator. UseCases defaults to DefaultUseCases if nil.
func New(cfg Config) *Allocator {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	if cfg.UseCases == nil {
		cfg.UseCases = DefaultUseCases()
	}
	if cfg.Backoff == (BackoffConfig{}) {
		cfg.Backoff = DefaultBackoffConfig()
	}
	pattern := fmt.Sprintf(`[A-Za-z0-9_]*\.%s`, regexp.QuoteMeta(cfg.DNSSuffix))
	return &Allocator{cfg: cfg, hostRegexp: regexp.MustCompile(pattern)}
}

func (a *Allocator) backoffPolicy(ctx context.Context) backoff.BackOff {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = a.cfg.Backoff.InitialInterval
	expo.MaxInterval = a.cfg.Backoff.MaxInterval
	expo.MaxElapsedTime = a.cfg.Backoff.MaxElapsedTime
	expo.Multiplier = a.cfg.Backoff.Multiplier
	return backoff.WithContext(expo, ctx)
}

// CreateJob looks up the named use case and POSTs its template as JSON to
// /jobs. HTTP >= 400 is allocator.ErrAllocationFailed. The job id is the
// last path segment of the returned Location header.
func (a *Allocator) CreateJob(ctx context.Context, token string, payload allocator.CreateJobPayload) (string, error) {
	useCase, ok := a.cfg.UseCases[payload.UseCase]
	if !ok {
		return "", fmt.Errorf("%w: unknown usecase %q", allocator.ErrAllocationFailed, payload.UseCase)
	}

	body, err := json.Marshal(useCase.Template)
	if err != nil {
		return "", fmt.Errorf("%w: marshal template: %v", allocator.ErrAllocationFailed, err)
	}

	var location string
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.BaseURL+"/jobs", bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("%w: build request: %v", allocator.ErrAllocationFailed, err))
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", token)

		resp, err := a.cfg.HTTPClient.Do(req)
		if err != nil {
			return fmt.Errorf("submit job: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= http.StatusBadRequest {
			return backoff.Permanent(fmt.Errorf("%w: status %d", allocator.ErrAllocationFailed, resp.StatusCode))
		}

		location = resp.Header.Get("Location")
		if location == "" {
			return backoff.Permanent(fmt.Errorf("%w: response missing Location header", allocator.ErrAllocationFailed))
		}
		return nil
	}

	if err := backoff.Retry(op, a.backoffPolicy(ctx)); err != nil {
		return "", err
	}

	segments := strings.Split(strings.TrimRight(location, "/"), "/")
	return segments[len(segments)-1], nil
}

// DestroyJob is not supported by this variant (spec.md §4.2.2, §9) and
// sends no request. The stop handler translates ErrUnsupported into a 400;
// the reaper logs it and leaves the row in place.
func (a *Allocator) DestroyJob(_ context.Context, _ string) error {
	return allocator.ErrUnsupported
}

type jobDetailsResponse struct {
	JobState string `json:"JobState"`
	EndTime  string `json:"EndTime"`
}

// GetJobDetails GETs /jobs/{id}/details. A missing or non-RUNNING JobState
// returns empty details (not ready, per spec.md §4.2.2). Otherwise it reads
// stdout from the job's storage and extracts the backend hostname.
func (a *Allocator) GetJobDetails(ctx context.Context, token, jobID string) (allocator.JobDetails, error) {
	var details jobDetailsResponse
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.cfg.BaseURL+"/jobs/"+jobID+"/details", nil)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("%w: build request: %v", allocator.ErrInternal, err))
		}
		req.Header.Set("Authorization", token)

		resp, err := a.cfg.HTTPClient.Do(req)
		if err != nil {
			return fmt.Errorf("get job details: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			return backoff.Permanent(fmt.Errorf("%w: %s", allocator.ErrJobNotFound, jobID))
		}
		if resp.StatusCode >= http.StatusBadRequest {
			return backoff.Permanent(fmt.Errorf("%w: status %d", allocator.ErrInternal, resp.StatusCode))
		}
		if err := json.NewDecoder(resp.Body).Decode(&details); err != nil {
			return backoff.Permanent(fmt.Errorf("%w: decode job details: %v", allocator.ErrInternal, err))
		}
		return nil
	}

	if err := backoff.Retry(op, a.backoffPolicy(ctx)); err != nil {
		return allocator.JobDetails{}, err
	}

	if details.JobState == "" || details.JobState != "RUNNING" {
		return allocator.JobDetails{}, nil
	}

	var endTime time.Time
	if details.EndTime != "" {
		endTime, _ = time.Parse(time.RFC3339, details.EndTime)
	}

	host, err := a.fetchHostname(ctx, token, jobID)
	if err != nil {
		return allocator.JobDetails{}, err
	}

	return allocator.JobDetails{EndTime: endTime, Host: host}, nil
}

// fetchHostname reads the job's stdout from uspace storage and extracts the
// backend hostname from the first HOSTNAME line that matches the configured
// DNS suffix. A 404 is allocator.ErrJobNotFound (spec.md §4.2.2). The
// stdout line is trimmed of trailing whitespace/CR before matching, since
// it is fetched over HTTP and may carry CRLF line endings that would
// otherwise break a suffix-anchored match (see SPEC_FULL.md's supplemented
// features — this is an independent adaptation, not ported from
// original_source/, whose retained snapshot does no such trimming).
func (a *Allocator) fetchHostname(ctx context.Context, token, jobID string) (string, error) {
	url := fmt.Sprintf("%s/storages/%s-uspace/files/stdout", a.cfg.BaseURL, jobID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("%w: build stdout request: %v", allocator.ErrInternal, err)
	}
	req.Header.Set("Authorization", token)

	resp, err := a.cfg.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: fetch stdout: %v", allocator.ErrInternal, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", fmt.Errorf("%w: %s", allocator.ErrJobNotFound, jobID)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return "", fmt.Errorf("%w: stdout status %d", allocator.ErrInternal, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read stdout: %v", allocator.ErrInternal, err)
	}

	for _, line := range strings.Split(string(body), "\n") {
		line = strings.TrimRight(line, "\r\n \t")
		if !strings.Contains(line, "HOSTNAME") {
			continue
		}
		if m := a.hostRegexp.FindString(line); m != "" {
			return m, nil
		}
	}
	return "", nil
}

// Close closes the HTTP client's idle connections.
func (a *Allocator) Close() error {
	a.cfg.HTTPClient.CloseIdleConnections()
	return nil
}

var _ allocator.Allocator = (*Allocator)(nil)
