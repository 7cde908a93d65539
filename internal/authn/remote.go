package authn

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Remote resolves a bearer token by calling the identity provider's
// user-info endpoint. It holds a single shared *http.Client (spec.md §4.1:
// "reuses a shared outbound HTTP session") constructed once and reused for
// every Resolve call.
type Remote struct {
	client *http.Client
	url    string
	host   string
	// callTimeout bounds a single Resolve call, including retries, via
	// context. The default client built by NewRemote also carries its own
	// 10s per-request timeout.
	callTimeout time.Duration
	backoffCfg  BackoffConfig
}

// BackoffConfig configures the retry policy wrapping the identity-provider
// call, matching the shape of the teacher pack's AI-client backoff knobs.
type BackoffConfig struct {
	MaxElapsedTime  time.Duration
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
}

// DefaultBackoffConfig returns reasonable defaults for a same-datacenter
// identity provider call.
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		MaxElapsedTime:  5 * time.Second,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     1 * time.Second,
		Multiplier:      2.0,
	}
}

// NewRemote constructs a Remote authenticator. url is the full user-info
// endpoint; host is sent as the Host header (spec.md §4.1).
func NewRemote(client *http.Client, url, host string, callTimeout time.Duration, bo BackoffConfig) *Remote {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Remote{client: client, url: url, host: host, callTimeout: callTimeout, backoffCfg: bo}
}

// ExtractToken reads the Authorization header verbatim.
func (r *Remote) ExtractToken(req *http.Request) (string, error) {
	return extractBearer(req)
}

type userInfoResponse struct {
	Email string `json:"email"`
}

// Resolve performs a GET against the identity provider's user-info
// endpoint with Host and Authorization headers set, per spec.md §4.1.
// Transport failures are retried with exponential backoff; any non-200
// response is wrapped in backoff.Permanent so it fails fast as
// ErrUnauthorized instead of being retried away.
func (r *Remote) Resolve(ctx context.Context, token string) (string, bool, error) {
	callCtx, cancel := context.WithTimeout(ctx, r.callTimeout)
	defer cancel()

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = r.backoffCfg.InitialInterval
	expo.MaxInterval = r.backoffCfg.MaxInterval
	expo.MaxElapsedTime = r.backoffCfg.MaxElapsedTime
	expo.Multiplier = r.backoffCfg.Multiplier
	bo := backoff.WithContext(expo, callCtx)

	var email string
	op := func() error {
		e, err := r.doResolve(callCtx, token)
		if err != nil {
			return err
		}
		email = e
		return nil
	}

	if err := backoff.Retry(op, bo); err != nil {
		// backoff.Retry returns the error wrapped by backoff.Permanent, not
		// the *PermanentError itself.
		if errors.Is(err, errRejected) {
			return "", false, fmt.Errorf("%w: %v", ErrUnauthorized, err)
		}
		return "", false, fmt.Errorf("%w: %v", ErrInternal, err)
	}

	return email, true, nil
}

// errRejected marks a non-200 identity-provider response, distinguishing it
// from the malformed-body/transport failures that spec.md §4.1 maps to an
// internal error instead of unauthorized.
var errRejected = errors.New("identity provider rejected token")

func (r *Remote) doResolve(ctx context.Context, token string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return "", backoff.Permanent(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Authorization", token)
	if r.host != "" {
		req.Header.Set("Host", r.host)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		// Transport failure — retryable.
		return "", fmt.Errorf("identity provider request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", backoff.Permanent(fmt.Errorf("%w: status %d", errRejected, resp.StatusCode))
	}

	var body userInfoResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", backoff.Permanent(fmt.Errorf("decode user-info body: %w", err))
	}
	if body.Email == "" {
		return "", backoff.Permanent(fmt.Errorf("user-info response missing email"))
	}
	return body.Email, nil
}
