// Package authn resolves the bearer token on an inbound request to a stable
// user id. Two implementations exist: Disabled (identity provider turned
// off, every caller is anonymous) and Remote (delegates to an external
// identity provider's user-info endpoint). The scheduler substitutes
// job.SandboxUser for inserts when Resolve reports ok=false.
package authn

import (
	"net/http"
	"strings"

	"context"
)

// Authenticator extracts and validates the bearer token on a request.
type Authenticator interface {
	// ExtractToken reads the Authorization header verbatim. A missing
	// header is ErrMissingToken.
	ExtractToken(r *http.Request) (string, error)

	// Resolve validates token and returns the caller's user id. ok=false
	// with err=nil means the identity provider is disabled — the caller
	// substitutes job.SandboxUser. Any other failure returns a non-nil err
	// (ErrUnauthorized or ErrInternal).
	Resolve(ctx context.Context, token string) (userID string, ok bool, err error)
}

// extractBearer is shared by both implementations: it reads the raw
// Authorization header value. Unlike a typical "Bearer <token>" parser, the
// identity provider treats the header's value as the opaque token itself
// (spec.md §4.1: "reads the Authorization header verbatim").
func extractBearer(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", ErrMissingToken
	}
	return strings.TrimSpace(header), nil
}
