package authn

import "errors"

// Sentinel errors returned by Authenticator implementations. Callers should
// use errors.Is for comparison, mirroring the teacher's auth.ErrInvalidCredentials
// convention.
var (
	// ErrMissingToken is returned when the Authorization header is absent.
	ErrMissingToken = errors.New("authn: missing authorization header")

	// ErrUnauthorized is returned when the identity provider rejects the
	// token outright (non-200 response).
	ErrUnauthorized = errors.New("authn: token rejected by identity provider")

	// ErrInternal wraps transport failures and malformed identity-provider
	// responses — these are server-side problems, not bad credentials.
	ErrInternal = errors.New("authn: identity provider call failed")
)
