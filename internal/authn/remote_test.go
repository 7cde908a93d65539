package authn

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func fastBackoff() BackoffConfig {
	return BackoffConfig{
		MaxElapsedTime:  500 * time.Millisecond,
		InitialInterval: 5 * time.Millisecond,
		MaxInterval:     20 * time.Millisecond,
		Multiplier:      2.0,
	}
}

func TestRemoteResolveSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer tok123", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"email":"alice@example.com"}`))
	}))
	defer srv.Close()

	r := NewRemote(srv.Client(), srv.URL, "idp.internal", time.Second, fastBackoff())
	email, ok, err := r.Resolve(context.Background(), "Bearer tok123")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "alice@example.com", email)
}

func TestRemoteResolveUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	r := NewRemote(srv.Client(), srv.URL, "idp.internal", time.Second, fastBackoff())
	_, ok, err := r.Resolve(context.Background(), "Bearer bad")
	require.False(t, ok)
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestRemoteResolveMissingEmailIsInternal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	r := NewRemote(srv.Client(), srv.URL, "idp.internal", time.Second, fastBackoff())
	_, ok, err := r.Resolve(context.Background(), "Bearer tok")
	require.False(t, ok)
	require.ErrorIs(t, err, ErrInternal)
}

func TestExtractTokenMissingHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, err := (&Remote{}).ExtractToken(req)
	require.ErrorIs(t, err, ErrMissingToken)
}

func TestDisabledResolve(t *testing.T) {
	d := NewDisabled()
	userID, ok, err := d.Resolve(context.Background(), "anything")
	require.NoError(t, err)
	require.False(t, ok)
	require.Empty(t, userID)
}
