package master

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vizsched/vizsched/internal/authn"
	"github.com/vizsched/vizsched/internal/job"
	"github.com/vizsched/vizsched/internal/registry"
	"github.com/vizsched/vizsched/internal/allocator/testalloc"
)

// fakeRegistry is a minimal in-memory registry.Registry for handler tests —
// the scheduler's own tests don't need a real database backend.
type fakeRegistry struct {
	mu   sync.Mutex
	rows map[string]job.Job
}

func newFakeRegistry() *fakeRegistry { return &fakeRegistry{rows: map[string]job.Job{}} }

func (f *fakeRegistry) EnsureSchema(context.Context) error { return nil }

func (f *fakeRegistry) Insert(_ context.Context, j job.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[j.ID]; ok {
		return registry.ErrConflict
	}
	f.rows[j.ID] = j
	return nil
}

func (f *fakeRegistry) FetchByID(_ context.Context, id string) (job.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.rows[id]
	if !ok {
		return job.Job{}, registry.ErrNotFound
	}
	return j, nil
}

func (f *fakeRegistry) ScanAll(context.Context) ([]job.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]job.Job, 0, len(f.rows))
	for _, j := range f.rows {
		out = append(out, j)
	}
	return out, nil
}

func (f *fakeRegistry) UpdateHost(_ context.Context, id, host string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.rows[id]
	if !ok {
		return registry.ErrNotFound
	}
	j.Host = host
	f.rows[id] = j
	return nil
}

func (f *fakeRegistry) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[id]; !ok {
		return registry.ErrNotFound
	}
	delete(f.rows, id)
	return nil
}

func (f *fakeRegistry) Close() error { return nil }

var _ registry.Registry = (*fakeRegistry)(nil)

// identityAuth resolves every token to its literal value as the user id —
// enough to exercise ownership checks without a real identity provider.
type identityAuth struct{}

func (identityAuth) ExtractToken(r *http.Request) (string, error) {
	h := r.Header.Get("Authorization")
	if h == "" {
		return "", authn.ErrMissingToken
	}
	return h, nil
}

func (identityAuth) Resolve(_ context.Context, token string) (string, bool, error) {
	return token, true, nil
}

func newTestRouter() (http.Handler, *fakeRegistry) {
	reg := newFakeRegistry()
	router := NewRouter(RouterConfig{
		Authenticator: identityAuth{},
		Allocator:     testalloc.New(0, "10.0.0.7"),
		Registry:      reg,
		Logger:        zap.NewNop(),
		Metrics:       NewMetrics(),
		ProxyBaseURL:  "wss://proxy.example",
		JobDuration:   time.Hour,
	})
	return router, reg
}

func doRequest(t *testing.T, router http.Handler, method, path, auth, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealthzAlwaysOK(t *testing.T) {
	router, _ := newTestRouter()
	rec := doRequest(t, router, http.MethodGet, "/healthz", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestStartCreatesRow(t *testing.T) {
	router, reg := newTestRouter()
	rec := doRequest(t, router, http.MethodPost, "/start", "alice", `{"project":"p1"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var body startResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotEmpty(t, body.JobID)

	row, err := reg.FetchByID(context.Background(), body.JobID)
	require.NoError(t, err)
	require.Equal(t, "alice", row.User)
	require.Empty(t, row.Host)
}

func TestStatusReadyPersistsHostAndJobURL(t *testing.T) {
	router, reg := newTestRouter()
	rec := doRequest(t, router, http.MethodPost, "/start", "alice", `{"project":"p1"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created startResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = doRequest(t, router, http.MethodGet, "/status/"+created.JobID, "alice", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var status statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	require.True(t, status.Ready)
	require.Equal(t, "wss://proxy.example/"+created.JobID+"/renderer", status.JobURL)

	row, err := reg.FetchByID(context.Background(), created.JobID)
	require.NoError(t, err)
	require.Equal(t, "10.0.0.7", row.Host)
}

func TestForeignStopIsUnauthorized(t *testing.T) {
	router, _ := newTestRouter()
	rec := doRequest(t, router, http.MethodPost, "/start", "alice", `{"project":"p1"}`)
	var created startResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = doRequest(t, router, http.MethodPost, "/stop/"+created.JobID, "bob", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestStopThenStatusIsNotFound(t *testing.T) {
	router, reg := newTestRouter()
	rec := doRequest(t, router, http.MethodPost, "/start", "alice", `{"project":"p1"}`)
	var created startResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = doRequest(t, router, http.MethodPost, "/stop/"+created.JobID, "alice", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, router, http.MethodGet, "/status/"+created.JobID, "alice", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	_, err := reg.FetchByID(context.Background(), created.JobID)
	require.ErrorIs(t, err, registry.ErrNotFound)
}

func TestStatusUnknownJobIsNotFound(t *testing.T) {
	router, _ := newTestRouter()
	rec := doRequest(t, router, http.MethodGet, "/status/does-not-exist", "alice", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStopMissingJobIDIs404NotRouted(t *testing.T) {
	router, _ := newTestRouter()
	rec := doRequest(t, router, http.MethodPost, "/stop/", "alice", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}
