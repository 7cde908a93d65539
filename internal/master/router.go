package master

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/vizsched/vizsched/internal/allocator"
	"github.com/vizsched/vizsched/internal/authn"
	"github.com/vizsched/vizsched/internal/registry"
)

// RouterConfig holds every dependency NewRouter needs, populated in
// cmd/master/main.go once all components are constructed — the same
// single-struct constructor shape as the teacher's api.RouterConfig.
type RouterConfig struct {
	Authenticator authn.Authenticator
	Allocator     allocator.Allocator
	Registry      registry.Registry
	Logger        *zap.Logger
	Metrics       *Metrics
	ProxyBaseURL  string
	JobDuration   time.Duration
}

// NewRouter builds the fully configured chi router for cmd/master.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(cfg.Logger))
	r.Use(middleware.Recoverer)

	h := &Handler{
		Allocator:    cfg.Allocator,
		Registry:     cfg.Registry,
		Logger:       cfg.Logger,
		Metrics:      cfg.Metrics,
		ProxyBaseURL: cfg.ProxyBaseURL,
		JobDuration:  cfg.JobDuration,
	}

	r.Get("/healthz", h.Healthz)
	r.Handle("/metrics", cfg.Metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(Authenticate(cfg.Authenticator))

		r.Post("/start", h.Start)
		r.Post("/stop/{job_id}", h.Stop)
		r.Get("/status/{job_id}", h.Status)
	})

	return r
}
