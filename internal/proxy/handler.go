// Package proxy implements the slave's single websocket-upgrading endpoint
// (spec.md §4.6). Unlike the teacher's internal/websocket package — a
// pub/sub Hub broadcasting to many subscribers — this is a point-to-point
// relay: one inbound connection mapped to exactly one outbound connection
// resolved from the registry, so the Hub/Client broadcast shape does not
// fit and is not reused; the upgrade mechanics (upgrader construction,
// gorilla/websocket) are what's carried over.
package proxy

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/vizsched/vizsched/internal/registry"
)

const (
	// maxMessageSize is the maximum frame size accepted on either side of
	// the relay — spec.md §4.6: "both sides configured with the same
	// maximum message size ≈ 2 GiB".
	maxMessageSize = 2 << 30

	// dialTimeout bounds the outbound handshake to the backend — spec.md
	// §5 doesn't mandate a figure but recommends "a reasonable connect and
	// read timeout on outbound HTTP/WS".
	dialTimeout = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Handler resolves a job id to a backend host via the registry and relays
// websocket frames between the caller and that backend.
type Handler struct {
	Registry     registry.Registry
	Logger       *zap.Logger
	Metrics      *Metrics
	RendererPort int
	BackendPort  int
}

// Healthz always returns 200 (spec.md §6).
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// Serve implements GET /{job_id}/{service}.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	if jobID == "" {
		http.Error(w, "missing job_id", http.StatusBadRequest)
		return
	}

	service := chi.URLParam(r, "service")
	var port int
	switch service {
	case "renderer":
		port = h.RendererPort
	case "backend":
		port = h.BackendPort
	default:
		http.Error(w, "unknown service", http.StatusBadRequest)
		return
	}

	row, err := h.Registry.FetchByID(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			h.Metrics.connectionsFailed.WithLabelValues("not_found").Inc()
			http.Error(w, "job not found", http.StatusNotFound)
			return
		}
		h.Metrics.connectionsFailed.WithLabelValues("registry_error").Inc()
		h.Logger.Error("proxy fetch job row failed", zap.Error(err), zap.String("job_id", jobID))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if row.Host == "" {
		h.Metrics.connectionsFailed.WithLabelValues("not_ready").Inc()
		http.Error(w, "job not ready", http.StatusNotFound)
		return
	}

	backendURL := "ws://" + row.Host + ":" + strconv.Itoa(port)

	dialCtx, cancel := context.WithTimeout(r.Context(), dialTimeout)
	defer cancel()

	dialer := websocket.Dialer{HandshakeTimeout: dialTimeout}
	backendConn, _, err := dialer.DialContext(dialCtx, backendURL, nil)
	if err != nil {
		h.Metrics.connectionsFailed.WithLabelValues("dial_error").Inc()
		h.Logger.Error("proxy dial backend failed", zap.Error(err), zap.String("job_id", jobID), zap.String("url", backendURL))
		http.Error(w, "backend unreachable", http.StatusInternalServerError)
		return
	}
	defer backendConn.Close()
	backendConn.SetReadLimit(maxMessageSize)

	inboundConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.Metrics.connectionsFailed.WithLabelValues("upgrade_error").Inc()
		h.Logger.Warn("proxy upgrade failed", zap.Error(err), zap.String("job_id", jobID))
		return
	}
	defer inboundConn.Close()
	inboundConn.SetReadLimit(maxMessageSize)

	h.Metrics.connectionsOpened.Inc()
	if err := Relay(inboundConn, backendConn); err != nil {
		h.Logger.Debug("proxy relay ended", zap.Error(err), zap.String("job_id", jobID))
	}
}
