package api

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/ryanbastic/go-sheetstore/internal/circuitbreaker"
)

// Pinger is satisfied by *pgxpool.Pool and storage.Store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// BreakerReporter exposes export provider breakers. *export.Registry
// satisfies it.
type BreakerReporter interface {
	Names() []string
	BreakerState(name string) (circuitbreaker.State, bool)
}

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	backends  map[string]Pinger
	providers BreakerReporter
	timeout   time.Duration
	logger    *slog.Logger
}

// NewHealthHandler checks backends on readiness. providers may be nil; when
// set, breaker states are reported but an open breaker does not make the
// service unready.
func NewHealthHandler(backends map[string]Pinger, providers BreakerReporter, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{backends: backends, providers: providers, timeout: 3 * time.Second, logger: logger}
}

type backendStatus struct {
	Status    string `json:"status"`
	LatencyMs int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

type readyzResponse struct {
	Status    string                   `json:"status"`
	Backends  map[string]backendStatus `json:"backends,omitempty"`
	Providers map[string]string        `json:"providers,omitempty"`
}

// Livez reports that the process can serve HTTP.
func (h *HealthHandler) Livez(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readyz pings every backend concurrently.
func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	resp := readyzResponse{Status: "ok"}
	if len(h.backends) > 0 {
		resp.Backends = h.pingAll(ctx)
	}
	if h.providers != nil {
		resp.Providers = make(map[string]string)
		for _, name := range h.providers.Names() {
			if st, ok := h.providers.BreakerState(name); ok {
				resp.Providers[name] = st.String()
			}
		}
	}

	for _, bs := range resp.Backends {
		if bs.Status != "ok" {
			resp.Status = "unavailable"
		}
	}
	if resp.Status != "ok" {
		h.logger.Warn("readiness check failed", "backends", resp.Backends)
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *HealthHandler) pingAll(ctx context.Context) map[string]backendStatus {
	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		out = make(map[string]backendStatus, len(h.backends))
	)
	for name, p := range h.backends {
		wg.Add(1)
		go func() {
			defer wg.Done()
			start := time.Now()
			err := p.Ping(ctx)
			st := backendStatus{Status: "ok", LatencyMs: time.Since(start).Milliseconds()}
			if err != nil {
				st.Status = "error"
				st.Error = err.Error()
			}
			mu.Lock()
			out[name] = st
			mu.Unlock()
		}()
	}
	wg.Wait()
	return out
}
