// Package export renders a sheet snapshot into an external spreadsheet
// backend.
package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ryanbastic/go-sheetstore/internal/circuitbreaker"
	"github.com/ryanbastic/go-sheetstore/internal/sheet"
)

var (
	// ErrUnsupportedProvider is returned for provider tags with no renderer.
	ErrUnsupportedProvider = errors.New("unsupported provider")

	// ErrMissingCredentials is returned by providers that need caller
	// credentials when none were supplied.
	ErrMissingCredentials = errors.New("missing provider credentials")

	// ErrUnrenderable wraps request content the target cannot hold, such
	// as a cell outside its grid. Retrying the same request cannot succeed.
	ErrUnrenderable = errors.New("content cannot be rendered")
)

// Cell is one non-empty value to render.
type Cell struct {
	Column int
	Row    int
	Type   string
	Value  string
}

// Credentials are passed through from the caller to providers that act on
// the caller's behalf. Providers that need none ignore them.
type Credentials struct {
	AccessToken  string `json:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// Request describes one snapshot to render.
type Request struct {
	SnapshotID  uuid.UUID
	Title       string
	Cells       []Cell
	Formats     []sheet.Format
	Credentials Credentials
}

// Artifact identifies what a provider produced: a file key, a document id.
type Artifact struct {
	ID  string
	URL string
}

// Provider renders a Request into one backend.
type Provider interface {
	Name() string
	Render(ctx context.Context, req Request) (Artifact, error)
}

type guarded struct {
	provider Provider
	breaker  *circuitbreaker.Breaker
}

// Registry dispatches renders by provider tag. Each provider runs behind its
// own circuit breaker and under a per-call timeout.
type Registry struct {
	mu           sync.RWMutex
	providers    map[string]guarded
	timeout      time.Duration
	maxFailures  int
	resetTimeout time.Duration
	logger       *slog.Logger
}

// NewRegistry creates an empty registry. timeout bounds each Render call;
// maxFailures and resetTimeout configure the breakers.
func NewRegistry(timeout time.Duration, maxFailures int, resetTimeout time.Duration, logger *slog.Logger) *Registry {
	return &Registry{
		providers:    make(map[string]guarded),
		timeout:      timeout,
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
		logger:       logger,
	}
}

// countsAsFailure keeps caller mistakes and cancellations from tripping the
// breaker of a healthy backend.
func countsAsFailure(err error) bool {
	return !errors.Is(err, ErrMissingCredentials) &&
		!errors.Is(err, ErrUnrenderable) &&
		!errors.Is(err, context.Canceled)
}

// Register adds or replaces a provider under p.Name().
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = guarded{
		provider: p,
		breaker: circuitbreaker.New(r.maxFailures, r.resetTimeout,
			circuitbreaker.WithFailurePredicate(countsAsFailure)),
	}
}

// Names lists registered provider tags in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Supports reports whether name has a registered provider.
func (r *Registry) Supports(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.providers[name]
	return ok
}

// BreakerState reports the breaker state of a provider.
func (r *Registry) BreakerState(name string) (circuitbreaker.State, bool) {
	r.mu.RLock()
	g, ok := r.providers[name]
	r.mu.RUnlock()
	if !ok {
		return circuitbreaker.Closed, false
	}
	return g.breaker.GetState(), true
}

// Render runs the named provider. It does not retry.
func (r *Registry) Render(ctx context.Context, name string, req Request) (Artifact, error) {
	r.mu.RLock()
	g, ok := r.providers[name]
	r.mu.RUnlock()
	if !ok {
		return Artifact{}, fmt.Errorf("%q: %w", name, ErrUnsupportedProvider)
	}

	var art Artifact
	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		if r.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, r.timeout)
			defer cancel()
		}
		var err error
		art, err = g.provider.Render(ctx, req)
		return err
	})
	if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
		r.logger.Warn("export provider unavailable", "provider", name, "snapshot_id", req.SnapshotID)
	}
	return art, err
}
