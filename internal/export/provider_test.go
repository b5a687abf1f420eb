package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ryanbastic/go-sheetstore/internal/circuitbreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	name  string
	calls atomic.Int32
	fn    func(ctx context.Context, req Request) (Artifact, error)
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) Render(ctx context.Context, req Request) (Artifact, error) {
	p.calls.Add(1)
	return p.fn(ctx, req)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRegistry_DispatchesByName(t *testing.T) {
	r := NewRegistry(time.Second, 3, time.Minute, discardLogger())
	p := &stubProvider{name: "excel", fn: func(_ context.Context, req Request) (Artifact, error) {
		return Artifact{ID: "id-" + req.Title, URL: "u"}, nil
	}}
	r.Register(p)

	art, err := r.Render(context.Background(), "excel", Request{Title: "t"})
	require.NoError(t, err)
	assert.Equal(t, Artifact{ID: "id-t", URL: "u"}, art)
	assert.True(t, r.Supports("excel"))
	assert.Equal(t, []string{"excel"}, r.Names())
}

func TestRegistry_UnsupportedProvider(t *testing.T) {
	r := NewRegistry(time.Second, 3, time.Minute, discardLogger())
	for _, name := range []string{"hancel", "word", ""} {
		_, err := r.Render(context.Background(), name, Request{})
		assert.ErrorIs(t, err, ErrUnsupportedProvider, name)
		assert.False(t, r.Supports(name))
	}
}

func TestRegistry_TimeoutBoundsProvider(t *testing.T) {
	r := NewRegistry(20*time.Millisecond, 3, time.Minute, discardLogger())
	r.Register(&stubProvider{name: "slow", fn: func(ctx context.Context, _ Request) (Artifact, error) {
		<-ctx.Done()
		return Artifact{}, ctx.Err()
	}})

	start := time.Now()
	_, err := r.Render(context.Background(), "slow", Request{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestRegistry_BreakerOpensOnRepeatedFailures(t *testing.T) {
	r := NewRegistry(time.Second, 2, time.Hour, discardLogger())
	boom := errors.New("backend down")
	p := &stubProvider{name: "flaky", fn: func(context.Context, Request) (Artifact, error) {
		return Artifact{}, boom
	}}
	r.Register(p)

	for i := 0; i < 2; i++ {
		_, err := r.Render(context.Background(), "flaky", Request{})
		assert.ErrorIs(t, err, boom)
	}
	state, ok := r.BreakerState("flaky")
	require.True(t, ok)
	assert.Equal(t, circuitbreaker.Open, state)

	_, err := r.Render(context.Background(), "flaky", Request{})
	assert.ErrorIs(t, err, circuitbreaker.ErrCircuitOpen)
	assert.Equal(t, int32(2), p.calls.Load(), "open breaker must not call the provider")
}

func TestRegistry_MissingCredentialsDoNotTripBreaker(t *testing.T) {
	r := NewRegistry(time.Second, 1, time.Hour, discardLogger())
	r.Register(&stubProvider{name: "google_sheets", fn: func(context.Context, Request) (Artifact, error) {
		return Artifact{}, ErrMissingCredentials
	}})

	for i := 0; i < 3; i++ {
		_, err := r.Render(context.Background(), "google_sheets", Request{})
		assert.ErrorIs(t, err, ErrMissingCredentials)
	}
	state, _ := r.BreakerState("google_sheets")
	assert.Equal(t, circuitbreaker.Closed, state)
}

func TestRegistry_UnrenderableContentDoesNotTripBreaker(t *testing.T) {
	r := NewRegistry(time.Second, 2, time.Hour, discardLogger())
	r.Register(&stubProvider{name: "excel", fn: func(_ context.Context, req Request) (Artifact, error) {
		if req.Title == "bad" {
			return Artifact{}, fmt.Errorf("cell 20000,1: %w", ErrUnrenderable)
		}
		return Artifact{ID: "ok"}, nil
	}})

	for i := 0; i < 5; i++ {
		_, err := r.Render(context.Background(), "excel", Request{Title: "bad"})
		assert.ErrorIs(t, err, ErrUnrenderable)
	}
	state, _ := r.BreakerState("excel")
	assert.Equal(t, circuitbreaker.Closed, state)

	art, err := r.Render(context.Background(), "excel", Request{Title: "good"})
	require.NoError(t, err)
	assert.Equal(t, "ok", art.ID)
}

func TestRegistry_BreakerStateUnknownProvider(t *testing.T) {
	r := NewRegistry(time.Second, 1, time.Hour, discardLogger())
	_, ok := r.BreakerState("nope")
	assert.False(t, ok)
}
