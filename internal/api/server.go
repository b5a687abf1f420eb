package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/ryanbastic/go-sheetstore/internal/metrics"
	"github.com/ryanbastic/go-sheetstore/internal/spreadsheet"
)

// ServerOptions holds the optional parts of the HTTP surface.
type ServerOptions struct {
	// ArtifactsDir is served under /artifacts/ when set. It is where the
	// local blob store writes rendered Excel files. Artifact URLs carry a
	// random key and are the only credential needed to download them.
	ArtifactsDir string
}

// NewServer creates an HTTP server with all routes configured.
func NewServer(logger *slog.Logger, svc *spreadsheet.Service, health *HealthHandler, opts ServerOptions) http.Handler {
	mux := chi.NewRouter()

	mux.Use(RequestID)
	mux.Use(Logging(logger))
	mux.Use(Recovery(logger))
	mux.Use(metrics.Metrics)

	config := huma.DefaultConfig("Sheetstore API", "1.0.0")
	config.Info.Description = "Versioned spreadsheets with point-in-time exports."
	api := humachi.New(mux, config)

	registerSheetRoutes(api, NewSheetHandler(svc, logger))

	mux.Get("/v1/livez", health.Livez)
	mux.Get("/v1/readyz", health.Readyz)
	mux.Handle("/metrics", promhttp.Handler())

	if opts.ArtifactsDir != "" {
		files := http.StripPrefix("/artifacts/", http.FileServer(http.Dir(opts.ArtifactsDir)))
		mux.Handle("/artifacts/*", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// No directory listings.
			if strings.HasSuffix(r.URL.Path, "/") {
				http.NotFound(w, r)
				return
			}
			// The URL is the only credential for the file.
			w.Header().Set("Referrer-Policy", "no-referrer")
			w.Header().Set("Cache-Control", "private, no-store")
			w.Header().Set("X-Robots-Tag", "noindex")
			files.ServeHTTP(w, r)
		}))
	}

	return mux
}
