package spreadsheet

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/ryanbastic/go-sheetstore/internal/cell"
	"github.com/ryanbastic/go-sheetstore/internal/circuitbreaker"
	"github.com/ryanbastic/go-sheetstore/internal/export"
	"github.com/ryanbastic/go-sheetstore/internal/metrics"
	"github.com/ryanbastic/go-sheetstore/internal/sheet"
	"github.com/ryanbastic/go-sheetstore/internal/storage"
)

// ExportResult is a recorded export and the artifact it points at.
type ExportResult struct {
	Export      sheet.Export `json:"export"`
	ArtifactID  string       `json:"artifact_id"`
	ArtifactURL string       `json:"artifact_url"`
}

// Export renders the cells of one sheet snapshot into provider and records
// the artifact. A cell contributes the value it had when the snapshot was
// taken; cells that were cleared or not yet written at that time are left
// out. Provider failures are returned as *ProviderError and not retried.
func (s *Service) Export(ctx context.Context, owner sheet.Owner, id, snapshotID uuid.UUID, provider string, creds export.Credentials) (*ExportResult, error) {
	rec, err := s.authorize(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	if provider == "" {
		return nil, invalid("provider", "is required")
	}
	if !s.renderer.Supports(provider) {
		return nil, invalid("provider", "unsupported provider %q", provider)
	}

	snap, err := s.store.GetSheetSnapshot(ctx, id, snapshotID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, notFound("snapshot", snapshotID)
	}
	if err != nil {
		return nil, fmt.Errorf("get sheet snapshot: %w", err)
	}

	cells, err := s.store.ListCells(ctx, id, storage.CellQuery{History: true})
	if err != nil {
		return nil, fmt.Errorf("list cells: %w", err)
	}
	formats, err := s.store.ListFormats(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list formats: %w", err)
	}

	req := export.Request{
		SnapshotID:  snap.ID,
		Title:       snap.Title,
		Cells:       CellsAsOf(cells, snap.CreatedAt),
		Formats:     formats,
		Credentials: creds,
	}

	start := time.Now()
	art, err := s.renderer.Render(ctx, provider, req)
	elapsed := time.Since(start)
	if err != nil {
		metrics.ObserveExport(provider, "error", elapsed)
		return nil, s.providerError(provider, snap.ID, err)
	}
	metrics.ObserveExport(provider, "ok", elapsed)

	e := sheet.Export{
		ID:         uuid.New(),
		SnapshotID: snap.ID,
		Provider:   provider,
		UID:        optional(art.ID),
		URL:        optional(art.URL),
		CreatedAt:  s.timestamp(),
	}
	if err := s.store.CreateExport(ctx, e); err != nil {
		return nil, fmt.Errorf("record export: %w", err)
	}
	s.logger.Info("sheet exported",
		"sheet_id", id,
		"snapshot_id", snap.ID,
		"provider", provider,
		"export_id", e.ID,
		"cells", len(req.Cells),
		"duration", elapsed,
	)

	if s.notifier != nil {
		s.notifier.ExportCreated(id.String(), rec.OwnerID, e)
	}
	return &ExportResult{Export: e, ArtifactID: art.ID, ArtifactURL: art.URL}, nil
}

func (s *Service) providerError(provider string, snapshotID uuid.UUID, err error) error {
	switch {
	case errors.Is(err, export.ErrUnsupportedProvider):
		return invalid("provider", "unsupported provider %q", provider)
	case errors.Is(err, export.ErrMissingCredentials):
		return invalid("credentials", "%s requires an access or refresh token", provider)
	case errors.Is(err, export.ErrUnrenderable):
		return invalid("cells", "%s cannot render this snapshot: %v", provider, err)
	case errors.Is(err, context.Canceled):
		return err
	}
	pe := &ProviderError{
		Provider:   provider,
		SnapshotID: snapshotID,
		Timeout:    errors.Is(err, context.DeadlineExceeded),
		Err:        err,
	}
	if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
		s.logger.Warn("export skipped, provider circuit open", "provider", provider, "snapshot_id", snapshotID)
	} else {
		s.logger.Error("export failed", "provider", provider, "snapshot_id", snapshotID, "timeout", pe.Timeout, "error", err)
	}
	return pe
}

// CellsAsOf picks, for every cell, the snapshot current at t and returns
// the non-null ones as render input. cells must carry their full history.
func CellsAsOf(cells []cell.Cell, t time.Time) []export.Cell {
	out := make([]export.Cell, 0, len(cells))
	for i := range cells {
		snap, ok := cells[i].AsOf(t)
		if !ok || snap.Value == nil {
			continue
		}
		out = append(out, export.Cell{
			Column: cells[i].Column,
			Row:    cells[i].Row,
			Type:   snap.Type,
			Value:  *snap.Value,
		})
	}
	return out
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// ImportWorkbook creates a sheet from the non-empty cells of one worksheet
// of an xlsx workbook. An empty worksheet name selects the first one; an
// empty title defaults to the worksheet name.
func (s *Service) ImportWorkbook(ctx context.Context, owner sheet.Owner, meta sheet.Metadata, r io.Reader, worksheet string) (*sheet.Sheet, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read workbook: %w", err)
	}
	names, err := export.ListWorksheets(bytes.NewReader(data))
	if err != nil {
		return nil, invalid("workbook", "not a readable xlsx workbook")
	}
	if worksheet == "" && len(names) > 0 {
		worksheet = names[0]
	}

	writes, err := export.ReadWorkbook(bytes.NewReader(data), worksheet)
	if errors.Is(err, export.ErrWorksheetNotFound) {
		return nil, invalid("worksheet", "%q not found in workbook", worksheet)
	}
	if err != nil {
		return nil, invalid("workbook", "not a readable xlsx workbook")
	}

	if meta.Title == "" {
		meta.Title = worksheet
	}
	return s.Create(ctx, owner, meta, writes)
}
