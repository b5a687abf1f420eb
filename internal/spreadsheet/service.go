// Package spreadsheet implements the versioned sheet aggregate: creation,
// owner-checked reads, metadata and cell writes, listing, formats and
// exports of historical snapshots.
package spreadsheet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/ryanbastic/go-sheetstore/internal/cell"
	"github.com/ryanbastic/go-sheetstore/internal/export"
	"github.com/ryanbastic/go-sheetstore/internal/sheet"
	"github.com/ryanbastic/go-sheetstore/internal/storage"
)

const (
	defaultConcurrency = 8
	defaultAttempts    = 3
)

// Renderer renders export requests by provider tag. *export.Registry
// satisfies it.
type Renderer interface {
	Supports(name string) bool
	Render(ctx context.Context, name string, req export.Request) (export.Artifact, error)
}

// ExportNotifier is told about every recorded export. *notify.Notifier
// satisfies it.
type ExportNotifier interface {
	ExportCreated(sheetID, ownerID string, e sheet.Export)
}

type Option func(*Service)

// WithClock replaces the time source. Timestamps are always stored in UTC
// at microsecond precision.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithConcurrency bounds how many cells of one InsertCells call are
// written at the same time.
func WithConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithAttempts sets how many times a compare-and-append is tried before a
// conflict is reported.
func WithAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.attempts = n
		}
	}
}

func WithNotifier(n ExportNotifier) Option {
	return func(s *Service) { s.notifier = n }
}

// Service is the sheet aggregate. It holds no sheet state between calls.
type Service struct {
	store       storage.Store
	renderer    Renderer
	notifier    ExportNotifier
	logger      *slog.Logger
	now         func() time.Time
	concurrency int
	attempts    int
}

func NewService(store storage.Store, renderer Renderer, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		store:       store,
		renderer:    renderer,
		logger:      logger,
		now:         time.Now,
		concurrency: defaultConcurrency,
		attempts:    defaultAttempts,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

func later(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}

// after returns t when it is strictly after floor and the next microsecond
// after floor otherwise. A new snapshot never ties or precedes the one it
// follows, whatever the clock does.
func after(t, floor time.Time) time.Time {
	if t.After(floor) {
		return t
	}
	return floor.Add(time.Microsecond)
}

// authorize loads a live sheet and checks the caller against its owner.
func (s *Service) authorize(ctx context.Context, owner sheet.Owner, id uuid.UUID) (*storage.SheetRecord, error) {
	if err := validateOwner(owner); err != nil {
		return nil, err
	}
	rec, err := s.store.GetSheet(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, notFound("sheet", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get sheet %s: %w", id, err)
	}
	if rec.DeletedAt != nil {
		return nil, notFound("sheet", id)
	}
	if !owner.Matches(rec.OwnerID, rec.SecretDigest) {
		return nil, fmt.Errorf("sheet %s: %w", id, ErrForbidden)
	}
	return rec, nil
}

// Create stores a new sheet with its first metadata snapshot and initial
// cells, all stamped with one timestamp.
func (s *Service) Create(ctx context.Context, owner sheet.Owner, meta sheet.Metadata, cells []cell.Write) (*sheet.Sheet, error) {
	if err := validateOwner(owner); err != nil {
		return nil, err
	}
	if err := validateStruct("", meta); err != nil {
		return nil, err
	}
	if err := validateWrites(cells); err != nil {
		return nil, err
	}
	for i, w := range cells {
		if w.Cleared() {
			return nil, invalid(fmt.Sprintf("cells[%d].value", i), "first value of a cell cannot be null")
		}
	}

	now := s.timestamp()
	id := uuid.New()
	ns := storage.NewSheet{
		Record: storage.SheetRecord{
			ID:           id,
			OwnerID:      owner.ID,
			SecretDigest: owner.SecretDigest(),
			CreatedAt:    now,
			Latest: sheet.Snapshot{
				ID:          uuid.New(),
				Title:       meta.Title,
				Description: meta.Description,
				CreatedAt:   now,
			},
		},
		Cells: make([]cell.Cell, len(cells)),
	}
	for i, w := range cells {
		ns.Cells[i] = newCell(id, w, now)
	}

	if err := s.store.CreateSheet(ctx, ns); err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	for range cells {
		observeOutcome(OutcomeCreated)
	}
	s.logger.Info("sheet created", "sheet_id", id, "owner_id", owner.ID, "cells", len(cells))

	return s.At(ctx, owner, id)
}

func newCell(sheetID uuid.UUID, w cell.Write, at time.Time) cell.Cell {
	return cell.Cell{
		ID:      uuid.New(),
		SheetID: sheetID,
		Column:  w.Column,
		Row:     w.Row,
		Latest: cell.Snapshot{
			ID:        uuid.New(),
			Type:      w.Type,
			Value:     w.Value,
			CreatedAt: at,
		},
		CreatedAt: at,
	}
}

// At returns the live state of a sheet: its latest metadata, every
// metadata snapshot with its exports, the latest snapshot of every cell
// and the live formats.
func (s *Service) At(ctx context.Context, owner sheet.Owner, id uuid.UUID) (*sheet.Sheet, error) {
	rec, err := s.authorize(ctx, owner, id)
	if err != nil {
		return nil, err
	}

	snaps, err := s.store.ListSheetSnapshots(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list sheet snapshots: %w", err)
	}
	cells, err := s.store.ListCells(ctx, id, storage.CellQuery{})
	if err != nil {
		return nil, fmt.Errorf("list cells: %w", err)
	}
	formats, err := s.store.ListFormats(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list formats: %w", err)
	}

	latest := rec.Latest
	for _, snap := range snaps {
		if snap.ID == latest.ID {
			latest = snap
		}
	}

	return &sheet.Sheet{
		ID:             rec.ID,
		OwnerID:        rec.OwnerID,
		CreatedAt:      rec.CreatedAt,
		Latest:         latest,
		Snapshots:      snaps,
		Cells:          cells,
		Formats:        formats,
		TotalCellCount: len(cells),
	}, nil
}

// MetadataPatch changes some of a sheet's metadata. Nil fields keep their
// current value.
type MetadataPatch struct {
	Title       *string
	Description *string
}

// UpdateMetadata appends a metadata snapshot and makes it the latest.
func (s *Service) UpdateMetadata(ctx context.Context, owner sheet.Owner, id uuid.UUID, patch MetadataPatch) (*sheet.Snapshot, error) {
	if patch.Title == nil && patch.Description == nil {
		return nil, invalid("", "nothing to update")
	}
	rec, err := s.authorize(ctx, owner, id)
	if err != nil {
		return nil, err
	}

	for attempt := 1; ; attempt++ {
		meta := rec.Latest.Metadata()
		if patch.Title != nil {
			meta.Title = *patch.Title
		}
		if patch.Description != nil {
			meta.Description = *patch.Description
		}
		if err := validateStruct("", meta); err != nil {
			return nil, err
		}

		snap := sheet.Snapshot{
			ID:          uuid.New(),
			Title:       meta.Title,
			Description: meta.Description,
			CreatedAt:   after(s.timestamp(), rec.Latest.CreatedAt),
			Exports:     []sheet.Export{},
		}
		err := s.store.AppendSheetSnapshot(ctx, id, rec.Latest.ID, snap)
		if err == nil {
			s.logger.Info("sheet metadata updated", "sheet_id", id, "snapshot_id", snap.ID)
			return &snap, nil
		}
		if !errors.Is(err, storage.ErrConflict) || attempt >= s.attempts {
			return nil, fmt.Errorf("append sheet snapshot: %w", err)
		}
		if rec, err = s.authorize(ctx, owner, id); err != nil {
			return nil, err
		}
	}
}

// Remove soft-deletes a sheet. Afterwards every call on it reports
// ErrNotFound.
func (s *Service) Remove(ctx context.Context, owner sheet.Owner, id uuid.UUID) error {
	if _, err := s.authorize(ctx, owner, id); err != nil {
		return err
	}
	err := s.store.DeleteSheet(ctx, id, s.timestamp())
	if errors.Is(err, storage.ErrNotFound) {
		return notFound("sheet", id)
	}
	if err != nil {
		return fmt.Errorf("delete sheet: %w", err)
	}
	s.logger.Info("sheet removed", "sheet_id", id)
	return nil
}

// Exports lists the live exports of every snapshot of a sheet.
func (s *Service) Exports(ctx context.Context, owner sheet.Owner, id uuid.UUID) ([]sheet.Export, error) {
	if _, err := s.authorize(ctx, owner, id); err != nil {
		return nil, err
	}
	exports, err := s.store.ListExports(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list exports: %w", err)
	}
	return exports, nil
}

// CellHistory returns one cell with every snapshot it ever had.
func (s *Service) CellHistory(ctx context.Context, owner sheet.Owner, id uuid.UUID, pos cell.Position) (*cell.Cell, error) {
	if err := validateStruct("", pos); err != nil {
		return nil, err
	}
	if _, err := s.authorize(ctx, owner, id); err != nil {
		return nil, err
	}
	c, err := s.store.GetCell(ctx, id, pos)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, notFound("cell", fmt.Sprintf("(%d,%d)", pos.Column, pos.Row))
	}
	if err != nil {
		return nil, fmt.Errorf("get cell: %w", err)
	}
	if c.Snapshots, err = s.store.ListCellSnapshots(ctx, c.ID); err != nil {
		return nil, fmt.Errorf("list cell snapshots: %w", err)
	}
	return c, nil
}

// FormatInput styles ranges of a sheet. Nil style fields are left unset.
type FormatInput struct {
	FontName        *string       `json:"font_name" validate:"omitempty,max=64"`
	FontSize        *float64      `json:"font_size" validate:"omitempty,gt=0,max=409"`
	BackgroundColor *string       `json:"background_color" validate:"omitempty,hexcolor"`
	TextAlignment   *string       `json:"text_alignment" validate:"omitempty,oneof=left center right justify"`
	Ranges          []sheet.Range `json:"ranges" validate:"min=1,dive"`
}

func (s *Service) AddFormat(ctx context.Context, owner sheet.Owner, id uuid.UUID, in FormatInput) (*sheet.Format, error) {
	if err := validateStruct("", in); err != nil {
		return nil, err
	}
	if _, err := s.authorize(ctx, owner, id); err != nil {
		return nil, err
	}
	f := sheet.Format{
		ID:              uuid.New(),
		SheetID:         id,
		FontName:        in.FontName,
		FontSize:        in.FontSize,
		BackgroundColor: in.BackgroundColor,
		TextAlignment:   in.TextAlignment,
		Ranges:          in.Ranges,
		CreatedAt:       s.timestamp(),
	}
	if err := s.store.CreateFormat(ctx, f); err != nil {
		return nil, fmt.Errorf("create format: %w", err)
	}
	return &f, nil
}

func (s *Service) RemoveFormat(ctx context.Context, owner sheet.Owner, id, formatID uuid.UUID) error {
	if _, err := s.authorize(ctx, owner, id); err != nil {
		return err
	}
	err := s.store.DeleteFormat(ctx, id, formatID, s.timestamp())
	if errors.Is(err, storage.ErrNotFound) {
		return notFound("format", formatID)
	}
	if err != nil {
		return fmt.Errorf("delete format: %w", err)
	}
	return nil
}
