package spreadsheet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ryanbastic/go-sheetstore/internal/cell"
	"github.com/ryanbastic/go-sheetstore/internal/metrics"
	"github.com/ryanbastic/go-sheetstore/internal/sheet"
	"github.com/ryanbastic/go-sheetstore/internal/storage"
	"golang.org/x/sync/errgroup"
)

// Outcome is what InsertCells did with one requested cell.
type Outcome string

const (
	OutcomeCreated   Outcome = "created"
	OutcomeUpdated   Outcome = "updated"
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeFailed    Outcome = "failed"
)

// CellResult reports the outcome for one requested position. Err is set
// only when Outcome is OutcomeFailed.
type CellResult struct {
	cell.Position
	Outcome Outcome `json:"outcome"`
	Err     error   `json:"-"`
}

func observeOutcome(o Outcome) {
	metrics.ObserveCellWrite(string(o))
}

// InsertCells writes each requested cell: it creates missing cells, appends
// a snapshot where the content differs from the latest and skips identical
// content. Cells are written concurrently and fail independently. When at
// least one cell changed, a metadata snapshot is appended at the batch
// timestamp so the new state can be exported.
//
// An error returned together with non-nil results means the cells were
// written as the results report and only the version stamp or the reload
// of the sheet failed.
func (s *Service) InsertCells(ctx context.Context, owner sheet.Owner, id uuid.UUID, writes []cell.Write) (*sheet.Sheet, []CellResult, error) {
	if err := validateWrites(writes); err != nil {
		return nil, nil, err
	}
	rec, err := s.authorize(ctx, owner, id)
	if err != nil {
		return nil, nil, err
	}

	// Cells written now must stay out of every existing sheet snapshot.
	at := after(s.timestamp(), rec.Latest.CreatedAt)
	results := make([]CellResult, len(writes))
	stamps := make([]time.Time, len(writes))

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, w := range writes {
		g.Go(func() error {
			outcome, stamp, err := s.writeCell(ctx, id, w, at)
			results[i] = CellResult{Position: w.Position, Outcome: outcome, Err: err}
			stamps[i] = stamp
			return nil
		})
	}
	_ = g.Wait()

	changed := false
	batchAt := at
	for i, r := range results {
		observeOutcome(r.Outcome)
		switch r.Outcome {
		case OutcomeCreated, OutcomeUpdated:
			changed = true
			batchAt = later(batchAt, stamps[i])
		case OutcomeFailed:
			s.logger.Warn("cell write failed", "sheet_id", id, "column", r.Column, "row", r.Row, "error", r.Err)
		}
	}

	if changed {
		if err := s.stampVersion(ctx, id, batchAt); err != nil {
			return nil, results, err
		}
	}

	sh, err := s.At(ctx, owner, id)
	if err != nil {
		return nil, results, err
	}
	return sh, results, nil
}

// writeCell runs one read-compare-append cycle for w, retrying when another
// writer moved the cell's latest pointer in between.
func (s *Service) writeCell(ctx context.Context, sheetID uuid.UUID, w cell.Write, at time.Time) (Outcome, time.Time, error) {
	var err error
	for attempt := 1; attempt <= s.attempts; attempt++ {
		if attempt > 1 {
			metrics.ObserveCellConflict()
		}

		var c *cell.Cell
		c, err = s.store.GetCell(ctx, sheetID, w.Position)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			if w.Cleared() {
				// Nothing to clear.
				return OutcomeUnchanged, time.Time{}, nil
			}
			err = s.store.CreateCell(ctx, newCell(sheetID, w, at))
			if err == nil {
				return OutcomeCreated, at, nil
			}
			if !errors.Is(err, storage.ErrAlreadyExists) {
				return OutcomeFailed, time.Time{}, fmt.Errorf("create cell: %w", err)
			}

		case err != nil:
			return OutcomeFailed, time.Time{}, fmt.Errorf("get cell: %w", err)

		default:
			if c.Latest.Content().Equal(w.Content) {
				return OutcomeUnchanged, time.Time{}, nil
			}
			snap := cell.Snapshot{
				ID:        uuid.New(),
				Type:      w.Type,
				Value:     w.Value,
				CreatedAt: after(at, c.Latest.CreatedAt),
			}
			err = s.store.AppendCellSnapshot(ctx, c.ID, c.Latest.ID, snap)
			if err == nil {
				return OutcomeUpdated, snap.CreatedAt, nil
			}
			if !errors.Is(err, storage.ErrConflict) {
				return OutcomeFailed, time.Time{}, fmt.Errorf("append cell snapshot: %w", err)
			}
		}
	}
	return OutcomeFailed, time.Time{}, fmt.Errorf("cell (%d,%d) after %d attempts: %w", w.Column, w.Row, s.attempts, err)
}

// stampVersion appends a copy of the latest metadata snapshot at or after at.
func (s *Service) stampVersion(ctx context.Context, id uuid.UUID, at time.Time) error {
	var err error
	for attempt := 1; attempt <= s.attempts; attempt++ {
		var rec *storage.SheetRecord
		if rec, err = s.store.GetSheet(ctx, id); err != nil {
			return fmt.Errorf("get sheet %s: %w", id, err)
		}
		snap := sheet.Snapshot{
			ID:          uuid.New(),
			Title:       rec.Latest.Title,
			Description: rec.Latest.Description,
			CreatedAt:   after(at, rec.Latest.CreatedAt),
		}
		err = s.store.AppendSheetSnapshot(ctx, id, rec.Latest.ID, snap)
		if err == nil {
			s.logger.Debug("sheet version stamped", "sheet_id", id, "snapshot_id", snap.ID)
			return nil
		}
		if !errors.Is(err, storage.ErrConflict) {
			break
		}
	}
	return fmt.Errorf("append sheet snapshot: %w", err)
}

// IndexQuery selects one page of the caller's sheets.
type IndexQuery struct {
	Search sheet.Search
	// Sort is "column", "+column" or "-column"; empty means newest first.
	Sort  string
	Page  int
	Limit int
}

const (
	defaultPage  = 1
	defaultLimit = 10
	maxLimit     = 100
)

// Index lists the caller's live sheets. Each summary embeds at most
// sheet.MaxSummaryCells cells and the exact cell count.
func (s *Service) Index(ctx context.Context, owner sheet.Owner, q IndexQuery) (*sheet.Page[sheet.Summary], error) {
	if err := validateOwner(owner); err != nil {
		return nil, err
	}
	order, err := sheet.ParseSort(q.Sort)
	if err != nil {
		return nil, invalid("sort", "%v", err)
	}
	page, limit := q.Page, q.Limit
	if page == 0 {
		page = defaultPage
	}
	if limit == 0 {
		limit = defaultLimit
	}
	switch {
	case page < 1:
		return nil, invalid("page", "must be at least 1")
	case limit < 1 || limit > maxLimit:
		return nil, invalid("limit", "must be between 1 and %d", maxLimit)
	case q.Search.MinimumCellCount != nil && *q.Search.MinimumCellCount < 0:
		return nil, invalid("minimum_cell_count", "must not be negative")
	}

	recs, total, err := s.store.SearchSheets(ctx, storage.SheetQuery{
		OwnerID:      owner.ID,
		SecretDigest: owner.SecretDigest(),
		Search:       q.Search,
		Sort:         order,
		Offset:       (page - 1) * limit,
		Limit:        limit,
	})
	if err != nil {
		return nil, fmt.Errorf("search sheets: %w", err)
	}

	summaries := make([]sheet.Summary, len(recs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, rec := range recs {
		g.Go(func() error {
			sum, err := s.summarize(gctx, rec)
			if err != nil {
				return err
			}
			summaries[i] = sum
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &sheet.Page[sheet.Summary]{
		Pagination: sheet.NewPagination(page, limit, total),
		Data:       summaries,
	}, nil
}

func (s *Service) summarize(ctx context.Context, rec storage.SheetRecord) (sheet.Summary, error) {
	cells, err := s.store.ListCells(ctx, rec.ID, storage.CellQuery{Limit: sheet.MaxSummaryCells})
	if err != nil {
		return sheet.Summary{}, fmt.Errorf("list cells of %s: %w", rec.ID, err)
	}
	count, err := s.store.CountCells(ctx, rec.ID)
	if err != nil {
		return sheet.Summary{}, fmt.Errorf("count cells of %s: %w", rec.ID, err)
	}
	formats, err := s.store.ListFormats(ctx, rec.ID)
	if err != nil {
		return sheet.Summary{}, fmt.Errorf("list formats of %s: %w", rec.ID, err)
	}
	return sheet.Summary{
		ID:             rec.ID,
		OwnerID:        rec.OwnerID,
		CreatedAt:      rec.CreatedAt,
		Latest:         rec.Latest,
		Cells:          cells,
		Formats:        formats,
		TotalCellCount: count,
	}, nil
}
