package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/ryanbastic/go-sheetstore/internal/cell"
	"github.com/ryanbastic/go-sheetstore/internal/sheet"
)

var (
	// ErrNotFound is returned when a lookup finds no matching record.
	ErrNotFound = errors.New("record not found")

	// ErrAlreadyExists is returned when a create collides with a unique key,
	// e.g. two writers creating the same cell position.
	ErrAlreadyExists = errors.New("record already exists")

	// ErrConflict is returned when a latest-snapshot pointer moved between
	// read and append.
	ErrConflict = errors.New("latest snapshot changed concurrently")
)

// SheetRecord is a stored sheet with its owner credentials and current
// snapshot. It is never sent to clients.
type SheetRecord struct {
	ID           uuid.UUID
	OwnerID      string
	SecretDigest string
	CreatedAt    time.Time
	DeletedAt    *time.Time
	Latest       sheet.Snapshot
}

// NewSheet is everything written atomically when a sheet is created.
// Each cell carries its first snapshot in Latest.
type NewSheet struct {
	Record SheetRecord
	Cells  []cell.Cell
}

// CellQuery selects the cells of a sheet.
type CellQuery struct {
	// History loads every snapshot of each cell into Cell.Snapshots.
	History bool
	// Limit caps the number of cells; zero means no limit.
	Limit int
}

// SheetQuery filters a listing of one owner's live sheets.
type SheetQuery struct {
	OwnerID      string
	SecretDigest string
	Search       sheet.Search
	Sort         sheet.Sort
	Offset       int
	Limit        int
}

// CellStore persists cells and their snapshot chains.
type CellStore interface {
	// GetCell returns the cell at pos with its latest snapshot.
	GetCell(ctx context.Context, sheetID uuid.UUID, pos cell.Position) (*cell.Cell, error)

	// CreateCell inserts a new cell whose first snapshot is c.Latest.
	// Returns ErrAlreadyExists if the position is taken.
	CreateCell(ctx context.Context, c cell.Cell) error

	// AppendCellSnapshot adds snap to a cell if its latest snapshot is still
	// expectedLatest, and moves the latest pointer. Returns ErrConflict
	// otherwise.
	AppendCellSnapshot(ctx context.Context, cellID, expectedLatest uuid.UUID, snap cell.Snapshot) error

	// ListCellSnapshots returns a cell's snapshots in creation order.
	ListCellSnapshots(ctx context.Context, cellID uuid.UUID) ([]cell.Snapshot, error)

	// ListCells returns a sheet's cells ordered by row, then column.
	ListCells(ctx context.Context, sheetID uuid.UUID, q CellQuery) ([]cell.Cell, error)

	// CountCells counts every tracked cell of a sheet, cleared ones included.
	CountCells(ctx context.Context, sheetID uuid.UUID) (int, error)
}

// SheetStore persists sheets, their metadata snapshots, exports and formats.
type SheetStore interface {
	CreateSheet(ctx context.Context, s NewSheet) error
	GetSheet(ctx context.Context, id uuid.UUID) (*SheetRecord, error)

	// AppendSheetSnapshot behaves like AppendCellSnapshot for metadata.
	AppendSheetSnapshot(ctx context.Context, sheetID, expectedLatest uuid.UUID, snap sheet.Snapshot) error

	// GetSheetSnapshot returns one snapshot of a sheet, without exports.
	GetSheetSnapshot(ctx context.Context, sheetID, snapshotID uuid.UUID) (*sheet.Snapshot, error)

	// ListSheetSnapshots returns all snapshots in creation order, each with
	// its live exports.
	ListSheetSnapshots(ctx context.Context, sheetID uuid.UUID) ([]sheet.Snapshot, error)

	// DeleteSheet marks a live sheet deleted. Returns ErrNotFound when the
	// sheet is missing or already deleted.
	DeleteSheet(ctx context.Context, id uuid.UUID, at time.Time) error

	// SearchSheets returns one page of matching live sheets and the total
	// number of matches.
	SearchSheets(ctx context.Context, q SheetQuery) ([]SheetRecord, int, error)

	CreateExport(ctx context.Context, e sheet.Export) error
	// ListExports returns live exports of every snapshot of a sheet, oldest first.
	ListExports(ctx context.Context, sheetID uuid.UUID) ([]sheet.Export, error)

	CreateFormat(ctx context.Context, f sheet.Format) error
	DeleteFormat(ctx context.Context, sheetID, formatID uuid.UUID, at time.Time) error
	ListFormats(ctx context.Context, sheetID uuid.UUID) ([]sheet.Format, error)
}

// Store is the full persistence surface used by the spreadsheet service.
type Store interface {
	CellStore
	SheetStore
	Ping(ctx context.Context) error
}
