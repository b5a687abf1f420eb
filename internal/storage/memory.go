package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-memdb"
	"github.com/ryanbastic/go-sheetstore/internal/cell"
	"github.com/ryanbastic/go-sheetstore/internal/sheet"
)

const (
	tblSheets         = "sheets"
	tblSheetSnapshots = "sheet_snapshots"
	tblCells          = "cells"
	tblCellSnapshots  = "cell_snapshots"
	tblExports        = "exports"
	tblFormats        = "formats"
)

var memSchema = &memdb.DBSchema{
	Tables: map[string]*memdb.TableSchema{
		tblSheets: {
			Name: tblSheets,
			Indexes: map[string]*memdb.IndexSchema{
				"id": {
					Name:    "id",
					Unique:  true,
					Indexer: &memdb.StringFieldIndex{Field: "ID"},
				},
				"owner_id": {
					Name:    "owner_id",
					Indexer: &memdb.StringFieldIndex{Field: "OwnerID"},
				},
			},
		},
		tblSheetSnapshots: {
			Name: tblSheetSnapshots,
			Indexes: map[string]*memdb.IndexSchema{
				"id": {
					Name:    "id",
					Unique:  true,
					Indexer: &memdb.StringFieldIndex{Field: "ID"},
				},
				"sheet_id": {
					Name:    "sheet_id",
					Indexer: &memdb.StringFieldIndex{Field: "SheetID"},
				},
			},
		},
		tblCells: {
			Name: tblCells,
			Indexes: map[string]*memdb.IndexSchema{
				"id": {
					Name:    "id",
					Unique:  true,
					Indexer: &memdb.StringFieldIndex{Field: "ID"},
				},
				"sheet_id": {
					Name:    "sheet_id",
					Indexer: &memdb.StringFieldIndex{Field: "SheetID"},
				},
				"sheet_position": {
					Name:   "sheet_position",
					Unique: true,
					Indexer: &memdb.CompoundIndex{
						Indexes: []memdb.Indexer{
							&memdb.StringFieldIndex{Field: "SheetID"},
							&memdb.IntFieldIndex{Field: "Column"},
							&memdb.IntFieldIndex{Field: "Row"},
						},
					},
				},
			},
		},
		tblCellSnapshots: {
			Name: tblCellSnapshots,
			Indexes: map[string]*memdb.IndexSchema{
				"id": {
					Name:    "id",
					Unique:  true,
					Indexer: &memdb.StringFieldIndex{Field: "ID"},
				},
				"cell_id": {
					Name:    "cell_id",
					Indexer: &memdb.StringFieldIndex{Field: "CellID"},
				},
			},
		},
		tblExports: {
			Name: tblExports,
			Indexes: map[string]*memdb.IndexSchema{
				"id": {
					Name:    "id",
					Unique:  true,
					Indexer: &memdb.StringFieldIndex{Field: "ID"},
				},
				"sheet_id": {
					Name:    "sheet_id",
					Indexer: &memdb.StringFieldIndex{Field: "SheetID"},
				},
			},
		},
		tblFormats: {
			Name: tblFormats,
			Indexes: map[string]*memdb.IndexSchema{
				"id": {
					Name:    "id",
					Unique:  true,
					Indexer: &memdb.StringFieldIndex{Field: "ID"},
				},
				"sheet_id": {
					Name:    "sheet_id",
					Indexer: &memdb.StringFieldIndex{Field: "SheetID"},
				},
			},
		},
	},
}

// Rows stored in memdb. They are treated as immutable once inserted:
// updates insert a modified copy.

type sheetRow struct {
	ID               string
	OwnerID          string
	SecretDigest     string
	CreatedAt        time.Time
	DeletedAt        *time.Time
	LatestSnapshotID string
	Seq              int64
}

type sheetSnapshotRow struct {
	ID          string
	SheetID     string
	Title       string
	Description string
	CreatedAt   time.Time
	Seq         int64
}

type cellRow struct {
	ID               string
	SheetID          string
	Column           int
	Row              int
	CreatedAt        time.Time
	LatestSnapshotID string
}

type cellSnapshotRow struct {
	ID        string
	CellID    string
	Type      string
	Value     *string
	CreatedAt time.Time
	Seq       int64
}

type exportRow struct {
	ID      string
	SheetID string
	Export  sheet.Export
	Seq     int64
}

type formatRow struct {
	ID      string
	SheetID string
	Format  sheet.Format
	Seq     int64
}

// MemoryStore implements Store in process memory using go-memdb. It backs
// the service when no database is configured and in tests.
type MemoryStore struct {
	db  *memdb.MemDB
	seq atomic.Int64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() (*MemoryStore, error) {
	db, err := memdb.NewMemDB(memSchema)
	if err != nil {
		return nil, fmt.Errorf("new memdb: %w", err)
	}
	return &MemoryStore{db: db}, nil
}

func (s *MemoryStore) nextSeq() int64 {
	return s.seq.Add(1)
}

func (s *MemoryStore) Ping(context.Context) error {
	return nil
}

func (s *MemoryStore) GetCell(_ context.Context, sheetID uuid.UUID, pos cell.Position) (*cell.Cell, error) {
	txn := s.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First(tblCells, "sheet_position", sheetID.String(), pos.Column, pos.Row)
	if err != nil {
		return nil, fmt.Errorf("get cell: %w", err)
	}
	if raw == nil {
		return nil, ErrNotFound
	}
	return hydrateCell(txn, raw.(*cellRow), false)
}

func (s *MemoryStore) CreateCell(_ context.Context, c cell.Cell) error {
	txn := s.db.Txn(true)
	defer txn.Abort()

	if err := s.insertCell(txn, c); err != nil {
		return err
	}
	txn.Commit()
	return nil
}

func (s *MemoryStore) insertCell(txn *memdb.Txn, c cell.Cell) error {
	existing, err := txn.First(tblCells, "sheet_position", c.SheetID.String(), c.Column, c.Row)
	if err != nil {
		return fmt.Errorf("create cell: %w", err)
	}
	if existing != nil {
		return ErrAlreadyExists
	}
	row := &cellRow{
		ID:               c.ID.String(),
		SheetID:          c.SheetID.String(),
		Column:           c.Column,
		Row:              c.Row,
		CreatedAt:        c.CreatedAt,
		LatestSnapshotID: c.Latest.ID.String(),
	}
	if err := txn.Insert(tblCells, row); err != nil {
		return fmt.Errorf("create cell: %w", err)
	}
	if err := txn.Insert(tblCellSnapshots, s.cellSnapshotRow(c.ID, c.Latest)); err != nil {
		return fmt.Errorf("create cell snapshot: %w", err)
	}
	return nil
}

func (s *MemoryStore) cellSnapshotRow(cellID uuid.UUID, snap cell.Snapshot) *cellSnapshotRow {
	return &cellSnapshotRow{
		ID:        snap.ID.String(),
		CellID:    cellID.String(),
		Type:      snap.Type,
		Value:     snap.Value,
		CreatedAt: snap.CreatedAt,
		Seq:       s.nextSeq(),
	}
}

func (s *MemoryStore) AppendCellSnapshot(_ context.Context, cellID, expectedLatest uuid.UUID, snap cell.Snapshot) error {
	txn := s.db.Txn(true)
	defer txn.Abort()

	raw, err := txn.First(tblCells, "id", cellID.String())
	if err != nil {
		return fmt.Errorf("append cell snapshot: %w", err)
	}
	if raw == nil {
		return ErrNotFound
	}
	row := *raw.(*cellRow)
	if row.LatestSnapshotID != expectedLatest.String() {
		return ErrConflict
	}
	row.LatestSnapshotID = snap.ID.String()

	if err := txn.Insert(tblCellSnapshots, s.cellSnapshotRow(cellID, snap)); err != nil {
		return fmt.Errorf("append cell snapshot: %w", err)
	}
	if err := txn.Insert(tblCells, &row); err != nil {
		return fmt.Errorf("move cell latest: %w", err)
	}
	txn.Commit()
	return nil
}

func (s *MemoryStore) ListCellSnapshots(_ context.Context, cellID uuid.UUID) ([]cell.Snapshot, error) {
	txn := s.db.Txn(false)
	defer txn.Abort()
	return cellSnapshots(txn, cellID.String())
}

func (s *MemoryStore) ListCells(_ context.Context, sheetID uuid.UUID, q CellQuery) ([]cell.Cell, error) {
	txn := s.db.Txn(false)
	defer txn.Abort()

	rows, err := sheetCellRows(txn, sheetID.String())
	if err != nil {
		return nil, err
	}
	if q.Limit > 0 && len(rows) > q.Limit {
		rows = rows[:q.Limit]
	}

	cells := make([]cell.Cell, 0, len(rows))
	for _, row := range rows {
		c, err := hydrateCell(txn, row, q.History)
		if err != nil {
			return nil, err
		}
		cells = append(cells, *c)
	}
	return cells, nil
}

func (s *MemoryStore) CountCells(_ context.Context, sheetID uuid.UUID) (int, error) {
	txn := s.db.Txn(false)
	defer txn.Abort()
	return countCells(txn, sheetID.String())
}

func (s *MemoryStore) CreateSheet(_ context.Context, ns NewSheet) error {
	txn := s.db.Txn(true)
	defer txn.Abort()

	id := ns.Record.ID.String()
	existing, err := txn.First(tblSheets, "id", id)
	if err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	if existing != nil {
		return ErrAlreadyExists
	}

	row := &sheetRow{
		ID:               id,
		OwnerID:          ns.Record.OwnerID,
		SecretDigest:     ns.Record.SecretDigest,
		CreatedAt:        ns.Record.CreatedAt,
		LatestSnapshotID: ns.Record.Latest.ID.String(),
		Seq:              s.nextSeq(),
	}
	if err := txn.Insert(tblSheets, row); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	if err := txn.Insert(tblSheetSnapshots, s.sheetSnapshotRow(ns.Record.ID, ns.Record.Latest)); err != nil {
		return fmt.Errorf("create sheet snapshot: %w", err)
	}
	for _, c := range ns.Cells {
		if err := s.insertCell(txn, c); err != nil {
			return err
		}
	}
	txn.Commit()
	return nil
}

func (s *MemoryStore) sheetSnapshotRow(sheetID uuid.UUID, snap sheet.Snapshot) *sheetSnapshotRow {
	return &sheetSnapshotRow{
		ID:          snap.ID.String(),
		SheetID:     sheetID.String(),
		Title:       snap.Title,
		Description: snap.Description,
		CreatedAt:   snap.CreatedAt,
		Seq:         s.nextSeq(),
	}
}

func (s *MemoryStore) GetSheet(_ context.Context, id uuid.UUID) (*SheetRecord, error) {
	txn := s.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First(tblSheets, "id", id.String())
	if err != nil {
		return nil, fmt.Errorf("get sheet: %w", err)
	}
	if raw == nil {
		return nil, ErrNotFound
	}
	return hydrateSheet(txn, raw.(*sheetRow))
}

func (s *MemoryStore) AppendSheetSnapshot(_ context.Context, sheetID, expectedLatest uuid.UUID, snap sheet.Snapshot) error {
	txn := s.db.Txn(true)
	defer txn.Abort()

	raw, err := txn.First(tblSheets, "id", sheetID.String())
	if err != nil {
		return fmt.Errorf("append sheet snapshot: %w", err)
	}
	if raw == nil {
		return ErrNotFound
	}
	row := *raw.(*sheetRow)
	if row.LatestSnapshotID != expectedLatest.String() {
		return ErrConflict
	}
	row.LatestSnapshotID = snap.ID.String()

	if err := txn.Insert(tblSheetSnapshots, s.sheetSnapshotRow(sheetID, snap)); err != nil {
		return fmt.Errorf("append sheet snapshot: %w", err)
	}
	if err := txn.Insert(tblSheets, &row); err != nil {
		return fmt.Errorf("move sheet latest: %w", err)
	}
	txn.Commit()
	return nil
}

func (s *MemoryStore) GetSheetSnapshot(_ context.Context, sheetID, snapshotID uuid.UUID) (*sheet.Snapshot, error) {
	txn := s.db.Txn(false)
	defer txn.Abort()

	raw, err := txn.First(tblSheetSnapshots, "id", snapshotID.String())
	if err != nil {
		return nil, fmt.Errorf("get sheet snapshot: %w", err)
	}
	if raw == nil || raw.(*sheetSnapshotRow).SheetID != sheetID.String() {
		return nil, ErrNotFound
	}
	snap := raw.(*sheetSnapshotRow).toSnapshot()
	return &snap, nil
}

func (s *MemoryStore) ListSheetSnapshots(_ context.Context, sheetID uuid.UUID) ([]sheet.Snapshot, error) {
	txn := s.db.Txn(false)
	defer txn.Abort()

	rows, err := sheetSnapshotRows(txn, sheetID.String())
	if err != nil {
		return nil, err
	}
	exports, err := exportsOf(txn, sheetID.String())
	if err != nil {
		return nil, err
	}

	byID := make(map[uuid.UUID][]sheet.Export)
	for _, e := range exports {
		byID[e.SnapshotID] = append(byID[e.SnapshotID], e)
	}
	snaps := make([]sheet.Snapshot, 0, len(rows))
	for _, row := range rows {
		snap := row.toSnapshot()
		snap.Exports = byID[snap.ID]
		if snap.Exports == nil {
			snap.Exports = []sheet.Export{}
		}
		snaps = append(snaps, snap)
	}
	return snaps, nil
}

func (s *MemoryStore) DeleteSheet(_ context.Context, id uuid.UUID, at time.Time) error {
	txn := s.db.Txn(true)
	defer txn.Abort()

	raw, err := txn.First(tblSheets, "id", id.String())
	if err != nil {
		return fmt.Errorf("delete sheet: %w", err)
	}
	if raw == nil || raw.(*sheetRow).DeletedAt != nil {
		return ErrNotFound
	}
	row := *raw.(*sheetRow)
	row.DeletedAt = &at
	if err := txn.Insert(tblSheets, &row); err != nil {
		return fmt.Errorf("delete sheet: %w", err)
	}
	txn.Commit()
	return nil
}

func (s *MemoryStore) SearchSheets(_ context.Context, q SheetQuery) ([]SheetRecord, int, error) {
	txn := s.db.Txn(false)
	defer txn.Abort()

	it, err := txn.Get(tblSheets, "owner_id", q.OwnerID)
	if err != nil {
		return nil, 0, fmt.Errorf("search sheets: %w", err)
	}

	var ids map[string]bool
	if len(q.Search.IDs) > 0 {
		ids = make(map[string]bool, len(q.Search.IDs))
		for _, id := range q.Search.IDs {
			ids[id.String()] = true
		}
	}

	var matched []SheetRecord
	for raw := it.Next(); raw != nil; raw = it.Next() {
		row := raw.(*sheetRow)
		if row.DeletedAt != nil || row.SecretDigest != q.SecretDigest {
			continue
		}
		if ids != nil && !ids[row.ID] {
			continue
		}
		rec, err := hydrateSheet(txn, row)
		if err != nil {
			return nil, 0, err
		}
		if t := q.Search.TitleContains; t != nil && !strings.Contains(rec.Latest.Title, *t) {
			continue
		}
		if d := q.Search.DescriptionContains; d != nil && !strings.Contains(rec.Latest.Description, *d) {
			continue
		}
		if m := q.Search.MinimumCellCount; m != nil {
			n, err := countCells(txn, row.ID)
			if err != nil {
				return nil, 0, err
			}
			if n < *m {
				continue
			}
		}
		matched = append(matched, *rec)
	}

	sortRecords(matched, q.Sort)

	total := len(matched)
	if q.Offset >= total {
		return []SheetRecord{}, total, nil
	}
	end := total
	if q.Limit > 0 && q.Offset+q.Limit < end {
		end = q.Offset + q.Limit
	}
	return matched[q.Offset:end], total, nil
}

func sortRecords(recs []SheetRecord, by sheet.Sort) {
	less := func(a, b SheetRecord) int {
		switch by.Column {
		case sheet.SortTitle:
			return strings.Compare(a.Latest.Title, b.Latest.Title)
		case sheet.SortUpdatedAt:
			return a.Latest.CreatedAt.Compare(b.Latest.CreatedAt)
		default:
			return a.CreatedAt.Compare(b.CreatedAt)
		}
	}
	sort.SliceStable(recs, func(i, j int) bool {
		c := less(recs[i], recs[j])
		if c == 0 {
			// Tie-break on id to keep pages stable.
			c = strings.Compare(recs[i].ID.String(), recs[j].ID.String())
		}
		if by.Desc {
			return c > 0
		}
		return c < 0
	})
}

func (s *MemoryStore) CreateExport(_ context.Context, e sheet.Export) error {
	txn := s.db.Txn(true)
	defer txn.Abort()

	raw, err := txn.First(tblSheetSnapshots, "id", e.SnapshotID.String())
	if err != nil {
		return fmt.Errorf("create export: %w", err)
	}
	if raw == nil {
		return ErrNotFound
	}
	row := &exportRow{
		ID:      e.ID.String(),
		SheetID: raw.(*sheetSnapshotRow).SheetID,
		Export:  e,
		Seq:     s.nextSeq(),
	}
	if err := txn.Insert(tblExports, row); err != nil {
		return fmt.Errorf("create export: %w", err)
	}
	txn.Commit()
	return nil
}

func (s *MemoryStore) ListExports(_ context.Context, sheetID uuid.UUID) ([]sheet.Export, error) {
	txn := s.db.Txn(false)
	defer txn.Abort()
	return exportsOf(txn, sheetID.String())
}

func (s *MemoryStore) CreateFormat(_ context.Context, f sheet.Format) error {
	txn := s.db.Txn(true)
	defer txn.Abort()

	row := &formatRow{
		ID:      f.ID.String(),
		SheetID: f.SheetID.String(),
		Format:  f,
		Seq:     s.nextSeq(),
	}
	row.Format.Ranges = append([]sheet.Range{}, f.Ranges...)
	if err := txn.Insert(tblFormats, row); err != nil {
		return fmt.Errorf("create format: %w", err)
	}
	txn.Commit()
	return nil
}

func (s *MemoryStore) DeleteFormat(_ context.Context, sheetID, formatID uuid.UUID, at time.Time) error {
	txn := s.db.Txn(true)
	defer txn.Abort()

	raw, err := txn.First(tblFormats, "id", formatID.String())
	if err != nil {
		return fmt.Errorf("delete format: %w", err)
	}
	if raw == nil {
		return ErrNotFound
	}
	row := *raw.(*formatRow)
	if row.SheetID != sheetID.String() || row.Format.DeletedAt != nil {
		return ErrNotFound
	}
	row.Format.DeletedAt = &at
	if err := txn.Insert(tblFormats, &row); err != nil {
		return fmt.Errorf("delete format: %w", err)
	}
	txn.Commit()
	return nil
}

func (s *MemoryStore) ListFormats(_ context.Context, sheetID uuid.UUID) ([]sheet.Format, error) {
	txn := s.db.Txn(false)
	defer txn.Abort()

	it, err := txn.Get(tblFormats, "sheet_id", sheetID.String())
	if err != nil {
		return nil, fmt.Errorf("list formats: %w", err)
	}
	var rows []*formatRow
	for raw := it.Next(); raw != nil; raw = it.Next() {
		if row := raw.(*formatRow); row.Format.DeletedAt == nil {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Seq < rows[j].Seq })

	formats := make([]sheet.Format, 0, len(rows))
	for _, row := range rows {
		f := row.Format
		f.Ranges = append([]sheet.Range{}, row.Format.Ranges...)
		formats = append(formats, f)
	}
	return formats, nil
}

// --- read helpers shared by the methods above ---

func (r *sheetSnapshotRow) toSnapshot() sheet.Snapshot {
	return sheet.Snapshot{
		ID:          uuid.MustParse(r.ID),
		Title:       r.Title,
		Description: r.Description,
		CreatedAt:   r.CreatedAt,
	}
}

func (r *cellSnapshotRow) toSnapshot() cell.Snapshot {
	return cell.Snapshot{
		ID:        uuid.MustParse(r.ID),
		Type:      r.Type,
		Value:     r.Value,
		CreatedAt: r.CreatedAt,
	}
}

func hydrateSheet(txn *memdb.Txn, row *sheetRow) (*SheetRecord, error) {
	raw, err := txn.First(tblSheetSnapshots, "id", row.LatestSnapshotID)
	if err != nil {
		return nil, fmt.Errorf("get sheet latest: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("sheet %s: latest snapshot %s missing", row.ID, row.LatestSnapshotID)
	}
	return &SheetRecord{
		ID:           uuid.MustParse(row.ID),
		OwnerID:      row.OwnerID,
		SecretDigest: row.SecretDigest,
		CreatedAt:    row.CreatedAt,
		DeletedAt:    row.DeletedAt,
		Latest:       raw.(*sheetSnapshotRow).toSnapshot(),
	}, nil
}

func hydrateCell(txn *memdb.Txn, row *cellRow, history bool) (*cell.Cell, error) {
	c := &cell.Cell{
		ID:        uuid.MustParse(row.ID),
		SheetID:   uuid.MustParse(row.SheetID),
		Column:    row.Column,
		Row:       row.Row,
		CreatedAt: row.CreatedAt,
	}
	if history {
		snaps, err := cellSnapshots(txn, row.ID)
		if err != nil {
			return nil, err
		}
		c.Snapshots = snaps
	}
	raw, err := txn.First(tblCellSnapshots, "id", row.LatestSnapshotID)
	if err != nil {
		return nil, fmt.Errorf("get cell latest: %w", err)
	}
	if raw == nil {
		return nil, fmt.Errorf("cell %s: latest snapshot %s missing", row.ID, row.LatestSnapshotID)
	}
	c.Latest = raw.(*cellSnapshotRow).toSnapshot()
	return c, nil
}

func cellSnapshots(txn *memdb.Txn, cellID string) ([]cell.Snapshot, error) {
	it, err := txn.Get(tblCellSnapshots, "cell_id", cellID)
	if err != nil {
		return nil, fmt.Errorf("list cell snapshots: %w", err)
	}
	var rows []*cellSnapshotRow
	for raw := it.Next(); raw != nil; raw = it.Next() {
		rows = append(rows, raw.(*cellSnapshotRow))
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Seq < rows[j].Seq })

	snaps := make([]cell.Snapshot, 0, len(rows))
	for _, row := range rows {
		snaps = append(snaps, row.toSnapshot())
	}
	return snaps, nil
}

func sheetCellRows(txn *memdb.Txn, sheetID string) ([]*cellRow, error) {
	it, err := txn.Get(tblCells, "sheet_id", sheetID)
	if err != nil {
		return nil, fmt.Errorf("list cells: %w", err)
	}
	var rows []*cellRow
	for raw := it.Next(); raw != nil; raw = it.Next() {
		rows = append(rows, raw.(*cellRow))
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Row != rows[j].Row {
			return rows[i].Row < rows[j].Row
		}
		return rows[i].Column < rows[j].Column
	})
	return rows, nil
}

func countCells(txn *memdb.Txn, sheetID string) (int, error) {
	it, err := txn.Get(tblCells, "sheet_id", sheetID)
	if err != nil {
		return 0, fmt.Errorf("count cells: %w", err)
	}
	n := 0
	for raw := it.Next(); raw != nil; raw = it.Next() {
		n++
	}
	return n, nil
}

func sheetSnapshotRows(txn *memdb.Txn, sheetID string) ([]*sheetSnapshotRow, error) {
	it, err := txn.Get(tblSheetSnapshots, "sheet_id", sheetID)
	if err != nil {
		return nil, fmt.Errorf("list sheet snapshots: %w", err)
	}
	var rows []*sheetSnapshotRow
	for raw := it.Next(); raw != nil; raw = it.Next() {
		rows = append(rows, raw.(*sheetSnapshotRow))
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Seq < rows[j].Seq })
	return rows, nil
}

func exportsOf(txn *memdb.Txn, sheetID string) ([]sheet.Export, error) {
	it, err := txn.Get(tblExports, "sheet_id", sheetID)
	if err != nil {
		return nil, fmt.Errorf("list exports: %w", err)
	}
	var rows []*exportRow
	for raw := it.Next(); raw != nil; raw = it.Next() {
		if row := raw.(*exportRow); row.Export.DeletedAt == nil {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Seq < rows[j].Seq })

	exports := make([]sheet.Export, 0, len(rows))
	for _, row := range rows {
		exports = append(exports, row.Export)
	}
	return exports, nil
}
