package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ryanbastic/go-sheetstore/internal/cell"
	"github.com/ryanbastic/go-sheetstore/internal/sheet"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store using PostgreSQL.
type PostgresStore struct {
	pool         *pgxpool.Pool
	queryTimeout time.Duration
}

// NewPostgresStore creates a Store on top of pool.
// queryTimeout sets the per-query context deadline; zero means no timeout.
func NewPostgresStore(pool *pgxpool.Pool, queryTimeout time.Duration) *PostgresStore {
	return &PostgresStore{pool: pool, queryTimeout: queryTimeout}
}

// withTimeout derives a child context with the configured query timeout.
// If queryTimeout is zero, the parent context is returned unchanged.
func (s *PostgresStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.queryTimeout > 0 {
		return context.WithTimeout(ctx, s.queryTimeout)
	}
	return ctx, func() {}
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.pool.Ping(ctx)
}

const pgForeignKeyViolation = "23503"

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation
}

const cellColumns = `
	c.id, c.sheet_id, c.column_no, c.row_no, c.created_at,
	cs.id, cs.type, cs.value, cs.created_at`

const cellFrom = `
	FROM cells c
	JOIN cell_latest_snapshots l ON l.cell_id = c.id
	JOIN cell_snapshots cs ON cs.id = l.cell_snapshot_id`

func scanCell(row pgx.Row) (*cell.Cell, error) {
	var c cell.Cell
	err := row.Scan(&c.ID, &c.SheetID, &c.Column, &c.Row, &c.CreatedAt,
		&c.Latest.ID, &c.Latest.Type, &c.Latest.Value, &c.Latest.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *PostgresStore) GetCell(ctx context.Context, sheetID uuid.UUID, pos cell.Position) (*cell.Cell, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	query := fmt.Sprintf(`SELECT %s %s
		WHERE c.sheet_id = $1 AND c.column_no = $2 AND c.row_no = $3`, cellColumns, cellFrom)

	c, err := scanCell(s.pool.QueryRow(ctx, query, sheetID, pos.Column, pos.Row))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get cell: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) CreateCell(ctx context.Context, c cell.Cell) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return insertCell(ctx, tx, c)
	})
}

func insertCell(ctx context.Context, q querier, c cell.Cell) error {
	tag, err := q.Exec(ctx, `
		INSERT INTO cells (id, sheet_id, column_no, row_no, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (sheet_id, column_no, row_no) DO NOTHING
	`, c.ID, c.SheetID, c.Column, c.Row, c.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrNotFound
		}
		return fmt.Errorf("create cell: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyExists
	}
	if err := insertCellSnapshot(ctx, q, c.ID, c.Latest); err != nil {
		return err
	}
	_, err = q.Exec(ctx, `
		INSERT INTO cell_latest_snapshots (cell_id, cell_snapshot_id) VALUES ($1, $2)
	`, c.ID, c.Latest.ID)
	if err != nil {
		return fmt.Errorf("create cell latest: %w", err)
	}
	return nil
}

func insertCellSnapshot(ctx context.Context, q querier, cellID uuid.UUID, snap cell.Snapshot) error {
	_, err := q.Exec(ctx, `
		INSERT INTO cell_snapshots (id, cell_id, type, value, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, snap.ID, cellID, snap.Type, snap.Value, snap.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrNotFound
		}
		return fmt.Errorf("create cell snapshot: %w", err)
	}
	return nil
}

func (s *PostgresStore) AppendCellSnapshot(ctx context.Context, cellID, expectedLatest uuid.UUID, snap cell.Snapshot) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if err := insertCellSnapshot(ctx, tx, cellID, snap); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `
			UPDATE cell_latest_snapshots SET cell_snapshot_id = $3
			WHERE cell_id = $1 AND cell_snapshot_id = $2
		`, cellID, expectedLatest, snap.ID)
		if err != nil {
			return fmt.Errorf("move cell latest: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrConflict
		}
		return nil
	})
}

func (s *PostgresStore) ListCellSnapshots(ctx context.Context, cellID uuid.UUID) ([]cell.Snapshot, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.pool.Query(ctx, `
		SELECT id, type, value, created_at
		FROM cell_snapshots
		WHERE cell_id = $1
		ORDER BY added_id ASC
	`, cellID)
	if err != nil {
		return nil, fmt.Errorf("list cell snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []cell.Snapshot
	for rows.Next() {
		var snap cell.Snapshot
		if err := rows.Scan(&snap.ID, &snap.Type, &snap.Value, &snap.CreatedAt); err != nil {
			return nil, fmt.Errorf("list cell snapshots scan: %w", err)
		}
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}

func (s *PostgresStore) ListCells(ctx context.Context, sheetID uuid.UUID, q CellQuery) ([]cell.Cell, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	// LIMIT NULL is no limit.
	var limit any
	if q.Limit > 0 {
		limit = q.Limit
	}
	query := fmt.Sprintf(`SELECT %s %s
		WHERE c.sheet_id = $1
		ORDER BY c.row_no ASC, c.column_no ASC
		LIMIT $2`, cellColumns, cellFrom)

	rows, err := s.pool.Query(ctx, query, sheetID, limit)
	if err != nil {
		return nil, fmt.Errorf("list cells: %w", err)
	}
	cells, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (cell.Cell, error) {
		c, err := scanCell(row)
		if err != nil {
			return cell.Cell{}, err
		}
		return *c, nil
	})
	if err != nil {
		return nil, fmt.Errorf("list cells scan: %w", err)
	}
	if !q.History || len(cells) == 0 {
		return cells, nil
	}

	history, err := s.sheetCellHistory(ctx, sheetID)
	if err != nil {
		return nil, err
	}
	for i := range cells {
		cells[i].Snapshots = history[cells[i].ID]
	}
	return cells, nil
}

func (s *PostgresStore) sheetCellHistory(ctx context.Context, sheetID uuid.UUID) (map[uuid.UUID][]cell.Snapshot, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT cs.cell_id, cs.id, cs.type, cs.value, cs.created_at
		FROM cell_snapshots cs
		JOIN cells c ON c.id = cs.cell_id
		WHERE c.sheet_id = $1
		ORDER BY cs.added_id ASC
	`, sheetID)
	if err != nil {
		return nil, fmt.Errorf("list cell history: %w", err)
	}
	defer rows.Close()

	history := make(map[uuid.UUID][]cell.Snapshot)
	for rows.Next() {
		var (
			cellID uuid.UUID
			snap   cell.Snapshot
		)
		if err := rows.Scan(&cellID, &snap.ID, &snap.Type, &snap.Value, &snap.CreatedAt); err != nil {
			return nil, fmt.Errorf("list cell history scan: %w", err)
		}
		history[cellID] = append(history[cellID], snap)
	}
	return history, rows.Err()
}

func (s *PostgresStore) CountCells(ctx context.Context, sheetID uuid.UUID) (int, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var n int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM cells WHERE sheet_id = $1`, sheetID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count cells: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) CreateSheet(ctx context.Context, ns NewSheet) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rec := ns.Record
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			INSERT INTO sheets (id, external_user_id, secret_digest, created_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO NOTHING
		`, rec.ID, rec.OwnerID, rec.SecretDigest, rec.CreatedAt)
		if err != nil {
			return fmt.Errorf("create sheet: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrAlreadyExists
		}
		if err := insertSheetSnapshot(ctx, tx, rec.ID, rec.Latest); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO sheet_latest_snapshots (sheet_id, sheet_snapshot_id) VALUES ($1, $2)
		`, rec.ID, rec.Latest.ID)
		if err != nil {
			return fmt.Errorf("create sheet latest: %w", err)
		}
		for _, c := range ns.Cells {
			if err := insertCell(ctx, tx, c); err != nil {
				return err
			}
		}
		return nil
	})
}

func insertSheetSnapshot(ctx context.Context, q querier, sheetID uuid.UUID, snap sheet.Snapshot) error {
	_, err := q.Exec(ctx, `
		INSERT INTO sheet_snapshots (id, sheet_id, title, description, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, snap.ID, sheetID, snap.Title, snap.Description, snap.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrNotFound
		}
		return fmt.Errorf("create sheet snapshot: %w", err)
	}
	return nil
}

const sheetColumns = `
	s.id, s.external_user_id, s.secret_digest, s.created_at, s.deleted_at,
	ss.id, ss.title, ss.description, ss.created_at`

const sheetFrom = `
	FROM sheets s
	JOIN sheet_latest_snapshots l ON l.sheet_id = s.id
	JOIN sheet_snapshots ss ON ss.id = l.sheet_snapshot_id`

func scanSheet(row pgx.Row) (*SheetRecord, error) {
	var r SheetRecord
	err := row.Scan(&r.ID, &r.OwnerID, &r.SecretDigest, &r.CreatedAt, &r.DeletedAt,
		&r.Latest.ID, &r.Latest.Title, &r.Latest.Description, &r.Latest.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *PostgresStore) GetSheet(ctx context.Context, id uuid.UUID) (*SheetRecord, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	query := fmt.Sprintf(`SELECT %s %s WHERE s.id = $1`, sheetColumns, sheetFrom)
	r, err := scanSheet(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get sheet: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) AppendSheetSnapshot(ctx context.Context, sheetID, expectedLatest uuid.UUID, snap sheet.Snapshot) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if err := insertSheetSnapshot(ctx, tx, sheetID, snap); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `
			UPDATE sheet_latest_snapshots SET sheet_snapshot_id = $3
			WHERE sheet_id = $1 AND sheet_snapshot_id = $2
		`, sheetID, expectedLatest, snap.ID)
		if err != nil {
			return fmt.Errorf("move sheet latest: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrConflict
		}
		return nil
	})
}

func (s *PostgresStore) GetSheetSnapshot(ctx context.Context, sheetID, snapshotID uuid.UUID) (*sheet.Snapshot, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var snap sheet.Snapshot
	err := s.pool.QueryRow(ctx, `
		SELECT id, title, description, created_at
		FROM sheet_snapshots
		WHERE sheet_id = $1 AND id = $2
	`, sheetID, snapshotID).Scan(&snap.ID, &snap.Title, &snap.Description, &snap.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get sheet snapshot: %w", err)
	}
	return &snap, nil
}

func (s *PostgresStore) ListSheetSnapshots(ctx context.Context, sheetID uuid.UUID) ([]sheet.Snapshot, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.pool.Query(ctx, `
		SELECT id, title, description, created_at
		FROM sheet_snapshots
		WHERE sheet_id = $1
		ORDER BY added_id ASC
	`, sheetID)
	if err != nil {
		return nil, fmt.Errorf("list sheet snapshots: %w", err)
	}
	snaps, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (sheet.Snapshot, error) {
		var snap sheet.Snapshot
		err := row.Scan(&snap.ID, &snap.Title, &snap.Description, &snap.CreatedAt)
		snap.Exports = []sheet.Export{}
		return snap, err
	})
	if err != nil {
		return nil, fmt.Errorf("list sheet snapshots scan: %w", err)
	}

	exports, err := s.listExports(ctx, sheetID)
	if err != nil {
		return nil, err
	}
	idx := make(map[uuid.UUID]int, len(snaps))
	for i, snap := range snaps {
		idx[snap.ID] = i
	}
	for _, e := range exports {
		if i, ok := idx[e.SnapshotID]; ok {
			snaps[i].Exports = append(snaps[i].Exports, e)
		}
	}
	return snaps, nil
}

func (s *PostgresStore) DeleteSheet(ctx context.Context, id uuid.UUID, at time.Time) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tag, err := s.pool.Exec(ctx, `
		UPDATE sheets SET deleted_at = $2 WHERE id = $1 AND deleted_at IS NULL
	`, id, at)
	if err != nil {
		return fmt.Errorf("delete sheet: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// sortExpr maps the allow-listed sort keys to SQL. Keys are validated by
// sheet.ParseSort before they reach the store.
var sortExpr = map[string]string{
	sheet.SortCreatedAt: "s.created_at",
	sheet.SortUpdatedAt: "ss.created_at",
	sheet.SortTitle:     "ss.title",
}

func (s *PostgresStore) SearchSheets(ctx context.Context, q SheetQuery) ([]SheetRecord, int, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	where := []string{"s.external_user_id = $1", "s.secret_digest = $2", "s.deleted_at IS NULL"}
	args := []any{q.OwnerID, q.SecretDigest}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if len(q.Search.IDs) > 0 {
		ids := make([]string, len(q.Search.IDs))
		for i, id := range q.Search.IDs {
			ids[i] = id.String()
		}
		where = append(where, fmt.Sprintf("s.id = ANY(%s::uuid[])", arg(ids)))
	}
	if t := q.Search.TitleContains; t != nil {
		where = append(where, fmt.Sprintf("strpos(ss.title, %s) > 0", arg(*t)))
	}
	if d := q.Search.DescriptionContains; d != nil {
		where = append(where, fmt.Sprintf("strpos(ss.description, %s) > 0", arg(*d)))
	}
	if m := q.Search.MinimumCellCount; m != nil {
		where = append(where, fmt.Sprintf(
			"(SELECT count(*) FROM cells c WHERE c.sheet_id = s.id) >= %s", arg(*m)))
	}
	cond := strings.Join(where, " AND ")

	var total int
	countQuery := fmt.Sprintf(`SELECT count(*) %s WHERE %s`, sheetFrom, cond)
	if err := s.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count sheets: %w", err)
	}

	col, ok := sortExpr[q.Sort.Column]
	if !ok {
		col = sortExpr[sheet.SortCreatedAt]
	}
	dir := "ASC"
	if q.Sort.Desc {
		dir = "DESC"
	}
	var limit any
	if q.Limit > 0 {
		limit = q.Limit
	}
	pageQuery := fmt.Sprintf(`SELECT %s %s WHERE %s
		ORDER BY %s %s, s.id %s
		OFFSET %s LIMIT %s`,
		sheetColumns, sheetFrom, cond, col, dir, dir, arg(q.Offset), arg(limit))

	rows, err := s.pool.Query(ctx, pageQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("search sheets: %w", err)
	}
	recs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (SheetRecord, error) {
		r, err := scanSheet(row)
		if err != nil {
			return SheetRecord{}, err
		}
		return *r, nil
	})
	if err != nil {
		return nil, 0, fmt.Errorf("search sheets scan: %w", err)
	}
	return recs, total, nil
}

func (s *PostgresStore) CreateExport(ctx context.Context, e sheet.Export) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	_, err := s.pool.Exec(ctx, `
		INSERT INTO exports (id, sheet_snapshot_id, provider, uid, url, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, e.ID, e.SnapshotID, e.Provider, e.UID, e.URL, e.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrNotFound
		}
		return fmt.Errorf("create export: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListExports(ctx context.Context, sheetID uuid.UUID) ([]sheet.Export, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.listExports(ctx, sheetID)
}

func (s *PostgresStore) listExports(ctx context.Context, sheetID uuid.UUID) ([]sheet.Export, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT e.id, e.sheet_snapshot_id, e.provider, e.uid, e.url, e.created_at, e.deleted_at
		FROM exports e
		JOIN sheet_snapshots ss ON ss.id = e.sheet_snapshot_id
		WHERE ss.sheet_id = $1 AND e.deleted_at IS NULL
		ORDER BY e.added_id ASC
	`, sheetID)
	if err != nil {
		return nil, fmt.Errorf("list exports: %w", err)
	}
	exports, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (sheet.Export, error) {
		var e sheet.Export
		err := row.Scan(&e.ID, &e.SnapshotID, &e.Provider, &e.UID, &e.URL, &e.CreatedAt, &e.DeletedAt)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("list exports scan: %w", err)
	}
	return exports, nil
}

func (s *PostgresStore) CreateFormat(ctx context.Context, f sheet.Format) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO sheet_formats
				(id, sheet_id, font_name, font_size, background_color, text_alignment, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, f.ID, f.SheetID, f.FontName, f.FontSize, f.BackgroundColor, f.TextAlignment, f.CreatedAt)
		if err != nil {
			if isForeignKeyViolation(err) {
				return ErrNotFound
			}
			return fmt.Errorf("create format: %w", err)
		}
		for i, r := range f.Ranges {
			_, err := tx.Exec(ctx, `
				INSERT INTO sheet_format_ranges
					(format_id, position, start_column, start_row, end_column, end_row)
				VALUES ($1, $2, $3, $4, $5, $6)
			`, f.ID, i, r.StartColumn, r.StartRow, r.EndColumn, r.EndRow)
			if err != nil {
				return fmt.Errorf("create format range: %w", err)
			}
		}
		return nil
	})
}

func (s *PostgresStore) DeleteFormat(ctx context.Context, sheetID, formatID uuid.UUID, at time.Time) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tag, err := s.pool.Exec(ctx, `
		UPDATE sheet_formats SET deleted_at = $3
		WHERE id = $2 AND sheet_id = $1 AND deleted_at IS NULL
	`, sheetID, formatID, at)
	if err != nil {
		return fmt.Errorf("delete format: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListFormats(ctx context.Context, sheetID uuid.UUID) ([]sheet.Format, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.pool.Query(ctx, `
		SELECT id, sheet_id, font_name, font_size, background_color, text_alignment, created_at, deleted_at
		FROM sheet_formats
		WHERE sheet_id = $1 AND deleted_at IS NULL
		ORDER BY added_id ASC
	`, sheetID)
	if err != nil {
		return nil, fmt.Errorf("list formats: %w", err)
	}
	formats, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (sheet.Format, error) {
		var f sheet.Format
		err := row.Scan(&f.ID, &f.SheetID, &f.FontName, &f.FontSize,
			&f.BackgroundColor, &f.TextAlignment, &f.CreatedAt, &f.DeletedAt)
		f.Ranges = []sheet.Range{}
		return f, err
	})
	if err != nil {
		return nil, fmt.Errorf("list formats scan: %w", err)
	}
	if len(formats) == 0 {
		return formats, nil
	}

	rangeRows, err := s.pool.Query(ctx, `
		SELECT r.format_id, r.start_column, r.start_row, r.end_column, r.end_row
		FROM sheet_format_ranges r
		JOIN sheet_formats f ON f.id = r.format_id
		WHERE f.sheet_id = $1 AND f.deleted_at IS NULL
		ORDER BY r.format_id, r.position
	`, sheetID)
	if err != nil {
		return nil, fmt.Errorf("list format ranges: %w", err)
	}
	defer rangeRows.Close()

	idx := make(map[uuid.UUID]int, len(formats))
	for i, f := range formats {
		idx[f.ID] = i
	}
	for rangeRows.Next() {
		var (
			formatID uuid.UUID
			r        sheet.Range
		)
		if err := rangeRows.Scan(&formatID, &r.StartColumn, &r.StartRow, &r.EndColumn, &r.EndRow); err != nil {
			return nil, fmt.Errorf("list format ranges scan: %w", err)
		}
		if i, ok := idx[formatID]; ok {
			formats[i].Ranges = append(formats[i].Ranges, r)
		}
	}
	return formats, rangeRows.Err()
}
