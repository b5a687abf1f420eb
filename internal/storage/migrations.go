package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// migrations are applied in order. Each statement is idempotent so the whole
// list can be replayed on every start.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS sheets (
		id               UUID PRIMARY KEY,
		external_user_id TEXT NOT NULL,
		secret_digest    TEXT NOT NULL,
		created_at       TIMESTAMPTZ NOT NULL,
		deleted_at       TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sheets_owner
		ON sheets (external_user_id, created_at DESC) WHERE deleted_at IS NULL`,

	`CREATE TABLE IF NOT EXISTS sheet_snapshots (
		added_id    BIGSERIAL PRIMARY KEY,
		id          UUID NOT NULL UNIQUE,
		sheet_id    UUID NOT NULL REFERENCES sheets (id),
		title       TEXT NOT NULL,
		description TEXT NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sheet_snapshots_sheet
		ON sheet_snapshots (sheet_id, added_id)`,

	`CREATE TABLE IF NOT EXISTS sheet_latest_snapshots (
		sheet_id          UUID PRIMARY KEY REFERENCES sheets (id),
		sheet_snapshot_id UUID NOT NULL REFERENCES sheet_snapshots (id)
	)`,

	`CREATE TABLE IF NOT EXISTS cells (
		id         UUID PRIMARY KEY,
		sheet_id   UUID NOT NULL REFERENCES sheets (id),
		column_no  INTEGER NOT NULL CHECK (column_no >= 1),
		row_no     INTEGER NOT NULL CHECK (row_no >= 1),
		created_at TIMESTAMPTZ NOT NULL,

		CONSTRAINT uq_cells_position UNIQUE (sheet_id, column_no, row_no)
	)`,

	`CREATE TABLE IF NOT EXISTS cell_snapshots (
		added_id   BIGSERIAL PRIMARY KEY,
		id         UUID NOT NULL UNIQUE,
		cell_id    UUID NOT NULL REFERENCES cells (id),
		type       TEXT NOT NULL,
		value      TEXT,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_cell_snapshots_cell
		ON cell_snapshots (cell_id, added_id)`,

	`CREATE TABLE IF NOT EXISTS cell_latest_snapshots (
		cell_id          UUID PRIMARY KEY REFERENCES cells (id),
		cell_snapshot_id UUID NOT NULL REFERENCES cell_snapshots (id)
	)`,

	`CREATE TABLE IF NOT EXISTS exports (
		added_id          BIGSERIAL PRIMARY KEY,
		id                UUID NOT NULL UNIQUE,
		sheet_snapshot_id UUID NOT NULL REFERENCES sheet_snapshots (id),
		provider          TEXT NOT NULL,
		uid               TEXT,
		url               TEXT,
		created_at        TIMESTAMPTZ NOT NULL,
		deleted_at        TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_exports_snapshot
		ON exports (sheet_snapshot_id)`,

	`CREATE TABLE IF NOT EXISTS sheet_formats (
		added_id         BIGSERIAL PRIMARY KEY,
		id               UUID NOT NULL UNIQUE,
		sheet_id         UUID NOT NULL REFERENCES sheets (id),
		font_name        TEXT,
		font_size        DOUBLE PRECISION,
		background_color TEXT,
		text_alignment   TEXT,
		created_at       TIMESTAMPTZ NOT NULL,
		deleted_at       TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS sheet_format_ranges (
		format_id    UUID NOT NULL REFERENCES sheet_formats (id),
		position     INTEGER NOT NULL,
		start_column INTEGER NOT NULL,
		start_row    INTEGER NOT NULL,
		end_column   INTEGER NOT NULL,
		end_row      INTEGER NOT NULL,

		PRIMARY KEY (format_id, position)
	)`,
}

// RunMigrations creates every table the PostgresStore needs.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	for i, ddl := range migrations {
		if _, err := pool.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}
