package cell

import (
	"time"

	"github.com/google/uuid"
)

// Grid limits. They match the largest worksheet every export target can
// hold.
const (
	MaxColumn = 16384
	MaxRow    = 1048576
)

// Position addresses a cell inside a sheet. Both coordinates count from 1.
type Position struct {
	Column int `json:"column" validate:"min=1,max=16384"`
	Row    int `json:"row" validate:"min=1,max=1048576"`
}

// Content is the typed value carried by a snapshot. A nil Value marks a
// value that was explicitly cleared.
type Content struct {
	Type  string  `json:"type" validate:"required,max=32"`
	Value *string `json:"value"`
}

// Cleared reports whether the content represents an erased value.
func (c Content) Cleared() bool {
	return c.Value == nil
}

// Equal compares type and value, treating two cleared values as equal.
func (c Content) Equal(o Content) bool {
	if c.Type != o.Type {
		return false
	}
	if c.Value == nil || o.Value == nil {
		return c.Value == nil && o.Value == nil
	}
	return *c.Value == *o.Value
}

// Snapshot is one immutable version of a cell's content.
type Snapshot struct {
	ID        uuid.UUID `json:"id"`
	Type      string    `json:"type"`
	Value     *string   `json:"value"`
	CreatedAt time.Time `json:"created_at"`
}

// Content returns the type/value pair of the snapshot.
func (s Snapshot) Content() Content {
	return Content{Type: s.Type, Value: s.Value}
}

// Cell is a (column, row) position of a sheet with its snapshot history.
//
// Snapshots is ordered by creation and may be nil when only the latest
// snapshot was loaded.
type Cell struct {
	ID        uuid.UUID  `json:"id"`
	SheetID   uuid.UUID  `json:"sheet_id"`
	Column    int        `json:"column"`
	Row       int        `json:"row"`
	Latest    Snapshot   `json:"latest"`
	Snapshots []Snapshot `json:"snapshots,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Position returns the cell coordinates.
func (c *Cell) Position() Position {
	return Position{Column: c.Column, Row: c.Row}
}

// AsOf returns the snapshot that was current at t: the last one created at or
// before t. ok is false when the cell did not exist yet.
func (c *Cell) AsOf(t time.Time) (Snapshot, bool) {
	var (
		found Snapshot
		ok    bool
	)
	for _, s := range c.Snapshots {
		if s.CreatedAt.After(t) {
			break
		}
		found, ok = s, true
	}
	return found, ok
}

// Write is a requested change to one position.
type Write struct {
	Position
	Content
}

// Str returns a pointer to v. Handy for building non-null contents.
func Str(v string) *string {
	return &v
}
