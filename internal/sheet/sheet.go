package sheet

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
	"github.com/ryanbastic/go-sheetstore/internal/cell"
)

// Export providers with a known meaning. Other strings are allowed in stored
// records but only registered providers can render.
const (
	ProviderExcel        = "excel"
	ProviderHancel       = "hancel"
	ProviderGoogleSheets = "google_sheets"
)

// Owner identifies the external user making a request.
type Owner struct {
	ID     string
	Secret string
}

// SecretDigest is the stored form of the owner secret.
func (o Owner) SecretDigest() string {
	sum := sha256.Sum256([]byte(o.Secret))
	return hex.EncodeToString(sum[:])
}

// Matches compares the owner against stored credentials in constant time
// for the secret part.
func (o Owner) Matches(ownerID, secretDigest string) bool {
	if o.ID != ownerID {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(o.SecretDigest()), []byte(secretDigest)) == 1
}

// Metadata is the versioned sheet-level content.
type Metadata struct {
	Title       string `json:"title" validate:"required,max=255"`
	Description string `json:"description" validate:"max=4096"`
}

// Snapshot is one immutable version of a sheet's metadata.
type Snapshot struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	Exports     []Export  `json:"exports"`
}

// Metadata returns the title/description pair of the snapshot.
func (s Snapshot) Metadata() Metadata {
	return Metadata{Title: s.Title, Description: s.Description}
}

// Export records one artifact rendered from a snapshot.
type Export struct {
	ID         uuid.UUID  `json:"id"`
	SnapshotID uuid.UUID  `json:"spreadsheet_snapshot_id"`
	Provider   string     `json:"provider"`
	UID        *string    `json:"uid"`
	URL        *string    `json:"url"`
	CreatedAt  time.Time  `json:"created_at"`
	DeletedAt  *time.Time `json:"deleted_at"`
}

// Range is an inclusive rectangle of cells.
type Range struct {
	StartColumn int `json:"start_column" validate:"min=1,max=16384"`
	StartRow    int `json:"start_row" validate:"min=1,max=1048576"`
	EndColumn   int `json:"end_column" validate:"gtefield=StartColumn,max=16384"`
	EndRow      int `json:"end_row" validate:"gtefield=StartRow,max=1048576"`
}

// Contains reports whether the position lies inside the range.
func (r Range) Contains(p cell.Position) bool {
	return p.Column >= r.StartColumn && p.Column <= r.EndColumn &&
		p.Row >= r.StartRow && p.Row <= r.EndRow
}

// Format styles one or more ranges of a sheet.
type Format struct {
	ID              uuid.UUID  `json:"id"`
	SheetID         uuid.UUID  `json:"spreadsheet_id"`
	FontName        *string    `json:"font_name"`
	FontSize        *float64   `json:"font_size"`
	BackgroundColor *string    `json:"background_color"`
	TextAlignment   *string    `json:"text_alignment"`
	Ranges          []Range    `json:"ranges"`
	CreatedAt       time.Time  `json:"created_at"`
	DeletedAt       *time.Time `json:"deleted_at"`
}

// Sheet is the hydrated aggregate: latest metadata, its snapshot history and
// the latest snapshot of every cell.
type Sheet struct {
	ID             uuid.UUID   `json:"id"`
	OwnerID        string      `json:"external_user_id"`
	CreatedAt      time.Time   `json:"created_at"`
	DeletedAt      *time.Time  `json:"deleted_at"`
	Latest         Snapshot    `json:"snapshot"`
	Snapshots      []Snapshot  `json:"snapshots"`
	Cells          []cell.Cell `json:"cells"`
	Formats        []Format    `json:"formats"`
	TotalCellCount int         `json:"total_cell_count"`
}

// Summary is the list view of a sheet. Cells holds at most
// MaxSummaryCells entries while TotalCellCount is exact.
type Summary struct {
	ID             uuid.UUID   `json:"id"`
	OwnerID        string      `json:"external_user_id"`
	CreatedAt      time.Time   `json:"created_at"`
	Latest         Snapshot    `json:"snapshot"`
	Cells          []cell.Cell `json:"cells"`
	Formats        []Format    `json:"formats"`
	TotalCellCount int         `json:"total_cell_count"`
}

// MaxSummaryCells bounds the cells embedded in a Summary.
const MaxSummaryCells = 100
