package sheet

import (
	"errors"
	"testing"

	"github.com/ryanbastic/go-sheetstore/internal/cell"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOwner_Matches(t *testing.T) {
	owner := Owner{ID: "user-1", Secret: "s3cret"}
	digest := owner.SecretDigest()

	assert.True(t, owner.Matches("user-1", digest))
	assert.False(t, owner.Matches("user-2", digest))
	assert.False(t, Owner{ID: "user-1", Secret: "other"}.Matches("user-1", digest))
	assert.NotContains(t, digest, "s3cret")
	assert.Len(t, digest, 64)
}

func TestParseSort(t *testing.T) {
	tests := []struct {
		in   string
		want Sort
	}{
		{"", DefaultSort},
		{"created_at", Sort{Column: SortCreatedAt}},
		{"+title", Sort{Column: SortTitle}},
		{"-updated_at", Sort{Column: SortUpdatedAt, Desc: true}},
	}
	for _, tt := range tests {
		got, err := ParseSort(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestParseSort_RejectsUnknownKey(t *testing.T) {
	for _, in := range []string{"password", "-secret_digest", "+", "title;drop"} {
		_, err := ParseSort(in)
		assert.True(t, errors.Is(err, ErrUnsortable), in)
	}
}

func TestSort_String(t *testing.T) {
	assert.Equal(t, "-created_at", DefaultSort.String())
	assert.Equal(t, "+title", Sort{Column: SortTitle}.String())
}

func TestNewPagination(t *testing.T) {
	assert.Equal(t, Pagination{Current: 1, Limit: 10, Records: 0, Pages: 0}, NewPagination(1, 10, 0))
	assert.Equal(t, Pagination{Current: 2, Limit: 10, Records: 21, Pages: 3}, NewPagination(2, 10, 21))
	assert.Equal(t, 1, NewPagination(1, 10, 10).Pages)
}

func TestRange_Contains(t *testing.T) {
	r := Range{StartColumn: 2, StartRow: 2, EndColumn: 3, EndRow: 4}
	assert.True(t, r.Contains(cell.Position{Column: 2, Row: 2}))
	assert.True(t, r.Contains(cell.Position{Column: 3, Row: 4}))
	assert.False(t, r.Contains(cell.Position{Column: 1, Row: 2}))
	assert.False(t, r.Contains(cell.Position{Column: 3, Row: 5}))
}
