package sheet

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Sortable columns.
const (
	SortCreatedAt = "created_at"
	SortUpdatedAt = "updated_at"
	SortTitle     = "title"
)

var sortable = map[string]bool{
	SortCreatedAt: true,
	SortUpdatedAt: true,
	SortTitle:     true,
}

// ErrUnsortable is returned by ParseSort for keys outside the allow-list.
var ErrUnsortable = errors.New("unsupported sort key")

// Sort orders a sheet listing.
type Sort struct {
	Column string
	Desc   bool
}

// DefaultSort lists the newest sheets first.
var DefaultSort = Sort{Column: SortCreatedAt, Desc: true}

// ParseSort accepts "column", "+column" or "-column". An empty string yields
// DefaultSort.
func ParseSort(s string) (Sort, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultSort, nil
	}
	var out Sort
	switch s[0] {
	case '-':
		out.Desc = true
		s = s[1:]
	case '+':
		s = s[1:]
	}
	if !sortable[s] {
		return Sort{}, fmt.Errorf("%q: %w", s, ErrUnsortable)
	}
	out.Column = s
	return out, nil
}

func (s Sort) String() string {
	if s.Desc {
		return "-" + s.Column
	}
	return "+" + s.Column
}

// Search narrows a listing. Nil fields are not applied; all applied
// predicates are AND-combined with the owner match.
type Search struct {
	IDs                 []uuid.UUID `json:"ids,omitempty"`
	TitleContains       *string     `json:"title,omitempty"`
	DescriptionContains *string     `json:"description,omitempty"`
	MinimumCellCount    *int        `json:"minimum_cell_count,omitempty"`
}

// Pagination describes the page returned.
type Pagination struct {
	Current int `json:"current"`
	Limit   int `json:"limit"`
	Records int `json:"records"`
	Pages   int `json:"pages"`
}

// Page is one page of a listing.
type Page[T any] struct {
	Pagination Pagination `json:"pagination"`
	Data       []T        `json:"data"`
}

// NewPagination derives the page count from the total record count.
func NewPagination(current, limit, records int) Pagination {
	pages := 0
	if limit > 0 {
		pages = (records + limit - 1) / limit
	}
	return Pagination{Current: current, Limit: limit, Records: records, Pages: pages}
}
