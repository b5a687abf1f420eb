package export

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/ryanbastic/go-sheetstore/internal/blob"
	"github.com/ryanbastic/go-sheetstore/internal/cell"
	"github.com/ryanbastic/go-sheetstore/internal/sheet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func openWorkbook(t *testing.T, data []byte) *excelize.File {
	t.Helper()
	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func TestWorksheetName(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Q1 Report", "Q1 Report"},
		{"", "Sheet1"},
		{"   ", "Sheet1"},
		{"a/b:c[d]*?", "abcd"},
		{"'quoted'", "quoted"},
		{strings.Repeat("x", 40), strings.Repeat("x", 31)},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, WorksheetName(tt.in), tt.in)
	}
}

func TestBuildWorkbook_WritesCells(t *testing.T) {
	data, err := BuildWorkbook(Request{
		Title: "Q1 Report",
		Cells: []Cell{
			{Column: 1, Row: 1, Type: "text", Value: "Revenue"},
			{Column: 2, Row: 1, Type: "number", Value: "1200.5"},
			{Column: 28, Row: 3, Type: "text", Value: "far"},
			{Column: 1, Row: 2, Type: "number", Value: "n/a"},
		},
	})
	require.NoError(t, err)

	f := openWorkbook(t, data)
	assert.Equal(t, []string{"Q1 Report"}, f.GetSheetList())

	v, err := f.GetCellValue("Q1 Report", "A1")
	require.NoError(t, err)
	assert.Equal(t, "Revenue", v)

	v, err = f.GetCellValue("Q1 Report", "B1")
	require.NoError(t, err)
	assert.Equal(t, "1200.5", v)
	typ, err := f.GetCellType("Q1 Report", "B1")
	require.NoError(t, err)
	assert.NotEqual(t, excelize.CellTypeSharedString, typ, "numbers stay numeric")

	v, err = f.GetCellValue("Q1 Report", "AB3")
	require.NoError(t, err)
	assert.Equal(t, "far", v)

	v, err = f.GetCellValue("Q1 Report", "A2")
	require.NoError(t, err)
	assert.Equal(t, "n/a", v, "unparseable numbers are kept as text")
}

func TestBuildWorkbook_OutsideGridIsUnrenderable(t *testing.T) {
	_, err := BuildWorkbook(Request{
		Title: "wide",
		Cells: []Cell{{Column: cell.MaxColumn + 1, Row: 1, Type: "text", Value: "x"}},
	})
	assert.ErrorIs(t, err, ErrUnrenderable)

	_, err = BuildWorkbook(Request{
		Title: "tall",
		Cells: []Cell{{Column: 1, Row: cell.MaxRow + 1, Type: "text", Value: "x"}},
	})
	assert.ErrorIs(t, err, ErrUnrenderable)

	_, err = BuildWorkbook(Request{
		Title: "edge",
		Cells: []Cell{{Column: cell.MaxColumn, Row: cell.MaxRow, Type: "text", Value: "corner"}},
	})
	assert.NoError(t, err)
}

func TestBuildWorkbook_AppliesFormats(t *testing.T) {
	size := 14.0
	data, err := BuildWorkbook(Request{
		Title: "styled",
		Cells: []Cell{{Column: 1, Row: 1, Type: "text", Value: "x"}},
		Formats: []sheet.Format{{
			ID:              uuid.New(),
			FontName:        cell.Str("Arial"),
			FontSize:        &size,
			BackgroundColor: cell.Str("#FFEE00"),
			TextAlignment:   cell.Str("center"),
			Ranges:          []sheet.Range{{StartColumn: 1, StartRow: 1, EndColumn: 2, EndRow: 2}},
		}},
	})
	require.NoError(t, err)

	f := openWorkbook(t, data)
	id, err := f.GetCellStyle("styled", "B2")
	require.NoError(t, err)
	require.NotZero(t, id)

	style, err := f.GetStyle(id)
	require.NoError(t, err)
	require.NotNil(t, style.Font)
	assert.Equal(t, "Arial", style.Font.Family)
	assert.InDelta(t, 14.0, style.Font.Size, 0.001)
	require.NotNil(t, style.Alignment)
	assert.Equal(t, "center", style.Alignment.Horizontal)

	outside, err := f.GetCellStyle("styled", "C3")
	require.NoError(t, err)
	assert.Zero(t, outside)
}

func TestExcelProvider_StoresArtifact(t *testing.T) {
	dir := t.TempDir()
	blobs, err := blob.NewFileStore(dir, "http://files.local")
	require.NoError(t, err)
	p := NewExcelProvider(blobs)
	assert.Equal(t, sheet.ProviderExcel, p.Name())

	art, err := p.Render(context.Background(), Request{
		Title: "Q1",
		Cells: []Cell{{Column: 1, Row: 1, Type: "text", Value: "hello"}},
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(art.ID, "excel/"))
	assert.True(t, strings.HasSuffix(art.ID, ".xlsx"))
	assert.Equal(t, "http://files.local/"+art.ID, art.URL)

	data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(art.ID)))
	require.NoError(t, err)
	v, err := openWorkbook(t, data).GetCellValue("Q1", "A1")
	require.NoError(t, err)
	assert.Equal(t, "hello", v)
}

func TestReadWorkbook(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	_, err := f.NewSheet("Data")
	require.NoError(t, err)
	require.NoError(t, f.SetCellValue("Data", "A1", "name"))
	require.NoError(t, f.SetCellValue("Data", "C1", "age"))
	require.NoError(t, f.SetCellValue("Data", "A2", "kim"))
	require.NoError(t, f.SetCellValue("Data", "C2", 31))
	require.NoError(t, f.SetCellValue("Sheet1", "B5", "first sheet"))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	data := buf.Bytes()

	names, err := ListWorksheets(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, []string{"Sheet1", "Data"}, names)

	writes, err := ReadWorkbook(bytes.NewReader(data), "Data")
	require.NoError(t, err)
	got := map[cell.Position]string{}
	for _, w := range writes {
		assert.Equal(t, "text", w.Type)
		got[w.Position] = *w.Value
	}
	assert.Equal(t, map[cell.Position]string{
		{Column: 1, Row: 1}: "name",
		{Column: 3, Row: 1}: "age",
		{Column: 1, Row: 2}: "kim",
		{Column: 3, Row: 2}: "31",
	}, got)

	writes, err = ReadWorkbook(bytes.NewReader(data), "")
	require.NoError(t, err)
	require.Len(t, writes, 1)
	assert.Equal(t, cell.Position{Column: 2, Row: 5}, writes[0].Position)

	_, err = ReadWorkbook(bytes.NewReader(data), "Missing")
	assert.ErrorIs(t, err, ErrWorksheetNotFound)
}

func TestReadWorkbook_NotAWorkbook(t *testing.T) {
	_, err := ReadWorkbook(strings.NewReader("plain text"), "")
	assert.Error(t, err)
}
