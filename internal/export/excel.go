package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/ryanbastic/go-sheetstore/internal/blob"
	"github.com/ryanbastic/go-sheetstore/internal/cell"
	"github.com/ryanbastic/go-sheetstore/internal/sheet"
	"github.com/xuri/excelize/v2"
)

const (
	xlsxContentType  = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	defaultSheetName = "Sheet1"
	maxSheetName     = 31
)

// ErrWorksheetNotFound is returned by ReadWorkbook for an unknown sheet name.
var ErrWorksheetNotFound = errors.New("worksheet not found")

// ExcelProvider renders an .xlsx workbook and stores it in a blob store.
// The artifact id is the blob key.
type ExcelProvider struct {
	blobs blob.Store
}

func NewExcelProvider(blobs blob.Store) *ExcelProvider {
	return &ExcelProvider{blobs: blobs}
}

func (p *ExcelProvider) Name() string { return sheet.ProviderExcel }

func (p *ExcelProvider) Render(ctx context.Context, req Request) (Artifact, error) {
	data, err := BuildWorkbook(req)
	if err != nil {
		return Artifact{}, err
	}
	key := "excel/" + uuid.NewString() + ".xlsx"
	url, err := p.blobs.Put(ctx, key, data, xlsxContentType)
	if err != nil {
		return Artifact{}, fmt.Errorf("store workbook: %w", err)
	}
	return Artifact{ID: key, URL: url}, nil
}

// WorksheetName turns a sheet title into a valid Excel worksheet name.
func WorksheetName(title string) string {
	name := strings.Map(func(r rune) rune {
		if strings.ContainsRune(`[]:*?/\`, r) {
			return -1
		}
		return r
	}, strings.TrimSpace(title))
	name = strings.Trim(name, "'")
	if r := []rune(name); len(r) > maxSheetName {
		name = string(r[:maxSheetName])
	}
	if name == "" {
		return defaultSheetName
	}
	return name
}

// BuildWorkbook writes the request cells into a single-sheet workbook and
// applies the live formats as cell styles.
func BuildWorkbook(req Request) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	name := WorksheetName(req.Title)
	if name != defaultSheetName {
		if err := f.SetSheetName(defaultSheetName, name); err != nil {
			return nil, fmt.Errorf("name worksheet: %w", err)
		}
	}

	for _, c := range req.Cells {
		ref, err := excelize.CoordinatesToCellName(c.Column, c.Row)
		if err != nil {
			return nil, fmt.Errorf("cell %d,%d: %w: %v", c.Column, c.Row, ErrUnrenderable, err)
		}
		if err := f.SetCellValue(name, ref, typedValue(c)); err != nil {
			return nil, fmt.Errorf("cell %s: %w", ref, err)
		}
	}

	for _, fm := range req.Formats {
		if err := applyFormat(f, name, fm); err != nil {
			return nil, fmt.Errorf("format %s: %w", fm.ID, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// typedValue keeps numbers and booleans native so spreadsheet formulas work
// on them. Anything unparseable stays text.
func typedValue(c Cell) any {
	switch c.Type {
	case "number":
		if v, err := strconv.ParseFloat(c.Value, 64); err == nil {
			return v
		}
	case "boolean":
		if v, err := strconv.ParseBool(c.Value); err == nil {
			return v
		}
	}
	return c.Value
}

func applyFormat(f *excelize.File, name string, fm sheet.Format) error {
	style := &excelize.Style{}
	if fm.FontName != nil || fm.FontSize != nil {
		style.Font = &excelize.Font{}
		if fm.FontName != nil {
			style.Font.Family = *fm.FontName
		}
		if fm.FontSize != nil {
			style.Font.Size = *fm.FontSize
		}
	}
	if fm.BackgroundColor != nil {
		style.Fill = excelize.Fill{
			Type:    "pattern",
			Pattern: 1,
			Color:   []string{strings.TrimPrefix(*fm.BackgroundColor, "#")},
		}
	}
	if fm.TextAlignment != nil {
		style.Alignment = &excelize.Alignment{Horizontal: *fm.TextAlignment}
	}

	id, err := f.NewStyle(style)
	if err != nil {
		return err
	}
	for _, r := range fm.Ranges {
		from, err := excelize.CoordinatesToCellName(r.StartColumn, r.StartRow)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrUnrenderable, err)
		}
		to, err := excelize.CoordinatesToCellName(r.EndColumn, r.EndRow)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrUnrenderable, err)
		}
		if err := f.SetCellStyle(name, from, to, id); err != nil {
			return err
		}
	}
	return nil
}

// ListWorksheets returns the worksheet names of an .xlsx workbook in order.
func ListWorksheets(r io.Reader) ([]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()
	return f.GetSheetList(), nil
}

// ReadWorkbook reads the non-empty cells of one worksheet as text writes.
// An empty sheetName selects the first worksheet.
func ReadWorkbook(r io.Reader, sheetName string) ([]cell.Write, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if sheetName == "" {
		if len(sheets) == 0 {
			return nil, ErrWorksheetNotFound
		}
		sheetName = sheets[0]
	} else if !slices.Contains(sheets, sheetName) {
		return nil, fmt.Errorf("%q: %w", sheetName, ErrWorksheetNotFound)
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}

	var writes []cell.Write
	for ri, row := range rows {
		for ci, v := range row {
			if v == "" {
				continue
			}
			writes = append(writes, cell.Write{
				Position: cell.Position{Column: ci + 1, Row: ri + 1},
				Content:  cell.Content{Type: "text", Value: cell.Str(v)},
			})
		}
	}
	return writes, nil
}
