package api

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"
	"github.com/ryanbastic/go-sheetstore/internal/cell"
	"github.com/ryanbastic/go-sheetstore/internal/export"
	"github.com/ryanbastic/go-sheetstore/internal/sheet"
	"github.com/ryanbastic/go-sheetstore/internal/spreadsheet"
)

// --- Huma Input/Output types ---

// OwnerHeaders carries the caller identity on every sheet operation.
type OwnerHeaders struct {
	OwnerID     string `header:"X-External-User-Id" doc:"External user id of the sheet owner" required:"true" minLength:"1"`
	OwnerSecret string `header:"X-External-User-Secret" doc:"Secret chosen by the owner when the sheet was created" required:"true" minLength:"1"`
}

func (h OwnerHeaders) owner() sheet.Owner {
	return sheet.Owner{ID: h.OwnerID, Secret: h.OwnerSecret}
}

type CellBody struct {
	Column int     `json:"column" doc:"1-based column" minimum:"1" maximum:"16384"`
	Row    int     `json:"row" doc:"1-based row" minimum:"1" maximum:"1048576"`
	Type   string  `json:"type" doc:"Value kind" example:"text" minLength:"1" maxLength:"32"`
	Value  *string `json:"value" doc:"Cell value; null clears the cell" nullable:"true"`
}

func toWrites(in []CellBody) []cell.Write {
	out := make([]cell.Write, len(in))
	for i, c := range in {
		out[i] = cell.Write{
			Position: cell.Position{Column: c.Column, Row: c.Row},
			Content:  cell.Content{Type: c.Type, Value: c.Value},
		}
	}
	return out
}

type CreateSheetBody struct {
	Title       string     `json:"title" doc:"Sheet title" minLength:"1" maxLength:"255"`
	Description string     `json:"description,omitempty" doc:"Sheet description" maxLength:"4096"`
	Cells       []CellBody `json:"cells,omitempty" doc:"Initial cells"`
}

type CreateSheetInput struct {
	OwnerHeaders
	Body CreateSheetBody
}

type SheetOutput struct {
	Body *sheet.Sheet
}

type SearchBody struct {
	IDs              []uuid.UUID `json:"ids,omitempty" doc:"Only these sheets"`
	Title            *string     `json:"title,omitempty" doc:"Latest title contains"`
	Description      *string     `json:"description,omitempty" doc:"Latest description contains"`
	MinimumCellCount *int        `json:"minimum_cell_count,omitempty" doc:"At least this many cells" minimum:"0"`
}

type ListSheetsInput struct {
	OwnerHeaders
	Sort  string      `query:"sort" doc:"created_at, updated_at or title, optionally prefixed with + or -" example:"-created_at"`
	Page  int         `query:"page" doc:"1-based page number" minimum:"0"`
	Limit int         `query:"limit" doc:"Page size, at most 100" minimum:"0" maximum:"100"`
	Body  *SearchBody `required:"false"`
}

type ListSheetsOutput struct {
	Body *sheet.Page[sheet.Summary]
}

type SheetPathInput struct {
	OwnerHeaders
	SheetID string `path:"sheet_id" doc:"Sheet UUID" format:"uuid"`
}

type UpdateSheetInput struct {
	OwnerHeaders
	SheetID string `path:"sheet_id" doc:"Sheet UUID" format:"uuid"`
	Body    struct {
		Title       *string `json:"title,omitempty" doc:"New title" minLength:"1" maxLength:"255"`
		Description *string `json:"description,omitempty" doc:"New description" maxLength:"4096"`
	}
}

type SnapshotOutput struct {
	Body *sheet.Snapshot
}

type InsertCellsInput struct {
	OwnerHeaders
	SheetID string `path:"sheet_id" doc:"Sheet UUID" format:"uuid"`
	Body    struct {
		Cells []CellBody `json:"cells" doc:"Cells to write" minItems:"1"`
	}
}

type CellResultBody struct {
	Column  int    `json:"column"`
	Row     int    `json:"row"`
	Outcome string `json:"outcome" enum:"created,updated,unchanged,failed"`
	Error   string `json:"error,omitempty"`
}

type InsertCellsOutput struct {
	Body struct {
		Sheet   *sheet.Sheet     `json:"sheet" nullable:"true" doc:"Sheet after the writes; null when it could not be reloaded"`
		Results []CellResultBody `json:"results"`
		Warning string           `json:"warning,omitempty" doc:"Set when cells were written but the sheet version was not recorded"`
	}
}

type CellHistoryInput struct {
	OwnerHeaders
	SheetID string `path:"sheet_id" doc:"Sheet UUID" format:"uuid"`
	Column  int    `path:"column" doc:"1-based column" minimum:"1" maximum:"16384"`
	Row     int    `path:"row" doc:"1-based row" minimum:"1" maximum:"1048576"`
}

type CellOutput struct {
	Body *cell.Cell
}

type ExportSheetInput struct {
	OwnerHeaders
	SheetID    string `path:"sheet_id" doc:"Sheet UUID" format:"uuid"`
	SnapshotID string `path:"snapshot_id" doc:"Sheet snapshot UUID" format:"uuid"`
	Body       struct {
		Provider    string              `json:"provider" doc:"Export target" example:"excel" minLength:"1"`
		Credentials *export.Credentials `json:"credentials,omitempty" doc:"Provider credentials, for google_sheets"`
	}
}

type ExportOutput struct {
	Body *spreadsheet.ExportResult
}

type ListExportsOutput struct {
	Body []sheet.Export
}

type RangeBody struct {
	StartColumn int `json:"start_column" minimum:"1" maximum:"16384"`
	StartRow    int `json:"start_row" minimum:"1" maximum:"1048576"`
	EndColumn   int `json:"end_column" minimum:"1" maximum:"16384"`
	EndRow      int `json:"end_row" minimum:"1" maximum:"1048576"`
}

type AddFormatInput struct {
	OwnerHeaders
	SheetID string `path:"sheet_id" doc:"Sheet UUID" format:"uuid"`
	Body    struct {
		FontName        *string     `json:"font_name,omitempty" doc:"Font family" example:"Arial"`
		FontSize        *float64    `json:"font_size,omitempty" doc:"Font size in points"`
		BackgroundColor *string     `json:"background_color,omitempty" doc:"Fill color" example:"#FFEE00"`
		TextAlignment   *string     `json:"text_alignment,omitempty" doc:"Horizontal alignment" enum:"left,center,right,justify"`
		Ranges          []RangeBody `json:"ranges" doc:"Styled ranges" minItems:"1"`
	}
}

type FormatOutput struct {
	Body *sheet.Format
}

type RemoveFormatInput struct {
	OwnerHeaders
	SheetID  string `path:"sheet_id" doc:"Sheet UUID" format:"uuid"`
	FormatID string `path:"format_id" doc:"Format UUID" format:"uuid"`
}

type ImportWorkbookInput struct {
	OwnerHeaders
	Body struct {
		Title       string `json:"title,omitempty" doc:"Sheet title; defaults to the worksheet name" maxLength:"255"`
		Description string `json:"description,omitempty" doc:"Sheet description" maxLength:"4096"`
		Worksheet   string `json:"worksheet,omitempty" doc:"Worksheet to import; defaults to the first"`
		Workbook    []byte `json:"workbook" doc:"Base64 encoded xlsx file"`
	}
}

// --- Handler ---

type SheetHandler struct {
	svc    *spreadsheet.Service
	logger *slog.Logger
}

func NewSheetHandler(svc *spreadsheet.Service, logger *slog.Logger) *SheetHandler {
	return &SheetHandler{svc: svc, logger: logger}
}

func registerSheetRoutes(api huma.API, h *SheetHandler) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-sheet",
		Method:        http.MethodPost,
		Path:          "/v1/sheets",
		Summary:       "Create a sheet",
		Tags:          []string{"sheets"},
		DefaultStatus: http.StatusCreated,
	}, h.CreateSheet)

	huma.Register(api, huma.Operation{
		OperationID: "list-sheets",
		Method:      http.MethodPatch,
		Path:        "/v1/sheets",
		Summary:     "Search the caller's sheets",
		Tags:        []string{"sheets"},
	}, h.ListSheets)

	huma.Register(api, huma.Operation{
		OperationID:   "import-workbook",
		Method:        http.MethodPost,
		Path:          "/v1/sheets/import",
		Summary:       "Create a sheet from an xlsx worksheet",
		Tags:          []string{"sheets"},
		DefaultStatus: http.StatusCreated,
	}, h.ImportWorkbook)

	huma.Register(api, huma.Operation{
		OperationID: "get-sheet",
		Method:      http.MethodGet,
		Path:        "/v1/sheets/{sheet_id}",
		Summary:     "Get the latest state of a sheet",
		Tags:        []string{"sheets"},
	}, h.GetSheet)

	huma.Register(api, huma.Operation{
		OperationID: "update-sheet",
		Method:      http.MethodPut,
		Path:        "/v1/sheets/{sheet_id}",
		Summary:     "Update sheet metadata",
		Tags:        []string{"sheets"},
	}, h.UpdateSheet)

	huma.Register(api, huma.Operation{
		OperationID:   "remove-sheet",
		Method:        http.MethodDelete,
		Path:          "/v1/sheets/{sheet_id}",
		Summary:       "Remove a sheet",
		Tags:          []string{"sheets"},
		DefaultStatus: http.StatusNoContent,
	}, h.RemoveSheet)

	huma.Register(api, huma.Operation{
		OperationID: "insert-cells",
		Method:      http.MethodPost,
		Path:        "/v1/sheets/{sheet_id}/cells",
		Summary:     "Write cells",
		Tags:        []string{"cells"},
	}, h.InsertCells)

	huma.Register(api, huma.Operation{
		OperationID: "cell-history",
		Method:      http.MethodGet,
		Path:        "/v1/sheets/{sheet_id}/cells/{column}/{row}",
		Summary:     "Get every version of a cell",
		Tags:        []string{"cells"},
	}, h.CellHistory)

	huma.Register(api, huma.Operation{
		OperationID:   "export-sheet",
		Method:        http.MethodPost,
		Path:          "/v1/sheets/{sheet_id}/snapshots/{snapshot_id}/exports",
		Summary:       "Export a sheet snapshot",
		Tags:          []string{"exports"},
		DefaultStatus: http.StatusCreated,
	}, h.ExportSheet)

	huma.Register(api, huma.Operation{
		OperationID: "list-exports",
		Method:      http.MethodGet,
		Path:        "/v1/sheets/{sheet_id}/exports",
		Summary:     "List exports of a sheet",
		Tags:        []string{"exports"},
	}, h.ListExports)

	huma.Register(api, huma.Operation{
		OperationID:   "add-format",
		Method:        http.MethodPost,
		Path:          "/v1/sheets/{sheet_id}/formats",
		Summary:       "Style ranges of a sheet",
		Tags:          []string{"formats"},
		DefaultStatus: http.StatusCreated,
	}, h.AddFormat)

	huma.Register(api, huma.Operation{
		OperationID:   "remove-format",
		Method:        http.MethodDelete,
		Path:          "/v1/sheets/{sheet_id}/formats/{format_id}",
		Summary:       "Remove a format",
		Tags:          []string{"formats"},
		DefaultStatus: http.StatusNoContent,
	}, h.RemoveFormat)
}

func parseID(name, raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, huma.Error400BadRequest("invalid " + name)
	}
	return id, nil
}

func (h *SheetHandler) CreateSheet(ctx context.Context, input *CreateSheetInput) (*SheetOutput, error) {
	meta := sheet.Metadata{Title: input.Body.Title, Description: input.Body.Description}
	sh, err := h.svc.Create(ctx, input.owner(), meta, toWrites(input.Body.Cells))
	if err != nil {
		return nil, statusError(h.logger, "create sheet", err)
	}
	return &SheetOutput{Body: sh}, nil
}

func (h *SheetHandler) ListSheets(ctx context.Context, input *ListSheetsInput) (*ListSheetsOutput, error) {
	q := spreadsheet.IndexQuery{Sort: input.Sort, Page: input.Page, Limit: input.Limit}
	if b := input.Body; b != nil {
		q.Search = sheet.Search{
			IDs:                 b.IDs,
			TitleContains:       b.Title,
			DescriptionContains: b.Description,
			MinimumCellCount:    b.MinimumCellCount,
		}
	}
	page, err := h.svc.Index(ctx, input.owner(), q)
	if err != nil {
		return nil, statusError(h.logger, "list sheets", err)
	}
	return &ListSheetsOutput{Body: page}, nil
}

func (h *SheetHandler) GetSheet(ctx context.Context, input *SheetPathInput) (*SheetOutput, error) {
	id, err := parseID("sheet_id", input.SheetID)
	if err != nil {
		return nil, err
	}
	sh, err := h.svc.At(ctx, input.owner(), id)
	if err != nil {
		return nil, statusError(h.logger, "get sheet", err)
	}
	return &SheetOutput{Body: sh}, nil
}

func (h *SheetHandler) UpdateSheet(ctx context.Context, input *UpdateSheetInput) (*SnapshotOutput, error) {
	id, err := parseID("sheet_id", input.SheetID)
	if err != nil {
		return nil, err
	}
	snap, err := h.svc.UpdateMetadata(ctx, input.owner(), id, spreadsheet.MetadataPatch{
		Title:       input.Body.Title,
		Description: input.Body.Description,
	})
	if err != nil {
		return nil, statusError(h.logger, "update sheet", err)
	}
	return &SnapshotOutput{Body: snap}, nil
}

func (h *SheetHandler) RemoveSheet(ctx context.Context, input *SheetPathInput) (*struct{}, error) {
	id, err := parseID("sheet_id", input.SheetID)
	if err != nil {
		return nil, err
	}
	if err := h.svc.Remove(ctx, input.owner(), id); err != nil {
		return nil, statusError(h.logger, "remove sheet", err)
	}
	return nil, nil
}

func (h *SheetHandler) InsertCells(ctx context.Context, input *InsertCellsInput) (*InsertCellsOutput, error) {
	id, err := parseID("sheet_id", input.SheetID)
	if err != nil {
		return nil, err
	}
	sh, results, err := h.svc.InsertCells(ctx, input.owner(), id, toWrites(input.Body.Cells))
	if err != nil && results == nil {
		return nil, statusError(h.logger, "insert cells", err)
	}

	out := &InsertCellsOutput{}
	out.Body.Sheet = sh
	if err != nil {
		// Cells were written; report their outcomes.
		h.logger.Error("insert cells finished partially", "sheet_id", id, "error", err)
		out.Body.Warning = "cells were written but the sheet version could not be recorded"
	}
	out.Body.Results = make([]CellResultBody, len(results))
	for i, r := range results {
		out.Body.Results[i] = CellResultBody{Column: r.Column, Row: r.Row, Outcome: string(r.Outcome)}
		if r.Err != nil {
			out.Body.Results[i].Error = r.Err.Error()
		}
	}
	return out, nil
}

func (h *SheetHandler) CellHistory(ctx context.Context, input *CellHistoryInput) (*CellOutput, error) {
	id, err := parseID("sheet_id", input.SheetID)
	if err != nil {
		return nil, err
	}
	c, err := h.svc.CellHistory(ctx, input.owner(), id, cell.Position{Column: input.Column, Row: input.Row})
	if err != nil {
		return nil, statusError(h.logger, "cell history", err)
	}
	return &CellOutput{Body: c}, nil
}

func (h *SheetHandler) ExportSheet(ctx context.Context, input *ExportSheetInput) (*ExportOutput, error) {
	id, err := parseID("sheet_id", input.SheetID)
	if err != nil {
		return nil, err
	}
	snapshotID, err := parseID("snapshot_id", input.SnapshotID)
	if err != nil {
		return nil, err
	}
	var creds export.Credentials
	if input.Body.Credentials != nil {
		creds = *input.Body.Credentials
	}
	res, err := h.svc.Export(ctx, input.owner(), id, snapshotID, input.Body.Provider, creds)
	if err != nil {
		return nil, statusError(h.logger, "export sheet", err)
	}
	return &ExportOutput{Body: res}, nil
}

func (h *SheetHandler) ListExports(ctx context.Context, input *SheetPathInput) (*ListExportsOutput, error) {
	id, err := parseID("sheet_id", input.SheetID)
	if err != nil {
		return nil, err
	}
	exports, err := h.svc.Exports(ctx, input.owner(), id)
	if err != nil {
		return nil, statusError(h.logger, "list exports", err)
	}
	return &ListExportsOutput{Body: exports}, nil
}

func (h *SheetHandler) AddFormat(ctx context.Context, input *AddFormatInput) (*FormatOutput, error) {
	id, err := parseID("sheet_id", input.SheetID)
	if err != nil {
		return nil, err
	}
	in := spreadsheet.FormatInput{
		FontName:        input.Body.FontName,
		FontSize:        input.Body.FontSize,
		BackgroundColor: input.Body.BackgroundColor,
		TextAlignment:   input.Body.TextAlignment,
		Ranges:          make([]sheet.Range, len(input.Body.Ranges)),
	}
	for i, r := range input.Body.Ranges {
		in.Ranges[i] = sheet.Range(r)
	}
	f, err := h.svc.AddFormat(ctx, input.owner(), id, in)
	if err != nil {
		return nil, statusError(h.logger, "add format", err)
	}
	return &FormatOutput{Body: f}, nil
}

func (h *SheetHandler) RemoveFormat(ctx context.Context, input *RemoveFormatInput) (*struct{}, error) {
	id, err := parseID("sheet_id", input.SheetID)
	if err != nil {
		return nil, err
	}
	formatID, err := parseID("format_id", input.FormatID)
	if err != nil {
		return nil, err
	}
	if err := h.svc.RemoveFormat(ctx, input.owner(), id, formatID); err != nil {
		return nil, statusError(h.logger, "remove format", err)
	}
	return nil, nil
}

func (h *SheetHandler) ImportWorkbook(ctx context.Context, input *ImportWorkbookInput) (*SheetOutput, error) {
	meta := sheet.Metadata{Title: input.Body.Title, Description: input.Body.Description}
	sh, err := h.svc.ImportWorkbook(ctx, input.owner(), meta, bytes.NewReader(input.Body.Workbook), input.Body.Worksheet)
	if err != nil {
		return nil, statusError(h.logger, "import workbook", err)
	}
	return &SheetOutput{Body: sh}, nil
}
