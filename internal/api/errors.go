package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/ryanbastic/go-sheetstore/internal/spreadsheet"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Error("failed to encode JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// statusError maps service errors onto HTTP problems. Anything it does not
// recognise is logged and reported as a 500 without details.
func statusError(logger *slog.Logger, op string, err error) error {
	var (
		verr *spreadsheet.ValidationError
		perr *spreadsheet.ProviderError
	)
	switch {
	case errors.As(err, &verr):
		return huma.Error400BadRequest(verr.Error())
	case errors.Is(err, spreadsheet.ErrNotFound):
		return huma.Error404NotFound(err.Error())
	case errors.Is(err, spreadsheet.ErrForbidden):
		return huma.Error403Forbidden("access denied")
	case errors.As(err, &perr):
		if perr.Timeout {
			return huma.Error504GatewayTimeout(perr.Error())
		}
		return huma.Error502BadGateway(perr.Error())
	case errors.Is(err, context.Canceled):
		return huma.Error503ServiceUnavailable("request cancelled")
	}
	logger.Error(op+" failed", "error", err)
	return huma.Error500InternalServerError(op + " failed")
}
