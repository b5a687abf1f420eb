package spreadsheet

import (
	"errors"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/ryanbastic/go-sheetstore/internal/cell"
	"github.com/ryanbastic/go-sheetstore/internal/sheet"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateStruct runs the struct tags of v and reports the first violation
// as a *ValidationError whose field is prefix joined with the json name.
func validateStruct(prefix string, v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) || len(errs) == 0 {
		return err
	}
	fe := errs[0]
	field := fe.Field()
	if prefix != "" {
		field = prefix + "." + field
	}
	return &ValidationError{Field: field, Reason: describe(fe)}
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		if fe.Kind() == reflect.String || fe.Kind() == reflect.Slice {
			return "must have at least " + fe.Param() + " item(s)"
		}
		return "must be at least " + fe.Param()
	case "max":
		if fe.Kind() == reflect.String {
			return "must be at most " + fe.Param() + " characters"
		}
		return "must be at most " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "gtefield":
		return "must not be less than " + fe.Param()
	case "oneof":
		return "must be one of: " + fe.Param()
	case "hexcolor":
		return "must be a hex color"
	default:
		return "failed " + fe.Tag() + " check"
	}
}

func validateOwner(o sheet.Owner) error {
	if o.ID == "" {
		return invalid("external_user_id", "is required")
	}
	if o.Secret == "" {
		return invalid("external_user_secret", "is required")
	}
	return nil
}

// validateWrites checks coordinates and contents and rejects a position
// that appears twice in one batch.
func validateWrites(writes []cell.Write) error {
	seen := make(map[cell.Position]int, len(writes))
	for i, w := range writes {
		prefix := "cells[" + strconv.Itoa(i) + "]"
		if err := validateStruct(prefix, w); err != nil {
			return err
		}
		if j, dup := seen[w.Position]; dup {
			return invalid(prefix, "duplicates cells[%d] at column %d row %d", j, w.Column, w.Row)
		}
		seen[w.Position] = i
	}
	return nil
}
