package dochttp

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/goliatone/go-docgen/docgen"
)

// DefaultMaxBodyBytes bounds request bodies.
const DefaultMaxBodyBytes int64 = 4 * 1024 * 1024

// InvoiceRequest is the body of the invoice routes.
type InvoiceRequest struct {
	Document docgen.InvoiceDocument `json:"document"`
	Palette  docgen.ThemePalette    `json:"palette"`
	XML      string                 `json:"xml,omitempty"`
}

// CreditNoteRequest is the body of the credit-note routes.
type CreditNoteRequest struct {
	Document docgen.CreditNoteDocument `json:"document"`
	Palette  docgen.ThemePalette       `json:"palette"`
	XML      string                    `json:"xml,omitempty"`
}

func decodeJSON(r *http.Request, maxBytes int64, dst any) error {
	if r.Body == nil {
		return docgen.NewError(docgen.KindValidation, "request body is required", nil)
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodyBytes
	}
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBytes+1))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return docgen.NewError(docgen.KindValidation, "request body is required", err)
		}
		return docgen.NewError(docgen.KindValidation, "invalid request body", err)
	}
	if decoder.More() {
		return docgen.NewError(docgen.KindValidation, "request body must hold a single object", nil)
	}
	return nil
}

func validateStruct(v *validator.Validate, value any) error {
	err := v.Struct(value)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		fields := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
		}
		return docgen.NewError(docgen.KindValidation, "invalid document: "+strings.Join(fields, ", "), err)
	}
	return docgen.NewError(docgen.KindValidation, "invalid document", err)
}

func requireXML(xml string) error {
	if strings.TrimSpace(xml) == "" {
		return docgen.NewError(docgen.KindValidation, "xml is required to build a package", nil)
	}
	return nil
}
