package docpdf

import (
	"bytes"
	"context"
	"errors"

	"github.com/goliatone/go-docgen/docgen"
)

// RenderRequest contains the mounted document and the conversion settings.
type RenderRequest struct {
	HTML       []byte
	SourcePath string
	Settings   docgen.RenderSettings
}

// Engine renders HTML content into PDF bytes.
type Engine interface {
	Render(ctx context.Context, req RenderRequest) ([]byte, error)
}

// EngineFunc adapts a function to an Engine.
type EngineFunc func(ctx context.Context, req RenderRequest) ([]byte, error)

func (f EngineFunc) Render(ctx context.Context, req RenderRequest) ([]byte, error) {
	if f == nil {
		return nil, errors.New("pdf engine func is nil")
	}
	return f(ctx, req)
}

var pdfMagic = []byte("%PDF")

// IsPDF reports whether data starts with the PDF header.
func IsPDF(data []byte) bool {
	return bytes.HasPrefix(data, pdfMagic)
}

func settingsOrDefault(settings docgen.RenderSettings) docgen.RenderSettings {
	defaults := docgen.DefaultRenderSettings()
	if settings.Margin == "" {
		settings.Margin = defaults.Margin
	}
	if settings.PageSize == "" {
		settings.PageSize = defaults.PageSize
	}
	if settings.RasterScale <= 0 {
		settings.RasterScale = defaults.RasterScale
	}
	if settings.JPEGQuality <= 0 {
		settings.JPEGQuality = defaults.JPEGQuality
	}
	return settings
}
