package docpdf

import (
	"context"

	"github.com/goliatone/go-docgen/docgen"
)

// Rasterizer captures a mounted document as a single tall JPEG.
type Rasterizer interface {
	Rasterize(ctx context.Context, req RenderRequest) ([]byte, error)
}

// RasterizerFunc adapts a function to a Rasterizer.
type RasterizerFunc func(ctx context.Context, req RenderRequest) ([]byte, error)

func (f RasterizerFunc) Rasterize(ctx context.Context, req RenderRequest) ([]byte, error) {
	return f(ctx, req)
}

// PageBuilder paginates a captured image into a PDF.
type PageBuilder interface {
	Build(ctx context.Context, image []byte, settings docgen.RenderSettings) ([]byte, error)
}

// CompositeEngine pairs a rasterizer with a page builder.
type CompositeEngine struct {
	Rasterizer Rasterizer
	Builder    PageBuilder
}

// Render captures the document and lays the capture out on pages.
func (e CompositeEngine) Render(ctx context.Context, req RenderRequest) ([]byte, error) {
	if e.Rasterizer == nil {
		return nil, docgen.NewError(docgen.KindValidation, "composite engine requires rasterizer", nil)
	}
	builder := e.Builder
	if builder == nil {
		builder = GofpdfBuilder{}
	}

	img, err := e.Rasterizer.Rasterize(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(img) == 0 {
		return nil, docgen.NewError(docgen.KindInternal, "rasterizer returned no image", nil)
	}
	return builder.Build(ctx, img, req.Settings)
}
