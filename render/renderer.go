// Package render converts composed HTML into a PDF artifact on a scoped surface.
package render

import (
	"context"
	"fmt"

	docpdf "github.com/goliatone/go-docgen/adapters/pdf"
	"github.com/goliatone/go-docgen/docgen"
	"github.com/goliatone/go-docgen/resolver"
)

// DefaultMaxHTMLBytes guards the size of a mounted document.
const DefaultMaxHTMLBytes int64 = 8 * 1024 * 1024

// EngineSource supplies the active engine.
type EngineSource interface {
	Resolve(ctx context.Context) (resolver.Handle, error)
}

// Renderer mounts the document, resolves an engine and converts.
type Renderer struct {
	Engines      EngineSource
	Surfaces     SurfaceProvider
	Settings     docgen.RenderSettings
	MaxHTMLBytes int64
	Logger       docgen.Logger
}

// Render produces a PDF artifact. The surface is released on every exit path.
func (r Renderer) Render(ctx context.Context, html []byte, filename string) (docgen.Artifact, error) {
	if r.Engines == nil {
		return docgen.Artifact{}, docgen.NewError(docgen.KindValidation, "renderer requires engine source", nil)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if limit := r.maxHTMLBytes(); int64(len(html)) > limit {
		return docgen.Artifact{}, docgen.NewError(docgen.KindValidation, fmt.Sprintf("document exceeds %d bytes", limit), nil)
	}
	logger := docgen.LoggerOrNop(r.Logger)

	surface, err := r.surfaces().Acquire(ctx, html)
	if err != nil {
		return docgen.Artifact{}, err
	}
	defer func() {
		if releaseErr := surface.Release(); releaseErr != nil {
			logger.Errorf("release surface %s: %v", surface.Dir, releaseErr)
		}
	}()

	handle, err := r.Engines.Resolve(ctx)
	if err != nil {
		return docgen.Artifact{}, err
	}

	pdf, err := handle.Engine.Render(ctx, docpdf.RenderRequest{
		HTML:       html,
		SourcePath: surface.Path,
		Settings:   r.settings(),
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return docgen.Artifact{}, ctxErr
		}
		return docgen.Artifact{}, docgen.NewError(docgen.KindRenderEngine, fmt.Sprintf("%s engine failed", handle.Tier), err)
	}
	if !docpdf.IsPDF(pdf) {
		return docgen.Artifact{}, docgen.NewError(docgen.KindRenderEngine, fmt.Sprintf("%s engine returned no pdf", handle.Tier), nil)
	}

	logger.Debugf("%s engine rendered %s (%d bytes)", handle.Tier, filename, len(pdf))
	return docgen.Artifact{Data: pdf, ContentType: docgen.ContentTypePDF, Filename: filename}, nil
}

func (r Renderer) surfaces() SurfaceProvider {
	if r.Surfaces == nil {
		return &ScratchProvider{}
	}
	return r.Surfaces
}

func (r Renderer) settings() docgen.RenderSettings {
	if r.Settings == (docgen.RenderSettings{}) {
		return docgen.DefaultRenderSettings()
	}
	return r.Settings
}

func (r Renderer) maxHTMLBytes() int64 {
	if r.MaxHTMLBytes <= 0 {
		return DefaultMaxHTMLBytes
	}
	return r.MaxHTMLBytes
}
